package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogWarmup refreshes the page-catalog snapshot in Redis.
	TaskCatalogWarmup = "catalog:warmup"
)

// CatalogWarmupPayload configures one warm-up run.
type CatalogWarmupPayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewCatalogWarmupTask constructs an Asynq task.
func NewCatalogWarmupTask(payload CatalogWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogWarmup, data), nil
}
