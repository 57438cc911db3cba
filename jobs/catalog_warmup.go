package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/gudangku/gudangku/internal/navigation"
)

// CatalogWarmer refreshes the page-catalog snapshot so superuser menus keep
// working while the backend is briefly unreachable.
type CatalogWarmer struct {
	service *navigation.Service
	token   string
	logger  *slog.Logger
}

// NewCatalogWarmer constructs the warm-up handler. The token is a backend
// service-account credential with catalog read access.
func NewCatalogWarmer(service *navigation.Service, token string, logger *slog.Logger) *CatalogWarmer {
	return &CatalogWarmer{service: service, token: token, logger: logger}
}

// Handle processes TaskCatalogWarmup tasks.
func (c *CatalogWarmer) Handle(ctx context.Context, t *asynq.Task) error {
	var payload CatalogWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if c.token == "" {
		if c.logger != nil {
			c.logger.Warn("catalog warmup skipped, no service token configured")
		}
		return nil
	}
	if err := c.service.WarmCatalog(ctx, c.token); err != nil {
		if c.logger != nil {
			c.logger.Warn("catalog warmup failed", slog.String("reason", payload.Reason), slog.Any("error", err))
		}
		return err
	}
	return nil
}
