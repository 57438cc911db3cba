package identity

import "encoding/json"

// Permission is one per-page CRUD grant. The name, path, and display name
// are optional in profile payloads; the zero value stands in for absence
// and label resolution falls back through the documented chain.
type Permission struct {
	ID          int64  `json:"id"`
	PageID      int64  `json:"page_id"`
	PageName    string `json:"page_name,omitempty"`
	PagePath    string `json:"page_path,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	CanCreate   bool   `json:"can_create"`
	CanRead     bool   `json:"can_read"`
	CanUpdate   bool   `json:"can_update"`
	CanDelete   bool   `json:"can_delete"`
}

// User is the authenticated identity with its permission grants. The
// permission list is replaced wholesale on every profile refresh, never
// mutated in place.
type User struct {
	ID          int64        `json:"id"`
	Email       string       `json:"email"`
	Name        string       `json:"name"`
	IsActive    bool         `json:"is_active"`
	IsSuperuser bool         `json:"is_superuser"`
	Role        string       `json:"role,omitempty"`
	Permissions []Permission `json:"permissions"`
}

// Project is one project the user can select to work in.
type Project struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// Encode serializes the user for session storage.
func (u *User) Encode() string {
	data, _ := json.Marshal(u)
	return string(data)
}

// DecodeUser parses a serialized user stored in the session. A nil result
// means the session carried no usable identity.
func DecodeUser(raw string) *User {
	if raw == "" {
		return nil
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil
	}
	return &u
}

// Encode serializes the project for session storage.
func (p *Project) Encode() string {
	data, _ := json.Marshal(p)
	return string(data)
}

// DecodeProject parses a serialized current-project from the session.
func DecodeProject(raw string) *Project {
	if raw == "" {
		return nil
	}
	var p Project
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil
	}
	return &p
}
