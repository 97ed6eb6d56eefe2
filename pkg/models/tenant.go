// Package models contains shared data models used across the pushconsole codebase.
package models

// Tenant is one configured website. Every provider-facing call is scoped to
// exactly one tenant's ExternalAppID.
type Tenant struct {
	Name          string `json:"name"  koanf:"name"`
	ExternalAppID string `json:"appId" koanf:"app_id"`
}

// IsZero reports whether no tenant is set.
func (t Tenant) IsZero() bool {
	return t.Name == "" && t.ExternalAppID == ""
}
