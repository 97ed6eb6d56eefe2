package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispatch outcomes.
const (
	DispatchOutcomeOK    = "ok"
	DispatchOutcomeError = "error"
)

// Dispatch is one audited gateway invocation made through the HTTP API.
type Dispatch struct {
	ID           uuid.UUID `db:"id"            json:"id"`
	Action       string    `db:"action"        json:"action"`
	WebsiteName  string    `db:"website_name"  json:"website_name"`
	AppID        string    `db:"app_id"        json:"app_id"`
	Outcome      string    `db:"outcome"       json:"outcome"`
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
	RequestID    string    `db:"request_id"    json:"request_id"`
	KeyPrefix    string    `db:"key_prefix"    json:"key_prefix,omitempty"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
}
