package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/pushconsole/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// DefaultDispatchLimit and MaxDispatchLimit bound ListDispatches.
const (
	DefaultDispatchLimit = 50
	MaxDispatchLimit     = 500
)

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error

	RecordDispatch(ctx context.Context, d *models.Dispatch) error
	ListDispatches(ctx context.Context, limit int) ([]*models.Dispatch, error)
}

// ClampDispatchLimit maps a requested page size onto the allowed range.
func ClampDispatchLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultDispatchLimit
	case limit > MaxDispatchLimit:
		return MaxDispatchLimit
	}
	return limit
}
