// Package session holds conversation logs keyed by opaque session ids.
package session

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"hirepal/internal/domain"
)

// ErrNotFound is returned for ids the registry never issued or already expired.
var ErrNotFound = errors.New("session: not found")

// Registry maps session ids to append-only turn logs. Lookups never create
// sessions implicitly.
type Registry interface {
	Create(ctx context.Context) (string, error)
	Append(ctx context.Context, sessionID string, turns ...domain.Turn) error
	History(ctx context.Context, sessionID string) ([]domain.Turn, error)
	Expire(ctx context.Context, sessionID string) error
}

// NewID returns a fresh session id.
var NewID = func() string {
	return uuid.NewString()
}
