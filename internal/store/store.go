// Package store persists game records, users and auth tickets.
//
// Every backend honors the same contract: ids are assigned by Create, start at
// 1 and are never reused, Clear included. Save and Update overwrite the whole
// record. Lookups of unknown keys fail with domain.ErrNotFound and backend
// failures are wrapped with domain.ErrDataAccess.
package store

import (
	"context"
	"fmt"

	"github.com/park285/cheese-chess/internal/domain"
)

// GameStore holds game records.
type GameStore interface {
	Create(ctx context.Context, name string) (*domain.GameRecord, error)
	Load(ctx context.Context, id int) (*domain.GameRecord, error)
	Save(ctx context.Context, rec *domain.GameRecord) error
	// Update runs fn on the current record and stores the result atomically.
	// Nothing is written when fn fails. fn may run more than once on contention.
	Update(ctx context.Context, id int, fn func(*domain.GameRecord) error) (*domain.GameRecord, error)
	List(ctx context.Context) ([]*domain.GameRecord, error)
	Clear(ctx context.Context) error
}

// UserStore holds registered accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, username string) (*domain.User, error)
	ClearUsers(ctx context.Context) error
}

// AuthStore holds issued tokens.
type AuthStore interface {
	PutAuth(ctx context.Context, t domain.AuthTicket) error
	GetAuth(ctx context.Context, token string) (*domain.AuthTicket, error)
	DeleteAuth(ctx context.Context, token string) error
	ClearAuth(ctx context.Context) error
}

func dataAccess(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrDataAccess, op, err)
}

func gameNotFound(id int) error {
	return fmt.Errorf("%w: game %d", domain.ErrNotFound, id)
}

func nilRecord() error {
	return fmt.Errorf("%w: nil game record", domain.ErrInvalidRequest)
}
