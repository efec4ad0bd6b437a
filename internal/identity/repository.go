package identity

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no user has the requested phone.
var ErrNotFound = errors.New("user not found")

// ErrExists is returned when the phone is already registered.
var ErrExists = errors.New("user exists")

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByPhone(ctx context.Context, phone string) (User, error)
	MarkVerified(ctx context.Context, phone string) (User, error)
}
