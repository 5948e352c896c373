package repository

import (
	"context"

	"github.com/aybekd/meetgrid/internal/domain"
)

type UserRepository interface {
	// Create inserts a new user. Returns domain.ErrDuplicateUser when the
	// username or email is already taken.
	Create(ctx context.Context, user *domain.User) error

	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)

	// FindByLogin resolves either a username or an email address.
	FindByLogin(ctx context.Context, login string) (*domain.User, error)

	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id string) error
}
