package repository

import (
	"context"

	"github.com/fastygo/tasksync/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Create fails with domain.ErrEmailTaken when the email is already registered.
	Create(ctx context.Context, user *domain.User) error
	Upsert(ctx context.Context, user *domain.User) error
	Touch(ctx context.Context, id string) error
}
