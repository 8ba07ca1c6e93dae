package profile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/repository"
	"github.com/fastygo/tasksync/usecase"
)

type UseCase struct {
	users  repository.UserRepository
	buffer usecase.OperationBuffer
	logger *zap.Logger
}

func New(users repository.UserRepository, buffer usecase.OperationBuffer, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:  users,
		buffer: buffer,
		logger: logger,
	}
}

func (uc *UseCase) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return uc.users.GetByID(ctx, userID)
}

// UpdateProfile changes the user's email address.
func (uc *UseCase) UpdateProfile(ctx context.Context, userID, email string) (*domain.User, error) {
	user, err := uc.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !domain.ValidEmail(email) {
		return nil, domain.NewError(domain.ErrCodeInvalid, "invalid email address")
	}

	email = domain.NormalizeEmail(email)
	if email == user.Email {
		return user, nil
	}

	owner, err := uc.users.GetByEmail(ctx, email)
	switch {
	case err == nil && owner.ID != user.ID:
		return nil, domain.ErrEmailTaken
	case err != nil && !domain.IsDomainError(err, domain.ErrCodeNotFound):
		return nil, err
	}

	user.Email = email
	user.UpdatedAt = time.Now().UTC()
	if err := uc.users.Upsert(ctx, user); err != nil {
		if usecase.Bufferable(err) && uc.buffer != nil {
			if bufErr := uc.buffer.BufferProfile(ctx, usecase.OperationUpdate, user); bufErr != nil {
				uc.logger.Error("failed to buffer profile update", zap.Error(bufErr))
				return nil, err
			}
			uc.logger.Warn("profile update buffered due to repository error", zap.Error(err))
			return nil, domain.Queued(err)
		}
		return nil, err
	}
	return user, nil
}
