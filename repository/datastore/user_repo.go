package datastore

import (
	"context"
	"errors"
	"time"

	gcds "cloud.google.com/go/datastore"
	"github.com/google/uuid"

	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/repository"
)

type userRepository struct {
	client *gcds.Client
}

// NewUserRepository returns a Datastore-backed UserRepository.
func NewUserRepository(client *gcds.Client) repository.UserRepository {
	return &userRepository{client: client}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var entity userEntity
	if err := r.client.Get(ctx, userKey(id), &entity); err != nil {
		return nil, translate(err, domain.ErrUserNotFound)
	}
	return entity.toDomain(id), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var marker emailEntity
	if err := r.client.Get(ctx, emailKey(email), &marker); err != nil {
		return nil, translate(err, domain.ErrUserNotFound)
	}
	return r.GetByID(ctx, marker.UserID)
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user == nil || user.Email == "" {
		return domain.ErrInvalidPayload
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.client.RunInTransaction(ctx, func(tx *gcds.Transaction) error {
		if err := reserveEmail(tx, user.Email, user.ID); err != nil {
			return err
		}
		_, err := tx.Put(userKey(user.ID), toUserEntity(user))
		return err
	})
	return err
}

func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrInvalidPayload
	}

	_, err := r.client.RunInTransaction(ctx, func(tx *gcds.Transaction) error {
		var existing userEntity
		err := tx.Get(userKey(user.ID), &existing)
		switch {
		case errors.Is(err, gcds.ErrNoSuchEntity):
			if err := reserveEmail(tx, user.Email, user.ID); err != nil {
				return err
			}
			if user.CreatedAt.IsZero() {
				user.CreatedAt = time.Now().UTC()
			}
		case err != nil:
			return err
		default:
			if existing.Email != user.Email {
				if err := reserveEmail(tx, user.Email, user.ID); err != nil {
					return err
				}
				if err := tx.Delete(emailKey(existing.Email)); err != nil {
					return err
				}
			}
			if user.PasswordHash == "" {
				user.PasswordHash = existing.PasswordHash
			}
			user.CreatedAt = existing.CreatedAt
		}
		user.UpdatedAt = time.Now().UTC()
		_, err = tx.Put(userKey(user.ID), toUserEntity(user))
		return err
	})
	return err
}

func (r *userRepository) Touch(ctx context.Context, id string) error {
	_, err := r.client.RunInTransaction(ctx, func(tx *gcds.Transaction) error {
		var entity userEntity
		if err := tx.Get(userKey(id), &entity); err != nil {
			return translate(err, domain.ErrUserNotFound)
		}
		entity.UpdatedAt = time.Now().UTC()
		_, err := tx.Put(userKey(id), &entity)
		return err
	})
	return err
}

func reserveEmail(tx *gcds.Transaction, email, userID string) error {
	var marker emailEntity
	err := tx.Get(emailKey(email), &marker)
	switch {
	case err == nil && marker.UserID != userID:
		return domain.ErrEmailTaken
	case err != nil && !errors.Is(err, gcds.ErrNoSuchEntity):
		return err
	}
	_, err = tx.Put(emailKey(email), &emailEntity{UserID: userID})
	return err
}
