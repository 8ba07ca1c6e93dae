package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/repository"
)

type sessionRepository struct {
	client     *redislib.Client
	prefix     string
	userPrefix string
	ttl        time.Duration
}

// NewSessionRepository creates a Redis-backed session repository.
// Each user's session ids are indexed in a set so they can be revoked together.
func NewSessionRepository(client *redislib.Client, ttl time.Duration) repository.SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &sessionRepository{
		client:     client,
		prefix:     "session:",
		userPrefix: "user_sessions:",
		ttl:        ttl,
	}
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	result, err := r.client.Get(ctx, r.key(id)).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(result), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) Save(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.ErrInvalidPayload
	}

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if !session.ExpiresAt.After(session.CreatedAt) {
		session.ExpiresAt = session.CreatedAt.Add(r.ttl)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = r.ttl
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(session.ID), payload, ttl)
	pipe.SAdd(ctx, r.userKey(session.UserID), session.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return r.keepIndex(ctx, session.UserID, ttl)
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	session, err := r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key(id))
	pipe.SRem(ctx, r.userKey(session.UserID), id)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *sessionRepository) Extend(ctx context.Context, id string, ttlSeconds int) error {
	duration := time.Duration(ttlSeconds) * time.Second
	if duration <= 0 {
		duration = r.ttl
	}
	session, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	session.ExpiresAt = time.Now().Add(duration)

	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	// XX keeps a logout that lands after the read from being undone.
	ok, err := r.client.SetXX(ctx, r.key(id), payload, duration).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSessionNotFound
	}
	return r.keepIndex(ctx, session.UserID, duration)
}

func (r *sessionRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.key(id))
	}
	keys = append(keys, r.userKey(userID))
	return r.client.Del(ctx, keys...).Err()
}

// keepIndex makes the user's session index outlive its longest session,
// so the set of ids expires once every session has.
func (r *sessionRepository) keepIndex(ctx context.Context, userID string, ttl time.Duration) error {
	key := r.userKey(userID)
	current, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return err
	}
	if current >= ttl {
		return nil
	}
	return r.client.PExpire(ctx, key, ttl).Err()
}

func (r *sessionRepository) key(id string) string {
	return fmt.Sprintf("%s%s", r.prefix, id)
}

func (r *sessionRepository) userKey(userID string) string {
	return fmt.Sprintf("%s%s", r.userPrefix, userID)
}
