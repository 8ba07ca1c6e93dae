package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/internal/security"
	"github.com/fastygo/tasksync/repository"
)

const defaultSessionTTL = 24 * time.Hour

// TokenIssuer signs access tokens bound to a session.
type TokenIssuer interface {
	Issue(userID, sessionID string, expiresAt time.Time) (string, error)
}

type Options struct {
	SessionTTL time.Duration
	BcryptCost int
}

// Result is returned by every operation that hands out a token.
type Result struct {
	User    *domain.User    `json:"user"`
	Session *domain.Session `json:"session"`
	Token   string          `json:"token"`
}

type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   TokenIssuer
	opts     Options
	logger   *zap.Logger
}

func New(users repository.UserRepository, sessions repository.SessionRepository, tokens TokenIssuer, opts Options, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		opts:     opts,
		logger:   logger,
	}
}

// Register creates an account and signs the new user in.
func (uc *UseCase) Register(ctx context.Context, email, password string, metadata map[string]string) (*Result, error) {
	if err := domain.ValidateCredentials(email, password); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(password, uc.opts.BcryptCost)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to hash password", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        domain.NormalizeEmail(email),
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}

	uc.logger.Info("user registered", zap.String("user_id", user.ID))
	return uc.signIn(ctx, user, metadata)
}

// Login verifies credentials and opens a new session.
func (uc *UseCase) Login(ctx context.Context, email, password string, metadata map[string]string) (*Result, error) {
	if err := domain.ValidateCredentials(email, password); err != nil {
		return nil, err
	}

	user, err := uc.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !security.CheckPasswordHash(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, domain.ErrUserDisabled
	}

	if err := uc.users.Touch(ctx, user.ID); err != nil {
		uc.logger.Warn("failed to touch user on login", zap.String("user_id", user.ID), zap.Error(err))
	}
	return uc.signIn(ctx, user, metadata)
}

// Logout revokes one session.
func (uc *UseCase) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return domain.ErrUnauthorized
	}
	return uc.sessions.Delete(ctx, sessionID)
}

// LogoutAll revokes every session of the user.
func (uc *UseCase) LogoutAll(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	return uc.sessions.DeleteAllForUser(ctx, userID)
}

// Refresh extends a live session and issues a token for the new expiry.
func (uc *UseCase) Refresh(ctx context.Context, userID, sessionID string, ttl time.Duration) (*Result, error) {
	if ttl <= 0 {
		ttl = uc.opts.SessionTTL
	}
	session, err := uc.ValidateSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, domain.ErrUserDisabled
	}

	if err := uc.sessions.Extend(ctx, sessionID, int(ttl.Seconds())); err != nil {
		return nil, err
	}
	session.ExpiresAt = time.Now().Add(ttl).UTC()

	token, err := uc.tokens.Issue(user.ID, session.ID, session.ExpiresAt)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to issue token", err)
	}
	return &Result{User: user, Session: session, Token: token}, nil
}

// ValidateSession returns the session if it exists, has not expired and
// belongs to userID.
func (uc *UseCase) ValidateSession(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, domain.ErrUnauthorized
	}
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(time.Now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	if userID != "" && session.UserID != userID {
		return nil, domain.ErrUnauthorized
	}
	return session, nil
}

func (uc *UseCase) signIn(ctx context.Context, user *domain.User, metadata map[string]string) (*Result, error) {
	now := time.Now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(uc.opts.SessionTTL),
		Metadata:  metadata,
	}
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	token, err := uc.tokens.Issue(user.ID, session.ID, session.ExpiresAt)
	if err != nil {
		_ = uc.sessions.Delete(ctx, session.ID)
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to issue token", err)
	}
	return &Result{User: user, Session: session, Token: token}, nil
}
