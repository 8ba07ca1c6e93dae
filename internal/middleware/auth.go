package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/tasksync/api/transport"
	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/internal/security"
	"github.com/fastygo/tasksync/pkg/httpcontext"
)

// Middleware wraps a request handler.
type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// TokenParser verifies access tokens.
type TokenParser interface {
	Parse(token string) (*security.Claims, error)
}

// SessionValidator confirms the session behind a token is still live.
type SessionValidator interface {
	ValidateSession(ctx context.Context, userID, sessionID string) (*domain.Session, error)
}

// JWTAuth accepts a bearer token only while its session exists, so
// signing out takes effect before the token expires. On success the
// user and session ids are set on the request headers.
func JWTAuth(tokens TokenParser, sessions SessionValidator, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			ctx.Request.Header.Del(httpcontext.HeaderUserID)
			ctx.Request.Header.Del(httpcontext.HeaderSessionID)

			tokenString := extractToken(ctx)
			if tokenString == "" {
				unauthorized(ctx, "missing bearer token")
				return
			}

			claims, err := tokens.Parse(tokenString)
			if err != nil {
				logger.Warn("invalid jwt token", zap.Error(err))
				unauthorized(ctx, "invalid token")
				return
			}

			if sessions != nil {
				checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				_, err := sessions.ValidateSession(checkCtx, claims.UserID, claims.SessionID)
				cancel()
				if err != nil {
					if domain.CodeOf(err) == domain.ErrCodeInternal {
						logger.Error("session lookup failed", zap.Error(err))
						writeError(ctx, fasthttp.StatusServiceUnavailable, string(domain.ErrCodeInternal), "session store unavailable")
						return
					}
					unauthorized(ctx, "session expired")
					return
				}
			}

			ctx.Request.Header.Set(httpcontext.HeaderUserID, claims.UserID)
			ctx.Request.Header.Set(httpcontext.HeaderSessionID, claims.SessionID)
			next(ctx)
		}
	}
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		// EventSource cannot set headers
		return string(ctx.QueryArgs().Peek("access_token"))
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func unauthorized(ctx *fasthttp.RequestCtx, message string) {
	writeError(ctx, fasthttp.StatusUnauthorized, string(domain.ErrCodeUnauthorized), message)
}

func writeError(ctx *fasthttp.RequestCtx, status int, code, message string) {
	body, _ := json.Marshal(transport.NewError(code, message, nil))
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}
