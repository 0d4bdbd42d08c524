package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/searchlens/backend/internal/apierr"
	"github.com/searchlens/backend/internal/api/response"
	"github.com/searchlens/backend/internal/models"
	"github.com/searchlens/backend/internal/repository"
)

type contextKey string

const (
	userContextKey   contextKey = "user"
	claimsContextKey contextKey = "claims"
)

// Middleware authenticates requests with a Bearer JWT and loads the user.
type Middleware struct {
	jwt   *JWTService
	users *repository.UserRepository
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(jwt *JWTService, users *repository.UserRepository) *Middleware {
	return &Middleware{jwt: jwt, users: users}
}

// Authenticate requires a valid Bearer token on the request.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			response.Error(w, apierr.Auth("missing_token", "authorization header required"))
			return
		}

		claims, err := m.jwt.Validate(token)
		if err != nil {
			response.Error(w, apierr.Auth("invalid_token", "invalid or expired token"))
			return
		}

		user, err := m.users.GetByID(r.Context(), claims.UserID)
		if err != nil {
			response.Error(w, apierr.Auth("unknown_user", "user no longer exists"))
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		ctx = context.WithValue(ctx, claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// GetUser retrieves the authenticated user from the request context.
func GetUser(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok
}

// GetClaims retrieves the token claims from the request context.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}
