package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"spendwise/internal/core"
	"spendwise/internal/log"
)

type contextKey struct{}

// UserLookup resolves the subject of a verified token.
type UserLookup interface {
	UserByID(ctx context.Context, id string) (core.User, error)
}

// Authenticator guards handlers behind a bearer token.
type Authenticator struct {
	tokens *TokenIssuer
	users  UserLookup
	logger *log.Logger
}

func NewAuthenticator(tokens *TokenIssuer, users UserLookup, logger *log.Logger) *Authenticator {
	if logger == nil {
		logger = log.Discard()
	}
	return &Authenticator{tokens: tokens, users: users, logger: logger.WithComponent(log.ComponentAuth)}
}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// UserFrom returns the authenticated user stored by Require.
func UserFrom(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(contextKey{}).(core.User)
	return u, ok
}

// Require rejects requests without a valid bearer token for an existing user.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			unauthorized(w, "Not authenticated")
			return
		}

		userID, err := a.tokens.Verify(token)
		switch {
		case errors.Is(err, ErrTokenExpired):
			unauthorized(w, "Token expired")
			return
		case err != nil:
			unauthorized(w, "Invalid token")
			return
		}

		user, err := a.users.UserByID(r.Context(), userID)
		if err != nil {
			if !errors.Is(err, core.ErrNotFound) {
				a.logger.ErrorContext(r.Context(), "User lookup failed", log.FieldUserID, userID, log.FieldError, err)
			}
			unauthorized(w, "User not found")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
