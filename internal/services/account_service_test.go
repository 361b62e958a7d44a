package services

import (
	"context"
	"testing"
	"time"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccountService(t *testing.T) (*AccountService, *auth.TokenIssuer) {
	t.Helper()
	tokens, err := auth.NewTokenIssuer("test-secret-0123456789", "HS256", time.Hour)
	require.NoError(t, err)
	return NewAccountService(memory.New(), tokens, nil), tokens
}

func TestAccountService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, tokens := newAccountService(t)

	sess, err := svc.Register(ctx, " Ada ", "Ada@Example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "bearer", sess.TokenType)
	assert.Equal(t, "Ada", sess.User.Name)
	assert.Equal(t, "ada@example.com", sess.User.Email)

	sub, err := tokens.Verify(sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, sub)

	_, err = svc.Register(ctx, "Other", "ADA@example.com", "secret2")
	assert.ErrorIs(t, err, core.ErrEmailTaken)

	login, err := svc.Login(ctx, "ada@EXAMPLE.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, login.User.ID)

	_, err = svc.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAccountService_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAccountService(t)

	_, err := svc.Register(ctx, "", "a@example.com", "secret1")
	assert.ErrorIs(t, err, core.ErrEmptyName)
	_, err = svc.Register(ctx, "Ada", "not-an-email", "secret1")
	assert.ErrorIs(t, err, core.ErrInvalidEmail)
	_, err = svc.Register(ctx, "Ada", "a@example.com", "123")
	assert.ErrorIs(t, err, core.ErrPasswordTooShort)
}

func TestAccountService_Update(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAccountService(t)

	sess, err := svc.Register(ctx, "Ada", "ada@example.com", "secret1")
	require.NoError(t, err)
	user, err := svc.users.UserByID(ctx, sess.User.ID)
	require.NoError(t, err)

	tests := []struct {
		name    string
		upd     AccountUpdate
		wantErr error
	}{
		{"new password without current", AccountUpdate{NewPassword: "newsecret"}, ErrCurrentPasswordRequired},
		{"wrong current password", AccountUpdate{CurrentPassword: "nope", NewPassword: "newsecret"}, ErrCurrentPasswordIncorrect},
		{"new password too short", AccountUpdate{CurrentPassword: "secret1", NewPassword: "abc"}, core.ErrPasswordTooShort},
		{"blank name", AccountUpdate{Name: ptr("  ")}, core.ErrEmptyName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(ctx, user, tt.upd)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	updated, err := svc.Update(ctx, user, AccountUpdate{Name: ptr("Ada L."), CurrentPassword: "secret1", NewPassword: "newsecret"})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", updated.Name)

	_, err = svc.Login(ctx, "ada@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "ada@example.com", "newsecret")
	assert.NoError(t, err)
}

func ptr[T any](v T) *T { return &v }
