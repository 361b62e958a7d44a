package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/storage"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrCurrentPasswordRequired  = errors.New("current password required to change password")
	ErrCurrentPasswordIncorrect = errors.New("current password is incorrect")
)

// Session is returned by register and login.
type Session struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        UserProfile `json:"user"`
}

// UserProfile is the public view of an account.
type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func ProfileOf(u core.User) UserProfile {
	return UserProfile{ID: u.ID, Name: u.Name, Email: u.Email}
}

// AccountUpdate carries a partial profile change. An empty NewPassword keeps
// the current one.
type AccountUpdate struct {
	Name            *string
	CurrentPassword string
	NewPassword     string
}

// AccountService handles registration, login and profile changes.
type AccountService struct {
	users  storage.UserStore
	tokens *auth.TokenIssuer
	logger *log.Logger
	now    func() time.Time
}

func NewAccountService(users storage.UserStore, tokens *auth.TokenIssuer, logger *log.Logger) *AccountService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AccountService{
		users:  users,
		tokens: tokens,
		logger: logger.WithComponent(log.ComponentAuth),
		now:    time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and signs the new user in.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (Session, error) {
	u := core.User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Email:     normalizeEmail(email),
		CreatedAt: s.now(),
	}
	if err := u.Validate(); err != nil {
		return Session{}, err
	}
	if len(password) < core.MinPasswordLength {
		return Session{}, core.ErrPasswordTooShort
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, err
	}
	u.PasswordHash = hash

	if err := s.users.CreateUser(ctx, u); err != nil {
		return Session{}, err
	}
	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, u.ID)
	return s.session(u)
}

// Login verifies the credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.UserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, core.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		s.logger.WarnContext(ctx, "Failed login attempt", log.FieldUserID, u.ID)
		return Session{}, ErrInvalidCredentials
	}
	return s.session(u)
}

// Update applies a profile change for the signed-in user.
func (s *AccountService) Update(ctx context.Context, u core.User, upd AccountUpdate) (core.User, error) {
	if upd.Name != nil {
		u.Name = strings.TrimSpace(*upd.Name)
		if u.Name == "" {
			return core.User{}, core.ErrEmptyName
		}
	}

	if upd.NewPassword != "" {
		if upd.CurrentPassword == "" {
			return core.User{}, ErrCurrentPasswordRequired
		}
		if !auth.CheckPassword(u.PasswordHash, upd.CurrentPassword) {
			return core.User{}, ErrCurrentPasswordIncorrect
		}
		if len(upd.NewPassword) < core.MinPasswordLength {
			return core.User{}, core.ErrPasswordTooShort
		}
		hash, err := auth.HashPassword(upd.NewPassword)
		if err != nil {
			return core.User{}, err
		}
		u.PasswordHash = hash
	}

	if err := s.users.UpdateUser(ctx, u); err != nil {
		return core.User{}, err
	}
	s.logger.InfoContext(ctx, "User updated", log.FieldUserID, u.ID, "password_changed", upd.NewPassword != "")
	return u, nil
}

func (s *AccountService) session(u core.User) (Session, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: token, TokenType: "bearer", User: ProfileOf(u)}, nil
}
