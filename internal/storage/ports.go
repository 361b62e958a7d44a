package storage

import (
	"context"
	"time"

	"spendwise/internal/core"
)

// Ports consumed by the services so concrete backends can be swapped.

// UserStore persists accounts. Lookups return core.ErrNotFound when absent
// and CreateUser returns core.ErrEmailTaken on a duplicate email.
type UserStore interface {
	CreateUser(ctx context.Context, u core.User) error
	UserByID(ctx context.Context, id string) (core.User, error)
	UserByEmail(ctx context.Context, email string) (core.User, error)
	UpdateUser(ctx context.Context, u core.User) error
}

type CategoryStore interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
	// SeedCategories inserts the given categories, skipping names already present.
	SeedCategories(ctx context.Context, cats []core.Category) error
}

// ExpenseStore persists expenses scoped by owner. An expense owned by
// another user is reported as core.ErrNotFound.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) error
	GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
	// ListExpenses returns at most limit expenses, newest date first.
	ListExpenses(ctx context.Context, userID string, limit int) ([]core.Expense, error)
	AllExpenses(ctx context.Context, userID string) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, userID, id string) error
}

// SnapshotStore holds precomputed insight documents and the queue of users
// whose documents are out of date.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s core.InsightSnapshot) error
	LatestSnapshot(ctx context.Context, userID, profile string) (core.InsightSnapshot, error)
	MarkStale(ctx context.Context, userID string) error
	StaleUsers(ctx context.Context, limit int) ([]string, error)
	// ClearStale removes the user from the queue unless they were marked
	// again after upTo.
	ClearStale(ctx context.Context, userID string, upTo time.Time) error
}

// Store is the full persistence surface of a backend.
type Store interface {
	UserStore
	CategoryStore
	ExpenseStore
	SnapshotStore
	Ping(ctx context.Context) error
	Close() error
}

// MaxListLimit caps ListExpenses.
const MaxListLimit = 1000

// ClampLimit normalizes a requested page size into [1, MaxListLimit].
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
