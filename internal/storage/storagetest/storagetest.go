// Package storagetest holds a behaviour suite every storage.Store must pass.
package storagetest

import (
	"context"
	"testing"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a fresh store returned by open for each subtest.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Helper()

	t.Run("users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("categories", func(t *testing.T) { testCategories(t, open(t)) })
	t.Run("expenses", func(t *testing.T) { testExpenses(t, open(t)) })
	t.Run("snapshots", func(t *testing.T) { testSnapshots(t, open(t)) })
}

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := core.User{ID: "u1", Name: "Ada", Email: "ada@example.com", PasswordHash: "h", CreatedAt: time.Now()}

	require.NoError(t, s.CreateUser(ctx, u))
	assert.ErrorIs(t, s.CreateUser(ctx, core.User{ID: "u2", Name: "Other", Email: "ada@example.com", PasswordHash: "h"}), core.ErrEmailTaken)

	got, err := s.UserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "Ada", got.Name)

	got.Name = "Ada L."
	got.PasswordHash = "h2"
	require.NoError(t, s.UpdateUser(ctx, got))

	byID, err := s.UserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", byID.Name)
	assert.Equal(t, "h2", byID.PasswordHash)

	_, err = s.UserByID(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.UserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.UpdateUser(ctx, core.User{ID: "missing", Name: "x", Email: "x@example.com"}), core.ErrNotFound)

	assert.NoError(t, s.Ping(ctx))
}

func testCategories(t *testing.T, s storage.Store) {
	ctx := context.Background()

	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)

	require.NoError(t, s.SeedCategories(ctx, core.DefaultCategories))
	require.NoError(t, s.SeedCategories(ctx, core.DefaultCategories))

	cats, err = s.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, len(core.DefaultCategories))
	assert.Equal(t, "Food", cats[0].Name)
	assert.NotEmpty(t, cats[0].ID)
	assert.Equal(t, "#FF6B6B", cats[0].Color)
}

func expense(id, user, date string, cents int64) core.Expense {
	return core.Expense{
		ID:          id,
		UserID:      user,
		Amount:      core.Money{Cents: cents},
		Category:    "Food",
		Description: "item " + id,
		Date:        date,
		CreatedAt:   time.Now(),
	}
}

func testExpenses(t *testing.T, s storage.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateExpense(ctx, expense("e1", "u1", "2024-01-10", 1000)))
	require.NoError(t, s.CreateExpense(ctx, expense("e2", "u1", "2024-03-05", 2500)))
	require.NoError(t, s.CreateExpense(ctx, expense("e3", "u1", "2024-02-20", 700)))
	require.NoError(t, s.CreateExpense(ctx, expense("e4", "u2", "2024-02-01", 9900)))

	list, err := s.ListExpenses(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"e2", "e3", "e1"}, []string{list[0].ID, list[1].ID, list[2].ID})

	limited, err := s.ListExpenses(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	all, err := s.AllExpenses(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := s.GetExpense(ctx, "u1", "e2")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), got.Amount.Cents)
	assert.Equal(t, "2024-03-05", got.Date)

	_, err = s.GetExpense(ctx, "u2", "e2")
	assert.ErrorIs(t, err, core.ErrNotFound, "expenses are scoped to their owner")

	got.Description = "updated"
	got.ReceiptURL = "gs://bucket/r.jpg"
	require.NoError(t, s.UpdateExpense(ctx, got))
	got, err = s.GetExpense(ctx, "u1", "e2")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Description)
	assert.Equal(t, "gs://bucket/r.jpg", got.ReceiptURL)

	foreign := got
	foreign.UserID = "u2"
	assert.ErrorIs(t, s.UpdateExpense(ctx, foreign), core.ErrNotFound)

	assert.ErrorIs(t, s.DeleteExpense(ctx, "u2", "e2"), core.ErrNotFound)
	require.NoError(t, s.DeleteExpense(ctx, "u1", "e2"))
	assert.ErrorIs(t, s.DeleteExpense(ctx, "u1", "e2"), core.ErrNotFound)

	all, err = s.AllExpenses(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testSnapshots(t *testing.T, s storage.Store) {
	ctx := context.Background()

	_, err := s.LatestSnapshot(ctx, "u1", "full")
	assert.ErrorIs(t, err, core.ErrNotFound)

	first := time.Now().Add(-time.Minute)
	require.NoError(t, s.SaveSnapshot(ctx, core.InsightSnapshot{UserID: "u1", Profile: "full", Payload: []byte(`{"v":1}`), GeneratedAt: first}))
	require.NoError(t, s.SaveSnapshot(ctx, core.InsightSnapshot{UserID: "u1", Profile: "full", Payload: []byte(`{"v":2}`), GeneratedAt: time.Now()}))

	snap, err := s.LatestSnapshot(ctx, "u1", "full")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(snap.Payload))
	assert.Equal(t, "full", snap.Profile)

	latest, err := s.LatestSnapshot(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "full", latest.Profile)

	require.NoError(t, s.MarkStale(ctx, "u1"))
	require.NoError(t, s.MarkStale(ctx, "u2"))
	require.NoError(t, s.MarkStale(ctx, "u1"))

	stale, err := s.StaleUsers(ctx, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, stale)

	require.NoError(t, s.ClearStale(ctx, "u2", first), "marks newer than upTo survive")
	stale, err = s.StaleUsers(ctx, 10)
	require.NoError(t, err)
	assert.Contains(t, stale, "u2")

	require.NoError(t, s.ClearStale(ctx, "u2", time.Now().Add(time.Second)))
	stale, err = s.StaleUsers(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, stale)
}
