package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spendwise/internal/core"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps compare lexicographically.
const timeLayout = "2006-01-02 15:04:05.000000000"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	schema  SchemaStatus
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db), schema: schema}, nil
}

// Schema reports what the migrations did when the repository was opened.
func (r *SQLiteRepository) Schema() SchemaStatus {
	return r.schema
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	err := r.queries.CreateUser(ctx, User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    formatTime(u.CreatedAt),
	})
	if isUniqueViolation(err) {
		return core.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	slog.InfoContext(ctx, "User saved to SQLite", "user_id", u.ID)
	return nil
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (core.User, error) {
	u, err := r.queries.GetUserByID(ctx, id)
	if err != nil {
		return core.User{}, notFound(err)
	}
	return toCoreUser(u), nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := r.queries.GetUserByEmail(ctx, email)
	if err != nil {
		return core.User{}, notFound(err)
	}
	return toCoreUser(u), nil
}

func (r *SQLiteRepository) UpdateUser(ctx context.Context, u core.User) error {
	n, err := r.queries.UpdateUser(ctx, User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
	})
	if isUniqueViolation(err) {
		return core.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func toCoreUser(u User) core.User {
	return core.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    parseTime(u.CreatedAt),
	}
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, len(rows))
	for i, c := range rows {
		out[i] = core.Category{ID: c.ID, Name: c.Name, Icon: c.Icon, Color: c.Color}
	}
	return out, nil
}

func (r *SQLiteRepository) SeedCategories(ctx context.Context, cats []core.Category) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for _, c := range cats {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		if err := q.InsertCategory(ctx, Category{ID: id, Name: c.Name, Icon: c.Icon, Color: c.Color}); err != nil {
			return fmt.Errorf("insert category %s: %w", c.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	slog.InfoContext(ctx, "Categories seeded", "count", len(cats))
	return nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) error {
	err := r.queries.CreateExpense(ctx, fromCoreExpense(e))
	if err != nil {
		return fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"user_id", e.UserID,
		"amount_cents", e.Amount.Cents,
		"date", e.Date)
	return nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	e, err := r.queries.GetExpense(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, core.ErrNotFound
		}
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	return toCoreExpense(e), nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string, limit int) ([]core.Expense, error) {
	rows, err := r.queries.ListExpensesByUser(ctx, userID, int64(ClampLimit(limit)))
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return toCoreExpenses(rows), nil
}

func (r *SQLiteRepository) AllExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	rows, err := r.queries.AllExpensesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("all expenses: %w", err)
	}
	return toCoreExpenses(rows), nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	n, err := r.queries.UpdateExpense(ctx, fromCoreExpense(e))
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id string) error {
	n, err := r.queries.DeleteExpense(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	slog.InfoContext(ctx, "Expense deleted from SQLite", "id", id, "user_id", userID)
	return nil
}

func fromCoreExpense(e core.Expense) Expense {
	return Expense{
		ID:          e.ID,
		UserID:      e.UserID,
		AmountCents: e.Amount.Cents,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date,
		ReceiptURL:  e.ReceiptURL,
		CreatedAt:   formatTime(e.CreatedAt),
	}
}

func toCoreExpense(e Expense) core.Expense {
	return core.Expense{
		ID:          e.ID,
		UserID:      e.UserID,
		Amount:      core.Money{Cents: e.AmountCents},
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date,
		ReceiptURL:  e.ReceiptURL,
		CreatedAt:   parseTime(e.CreatedAt),
	}
}

func toCoreExpenses(rows []Expense) []core.Expense {
	out := make([]core.Expense, len(rows))
	for i, e := range rows {
		out[i] = toCoreExpense(e)
	}
	return out
}

func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, s core.InsightSnapshot) error {
	err := r.queries.UpsertSnapshot(ctx, InsightSnapshot{
		UserID:      s.UserID,
		Profile:     s.Profile,
		Payload:     s.Payload,
		GeneratedAt: formatTime(s.GeneratedAt),
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) LatestSnapshot(ctx context.Context, userID, profile string) (core.InsightSnapshot, error) {
	s, err := r.queries.LatestSnapshot(ctx, userID, profile)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.InsightSnapshot{}, core.ErrNotFound
		}
		return core.InsightSnapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	return core.InsightSnapshot{
		UserID:      s.UserID,
		Profile:     s.Profile,
		Payload:     s.Payload,
		GeneratedAt: parseTime(s.GeneratedAt),
	}, nil
}

func (r *SQLiteRepository) MarkStale(ctx context.Context, userID string) error {
	if err := r.queries.MarkStale(ctx, userID, formatTime(time.Now())); err != nil {
		return fmt.Errorf("mark stale: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) StaleUsers(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = MaxListLimit
	}
	ids, err := r.queries.StaleUsers(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("stale users: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) ClearStale(ctx context.Context, userID string, upTo time.Time) error {
	if err := r.queries.ClearStale(ctx, userID, formatTime(upTo)); err != nil {
		return fmt.Errorf("clear stale: %w", err)
	}
	return nil
}
