package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    string
}

type Category struct {
	ID    string
	Name  string
	Icon  string
	Color string
}

type Expense struct {
	ID          string
	UserID      string
	AmountCents int64
	Category    string
	Description string
	Date        string
	ReceiptURL  string
	CreatedAt   string
}

type InsightSnapshot struct {
	UserID      string
	Profile     string
	Payload     []byte
	GeneratedAt string
}

const createUser = `-- name: CreateUser :exec
INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)
`

func (q *Queries) CreateUser(ctx context.Context, arg User) error {
	_, err := q.db.ExecContext(ctx, createUser, arg.ID, arg.Name, arg.Email, arg.PasswordHash, arg.CreatedAt)
	return err
}

const getUserByID = `-- name: GetUserByID :one
SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?
`

func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	var i User
	err := row.Scan(&i.ID, &i.Name, &i.Email, &i.PasswordHash, &i.CreatedAt)
	return i, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByEmail, email)
	var i User
	err := row.Scan(&i.ID, &i.Name, &i.Email, &i.PasswordHash, &i.CreatedAt)
	return i, err
}

const updateUser = `-- name: UpdateUser :execrows
UPDATE users SET name = ?, email = ?, password_hash = ? WHERE id = ?
`

func (q *Queries) UpdateUser(ctx context.Context, arg User) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateUser, arg.Name, arg.Email, arg.PasswordHash, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listCategories = `-- name: ListCategories :many
SELECT id, name, icon, color FROM categories ORDER BY rowid
`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.Name, &i.Icon, &i.Color); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertCategory = `-- name: InsertCategory :exec
INSERT INTO categories (id, name, icon, color) VALUES (?, ?, ?, ?)
ON CONFLICT(name) DO NOTHING
`

func (q *Queries) InsertCategory(ctx context.Context, arg Category) error {
	_, err := q.db.ExecContext(ctx, insertCategory, arg.ID, arg.Name, arg.Icon, arg.Color)
	return err
}

const createExpense = `-- name: CreateExpense :exec
INSERT INTO expenses (id, user_id, amount_cents, category, description, date, receipt_url, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateExpense(ctx context.Context, arg Expense) error {
	_, err := q.db.ExecContext(ctx, createExpense,
		arg.ID, arg.UserID, arg.AmountCents, arg.Category, arg.Description, arg.Date, arg.ReceiptURL, arg.CreatedAt)
	return err
}

const expenseColumns = `id, user_id, amount_cents, category, description, date, receipt_url, created_at`

const getExpense = `-- name: GetExpense :one
SELECT ` + expenseColumns + ` FROM expenses WHERE id = ? AND user_id = ?
`

func (q *Queries) GetExpense(ctx context.Context, id, userID string) (Expense, error) {
	row := q.db.QueryRowContext(ctx, getExpense, id, userID)
	var i Expense
	err := row.Scan(&i.ID, &i.UserID, &i.AmountCents, &i.Category, &i.Description, &i.Date, &i.ReceiptURL, &i.CreatedAt)
	return i, err
}

const listExpensesByUser = `-- name: ListExpensesByUser :many
SELECT ` + expenseColumns + ` FROM expenses WHERE user_id = ?
ORDER BY date DESC, created_at DESC LIMIT ?
`

func (q *Queries) ListExpensesByUser(ctx context.Context, userID string, limit int64) ([]Expense, error) {
	return q.scanExpenses(ctx, listExpensesByUser, userID, limit)
}

const allExpensesByUser = `-- name: AllExpensesByUser :many
SELECT ` + expenseColumns + ` FROM expenses WHERE user_id = ?
ORDER BY date, created_at
`

func (q *Queries) AllExpensesByUser(ctx context.Context, userID string) ([]Expense, error) {
	return q.scanExpenses(ctx, allExpensesByUser, userID)
}

func (q *Queries) scanExpenses(ctx context.Context, query string, args ...interface{}) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var i Expense
		if err := rows.Scan(&i.ID, &i.UserID, &i.AmountCents, &i.Category, &i.Description, &i.Date, &i.ReceiptURL, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateExpense = `-- name: UpdateExpense :execrows
UPDATE expenses SET amount_cents = ?, category = ?, description = ?, date = ?, receipt_url = ?
WHERE id = ? AND user_id = ?
`

func (q *Queries) UpdateExpense(ctx context.Context, arg Expense) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateExpense,
		arg.AmountCents, arg.Category, arg.Description, arg.Date, arg.ReceiptURL, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteExpense = `-- name: DeleteExpense :execrows
DELETE FROM expenses WHERE id = ? AND user_id = ?
`

func (q *Queries) DeleteExpense(ctx context.Context, id, userID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpense, id, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const upsertSnapshot = `-- name: UpsertSnapshot :exec
INSERT INTO insight_snapshots (user_id, profile, payload, generated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(user_id, profile) DO UPDATE SET payload = excluded.payload, generated_at = excluded.generated_at
`

func (q *Queries) UpsertSnapshot(ctx context.Context, arg InsightSnapshot) error {
	_, err := q.db.ExecContext(ctx, upsertSnapshot, arg.UserID, arg.Profile, arg.Payload, arg.GeneratedAt)
	return err
}

const latestSnapshot = `-- name: LatestSnapshot :one
SELECT user_id, profile, payload, generated_at FROM insight_snapshots
WHERE user_id = ? AND (? = '' OR profile = ?)
ORDER BY generated_at DESC LIMIT 1
`

func (q *Queries) LatestSnapshot(ctx context.Context, userID, profile string) (InsightSnapshot, error) {
	row := q.db.QueryRowContext(ctx, latestSnapshot, userID, profile, profile)
	var i InsightSnapshot
	err := row.Scan(&i.UserID, &i.Profile, &i.Payload, &i.GeneratedAt)
	return i, err
}

const markStale = `-- name: MarkStale :exec
INSERT INTO snapshot_queue (user_id, marked_at) VALUES (?, ?)
ON CONFLICT(user_id) DO UPDATE SET marked_at = excluded.marked_at
`

func (q *Queries) MarkStale(ctx context.Context, userID, markedAt string) error {
	_, err := q.db.ExecContext(ctx, markStale, userID, markedAt)
	return err
}

const staleUsers = `-- name: StaleUsers :many
SELECT user_id FROM snapshot_queue ORDER BY marked_at LIMIT ?
`

func (q *Queries) StaleUsers(ctx context.Context, limit int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, staleUsers, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const clearStale = `-- name: ClearStale :exec
DELETE FROM snapshot_queue WHERE user_id = ? AND marked_at <= ?
`

func (q *Queries) ClearStale(ctx context.Context, userID, upTo string) error {
	_, err := q.db.ExecContext(ctx, clearStale, userID, upTo)
	return err
}
