// Package postgres implements storage.Store on PostgreSQL through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"spendwise/internal/core"
	"spendwise/internal/storage"
)

type userRow struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	Name         string `gorm:"type:varchar(255);not null"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string `gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

type categoryRow struct {
	Seq   uint   `gorm:"primaryKey;autoIncrement"`
	ID    string `gorm:"type:varchar(36);uniqueIndex;not null"`
	Name  string `gorm:"type:varchar(64);uniqueIndex;not null"`
	Icon  string `gorm:"type:varchar(64)"`
	Color string `gorm:"type:varchar(16)"`
}

func (categoryRow) TableName() string { return "categories" }

type expenseRow struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	UserID      string `gorm:"type:varchar(36);index:idx_expenses_user_date,priority:1;not null"`
	AmountCents int64  `gorm:"not null"`
	Category    string `gorm:"type:varchar(64);not null"`
	Description string `gorm:"type:varchar(200)"`
	Date        string `gorm:"type:char(10);index:idx_expenses_user_date,priority:2;not null"`
	ReceiptURL  string `gorm:"type:text"`
	CreatedAt   time.Time
}

func (expenseRow) TableName() string { return "expenses" }

type snapshotRow struct {
	UserID      string `gorm:"primaryKey;type:varchar(36)"`
	Profile     string `gorm:"primaryKey;type:varchar(16)"`
	Payload     []byte `gorm:"type:bytea;not null"`
	GeneratedAt time.Time
}

func (snapshotRow) TableName() string { return "insight_snapshots" }

type staleRow struct {
	UserID   string `gorm:"primaryKey;type:varchar(36)"`
	MarkedAt time.Time
}

func (staleRow) TableName() string { return "snapshot_queue" }

type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

// Open connects to dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.AutoMigrate(&userRow{}, &categoryRow{}, &expenseRow{}, &snapshotRow{}, &staleRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	slog.Info("Postgres schema migrated")
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return core.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return core.ErrEmailTaken
	}
	return err
}

func (s *Store) CreateUser(ctx context.Context, u core.User) error {
	row := userRow{ID: u.ID, Name: u.Name, Email: u.Email, PasswordHash: u.PasswordHash, CreatedAt: u.CreatedAt}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return core.ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) UserByID(ctx context.Context, id string) (core.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return core.User{}, translate(err)
	}
	return toCoreUser(row), nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (core.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "email = ?", email).Error; err != nil {
		return core.User{}, translate(err)
	}
	return toCoreUser(row), nil
}

func (s *Store) UpdateUser(ctx context.Context, u core.User) error {
	res := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", u.ID).Updates(map[string]any{
		"name":          u.Name,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return core.ErrNotFound
	}
	return nil
}

func toCoreUser(r userRow) core.User {
	return core.User{ID: r.ID, Name: r.Name, Email: r.Email, PasswordHash: r.PasswordHash, CreatedAt: r.CreatedAt}
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	var rows []categoryRow
	if err := s.db.WithContext(ctx).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, len(rows))
	for i, r := range rows {
		out[i] = core.Category{ID: r.ID, Name: r.Name, Icon: r.Icon, Color: r.Color}
	}
	return out, nil
}

func (s *Store) SeedCategories(ctx context.Context, cats []core.Category) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range cats {
			id := c.ID
			if id == "" {
				id = uuid.NewString()
			}
			row := categoryRow{ID: id, Name: c.Name, Icon: c.Icon, Color: c.Color}
			if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("insert category %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

func (s *Store) CreateExpense(ctx context.Context, e core.Expense) error {
	row := fromCoreExpense(e)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

func (s *Store) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	var row expenseRow
	if err := s.db.WithContext(ctx).First(&row, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return core.Expense{}, translate(err)
	}
	return toCoreExpense(row), nil
}

func (s *Store) ListExpenses(ctx context.Context, userID string, limit int) ([]core.Expense, error) {
	var rows []expenseRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC").Order("created_at DESC").
		Limit(storage.ClampLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return toCoreExpenses(rows), nil
}

func (s *Store) AllExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	var rows []expenseRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("date").Order("created_at").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("all expenses: %w", err)
	}
	return toCoreExpenses(rows), nil
}

func (s *Store) UpdateExpense(ctx context.Context, e core.Expense) error {
	res := s.db.WithContext(ctx).Model(&expenseRow{}).
		Where("id = ? AND user_id = ?", e.ID, e.UserID).
		Updates(map[string]any{
			"amount_cents": e.Amount.Cents,
			"category":     e.Category,
			"description":  e.Description,
			"date":         e.Date,
			"receipt_url":  e.ReceiptURL,
		})
	if res.Error != nil {
		return fmt.Errorf("update expense: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&expenseRow{})
	if res.Error != nil {
		return fmt.Errorf("delete expense: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.ErrNotFound
	}
	return nil
}

func fromCoreExpense(e core.Expense) expenseRow {
	return expenseRow{
		ID:          e.ID,
		UserID:      e.UserID,
		AmountCents: e.Amount.Cents,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date,
		ReceiptURL:  e.ReceiptURL,
		CreatedAt:   e.CreatedAt,
	}
}

func toCoreExpense(r expenseRow) core.Expense {
	return core.Expense{
		ID:          r.ID,
		UserID:      r.UserID,
		Amount:      core.Money{Cents: r.AmountCents},
		Category:    r.Category,
		Description: r.Description,
		Date:        r.Date,
		ReceiptURL:  r.ReceiptURL,
		CreatedAt:   r.CreatedAt,
	}
}

func toCoreExpenses(rows []expenseRow) []core.Expense {
	out := make([]core.Expense, len(rows))
	for i, r := range rows {
		out[i] = toCoreExpense(r)
	}
	return out
}

func (s *Store) SaveSnapshot(ctx context.Context, snap core.InsightSnapshot) error {
	row := snapshotRow{UserID: snap.UserID, Profile: snap.Profile, Payload: snap.Payload, GeneratedAt: snap.GeneratedAt}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "profile"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "generated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *Store) LatestSnapshot(ctx context.Context, userID, profile string) (core.InsightSnapshot, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if profile != "" {
		q = q.Where("profile = ?", profile)
	}
	var row snapshotRow
	if err := q.Order("generated_at DESC").First(&row).Error; err != nil {
		return core.InsightSnapshot{}, translate(err)
	}
	return core.InsightSnapshot{UserID: row.UserID, Profile: row.Profile, Payload: row.Payload, GeneratedAt: row.GeneratedAt}, nil
}

func (s *Store) MarkStale(ctx context.Context, userID string) error {
	row := staleRow{UserID: userID, MarkedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"marked_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("mark stale: %w", err)
	}
	return nil
}

func (s *Store) StaleUsers(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = storage.MaxListLimit
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&staleRow{}).Order("marked_at").Limit(limit).Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("stale users: %w", err)
	}
	return ids, nil
}

func (s *Store) ClearStale(ctx context.Context, userID string, upTo time.Time) error {
	err := s.db.WithContext(ctx).Where("user_id = ? AND marked_at <= ?", userID, upTo).Delete(&staleRow{}).Error
	if err != nil {
		return fmt.Errorf("clear stale: %w", err)
	}
	return nil
}
