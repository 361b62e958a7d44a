package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/sheets"

	"golang.org/x/sync/errgroup"
)

// Refresher recomputes the stored insights snapshot of a user.
type Refresher interface {
	Refresh(ctx context.Context, userID string) error
}

// Store is what the worker reads from storage.
type Store interface {
	GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
	StaleUsers(ctx context.Context, limit int) ([]string, error)
}

// DefaultConcurrency bounds parallel snapshot refreshes in a stale pass.
const DefaultConcurrency = 4

// SnapshotWorker keeps insight snapshots and the spreadsheet export in step
// with expense changes.
type SnapshotWorker struct {
	refresher   Refresher
	store       Store
	exporter    sheets.ExpenseExporter
	batchSize   int
	concurrency int
	logger      *log.Logger

	processed atomic.Int64
	failed    atomic.Int64
}

// NewSnapshotWorker wires the worker. exporter may be nil to skip the export.
func NewSnapshotWorker(refresher Refresher, store Store, exporter sheets.ExpenseExporter, batchSize int, logger *log.Logger) *SnapshotWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SnapshotWorker{
		refresher:   refresher,
		store:       store,
		exporter:    exporter,
		batchSize:   batchSize,
		concurrency: DefaultConcurrency,
		logger:      logger.WithComponent(log.ComponentWorker),
	}
}

// HandleMessage processes one expense change message from AMQP. A returned
// error asks the broker to redeliver.
func (w *SnapshotWorker) HandleMessage(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	lg := w.logger.With(log.FieldUserID, msg.UserID, log.FieldExpenseID, msg.ExpenseID, log.FieldOperation, msg.Action)
	lg.InfoContext(ctx, "Processing change message")

	if err := w.refresher.Refresh(ctx, msg.UserID); err != nil {
		w.failed.Add(1)
		return fmt.Errorf("refresh snapshot: %w", err)
	}

	if err := w.export(ctx, msg); err != nil {
		w.failed.Add(1)
		lg.ErrorContext(ctx, "Failed to export expense", log.FieldError, err)
		return fmt.Errorf("export expense: %w", err)
	}

	w.processed.Add(1)
	return nil
}

// export mirrors the change into the spreadsheet. Rows are always removed
// before being written so redelivered messages do not duplicate them.
func (w *SnapshotWorker) export(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	if w.exporter == nil || msg.ExpenseID == "" {
		return nil
	}

	if err := w.exporter.DeleteExpense(ctx, msg.ExpenseID); err != nil {
		return err
	}
	if msg.Action == amqp.ActionDeleted {
		return nil
	}

	e, err := w.store.GetExpense(ctx, msg.UserID, msg.ExpenseID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted after the message was sent; a delete message follows.
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense: %w", err)
	}

	ref, err := w.exporter.AppendExpense(ctx, e)
	if err != nil {
		return err
	}
	w.logger.DebugContext(ctx, "Expense exported", log.FieldExpenseID, e.ID, "ref", ref)
	return nil
}

// ProcessStale refreshes one batch of users marked stale and returns how many
// succeeded. Failures stay marked for the next pass.
func (w *SnapshotWorker) ProcessStale(ctx context.Context) (int, error) {
	users, err := w.store.StaleUsers(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale users: %w", err)
	}
	if len(users) == 0 {
		return 0, nil
	}

	w.logger.DebugContext(ctx, "Processing stale snapshots", "count", len(users))

	var refreshed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, userID := range users {
		g.Go(func() error {
			if err := w.refresher.Refresh(gctx, userID); err != nil {
				w.failed.Add(1)
				w.logger.ErrorContext(gctx, "Failed to refresh snapshot", log.FieldUserID, userID, log.FieldError, err)
				return nil
			}
			refreshed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(refreshed.Load()), err
	}
	return int(refreshed.Load()), ctx.Err()
}

// Stats reports handled and failed work since start.
func (w *SnapshotWorker) Stats() (processed, failed int64) {
	return w.processed.Load(), w.failed.Load()
}
