package services

import (
	"context"
	"fmt"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/storage"

	"github.com/google/uuid"
)

// Publisher sends expense change events. *amqp.Client implements it.
type Publisher interface {
	PublishExpenseChanged(ctx context.Context, msg *amqp.ExpenseChangedMessage) error
}

// Invalidator drops derived data cached for a user.
type Invalidator interface {
	Invalidate(userID string)
}

// ExpenseStore is what the expense service needs from storage.
type ExpenseStore interface {
	storage.ExpenseStore
	MarkStale(ctx context.Context, userID string) error
}

// ExpenseService orchestrates expense operations across storage and AMQP
type ExpenseService struct {
	store       ExpenseStore
	publisher   Publisher
	invalidator Invalidator
	logger      *log.Logger
	audit       *log.StructuredLogger
	now         func() time.Time
}

// NewExpenseService wires the service. publisher and invalidator may be nil.
func NewExpenseService(store ExpenseStore, publisher Publisher, invalidator Invalidator, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExpenseService{
		store:       store,
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger.WithComponent(log.ComponentExpense),
		audit:       log.NewStructuredLogger(logger),
		now:         time.Now,
	}
}

// Create assigns an id and timestamp, saves the expense and announces it.
func (s *ExpenseService) Create(ctx context.Context, userID string, draft core.Expense) (core.Expense, error) {
	e := draft
	e.ID = uuid.NewString()
	e.UserID = userID
	e.CreatedAt = s.now()
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	if err := s.store.CreateExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.audit.LogExpenseChange(ctx, log.OpCreate, userID, e.ID, e.Amount.Cents, e.Category)
	s.changed(ctx, userID, e.ID, amqp.ActionCreated)
	return e, nil
}

func (s *ExpenseService) List(ctx context.Context, userID string, limit int) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx, userID, limit)
}

func (s *ExpenseService) Get(ctx context.Context, userID, id string) (core.Expense, error) {
	return s.store.GetExpense(ctx, userID, id)
}

// Update applies patch to the stored expense. An empty patch returns the
// expense unchanged.
func (s *ExpenseService) Update(ctx context.Context, userID, id string, patch core.ExpensePatch) (core.Expense, error) {
	current, err := s.store.GetExpense(ctx, userID, id)
	if err != nil {
		return core.Expense{}, err
	}
	if patch.IsEmpty() {
		return current, nil
	}

	updated := patch.Apply(current)
	if err := updated.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.store.UpdateExpense(ctx, updated); err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	s.audit.LogExpenseChange(ctx, log.OpUpdate, userID, id, updated.Amount.Cents, updated.Category)
	s.changed(ctx, userID, id, amqp.ActionUpdated)
	return updated, nil
}

func (s *ExpenseService) Delete(ctx context.Context, userID, id string) error {
	prev, err := s.store.GetExpense(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		return err
	}
	s.audit.LogExpenseChange(ctx, log.OpDelete, userID, id, prev.Amount.Cents, prev.Category)
	s.changed(ctx, userID, id, amqp.ActionDeleted)
	return nil
}

// changed runs the side effects of a write. None of them fail the request:
// the expense is already saved.
func (s *ExpenseService) changed(ctx context.Context, userID, expenseID, action string) {
	lg := s.logger.With(log.FieldUserID, userID, log.FieldExpenseID, expenseID, log.FieldOperation, action)

	if s.invalidator != nil {
		s.invalidator.Invalidate(userID)
	}

	if err := s.store.MarkStale(ctx, userID); err != nil {
		lg.ErrorContext(ctx, "Failed to mark insights stale", log.FieldError, err)
	}

	if s.publisher == nil {
		lg.WarnContext(ctx, "AMQP client not available, skipping change message")
		return
	}
	if err := s.publisher.PublishExpenseChanged(ctx, amqp.NewExpenseChangedMessage(userID, expenseID, action)); err != nil {
		s.audit.LogError(ctx, "Failed to publish change message", err, log.ComponentAMQP, action,
			log.NewFields().WithExpenseRef(userID, expenseID))
	}
}
