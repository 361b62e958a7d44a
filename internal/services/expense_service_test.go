package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ExpenseChangedMessage
	err  error
}

func (p *recordingPublisher) PublishExpenseChanged(_ context.Context, msg *amqp.ExpenseChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Action
	}
	return out
}

type recordingInvalidator struct {
	users []string
}

func (r *recordingInvalidator) Invalidate(userID string) {
	r.users = append(r.users, userID)
}

func draft(cents int64, category, date string) core.Expense {
	return core.Expense{Amount: core.Money{Cents: cents}, Category: category, Description: "coffee", Date: date}
}

func TestExpenseService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	inv := &recordingInvalidator{}
	svc := NewExpenseService(store, pub, inv, nil)

	created, err := svc.Create(ctx, "u1", draft(450, "Food", "2024-03-05"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "u1", created.UserID)
	assert.False(t, created.CreatedAt.IsZero())

	desc := "flat white"
	updated, err := svc.Update(ctx, "u1", created.ID, core.ExpensePatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "flat white", updated.Description)
	assert.Equal(t, int64(450), updated.Amount.Cents, "absent fields are kept")

	got, err := svc.Get(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "flat white", got.Description)

	list, err := svc.List(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, "u1", created.ID))
	_, err = svc.Get(ctx, "u1", created.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Equal(t, []string{amqp.ActionCreated, amqp.ActionUpdated, amqp.ActionDeleted}, pub.actions())
	assert.Equal(t, []string{"u1", "u1", "u1"}, inv.users)

	stale, err := store.StaleUsers(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, stale)
}

func TestExpenseService_Validation(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := NewExpenseService(memory.New(), pub, nil, nil)

	_, err := svc.Create(ctx, "u1", draft(-1, "Food", "2024-03-05"))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = svc.Create(ctx, "u1", draft(100, "Food", "05/03/2024"))
	assert.ErrorIs(t, err, core.ErrInvalidDate)

	created, err := svc.Create(ctx, "u1", draft(100, "Food", "2024-03-05"))
	require.NoError(t, err)

	empty := ""
	_, err = svc.Update(ctx, "u1", created.ID, core.ExpensePatch{Category: &empty})
	assert.ErrorIs(t, err, core.ErrEmptyCategory)

	assert.Len(t, pub.actions(), 1, "rejected writes publish nothing")
}

func TestExpenseService_ScopedToOwner(t *testing.T) {
	ctx := context.Background()
	svc := NewExpenseService(memory.New(), nil, nil, nil)

	created, err := svc.Create(ctx, "u1", draft(100, "Food", "2024-03-05"))
	require.NoError(t, err)

	_, err = svc.Get(ctx, "u2", created.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = svc.Update(ctx, "u2", created.ID, core.ExpensePatch{})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "u2", created.ID), core.ErrNotFound)
}

func TestExpenseService_EmptyPatch(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := NewExpenseService(memory.New(), pub, nil, nil)

	created, err := svc.Create(ctx, "u1", draft(100, "Food", "2024-03-05"))
	require.NoError(t, err)

	got, err := svc.Update(ctx, "u1", created.ID, core.ExpensePatch{})
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, []string{amqp.ActionCreated}, pub.actions())
}

func TestExpenseService_PublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewExpenseService(memory.New(), pub, nil, nil)

	_, err := svc.Create(context.Background(), "u1", draft(100, "Food", "2024-03-05"))
	assert.NoError(t, err)
}

func TestExpenseService_AuditsEveryChange(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf, Level: slog.LevelInfo, Format: log.FormatJSON})
	svc := NewExpenseService(memory.New(), nil, nil, logger)

	created, err := svc.Create(ctx, "u1", draft(450, "Food", "2024-03-05"))
	require.NoError(t, err)
	amount := core.Money{Cents: 700}
	_, err = svc.Update(ctx, "u1", created.ID, core.ExpensePatch{Amount: &amount})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "u1", created.ID))

	var ops []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "Expense deleted" {
			assert.Equal(t, "Food", entry[log.FieldCategory])
			assert.Equal(t, float64(700), entry[log.FieldAmountCents])
			assert.Equal(t, created.ID, entry[log.FieldExpenseID])
		}
		if op, ok := entry[log.FieldOperation].(string); ok && strings.HasPrefix(entry["msg"].(string), "Expense ") {
			ops = append(ops, op)
		}
	}
	assert.Equal(t, []string{log.OpCreate, log.OpUpdate, log.OpDelete}, ops)
}
