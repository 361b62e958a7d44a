package memory

import (
	"context"
	"fmt"
	"sync"

	"spendwise/internal/core"
	ports "spendwise/internal/sheets"
)

// Exporter keeps exported rows in memory, in append order.
type Exporter struct {
	mu   sync.Mutex
	rows []core.Expense
	seq  int
}

var _ ports.ExpenseExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// AppendExpense stores the expense and returns a synthetic row reference.
func (x *Exporter) AppendExpense(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.rows = append(x.rows, e)
	x.seq++
	return fmt.Sprintf("mem:%d", x.seq), nil
}

func (x *Exporter) DeleteExpense(_ context.Context, expenseID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	kept := x.rows[:0]
	for _, e := range x.rows {
		if e.ID != expenseID {
			kept = append(kept, e)
		}
	}
	x.rows = kept
	return nil
}

// Rows returns a copy of the exported expenses.
func (x *Exporter) Rows() []core.Expense {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]core.Expense(nil), x.rows...)
}
