package sheets

import (
	"context"

	"spendwise/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseExporter mirrors expenses into an external spreadsheet, one row
	// per expense keyed by expense id.
	ExpenseExporter interface {
		AppendExpense(ctx context.Context, e core.Expense) (rowRef string, err error)
		// DeleteExpense removes the row for expenseID. A missing row is not an error.
		DeleteExpense(ctx context.Context, expenseID string) error
	}
)

// Header is the first row of the export sheet.
var Header = []any{"ID", "Date", "Month", "Category", "Description", "Amount", "User"}

// Row renders an expense in Header order.
func Row(e core.Expense) []any {
	return []any{e.ID, e.Date, e.MonthKey(), e.Category, e.Description, e.Amount.Euros(), e.UserID}
}
