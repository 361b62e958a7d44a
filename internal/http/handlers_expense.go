package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/storage"
)

type createExpenseRequest struct {
	Amount      *core.Money `json:"amount"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	ReceiptURL  *string     `json:"receipt_url"`
}

type updateExpenseRequest struct {
	Amount      *core.Money `json:"amount"`
	Category    *string     `json:"category"`
	Description *string     `json:"description"`
	Date        *string     `json:"date"`
	ReceiptURL  *string     `json:"receipt_url"`
}

func (req updateExpenseRequest) patch() core.ExpensePatch {
	p := core.ExpensePatch{
		Amount:      req.Amount,
		Category:    sanitizePtr(req.Category),
		Description: sanitizePtr(req.Description),
		Date:        sanitizePtr(req.Date),
		ReceiptURL:  sanitizePtr(req.ReceiptURL),
	}
	return p
}

// expenseError maps validation and lookup failures to a status and message.
func expenseError(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "Expense not found"
	case errors.Is(err, core.ErrInvalidDate):
		return http.StatusUnprocessableEntity, "Date must be in YYYY-MM-DD format"
	case errors.Is(err, core.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "Amount must be a non-negative number"
	case errors.Is(err, core.ErrEmptyCategory):
		return http.StatusUnprocessableEntity, "Category is required"
	case errors.Is(err, core.ErrDescriptionLong):
		return http.StatusUnprocessableEntity, "Description too long (max 200 characters)"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (s *Server) writeExpenseError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, detail := expenseError(err)
	if status == http.StatusInternalServerError {
		u, _ := auth.UserFrom(r.Context())
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Expense operation failed",
			log.FieldOperation, op,
			log.FieldUserID, u.ID,
			log.FieldError, err)
	}
	writeError(w, status, detail)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Categories.List(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "List categories failed", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())

	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			writeError(w, http.StatusUnprocessableEntity, "Amount must be a non-negative number")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Amount == nil {
		writeError(w, http.StatusUnprocessableEntity, "Amount is required")
		return
	}

	draft := core.Expense{
		Amount:      *req.Amount,
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		Date:        sanitizeInput(req.Date),
	}
	if req.ReceiptURL != nil {
		draft.ReceiptURL = sanitizeInput(*req.ReceiptURL)
	}

	e, err := s.deps.Expenses.Create(r.Context(), u.ID, draft)
	if err != nil {
		s.writeExpenseError(w, r, "create", err)
		return
	}
	s.appMetrics.incExpenses()
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())

	limit := storage.MaxListLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = storage.ClampLimit(n)
	}

	list, err := s.deps.Expenses.List(r.Context(), u.ID, limit)
	if err != nil {
		s.writeExpenseError(w, r, "list", err)
		return
	}
	if list == nil {
		list = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())

	e, err := s.deps.Expenses.Get(r.Context(), u.ID, r.PathValue("id"))
	if err != nil {
		s.writeExpenseError(w, r, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())

	var req updateExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			writeError(w, http.StatusUnprocessableEntity, "Amount must be a non-negative number")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	e, err := s.deps.Expenses.Update(r.Context(), u.ID, r.PathValue("id"), req.patch())
	if err != nil {
		s.writeExpenseError(w, r, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())

	if err := s.deps.Expenses.Delete(r.Context(), u.ID, r.PathValue("id")); err != nil {
		s.writeExpenseError(w, r, "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Expense deleted successfully"})
}
