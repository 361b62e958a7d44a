package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of expense dates.
const DateLayout = "2006-01-02"

type (
	Money struct {
		Cents int64
	}

	User struct {
		ID           string
		Name         string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	Category struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Icon  string `json:"icon"`
		Color string `json:"color"`
	}

	Expense struct {
		ID          string    `json:"id"`
		UserID      string    `json:"user_id"`
		Amount      Money     `json:"amount"`
		Category    string    `json:"category"`
		Description string    `json:"description"`
		Date        string    `json:"date"` // YYYY-MM-DD
		ReceiptURL  string    `json:"receipt_url,omitempty"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// ExpensePatch carries the fields of a partial update; nil means unchanged.
	ExpensePatch struct {
		Amount      *Money
		Category    *string
		Description *string
		Date        *string
		ReceiptURL  *string
	}

	// InsightSnapshot is a precomputed insights document stored per user.
	InsightSnapshot struct {
		UserID      string
		Profile     string
		Payload     []byte
		GeneratedAt time.Time
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyCategory    = errors.New("empty category")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrNotFound         = errors.New("not found")
	ErrEmailTaken       = errors.New("email already registered")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrEmptyName        = errors.New("empty name")
	ErrPasswordTooShort = errors.New("password too short")
)

// MinPasswordLength is the minimum length accepted for new passwords.
const MinPasswordLength = 6

// DefaultCategories is the taxonomy seeded on first use.
var DefaultCategories = []Category{
	{Name: "Food", Icon: "restaurant", Color: "#FF6B6B"},
	{Name: "Transport", Icon: "directions_car", Color: "#4ECDC4"},
	{Name: "Shopping", Icon: "shopping_bag", Color: "#95E1D3"},
	{Name: "Entertainment", Icon: "movie", Color: "#F38181"},
	{Name: "Bills", Icon: "receipt", Color: "#AA96DA"},
	{Name: "Healthcare", Icon: "local_hospital", Color: "#FCBAD3"},
	{Name: "Education", Icon: "school", Color: "#A8D8EA"},
	{Name: "Other", Icon: "more_horiz", Color: "#FFD93D"},
}

// ValidateDate checks that s is a calendar date in YYYY-MM-DD form.
func ValidateDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// MonthKey returns the calendar month of the expense, the first seven
// characters (runes) of its date. Shorter dates are returned whole.
func (e Expense) MonthKey() string {
	n := 0
	for i := range e.Date {
		if n == 7 {
			return e.Date[:i]
		}
		n++
	}
	return e.Date
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := ValidateDate(e.Date); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if len(e.Description) > 200 {
		return ErrDescriptionLong
	}
	return nil
}

// Apply returns a copy of e with the non-nil patch fields set.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.ReceiptURL != nil {
		e.ReceiptURL = *p.ReceiptURL
	}
	return e
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Amount == nil && p.Category == nil && p.Description == nil && p.Date == nil && p.ReceiptURL == nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	at := strings.Index(u.Email, "@")
	if at < 1 || at == len(u.Email)-1 || strings.ContainsAny(u.Email, " \t\n") {
		return ErrInvalidEmail
	}
	return nil
}
