package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Money is a monetary amount in cents of the canonical currency (USD).
	Money struct {
		Cents int64
	}

	// User is an account holder. ID is a UUID string.
	User struct {
		ID        string
		Email     string
		Name      string
		Currency  string // display currency code, e.g. "USD"
		Theme     string // "light", "dark" or "system"
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Category is a user-owned spending bucket with a monthly budget.
	Category struct {
		ID            int64
		UserID        string
		Name          string
		IsDefault     bool
		MonthlyBudget Money
		Icon          string
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	// Transaction is a single recorded expense.
	Transaction struct {
		ID           int64
		UserID       string
		CategoryID   int64
		CategoryName string // populated on month-scoped reads
		Amount       Money
		Date         time.Time
		IsRecurring  bool
		Notes        string
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	// CategorySeed describes a category created automatically at signup.
	CategorySeed struct {
		Name string
		Icon string
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDate       = errors.New("invalid date")
	ErrEmptyName         = errors.New("empty name")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrPasswordTooShort  = errors.New("password must be at least 6 characters")
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateCategory = errors.New("category already exists")
	ErrCategoryInUse     = errors.New("category has transactions")
	ErrCategoryDefault   = errors.New("default category cannot be deleted")
)

// DefaultCategories are created for every new user with a zero budget.
var DefaultCategories = []CategorySeed{
	{Name: "Food & Groceries", Icon: "utensils"},
	{Name: "Rent / EMI", Icon: "home"},
	{Name: "Utilities", Icon: "zap"},
	{Name: "Transport", Icon: "car"},
	{Name: "Entertainment", Icon: "film"},
	{Name: "Health & Medical", Icon: "heart"},
	{Name: "Shopping", Icon: "shopping-bag"},
	{Name: "Savings", Icon: "piggy-bank"},
	{Name: "Others", Icon: "more-horizontal"},
}

const (
	// MinPasswordLength is enforced at signup and password change.
	MinPasswordLength = 6

	// MaxNotesLength bounds free-text transaction notes.
	MaxNotesLength = 500

	// DefaultTheme for new accounts.
	DefaultTheme = "system"
)

// ValidThemes are the accepted values for User.Theme.
var ValidThemes = []string{"light", "dark", "system"}

// ValidateTheme reports whether theme is an accepted value.
func ValidateTheme(theme string) bool {
	for _, t := range ValidThemes {
		if t == theme {
			return true
		}
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateEmail performs the minimal structural check the signup form needs.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 || !strings.Contains(email[at+1:], ".") {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword enforces the signup password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("category name too long (max 100 characters)")
	}
	if c.MonthlyBudget.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.CategoryID <= 0 {
		return errors.New("category is required")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if len(t.Notes) > MaxNotesLength {
		return errors.New("notes too long (max 500 characters)")
	}
	return nil
}
