package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income    CategoryType = "Income"
	Expense   CategoryType = "Expense"
	Asset     CategoryType = "Asset"
	Liability CategoryType = "Liability"
	Equity    CategoryType = "Equity"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

type (
	// CategoryType classifies a COA category. Only Income and Expense
	// participate in the profit/loss report.
	CategoryType string

	Date struct {
		time.Time
	}

	// Category is a master COA category (e.g. Salary, Meal Expense).
	Category struct {
		ID   int64
		Name string
		Type CategoryType
	}

	// Account is a chart-of-accounts entry. It belongs to exactly one
	// category; Code is the unique display key (e.g. "401").
	Account struct {
		ID         int64
		CategoryID int64
		Code       string
		Name       string
	}

	// Transaction is a single-sided ledger movement against one account:
	// exactly one of Debit and Credit is strictly positive.
	Transaction struct {
		ID          int64
		AccountID   int64
		Date        Date
		Description string
		Debit       decimal.Decimal
		Credit      decimal.Decimal
	}
)

var (
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidCategoryType = errors.New("invalid category type")
	ErrEmptyName           = errors.New("empty name")
	ErrNameTooLong         = errors.New("name too long (max 255 characters)")
	ErrEmptyCode           = errors.New("empty code")
	ErrCodeTooLong         = errors.New("code too long (max 10 characters)")
	ErrMissingCategory     = errors.New("missing category id")
	ErrMissingAccount      = errors.New("missing coa id")
	ErrEmptyDescription    = errors.New("empty description")
	ErrNegativeAmount      = errors.New("debit and credit must not be negative")
	ErrSingleSided         = errors.New("exactly one of debit or credit must be filled")
)

// ParseCategoryType maps a free-form string onto the tagged variant,
// rejecting unknown values at the boundary.
func ParseCategoryType(s string) (CategoryType, error) {
	switch CategoryType(strings.TrimSpace(s)) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	case Asset:
		return Asset, nil
	case Liability:
		return Liability, nil
	case Equity:
		return Equity, nil
	default:
		return "", ErrInvalidCategoryType
	}
}

// InProfitLoss reports whether rows of this type feed the P&L report.
func (t CategoryType) InProfitLoss() bool {
	return t == Income || t == Expense
}

func (t CategoryType) Validate() error {
	_, err := ParseCategoryType(string(t))
	return err
}

// NewDate creates a Date at UTC midnight of the given calendar day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// Year returns the calendar year.
func (d Date) Year() int {
	return d.Time.Year()
}

// Month returns the calendar month, 1-12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 255 {
		return ErrNameTooLong
	}
	return c.Type.Validate()
}

func (a Account) Validate() error {
	if a.CategoryID <= 0 {
		return ErrMissingCategory
	}
	code := strings.TrimSpace(a.Code)
	if code == "" {
		return ErrEmptyCode
	}
	if len(code) > 10 {
		return ErrCodeTooLong
	}
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 255 {
		return ErrNameTooLong
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.AccountID <= 0 {
		return ErrMissingAccount
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > 255 {
		return errors.New("description too long (max 255 characters)")
	}
	if t.Debit.IsNegative() || t.Credit.IsNegative() {
		return ErrNegativeAmount
	}
	// A movement is either all debit or all credit, never both or neither.
	if t.Debit.IsPositive() == t.Credit.IsPositive() {
		return ErrSingleSided
	}
	return nil
}
