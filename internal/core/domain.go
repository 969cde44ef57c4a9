package core

import (
	"errors"
	"sort"
	"strings"
	"time"
)

const (
	Income  Type = "income"
	Expense Type = "expense"
)

const (
	FilterAll     TypeFilter = "all"
	FilterIncome  TypeFilter = "income"
	FilterExpense TypeFilter = "expense"
)

type (
	// Type is the closed income/expense tag. The sign of an amount is
	// carried here, never by a negative amount.
	Type string

	// TypeFilter restricts a collection by transaction type.
	TypeFilter string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a single dated income or expense record. Instances
	// are never mutated after creation; they are only added and removed.
	Transaction struct {
		ID          int64  `json:"id"`
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
		Type        Type   `json:"type"`
		Category    string `json:"category"`
		Date        Date   `json:"date"`
	}

	// Filters is the session-only restriction applied before aggregation.
	// An empty category set means no category restriction.
	Filters struct {
		Categories []string   `json:"categories"`
		Type       TypeFilter `json:"type"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidDate      = errors.New("invalid date")
	ErrFutureDate       = errors.New("date cannot be in the future")
	ErrEmptyCategory    = errors.New("empty category")
	ErrShortDescription = errors.New("description too short (min 3 characters)")
	ErrLongDescription  = errors.New("description too long (max 100 characters)")
	ErrDuplicateID      = errors.New("duplicate transaction id")
)

const dateLayout = "2006-01-02"

// NewDate creates a new Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts a YYYY-MM-DD string. A malformed date decodes to
// the zero Date instead of failing: persisted blobs must never crash a
// load, and aggregation skips zero dates downstream.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	// Tolerate a full timestamp by keeping the date part only.
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		d.Time = time.Time{}
		return nil
	}
	d.Time = t
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Type) Valid() bool {
	return t == Income || t == Expense
}

func (f TypeFilter) Valid() bool {
	return f == FilterAll || f == FilterIncome || f == FilterExpense
}

// Matches reports whether a transaction type passes the filter.
func (f TypeFilter) Matches(t Type) bool {
	return f == FilterAll || string(f) == string(t)
}

// Validate checks the shape invariants enforced at creation time.
// Historic records loaded from a persisted blob are not re-validated.
func (t Transaction) Validate() error {
	desc := strings.TrimSpace(t.Description)
	if len(desc) < 3 {
		return ErrShortDescription
	}
	if len(desc) > 100 {
		return ErrLongDescription
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Date.After(Today().Time) {
		return ErrFutureDate
	}
	return nil
}

// Match reports whether a transaction passes both the category and the
// type restriction.
func (f Filters) Match(t Transaction) bool {
	if !f.Type.Matches(t.Type) {
		return false
	}
	if len(f.Categories) == 0 {
		return true
	}
	for _, c := range f.Categories {
		if c == t.Category {
			return true
		}
	}
	return false
}

// Fingerprint returns a stable key for the filter state, used by the
// pipeline's memoization. Category order does not affect the key.
func (f Filters) Fingerprint() string {
	if len(f.Categories) == 0 {
		return string(f.Type)
	}
	cats := append([]string(nil), f.Categories...)
	sort.Strings(cats)
	return string(f.Type) + "|" + strings.Join(cats, "\x1f")
}

// DefaultFilters is the filter state at session start: all types, no
// category restriction.
func DefaultFilters() Filters {
	return Filters{Type: FilterAll}
}
