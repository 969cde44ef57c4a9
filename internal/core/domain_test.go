package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2024, 1, 1), true},
		{NewDate(2024, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateUnmarshalTolerant(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`"2024-03-15"`, "2024-03-15"},
		{`"2024-03-15T10:30:00Z"`, "2024-03-15"}, // timestamp truncated to date part
		{`"not-a-date"`, ""},                     // malformed decodes to zero
		{`""`, ""},
		{`null`, ""},
	}
	for i, tc := range cases {
		var d Date
		if err := d.UnmarshalJSON([]byte(tc.in)); err != nil {
			t.Fatalf("case %d unexpected error: %v", i, err)
		}
		if d.String() != tc.want {
			t.Fatalf("case %d expected %q, got %q", i, tc.want, d.String())
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		ID:          1,
		Description: "Groceries",
		Amount:      Money{Cents: 4500},
		Type:        Expense,
		Category:    "Food",
		Date:        NewDate(2024, 1, 15),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'x'
	}

	future := Today()
	future.Time = future.AddDate(0, 0, 1)

	cases := []struct {
		name string
		mut  func(tx *Transaction)
		want error
	}{
		{"short description", func(tx *Transaction) { tx.Description = "ab" }, ErrShortDescription},
		{"whitespace only", func(tx *Transaction) { tx.Description = "   " }, ErrShortDescription},
		{"long description", func(tx *Transaction) { tx.Description = string(long) }, ErrLongDescription},
		{"zero amount", func(tx *Transaction) { tx.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = Money{Cents: -100} }, ErrInvalidAmount},
		{"bad type", func(tx *Transaction) { tx.Type = "transfer" }, ErrInvalidType},
		{"empty category", func(tx *Transaction) { tx.Category = " " }, ErrEmptyCategory},
		{"zero date", func(tx *Transaction) { tx.Date = Date{} }, ErrInvalidDate},
		{"future date", func(tx *Transaction) { tx.Date = future }, ErrFutureDate},
	}
	for _, tc := range cases {
		tx := good
		tc.mut(&tx)
		if err := tx.Validate(); err != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestFiltersMatch(t *testing.T) {
	tx := Transaction{Type: Expense, Category: "Food"}

	cases := []struct {
		f    Filters
		want bool
	}{
		{Filters{Type: FilterAll}, true},
		{Filters{Type: FilterExpense}, true},
		{Filters{Type: FilterIncome}, false},
		{Filters{Type: FilterAll, Categories: []string{"Food"}}, true},
		{Filters{Type: FilterAll, Categories: []string{"Rent"}}, false},
		{Filters{Type: FilterAll, Categories: []string{"Rent", "Food"}}, true},
		{Filters{Type: FilterIncome, Categories: []string{"Food"}}, false}, // both must pass
	}
	for i, tc := range cases {
		if got := tc.f.Match(tx); got != tc.want {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, got)
		}
	}
}

func TestFiltersFingerprintOrderIndependent(t *testing.T) {
	a := Filters{Type: FilterAll, Categories: []string{"Food", "Rent"}}
	b := Filters{Type: FilterAll, Categories: []string{"Rent", "Food"}}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("fingerprints differ: %q vs %q", a.Fingerprint(), b.Fingerprint())
	}

	c := Filters{Type: FilterExpense, Categories: []string{"Food", "Rent"}}
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatalf("different type filters must not share a fingerprint")
	}
}

func TestTransactionJSONRoundTrip(t *testing.T) {
	tx := Transaction{
		ID:          1717171717171,
		Description: "Monthly salary",
		Amount:      Money{Cents: 250000},
		Type:        Income,
		Category:    "Salary",
		Date:        NewDate(2024, 6, 1),
	}

	blob, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Transaction
	if err := json.Unmarshal(blob, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != tx {
		t.Fatalf("round trip mismatch:\n  in:  %+v\n  out: %+v", tx, got)
	}
}
