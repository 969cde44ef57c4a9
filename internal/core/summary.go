package core

import "fmt"

const (
	Monthly Bucket = "monthly"
	Yearly  Bucket = "yearly"
)

// Bucket is the time-grouping granularity for trend aggregation.
type Bucket string

func (b Bucket) Valid() bool {
	return b == Monthly || b == Yearly
}

// Summary holds the aggregate totals over a filtered transaction set.
type Summary struct {
	TotalIncome   Money `json:"totalIncome"`
	TotalExpenses Money `json:"totalExpenses"`
	Balance       Money `json:"balance"`
}

// CategoryTotal is an amount pair aggregated by category name.
// Total is always Income + Expense.
type CategoryTotal struct {
	Category string `json:"category"`
	Income   Money  `json:"income"`
	Expense  Money  `json:"expense"`
	Total    Money  `json:"total"`
}

// TrendPoint is a time-bucketed amount pair. Period is a zero-padded
// YYYY-MM or YYYY key, so lexicographic order is chronological order.
type TrendPoint struct {
	Period  string `json:"period"`
	Income  Money  `json:"income"`
	Expense Money  `json:"expense"`
}

// PeriodKey returns the bucket key for the date. The zero date has no
// key and must be skipped by callers.
func (d Date) PeriodKey(b Bucket) string {
	if d.IsZero() {
		return ""
	}
	if b == Yearly {
		return fmt.Sprintf("%04d", d.Year())
	}
	return fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month()))
}
