// Package pipeline derives view data from the raw transaction collection:
// the filtered subset, the category list, summary totals, and the two
// chart aggregations. Every function here is pure; the memoized wrappers
// live in memo.go.
package pipeline

import (
	"sort"

	"bilancio/internal/core"
)

// Filter returns the transactions passing the active filters. The result
// is an order-preserving subset of the input.
func Filter(all []core.Transaction, f core.Filters) []core.Transaction {
	out := make([]core.Transaction, 0, len(all))
	for _, t := range all {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Categories returns the distinct category values of the full, unfiltered
// collection, sorted ascending. It is computed from all transactions on
// purpose: narrowing the type filter must not shrink the category options.
func Categories(all []core.Transaction) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, t := range all {
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		out = append(out, t.Category)
	}
	sort.Strings(out)
	return out
}

// Summarize computes income/expense totals and their balance over the
// filtered set, so the summary reflects the active filters.
func Summarize(filtered []core.Transaction) core.Summary {
	var s core.Summary
	for _, t := range filtered {
		switch t.Type {
		case core.Income:
			s.TotalIncome.Cents += t.Amount.Cents
		case core.Expense:
			s.TotalExpenses.Cents += t.Amount.Cents
		}
	}
	s.Balance.Cents = s.TotalIncome.Cents - s.TotalExpenses.Cents
	return s
}

// CategoryChart groups the filtered transactions by category and sums
// income and expense per group. Groups are sorted descending by total;
// ties keep the insertion order of first appearance.
func CategoryChart(filtered []core.Transaction) []core.CategoryTotal {
	index := map[string]int{}
	out := make([]core.CategoryTotal, 0)
	for _, t := range filtered {
		i, ok := index[t.Category]
		if !ok {
			i = len(out)
			index[t.Category] = i
			out = append(out, core.CategoryTotal{Category: t.Category})
		}
		switch t.Type {
		case core.Income:
			out[i].Income.Cents += t.Amount.Cents
		case core.Expense:
			out[i].Expense.Cents += t.Amount.Cents
		}
	}
	for i := range out {
		out[i].Total.Cents = out[i].Income.Cents + out[i].Expense.Cents
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Total.Cents > out[b].Total.Cents
	})
	return out
}

// TimeSeries groups the filtered transactions into monthly or yearly
// buckets and sums income and expense per bucket, sorted ascending by
// period key. Transactions with a zero (unparseable) date are excluded
// from the grouping; the second return value reports how many were
// skipped so callers can flag them for diagnostics.
func TimeSeries(filtered []core.Transaction, bucket core.Bucket) ([]core.TrendPoint, int) {
	index := map[string]int{}
	out := make([]core.TrendPoint, 0)
	skipped := 0
	for _, t := range filtered {
		key := t.Date.PeriodKey(bucket)
		if key == "" {
			skipped++
			continue
		}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, core.TrendPoint{Period: key})
		}
		switch t.Type {
		case core.Income:
			out[i].Income.Cents += t.Amount.Cents
		case core.Expense:
			out[i].Expense.Cents += t.Amount.Cents
		}
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].Period < out[b].Period
	})
	return out, skipped
}
