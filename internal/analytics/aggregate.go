// Package analytics implements the derived-analytics pipeline: aggregation,
// budget optimization, trend and forecast computation, anomaly detection,
// behavior profiling and monthly pattern extraction.
//
// Every function is a pure, synchronous transform over a transaction slice
// the caller has already scoped with core.VisibleTransactions. Nothing here
// performs I/O or keeps state between calls; identical input yields identical
// output. Only the backtracking goal search accepts a context, because it is
// the one computation with non-trivial CPU cost.
package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"bugetar/internal/core"
)

const (
	GroupByCategory         GroupBy = "category"
	GroupByMonth            GroupBy = "month"
	GroupByCategoryAndMonth GroupBy = "categoryAndMonth"
)

// DefaultTopN bounds the top-category ranking when the caller does not ask
// for a specific size.
const DefaultTopN = 5

type (
	GroupBy string

	// Group is one aggregation bucket. Key depends on the grouping: the
	// category name, the "YYYY-MM" month, or "category|YYYY-MM".
	Group struct {
		Key   string          `json:"key"`
		Total decimal.Decimal `json:"total"`
		Count int             `json:"count"`
	}

	// Summary carries the request-level totals next to the per-group rows.
	Summary struct {
		Total decimal.Decimal `json:"total"`
		Count int             `json:"count"`
		Mean  decimal.Decimal `json:"mean"`
	}
)

// Aggregate groups transactions and sums their amounts. Iteration order is
// the insertion order of each key's first occurrence, which keeps the output
// deterministic without forcing a sort on callers that do not want one.
func Aggregate(txs []core.Transaction, groupBy GroupBy) []Group {
	index := make(map[string]int)
	groups := make([]Group, 0)

	for _, t := range txs {
		key := groupKey(t, groupBy)
		i, ok := index[key]
		if !ok {
			index[key] = len(groups)
			groups = append(groups, Group{Key: key})
			i = len(groups) - 1
		}
		groups[i].Total = groups[i].Total.Add(t.Amount)
		groups[i].Count++
	}
	return groups
}

// Summarize computes the overall total, count and arithmetic mean. The mean
// is rounded to two places; an empty slice yields a zero summary.
func Summarize(txs []core.Transaction) Summary {
	s := Summary{Total: decimal.Zero, Mean: decimal.Zero}
	for _, t := range txs {
		s.Total = s.Total.Add(t.Amount)
		s.Count++
	}
	if s.Count > 0 {
		s.Mean = s.Total.Div(decimal.NewFromInt(int64(s.Count))).Round(2)
	}
	return s
}

// TopCategories returns the n largest categories by summed amount. Ties keep
// the category encountered first in input order. n <= 0 falls back to
// DefaultTopN.
func TopCategories(txs []core.Transaction, n int) []Group {
	if n <= 0 {
		n = DefaultTopN
	}
	groups := Aggregate(txs, GroupByCategory)
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Total.GreaterThan(groups[j].Total)
	})
	if len(groups) > n {
		groups = groups[:n]
	}
	return groups
}

func groupKey(t core.Transaction, groupBy GroupBy) string {
	switch groupBy {
	case GroupByMonth:
		return t.YearMonth()
	case GroupByCategoryAndMonth:
		return t.Category + "|" + t.YearMonth()
	default:
		return t.Category
	}
}

// expensesOnly keeps expense transactions, preserving order.
func expensesOnly(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Type == core.Expense {
			out = append(out, t)
		}
	}
	return out
}
