package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"bugetar/internal/core"
)

// MonthPattern names the dominant expense category of a month.
type MonthPattern struct {
	Month    string          `json:"month"`
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// MonthlyPatterns returns, for each month with expenses, the category that
// absorbed the most spend together with its total. Months come back newest
// first; within a month, category ties resolve to the first one recorded.
func MonthlyPatterns(txs []core.Transaction) []MonthPattern {
	totals := make(map[string]map[string]decimal.Decimal)
	firstSeen := make(map[string]map[string]int)
	seq := 0
	for _, t := range expensesOnly(txs) {
		ym := t.YearMonth()
		if totals[ym] == nil {
			totals[ym] = make(map[string]decimal.Decimal)
			firstSeen[ym] = make(map[string]int)
		}
		if _, ok := firstSeen[ym][t.Category]; !ok {
			firstSeen[ym][t.Category] = seq
		}
		totals[ym][t.Category] = totals[ym][t.Category].Add(t.Amount)
		seq++
	}

	months := make([]string, 0, len(totals))
	for ym := range totals {
		months = append(months, ym)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))

	patterns := make([]MonthPattern, 0, len(months))
	for _, ym := range months {
		var top string
		var topTotal decimal.Decimal
		for category, total := range totals[ym] {
			switch cmp := total.Cmp(topTotal); {
			case top == "" || cmp > 0:
				top, topTotal = category, total
			case cmp == 0 && firstSeen[ym][category] < firstSeen[ym][top]:
				top, topTotal = category, total
			}
		}
		patterns = append(patterns, MonthPattern{Month: ym, Category: top, Total: topTotal})
	}
	return patterns
}
