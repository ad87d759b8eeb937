package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"bugetar/internal/core"
)

const (
	TrendUp   Direction = "up"
	TrendDown Direction = "down"
	TrendFlat Direction = "flat"
)

// forecastWindow is how many trailing calendar months feed the next-period
// forecast.
const forecastWindow = 3

type (
	Direction string

	// TrendEntry reports a category's month-over-month movement and its
	// total for the whole observed period.
	TrendEntry struct {
		Category  string          `json:"category"`
		Direction Direction       `json:"direction"`
		Total     decimal.Decimal `json:"total"`
	}

	// CategoryForecast predicts a category's next-month spend from a
	// least-squares fit over its monthly totals.
	CategoryForecast struct {
		Category  string  `json:"category"`
		NextMonth float64 `json:"nextMonth"`
		ChangePct float64 `json:"changePct"`
	}
)

// Trends classifies each category's movement between its two most recent
// months. A category observed in a single month is still reported, as flat.
// Entries come back sorted by period total descending.
func Trends(txs []core.Transaction) []TrendEntry {
	byCategory := monthlyTotals(expensesOnly(txs))

	entries := make([]TrendEntry, 0, len(byCategory.order))
	for _, category := range byCategory.order {
		months := byCategory.months[category]
		totals := byCategory.totals[category]

		direction := TrendFlat
		if len(months) >= 2 {
			last := totals[months[len(months)-1]]
			prev := totals[months[len(months)-2]]
			switch last.Cmp(prev) {
			case 1:
				direction = TrendUp
			case -1:
				direction = TrendDown
			}
		}

		total := decimal.Zero
		for _, m := range months {
			total = total.Add(totals[m])
		}
		entries = append(entries, TrendEntry{Category: category, Direction: direction, Total: total})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Total.GreaterThan(entries[j].Total)
	})
	return entries
}

// ForecastNext estimates next month's overall expense as the mean of up to
// the last three calendar months of expense totals. Fewer months average
// over what exists; no months forecast zero.
func ForecastNext(txs []core.Transaction) decimal.Decimal {
	groups := Aggregate(expensesOnly(txs), GroupByMonth)
	if len(groups) == 0 {
		return decimal.Zero
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })

	start := 0
	if len(groups) > forecastWindow {
		start = len(groups) - forecastWindow
	}
	window := groups[start:]

	sum := decimal.Zero
	for _, g := range window {
		sum = sum.Add(g.Total)
	}
	return sum.Div(decimal.NewFromInt(int64(len(window)))).Round(2)
}

// CategoryForecasts fits a least-squares line through each category's monthly
// totals and extrapolates one month ahead. Categories with fewer than two
// observed months carry no slope information and are skipped.
func CategoryForecasts(txs []core.Transaction) []CategoryForecast {
	byCategory := monthlyTotals(expensesOnly(txs))

	forecasts := make([]CategoryForecast, 0, len(byCategory.order))
	for _, category := range byCategory.order {
		months := byCategory.months[category]
		if len(months) < 2 {
			continue
		}
		series := make([]float64, len(months))
		for i, m := range months {
			series[i] = byCategory.totals[category][m].InexactFloat64()
		}

		slope, intercept := linearFit(series)
		predicted := slope*float64(len(series)) + intercept
		last := series[len(series)-1]

		change := 0.0
		if last != 0 {
			change = (predicted - last) / last * 100
		}
		forecasts = append(forecasts, CategoryForecast{
			Category:  category,
			NextMonth: predicted,
			ChangePct: change,
		})
	}
	return forecasts
}

// linearFit returns the least-squares slope and intercept for y-values at
// x = 0, 1, 2, ...
func linearFit(points []float64) (slope, intercept float64) {
	n := float64(len(points))
	if n < 2 {
		return 0, 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range points {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// categoryMonths holds per-category monthly totals with deterministic
// ordering: categories in first-occurrence order, months sorted ascending.
type categoryMonths struct {
	order  []string
	months map[string][]string
	totals map[string]map[string]decimal.Decimal
}

func monthlyTotals(txs []core.Transaction) categoryMonths {
	cm := categoryMonths{
		months: make(map[string][]string),
		totals: make(map[string]map[string]decimal.Decimal),
	}
	for _, t := range txs {
		month := t.YearMonth()
		if _, ok := cm.totals[t.Category]; !ok {
			cm.order = append(cm.order, t.Category)
			cm.totals[t.Category] = make(map[string]decimal.Decimal)
		}
		if _, ok := cm.totals[t.Category][month]; !ok {
			cm.months[t.Category] = append(cm.months[t.Category], month)
		}
		cm.totals[t.Category][month] = cm.totals[t.Category][month].Add(t.Amount)
	}
	for _, months := range cm.months {
		sort.Strings(months)
	}
	return cm
}
