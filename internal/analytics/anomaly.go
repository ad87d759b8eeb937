package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"bugetar/internal/core"
)

// DefaultAnomalyThreshold is the robust-score cutoff above which a
// transaction is flagged. 3.5 is the conventional cutoff for
// median/MAD-based outlier detection.
const DefaultAnomalyThreshold = 3.5

// madScale converts a median absolute deviation into a consistent estimate
// of the standard deviation for normally distributed data.
const madScale = 0.6745

// meanADScale is the analogous constant for the mean absolute deviation,
// used when the MAD degenerates to zero.
const meanADScale = 1.253314

// Anomaly flags a transaction whose amount deviates sharply from its
// category's typical spend.
type Anomaly struct {
	TransactionID string          `json:"transactionId"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	Score         float64         `json:"score"`
}

// DetectAnomalies scores each expense against its category using the robust
// median/MAD statistic: score = madScale * |amount - median| / MAD. Entries
// scoring above the threshold are returned sorted by score descending.
//
// A MAD of zero means at least half the amounts are identical and the score
// degenerates; such categories fall back to quartile fences so a constant
// category with a single spike still flags it, with the score taken from the
// mean absolute deviation instead.
//
// Income is never flagged. Categories with fewer than two expenses carry no
// dispersion estimate and are skipped, as are categories where every amount
// is identical. threshold <= 0 selects DefaultAnomalyThreshold.
func DetectAnomalies(txs []core.Transaction, threshold float64) []Anomaly {
	if threshold <= 0 {
		threshold = DefaultAnomalyThreshold
	}

	byCategory := make(map[string][]core.Transaction)
	var order []string
	for _, t := range expensesOnly(txs) {
		if _, ok := byCategory[t.Category]; !ok {
			order = append(order, t.Category)
		}
		byCategory[t.Category] = append(byCategory[t.Category], t)
	}

	var anomalies []Anomaly
	for _, category := range order {
		group := byCategory[category]
		if len(group) < 2 {
			continue
		}

		amounts := make([]float64, len(group))
		for i, t := range group {
			amounts[i] = t.Amount.InexactFloat64()
		}
		med := median(amounts)

		deviations := make([]float64, len(amounts))
		for i, a := range amounts {
			deviations[i] = math.Abs(a - med)
		}
		mad := median(deviations)
		if mad > 0 {
			for i, t := range group {
				score := madScale * deviations[i] / mad
				if score > threshold {
					anomalies = append(anomalies, Anomaly{
						TransactionID: t.ID,
						Category:      t.Category,
						Amount:        t.Amount,
						Date:          t.Date,
						Score:         score,
					})
				}
			}
			continue
		}

		meanAD := mean(deviations)
		if meanAD == 0 {
			continue
		}

		lower, upper := tukeyFences(amounts)
		for i, t := range group {
			if amounts[i] < lower || amounts[i] > upper {
				anomalies = append(anomalies, Anomaly{
					TransactionID: t.ID,
					Category:      t.Category,
					Amount:        t.Amount,
					Date:          t.Date,
					Score:         deviations[i] / (meanADScale * meanAD),
				})
			}
		}
	}

	sort.SliceStable(anomalies, func(i, j int) bool {
		return anomalies[i].Score > anomalies[j].Score
	})
	return anomalies
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// tukeyFences returns the interquartile fences [Q1 - 1.5*IQR, Q3 + 1.5*IQR]
// with linearly interpolated quartiles.
func tukeyFences(vs []float64) (lower, upper float64) {
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	return q1 - 1.5*iqr, q3 + 1.5*iqr
}

func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

// median returns the middle value of vs; it copies before sorting so the
// caller's slice stays untouched.
func median(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
