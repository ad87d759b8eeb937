package analytics

import (
	"github.com/shopspring/decimal"

	"bugetar/internal/core"
)

// Spending profiles assigned by ClassifyBehavior.
const (
	ProfileSaver    = "Saver"
	ProfileSpender  = "Spender"
	ProfileBalanced = "Balanced"
	ProfileUnknown  = "Unknown"
)

// essentialCategories marks spend that keeps the lights on. Everything else
// counts as discretionary for the purposes of profiling.
var essentialCategories = map[string]bool{
	"Rent":      true,
	"Utilities": true,
	"Transport": true,
	"Food":      true,
	"Health":    true,
}

// BehaviorProfile summarizes how a user's spending splits between essential
// and discretionary categories.
type BehaviorProfile struct {
	Profile           string          `json:"profile"`
	EssentialTotal    decimal.Decimal `json:"essentialTotal"`
	NonEssentialTotal decimal.Decimal `json:"nonEssentialTotal"`
	EssentialShare    float64         `json:"essentialShare"`
}

// ClassifyBehavior labels the spending pattern in txs. More than 60% of
// expenses on essentials makes a Saver, more than 50% on non-essentials a
// Spender, anything in between Balanced. No expenses yields Unknown.
func ClassifyBehavior(txs []core.Transaction) BehaviorProfile {
	var essential, nonEssential decimal.Decimal
	for _, t := range expensesOnly(txs) {
		if essentialCategories[t.Category] {
			essential = essential.Add(t.Amount)
		} else {
			nonEssential = nonEssential.Add(t.Amount)
		}
	}

	total := essential.Add(nonEssential)
	profile := BehaviorProfile{
		Profile:           ProfileUnknown,
		EssentialTotal:    essential,
		NonEssentialTotal: nonEssential,
	}
	if total.IsZero() {
		return profile
	}

	share := essential.Div(total).InexactFloat64()
	profile.EssentialShare = share
	switch {
	case share > 0.6:
		profile.Profile = ProfileSaver
	case 1-share > 0.5:
		profile.Profile = ProfileSpender
	default:
		profile.Profile = ProfileBalanced
	}
	return profile
}
