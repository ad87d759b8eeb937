package analytics

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"bugetar/internal/core"
)

// DefaultNonReducible lists the fixed obligations the optimizer never
// proposes cutting. Callers may pass their own set.
var DefaultNonReducible = []string{"Rent", "Transport", "Utilities"}

// maxGoalSolutions caps how many qualifying subsets the backtracking search
// records before stopping. The cap and the early exit on reaching the target
// are the only bounds on an otherwise exponential search.
const maxGoalSolutions = 10

// Suggestion is one proposed reduction. Greedy plans fill Category and Cut;
// goal paths additionally carry the contributing transactions.
type Suggestion struct {
	Category     string             `json:"category"`
	Cut          decimal.Decimal    `json:"cut"`
	Transactions []core.Transaction `json:"transactions,omitempty"`
}

// GreedyPlan proposes cuts reaching targetPercent of the total reducible
// spend. Categories are walked in descending order of spend; each cut is
// capped at the category's total, so the accumulated cut overshoots the
// target by at most the final category's contribution.
//
// A negative percentage is a caller error; a zero target or an empty
// candidate set yields an empty plan.
func GreedyPlan(txs []core.Transaction, targetPercent float64, excluded []string) ([]Suggestion, error) {
	if targetPercent < 0 {
		return nil, core.ErrInvalidTarget
	}
	if targetPercent == 0 {
		return []Suggestion{}, nil
	}

	groups := Aggregate(reducible(txs, excluded), GroupByCategory)
	if len(groups) == 0 {
		return []Suggestion{}, nil
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Total.GreaterThan(groups[j].Total)
	})

	total := decimal.Zero
	for _, g := range groups {
		total = total.Add(g.Total)
	}
	target := total.Mul(decimal.NewFromFloat(targetPercent / 100)).Round(2)

	saved := decimal.Zero
	suggestions := make([]Suggestion, 0, len(groups))
	for _, g := range groups {
		if saved.GreaterThanOrEqual(target) {
			break
		}
		cut := decimal.Min(g.Total, target.Sub(saved))
		suggestions = append(suggestions, Suggestion{Category: g.Key, Cut: cut.Round(2)})
		saved = saved.Add(cut)
	}
	return suggestions, nil
}

// GoalPaths explores subsets of reducible expense transactions whose amounts
// sum to at least the absolute target, e.g. the cost of a planned purchase.
// Candidates are sorted descending by amount so qualifying prefixes appear
// early; recursion preserves index order to avoid duplicate permutations and
// prunes a branch the moment its running sum reaches the target. At most
// maxGoalSolutions subsets are recorded.
//
// The search is the only analytics call with real CPU cost, so it honors ctx:
// on cancellation it returns the solutions recorded so far together with the
// context's error.
func GoalPaths(ctx context.Context, txs []core.Transaction, target decimal.Decimal, excluded []string) ([][]core.Transaction, error) {
	if target.IsNegative() {
		return nil, core.ErrInvalidTarget
	}
	if target.IsZero() {
		return [][]core.Transaction{}, nil
	}

	candidates := reducible(txs, excluded)
	if len(candidates) == 0 {
		return [][]core.Transaction{}, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Amount.GreaterThan(candidates[j].Amount)
	})

	search := &goalSearch{candidates: candidates, target: target}
	err := search.run(ctx, 0, decimal.Zero)
	return search.solutions, err
}

// GoalPlan returns the recorded solution with the smallest total, i.e. the
// path that reaches the target with the least spending sacrificed. An empty
// slice means no subset reaches the target.
func GoalPlan(ctx context.Context, txs []core.Transaction, target decimal.Decimal, excluded []string) ([]core.Transaction, error) {
	solutions, err := GoalPaths(ctx, txs, target, excluded)
	if err != nil && len(solutions) == 0 {
		return nil, err
	}

	var best []core.Transaction
	bestSum := decimal.Zero
	for _, s := range solutions {
		sum := pathTotal(s)
		if best == nil || sum.LessThan(bestSum) {
			best = s
			bestSum = sum
		}
	}
	if best == nil {
		return []core.Transaction{}, err
	}
	return best, err
}

type goalSearch struct {
	candidates []core.Transaction
	target     decimal.Decimal
	path       []core.Transaction
	solutions  [][]core.Transaction
}

func (s *goalSearch) run(ctx context.Context, index int, sum decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sum.GreaterThanOrEqual(s.target) {
		s.solutions = append(s.solutions, append([]core.Transaction(nil), s.path...))
		return nil
	}
	if index >= len(s.candidates) || len(s.solutions) >= maxGoalSolutions {
		return nil
	}

	// Include candidates[index].
	s.path = append(s.path, s.candidates[index])
	if err := s.run(ctx, index+1, sum.Add(s.candidates[index].Amount)); err != nil {
		return err
	}
	s.path = s.path[:len(s.path)-1]

	// Exclude candidates[index].
	return s.run(ctx, index+1, sum)
}

func pathTotal(path []core.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range path {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// reducible keeps expense transactions outside the excluded category set.
// A nil excluded slice means DefaultNonReducible.
func reducible(txs []core.Transaction, excluded []string) []core.Transaction {
	if excluded == nil {
		excluded = DefaultNonReducible
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, c := range excluded {
		skip[c] = struct{}{}
	}

	out := make([]core.Transaction, 0, len(txs))
	for _, t := range expensesOnly(txs) {
		if _, ok := skip[t.Category]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}
