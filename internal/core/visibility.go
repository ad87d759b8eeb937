// Package core defines the ledger domain model and the role-scoped
// visibility rules shared by every analytic component.
//
// Role branching lives here and only here: callers build a Scope once per
// request and pass the filtered slice downstream, so the aggregation,
// optimizer, trend and anomaly code never re-derive permissions.
package core

// Scope describes what a caller may see. It is computed by the transport
// layer from identity context; the core treats it as given.
type Scope struct {
	Role       Role
	UserID     string
	BusinessID string // explicit selection, required for accountants

	// AccountantBusinessIDs lists the businesses associated with an
	// accountant caller. Ignored for other roles.
	AccountantBusinessIDs []string
}

// VisibleTransactions returns the subset of txs the scope may act on,
// preserving input order. It is a pure filter with no side effects.
//
// Administrators and accountants see a single business's books, restricted
// to income and business-flagged expenses. Users see their own entries;
// business-flagged expenses stay visible but PersonalOnly strips them from
// personal budget math.
func VisibleTransactions(txs []Transaction, scope Scope) ([]Transaction, error) {
	switch scope.Role {
	case RoleAdministrator:
		if scope.BusinessID == "" {
			return nil, ErrSelectionRequired
		}
		return filter(txs, func(t Transaction) bool {
			return t.BusinessID == scope.BusinessID && onBusinessBooks(t)
		}), nil

	case RoleAccountant:
		if scope.BusinessID == "" {
			// An empty result here would silently read as "no spending";
			// the caller must be told to pick a business instead.
			return nil, ErrSelectionRequired
		}
		if !contains(scope.AccountantBusinessIDs, scope.BusinessID) {
			return nil, ErrAccessDenied
		}
		return filter(txs, func(t Transaction) bool {
			return t.BusinessID == scope.BusinessID && onBusinessBooks(t)
		}), nil

	case RoleUser:
		return filter(txs, func(t Transaction) bool {
			return t.OwnerUserID == scope.UserID
		}), nil
	}
	return nil, ErrAccessDenied
}

// PersonalOnly strips business-flagged expenses from a user's transactions.
// Those entries count against the owning business, not the personal budget.
func PersonalOnly(txs []Transaction) []Transaction {
	return filter(txs, func(t Transaction) bool {
		return !(t.Type == Expense && t.BusinessExpense)
	})
}

// onBusinessBooks reports whether a transaction belongs on a business's
// books: all income, and expenses explicitly flagged as business expenses.
func onBusinessBooks(t Transaction) bool {
	return t.Type == Income || (t.Type == Expense && t.BusinessExpense)
}

func filter(txs []Transaction, keep func(Transaction) bool) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
