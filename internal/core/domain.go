package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

const (
	RoleUser          Role = "user"
	RoleAdministrator Role = "administrator"
	RoleAccountant    Role = "accountant"
)

type (
	TxType string

	Role string

	// Transaction is an immutable ledger entry. The analytic components
	// only ever read transactions; mutation happens in the storage layer.
	Transaction struct {
		ID              string
		Amount          decimal.Decimal
		Type            TxType
		Category        string
		Date            time.Time
		OwnerUserID     string
		BusinessID      string
		BusinessExpense bool // expense charged to the business books, not the personal budget
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrEmptyCategory    = errors.New("empty category")
	ErrMissingOwner     = errors.New("missing owner user id")
	ErrMissingBusiness  = errors.New("business id required")
	ErrPersonalBusiness = errors.New("personal expense cannot carry a business id")

	ErrAccessDenied      = errors.New("access denied for requested business scope")
	ErrSelectionRequired = errors.New("business selection required")
	ErrInvalidTarget     = errors.New("invalid optimization target")
)

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdministrator, RoleAccountant:
		return true
	}
	return false
}

// Validate checks a transaction against the ledger consistency rules.
// The (type, business expense flag, business id) combination must agree:
// income recorded under a business role always carries a business id, and a
// personal expense never does.
func (t Transaction) Validate(recordedBy Role) error {
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	if t.OwnerUserID == "" {
		return ErrMissingOwner
	}
	if t.Type == Income && recordedBy != RoleUser && t.BusinessID == "" {
		return ErrMissingBusiness
	}
	if t.Type == Expense && !t.BusinessExpense && recordedBy == RoleUser && t.BusinessID != "" {
		return ErrPersonalBusiness
	}
	return nil
}

// YearMonth returns the transaction's calendar month as "YYYY-MM".
func (t Transaction) YearMonth() string {
	return t.Date.Format("2006-01")
}
