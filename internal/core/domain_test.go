package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validTx() Transaction {
	return Transaction{
		ID:          "tx-1",
		Amount:      decimal.NewFromInt(120),
		Type:        Expense,
		Category:    "Transport",
		Date:        time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
		OwnerUserID: "u-1",
	}
}

func TestTransaction_Validate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Transaction)
		recordedBy Role
		wantErr    error
	}{
		{
			name:       "valid personal expense",
			mutate:     func(tx *Transaction) {},
			recordedBy: RoleUser,
			wantErr:    nil,
		},
		{
			name:       "negative amount",
			mutate:     func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-5) },
			recordedBy: RoleUser,
			wantErr:    ErrInvalidAmount,
		},
		{
			name:       "unknown type",
			mutate:     func(tx *Transaction) { tx.Type = TxType("transfer") },
			recordedBy: RoleUser,
			wantErr:    ErrInvalidType,
		},
		{
			name:       "blank category",
			mutate:     func(tx *Transaction) { tx.Category = "   " },
			recordedBy: RoleUser,
			wantErr:    ErrEmptyCategory,
		},
		{
			name:       "missing owner",
			mutate:     func(tx *Transaction) { tx.OwnerUserID = "" },
			recordedBy: RoleUser,
			wantErr:    ErrMissingOwner,
		},
		{
			name: "administrator income without business",
			mutate: func(tx *Transaction) {
				tx.Type = Income
			},
			recordedBy: RoleAdministrator,
			wantErr:    ErrMissingBusiness,
		},
		{
			name: "administrator income with business",
			mutate: func(tx *Transaction) {
				tx.Type = Income
				tx.BusinessID = "b-1"
			},
			recordedBy: RoleAdministrator,
			wantErr:    nil,
		},
		{
			name: "personal expense carrying business id",
			mutate: func(tx *Transaction) {
				tx.BusinessID = "b-1"
			},
			recordedBy: RoleUser,
			wantErr:    ErrPersonalBusiness,
		},
		{
			name: "business-flagged expense may carry business id",
			mutate: func(tx *Transaction) {
				tx.BusinessID = "b-1"
				tx.BusinessExpense = true
			},
			recordedBy: RoleUser,
			wantErr:    nil,
		},
		{
			name:       "zero amount is allowed",
			mutate:     func(tx *Transaction) { tx.Amount = decimal.Zero },
			recordedBy: RoleUser,
			wantErr:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTx()
			tt.mutate(&tx)
			err := tx.Validate(tt.recordedBy)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransaction_YearMonth(t *testing.T) {
	tx := validTx()
	tx.Date = time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	if got := tx.YearMonth(); got != "2025-11" {
		t.Errorf("YearMonth() = %q, want %q", got, "2025-11")
	}
}

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleUser, true},
		{RoleAdministrator, true},
		{RoleAccountant, true},
		{Role("manager"), false},
	}
	for _, tt := range tests {
		if got := tt.role.Valid(); got != tt.want {
			t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}
