package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryTarget caps a user's spend in one category for one calendar month.
type CategoryTarget struct {
	UserID   string          `json:"userId"`
	Month    string          `json:"month"` // "YYYY-MM"
	Category string          `json:"category"`
	Limit    decimal.Decimal `json:"limit"`
}

// TargetStatus reports how a category target is doing against actual spend.
type TargetStatus struct {
	Category  string          `json:"category"`
	Limit     decimal.Decimal `json:"limit"`
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
	Exceeded  bool            `json:"exceeded"`
}

func (t CategoryTarget) Validate() error {
	if t.UserID == "" {
		return ErrMissingOwner
	}
	if t.Category == "" {
		return ErrEmptyCategory
	}
	if !t.Limit.IsPositive() {
		return ErrInvalidTarget
	}
	if _, err := time.Parse("2006-01", t.Month); err != nil {
		return ErrInvalidTarget
	}
	return nil
}
