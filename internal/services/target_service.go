package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"bugetar/internal/core"
)

// TargetStore is the storage surface for category targets.
type TargetStore interface {
	UpsertCategoryTarget(ctx context.Context, t core.CategoryTarget) error
	ListCategoryTargets(ctx context.Context, userID, month string) ([]core.CategoryTarget, error)
	ListTransactionsByOwner(ctx context.Context, ownerUserID string) ([]core.Transaction, error)
}

// TargetService manages per-user monthly category spending caps and reports
// how actual spend tracks against them.
type TargetService struct {
	store TargetStore
}

func NewTargetService(store TargetStore) *TargetService {
	return &TargetService{store: store}
}

func (s *TargetService) Set(ctx context.Context, t core.CategoryTarget) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.store.UpsertCategoryTarget(ctx, t); err != nil {
		return fmt.Errorf("save target: %w", err)
	}
	return nil
}

func (s *TargetService) List(ctx context.Context, userID, month string) ([]core.CategoryTarget, error) {
	targets, err := s.store.ListCategoryTargets(ctx, userID, month)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return targets, nil
}

// Status compares each target for the month against the user's personal
// expense spend in that category. Business-book expenses never count against
// a personal cap.
func (s *TargetService) Status(ctx context.Context, userID, month string) ([]core.TargetStatus, error) {
	targets, err := s.store.ListCategoryTargets(ctx, userID, month)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	if len(targets) == 0 {
		return []core.TargetStatus{}, nil
	}

	txs, err := s.store.ListTransactionsByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	spent := make(map[string]decimal.Decimal)
	for _, t := range core.PersonalOnly(txs) {
		if t.Type != core.Expense || t.YearMonth() != month {
			continue
		}
		spent[t.Category] = spent[t.Category].Add(t.Amount)
	}

	statuses := make([]core.TargetStatus, 0, len(targets))
	for _, target := range targets {
		used := spent[target.Category]
		statuses = append(statuses, core.TargetStatus{
			Category:  target.Category,
			Limit:     target.Limit,
			Spent:     used,
			Remaining: target.Limit.Sub(used),
			Exceeded:  used.GreaterThan(target.Limit),
		})
	}
	return statuses, nil
}
