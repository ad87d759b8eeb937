package services

import (
	"context"
	"errors"
	"fmt"

	"bugetar/internal/core"
)

// ErrUnknownBusiness is returned when an association names a business that
// was never registered.
var ErrUnknownBusiness = errors.New("unknown business")

// AccountantStore is the storage surface for accountant associations.
type AccountantStore interface {
	BusinessExists(ctx context.Context, id string) (bool, error)
	AssociateAccountant(ctx context.Context, accountantUserID, businessID string) error
	ListAccountantBusinesses(ctx context.Context, accountantUserID string) ([]string, error)
}

// AccountantService manages which business books an accountant may read.
type AccountantService struct {
	store AccountantStore
}

func NewAccountantService(store AccountantStore) *AccountantService {
	return &AccountantService{store: store}
}

func (s *AccountantService) Associate(ctx context.Context, accountantUserID, businessID string) error {
	if accountantUserID == "" {
		return core.ErrMissingOwner
	}
	if businessID == "" {
		return core.ErrMissingBusiness
	}

	exists, err := s.store.BusinessExists(ctx, businessID)
	if err != nil {
		return fmt.Errorf("check business: %w", err)
	}
	if !exists {
		return ErrUnknownBusiness
	}

	if err := s.store.AssociateAccountant(ctx, accountantUserID, businessID); err != nil {
		return fmt.Errorf("associate accountant: %w", err)
	}
	return nil
}

func (s *AccountantService) Businesses(ctx context.Context, accountantUserID string) ([]string, error) {
	ids, err := s.store.ListAccountantBusinesses(ctx, accountantUserID)
	if err != nil {
		return nil, fmt.Errorf("list accountant businesses: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
