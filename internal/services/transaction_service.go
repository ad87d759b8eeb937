package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"bugetar/internal/core"
	applog "bugetar/internal/log"
)

// TransactionStore is the storage surface the transaction service needs.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) error
	BusinessExists(ctx context.Context, id string) (bool, error)
}

// EventPublisher publishes domain events. A nil publisher disables events
// without changing the write path.
type EventPublisher interface {
	PublishTransactionRecorded(ctx context.Context, transactionID, ownerUserID, month string) error
}

// TransactionService records transactions and emits the events the summary
// refresh worker consumes.
type TransactionService struct {
	store     TransactionStore
	publisher EventPublisher
	log       *applog.Logger
}

func NewTransactionService(store TransactionStore, publisher EventPublisher) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
		log:       applog.Default(applog.ComponentApp),
	}
}

// Record validates and persists a transaction, then publishes the recorded
// event. The event is best effort: a broker outage never fails the write.
func (s *TransactionService) Record(ctx context.Context, t core.Transaction, recordedBy core.Role) (core.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	if err := t.Validate(recordedBy); err != nil {
		return core.Transaction{}, err
	}

	if t.BusinessID != "" {
		exists, err := s.store.BusinessExists(ctx, t.BusinessID)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("check business: %w", err)
		}
		if !exists {
			return core.Transaction{}, ErrUnknownBusiness
		}
	}

	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	if s.publisher == nil {
		s.log.WarnContext(ctx, "Event publisher not available, skipping recorded event")
		return t, nil
	}
	if err := s.publisher.PublishTransactionRecorded(ctx, t.ID, t.OwnerUserID, t.YearMonth()); err != nil {
		s.log.ErrorContext(ctx, "Failed to publish recorded event",
			applog.FieldOperation, applog.OpPublish,
			applog.FieldTransactionID, t.ID,
			applog.FieldError, err)
		// Don't fail the request - the transaction is saved locally
	}
	return t, nil
}
