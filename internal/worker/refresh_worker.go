// Package worker maintains the monthly_summaries rollups. The normal path is
// event driven: every recorded transaction produces a message naming the
// owner-month to refresh. A periodic sweep rebuilds recent buckets as a
// backup in case messages are lost.
package worker

import (
	"context"
	"fmt"

	"bugetar/internal/amqp"
	applog "bugetar/internal/log"
	"bugetar/internal/storage"
)

// SummaryStore is the storage surface the refresh worker needs.
type SummaryStore interface {
	RefreshMonthlySummary(ctx context.Context, ownerUserID, month string) error
	ListOwnerMonths(ctx context.Context, limit int) ([]storage.OwnerMonth, error)
}

type RefreshWorker struct {
	store     SummaryStore
	batchSize int
	log       *applog.Logger
}

func NewRefreshWorker(store SummaryStore, batchSize int) *RefreshWorker {
	return &RefreshWorker{
		store:     store,
		batchSize: batchSize,
		log:       applog.Default(applog.ComponentWorker),
	}
}

// HandleRecordedMessage refreshes the summary bucket a recorded transaction
// belongs to. Returning an error requeues the message.
func (w *RefreshWorker) HandleRecordedMessage(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	if msg.OwnerUserID == "" || msg.Month == "" {
		w.log.WarnContext(ctx, "Dropping malformed recorded message",
			applog.FieldOperation, applog.OpRefresh,
			applog.FieldTransactionID, msg.TransactionID)
		return nil
	}

	if err := w.store.RefreshMonthlySummary(ctx, msg.OwnerUserID, msg.Month); err != nil {
		return fmt.Errorf("refresh summary for %s/%s: %w", msg.OwnerUserID, msg.Month, err)
	}
	return nil
}

// SweepRecent rebuilds the most recent owner-month buckets regardless of
// events. It is cheap enough to run on a timer.
func (w *RefreshWorker) SweepRecent(ctx context.Context) error {
	buckets, err := w.store.ListOwnerMonths(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list owner months: %w", err)
	}
	if len(buckets) == 0 {
		return nil
	}

	refreshed := 0
	for _, b := range buckets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.store.RefreshMonthlySummary(ctx, b.OwnerUserID, b.Month); err != nil {
			w.log.ErrorContext(ctx, "Failed to refresh summary",
				applog.FieldOwnerUserID, b.OwnerUserID,
				applog.FieldMonth, b.Month,
				applog.FieldError, err)
			continue
		}
		refreshed++
	}

	w.log.InfoContext(ctx, "Summary sweep completed",
		applog.FieldOperation, applog.OpSweep,
		"buckets", len(buckets),
		"refreshed", refreshed)
	return nil
}
