package worker

import (
	"context"
	"errors"
	"testing"

	"bugetar/internal/amqp"
	"bugetar/internal/storage"
)

type fakeSummaryStore struct {
	refreshed []string
	buckets   []storage.OwnerMonth

	refreshErr error
}

func (f *fakeSummaryStore) RefreshMonthlySummary(_ context.Context, owner, month string) error {
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.refreshed = append(f.refreshed, owner+"/"+month)
	return nil
}

func (f *fakeSummaryStore) ListOwnerMonths(_ context.Context, limit int) ([]storage.OwnerMonth, error) {
	if limit < len(f.buckets) {
		return f.buckets[:limit], nil
	}
	return f.buckets, nil
}

func TestRefreshWorker_HandleRecordedMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("refreshes the named bucket", func(t *testing.T) {
		store := &fakeSummaryStore{}
		w := NewRefreshWorker(store, 10)

		msg := &amqp.TransactionRecordedMessage{
			TransactionID: "t1",
			OwnerUserID:   "u1",
			Month:         "2025-03",
		}
		if err := w.HandleRecordedMessage(ctx, msg); err != nil {
			t.Fatalf("HandleRecordedMessage() error = %v", err)
		}
		if len(store.refreshed) != 1 || store.refreshed[0] != "u1/2025-03" {
			t.Errorf("refreshed %v, want [u1/2025-03]", store.refreshed)
		}
	})

	t.Run("malformed messages drop without error", func(t *testing.T) {
		store := &fakeSummaryStore{}
		w := NewRefreshWorker(store, 10)

		msg := &amqp.TransactionRecordedMessage{TransactionID: "t1"}
		if err := w.HandleRecordedMessage(ctx, msg); err != nil {
			t.Errorf("HandleRecordedMessage() error = %v, want nil (drop, not requeue)", err)
		}
		if len(store.refreshed) != 0 {
			t.Error("nothing should be refreshed for a malformed message")
		}
	})

	t.Run("storage failure requeues", func(t *testing.T) {
		store := &fakeSummaryStore{refreshErr: errors.New("locked")}
		w := NewRefreshWorker(store, 10)

		msg := &amqp.TransactionRecordedMessage{
			TransactionID: "t1",
			OwnerUserID:   "u1",
			Month:         "2025-03",
		}
		if err := w.HandleRecordedMessage(ctx, msg); err == nil {
			t.Error("HandleRecordedMessage() should surface storage errors")
		}
	})
}

func TestRefreshWorker_SweepRecent(t *testing.T) {
	ctx := context.Background()

	t.Run("refreshes every listed bucket", func(t *testing.T) {
		store := &fakeSummaryStore{
			buckets: []storage.OwnerMonth{
				{OwnerUserID: "u1", Month: "2025-03"},
				{OwnerUserID: "u2", Month: "2025-03"},
			},
		}
		w := NewRefreshWorker(store, 10)

		if err := w.SweepRecent(ctx); err != nil {
			t.Fatalf("SweepRecent() error = %v", err)
		}
		if len(store.refreshed) != 2 {
			t.Errorf("refreshed %d buckets, want 2", len(store.refreshed))
		}
	})

	t.Run("batch size caps the sweep", func(t *testing.T) {
		store := &fakeSummaryStore{
			buckets: []storage.OwnerMonth{
				{OwnerUserID: "u1", Month: "2025-03"},
				{OwnerUserID: "u2", Month: "2025-03"},
				{OwnerUserID: "u3", Month: "2025-03"},
			},
		}
		w := NewRefreshWorker(store, 2)

		if err := w.SweepRecent(ctx); err != nil {
			t.Fatalf("SweepRecent() error = %v", err)
		}
		if len(store.refreshed) != 2 {
			t.Errorf("refreshed %d buckets, want 2", len(store.refreshed))
		}
	})

	t.Run("cancellation stops the sweep", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		store := &fakeSummaryStore{
			buckets: []storage.OwnerMonth{{OwnerUserID: "u1", Month: "2025-03"}},
		}
		w := NewRefreshWorker(store, 10)

		if err := w.SweepRecent(cancelled); !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}
