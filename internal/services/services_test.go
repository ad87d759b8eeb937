package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bugetar/internal/core"
)

// fakeStore is an in-memory stand-in for the SQLite repository.
type fakeStore struct {
	txs          []core.Transaction
	businesses   map[string]bool
	associations map[string][]string
	targets      []core.CategoryTarget

	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		businesses:   make(map[string]bool),
		associations: make(map[string][]string),
	}
}

func (f *fakeStore) CreateTransaction(_ context.Context, t core.Transaction) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.txs = append(f.txs, t)
	return nil
}

func (f *fakeStore) BusinessExists(_ context.Context, id string) (bool, error) {
	return f.businesses[id], nil
}

func (f *fakeStore) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	return f.txs, nil
}

func (f *fakeStore) ListTransactionsByOwner(_ context.Context, owner string) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range f.txs {
		if t.OwnerUserID == owner {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) AssociateAccountant(_ context.Context, accountant, business string) error {
	f.associations[accountant] = append(f.associations[accountant], business)
	return nil
}

func (f *fakeStore) ListAccountantBusinesses(_ context.Context, accountant string) ([]string, error) {
	return f.associations[accountant], nil
}

func (f *fakeStore) UpsertCategoryTarget(_ context.Context, t core.CategoryTarget) error {
	for i, existing := range f.targets {
		if existing.UserID == t.UserID && existing.Month == t.Month && existing.Category == t.Category {
			f.targets[i] = t
			return nil
		}
	}
	f.targets = append(f.targets, t)
	return nil
}

func (f *fakeStore) ListCategoryTargets(_ context.Context, userID, month string) ([]core.CategoryTarget, error) {
	var out []core.CategoryTarget
	for _, t := range f.targets {
		if t.UserID == userID && t.Month == month {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakePublisher struct {
	published []string
	err       error
}

func (f *fakePublisher) PublishTransactionRecorded(_ context.Context, transactionID, ownerUserID, month string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, transactionID+"/"+ownerUserID+"/"+month)
	return nil
}

func personalExpense(owner, category string, amount float64, date string) core.Transaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{
		Amount:      decimal.NewFromFloat(amount),
		Type:        core.Expense,
		Category:    category,
		Date:        d,
		OwnerUserID: owner,
	}
}

func TestTransactionService_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns an id and publishes the event", func(t *testing.T) {
		store := newFakeStore()
		pub := &fakePublisher{}
		svc := NewTransactionService(store, pub)

		got, err := svc.Record(ctx, personalExpense("u1", "Food", 25, "2025-03-10"), core.RoleUser)
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if got.ID == "" {
			t.Error("Record() should assign an id")
		}
		if len(store.txs) != 1 {
			t.Fatalf("stored %d transactions, want 1", len(store.txs))
		}
		if len(pub.published) != 1 {
			t.Fatalf("published %d events, want 1", len(pub.published))
		}
		want := got.ID + "/u1/2025-03"
		if pub.published[0] != want {
			t.Errorf("published %q, want %q", pub.published[0], want)
		}
	})

	t.Run("rejects invalid transactions", func(t *testing.T) {
		store := newFakeStore()
		svc := NewTransactionService(store, nil)

		tx := personalExpense("u1", "", 25, "2025-03-10")
		if _, err := svc.Record(ctx, tx, core.RoleUser); !errors.Is(err, core.ErrEmptyCategory) {
			t.Errorf("err = %v, want ErrEmptyCategory", err)
		}
		if len(store.txs) != 0 {
			t.Error("invalid transaction must not be stored")
		}
	})

	t.Run("rejects an unknown business", func(t *testing.T) {
		store := newFakeStore()
		svc := NewTransactionService(store, nil)

		tx := personalExpense("u1", "Supplies", 90, "2025-03-10")
		tx.BusinessID = "ghost"
		tx.BusinessExpense = true
		if _, err := svc.Record(ctx, tx, core.RoleAdministrator); !errors.Is(err, ErrUnknownBusiness) {
			t.Errorf("err = %v, want ErrUnknownBusiness", err)
		}
	})

	t.Run("publish failure does not fail the write", func(t *testing.T) {
		store := newFakeStore()
		pub := &fakePublisher{err: errors.New("broker down")}
		svc := NewTransactionService(store, pub)

		if _, err := svc.Record(ctx, personalExpense("u1", "Food", 25, "2025-03-10"), core.RoleUser); err != nil {
			t.Fatalf("Record() error = %v, want nil despite publish failure", err)
		}
		if len(store.txs) != 1 {
			t.Error("transaction should still be stored")
		}
	})
}

func TestInsightService_ScopeResolution(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.businesses["b1"] = true
	store.associations["acc1"] = []string{"b1"}

	mine := personalExpense("u1", "Food", 100, "2025-03-01")
	mine.ID = "mine"
	theirs := personalExpense("u2", "Food", 999, "2025-03-02")
	theirs.ID = "theirs"
	business := core.Transaction{
		ID:              "biz",
		Amount:          decimal.NewFromInt(500),
		Type:            core.Expense,
		Category:        "Supplies",
		Date:            time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		OwnerUserID:     "u2",
		BusinessID:      "b1",
		BusinessExpense: true,
	}
	store.txs = []core.Transaction{mine, theirs, business}

	svc := NewInsightService(store, DefaultInsightConfig())

	t.Run("user sees only their own transactions", func(t *testing.T) {
		report, err := svc.Summary(ctx, core.Scope{Role: core.RoleUser, UserID: "u1"}, "category")
		if err != nil {
			t.Fatalf("Summary() error = %v", err)
		}
		if report.Summary.Count != 1 {
			t.Errorf("Count = %d, want 1", report.Summary.Count)
		}
		if !report.Summary.Total.Equal(decimal.NewFromInt(100)) {
			t.Errorf("Total = %s, want 100", report.Summary.Total)
		}
	})

	t.Run("accountant associations load from storage", func(t *testing.T) {
		scope := core.Scope{Role: core.RoleAccountant, UserID: "acc1", BusinessID: "b1"}
		report, err := svc.Summary(ctx, scope, "category")
		if err != nil {
			t.Fatalf("Summary() error = %v", err)
		}
		if report.Summary.Count != 1 {
			t.Errorf("Count = %d, want 1 (only business-book entries)", report.Summary.Count)
		}
		if !report.Summary.Total.Equal(decimal.NewFromInt(500)) {
			t.Errorf("Total = %s, want 500", report.Summary.Total)
		}
	})

	t.Run("accountant without association is denied", func(t *testing.T) {
		scope := core.Scope{Role: core.RoleAccountant, UserID: "acc2", BusinessID: "b1"}
		if _, err := svc.Summary(ctx, scope, "category"); !errors.Is(err, core.ErrAccessDenied) {
			t.Errorf("err = %v, want ErrAccessDenied", err)
		}
	})

	t.Run("administrator must select a business", func(t *testing.T) {
		scope := core.Scope{Role: core.RoleAdministrator, UserID: "admin"}
		if _, err := svc.Trends(ctx, scope); !errors.Is(err, core.ErrSelectionRequired) {
			t.Errorf("err = %v, want ErrSelectionRequired", err)
		}
	})
}

func TestInsightService_BusinessExpensesStayOutOfPersonalAggregates(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.businesses["b1"] = true

	personal := personalExpense("u1", "Food", 100, "2025-03-01")
	personal.ID = "personal"
	onBooks := core.Transaction{
		ID:              "on-books",
		Amount:          decimal.NewFromInt(500),
		Type:            core.Expense,
		Category:        "Supplies",
		Date:            time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		OwnerUserID:     "u1",
		BusinessID:      "b1",
		BusinessExpense: true,
	}
	store.txs = []core.Transaction{personal, onBooks}

	svc := NewInsightService(store, DefaultInsightConfig())
	scope := core.Scope{Role: core.RoleUser, UserID: "u1"}

	t.Run("summary counts only the personal budget", func(t *testing.T) {
		report, err := svc.Summary(ctx, scope, "category")
		if err != nil {
			t.Fatalf("Summary() error = %v", err)
		}
		if report.Summary.Count != 1 {
			t.Errorf("Count = %d, want 1", report.Summary.Count)
		}
		if !report.Summary.Total.Equal(decimal.NewFromInt(100)) {
			t.Errorf("Total = %s, want 100", report.Summary.Total)
		}
	})

	t.Run("optimizer never suggests cutting business spend", func(t *testing.T) {
		report, err := svc.Optimize(ctx, scope, OptimizeRequest{TargetPercent: 100})
		if err != nil {
			t.Fatalf("Optimize() error = %v", err)
		}
		for _, s := range report.Suggestions {
			if s.Category == "Supplies" {
				t.Errorf("suggested cutting %q, a business-book category", s.Category)
			}
		}
	})

	t.Run("patterns ignore business-book categories", func(t *testing.T) {
		patterns, err := svc.Patterns(ctx, scope)
		if err != nil {
			t.Fatalf("Patterns() error = %v", err)
		}
		if len(patterns) != 1 || patterns[0].Category != "Food" {
			t.Errorf("patterns = %+v, want only Food", patterns)
		}
	})

	t.Run("listing still shows the flagged entry", func(t *testing.T) {
		txs, err := svc.Transactions(ctx, scope)
		if err != nil {
			t.Fatalf("Transactions() error = %v", err)
		}
		if len(txs) != 2 {
			t.Errorf("listed %d transactions, want 2 (flag hides from math, not from view)", len(txs))
		}
	})
}

func TestInsightService_Optimize(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.txs = []core.Transaction{
		personalExpense("u1", "Leisure", 300, "2025-03-01"),
		personalExpense("u1", "Food", 200, "2025-03-02"),
		personalExpense("u1", "Rent", 900, "2025-03-03"),
	}
	svc := NewInsightService(store, DefaultInsightConfig())
	scope := core.Scope{Role: core.RoleUser, UserID: "u1"}

	t.Run("greedy plan respects exclusions", func(t *testing.T) {
		report, err := svc.Optimize(ctx, scope, OptimizeRequest{TargetPercent: 100})
		if err != nil {
			t.Fatalf("Optimize() error = %v", err)
		}
		for _, s := range report.Suggestions {
			if s.Category == "Rent" {
				t.Error("Rent should never be suggested")
			}
		}
	})

	t.Run("goal search runs when a goal is set", func(t *testing.T) {
		report, err := svc.Optimize(ctx, scope, OptimizeRequest{Goal: decimal.NewFromInt(250)})
		if err != nil {
			t.Fatalf("Optimize() error = %v", err)
		}
		if report.GoalTruncated {
			t.Error("tiny search should not hit the deadline")
		}
		sum := decimal.Zero
		for _, tx := range report.GoalPlan {
			sum = sum.Add(tx.Amount)
		}
		if sum.LessThan(decimal.NewFromInt(250)) {
			t.Errorf("goal plan sums to %s, below goal", sum)
		}
	})

	t.Run("negative target surfaces the domain error", func(t *testing.T) {
		if _, err := svc.Optimize(ctx, scope, OptimizeRequest{TargetPercent: -1}); !errors.Is(err, core.ErrInvalidTarget) {
			t.Errorf("err = %v, want ErrInvalidTarget", err)
		}
	})
}

func TestTargetService(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewTargetService(store)

	t.Run("rejects non-positive limits", func(t *testing.T) {
		target := core.CategoryTarget{UserID: "u1", Month: "2025-03", Category: "Food", Limit: decimal.Zero}
		if err := svc.Set(ctx, target); !errors.Is(err, core.ErrInvalidTarget) {
			t.Errorf("err = %v, want ErrInvalidTarget", err)
		}
	})

	t.Run("rejects malformed months", func(t *testing.T) {
		target := core.CategoryTarget{UserID: "u1", Month: "March", Category: "Food", Limit: decimal.NewFromInt(100)}
		if err := svc.Set(ctx, target); !errors.Is(err, core.ErrInvalidTarget) {
			t.Errorf("err = %v, want ErrInvalidTarget", err)
		}
	})

	t.Run("status tracks personal spend only", func(t *testing.T) {
		target := core.CategoryTarget{UserID: "u1", Month: "2025-03", Category: "Food", Limit: decimal.NewFromInt(300)}
		if err := svc.Set(ctx, target); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		store.txs = []core.Transaction{
			personalExpense("u1", "Food", 250, "2025-03-05"),
			personalExpense("u1", "Food", 100, "2025-04-05"), // other month
		}
		onBooks := personalExpense("u1", "Food", 500, "2025-03-06")
		onBooks.BusinessID = "b1"
		onBooks.BusinessExpense = true
		store.txs = append(store.txs, onBooks)

		statuses, err := svc.Status(ctx, "u1", "2025-03")
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if len(statuses) != 1 {
			t.Fatalf("got %d statuses, want 1", len(statuses))
		}
		s := statuses[0]
		if !s.Spent.Equal(decimal.NewFromInt(250)) {
			t.Errorf("Spent = %s, want 250", s.Spent)
		}
		if !s.Remaining.Equal(decimal.NewFromInt(50)) {
			t.Errorf("Remaining = %s, want 50", s.Remaining)
		}
		if s.Exceeded {
			t.Error("Exceeded = true, want false")
		}
	})

	t.Run("exceeded targets flag", func(t *testing.T) {
		target := core.CategoryTarget{UserID: "u2", Month: "2025-03", Category: "Leisure", Limit: decimal.NewFromInt(50)}
		if err := svc.Set(ctx, target); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		store.txs = append(store.txs, personalExpense("u2", "Leisure", 80, "2025-03-08"))

		statuses, err := svc.Status(ctx, "u2", "2025-03")
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if len(statuses) != 1 || !statuses[0].Exceeded {
			t.Errorf("got %+v, want one exceeded status", statuses)
		}
		if !statuses[0].Remaining.Equal(decimal.NewFromInt(-30)) {
			t.Errorf("Remaining = %s, want -30", statuses[0].Remaining)
		}
	})
}

func TestAccountantService(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.businesses["b1"] = true
	svc := NewAccountantService(store)

	t.Run("associates with a known business", func(t *testing.T) {
		if err := svc.Associate(ctx, "acc1", "b1"); err != nil {
			t.Fatalf("Associate() error = %v", err)
		}
		got, err := svc.Businesses(ctx, "acc1")
		if err != nil {
			t.Fatalf("Businesses() error = %v", err)
		}
		if len(got) != 1 || got[0] != "b1" {
			t.Errorf("got %v, want [b1]", got)
		}
	})

	t.Run("rejects an unknown business", func(t *testing.T) {
		if err := svc.Associate(ctx, "acc1", "b9"); !errors.Is(err, ErrUnknownBusiness) {
			t.Errorf("err = %v, want ErrUnknownBusiness", err)
		}
	})

	t.Run("missing ids are rejected", func(t *testing.T) {
		if err := svc.Associate(ctx, "", "b1"); !errors.Is(err, core.ErrMissingOwner) {
			t.Errorf("err = %v, want ErrMissingOwner", err)
		}
		if err := svc.Associate(ctx, "acc1", ""); !errors.Is(err, core.ErrMissingBusiness) {
			t.Errorf("err = %v, want ErrMissingBusiness", err)
		}
	})

	t.Run("no associations yields an empty list", func(t *testing.T) {
		got, err := svc.Businesses(ctx, "ghost")
		if err != nil {
			t.Fatalf("Businesses() error = %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("got %v, want empty non-nil slice", got)
		}
	})
}
