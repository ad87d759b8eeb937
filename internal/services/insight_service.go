package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bugetar/internal/analytics"
	"bugetar/internal/core"
)

// InsightStore is the storage surface the insight pipeline reads from.
type InsightStore interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	ListAccountantBusinesses(ctx context.Context, accountantUserID string) ([]string, error)
}

// InsightConfig tunes the analytics the service exposes.
type InsightConfig struct {
	AnomalyThreshold  float64
	TopCategories     int
	GoalSearchTimeout time.Duration
}

func DefaultInsightConfig() InsightConfig {
	return InsightConfig{
		AnomalyThreshold:  analytics.DefaultAnomalyThreshold,
		TopCategories:     analytics.DefaultTopN,
		GoalSearchTimeout: 2 * time.Second,
	}
}

// InsightService runs the read-side pipeline: load transactions, narrow them
// to what the caller may see, then hand the filtered set to the analytics
// package.
type InsightService struct {
	store  InsightStore
	config InsightConfig
}

func NewInsightService(store InsightStore, config InsightConfig) *InsightService {
	return &InsightService{store: store, config: config}
}

// scoped resolves the caller's scope against storage. Accountant
// associations are looked up here so handlers never fill them in.
func (s *InsightService) scoped(ctx context.Context, scope core.Scope) ([]core.Transaction, error) {
	if scope.Role == core.RoleAccountant && scope.AccountantBusinessIDs == nil {
		ids, err := s.store.ListAccountantBusinesses(ctx, scope.UserID)
		if err != nil {
			return nil, fmt.Errorf("load accountant associations: %w", err)
		}
		scope.AccountantBusinessIDs = ids
	}

	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return core.VisibleTransactions(txs, scope)
}

// visible returns the transactions the analytics operate on. For a user
// scope that is the personal budget: business-flagged expenses stay out of
// every aggregate even though the user can list them.
func (s *InsightService) visible(ctx context.Context, scope core.Scope) ([]core.Transaction, error) {
	txs, err := s.scoped(ctx, scope)
	if err != nil {
		return nil, err
	}
	if scope.Role == core.RoleUser {
		txs = core.PersonalOnly(txs)
	}
	return txs, nil
}

// Transactions returns the transactions the caller's scope may see,
// business-flagged entries included.
func (s *InsightService) Transactions(ctx context.Context, scope core.Scope) ([]core.Transaction, error) {
	txs, err := s.scoped(ctx, scope)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs, nil
}

// SummaryReport bundles the aggregation output for one scope.
type SummaryReport struct {
	Summary       analytics.Summary `json:"summary"`
	Groups        []analytics.Group `json:"groups"`
	TopCategories []analytics.Group `json:"topCategories"`
}

func (s *InsightService) Summary(ctx context.Context, scope core.Scope, groupBy analytics.GroupBy) (SummaryReport, error) {
	txs, err := s.visible(ctx, scope)
	if err != nil {
		return SummaryReport{}, err
	}
	return SummaryReport{
		Summary:       analytics.Summarize(txs),
		Groups:        analytics.Aggregate(txs, groupBy),
		TopCategories: analytics.TopCategories(txs, s.config.TopCategories),
	}, nil
}

func (s *InsightService) Trends(ctx context.Context, scope core.Scope) ([]analytics.TrendEntry, error) {
	txs, err := s.visible(ctx, scope)
	if err != nil {
		return nil, err
	}
	return analytics.Trends(txs), nil
}

// ForecastReport pairs the overall next-month estimate with the per-category
// regression forecasts.
type ForecastReport struct {
	NextMonth  decimal.Decimal              `json:"nextMonth"`
	Categories []analytics.CategoryForecast `json:"categories"`
}

func (s *InsightService) Forecasts(ctx context.Context, scope core.Scope) (ForecastReport, error) {
	txs, err := s.visible(ctx, scope)
	if err != nil {
		return ForecastReport{}, err
	}
	return ForecastReport{
		NextMonth:  analytics.ForecastNext(txs),
		Categories: analytics.CategoryForecasts(txs),
	}, nil
}

// Anomalies flags outlier expenses. A non-positive threshold falls back to
// the configured default.
func (s *InsightService) Anomalies(ctx context.Context, scope core.Scope, threshold float64) ([]analytics.Anomaly, error) {
	if threshold <= 0 {
		threshold = s.config.AnomalyThreshold
	}
	txs, err := s.visible(ctx, scope)
	if err != nil {
		return nil, err
	}
	return analytics.DetectAnomalies(txs, threshold), nil
}

func (s *InsightService) Behavior(ctx context.Context, scope core.Scope) (analytics.BehaviorProfile, error) {
	txs, err := s.visible(ctx, scope)
	if err != nil {
		return analytics.BehaviorProfile{}, err
	}
	return analytics.ClassifyBehavior(txs), nil
}

func (s *InsightService) Patterns(ctx context.Context, scope core.Scope) ([]analytics.MonthPattern, error) {
	txs, err := s.visible(ctx, scope)
	if err != nil {
		return nil, err
	}
	return analytics.MonthlyPatterns(txs), nil
}

// OptimizeRequest selects which optimizers to run. TargetPercent drives the
// greedy plan; a positive Goal additionally runs the subset search.
type OptimizeRequest struct {
	TargetPercent float64         `json:"targetPercent"`
	Goal          decimal.Decimal `json:"goal"`
	Excluded      []string        `json:"excluded"`
}

// OptimizeReport carries both optimizer outputs. GoalTruncated is set when
// the subset search hit its deadline and returned a partial result.
type OptimizeReport struct {
	Suggestions   []analytics.Suggestion `json:"suggestions"`
	GoalPlan      []core.Transaction     `json:"goalPlan,omitempty"`
	GoalTruncated bool                   `json:"goalTruncated,omitempty"`
}

func (s *InsightService) Optimize(ctx context.Context, scope core.Scope, req OptimizeRequest) (OptimizeReport, error) {
	txs, err := s.visible(ctx, scope)
	if err != nil {
		return OptimizeReport{}, err
	}

	report := OptimizeReport{}
	report.Suggestions, err = analytics.GreedyPlan(txs, req.TargetPercent, req.Excluded)
	if err != nil {
		return OptimizeReport{}, err
	}

	if req.Goal.IsPositive() {
		searchCtx, cancel := context.WithTimeout(ctx, s.config.GoalSearchTimeout)
		defer cancel()

		plan, err := analytics.GoalPlan(searchCtx, txs, req.Goal, req.Excluded)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			report.GoalTruncated = true
		case err != nil:
			return OptimizeReport{}, err
		}
		report.GoalPlan = plan
	}
	return report, nil
}
