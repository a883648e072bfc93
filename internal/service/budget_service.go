// Package service provides the business logic layer (use cases).
// BudgetService saves, lists and resends budgets; DiagnosticsService
// reports webhook settings and pings the webhook.
package service

import (
	"context"
	"time"

	"github.com/boddenberg/budgets-bfa-go/internal/domain"
	"github.com/boddenberg/budgets-bfa-go/internal/infra/observability"
	"github.com/boddenberg/budgets-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/budgets")

// storeSetting names the settings reported when no store is configured.
const storeSetting = "Supabase (SUPABASE_URL e SUPABASE_SERVICE_ROLE_KEY) ou DATABASE_URL"

// BudgetService orchestrates validation, persistence and webhook notification.
type BudgetService struct {
	store    port.BudgetStore // nil when no store is configured
	notifier port.BudgetNotifier
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewBudgetService creates the budget service. store may be nil, in which case
// every storage operation fails with *domain.ErrConfiguration.
func NewBudgetService(store port.BudgetStore, notifier port.BudgetNotifier, metrics *observability.Metrics, logger *zap.Logger) *BudgetService {
	return &BudgetService{store: store, notifier: notifier, metrics: metrics, logger: logger}
}

// StoreConfigured reports whether a budget store was wired in.
func (s *BudgetService) StoreConfigured() bool {
	return s.store != nil
}

// Save validates and upserts b, then notifies the webhook. A notification
// problem is reported in the result and never fails the save.
func (s *BudgetService) Save(ctx context.Context, b *domain.Budget, origin string) (*domain.SaveResult, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.Save")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("save", time.Since(start)) }()

	if missing := b.MissingFields(); len(missing) > 0 {
		return nil, &domain.ErrValidation{Fields: missing}
	}
	if s.store == nil {
		return nil, &domain.ErrConfiguration{Setting: storeSetting}
	}
	span.SetAttributes(attribute.String("budget.number", b.Number))

	number, err := s.store.UpsertBudget(ctx, b)
	if err != nil {
		s.metrics.IncrStoreError("upsert")
		s.logger.Error("budget upsert failed", zap.String("number", b.Number), zap.Error(err))
		return nil, err
	}
	s.metrics.IncrBudgetSaved()
	s.logger.Info("budget saved", zap.String("number", number))

	outcome := s.notifier.Notify(ctx, b, origin)
	span.SetAttributes(attribute.String("webhook.outcome", string(outcome.Status)))

	return &domain.SaveResult{Number: number, Notify: outcome}, nil
}

// List returns every budget, newest first.
func (s *BudgetService) List(ctx context.Context) ([]domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.List")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("list", time.Since(start)) }()

	if s.store == nil {
		return nil, &domain.ErrConfiguration{Setting: storeSetting}
	}

	budgets, err := s.store.ListBudgets(ctx)
	if err != nil {
		s.metrics.IncrStoreError("list")
		return nil, err
	}
	if budgets == nil {
		budgets = []domain.Budget{}
	}
	return budgets, nil
}

// Resend notifies the webhook about an already stored budget. Unlike Save,
// a rejected or failed delivery is the operation's failure: the result is
// returned alongside *domain.ErrNotifierRejection or *domain.ErrNotifierFailure.
func (s *BudgetService) Resend(ctx context.Context, number, origin string) (*domain.ResendResult, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.Resend")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("resend", time.Since(start)) }()

	if number == "" {
		return nil, &domain.ErrValidation{Message: "Número do orçamento não informado"}
	}
	if s.store == nil {
		return nil, &domain.ErrConfiguration{Setting: storeSetting}
	}
	span.SetAttributes(attribute.String("budget.number", number))

	b, found, err := s.store.GetBudget(ctx, number)
	if err != nil {
		s.metrics.IncrStoreError("get")
		return nil, err
	}
	if !found {
		return nil, &domain.ErrNotFound{Resource: "Orçamento", ID: number}
	}

	result := &domain.ResendResult{Number: number}
	if !s.notifier.Configured() {
		result.Notify = &domain.NotifyOutcome{Status: domain.NotifySkipped}
		return result, nil
	}

	result.Notify = s.notifier.Notify(ctx, b, origin)
	switch result.Notify.Status {
	case domain.NotifyRejected:
		return result, &domain.ErrNotifierRejection{StatusCode: result.Notify.StatusCode, Body: result.Notify.Body}
	case domain.NotifyFailed:
		return result, &domain.ErrNotifierFailure{Message: result.Notify.Err}
	}
	return result, nil
}
