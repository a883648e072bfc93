package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/budgets-bfa-go/internal/config"
	"github.com/boddenberg/budgets-bfa-go/internal/domain"
	"github.com/boddenberg/budgets-bfa-go/internal/port"

	"go.uber.org/zap"
)

// urlPreviewKeep is how many leading characters of the webhook URL are shown.
const urlPreviewKeep = 8

// DiagnosticsService exposes the webhook configuration (masked) and a ping.
type DiagnosticsService struct {
	resolved config.Resolved
	notifier port.BudgetNotifier
	store    port.BudgetStore
	logger   *zap.Logger
}

// NewDiagnosticsService creates the diagnostics service. store may be nil.
func NewDiagnosticsService(resolved config.Resolved, notifier port.BudgetNotifier, store port.BudgetStore, logger *zap.Logger) *DiagnosticsService {
	return &DiagnosticsService{resolved: resolved, notifier: notifier, store: store, logger: logger}
}

// Webhook reports which webhook settings are present. The token is never revealed.
func (s *DiagnosticsService) Webhook() *domain.WebhookDiagnostics {
	d := &domain.WebhookDiagnostics{
		OK:            true,
		HasURL:        s.resolved.WebhookURL != "",
		HasToken:      s.resolved.WebhookToken != "",
		PublicBaseSet: s.resolved.PublicBase != "",
	}
	d.Details.TokenPresent = d.HasToken
	if d.HasURL {
		preview := Mask(s.resolved.WebhookURL, urlPreviewKeep)
		d.Details.URLPreview = &preview
	}
	if d.PublicBaseSet {
		pb := s.resolved.PublicBase
		d.Details.PublicBase = &pb
	}
	return d
}

// PingWebhook sends a synthetic payload to the webhook. Rejected and failed
// outcomes are returned as-is; the caller decides the status code.
func (s *DiagnosticsService) PingWebhook(ctx context.Context, sample json.RawMessage) (*domain.NotifyOutcome, error) {
	ctx, span := tracer.Start(ctx, "DiagnosticsService.PingWebhook")
	defer span.End()

	if !s.notifier.Configured() {
		return nil, &domain.ErrValidation{Message: "N8N_WEBHOOK_URL não configurado no .env"}
	}
	return s.notifier.Ping(ctx, sample), nil
}

// Health pings the store, when one is configured.
func (s *DiagnosticsService) Health(ctx context.Context) *domain.HealthStatus {
	now := time.Now().Format(time.RFC3339)
	services := []domain.ServiceHealth{
		{Name: "budgets-api", Status: "healthy", LastChecked: now},
	}

	store := domain.ServiceHealth{Name: "store", Status: "unhealthy", LastChecked: now, Detail: "not configured"}
	if s.store != nil {
		start := time.Now()
		err := s.store.Ping(ctx)
		store.LatencyMs = time.Since(start).Milliseconds()
		store.Status, store.Detail = "healthy", ""
		if err != nil {
			store.Status, store.Detail = "degraded", err.Error()
			s.logger.Warn("health: store ping failed", zap.Error(err))
		}
	}
	services = append(services, store)

	webhook := domain.ServiceHealth{Name: "webhook", Status: "healthy", LastChecked: now}
	if !s.notifier.Configured() {
		webhook.Detail = "not configured"
	}
	services = append(services, webhook)

	overall := "healthy"
	for _, svc := range services {
		if svc.Status == "unhealthy" {
			overall = "unhealthy"
			break
		}
		if svc.Status == "degraded" {
			overall = "degraded"
		}
	}
	return &domain.HealthStatus{Status: overall, Services: services}
}

// Mask shows the first keep characters of v followed by "...(<len>)".
// Values no longer than keep are fully replaced by asterisks.
func Mask(v string, keep int) string {
	v = strings.TrimSpace(v)
	r := []rune(v)
	if len(r) <= keep {
		return strings.Repeat("*", len(r))
	}
	return fmt.Sprintf("%s...(%d)", string(r[:keep]), len(r))
}
