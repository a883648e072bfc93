// Package webhook delivers budget notifications to the n8n automation webhook.
// Each call makes exactly one POST bounded by a timeout; nothing is retried or queued.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/boddenberg/budgets-bfa-go/internal/domain"
	"github.com/boddenberg/budgets-bfa-go/internal/infra/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("webhook")

const (
	// DefaultTimeout bounds one delivery attempt.
	DefaultTimeout = 7 * time.Second

	// PDFPath is the public route that renders a budget PDF.
	PDFPath = "/api/budgets/pdf"

	notifyPreviewLen = 500
	pingPreviewLen   = 1000
	maxBodyRead      = 64 << 10
)

var absoluteHTTPURL = regexp.MustCompile(`(?i)^https?://`)

// Config is the webhook part of the process configuration.
type Config struct {
	URL        string
	Token      string
	PublicBase string
	Timeout    time.Duration
}

// Notifier POSTs budget notifications and diagnostic pings to the webhook.
type Notifier struct {
	httpClient *http.Client
	cfg        Config
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewNotifier creates a Notifier. A zero Timeout means DefaultTimeout.
func NewNotifier(httpClient *http.Client, cfg Config, metrics *observability.Metrics, logger *zap.Logger) *Notifier {
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.PublicBase = strings.TrimSpace(cfg.PublicBase)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Notifier{
		httpClient: httpClient,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Configured reports whether a webhook URL is set.
func (n *Notifier) Configured() bool {
	return n.cfg.URL != ""
}

// Notify sends the budget notification. origin is the inbound request's
// scheme://host, used for the PDF link when no public base is configured.
func (n *Notifier) Notify(ctx context.Context, b *domain.Budget, origin string) *domain.NotifyOutcome {
	if !n.Configured() {
		n.record(domain.NotifySkipped, 0)
		return &domain.NotifyOutcome{Status: domain.NotifySkipped}
	}

	pdfURL := PDFLink(n.cfg.PublicBase, origin, b.Number)
	payload := domain.NewNotificationPayload(b, pdfURL)

	ctx, span := tracer.Start(ctx, "Webhook.Notify")
	defer span.End()
	span.SetAttributes(attribute.String("budget.number", b.Number))

	out := n.deliver(ctx, payload, notifyPreviewLen)
	if out.Status == domain.NotifyRejected {
		out.Err = fmt.Sprintf("n8n respondeu %d: %s", out.StatusCode, out.Body)
	}
	setSpanOutcome(span, out)

	switch out.Status {
	case domain.NotifyDelivered:
		n.logger.Info("webhook: budget notified",
			zap.String("number", b.Number),
			zap.Int("status", out.StatusCode),
		)
	default:
		n.logger.Warn("webhook: budget notification not delivered",
			zap.String("number", b.Number),
			zap.String("outcome", string(out.Status)),
			zap.Int("status", out.StatusCode),
			zap.String("error", out.Err),
		)
	}
	return out
}

// Ping sends a diagnostic payload through the same delivery path as Notify.
// sample is used as-is when it is a non-empty JSON object.
func (n *Notifier) Ping(ctx context.Context, sample json.RawMessage) *domain.NotifyOutcome {
	if !n.Configured() {
		n.record(domain.NotifySkipped, 0)
		return &domain.NotifyOutcome{Status: domain.NotifySkipped}
	}

	ctx, span := tracer.Start(ctx, "Webhook.Ping")
	defer span.End()

	payload := domain.PingPayload{
		Ping:   true,
		TS:     n.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Sample: pingSample(sample),
	}

	out := n.deliver(ctx, payload, pingPreviewLen)
	setSpanOutcome(span, out)
	n.logger.Info("webhook: diagnostic ping",
		zap.String("outcome", string(out.Status)),
		zap.Int("status", out.StatusCode),
	)
	return out
}

// deliver performs the single bounded POST and classifies the result.
// The caller's cancellation is ignored; only the timeout can abort the call.
func (n *Notifier) deliver(ctx context.Context, payload any, previewLen int) *domain.NotifyOutcome {
	start := time.Now()
	out := n.post(ctx, payload, previewLen)
	n.record(out.Status, time.Since(start))
	return out
}

func (n *Notifier) post(ctx context.Context, payload any, previewLen int) *domain.NotifyOutcome {
	body, err := json.Marshal(payload)
	if err != nil {
		return &domain.NotifyOutcome{Status: domain.NotifyFailed, Err: fmt.Sprintf("encode payload: %v", err)}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return &domain.NotifyOutcome{Status: domain.NotifyFailed, Err: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.NewString())
	if n.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+n.cfg.Token)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return &domain.NotifyOutcome{Status: domain.NotifyFailed, Err: transportMessage(ctx, err, n.cfg.Timeout)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))
	text := string(raw)
	if err != nil && text == "" {
		text = "<no-body>"
	}

	out := &domain.NotifyOutcome{
		StatusCode: resp.StatusCode,
		Body:       truncate(text, previewLen),
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		out.Status = domain.NotifyDelivered
	} else {
		out.Status = domain.NotifyRejected
	}
	return out
}

func (n *Notifier) record(status domain.NotifyStatus, d time.Duration) {
	if n.metrics != nil {
		n.metrics.RecordWebhookDelivery(string(status), d)
	}
}

// PDFLink builds {base}/api/budgets/pdf?number=<escaped number>. publicBase wins
// when it is an absolute http(s) URL; otherwise origin is used.
func PDFLink(publicBase, origin, number string) string {
	base := strings.TrimSpace(origin)
	if pb := strings.TrimSpace(publicBase); pb != "" && absoluteHTTPURL.MatchString(pb) {
		base = pb
	}
	base = strings.TrimSuffix(base, "/")
	return base + PDFPath + "?number=" + escapeComponent(number)
}

// RequestOrigin returns scheme://host for r, honouring X-Forwarded-Proto.
func RequestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(p, ",")[0]))
	}
	host := r.Host
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = strings.TrimSpace(strings.Split(h, ",")[0])
	}
	return scheme + "://" + host
}

// componentUnescaper restores the marks encodeURIComponent leaves as-is.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// escapeComponent percent-encodes s for a query value the way
// encodeURIComponent does: spaces as %20, !'()* unescaped.
func escapeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

func pingSample(sample json.RawMessage) any {
	var obj map[string]any
	if len(sample) > 0 && json.Unmarshal(sample, &obj) == nil && len(obj) > 0 {
		return obj
	}
	return map[string]string{"message": "diagnostic"}
}

func transportMessage(ctx context.Context, err error, timeout time.Duration) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("webhook não respondeu em %s", timeout)
	}
	return err.Error()
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func setSpanOutcome(span trace.Span, out *domain.NotifyOutcome) {
	span.SetAttributes(
		attribute.String("webhook.outcome", string(out.Status)),
		attribute.Int("http.status_code", out.StatusCode),
	)
	if out.Status == domain.NotifyFailed || out.Status == domain.NotifyRejected {
		span.SetStatus(codes.Error, out.Err)
	}
}
