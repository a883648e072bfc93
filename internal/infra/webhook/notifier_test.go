package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/budgets-bfa-go/internal/domain"
	"github.com/boddenberg/budgets-bfa-go/internal/infra/observability"
	"github.com/boddenberg/budgets-bfa-go/internal/infra/webhook"

	"go.uber.org/zap"
)

type captured struct {
	mu      sync.Mutex
	headers http.Header
	body    map[string]any
	calls   int
}

func (c *captured) handler(status int, reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.calls++
		c.headers = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &c.body)
		c.mu.Unlock()

		w.WriteHeader(status)
		io.WriteString(w, reply)
	}
}

func newNotifier(url, token, publicBase string, timeout time.Duration) (*webhook.Notifier, *observability.Metrics) {
	m := observability.NewMetrics()
	n := webhook.NewNotifier(&http.Client{}, webhook.Config{
		URL:        url,
		Token:      token,
		PublicBase: publicBase,
		Timeout:    timeout,
	}, m, zap.NewNop())
	return n, m
}

func sampleBudget() *domain.Budget {
	return &domain.Budget{
		Number: "ORC 10/24",
		Date:   "2024-05-01T10:00:00.000Z",
		Client: domain.Client{Name: "Ana", Phone: "(11) 91234-5678"},
		Items:  []domain.Item{{ID: "1", Description: "Revisão", Quantity: 1, UnitPrice: 300, DisplayPrice: "R$ 300,00"}},
		Total:  300,
	}
}

func TestNotify_SkippedWithoutURL(t *testing.T) {
	n, m := newNotifier("  ", "", "", 0)

	out := n.Notify(context.Background(), sampleBudget(), "http://localhost:3000")

	if out.Status != domain.NotifySkipped {
		t.Fatalf("expected skipped, got %s", out.Status)
	}
	if n.Configured() {
		t.Error("expected notifier to be unconfigured")
	}
	if m.WebhookDeliveries("skipped") != 1 {
		t.Error("expected skipped outcome to be counted")
	}
}

func TestNotify_Delivered(t *testing.T) {
	c := &captured{}
	srv := httptest.NewServer(c.handler(http.StatusOK, `{"received":true}`))
	defer srv.Close()

	n, m := newNotifier(srv.URL, "tok-123", "https://orcamentos.example.com/", 0)
	out := n.Notify(context.Background(), sampleBudget(), "http://localhost:3000")

	if out.Status != domain.NotifyDelivered || !out.Delivered() {
		t.Fatalf("expected delivered, got %+v", out)
	}
	if out.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", out.StatusCode)
	}
	if got := c.headers.Get("Authorization"); got != "Bearer tok-123" {
		t.Errorf("expected bearer token, got %q", got)
	}
	if got := c.headers.Get("Content-Type"); got != "application/json" {
		t.Errorf("expected json content type, got %q", got)
	}
	if c.headers.Get("X-Delivery-Id") == "" {
		t.Error("expected a delivery id header")
	}

	if got := c.body["pdfUrl"]; got != "https://orcamentos.example.com/api/budgets/pdf?number=ORC%2010%2F24" {
		t.Errorf("unexpected pdfUrl %v", got)
	}
	client := c.body["client"].(map[string]any)
	if client["phoneDigits"] != "11912345678" {
		t.Errorf("expected phoneDigits 11912345678, got %v", client["phoneDigits"])
	}
	if client["name"] != "Ana" {
		t.Errorf("expected client name to be kept, got %v", client["name"])
	}
	if c.body["number"] != "ORC 10/24" || c.body["total"] != float64(300) {
		t.Errorf("expected budget fields in payload, got %v", c.body)
	}
	if m.WebhookDeliveries("delivered") != 1 {
		t.Error("expected delivered outcome to be counted")
	}
}

func TestNotify_NoTokenNoAuthorization(t *testing.T) {
	c := &captured{}
	srv := httptest.NewServer(c.handler(http.StatusNoContent, ""))
	defer srv.Close()

	n, _ := newNotifier(srv.URL, "", "", 0)
	out := n.Notify(context.Background(), sampleBudget(), "http://api.local:8080")

	if !out.Delivered() {
		t.Fatalf("expected delivered, got %+v", out)
	}
	if _, ok := c.headers["Authorization"]; ok {
		t.Error("expected no Authorization header without a token")
	}
	if got := c.body["pdfUrl"]; got != "http://api.local:8080/api/budgets/pdf?number=ORC%2010%2F24" {
		t.Errorf("expected pdfUrl from request origin, got %v", got)
	}
}

func TestNotify_RejectedKeepsBoundedPreview(t *testing.T) {
	c := &captured{}
	long := strings.Repeat("x", 800)
	srv := httptest.NewServer(c.handler(http.StatusInternalServerError, long))
	defer srv.Close()

	n, m := newNotifier(srv.URL, "", "", 0)
	out := n.Notify(context.Background(), sampleBudget(), "http://localhost")

	if out.Status != domain.NotifyRejected {
		t.Fatalf("expected rejected, got %s", out.Status)
	}
	if out.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", out.StatusCode)
	}
	if len(out.Body) != 500 {
		t.Errorf("expected 500-char preview, got %d", len(out.Body))
	}
	if !strings.HasPrefix(out.Err, "n8n respondeu 500: ") {
		t.Errorf("unexpected error text %q", out.Err)
	}
	if c.calls != 1 {
		t.Errorf("expected a single attempt, got %d", c.calls)
	}
	if m.WebhookDeliveries("rejected") != 1 {
		t.Error("expected rejected outcome to be counted")
	}
}

func TestNotify_TimeoutIsFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	n, m := newNotifier(srv.URL, "", "", 50*time.Millisecond)

	start := time.Now()
	out := n.Notify(context.Background(), sampleBudget(), "http://localhost")
	elapsed := time.Since(start)

	if out.Status != domain.NotifyFailed {
		t.Fatalf("expected failed, got %+v", out)
	}
	if out.Err == "" {
		t.Error("expected a failure message")
	}
	if elapsed > 2*time.Second {
		t.Errorf("expected the call to be aborted near the timeout, took %s", elapsed)
	}
	if m.WebhookDeliveries("failed") != 1 {
		t.Error("expected failed outcome to be counted")
	}
}

func TestNotify_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	n, _ := newNotifier(url, "", "", time.Second)
	out := n.Notify(context.Background(), sampleBudget(), "http://localhost")

	if out.Status != domain.NotifyFailed {
		t.Fatalf("expected failed, got %s", out.Status)
	}
}

func TestNotify_IgnoresCallerCancellation(t *testing.T) {
	c := &captured{}
	srv := httptest.NewServer(c.handler(http.StatusOK, "ok"))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, _ := newNotifier(srv.URL, "", "", time.Second)
	out := n.Notify(ctx, sampleBudget(), "http://localhost")

	if !out.Delivered() {
		t.Fatalf("expected delivery despite cancelled caller context, got %+v", out)
	}
}

func TestPing_DefaultAndCustomSample(t *testing.T) {
	c := &captured{}
	srv := httptest.NewServer(c.handler(http.StatusOK, "pong"))
	defer srv.Close()

	n, _ := newNotifier(srv.URL, "", "", time.Second)

	out := n.Ping(context.Background(), nil)
	if !out.Delivered() || out.Body != "pong" {
		t.Fatalf("expected delivered ping, got %+v", out)
	}
	if c.body["ping"] != true {
		t.Errorf("expected ping flag, got %v", c.body["ping"])
	}
	if _, err := time.Parse(time.RFC3339, c.body["ts"].(string)); err != nil {
		t.Errorf("expected RFC3339 ts, got %v", c.body["ts"])
	}
	sample := c.body["sample"].(map[string]any)
	if sample["message"] != "diagnostic" {
		t.Errorf("expected default sample, got %v", sample)
	}

	n.Ping(context.Background(), json.RawMessage(`{"hello":"world"}`))
	sample = c.body["sample"].(map[string]any)
	if sample["hello"] != "world" {
		t.Errorf("expected caller sample, got %v", sample)
	}

	n.Ping(context.Background(), json.RawMessage(`{}`))
	sample = c.body["sample"].(map[string]any)
	if sample["message"] != "diagnostic" {
		t.Errorf("expected empty object to fall back to default, got %v", sample)
	}
}

func TestPing_PreviewIs1000Chars(t *testing.T) {
	c := &captured{}
	srv := httptest.NewServer(c.handler(http.StatusBadGateway, strings.Repeat("é", 1500)))
	defer srv.Close()

	n, _ := newNotifier(srv.URL, "", "", time.Second)
	out := n.Ping(context.Background(), nil)

	if out.Status != domain.NotifyRejected {
		t.Fatalf("expected rejected, got %s", out.Status)
	}
	if got := len([]rune(out.Body)); got != 1000 {
		t.Errorf("expected 1000-char preview, got %d", got)
	}
}

func TestPDFLink(t *testing.T) {
	tests := []struct {
		name, publicBase, origin, number, want string
	}{
		{"origin fallback", "", "http://localhost:3000", "42", "http://localhost:3000/api/budgets/pdf?number=42"},
		{"public base wins", "https://app.example.com", "http://10.0.0.1", "42", "https://app.example.com/api/budgets/pdf?number=42"},
		{"trailing slash trimmed", "https://app.example.com/", "", "42", "https://app.example.com/api/budgets/pdf?number=42"},
		{"scheme is case-insensitive", "HTTPS://APP.example.com", "http://x", "1", "HTTPS://APP.example.com/api/budgets/pdf?number=1"},
		{"non-http base ignored", "app.example.com", "https://api.example.com", "1", "https://api.example.com/api/budgets/pdf?number=1"},
		{"number escaped", "", "http://h", "A&B 1+2", "http://h/api/budgets/pdf?number=A%26B%201%2B2"},
		{"marks kept", "", "http://h", "ORC(1)!*'~", "http://h/api/budgets/pdf?number=ORC(1)!*'~"},
		{"literal percent", "", "http://h", "50%21", "http://h/api/budgets/pdf?number=50%2521"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := webhook.PDFLink(tt.publicBase, tt.origin, tt.number); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestRequestOrigin(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://api.local:8080/budgets", nil)
	if got := webhook.RequestOrigin(r); got != "http://api.local:8080" {
		t.Errorf("expected http origin, got %s", got)
	}

	r.Header.Set("X-Forwarded-Proto", "https")
	r.Header.Set("X-Forwarded-Host", "orcamentos.example.com")
	if got := webhook.RequestOrigin(r); got != "https://orcamentos.example.com" {
		t.Errorf("expected forwarded origin, got %s", got)
	}
}

func TestDefaultTimeout(t *testing.T) {
	if webhook.DefaultTimeout != 7*time.Second {
		t.Errorf("expected 7s, got %s", webhook.DefaultTimeout)
	}
}
