package handler

import (
	"net/http"

	"github.com/boddenberg/budgets-bfa-go/internal/infra/observability"
	"github.com/boddenberg/budgets-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// API routes are served both at the root and under /api, the prefix the
// budgets web app and the PDF links use.
func NewRouter(budgetSvc *service.BudgetService, diagSvc *service.DiagnosticsService, metrics *observability.Metrics, allowedOrigins []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(diagSvc))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	api := func(r chi.Router) {
		// =============================================
		// Budgets
		// =============================================
		r.Post("/budgets", createBudgetHandler(budgetSvc, logger))
		r.Get("/budgets", listBudgetsHandler(budgetSvc, logger))
		r.Post("/budgets/{number}/send", resendBudgetHandler(budgetSvc, logger))
		r.Post("/budgets/send", resendBudgetHandler(budgetSvc, logger))

		// =============================================
		// Diagnostics
		// =============================================
		r.Get("/diag/webhook", webhookDiagHandler(diagSvc))
		r.Post("/diag/webhook", webhookPingHandler(diagSvc, logger))
		r.Get("/diag/n8n", webhookDiagHandler(diagSvc))
		r.Post("/diag/n8n", webhookPingHandler(diagSvc, logger))
	}

	r.Group(api)
	r.Route("/api", api)

	return r
}
