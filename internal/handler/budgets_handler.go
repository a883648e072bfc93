package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/boddenberg/budgets-bfa-go/internal/domain"
	"github.com/boddenberg/budgets-bfa-go/internal/infra/webhook"
	"github.com/boddenberg/budgets-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Budgets
// ============================================================

// maxBudgetBody leaves room for an inline (data URL) company logo.
const maxBudgetBody = 5 << 20

type saveBudgetResponse struct {
	OK            bool    `json:"ok"`
	ID            string  `json:"id"`
	N8nNotified   bool    `json:"n8nNotified"`
	N8nStatusCode *int    `json:"n8nStatusCode"`
	N8nError      *string `json:"n8nError"`
}

type resendBudgetResponse struct {
	OK            bool   `json:"ok"`
	N8nNotified   bool   `json:"n8nNotified"`
	N8nStatusCode *int   `json:"n8nStatusCode,omitempty"`
	N8nError      string `json:"n8nError,omitempty"`
	Info          string `json:"info,omitempty"`
	Error         string `json:"error,omitempty"`
}

func createBudgetHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /budgets")
		defer span.End()

		var body domain.Budget
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBudgetBody)).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "JSON inválido")
			return
		}

		res, err := svc.Save(ctx, &body, webhook.RequestOrigin(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("budget.number", res.Number))

		resp := saveBudgetResponse{OK: true, ID: res.Number}
		switch out := res.Notify; out.Status {
		case domain.NotifyDelivered:
			resp.N8nNotified = true
			resp.N8nStatusCode = intPtr(out.StatusCode)
		case domain.NotifyRejected:
			resp.N8nStatusCode = intPtr(out.StatusCode)
			resp.N8nError = &out.Err
		case domain.NotifyFailed:
			resp.N8nError = &out.Err
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func listBudgetsHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /budgets")
		defer span.End()

		budgets, err := svc.List(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("budgets.count", len(budgets)))

		writeJSON(w, http.StatusOK, budgets)
	}
}

func resendBudgetHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /budgets/{number}/send")
		defer span.End()

		number := budgetNumber(r)
		logger.Debug("resend requested",
			zap.String("path", r.URL.RequestURI()),
			zap.String("number", number),
		)

		res, err := svc.Resend(ctx, number, webhook.RequestOrigin(r))

		var rejection *domain.ErrNotifierRejection
		var failure *domain.ErrNotifierFailure
		switch {
		case errors.As(err, &rejection):
			logger.Warn("resend: webhook rejected",
				zap.String("number", number),
				zap.Int("status", rejection.StatusCode),
			)
			writeJSON(w, http.StatusBadGateway, resendBudgetResponse{
				N8nStatusCode: intPtr(rejection.StatusCode),
				N8nError:      rejection.Body,
				Error:         rejection.Error(),
			})
			return
		case errors.As(err, &failure):
			logger.Error("resend: webhook failed", zap.String("number", number), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, resendBudgetResponse{Error: failure.Error()})
			return
		case err != nil:
			handleServiceError(w, err, logger)
			return
		}

		if res.Notify.Status == domain.NotifySkipped {
			writeJSON(w, http.StatusOK, resendBudgetResponse{
				OK:   true,
				Info: "N8N_WEBHOOK_URL não configurado",
			})
			return
		}

		writeJSON(w, http.StatusOK, resendBudgetResponse{
			OK:            true,
			N8nNotified:   true,
			N8nStatusCode: intPtr(res.Notify.StatusCode),
		})
	}
}

// budgetNumber takes the number from the route parameter, then from the raw
// path (".../budgets/{number}/send"), then from ?number=.
func budgetNumber(r *http.Request) string {
	// chi matches on RawPath when it is set and on the decoded Path otherwise
	param := chi.URLParam(r, "number")
	if r.URL.RawPath != "" {
		param = unescape(param)
	}
	if n := strings.TrimSpace(param); n != "" {
		return n
	}

	parts := strings.FieldsFunc(r.URL.EscapedPath(), func(c rune) bool { return c == '/' })
	for i, p := range parts {
		// the segment must be followed by something, so "/budgets/send" yields nothing
		if p == "budgets" && i+2 < len(parts) {
			if n := unescape(parts[i+1]); n != "" {
				return n
			}
			break
		}
	}

	return strings.TrimSpace(r.URL.Query().Get("number"))
}

func unescape(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		s = u
	}
	return strings.TrimSpace(s)
}

func intPtr(v int) *int { return &v }
