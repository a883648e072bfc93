package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/boddenberg/budgets-bfa-go/internal/domain"
	"github.com/boddenberg/budgets-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Diagnostics
// ============================================================

const maxPingBody = 1 << 20

type pingResponse struct {
	OK     bool   `json:"ok"`
	Status int    `json:"status"`
	Body   string `json:"body"`
}

type pingFailureResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func webhookDiagHandler(svc *service.DiagnosticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Webhook())
	}
}

func webhookPingHandler(svc *service.DiagnosticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /diag/webhook")
		defer span.End()

		// an unreadable or non-JSON body falls back to the default sample
		raw, _ := io.ReadAll(io.LimitReader(r.Body, maxPingBody))
		if !json.Valid(raw) {
			raw = nil
		}

		out, err := svc.PingWebhook(ctx, raw)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		switch out.Status {
		case domain.NotifyDelivered:
			writeJSON(w, http.StatusOK, pingResponse{OK: true, Status: out.StatusCode, Body: out.Body})
		case domain.NotifyRejected:
			writeJSON(w, http.StatusBadGateway, pingResponse{OK: false, Status: out.StatusCode, Body: out.Body})
		default:
			writeJSON(w, http.StatusInternalServerError, pingFailureResponse{OK: false, Error: out.Err})
		}
	}
}

func healthzHandler(svc *service.DiagnosticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Health(r.Context()))
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
