package main

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/Proton-105/tapcoin-engine/internal/errors"
	"github.com/Proton-105/tapcoin-engine/internal/payments"
	"github.com/Proton-105/tapcoin-engine/pkg/logger"
)

// PaymentSecretHeader carries the shared secret of the payment callback.
const PaymentSecretHeader = "X-Payment-Secret"

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", a.probes.HealthzHandler())
	mux.Handle("GET /readyz", a.probes.ReadyzHandler())
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /stats", a.handleStats)
	if a.cfg.Payments.WebhookSecret != "" {
		mux.HandleFunc("POST /payments/settle", a.handleSettle)
	}
	return logger.Middleware(a.log)(mux)
}

func (a *app) handleStats(w http.ResponseWriter, r *http.Request) {
	agg, err := a.engine.GlobalStats(r.Context())
	if err != nil {
		msg, _ := a.errs.Handle(r.Context(), err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": msg})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"total_coins": agg.TotalCoins,
		"total_taps":  agg.TotalTaps,
		"total_users": agg.TotalUsers,
	})
}

func (a *app) handleSettle(w http.ResponseWriter, r *http.Request) {
	secret := []byte(a.cfg.Payments.WebhookSecret)
	if subtle.ConstantTimeCompare([]byte(r.Header.Get(PaymentSecretHeader)), secret) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var st payments.Settlement
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&st); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed settlement"})
		return
	}

	receipt, err := a.settler.Settle(r.Context(), st)
	if err != nil {
		msg, _ := a.errs.Handle(r.Context(), err)
		writeJSON(w, statusOf(err), map[string]string{"error": msg})
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func statusOf(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindInvalidInput:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindRateLimited:
		return http.StatusTooManyRequests
	case apperrors.KindInsufficientResource, apperrors.KindAlreadyExpired:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
