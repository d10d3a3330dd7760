// Package api exposes the engine's trigger and query surface over HTTP:
// liquidation runs, carry-cost cycles, margin summaries and the audit
// trail. Mutating triggers require the shared engine token.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/carrycost"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/liquidate"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/margin"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/model"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/store"
)

// TokenHeader is the header carrying the shared engine secret.
const TokenHeader = "X-Engine-Token"

// Service wires the HTTP surface to the engine components.
type Service struct {
	store    store.Store
	executor *liquidate.Executor
	accrual  *carrycost.Job
	token    string
}

// NewService creates the API service. The token guards mutating triggers;
// an empty token disables those routes entirely rather than leaving them
// open.
func NewService(st store.Store, executor *liquidate.Executor, accrual *carrycost.Job, token string) *Service {
	return &Service{
		store:    st,
		executor: executor,
		accrual:  accrual,
		token:    token,
	}
}

// Routes mounts all engine routes on a chi router.
func (s *Service) Routes(r chi.Router) {
	r.Get("/accounts/{accountID}/margin", s.GetMarginSummary)
	r.Get("/liquidations/{accountID}", s.GetLiquidations)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/liquidations/run", s.RunLiquidation)
		r.Post("/carrycost/run", s.RunCarryCost)
	})
}

// requireToken rejects trigger invocations whose shared secret is missing
// or wrong, before any processing begins.
func (s *Service) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			writeError(w, "engine triggers are disabled: no token configured", http.StatusUnauthorized)
			return
		}
		got := r.Header.Get(TokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			writeError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RunLiquidation handles POST /api/v1/liquidations/run.
//
// With a MarginCallEvent JSON body, runs that single event. With an empty
// body, processes all events currently flagged as awaiting liquidation and
// returns the aggregate result. Either way the scheduler receives a
// structured result — business failures are payload, not HTTP errors.
func (s *Service) RunLiquidation(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	if len(body) == 0 {
		batch, err := s.executor.RunPending(ctx)
		if err != nil {
			writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		slog.Info("pending liquidations processed",
			"processed", batch.Processed, "succeeded", batch.Succeeded)
		writeJSON(w, http.StatusOK, batch)
		return
	}

	var ev model.MarginCallEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		writeError(w, "invalid margin call payload", http.StatusBadRequest)
		return
	}
	if ev.AccountID == "" {
		writeError(w, "account_id is required", http.StatusBadRequest)
		return
	}

	res := s.executor.Run(ctx, &ev)
	writeJSON(w, http.StatusOK, res)
}

// RunCarryCost handles POST /api/v1/carrycost/run — an immediate accrual
// cycle outside the scheduled cadence.
func (s *Service) RunCarryCost(w http.ResponseWriter, r *http.Request) {
	result, err := s.accrual.RunCycle(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetMarginSummary handles GET /api/v1/accounts/{accountID}/margin.
// Returns the live margin health snapshot for one account.
func (s *Service) GetMarginSummary(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	account, err := s.store.GetAccount(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "account not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to load account", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, margin.Summarize(account.Equity, account.MarginUsed))
}

// GetLiquidations handles GET /api/v1/liquidations/{accountID}.
// Returns the liquidation audit trail, newest first.
func (s *Service) GetLiquidations(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	events, err := s.store.GetLiquidationEvents(r.Context(), accountID)
	if err != nil {
		writeError(w, "failed to load liquidation events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []model.LiquidationEvent{}
	}

	writeJSON(w, http.StatusOK, events)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
