package server

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"math/big"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nucypher/monitor/internal/crawler"
	"github.com/nucypher/monitor/internal/dashboard"
	"github.com/nucypher/monitor/internal/economics"
	"github.com/nucypher/monitor/internal/snapshot"
	"github.com/nucypher/monitor/internal/staker"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, req dashboard.Request) ([]dashboard.Fragment, error)
}

type SnapshotStore interface {
	Snapshot(ctx context.Context, staleOK bool) (*crawler.Snapshot, error)
	Current() *crawler.Snapshot
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// PageData fills the dashboard page template.
type PageData struct {
	Title     string
	RouteURL  string
	Intervals map[string]int64
}

// IndexHandler serves the dashboard page.
func IndexHandler(log *zap.Logger, tmpl *template.Template, page PageData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, page); err != nil {
			log.Error("Failed to render dashboard page", zap.Error(err))
		}
	}
}

// DashboardHandler renders the widgets bound to the trigger in the request path.
func DashboardHandler(log *zap.Logger, dispatcher Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dashboard.Request{
			Trigger: r.PathValue("trigger"),
			Tab:     r.URL.Query().Get("tab"),
			At:      time.Now(),
		}
		fragments, err := dispatcher.Dispatch(r.Context(), req)
		if errors.Is(err, dashboard.ErrUnknownTrigger) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			log.Error("Dispatch failed", zap.String("trigger", req.Trigger), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "dispatch failed")
			return
		}
		writeJSON(w, http.StatusOK, fragments)
	}
}

// SnapshotHandler serves the current snapshot; fresh=1 forces a refresh first.
func SnapshotHandler(log *zap.Logger, store SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fresh := r.URL.Query().Get("fresh") == "1"
		snap, err := store.Snapshot(r.Context(), !fresh)
		if err != nil {
			log.Warn("Snapshot unavailable", zap.Bool("fresh", fresh), zap.Error(err))
			status := http.StatusBadGateway
			if errors.Is(err, snapshot.ErrUnavailable) {
				status = http.StatusServiceUnavailable
			}
			writeError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// SupplyHandler serves the token supply breakdown.
func SupplyHandler(log *zap.Logger, token economics.TokenSupplier, initialSupply *big.Int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		supply, err := economics.Breakdown(r.Context(), token, initialSupply)
		if err != nil {
			log.Error("Failed to compute supply breakdown", zap.Error(err))
			writeError(w, http.StatusBadGateway, "failed to read token supply")
			return
		}
		writeJSON(w, http.StatusOK, supply)
	}
}

// StakerHandler serves on-chain staker status. Requests beyond limiter's rate are rejected.
func StakerHandler(log *zap.Logger, chain staker.Chain, limiter *rate.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if limiter != nil && !limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		address := r.PathValue("address")
		info, err := staker.Lookup(r.Context(), chain, address)
		if errors.Is(err, staker.ErrInvalidAddress) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			log.Error("Staker lookup failed", zap.String("address", address), zap.Error(err))
			writeError(w, http.StatusBadGateway, "failed to read staker status")
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// HealthHandler reports unavailable until the first snapshot is stored.
func HealthHandler(store SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := store.Current()
		if snap == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "waiting for first snapshot"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":     "ok",
			"fetched_at": snap.FetchedAt.UTC().Format(time.RFC3339),
			"age":        time.Since(snap.FetchedAt).Round(time.Second).String(),
		})
	}
}
