// Package router configures the forecaster's HTTP API.
//
// Routes:
//   - GET /forecast/current?series=<name> - latest forecast of a series
//   - GET /forecast/runs/{id}             - forecast of one run
//   - GET /healthz                        - health check, 503 if the store is unreachable
//   - GET /metrics                        - Prometheus metrics
//
// Forecasts older than the stale threshold carry an X-Epicast-Stale header.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/epicast/epicast/pkg/httpx"
	"github.com/epicast/epicast/pkg/storage"
)

// StaleHeader marks responses whose forecast is older than the stale threshold.
const StaleHeader = "X-Epicast-Stale"

// Pinger is implemented by stores with a reachable backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SetupRoutes builds the router. A staleAfter of 0 never marks forecasts stale.
func SetupRoutes(store storage.Store, staleAfter time.Duration, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := mux.NewRouter()

	var check func(ctx context.Context) error
	if p, ok := store.(Pinger); ok {
		check = p.Ping
	}
	r.Handle("/healthz", httpx.HealthHandler(check)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/forecast/current", handleCurrent(store, staleAfter, logger)).Methods(http.MethodGet)
	r.HandleFunc("/forecast/runs/{id}", handleRun(store, staleAfter, logger)).Methods(http.MethodGet)

	return httpx.Wrap(r, logger)
}

func handleCurrent(store storage.Store, staleAfter time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		series := r.URL.Query().Get("series")
		if series == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "series parameter required")
			return
		}
		if err := storage.ValidateName("series", series); err != nil {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid series name format")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		snapshot, found, err := store.GetLatest(ctx, series)
		if err != nil {
			logger.Error("failed to get snapshot", "series", series, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("no forecast for series %q", series))
			return
		}
		writeSnapshot(w, snapshot, staleAfter, logger)
	}
}

func handleRun(store storage.Store, staleAfter time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if err := storage.ValidateName("run id", id); err != nil {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid run id format")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		snapshot, found, err := store.GetRun(ctx, id)
		if err != nil {
			logger.Error("failed to get run", "run_id", id, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("run %q not found", id))
			return
		}
		writeSnapshot(w, snapshot, staleAfter, logger)
	}
}

func writeSnapshot(w http.ResponseWriter, s storage.Snapshot, staleAfter time.Duration, logger *slog.Logger) {
	if staleAfter > 0 && time.Since(s.GeneratedAt) > staleAfter {
		w.Header().Set(StaleHeader, "true")
	}
	if err := httpx.WriteJSON(w, http.StatusOK, s); err != nil {
		logger.Error("failed to write JSON response", "error", err)
	}
}
