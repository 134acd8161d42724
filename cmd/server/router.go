package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	objecthandler "docket/internal/objectstore/handler"
	"docket/internal/platform/middleware"
	platformmetrics "docket/internal/platform/metrics"
	sourcemodels "docket/internal/source/models"
	"docket/pkg/platform/middleware/requesttime"
)

// newRouter builds the served surface: liveness, readiness, the Prometheus
// scrape endpoint, and the grant-backed object delivery routes.
func newRouter(log *slog.Logger, d *deps) http.Handler {
	proc := platformmetrics.New()

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(proc))

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(d))
	r.Method(http.MethodGet, "/metrics", platformmetrics.Handler())

	delivery := objecthandler.New(d.objects, d.grants, log,
		objecthandler.WithMaxUploadBytes(sourcemodels.MaxUploadBytes))
	delivery.Register(r)

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, "ok")
}

// handleReadyz reports ready only when every configured backend answers.
func handleReadyz(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if d.db != nil {
			if err := d.db.PingContext(ctx); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "postgres unavailable")
				return
			}
		}
		if d.redis != nil {
			if err := d.redis.Health(ctx); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "redis unavailable")
				return
			}
		}
		if d.producer != nil {
			if err := d.producer.Ping(ctx); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "kafka unavailable")
				return
			}
		}
		writeStatus(w, http.StatusOK, "ok")
	}
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
