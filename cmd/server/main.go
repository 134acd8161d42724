package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docket/internal/platform/config"
	"docket/internal/platform/httpserver"
	"docket/internal/platform/logger"
)

// main wires the engine's collaborators and keeps the server lifecycle small.
// The process serves the operational surface and grant-backed object
// delivery, and runs the outbox relay; domain operations are a library
// surface consumed by the embedding platform.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, cfg, log)
	if err != nil {
		log.Error("failed to build dependencies", "error", err)
		os.Exit(1)
	}
	defer d.Close()

	srv := httpserver.New(cfg.Addr, newRouter(log, d))

	if d.relay != nil {
		go func() {
			if err := d.relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox relay stopped", "error", err)
			}
		}()
	}

	go func() {
		log.Info("starting docket",
			"addr", cfg.Addr,
			"object_store", cfg.ObjectStore.Backend,
			"postgres", cfg.PostgresDSN != "",
			"relay", d.relay != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
