package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/notegest/internal/api"
	"github.com/dgallion1/notegest/internal/config"
	"github.com/dgallion1/notegest/internal/pathstore"
	"github.com/dgallion1/notegest/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		ps  *pathstore.Client
		pub *pathstore.Publisher
	)
	if cfg.PublishEnabled() {
		ps = pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		pub = pathstore.NewPublisher(ps, log.With("component", "publisher"))
	} else {
		log.Warn("PATHSTORE_URL not set, publishing disabled")
	}

	orch := pipeline.NewOrchestrator(cfg, pub, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		// Stop accepting uploads, then let the workers drain the queue.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown", "error", err)
		}

		orch.Stop()
		if ps != nil {
			ps.Close()
		}
	}()

	log.Info("starting notegest", "port", cfg.Port, "workers", cfg.WorkerCount, "publishing", pub != nil)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-stopped
}
