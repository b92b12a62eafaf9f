package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dropDatabas3/policyreg/internal/app"
	"github.com/dropDatabas3/policyreg/internal/config"
	"github.com/dropDatabas3/policyreg/internal/observability/logger"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("⚠️  .env: %v", err)
	}

	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "ruta al config.yaml (opcional)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("❌ config: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "policyd",
		NodeID:      cfg.Cluster.NodeID,
	})
	defer func() { _ = logger.Sync() }()
	lg := logger.L()

	a, err := app.New(cfg)
	if err != nil {
		lg.Fatal("wiring failed", logger.Err(err))
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Las escrituras esperan el quorum hasta ack_timeout.
		WriteTimeout: cfg.AckTimeout() + 10*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		lg.Info("server listening",
			logger.String("addr", cfg.Server.Addr),
			logger.String("cluster_mode", cfg.Cluster.Mode),
			logger.String("quorum", cfg.Coordinator.Quorum),
			logger.String("ack_timeout", cfg.AckTimeout().String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		lg.Info("shutdown requested")
	case err := <-errCh:
		if err != nil {
			lg.Error("server failed", logger.Err(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.AckTimeout()+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		lg.Warn("http shutdown", logger.Err(err))
	}
	if err := a.Close(); err != nil {
		lg.Warn("cleanup", logger.Err(err))
	}
	lg.Info("bye")
}
