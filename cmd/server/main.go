package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"osrsprices/internal/config"
	"osrsprices/internal/httpx"
	"osrsprices/internal/logging"
	"osrsprices/internal/provider/ratelimit"
	"osrsprices/internal/provider/wiki"
)

func main() {
	// Config
	cfgPath := os.Getenv("CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}

	log, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		logrus.Fatalf("logging: %v", err)
	}

	httpClient := httpx.New(cfg.Wiki.Timeout())
	httpClient.UserAgent = cfg.Wiki.UserAgent

	gate := ratelimit.Shared()
	if cfg.Wiki.MaxRPS != ratelimit.MaxRPS {
		gate = ratelimit.NewGate(cfg.Wiki.MaxRPS)
	}

	client, err := wiki.NewClient(
		wiki.WithBaseURL(cfg.Wiki.BaseURL),
		wiki.WithHTTPClient(httpClient),
		wiki.WithUserAgent(cfg.Wiki.UserAgent),
		wiki.WithGate(gate),
		wiki.WithRetry(cfg.Wiki.MaxRetries, cfg.Wiki.BaseBackoff()),
		wiki.WithLogger(log),
	)
	if err != nil {
		log.WithError(err).Fatal("wiki client")
	}

	a := &api{
		src:     client,
		log:     logging.WithComponent(log, "server"),
		timeout: time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler(a),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Timeseries requests can sit behind retries with backoff.
		WriteTimeout: a.timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		a.log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Fatal("server")
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("shutdown")
	}
}
