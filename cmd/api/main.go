// Command api serves the pipeline entry points over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filing_valuation/pkg/api/config"
	"filing_valuation/pkg/api/filing"
	"filing_valuation/pkg/api/valuation"
	"filing_valuation/pkg/app"
	appconfig "filing_valuation/pkg/config"
	"filing_valuation/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg, err := appconfig.Load(appconfig.DefaultPath)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	filing.NewHandler(a.Orchestrator, log).RegisterRoutes(r)
	valuation.NewHandler(a.Store, log).RegisterRoutes(r)
	r.Get("/api/config", config.NewHandler(cfg).HandleConfig)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Server.Addr).Msg("API server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server failed")
		a.Close()
		os.Exit(1)
	}
	log.Info().Msg("API server stopped")
}
