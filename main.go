package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gospc/api"
	"gospc/internal"
	"gospc/internal/config"
	"gospc/internal/container"
	"gospc/internal/ops"
)

func main() {
	logger := internal.DefaultLogger

	appConfig, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.Open(ctx, appConfig, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer appContainer.Shutdown(context.Background())

	var opsServer *ops.Server
	if appConfig.Ops.Enabled {
		opsServer = ops.NewServer(net.JoinHostPort("", appConfig.Ops.Port), appContainer.Metrics, logger)
		opsServer.Start()
	}

	apiServer := api.NewServer(appContainer.AnalysisService, appConfig.Server.GinMode, logger)
	srv := &http.Server{
		Addr:              net.JoinHostPort("", appConfig.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Bool("database", appConfig.Database.Enabled()).
			Int("sample_size", appConfig.Solver.SampleSize).
			Str("time_frame", appConfig.Solver.TimeFrame.String()).
			Msg("api server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api shutdown failed")
	}
	if opsServer != nil {
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("ops shutdown failed")
		}
	}
}
