package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/app"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/lang-app-api/shared/logging"
)

func main() {
	logger := logging.NewLogger(app.ServiceName, os.Getenv("LOG_LEVEL"))
	cfg := config.NewAuthServiceConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start auth service")
	}

	if err := a.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("auth service stopped with error")
	}
}
