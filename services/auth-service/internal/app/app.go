// Package app wires the auth service and runs its HTTP and health servers.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/handler"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/payload"
	"github.com/vasapolrittideah/lang-app-api/shared/utilities"
)

const (
	ServiceName     = "auth-service"
	shutdownTimeout = 5 * time.Second
)

type App struct {
	cfg    *config.AuthServiceConfig
	logger *zerolog.Logger
	deps   *Dependencies

	httpServer   *http.Server
	grpcServer   *grpc.Server
	healthServer *health.Server
}

func NewApp(ctx context.Context, cfg *config.AuthServiceConfig, logger *zerolog.Logger) (*App, error) {
	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := deps.Redis.Ping(ctx).Err(); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("session store: %w", err)
	}

	validator, err := payload.NewValidator()
	if err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("payload validator: %w", err)
	}

	authHandler := handler.NewAuthHTTPHandler(deps.Auth, validator, logger)

	grpcServer := grpc.NewServer()

	return &App{
		cfg:    cfg,
		logger: logger,
		deps:   deps,
		httpServer: &http.Server{
			Handler:           handler.NewRouter(authHandler, logger),
			ReadHeaderTimeout: 5 * time.Second,
		},
		grpcServer:   grpcServer,
		healthServer: utilities.RegisterHealthServer(grpcServer, ServiceName),
	}, nil
}

// Run listens on the configured addresses and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}

	healthLn, err := net.Listen("tcp", a.cfg.HealthAddr)
	if err != nil {
		_ = httpLn.Close()
		return fmt.Errorf("listen health: %w", err)
	}

	return a.Serve(ctx, httpLn, healthLn)
}

// Serve runs both servers on the given listeners until ctx is cancelled or one
// of them fails, then shuts down and releases the stores.
func (a *App) Serve(ctx context.Context, httpLn, healthLn net.Listener) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info().Str("addr", httpLn.Addr().String()).Msg("http server listening")
		if err := a.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		a.logger.Info().Str("addr", healthLn.Addr().String()).Msg("health server listening")
		if err := a.grpcServer.Serve(healthLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("health server: %w", err)
		}
	}()

	utilities.SetServing(a.healthServer, ServiceName, true)

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info().Msg("shutting down")
	case serveErr = <-errCh:
		a.logger.Error().Err(serveErr).Msg("server failed")
	}

	return errors.Join(serveErr, a.shutdown())
}

func (a *App) shutdown() error {
	utilities.SetServing(a.healthServer, ServiceName, false)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}

	a.grpcServer.GracefulStop()

	if err := a.deps.Close(ctx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
