package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/lang-app-api/shared/auth"
	"github.com/vasapolrittideah/lang-app-api/shared/security"
)

// Dependencies holds the stores and use cases shared by the server and the operator CLI.
type Dependencies struct {
	DB      *sql.DB
	Dialect repository.Dialect
	Mongo   *mongo.Client
	Redis   *redis.Client

	Identities repository.IdentityRepository
	MirrorRepo repository.MirrorCredentialRepository
	Mirror     *usecase.CredentialMirror
	Hasher     security.PasswordHasher
	Audit      *usecase.AuditDispatcher
	Sessions   usecase.SessionUsecase
	Auth       usecase.AuthUsecase

	logger *zerolog.Logger
}

// NewDependencies opens the canonical store (applying migrations), connects the
// optional mirror when MONGO_URI is set and wires the use cases. The redis client
// connects lazily, so commands that never touch sessions do not need redis.
func NewDependencies(
	ctx context.Context,
	cfg *config.AuthServiceConfig,
	logger *zerolog.Logger,
) (*Dependencies, error) {
	deps := &Dependencies{logger: logger}

	db, dialect, err := repository.OpenCanonicalDB(ctx, logger, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("canonical store: %w", err)
	}
	deps.DB = db
	deps.Dialect = dialect
	deps.Identities = repository.NewIdentitySQLRepository(db, dialect)

	sinks := usecase.MultiAuditSink{usecase.NewLogAuditSink(logger)}

	if cfg.Mongo.Enabled() {
		client, err := mongo.Connect(options.Client().
			ApplyURI(cfg.Mongo.URI).
			SetTimeout(cfg.Mongo.Timeout))
		if err != nil {
			_ = deps.Close(ctx)
			return nil, fmt.Errorf("credential mirror: %w", err)
		}
		deps.Mongo = client

		pingCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
		if err := client.Ping(pingCtx, nil); err != nil {
			logger.Warn().Err(err).Msg("credential mirror unreachable at startup")
		}
		cancel()

		mongoDB := client.Database(cfg.Mongo.DatabaseName())

		indexCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
		deps.MirrorRepo = repository.NewMirrorCredentialMongoRepository(indexCtx, logger, mongoDB)
		loginEvents := repository.NewLoginEventMongoRepository(indexCtx, logger, mongoDB)
		cancel()

		deps.Mirror = usecase.NewCredentialMirror(deps.MirrorRepo, cfg.Mongo.Timeout)
		sinks = append(sinks, usecase.NewMirrorAuditSink(loginEvents, cfg.Mongo.Timeout, logger))

		logger.Info().Str("database", cfg.Mongo.DatabaseName()).Msg("credential mirror enabled")
	} else {
		logger.Info().Msg("credential mirror disabled")
	}

	deps.Redis = redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  cfg.Redis.Timeout,
		ReadTimeout:  cfg.Redis.Timeout,
		WriteTimeout: cfg.Redis.Timeout,
	})

	deps.Hasher = security.NewArgon2Hasher(security.Argon2Params{
		TimeCost:    cfg.Password.Argon2TimeCost,
		MemoryCost:  cfg.Password.Argon2MemoryCost,
		Parallelism: cfg.Password.Argon2Parallelism,
	})

	deps.Audit = usecase.NewAuditDispatcher(sinks, cfg.Audit.BufferSize)

	deps.Sessions = usecase.NewSessionUsecase(
		repository.NewSessionRedisRepository(deps.Redis),
		deps.Identities,
		auth.NewJWTAuthenticator(cfg.Token.Issuer, cfg.Token.SessionSecret),
		cfg,
	)

	deps.Auth = usecase.NewAuthUsecase(
		deps.Identities,
		deps.Mirror,
		deps.Sessions,
		deps.Audit,
		deps.Hasher,
		cfg,
		logger,
	)

	return deps, nil
}

// Close drains pending audit events and releases every store connection.
func (d *Dependencies) Close(ctx context.Context) error {
	var errs []error

	d.Audit.Close()

	if d.Mongo != nil {
		if err := d.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disconnect mongo: %w", err))
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close canonical store: %w", err))
		}
	}

	return errors.Join(errs...)
}
