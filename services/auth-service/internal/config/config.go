package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

const defaultMongoDatabase = "lang_app"

// AuthServiceConfig holds the configuration of the auth service. It is read once at startup.
type AuthServiceConfig struct {
	HTTPAddr    string `env:"AUTH_SERVICE_HTTP_ADDR"   envDefault:":8080"`
	HealthAddr  string `env:"AUTH_SERVICE_HEALTH_ADDR" envDefault:":50051"`
	LogLevel    string `env:"LOG_LEVEL"                envDefault:"info"`
	DatabaseURL string `env:"DATABASE_URL"             envDefault:"file:lang_app.db"`

	Mongo    MongoConfig    `envPrefix:"MONGO_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Token    TokenConfig    `envPrefix:"TOKEN_"`
	Password PasswordConfig `envPrefix:"PASSWORD_"`
	Audit    AuditConfig    `envPrefix:"AUDIT_"`
}

// MongoConfig configures the optional credential mirror.
type MongoConfig struct {
	URI     string        `env:"URI"`
	DBName  string        `env:"DB_NAME"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"2s"`
}

type RedisConfig struct {
	Addr     string        `env:"ADDR"     envDefault:"localhost:6379"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB"       envDefault:"0"`
	Timeout  time.Duration `env:"TIMEOUT"  envDefault:"2s"`
}

type TokenConfig struct {
	Issuer           string        `env:"ISSUER"             envDefault:"lang-app"`
	SessionSecret    string        `env:"SESSION_SECRET"`
	SessionExpiresIn time.Duration `env:"SESSION_EXPIRES_IN" envDefault:"24h"`
}

type PasswordConfig struct {
	MinLength         int    `env:"MIN_LENGTH"          envDefault:"6"`
	Argon2TimeCost    uint32 `env:"ARGON2_TIME_COST"    envDefault:"3"`
	Argon2MemoryCost  uint32 `env:"ARGON2_MEMORY_COST"  envDefault:"65536"`
	Argon2Parallelism uint8  `env:"ARGON2_PARALLELISM"  envDefault:"2"`
}

type AuditConfig struct {
	BufferSize int `env:"BUFFER_SIZE" envDefault:"256"`
}

// NewAuthServiceConfig parses and validates the configuration from environment
// variables, terminating the process when it is unusable.
func NewAuthServiceConfig(logger *zerolog.Logger) *AuthServiceConfig {
	cfg, err := Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load auth service configuration")
	}

	return cfg
}

// Load parses the configuration from environment variables and validates it.
func Load() (*AuthServiceConfig, error) {
	cfg, err := env.ParseAs[AuthServiceConfig]()
	if err != nil {
		return nil, fmt.Errorf("parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AuthServiceConfig) validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("missing DATABASE_URL environment variable")
	}
	if c.Token.SessionSecret == "" {
		return errors.New("missing TOKEN_SESSION_SECRET environment variable")
	}
	if c.Token.SessionExpiresIn <= 0 {
		return errors.New("TOKEN_SESSION_EXPIRES_IN must be positive")
	}
	if c.Password.MinLength < 1 {
		return errors.New("PASSWORD_MIN_LENGTH must be at least 1")
	}
	if c.Mongo.Enabled() && c.Mongo.Timeout <= 0 {
		return errors.New("MONGO_TIMEOUT must be positive when MONGO_URI is set")
	}
	if c.Audit.BufferSize < 1 {
		return errors.New("AUDIT_BUFFER_SIZE must be at least 1")
	}

	return nil
}

// Enabled reports whether the credential mirror is configured.
func (c MongoConfig) Enabled() bool {
	return strings.TrimSpace(c.URI) != ""
}

// DatabaseName returns the configured mirror database, falling back to the
// path component of the URI (mongodb://host/db_name) and then to "lang_app".
func (c MongoConfig) DatabaseName() string {
	if c.DBName != "" {
		return c.DBName
	}

	u, err := url.Parse(c.URI)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}

	return defaultMongoDatabase
}
