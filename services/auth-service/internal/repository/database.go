package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/repository/migrations"
)

// Dialect selects the SQL flavour of the canonical store.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

const pgUniqueViolation = "23505"

// migrationDir maps a dialect to its directory inside the embedded migrations.
var migrationDir = map[Dialect]string{
	DialectPostgres: "postgres",
	DialectSQLite:   "sqlite",
}

// ParseDatabaseURL resolves the driver, DSN and dialect for a DATABASE_URL value.
// postgres:// and postgresql:// URLs use pgx; anything else is a SQLite DSN, with
// an optional sqlite:// prefix.
func ParseDatabaseURL(databaseURL string) (driver, dsn string, dialect Dialect) {
	databaseURL = strings.TrimSpace(databaseURL)

	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "pgx", databaseURL, DialectPostgres
	case strings.HasPrefix(databaseURL, "sqlite:///"):
		return "sqlite", "/" + strings.TrimPrefix(databaseURL, "sqlite:///"), DialectSQLite
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return "sqlite", strings.TrimPrefix(databaseURL, "sqlite://"), DialectSQLite
	default:
		return "sqlite", databaseURL, DialectSQLite
	}
}

// OpenCanonicalDB opens the canonical store, verifies the connection and applies migrations.
func OpenCanonicalDB(
	ctx context.Context,
	logger *zerolog.Logger,
	databaseURL string,
) (*sql.DB, Dialect, error) {
	driver, dsn, dialect := ParseDatabaseURL(databaseURL)
	if dsn == "" {
		return nil, "", errors.New("database url is required")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// A single connection serializes writers and keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ping %s: %w", dialect, err)
	}

	if err := RunMigrations(ctx, logger, db, dialect); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("run migrations: %w", err)
	}

	return db, dialect, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations for dialect.
func RunMigrations(ctx context.Context, logger *zerolog.Logger, db *sql.DB, dialect Dialect) error {
	dir, ok := migrationDir[dialect]
	if !ok {
		return fmt.Errorf("unsupported dialect %q", dialect)
	}

	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(gooseLogger{logger: logger})
	if err := goose.SetDialect(string(dialect)); err != nil {
		return err
	}

	return gooseUpContext(ctx, db, dir)
}

// gooseLogger forwards goose output to zerolog.
type gooseLogger struct {
	logger *zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info().Str("component", "migrations").Msgf(strings.TrimSpace(format), v...)
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Fatal().Str("component", "migrations").Msgf(strings.TrimSpace(format), v...)
}

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// rebind rewrites $N placeholders for drivers that expect positional ?.
// Queries must reference each argument once and in order.
func rebind(dialect Dialect, query string) string {
	if dialect != DialectSQLite {
		return query
	}

	return placeholderPattern.ReplaceAllString(query, "?")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}

	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
