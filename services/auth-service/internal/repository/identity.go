package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/model"
)

// IdentityRepository defines the canonical identity store. Its uniqueness
// constraint on username and email is the final arbiter for duplicate identities.
type IdentityRepository interface {
	// CreateIdentity inserts identity and sets its ID. It returns ErrDuplicateIdentity
	// when the write violates the username or email constraint.
	CreateIdentity(ctx context.Context, identity *model.Identity) (*model.Identity, error)

	// GetIdentity returns the identity with the given id or ErrNotFound.
	GetIdentity(ctx context.Context, id int64) (*model.Identity, error)

	// GetIdentityByUsername returns the identity with the given username or ErrNotFound.
	GetIdentityByUsername(ctx context.Context, username string) (*model.Identity, error)

	// GetIdentityByUsernameOrEmail returns an identity matching either value or ErrNotFound.
	GetIdentityByUsernameOrEmail(ctx context.Context, username, email string) (*model.Identity, error)

	// UpdatePasswordHash replaces the stored hash and returns the new password version,
	// or ErrNotFound when no row matches.
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) (int64, error)
}

const (
	createIdentityQuery = `INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, password_version`

	selectIdentityColumns = `SELECT id, username, email, password_hash, password_version FROM users`

	getIdentityQuery                  = selectIdentityColumns + ` WHERE id = $1`
	getIdentityByUsernameQuery        = selectIdentityColumns + ` WHERE username = $1`
	getIdentityByUsernameOrEmailQuery = selectIdentityColumns + ` WHERE username = $1 OR email = $2 ORDER BY id LIMIT 1`

	updatePasswordHashQuery = `UPDATE users
		SET password_hash = $1, password_version = password_version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
		RETURNING password_version`
)

type identitySQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewIdentitySQLRepository creates a canonical identity repository over db.
func NewIdentitySQLRepository(db *sql.DB, dialect Dialect) IdentityRepository {
	return &identitySQLRepository{db: db, dialect: dialect}
}

func (r *identitySQLRepository) CreateIdentity(
	ctx context.Context,
	identity *model.Identity,
) (*model.Identity, error) {
	err := r.db.QueryRowContext(
		ctx,
		rebind(r.dialect, createIdentityQuery),
		identity.Username,
		identity.Email,
		identity.PasswordHash,
	).Scan(&identity.ID, &identity.PasswordVersion)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return identity, nil
}

func (r *identitySQLRepository) GetIdentity(ctx context.Context, id int64) (*model.Identity, error) {
	return r.getOne(ctx, getIdentityQuery, id)
}

func (r *identitySQLRepository) GetIdentityByUsername(
	ctx context.Context,
	username string,
) (*model.Identity, error) {
	return r.getOne(ctx, getIdentityByUsernameQuery, username)
}

func (r *identitySQLRepository) GetIdentityByUsernameOrEmail(
	ctx context.Context,
	username, email string,
) (*model.Identity, error) {
	return r.getOne(ctx, getIdentityByUsernameOrEmailQuery, username, email)
}

func (r *identitySQLRepository) UpdatePasswordHash(
	ctx context.Context,
	id int64,
	passwordHash string,
) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx, rebind(r.dialect, updatePasswordHashQuery), passwordHash, id).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}

	return version, nil
}

func (r *identitySQLRepository) getOne(ctx context.Context, query string, args ...any) (*model.Identity, error) {
	var identity model.Identity
	err := r.db.QueryRowContext(ctx, rebind(r.dialect, query), args...).Scan(
		&identity.ID,
		&identity.Username,
		&identity.Email,
		&identity.PasswordHash,
		&identity.PasswordVersion,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &identity, nil
}
