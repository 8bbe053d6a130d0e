package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/repository"
)

const defaultMirrorTimeout = 2 * time.Second

// CredentialMirror is the optional mirror capability. A nil *CredentialMirror means
// the mirror is not configured; every method is safe to call on nil and reports it
// as disabled. Each call is bounded by its own timeout and every failure is wrapped
// in ErrMirrorDegraded.
type CredentialMirror struct {
	repo    repository.MirrorCredentialRepository
	timeout time.Duration
}

// NewCredentialMirror returns nil when repo is nil, so the capability is decided once at startup.
func NewCredentialMirror(repo repository.MirrorCredentialRepository, timeout time.Duration) *CredentialMirror {
	if repo == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = defaultMirrorTimeout
	}

	return &CredentialMirror{repo: repo, timeout: timeout}
}

// Enabled reports whether the mirror is configured.
func (m *CredentialMirror) Enabled() bool {
	return m != nil
}

// Insert stores a new mirror credential.
func (m *CredentialMirror) Insert(ctx context.Context, username, email, passwordHash string) (*model.MirrorCredential, error) {
	if !m.Enabled() {
		return nil, degraded("insert", errMirrorDisabled)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	credential, err := m.repo.InsertCredential(ctx, &model.MirrorCredential{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		return nil, degraded("insert", err)
	}

	return credential, nil
}

// FindByUsername returns the mirror credential, or nil with no error when none exists.
func (m *CredentialMirror) FindByUsername(ctx context.Context, username string) (*model.MirrorCredential, error) {
	if !m.Enabled() {
		return nil, degraded("find", errMirrorDisabled)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	credential, err := m.repo.GetCredentialByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, degraded("find", err)
	}

	return credential, nil
}

// UpdateBackLink points the mirror credential for username at canonicalID.
func (m *CredentialMirror) UpdateBackLink(ctx context.Context, username string, canonicalID int64) error {
	if !m.Enabled() {
		return degraded("update back-link", errMirrorDisabled)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.repo.UpdateBackLink(ctx, username, canonicalID); err != nil {
		return degraded("update back-link", err)
	}

	return nil
}

// UpdatePasswordHash writes identity's hash to the mirror, creating the credential if absent.
// The write is skipped by the store when the mirror already holds a newer password version.
func (m *CredentialMirror) UpdatePasswordHash(ctx context.Context, identity *model.Identity) error {
	if !m.Enabled() {
		return degraded("update password hash", errMirrorDisabled)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.repo.UpsertPasswordHash(ctx, repository.UpsertPasswordHashParams{
		Username:        identity.Username,
		Email:           identity.Email,
		PasswordHash:    identity.PasswordHash,
		PasswordVersion: identity.PasswordVersion,
		CanonicalID:     identity.ID,
	})
	if err != nil {
		return degraded("update password hash", err)
	}

	return nil
}

var errMirrorDisabled = errors.New("mirror not configured")

func degraded(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMirrorDegraded, op, err)
}
