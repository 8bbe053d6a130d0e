package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/lang-app-api/shared/security"
)

// AuthUsecase defines the interface for authentication-related use cases.
type AuthUsecase interface {
	Register(ctx context.Context, params RegisterParams) (*AuthResult, error)
	Login(ctx context.Context, params LoginParams) (*AuthResult, error)
	Logout(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, params ResetPasswordParams) error
	CurrentIdentity(ctx context.Context, token string) (*model.Identity, error)
}

// RegisterParams defines the parameters for user registration.
type RegisterParams struct {
	Username string
	Email    string
	Password string
}

// LoginParams defines the parameters for user login.
type LoginParams struct {
	Username string
	Password string
}

// AuthResult is the canonical identity a flow resolved to and the session started for it.
type AuthResult struct {
	ID       int64
	Username string
	Session  *SessionToken
}

type authUsecase struct {
	identityRepo   repository.IdentityRepository
	mirror         *CredentialMirror
	reconciler     *SyncReconciler
	sessions       SessionUsecase
	audit          AuditSink
	hasher         security.PasswordHasher
	authServiceCfg *config.AuthServiceConfig
	logger         *zerolog.Logger
	now            func() time.Time
}

// NewAuthUsecase wires the orchestrator. mirror may be nil when no mirror is configured.
func NewAuthUsecase(
	identityRepo repository.IdentityRepository,
	mirror *CredentialMirror,
	sessions SessionUsecase,
	audit AuditSink,
	hasher security.PasswordHasher,
	authServiceCfg *config.AuthServiceConfig,
	logger *zerolog.Logger,
) AuthUsecase {
	if audit == nil {
		audit = NoopAuditSink{}
	}

	return &authUsecase{
		identityRepo:   identityRepo,
		mirror:         mirror,
		reconciler:     NewSyncReconciler(mirror),
		sessions:       sessions,
		audit:          audit,
		hasher:         hasher,
		authServiceCfg: authServiceCfg,
		logger:         logger,
		now:            time.Now,
	}
}

func (u *authUsecase) Register(ctx context.Context, params RegisterParams) (*AuthResult, error) {
	if isBlank(params.Username) || isBlank(params.Email) || isBlank(params.Password) {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrValidation)
	}

	// Fast path only. The unique constraint on create decides concurrent registrations.
	if _, err := u.identityRepo.GetIdentityByUsernameOrEmail(ctx, params.Username, params.Email); err == nil {
		return nil, ErrDuplicateIdentity
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, persistence(err)
	}

	passwordHash, err := u.hasher.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	mirrored := false
	if u.mirror.Enabled() {
		if _, err := u.mirror.Insert(ctx, params.Username, params.Email, passwordHash); err != nil {
			u.mirrorDegraded(err, params.Username)
		} else {
			mirrored = true
		}
	}

	identity, err := u.identityRepo.CreateIdentity(ctx, &model.Identity{
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateIdentity) {
			return nil, ErrDuplicateIdentity
		}
		return nil, persistence(err)
	}

	if mirrored {
		if err := u.mirror.UpdateBackLink(ctx, identity.Username, identity.ID); err != nil {
			u.mirrorDegraded(err, identity.Username)
		}
	}

	return u.establish(ctx, identity)
}

func (u *authUsecase) Login(ctx context.Context, params LoginParams) (*AuthResult, error) {
	identity, err := u.authenticate(ctx, params)

	u.audit.Emit(context.WithoutCancel(ctx), model.LoginEvent{
		Username:  params.Username,
		Success:   err == nil,
		Timestamp: u.now().UTC(),
	})

	if err != nil {
		return nil, err
	}

	return u.establish(ctx, identity)
}

func (u *authUsecase) Logout(ctx context.Context, token string) error {
	if err := u.sessions.Revoke(ctx, token); err != nil && !errors.Is(err, ErrUnauthenticated) {
		return err
	}

	return nil
}

func (u *authUsecase) CurrentIdentity(ctx context.Context, token string) (*model.Identity, error) {
	return u.sessions.Current(ctx, token)
}

// authenticate checks the mirror first when it is enabled and falls back to the
// canonical store. Whichever store rejects, the caller only sees ErrAuthenticationFailed.
func (u *authUsecase) authenticate(ctx context.Context, params LoginParams) (*model.Identity, error) {
	if params.Username == "" || params.Password == "" {
		return nil, ErrAuthenticationFailed
	}

	var (
		record          *model.MirrorCredential
		mirrorAvailable bool
	)

	if u.mirror.Enabled() {
		var err error
		record, err = u.mirror.FindByUsername(ctx, params.Username)
		if err != nil {
			u.mirrorDegraded(err, params.Username)
		} else {
			mirrorAvailable = true
		}

		if record != nil && u.verify(params.Password, record.PasswordHash) {
			identity, err := u.materialize(ctx, record)
			if err != nil {
				return nil, err
			}
			if identity != nil {
				if _, err := u.reconciler.ReconcileBackLink(ctx, record, identity.ID); err != nil {
					u.mirrorDegraded(err, params.Username)
				}
				return identity, nil
			}
		}
	}

	identity, err := u.identityRepo.GetIdentityByUsername(ctx, params.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAuthenticationFailed
		}
		return nil, persistence(err)
	}

	if !u.verify(params.Password, identity.PasswordHash) {
		return nil, ErrAuthenticationFailed
	}

	if mirrorAvailable {
		u.resyncMirror(ctx, record, identity)
	}

	return identity, nil
}

// materialize returns the canonical identity for a mirror credential, creating it
// from the mirror record when missing. It returns a nil identity when the record
// cannot be materialized because its email is owned by another identity.
func (u *authUsecase) materialize(ctx context.Context, record *model.MirrorCredential) (*model.Identity, error) {
	identity, err := u.identityRepo.GetIdentityByUsername(ctx, record.Username)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, persistence(err)
	}

	identity, err = u.identityRepo.CreateIdentity(ctx, &model.Identity{
		Username:     record.Username,
		Email:        record.Email,
		PasswordHash: record.PasswordHash,
	})
	if err == nil {
		u.logger.Info().Int64("user_id", identity.ID).Str("username", identity.Username).Msg("materialized identity from mirror")
		return identity, nil
	}
	if !errors.Is(err, repository.ErrDuplicateIdentity) {
		return nil, persistence(err)
	}

	// A concurrent login may have materialized the same username first.
	identity, err = u.identityRepo.GetIdentityByUsername(ctx, record.Username)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, persistence(err)
	}

	u.logger.Warn().Str("username", record.Username).Msg("mirror credential conflicts with an existing identity")

	return nil, nil
}

// resyncMirror aligns the mirror with an identity that authenticated canonically.
// record is what the mirror held for the username, nil when absent.
func (u *authUsecase) resyncMirror(ctx context.Context, record *model.MirrorCredential, identity *model.Identity) {
	if _, err := u.reconciler.syncHash(ctx, record, identity); err != nil {
		u.mirrorDegraded(err, identity.Username)
		return
	}

	if _, err := u.reconciler.ReconcileBackLink(ctx, record, identity.ID); err != nil {
		u.mirrorDegraded(err, identity.Username)
	}
}

func (u *authUsecase) establish(ctx context.Context, identity *model.Identity) (*AuthResult, error) {
	session, err := u.sessions.Establish(ctx, identity)
	if err != nil {
		return nil, persistence(err)
	}

	return &AuthResult{
		ID:       identity.ID,
		Username: identity.Username,
		Session:  session,
	}, nil
}

func (u *authUsecase) verify(password, encodedHash string) bool {
	ok, err := u.hasher.Verify(password, encodedHash)
	if err != nil {
		u.logger.Debug().Err(err).Msg("unreadable password hash")
		return false
	}

	return ok
}

func (u *authUsecase) mirrorDegraded(err error, username string) {
	u.logger.Warn().Err(err).Str("username", username).Msg("credential mirror degraded")
}

func persistence(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
