package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/lang-app-api/shared/auth"
)

// SessionUsecase establishes and resolves authenticated sessions. It is the only
// place that knows how a request is tied to an identity.
type SessionUsecase interface {
	// Establish starts a session for identity and returns its signed token.
	Establish(ctx context.Context, identity *model.Identity) (*SessionToken, error)

	// Current returns the canonical identity behind token or ErrUnauthenticated.
	Current(ctx context.Context, token string) (*model.Identity, error)

	// Revoke ends the session behind token. Revoking an ended session succeeds.
	Revoke(ctx context.Context, token string) error
}

// SessionToken is the caller-facing handle of a session.
type SessionToken struct {
	Token     string
	ExpiresAt time.Time
}

type sessionUsecase struct {
	sessionRepo    repository.SessionRepository
	identityRepo   repository.IdentityRepository
	jwtAuth        auth.JWTAuthenticator
	authServiceCfg *config.AuthServiceConfig
	now            func() time.Time
}

func NewSessionUsecase(
	sessionRepo repository.SessionRepository,
	identityRepo repository.IdentityRepository,
	jwtAuth auth.JWTAuthenticator,
	authServiceCfg *config.AuthServiceConfig,
) SessionUsecase {
	return &sessionUsecase{
		sessionRepo:    sessionRepo,
		identityRepo:   identityRepo,
		jwtAuth:        jwtAuth,
		authServiceCfg: authServiceCfg,
		now:            time.Now,
	}
}

func (u *sessionUsecase) Establish(ctx context.Context, identity *model.Identity) (*SessionToken, error) {
	now := u.now().UTC()
	expiresIn := u.authServiceCfg.Token.SessionExpiresIn

	session := &model.Session{
		ID:        uuid.NewString(),
		UserID:    identity.ID,
		Username:  identity.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(expiresIn),
	}

	if err := u.sessionRepo.CreateSession(ctx, session, expiresIn); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, err := u.jwtAuth.GenerateSessionToken(identity.ID, session.ID, now, expiresIn)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	return &SessionToken{Token: token, ExpiresAt: session.ExpiresAt}, nil
}

func (u *sessionUsecase) Current(ctx context.Context, token string) (*model.Identity, error) {
	claims, err := u.jwtAuth.ValidateSessionToken(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	session, err := u.sessionRepo.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if session.UserID != claims.UserID {
		return nil, ErrUnauthenticated
	}

	identity, err := u.identityRepo.GetIdentity(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return identity, nil
}

func (u *sessionUsecase) Revoke(ctx context.Context, token string) error {
	claims, err := u.jwtAuth.ValidateSessionToken(token)
	if err != nil {
		return ErrUnauthenticated
	}

	if err := u.sessionRepo.DeleteSession(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return nil
}
