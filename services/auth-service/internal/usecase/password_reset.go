package usecase

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/repository"
)

// ResetPasswordParams defines the parameters of a password reset.
type ResetPasswordParams struct {
	Username    string
	NewPassword string
}

// ResetPassword replaces the canonical password hash and then copies it to the
// mirror. The reset is complete once the canonical write commits; mirror
// propagation is best-effort.
func (u *authUsecase) ResetPassword(ctx context.Context, params ResetPasswordParams) error {
	if isBlank(params.Username) {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}

	minLength := u.authServiceCfg.Password.MinLength
	if utf8.RuneCountInString(params.NewPassword) < minLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minLength)
	}

	identity, err := u.identityRepo.GetIdentityByUsername(ctx, params.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return persistence(err)
	}

	passwordHash, err := u.hasher.Hash(params.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	version, err := u.identityRepo.UpdatePasswordHash(ctx, identity.ID, passwordHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return persistence(err)
	}

	identity.PasswordHash = passwordHash
	identity.PasswordVersion = version

	if _, err := u.reconciler.PropagateHash(ctx, identity); err != nil {
		u.mirrorDegraded(err, identity.Username)
	}

	u.logger.Info().Int64("user_id", identity.ID).Msg("password reset")

	return nil
}
