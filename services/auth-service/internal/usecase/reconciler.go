package usecase

import (
	"context"
	"errors"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/model"
)

// SyncReconciler keeps mirror credentials consistent with the canonical store.
// It only writes when the mirror differs from the canonical value, so repeated
// calls from concurrent logins converge without redundant writes.
type SyncReconciler struct {
	mirror *CredentialMirror
}

func NewSyncReconciler(mirror *CredentialMirror) *SyncReconciler {
	return &SyncReconciler{mirror: mirror}
}

// ReconcileBackLink sets the back-link of record to canonicalID when it is missing
// or stale. It reports whether a write was issued.
func (r *SyncReconciler) ReconcileBackLink(
	ctx context.Context,
	record *model.MirrorCredential,
	canonicalID int64,
) (bool, error) {
	if !r.mirror.Enabled() || record == nil || record.LinkedTo(canonicalID) {
		return false, nil
	}

	if err := r.mirror.UpdateBackLink(ctx, record.Username, canonicalID); err != nil {
		return false, err
	}

	record.BackLink = &canonicalID

	return true, nil
}

// PropagateHash copies the canonical password hash of identity to the mirror,
// creating the mirror credential when none exists. The write is still attempted
// when the mirror read fails.
func (r *SyncReconciler) PropagateHash(ctx context.Context, identity *model.Identity) (bool, error) {
	if !r.mirror.Enabled() {
		return false, nil
	}

	record, findErr := r.mirror.FindByUsername(ctx, identity.Username)

	wrote, err := r.syncHash(ctx, record, identity)
	if err != nil {
		return false, errors.Join(findErr, err)
	}

	return wrote, nil
}

// syncHash is PropagateHash for a mirror record the caller already fetched (nil when absent).
func (r *SyncReconciler) syncHash(
	ctx context.Context,
	record *model.MirrorCredential,
	identity *model.Identity,
) (bool, error) {
	if !r.mirror.Enabled() {
		return false, nil
	}
	if record != nil {
		if record.PasswordHash == identity.PasswordHash || record.PasswordVersion > identity.PasswordVersion {
			return false, nil
		}
	}

	if err := r.mirror.UpdatePasswordHash(ctx, identity); err != nil {
		return false, err
	}

	return true, nil
}
