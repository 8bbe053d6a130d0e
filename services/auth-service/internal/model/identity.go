package model

// Identity is the canonical user record. Its ID is the only identifier used by
// resources owned by the user; mirror ids never leave the mirror store.
type Identity struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string

	// PasswordVersion starts at 1 and increases with every password change.
	PasswordVersion int64
}
