package security

import (
	"errors"

	"github.com/matthewhartstonge/argon2"
)

var ErrEmptyPassword = errors.New("password must not be empty")

// PasswordHasher hashes plaintext passwords and verifies them against stored hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// Argon2Params holds the argon2id cost parameters.
type Argon2Params struct {
	TimeCost    uint32
	MemoryCost  uint32
	Parallelism uint8
	SaltLength  uint32
	HashLength  uint32
}

// Argon2Hasher produces PHC-encoded argon2id hashes.
type Argon2Hasher struct {
	config argon2.Config
}

// NewArgon2Hasher creates a hasher from the given params. Zero fields keep the
// library defaults.
func NewArgon2Hasher(params Argon2Params) *Argon2Hasher {
	cfg := argon2.DefaultConfig()
	if params.TimeCost > 0 {
		cfg.TimeCost = params.TimeCost
	}
	if params.MemoryCost > 0 {
		cfg.MemoryCost = params.MemoryCost
	}
	if params.Parallelism > 0 {
		cfg.Parallelism = params.Parallelism
	}
	if params.SaltLength > 0 {
		cfg.SaltLength = params.SaltLength
	}
	if params.HashLength > 0 {
		cfg.HashLength = params.HashLength
	}

	return &Argon2Hasher{config: cfg}
}

// Hash returns the encoded hash of password.
func (h *Argon2Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	encoded, err := h.config.HashEncoded([]byte(password))
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}

// Verify reports whether password matches encodedHash. The cost parameters are
// read from the encoded hash, so hashes produced with other settings still verify.
func (h *Argon2Hasher) Verify(password, encodedHash string) (bool, error) {
	if encodedHash == "" {
		return false, nil
	}

	return argon2.VerifyEncoded([]byte(password), []byte(encodedHash))
}
