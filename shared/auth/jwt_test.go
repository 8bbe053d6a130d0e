package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionToken_RoundTrip(t *testing.T) {
	a := NewJWTAuthenticator("lang-app", "secret")

	token, err := a.GenerateSessionToken(7, "sess-1", time.Now(), time.Hour)
	require.NoError(t, err)

	claims, err := a.ValidateSessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "7", claims.Subject)
}

func TestSessionToken_Expired(t *testing.T) {
	a := NewJWTAuthenticator("lang-app", "secret")

	token, err := a.GenerateSessionToken(7, "sess-1", time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)

	_, err = a.ValidateSessionToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionToken_WrongSecret(t *testing.T) {
	signer := NewJWTAuthenticator("lang-app", "secret")
	verifier := NewJWTAuthenticator("lang-app", "other-secret")

	token, err := signer.GenerateSessionToken(7, "sess-1", time.Now(), time.Hour)
	require.NoError(t, err)

	_, err = verifier.ValidateSessionToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionToken_WrongIssuer(t *testing.T) {
	signer := NewJWTAuthenticator("someone-else", "secret")
	verifier := NewJWTAuthenticator("lang-app", "secret")

	token, err := signer.GenerateSessionToken(7, "sess-1", time.Now(), time.Hour)
	require.NoError(t, err)

	_, err = verifier.ValidateSessionToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionToken_RejectsNoneAlgorithm(t *testing.T) {
	a := NewJWTAuthenticator("lang-app", "secret")

	claims := SessionClaims{
		UserID:    7,
		SessionID: "sess-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "lang-app",
			Audience:  jwt.ClaimStrings{"lang-app"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = a.ValidateSessionToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
