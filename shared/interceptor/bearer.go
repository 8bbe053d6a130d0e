package interceptor

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingAuthorization = errors.New("missing authorization header")
	ErrInvalidAuthorization = errors.New("invalid authorization header format")
)

type contextKey struct{}

var BearerTokenKey = contextKey{}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingAuthorization
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", ErrInvalidAuthorization
	}

	return strings.TrimSpace(parts[1]), nil
}

// WithBearerToken stores the request's bearer token, when present, in the request context.
// Requests without a valid header pass through untouched.
func WithBearerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := BearerToken(r)
		if err == nil {
			r = r.WithContext(context.WithValue(r.Context(), BearerTokenKey, token))
		}

		next.ServeHTTP(w, r)
	})
}

// TokenFromContext returns the bearer token stored by WithBearerToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(BearerTokenKey).(string)
	return token, ok && token != ""
}
