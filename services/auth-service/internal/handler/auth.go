package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/payload"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/lang-app-api/shared/interceptor"
)

const maxBodyBytes = 1 << 20

type AuthHTTPHandler struct {
	authUsecase usecase.AuthUsecase
	validator   *payload.Validator
	logger      *zerolog.Logger
}

func NewAuthHTTPHandler(
	authUsecase usecase.AuthUsecase,
	validator *payload.Validator,
	logger *zerolog.Logger,
) *AuthHTTPHandler {
	return &AuthHTTPHandler{
		authUsecase: authUsecase,
		validator:   validator,
		logger:      logger,
	}
}

func (h *AuthHTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req payload.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.authUsecase.Register(r.Context(), usecase.RegisterParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, err, "failed to register")
		return
	}

	writeJSON(w, http.StatusCreated, authResponse("Registered", result))
}

func (h *AuthHTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req payload.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.authUsecase.Login(r.Context(), usecase.LoginParams{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, err, "failed to login")
		return
	}

	writeJSON(w, http.StatusOK, authResponse("Logged in", result))
}

// Logout always succeeds; a request without a session has nothing to end.
func (h *AuthHTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := interceptor.TokenFromContext(r.Context()); ok {
		if err := h.authUsecase.Logout(r.Context(), token); err != nil {
			h.writeError(w, err, "failed to logout")
			return
		}
	}

	writeJSON(w, http.StatusOK, payload.MessageResponse{Message: "Logged out"})
}

func (h *AuthHTTPHandler) Me(w http.ResponseWriter, r *http.Request) {
	token, ok := interceptor.TokenFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, payload.MeResponse{Authenticated: false})
		return
	}

	identity, err := h.authUsecase.CurrentIdentity(r.Context(), token)
	if err != nil {
		if errors.Is(err, usecase.ErrUnauthenticated) {
			writeJSON(w, http.StatusOK, payload.MeResponse{Authenticated: false})
			return
		}
		h.writeError(w, err, "failed to resolve session")
		return
	}

	writeJSON(w, http.StatusOK, payload.MeResponse{
		Authenticated: true,
		User: &payload.UserResponse{
			ID:       identity.ID,
			Username: identity.Username,
			Email:    identity.Email,
		},
	})
}

// decode reads a JSON body into dst and runs its validate tags, writing a 400 on failure.
func (h *AuthHTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, payload.ErrorResponse{Error: "invalid request body"})
		return false
	}

	if err := h.validator.Validate(dst); err != nil {
		var verr *payload.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, payload.ErrorResponse{Error: verr.Error(), Fields: verr.Fields})
			return false
		}

		h.logger.Error().Err(err).Msg("failed to validate request")
		writeJSON(w, http.StatusInternalServerError, payload.ErrorResponse{Error: "something went wrong"})
		return false
	}

	return true
}

func (h *AuthHTTPHandler) writeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, usecase.ErrValidation):
		writeJSON(w, http.StatusBadRequest, payload.ErrorResponse{Error: err.Error()})
	case errors.Is(err, usecase.ErrDuplicateIdentity):
		writeJSON(w, http.StatusConflict, payload.ErrorResponse{Error: "User already exists"})
	case errors.Is(err, usecase.ErrNotFound):
		writeJSON(w, http.StatusNotFound, payload.ErrorResponse{Error: "User not found"})
	case errors.Is(err, usecase.ErrAuthenticationFailed):
		writeJSON(w, http.StatusUnauthorized, payload.ErrorResponse{Error: "Invalid credentials"})
	case errors.Is(err, usecase.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, payload.ErrorResponse{Error: "Not authenticated"})
	default:
		h.logger.Error().Err(err).Msg(msg)
		writeJSON(w, http.StatusInternalServerError, payload.ErrorResponse{Error: "something went wrong"})
	}
}

func authResponse(message string, result *usecase.AuthResult) payload.AuthResponse {
	resp := payload.AuthResponse{
		Message: message,
		User: payload.UserResponse{
			ID:       result.ID,
			Username: result.Username,
		},
	}
	if result.Session != nil {
		resp.Token = result.Session.Token
		resp.ExpiresAt = result.Session.ExpiresAt
	}

	return resp
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
