package handler

import (
	"net/http"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/payload"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/usecase"
)

func (h *AuthHTTPHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req payload.ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.authUsecase.ResetPassword(r.Context(), usecase.ResetPasswordParams{
		Username:    req.Username,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		h.writeError(w, err, "failed to reset password")
		return
	}

	writeJSON(w, http.StatusOK, payload.MessageResponse{Message: "Password updated"})
}
