package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/lang-app-api/shared/interceptor"
)

// NewRouter mounts the auth endpoints:
//
//	POST /api/auth/register
//	POST /api/auth/login
//	POST /api/auth/logout
//	POST /api/auth/reset-password
//	GET  /api/me
func NewRouter(authHandler *AuthHTTPHandler, logger *zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(interceptor.RequestLogger(logger))
	r.Use(interceptor.WithBearerToken)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Post("/reset-password", authHandler.ResetPassword)
		})

		r.Get("/me", authHandler.Me)
	})

	return r
}
