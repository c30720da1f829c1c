// Package server exposes the authentication and session-administration flows
// over HTTP.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"authcore/internal/auth"
	"authcore/internal/session/repository"
	"authcore/internal/token"
)

// API holds the dependencies needed by the HTTP handlers.
type API struct {
	auth   *auth.Service
	tokens *token.Service
	store  repository.Store
	db     *sql.DB
}

// New creates an API instance. db may be nil; then the health endpoint skips
// the database ping.
func New(authSvc *auth.Service, tokens *token.Service, store repository.Store, db *sql.DB) *API {
	return &API{auth: authSvc, tokens: tokens, store: store, db: db}
}

// Router returns a chi.Router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(clientIPMiddleware)

	r.Get("/healthz", a.Health)

	r.Post("/auth/login", a.Login)
	r.Post("/auth/refresh", a.Refresh)
	r.Post("/auth/logout", a.Logout)

	r.Group(func(r chi.Router) {
		r.Use(a.AuthMiddleware)
		r.Get("/auth/validate", a.Validate)
		r.Post("/auth/logout_all", a.LogoutAll)
		r.Get("/sessions", a.ListSessions)
		r.Delete("/sessions/{familyID}", a.RevokeSession)
	})

	return r
}

// ClientIP returns the remote address without the port, for audit records.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// clientIPMiddleware records the client IP in the request context so the
// audit logger can extract it without seeing the request.
func clientIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPKey, ClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
