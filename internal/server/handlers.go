package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"authcore/internal/auth"
	"authcore/internal/token"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshCredential string `json:"refresh_credential"`
}

type pairResponse struct {
	AccessToken       string    `json:"access_token"`
	AccessExpiresAt   time.Time `json:"access_expires_at"`
	RefreshCredential string    `json:"refresh_credential"`
	RefreshExpiresAt  time.Time `json:"refresh_expires_at"`
	FamilyID          string    `json:"family_id"`
}

type sessionResponse struct {
	FamilyID  string     `json:"family_id"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	Current   bool       `json:"current"`
}

// Login authenticates a username/password pair and opens a new session.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}
	pair, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("server: login: %v", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, toPairResponse(pair))
}

// Refresh rotates a refresh credential. Every semantic failure collapses to
// one external 401 so a probing client cannot distinguish an invalid
// credential from a detected replay; the precise cause is logged server-side.
func (a *API) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshCredential == "" {
		writeError(w, http.StatusBadRequest, "refresh_credential required")
		return
	}
	pair, err := a.auth.Refresh(r.Context(), req.RefreshCredential)
	if err != nil {
		if isSemanticRefreshError(err) {
			log.Printf("server: refresh rejected: %v", err)
			writeError(w, http.StatusUnauthorized, "reauthenticate")
			return
		}
		log.Printf("server: refresh: %v", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, toPairResponse(pair))
}

// Logout revokes the session family of the presented refresh credential.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshCredential == "" {
		writeError(w, http.StatusBadRequest, "refresh_credential required")
		return
	}
	if err := a.auth.Logout(r.Context(), req.RefreshCredential); err != nil {
		if isSemanticRefreshError(err) {
			log.Printf("server: logout rejected: %v", err)
			writeError(w, http.StatusUnauthorized, "reauthenticate")
			return
		}
		log.Printf("server: logout: %v", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll revokes every session family of the authenticated principal.
func (a *API) LogoutAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "reauthenticate")
		return
	}
	if err := a.auth.LogoutAll(r.Context(), identity.PrincipalID); err != nil {
		log.Printf("server: logout_all: %v", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Validate returns the verified claims of the presented access credential.
func (a *API) Validate(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "reauthenticate")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"principal_id": identity.PrincipalID,
		"family_id":    identity.FamilyID,
		"roles":        identity.Roles,
	})
}

// ListSessions lists the authenticated principal's session families.
func (a *API) ListSessions(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "reauthenticate")
		return
	}
	families, err := a.store.ListFamiliesByPrincipal(r.Context(), identity.PrincipalID)
	if err != nil {
		log.Printf("server: list sessions: %v", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}
	out := make([]sessionResponse, 0, len(families))
	for _, f := range families {
		out = append(out, sessionResponse{
			FamilyID:  f.ID,
			CreatedAt: f.CreatedAt,
			RevokedAt: f.RevokedAt,
			Current:   f.ID == identity.FamilyID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// RevokeSession revokes one of the authenticated principal's session
// families by id. Revoking a family that is not yours is a 404, not a 403,
// so family ids are not probeable.
func (a *API) RevokeSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "reauthenticate")
		return
	}
	familyID := chi.URLParam(r, "familyID")
	family, err := a.store.GetFamily(r.Context(), familyID)
	if err != nil {
		log.Printf("server: revoke session: %v", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}
	if family == nil || family.PrincipalID != identity.PrincipalID {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err := a.store.RevokeFamily(r.Context(), familyID, time.Now().UTC()); err != nil {
		log.Printf("server: revoke session: %v", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health reports liveness. When a database handle is configured it is pinged
// with the request context.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	if a.db != nil {
		if err := a.db.PingContext(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toPairResponse(pair *token.Pair) pairResponse {
	return pairResponse{
		AccessToken:       pair.AccessToken,
		AccessExpiresAt:   pair.AccessExpiresAt,
		RefreshCredential: pair.RefreshCredential,
		RefreshExpiresAt:  pair.RefreshExpiresAt,
		FamilyID:          pair.FamilyID,
	}
}

// isSemanticRefreshError reports whether err is one of the rotation
// sentinels, as opposed to a transient storage failure.
func isSemanticRefreshError(err error) bool {
	return errors.Is(err, token.ErrInvalidCredential) ||
		errors.Is(err, token.ErrExpiredCredential) ||
		errors.Is(err, token.ErrSessionRevoked) ||
		errors.Is(err, token.ErrCredentialReuseDetected) ||
		errors.Is(err, token.ErrMalformedCredential)
}
