package handler

import (
	"net/http"

	"github.com/pkordes/geopulse-companion/internal/domain"
)

// LoginRequest is the body of POST /session.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OidcCallbackRequest is the body of POST /session/oidc/callback.
type OidcCallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// GetSession handles GET /session. It reconciles the session and returns the
// current user, or 401 when nobody is signed in.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	user, ok := s.session.CheckAuth(r.Context())
	if !ok {
		writeErrorBody(w, http.StatusUnauthorized, "unauthenticated", "no active session")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Login handles POST /session.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := s.session.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Logout handles DELETE /session. Local state is cleared even when the
// remote logout fails, so the failure is only logged.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Logout(r.Context()); err != nil {
		s.log.WarnContext(r.Context(), "remote logout failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Register handles POST /session/register.
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.Registration
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := s.session.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// OidcCallback handles POST /session/oidc/callback.
func (s *Server) OidcCallback(w http.ResponseWriter, r *http.Request) {
	var req OidcCallbackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := s.session.HandleOidcCallback(r.Context(), req.Code, req.State)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListOidcProviders handles GET /session/oidc/providers.
func (s *Server) ListOidcProviders(w http.ResponseWriter, r *http.Request) {
	providers := s.session.OidcProviders(r.Context())
	if providers == nil {
		providers = []domain.OidcProvider{}
	}
	writeJSON(w, http.StatusOK, providers)
}
