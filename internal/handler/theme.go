package handler

import (
	"net/http"

	"github.com/pkordes/geopulse-companion/internal/theme"
)

// ThemeResponse describes the active theme.
type ThemeResponse struct {
	Mode theme.Mode `json:"mode"`
	Dark bool       `json:"dark"`
}

// ThemeRequest is the body of PUT /theme. Unknown modes become "system".
type ThemeRequest struct {
	Mode *string `json:"mode"`
}

// SystemThemeRequest is the body of PUT /theme/system.
type SystemThemeRequest struct {
	Dark *bool `json:"dark"`
}

func (s *Server) themeState() ThemeResponse {
	return ThemeResponse{Mode: s.theme.Mode(), Dark: s.theme.IsDark()}
}

// GetTheme handles GET /theme.
func (s *Server) GetTheme(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.themeState())
}

// PutTheme handles PUT /theme.
func (s *Server) PutTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Mode == nil {
		requestError(w, "mode is required")
		return
	}
	s.theme.Set(r.Context(), *req.Mode)
	writeJSON(w, http.StatusOK, s.themeState())
}

// PutSystemTheme handles PUT /theme/system: the UI reports the operating
// system's dark preference, which applies while the mode is "system".
func (s *Server) PutSystemTheme(w http.ResponseWriter, r *http.Request) {
	var req SystemThemeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Dark == nil {
		requestError(w, "dark is required")
		return
	}
	s.system.SetDark(*req.Dark)
	writeJSON(w, http.StatusOK, s.themeState())
}
