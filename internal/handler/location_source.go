package handler

import (
	"net/http"

	"github.com/pkordes/geopulse-companion/internal/locationsource"
)

// ListLocationSources handles GET /location-sources.
func (s *Server) ListLocationSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, locationsource.All())
}
