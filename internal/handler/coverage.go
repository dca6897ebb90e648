package handler

import (
	"net/http"

	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/geopulse-companion/internal/coverage"
	"github.com/pkordes/geopulse-companion/internal/domain"
)

// CoverageSettingsRequest is the body of PUT /coverage/settings.
type CoverageSettingsRequest struct {
	Enabled *bool `json:"enabled"`
}

// coverageParams are the optional query parameters shared by the coverage
// reads.
type coverageParams struct {
	Grid   *int
	Silent *bool
}

// bindCoverageParams reads the coverage query string the way generated
// oapi-codegen servers do: optional parameters bind into pointers. It answers
// 422 itself and reports false on error.
func bindCoverageParams(w http.ResponseWriter, r *http.Request) (coverageParams, bool) {
	var p coverageParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "grid", q, &p.Grid); err != nil {
		requestError(w, "invalid grid parameter: "+err.Error())
		return p, false
	}
	if err := runtime.BindQueryParameter("form", true, false, "silent", q, &p.Silent); err != nil {
		requestError(w, "invalid silent parameter: "+err.Error())
		return p, false
	}
	return p, true
}

func (p coverageParams) options() coverage.FetchOptions {
	return coverage.FetchOptions{Silent: p.Silent != nil && *p.Silent}
}

func (p coverageParams) grid() int {
	if p.Grid == nil {
		return 0
	}
	return *p.Grid
}

// GetCoverageStatus handles GET /coverage/status.
func (s *Server) GetCoverageStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := bindCoverageParams(w, r)
	if !ok {
		return
	}
	status, err := s.coverage.FetchStatus(r.Context(), p.options())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// PutCoverageSettings handles PUT /coverage/settings.
func (s *Server) PutCoverageSettings(w http.ResponseWriter, r *http.Request) {
	var req CoverageSettingsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		requestError(w, "enabled is required")
		return
	}
	status, err := s.coverage.UpdateSettings(r.Context(), *req.Enabled)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// GetCoverageCells handles GET /coverage/cells?bbox=minLon,minLat,maxLon,maxLat&grid=50.
// A request overtaken by a newer one answers 409.
func (s *Server) GetCoverageCells(w http.ResponseWriter, r *http.Request) {
	var raw string
	if err := runtime.BindQueryParameter("form", true, true, "bbox", r.URL.Query(), &raw); err != nil {
		requestError(w, "invalid bbox parameter: "+err.Error())
		return
	}
	p, ok := bindCoverageParams(w, r)
	if !ok {
		return
	}
	bbox, err := domain.ParseBBox(raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cells, err := s.coverage.FetchCells(r.Context(), bbox, p.grid(), p.options())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cells == nil {
		cells = []domain.CoverageCell{}
	}
	writeJSON(w, http.StatusOK, cells)
}

// GetCoverageSummary handles GET /coverage/summary?grid=50.
func (s *Server) GetCoverageSummary(w http.ResponseWriter, r *http.Request) {
	p, ok := bindCoverageParams(w, r)
	if !ok {
		return
	}
	summary, err := s.coverage.FetchSummary(r.Context(), p.grid(), p.options())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
