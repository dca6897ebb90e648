package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkordes/geopulse-companion/internal/domain"
)

// CoverageStatus returns the coverage processing status, or nil when the
// server sends none.
func (c *Client) CoverageStatus(ctx context.Context) (*domain.CoverageStatus, error) {
	var out *domain.CoverageStatus
	if err := c.do(ctx, http.MethodGet, "/coverage/status", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("apiclient.Client.CoverageStatus: %w", err)
	}
	return out, nil
}

// UpdateCoverageSettings enables or disables coverage processing.
func (c *Client) UpdateCoverageSettings(ctx context.Context, enabled bool) (*domain.CoverageStatus, error) {
	var out *domain.CoverageStatus
	body := map[string]bool{"enabled": enabled}
	if err := c.do(ctx, http.MethodPut, "/coverage/settings", nil, body, &out); err != nil {
		return nil, fmt.Errorf("apiclient.Client.UpdateCoverageSettings: %w", err)
	}
	return out, nil
}

// CoverageCells lists the visited cells inside bbox.
func (c *Client) CoverageCells(ctx context.Context, bbox domain.BBox, grid int) ([]domain.CoverageCell, error) {
	q, err := queryParams(param("bbox", bbox.String()), param("grid", grid))
	if err != nil {
		return nil, fmt.Errorf("apiclient.Client.CoverageCells: %w", err)
	}
	out := []domain.CoverageCell{}
	if err := c.do(ctx, http.MethodGet, "/coverage/cells", q, nil, &out); err != nil {
		return nil, fmt.Errorf("apiclient.Client.CoverageCells: %w", err)
	}
	return out, nil
}

// CoverageSummary returns the summary for one grid size, or nil when the
// server sends none.
func (c *Client) CoverageSummary(ctx context.Context, grid int) (*domain.CoverageSummary, error) {
	q, err := queryParams(param("grid", grid))
	if err != nil {
		return nil, fmt.Errorf("apiclient.Client.CoverageSummary: %w", err)
	}
	var out *domain.CoverageSummary
	if err := c.do(ctx, http.MethodGet, "/coverage/summary", q, nil, &out); err != nil {
		return nil, fmt.Errorf("apiclient.Client.CoverageSummary: %w", err)
	}
	return out, nil
}
