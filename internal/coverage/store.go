// Package coverage caches the user's explored-area coverage: processing
// status, visited cells for the current viewport and per-grid summaries.
package coverage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pkordes/geopulse-companion/internal/domain"
)

// ErrSuperseded is returned by FetchCells when a newer request or Cancel
// made the response stale. The response is discarded.
var ErrSuperseded = errors.New("coverage request superseded")

// API is the subset of the GeoPulse API the store depends on.
// *apiclient.Client satisfies it.
type API interface {
	CoverageStatus(ctx context.Context) (*domain.CoverageStatus, error)
	UpdateCoverageSettings(ctx context.Context, enabled bool) (*domain.CoverageStatus, error)
	CoverageCells(ctx context.Context, bbox domain.BBox, grid int) ([]domain.CoverageCell, error)
	CoverageSummary(ctx context.Context, grid int) (*domain.CoverageSummary, error)
}

// FetchOptions tunes a fetch. A silent fetch does not touch loading or error
// state, so a background poll does not flash the UI.
type FetchOptions struct {
	Silent bool
}

// View is a point-in-time copy of the store's state.
type View struct {
	Status           *domain.CoverageStatus `json:"status"`
	StatusLoading    bool                   `json:"statusLoading"`
	StatusError      string                 `json:"statusError,omitempty"`
	SettingsUpdating bool                   `json:"settingsUpdating"`
	Cells            []domain.CoverageCell  `json:"cells"`
	CellsLoading     bool                   `json:"cellsLoading"`
	CellsError       string                 `json:"cellsError,omitempty"`
	SummaryLoading   bool                   `json:"summaryLoading"`
	SummaryError     string                 `json:"summaryError,omitempty"`
}

// Store is safe for concurrent use. Construct with NewStore.
type Store struct {
	api       API
	log       *slog.Logger
	summaries *lru.Cache[int, domain.CoverageSummary]

	mu               sync.Mutex
	status           *domain.CoverageStatus
	statusLoading    bool
	statusErr        string
	settingsUpdating bool
	cells            []domain.CoverageCell
	cellsLoading     bool
	cellsErr         string
	cellsSeq         uint64
	summaryLoading   bool
	summaryErr       string
}

// NewStore returns an empty Store. The summary cache holds one entry per
// supported grid size.
func NewStore(api API, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[int, domain.CoverageSummary](len(domain.CoverageGridSizes))
	if err != nil {
		return nil, fmt.Errorf("coverage.NewStore: %w", err)
	}
	return &Store{api: api, log: logger, summaries: cache, cells: []domain.CoverageCell{}}, nil
}

// View returns a copy of the current state.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		StatusLoading:    s.statusLoading,
		StatusError:      s.statusErr,
		SettingsUpdating: s.settingsUpdating,
		Cells:            append([]domain.CoverageCell{}, s.cells...),
		CellsLoading:     s.cellsLoading,
		CellsError:       s.cellsErr,
		SummaryLoading:   s.summaryLoading,
		SummaryError:     s.summaryErr,
	}
	if s.status != nil {
		st := *s.status
		v.Status = &st
	}
	return v
}

// ---- status ----------------------------------------------------------------

// FetchStatus loads the processing status. A silent fetch that fails returns
// the previously loaded status when there is one.
func (s *Store) FetchStatus(ctx context.Context, opts FetchOptions) (domain.CoverageStatus, error) {
	if !opts.Silent {
		s.mu.Lock()
		s.statusLoading, s.statusErr = true, ""
		s.mu.Unlock()
	}

	st, err := s.api.CoverageStatus(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !opts.Silent {
		s.statusLoading = false
	}
	if err == nil && st == nil {
		err = fmt.Errorf("empty status response: %w", domain.ErrNotFound)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "error fetching coverage status", "error", err)
		if !opts.Silent {
			s.statusErr = err.Error()
			return domain.CoverageStatus{}, fmt.Errorf("coverage.Store.FetchStatus: %w", err)
		}
		if s.status != nil {
			return *s.status, nil
		}
		return domain.CoverageStatus{}, fmt.Errorf("coverage.Store.FetchStatus: %w", err)
	}
	held := *st
	s.status, s.statusErr = &held, ""
	return held, nil
}

// UpdateSettings enables or disables coverage processing. Errors are
// recorded and returned.
func (s *Store) UpdateSettings(ctx context.Context, enabled bool) (domain.CoverageStatus, error) {
	s.mu.Lock()
	s.settingsUpdating, s.statusErr = true, ""
	s.mu.Unlock()

	st, err := s.api.UpdateCoverageSettings(ctx, enabled)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settingsUpdating = false
	if err != nil {
		s.log.ErrorContext(ctx, "error updating coverage settings", "error", err)
		s.statusErr = err.Error()
		return domain.CoverageStatus{}, fmt.Errorf("coverage.Store.UpdateSettings: %w", err)
	}
	if st == nil {
		return domain.CoverageStatus{}, nil
	}
	held := *st
	s.status = &held
	return held, nil
}

// ---- cells -----------------------------------------------------------------

// FetchCells loads the visited cells inside bbox. Only the most recent
// request may update the store; an older one returns ErrSuperseded.
// A zero grid means DefaultCoverageGrid.
func (s *Store) FetchCells(ctx context.Context, bbox domain.BBox, grid int, opts FetchOptions) ([]domain.CoverageCell, error) {
	if grid == 0 {
		grid = domain.DefaultCoverageGrid
	}
	if !domain.ValidCoverageGrid(grid) {
		return nil, fmt.Errorf("coverage.Store.FetchCells: unsupported grid %d: %w", grid, domain.ErrValidation)
	}

	s.mu.Lock()
	s.cellsSeq++
	seq := s.cellsSeq
	if !opts.Silent {
		s.cellsLoading, s.cellsErr = true, ""
	}
	s.mu.Unlock()

	cells, err := s.api.CoverageCells(ctx, bbox, grid)

	s.mu.Lock()
	defer s.mu.Unlock()
	current := seq == s.cellsSeq
	if !opts.Silent && current {
		s.cellsLoading = false
	}
	if err != nil {
		s.log.ErrorContext(ctx, "error fetching coverage cells", "error", err)
		if !opts.Silent && current {
			s.cellsErr = err.Error()
		}
		return nil, fmt.Errorf("coverage.Store.FetchCells: %w", err)
	}
	if !current {
		return nil, ErrSuperseded
	}
	if cells == nil {
		cells = []domain.CoverageCell{}
	}
	s.cells = cells
	return append([]domain.CoverageCell{}, cells...), nil
}

// Cancel makes every in-flight FetchCells stale and clears the loading flag.
func (s *Store) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cellsSeq++
	s.cellsLoading = false
}

// ClearCells drops the loaded cells.
func (s *Store) ClearCells() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells = []domain.CoverageCell{}
}

// ---- summary ---------------------------------------------------------------

// FetchSummary returns the summary for grid, from cache when present.
// A zero grid means DefaultCoverageGrid.
func (s *Store) FetchSummary(ctx context.Context, grid int, opts FetchOptions) (domain.CoverageSummary, error) {
	if grid == 0 {
		grid = domain.DefaultCoverageGrid
	}
	if !domain.ValidCoverageGrid(grid) {
		return domain.CoverageSummary{}, fmt.Errorf("coverage.Store.FetchSummary: unsupported grid %d: %w", grid, domain.ErrValidation)
	}
	if sum, ok := s.summaries.Get(grid); ok {
		return sum, nil
	}

	if !opts.Silent {
		s.mu.Lock()
		s.summaryLoading, s.summaryErr = true, ""
		s.mu.Unlock()
	}

	sum, err := s.api.CoverageSummary(ctx, grid)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !opts.Silent {
		s.summaryLoading = false
	}
	if err == nil && sum == nil {
		err = fmt.Errorf("empty summary response: %w", domain.ErrNotFound)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "error fetching coverage summary", "grid", grid, "error", err)
		if !opts.Silent {
			s.summaryErr = err.Error()
		}
		return domain.CoverageSummary{}, fmt.Errorf("coverage.Store.FetchSummary: %w", err)
	}
	s.summaries.Add(grid, *sum)
	return *sum, nil
}

// InvalidateSummary drops the cached summary for grid, or every cached
// summary when grid is zero.
func (s *Store) InvalidateSummary(grid int) {
	if grid == 0 {
		s.summaries.Purge()
		return
	}
	s.summaries.Remove(grid)
}
