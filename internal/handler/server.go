// Package handler implements the HTTP API of the GeoPulse companion.
// All handlers are methods on Server and are mounted by Routes. Methods are
// split into area-specific files (session.go, photos.go, etc.) but share the
// same Server struct so they can reach its dependencies.
package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/geopulse-companion/internal/coverage"
	"github.com/pkordes/geopulse-companion/internal/domain"
	"github.com/pkordes/geopulse-companion/internal/theme"
)

// SessionServicer is the session behaviour the handlers depend on.
// *session.Store satisfies it.
type SessionServicer interface {
	CheckAuth(ctx context.Context) (domain.User, bool)
	Login(ctx context.Context, email, password string) (domain.User, error)
	Logout(ctx context.Context) error
	Register(ctx context.Context, reg domain.Registration) (domain.User, error)
	HandleOidcCallback(ctx context.Context, code, state string) (domain.User, error)
	OidcProviders(ctx context.Context) []domain.OidcProvider
}

// ThemeServicer is satisfied by *theme.Manager.
type ThemeServicer interface {
	Mode() theme.Mode
	IsDark() bool
	Set(ctx context.Context, mode string) theme.Mode
}

// SystemThemeReporter receives the operating system's dark preference as
// reported by the UI. *theme.Broadcast satisfies it.
type SystemThemeReporter interface {
	SetDark(dark bool)
}

// CoverageServicer is satisfied by *coverage.Store.
type CoverageServicer interface {
	FetchStatus(ctx context.Context, opts coverage.FetchOptions) (domain.CoverageStatus, error)
	UpdateSettings(ctx context.Context, enabled bool) (domain.CoverageStatus, error)
	FetchCells(ctx context.Context, bbox domain.BBox, grid int, opts coverage.FetchOptions) ([]domain.CoverageCell, error)
	FetchSummary(ctx context.Context, grid int, opts coverage.FetchOptions) (domain.CoverageSummary, error)
}

// LocationProvider supplies the user's time zone. *timezone.Context satisfies it.
type LocationProvider interface {
	Location() *time.Location
}

// Services groups the Server's dependencies. Any of them may be nil when a
// test only exercises part of the API; routes for a nil service are not
// mounted.
type Services struct {
	Session  SessionServicer
	Theme    ThemeServicer
	System   SystemThemeReporter
	Coverage CoverageServicer
	Timezone LocationProvider

	// Now defaults to time.Now.
	Now func() time.Time
}

// Server holds the dependencies shared by all handlers.
type Server struct {
	session  SessionServicer
	theme    ThemeServicer
	system   SystemThemeReporter
	coverage CoverageServicer
	tz       LocationProvider
	now      func() time.Time
	log      *slog.Logger
}

// NewServer constructs the Server. A nil logger means slog.Default().
func NewServer(svc Services, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	now := svc.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		session:  svc.Session,
		theme:    svc.Theme,
		system:   svc.System,
		coverage: svc.Coverage,
		tz:       svc.Timezone,
		now:      now,
		log:      logger,
	}
}

// NewHealthHandler returns a Server with no services, serving only the
// health check, the OpenAPI document and the stateless helpers.
func NewHealthHandler() *Server {
	return NewServer(Services{}, nil)
}

// Routes returns a chi router with every endpoint whose service is present.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Post("/period-tags/match", s.MatchPeriodTag)
	r.Post("/photos/groups", s.GroupPhotos)
	r.Post("/photos/match", s.MatchPhotos)
	r.Post("/photos/focus", s.FocusPhoto)
	r.Get("/location-sources", s.ListLocationSources)

	if s.session != nil {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Post("/", s.Login)
			r.Delete("/", s.Logout)
			r.Post("/register", s.Register)
			r.Post("/oidc/callback", s.OidcCallback)
			r.Get("/oidc/providers", s.ListOidcProviders)
		})
	}
	if s.theme != nil {
		r.Get("/theme", s.GetTheme)
		r.Put("/theme", s.PutTheme)
		if s.system != nil {
			r.Put("/theme/system", s.PutSystemTheme)
		}
	}
	if s.coverage != nil {
		r.Route("/coverage", func(r chi.Router) {
			r.Get("/status", s.GetCoverageStatus)
			r.Put("/settings", s.PutCoverageSettings)
			r.Get("/cells", s.GetCoverageCells)
			r.Get("/summary", s.GetCoverageSummary)
		})
	}
	return r
}

// location returns the user's time zone, UTC when none is wired.
func (s *Server) location() *time.Location {
	if s.tz == nil {
		return time.UTC
	}
	if loc := s.tz.Location(); loc != nil {
		return loc
	}
	return time.UTC
}
