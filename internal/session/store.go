// Package session holds the signed-in user for the process. The user is
// hydrated optimistically from a persisted snapshot and reconciled against
// the GeoPulse API.
//
// Background paths (CheckAuth and reconciliation) never return errors: any
// failure clears the session and reports no user. The explicit entry points
// Login, Register and HandleOidcCallback clear the session and return the
// error so the caller can show it.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/pkordes/geopulse-companion/internal/domain"
)

// State is the lifecycle position of the held user.
type State int

const (
	// Unauthenticated means no user is held.
	Unauthenticated State = iota
	// Hydrated means the user came from the local snapshot and has not been
	// confirmed by the server.
	Hydrated
	// Confirmed means the user came from the server.
	Confirmed
)

func (s State) String() string {
	switch s {
	case Hydrated:
		return "hydrated"
	case Confirmed:
		return "confirmed"
	default:
		return "unauthenticated"
	}
}

// reconcileKey names the de-duplicated full reconciliation.
const reconcileKey = "reconcile"

// API is the subset of the GeoPulse API the session depends on.
// *apiclient.Client satisfies it.
type API interface {
	Login(ctx context.Context, email, password string) (json.RawMessage, error)
	Logout(ctx context.Context) error
	Register(ctx context.Context, reg domain.Registration) error
	CurrentUser(ctx context.Context) (json.RawMessage, error)
	UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) (json.RawMessage, error)
	UpdateTimelineDisplayPreferences(ctx context.Context, prefs map[string]any) (map[string]any, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) (hasPassword bool, err error)

	IsTokenExpired() bool
	RefreshToken(ctx context.Context) error
	ClearAuthData()

	OidcProviders(ctx context.Context) ([]domain.OidcProvider, error)
	InitiateOidcLogin(ctx context.Context, provider string) (authorizationURL string, err error)
	OidcCallback(ctx context.Context, code, state string) (json.RawMessage, error)
	LinkOidcProvider(ctx context.Context, provider string) (authorizationURL string, err error)
	UnlinkOidcProvider(ctx context.Context, provider string) error
	OidcConnections(ctx context.Context) ([]domain.OidcConnection, error)
	AuthStatus(ctx context.Context) (domain.AuthStatus, error)
}

// Snapshots persists the user between runs. *SnapshotStore satisfies it.
type Snapshots interface {
	Read(ctx context.Context) (domain.User, bool)
	Write(ctx context.Context, u domain.User) error
	Clear(ctx context.Context) error
}

// TimezoneSetter receives the held user's time zone preference.
// *timezone.Context satisfies it.
type TimezoneSetter interface {
	SetTimezone(name string)
}

// Store holds at most one user. Construct with NewStore; safe for concurrent use.
type Store struct {
	api       API
	snapshots Snapshots
	tz        TimezoneSetter
	log       *slog.Logger

	// persistMu orders state changes with their snapshot writes, so a
	// slow write cannot land after a later clear.
	persistMu sync.Mutex

	mu    sync.RWMutex
	user  *domain.User
	state State

	inflight singleflight.Group
}

// NewStore returns an empty Store. tz may be nil.
func NewStore(api API, snapshots Snapshots, tz TimezoneSetter, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{api: api, snapshots: snapshots, tz: tz, log: logger}
}

// ---- state -----------------------------------------------------------------

// apply replaces the held user. A nil user clears it; persist controls
// whether the snapshot follows.
func (s *Store) apply(ctx context.Context, u *domain.User, state State, persist bool) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.applyLocked(ctx, u, state, persist)
}

// applyLocked is apply with persistMu held.
func (s *Store) applyLocked(ctx context.Context, u *domain.User, state State, persist bool) {
	s.mu.Lock()
	if u == nil {
		s.user, s.state = nil, Unauthenticated
	} else {
		held := *u
		s.user, s.state = &held, state
	}
	s.mu.Unlock()

	if u == nil {
		if persist {
			if err := s.snapshots.Clear(ctx); err != nil {
				s.log.WarnContext(ctx, "failed to clear user snapshot", "error", err)
			}
		}
		return
	}
	if persist {
		if err := s.snapshots.Write(ctx, *u); err != nil {
			s.log.WarnContext(ctx, "failed to persist user snapshot", "error", err)
		}
	}
	if s.tz != nil {
		s.tz.SetTimezone(u.Timezone)
	}
}

// SetUser normalizes raw, holds the result as confirmed and persists it.
// A payload without a resolvable id clears the user and erases the snapshot.
func (s *Store) SetUser(ctx context.Context, raw []byte) (domain.User, bool) {
	u, ok := NormalizeUser(raw)
	if !ok {
		s.apply(ctx, nil, Unauthenticated, true)
		return domain.User{}, false
	}
	s.apply(ctx, &u, Confirmed, true)
	return u, true
}

// HydrateFromSnapshot holds u without persisting it.
func (s *Store) HydrateFromSnapshot(ctx context.Context, u domain.User) (domain.User, bool) {
	u, ok := withDefaults(u)
	if !ok {
		s.apply(ctx, nil, Unauthenticated, false)
		return domain.User{}, false
	}
	s.apply(ctx, &u, Hydrated, false)
	return u, true
}

// PatchCurrentUser applies patch to the held user and persists the result.
// It reports false when no user is held.
func (s *Store) PatchCurrentUser(ctx context.Context, patch func(*domain.User)) (domain.User, bool) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	if s.user == nil {
		s.mu.RUnlock()
		return domain.User{}, false
	}
	u, state := *s.user, s.state
	s.mu.RUnlock()

	patch(&u)
	u, ok := withDefaults(u)
	if !ok {
		s.applyLocked(ctx, nil, Unauthenticated, true)
		return domain.User{}, false
	}
	s.applyLocked(ctx, &u, state, true)
	return u, true
}

// ClearUser drops the held user, erases the snapshot and tells the API
// client to forget its credentials. Calling it with no user held is a no-op
// apart from those side effects.
func (s *Store) ClearUser(ctx context.Context) {
	s.apply(ctx, nil, Unauthenticated, true)
	s.api.ClearAuthData()
}

// ---- getters ---------------------------------------------------------------

// CurrentUser returns the held user.
func (s *Store) CurrentUser() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

// State returns the lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsAuthenticated reports whether a user is held.
func (s *Store) IsAuthenticated() bool {
	_, ok := s.CurrentUser()
	return ok
}

// UserTimezone returns the held user's zone, or UTC.
func (s *Store) UserTimezone() string {
	if u, ok := s.CurrentUser(); ok && u.Timezone != "" {
		return u.Timezone
	}
	return domain.DefaultTimezone
}

// MeasureUnit returns the held user's measure unit, or METRIC.
func (s *Store) MeasureUnit() string {
	if u, ok := s.CurrentUser(); ok && u.MeasureUnit != "" {
		return u.MeasureUnit
	}
	return domain.MeasureMetric
}

// IsAdmin reports whether the held user has the admin role.
func (s *Store) IsAdmin() bool {
	u, ok := s.CurrentUser()
	return ok && u.Role == domain.RoleAdmin
}

// ---- reconciliation --------------------------------------------------------

// CheckAuth resolves the current user.
//
// With a stored snapshot the user is hydrated from it (when none is held)
// and returned without asking the server for the profile; an expired
// credential is refreshed first and a failed refresh clears the session.
// Without a snapshot a full reconciliation runs.
func (s *Store) CheckAuth(ctx context.Context) (domain.User, bool) {
	snap, ok := s.snapshots.Read(ctx)
	if !ok {
		return s.reconcile(ctx)
	}

	if !s.IsAuthenticated() {
		s.HydrateFromSnapshot(ctx, snap)
	}
	if s.api.IsTokenExpired() {
		if err := s.api.RefreshToken(ctx); err != nil {
			s.log.InfoContext(ctx, "credential refresh failed, clearing session", "error", err)
			s.ClearUser(ctx)
			return domain.User{}, false
		}
	}
	return s.CurrentUser()
}

// reconcile refreshes an expired credential and fetches the profile.
// Concurrent callers share one attempt. The attempt runs on a context that
// is not cancelled with ctx; a caller whose ctx ends stops waiting and gets
// no user, while the attempt continues for the others.
func (s *Store) reconcile(ctx context.Context) (domain.User, bool) {
	detached := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(reconcileKey, func() (any, error) {
		return s.runReconcile(detached)
	})

	select {
	case <-ctx.Done():
		return domain.User{}, false
	case res := <-ch:
		if res.Err != nil {
			return domain.User{}, false
		}
		return res.Val.(domain.User), true
	}
}

func (s *Store) runReconcile(ctx context.Context) (domain.User, error) {
	if s.api.IsTokenExpired() {
		if err := s.api.RefreshToken(ctx); err != nil {
			s.log.InfoContext(ctx, "credential refresh failed, clearing session", "error", err)
			s.ClearUser(ctx)
			return domain.User{}, err
		}
	}
	u, err := s.FetchCurrentUserProfile(ctx)
	if err != nil {
		s.log.InfoContext(ctx, "auth reconciliation failed, clearing session", "error", err)
		s.ClearUser(ctx)
		return domain.User{}, err
	}
	return u, nil
}

// FetchCurrentUserProfile asks the server for the profile and holds it.
func (s *Store) FetchCurrentUserProfile(ctx context.Context) (domain.User, error) {
	raw, err := s.api.CurrentUser(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to fetch current user profile", "error", err)
		return domain.User{}, fmt.Errorf("session.Store.FetchCurrentUserProfile: %w", err)
	}
	u, ok := s.SetUser(ctx, raw)
	if !ok {
		return domain.User{}, fmt.Errorf("session.Store.FetchCurrentUserProfile: profile has no id: %w", domain.ErrUnauthenticated)
	}
	return u, nil
}

// ---- explicit flows --------------------------------------------------------

// Login signs in with a password and holds the returned user.
func (s *Store) Login(ctx context.Context, email, password string) (domain.User, error) {
	if email == "" || password == "" {
		s.ClearUser(ctx)
		return domain.User{}, fmt.Errorf("session.Store.Login: email and password are required: %w", domain.ErrValidation)
	}
	raw, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.ClearUser(ctx)
		return domain.User{}, fmt.Errorf("session.Store.Login: %w", err)
	}
	return s.consumeAuthResponse(ctx, "session.Store.Login", raw)
}

// Register creates a password account and signs in with it.
func (s *Store) Register(ctx context.Context, reg domain.Registration) (domain.User, error) {
	if reg.Email == "" || reg.Password == "" {
		s.ClearUser(ctx)
		return domain.User{}, fmt.Errorf("session.Store.Register: email and password are required: %w", domain.ErrValidation)
	}
	if err := s.api.Register(ctx, reg); err != nil {
		s.ClearUser(ctx)
		return domain.User{}, fmt.Errorf("session.Store.Register: %w", err)
	}
	return s.Login(ctx, reg.Email, reg.Password)
}

// HandleOidcCallback completes an OIDC login and holds the returned user.
func (s *Store) HandleOidcCallback(ctx context.Context, code, state string) (domain.User, error) {
	if code == "" || state == "" {
		s.ClearUser(ctx)
		return domain.User{}, fmt.Errorf("session.Store.HandleOidcCallback: code and state are required: %w", domain.ErrValidation)
	}
	raw, err := s.api.OidcCallback(ctx, code, state)
	if err != nil {
		s.ClearUser(ctx)
		return domain.User{}, fmt.Errorf("session.Store.HandleOidcCallback: %w", err)
	}
	return s.consumeAuthResponse(ctx, "session.Store.HandleOidcCallback", raw)
}

// consumeAuthResponse holds the user carried by a login response. A response
// without a user is treated as a failed login.
func (s *Store) consumeAuthResponse(ctx context.Context, op string, raw []byte) (domain.User, error) {
	u, ok := s.SetUser(ctx, raw)
	if !ok {
		s.ClearUser(ctx)
		return domain.User{}, fmt.Errorf("%s: response carried no user: %w", op, domain.ErrUnauthenticated)
	}
	return u, nil
}

// Logout ends the server session and clears the local one. The local session
// is cleared even when the server call fails.
func (s *Store) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)
	s.ClearUser(ctx)
	if err != nil {
		return fmt.Errorf("session.Store.Logout: %w", err)
	}
	return nil
}

// UpdateProfile saves profile fields and holds the updated user. When the
// server does not echo the user back, the profile is fetched.
func (s *Store) UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) (domain.User, error) {
	raw, err := s.api.UpdateProfile(ctx, upd)
	if err != nil {
		return domain.User{}, fmt.Errorf("session.Store.UpdateProfile: %w", err)
	}
	if u, ok := NormalizeUser(raw); ok {
		s.apply(ctx, &u, Confirmed, true)
		return u, nil
	}
	return s.FetchCurrentUserProfile(ctx)
}

// UpdateTimelineDisplayPreferences saves display preferences. A
// customMapTileUrl in the response is copied onto the held user.
func (s *Store) UpdateTimelineDisplayPreferences(ctx context.Context, prefs map[string]any) (map[string]any, error) {
	updated, err := s.api.UpdateTimelineDisplayPreferences(ctx, prefs)
	if err != nil {
		return nil, fmt.Errorf("session.Store.UpdateTimelineDisplayPreferences: %w", err)
	}
	if v, ok := updated["customMapTileUrl"]; ok {
		tileURL, _ := v.(string)
		s.PatchCurrentUser(ctx, func(u *domain.User) { u.CustomMapTileURL = tileURL })
	}
	return updated, nil
}

// UpdateUserTimezone changes the held user's zone locally.
func (s *Store) UpdateUserTimezone(ctx context.Context, name string) {
	s.PatchCurrentUser(ctx, func(u *domain.User) { u.Timezone = name })
}

// ChangePassword changes the password and marks the user as having one.
func (s *Store) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("session.Store.ChangePassword: new password is required: %w", domain.ErrValidation)
	}
	hasPassword, err := s.api.ChangePassword(ctx, oldPassword, newPassword)
	if err != nil {
		return fmt.Errorf("session.Store.ChangePassword: %w", err)
	}
	if hasPassword {
		s.PatchCurrentUser(ctx, func(u *domain.User) { u.HasPassword = true })
	}
	return nil
}

// ---- OIDC and server status ------------------------------------------------

// OidcProviders lists the login providers. Failures are logged and yield an
// empty list.
func (s *Store) OidcProviders(ctx context.Context) []domain.OidcProvider {
	providers, err := s.api.OidcProviders(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to get OIDC providers", "error", err)
		return []domain.OidcProvider{}
	}
	if providers == nil {
		providers = []domain.OidcProvider{}
	}
	return providers
}

// InitiateOidcLogin returns the URL to send the user to.
func (s *Store) InitiateOidcLogin(ctx context.Context, provider string) (string, error) {
	u, err := s.api.InitiateOidcLogin(ctx, provider)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to initiate OIDC login", "provider", provider, "error", err)
		return "", fmt.Errorf("session.Store.InitiateOidcLogin: %w", err)
	}
	return u, nil
}

// LinkOidcProvider returns the URL that links provider to the current user.
func (s *Store) LinkOidcProvider(ctx context.Context, provider string) (string, error) {
	u, err := s.api.LinkOidcProvider(ctx, provider)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to initiate OIDC linking", "provider", provider, "error", err)
		return "", fmt.Errorf("session.Store.LinkOidcProvider: %w", err)
	}
	return u, nil
}

// UnlinkOidcProvider removes a linked provider.
func (s *Store) UnlinkOidcProvider(ctx context.Context, provider string) error {
	if err := s.api.UnlinkOidcProvider(ctx, provider); err != nil {
		s.log.ErrorContext(ctx, "failed to unlink OIDC provider", "provider", provider, "error", err)
		return fmt.Errorf("session.Store.UnlinkOidcProvider: %w", err)
	}
	return nil
}

// LinkedProviders lists the providers linked to the current user. Failures
// are logged and yield an empty list.
func (s *Store) LinkedProviders(ctx context.Context) []domain.OidcConnection {
	conns, err := s.api.OidcConnections(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to get linked OIDC providers", "error", err)
		return []domain.OidcConnection{}
	}
	if conns == nil {
		conns = []domain.OidcConnection{}
	}
	return conns
}

// AuthStatus reports the enabled login methods, or DefaultAuthStatus when
// the server cannot be asked.
func (s *Store) AuthStatus(ctx context.Context) domain.AuthStatus {
	st, err := s.api.AuthStatus(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to get auth status", "error", err)
		return domain.DefaultAuthStatus()
	}
	return st
}

// RegistrationStatus reports the enabled registration methods. When the
// server cannot be asked both are reported disabled.
func (s *Store) RegistrationStatus(ctx context.Context) (password, oidc bool) {
	st, err := s.api.AuthStatus(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to fetch registration status", "error", err)
		return false, false
	}
	return st.PasswordRegistrationEnabled, st.OidcRegistrationEnabled
}
