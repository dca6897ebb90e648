package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkordes/geopulse-companion/internal/domain"
)

// Login signs in with a password. The response carries the user; the
// session cookies land in the jar.
func (c *Client) Login(ctx context.Context, email, password string) (json.RawMessage, error) {
	var out json.RawMessage
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &out); err != nil {
		return nil, fmt.Errorf("apiclient.Client.Login: %w", err)
	}
	return out, nil
}

// Logout ends the server session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil); err != nil {
		return fmt.Errorf("apiclient.Client.Logout: %w", err)
	}
	return nil
}

// RefreshToken exchanges the refresh cookie for a new access token. It is
// attempted once; there are no retries.
func (c *Client) RefreshToken(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/auth/refresh-cookie", nil, nil, nil); err != nil {
		return fmt.Errorf("apiclient.Client.RefreshToken: %w", err)
	}
	return nil
}

// AuthStatus reports which login and registration methods are enabled. An
// empty response yields domain.DefaultAuthStatus.
func (c *Client) AuthStatus(ctx context.Context) (domain.AuthStatus, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/auth/status", nil, nil, &raw); err != nil {
		return domain.AuthStatus{}, fmt.Errorf("apiclient.Client.AuthStatus: %w", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return domain.DefaultAuthStatus(), nil
	}
	var st domain.AuthStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return domain.AuthStatus{}, fmt.Errorf("apiclient.Client.AuthStatus: decoding: %w", err)
	}
	return st, nil
}

// ---- users -----------------------------------------------------------------

// Register creates a password account.
func (c *Client) Register(ctx context.Context, reg domain.Registration) error {
	if err := c.do(ctx, http.MethodPost, "/users/register", nil, reg, nil); err != nil {
		return fmt.Errorf("apiclient.Client.Register: %w", err)
	}
	return nil
}

// CurrentUser fetches the signed-in user's profile.
func (c *Client) CurrentUser(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("apiclient.Client.CurrentUser: %w", err)
	}
	return out, nil
}

// UpdateProfile saves profile fields and returns the server's echo, which may
// be empty.
func (c *Client) UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/users/update", nil, upd, &out); err != nil {
		return nil, fmt.Errorf("apiclient.Client.UpdateProfile: %w", err)
	}
	return out, nil
}

// UpdateTimelineDisplayPreferences saves display preferences and returns the
// stored values.
func (c *Client) UpdateTimelineDisplayPreferences(ctx context.Context, prefs map[string]any) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodPut, "/users/preferences/timeline/display", nil, prefs, &out); err != nil {
		return nil, fmt.Errorf("apiclient.Client.UpdateTimelineDisplayPreferences: %w", err)
	}
	return out, nil
}

// ChangePassword changes the password and reports whether the account now
// has one.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) (bool, error) {
	var out struct {
		HasPassword bool `json:"hasPassword"`
	}
	body := map[string]string{"oldPassword": oldPassword, "newPassword": newPassword}
	if err := c.do(ctx, http.MethodPost, "/users/changePassword", nil, body, &out); err != nil {
		return false, fmt.Errorf("apiclient.Client.ChangePassword: %w", err)
	}
	return out.HasPassword, nil
}

// ---- OIDC ------------------------------------------------------------------

// OidcProviders lists the enabled identity providers.
func (c *Client) OidcProviders(ctx context.Context) ([]domain.OidcProvider, error) {
	var out []domain.OidcProvider
	if err := c.do(ctx, http.MethodGet, "/auth/oidc/providers", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("apiclient.Client.OidcProviders: %w", err)
	}
	return out, nil
}

// InitiateOidcLogin returns the provider's authorization URL.
func (c *Client) InitiateOidcLogin(ctx context.Context, provider string) (string, error) {
	u, err := c.authorizationURL(ctx, "/auth/oidc/login/"+url.PathEscape(provider))
	if err != nil {
		return "", fmt.Errorf("apiclient.Client.InitiateOidcLogin: %w", err)
	}
	return u, nil
}

// OidcCallback completes an OIDC login.
func (c *Client) OidcCallback(ctx context.Context, code, state string) (json.RawMessage, error) {
	var out json.RawMessage
	body := map[string]string{"code": code, "state": state}
	if err := c.do(ctx, http.MethodPost, "/auth/oidc/callback", nil, body, &out); err != nil {
		return nil, fmt.Errorf("apiclient.Client.OidcCallback: %w", err)
	}
	return out, nil
}

// LinkOidcProvider returns the authorization URL that links provider to the
// current user.
func (c *Client) LinkOidcProvider(ctx context.Context, provider string) (string, error) {
	u, err := c.authorizationURL(ctx, "/auth/oidc/link/"+url.PathEscape(provider))
	if err != nil {
		return "", fmt.Errorf("apiclient.Client.LinkOidcProvider: %w", err)
	}
	return u, nil
}

// UnlinkOidcProvider removes a linked provider.
func (c *Client) UnlinkOidcProvider(ctx context.Context, provider string) error {
	if err := c.do(ctx, http.MethodDelete, "/auth/oidc/unlink/"+url.PathEscape(provider), nil, nil, nil); err != nil {
		return fmt.Errorf("apiclient.Client.UnlinkOidcProvider: %w", err)
	}
	return nil
}

// OidcConnections lists the providers linked to the current user.
func (c *Client) OidcConnections(ctx context.Context) ([]domain.OidcConnection, error) {
	var out []domain.OidcConnection
	if err := c.do(ctx, http.MethodGet, "/auth/oidc/connections", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("apiclient.Client.OidcConnections: %w", err)
	}
	return out, nil
}

func (c *Client) authorizationURL(ctx context.Context, path string) (string, error) {
	var out struct {
		AuthorizationURL string `json:"authorizationUrl"`
	}
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &out); err != nil {
		return "", err
	}
	if out.AuthorizationURL == "" {
		return "", fmt.Errorf("response has no authorizationUrl: %w", domain.ErrNotFound)
	}
	return out.AuthorizationURL, nil
}
