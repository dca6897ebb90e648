package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pkordes/geopulse-companion/internal/apiclient"
	"github.com/pkordes/geopulse-companion/internal/domain"
	"github.com/pkordes/geopulse-companion/internal/storage"
)

// CredentialsKey holds the API client's cookies between runs.
const CredentialsKey = "geopulseCredentials"

// credentialVault saves and restores the client's cookies.
type credentialVault struct {
	kv     storage.KV
	client *apiclient.Client
	log    *slog.Logger
}

// load restores saved cookies. Unreadable data is logged and ignored.
func (v *credentialVault) load(ctx context.Context) {
	raw, ok, err := v.kv.Get(ctx, CredentialsKey)
	if err != nil {
		v.log.WarnContext(ctx, "failed to read credentials", "error", err)
		return
	}
	if !ok {
		return
	}
	var cr apiclient.Credentials
	if err := json.Unmarshal([]byte(raw), &cr); err != nil {
		v.log.WarnContext(ctx, "discarding unreadable credentials", "error", err)
		return
	}
	v.client.RestoreCredentials(cr)
}

// save writes the client's current cookies, or removes the key when it holds
// none.
func (v *credentialVault) save(ctx context.Context) {
	if err := v.write(ctx); err != nil {
		v.log.WarnContext(ctx, "failed to persist credentials", "error", err)
	}
}

func (v *credentialVault) write(ctx context.Context) error {
	cr := v.client.Credentials()
	if len(cr.Cookies) == 0 {
		return v.kv.Remove(ctx, CredentialsKey)
	}
	b, err := json.Marshal(cr)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	return v.kv.Set(ctx, CredentialsKey, string(b))
}

// persistingAPI is the session's view of the API client. Calls that change
// the cookie jar save it afterwards, successful or not.
type persistingAPI struct {
	*apiclient.Client
	vault *credentialVault
}

func (p *persistingAPI) Login(ctx context.Context, email, password string) (json.RawMessage, error) {
	defer p.vault.save(ctx)
	return p.Client.Login(ctx, email, password)
}

func (p *persistingAPI) Logout(ctx context.Context) error {
	defer p.vault.save(ctx)
	return p.Client.Logout(ctx)
}

func (p *persistingAPI) Register(ctx context.Context, reg domain.Registration) error {
	defer p.vault.save(ctx)
	return p.Client.Register(ctx, reg)
}

func (p *persistingAPI) RefreshToken(ctx context.Context) error {
	defer p.vault.save(ctx)
	return p.Client.RefreshToken(ctx)
}

func (p *persistingAPI) OidcCallback(ctx context.Context, code, state string) (json.RawMessage, error) {
	defer p.vault.save(ctx)
	return p.Client.OidcCallback(ctx, code, state)
}

// ClearAuthData has no context; the removal runs on a background one.
func (p *persistingAPI) ClearAuthData() {
	p.Client.ClearAuthData()
	p.vault.save(context.Background())
}
