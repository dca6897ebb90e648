package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/geopulse-companion/internal/app"
	"github.com/pkordes/geopulse-companion/internal/config"
	"github.com/pkordes/geopulse-companion/internal/session"
	"github.com/pkordes/geopulse-companion/internal/storage"
	"github.com/pkordes/geopulse-companion/internal/theme"
)

// fakeGeoPulse serves the endpoints a login round trip touches and counts
// profile fetches.
func fakeGeoPulse(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var profileCalls atomic.Int32
	expires := time.Now().Add(time.Hour).UnixMilli()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "tok-1", Path: "/"})
			http.SetCookie(w, &http.Cookie{Name: "token_expires_at", Value: strconv.FormatInt(expires, 10), Path: "/"})
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "success",
				"data":   map[string]any{"user": map[string]any{"id": 7, "email": "ada@example.com", "timezone": "Europe/London"}},
			})
		case "/api/auth/logout":
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": nil})
		case "/api/users/me":
			profileCalls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": map[string]any{"id": 7}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &profileCalls
}

func memoryConfig(apiURL string) config.Config {
	return config.Config{APIURL: apiURL, StorageDriver: config.DriverMemory, LogLevel: "error"}
}

// ---- Build -----------------------------------------------------------------

func TestBuild_LoginSurvivesRestart(t *testing.T) {
	srv, profileCalls := fakeGeoPulse(t)
	kv := storage.NewMemory()
	ctx := context.Background()

	first, err := app.Build(ctx, memoryConfig(srv.URL+"/api"), kv, nil)
	require.NoError(t, err)
	t.Cleanup(first.Close)

	user, err := first.Session.Login(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "7", user.ID)
	assert.Equal(t, "Europe/London", first.Timezone.Name(), "the user's zone reaches the timezone context")

	_, ok, err := kv.Get(ctx, app.CredentialsKey)
	require.NoError(t, err)
	require.True(t, ok, "login persists the cookies")

	// A second process over the same storage.
	second, err := app.Build(ctx, memoryConfig(srv.URL+"/api"), kv, nil)
	require.NoError(t, err)
	t.Cleanup(second.Close)

	assert.Equal(t, "tok-1", second.Client.Credentials().Cookies["access_token"])
	got, ok := second.Session.CheckAuth(ctx)
	require.True(t, ok)
	assert.Equal(t, "7", got.ID)
	assert.Equal(t, session.Hydrated, second.Session.State())
	assert.Zero(t, profileCalls.Load(), "a live snapshot is trusted without a profile fetch")
}

func TestBuild_LogoutForgetsCredentials(t *testing.T) {
	srv, _ := fakeGeoPulse(t)
	kv := storage.NewMemory()
	ctx := context.Background()

	a, err := app.Build(ctx, memoryConfig(srv.URL+"/api"), kv, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	_, err = a.Session.Login(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)

	require.NoError(t, a.Session.Logout(ctx))

	_, ok, err := kv.Get(ctx, app.CredentialsKey)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = kv.Get(ctx, session.SnapshotKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuild_UnreadableCredentialsAreIgnored(t *testing.T) {
	kv := storage.NewMemory()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, app.CredentialsKey, "{not json"))

	a, err := app.Build(ctx, memoryConfig("http://geopulse.invalid/api"), kv, nil)

	require.NoError(t, err)
	t.Cleanup(a.Close)
	assert.Empty(t, a.Client.Credentials().Cookies)
}

func TestBuild_RestoresStoredTheme(t *testing.T) {
	kv := storage.NewMemory()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, theme.LegacyKey, "true"))

	a, err := app.Build(ctx, memoryConfig("http://geopulse.invalid/api"), kv, nil)

	require.NoError(t, err)
	t.Cleanup(a.Close)
	assert.Equal(t, theme.Dark, a.Theme.Mode())
	assert.True(t, a.Classes.Has(theme.DarkClass))
}

func TestBuild_InvalidAPIURL(t *testing.T) {
	_, err := app.Build(context.Background(), memoryConfig("not a url"), storage.NewMemory(), nil)

	require.Error(t, err)
}

// ---- OpenStorage -----------------------------------------------------------

func TestOpenStorage_Drivers(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		driver string
		path   string
	}{
		{config.DriverMemory, ""},
		{config.DriverFile, filepath.Join(dir, "store.json")},
		{config.DriverSQLite, filepath.Join(dir, "store.db")},
	}
	for _, tc := range cases {
		t.Run(tc.driver, func(t *testing.T) {
			ctx := context.Background()
			cfg := config.Config{StorageDriver: tc.driver, StoragePath: tc.path}

			kv, closeKV, err := app.OpenStorage(ctx, cfg, nil)
			require.NoError(t, err)
			t.Cleanup(closeKV)

			require.NoError(t, kv.Set(ctx, "k", "v"))
			got, ok, err := kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "v", got)
		})
	}
}

func TestOpenStorage_UnknownDriver(t *testing.T) {
	_, _, err := app.OpenStorage(context.Background(), config.Config{StorageDriver: "redis"}, nil)

	require.Error(t, err)
}

// Migrates the schema itself, so it runs against any reachable database.
func TestOpenStorage_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}
	ctx := context.Background()
	cfg := config.Config{StorageDriver: config.DriverPostgres, DatabaseURL: dsn, ClientID: uuid.New()}

	kv, closeKV, err := app.OpenStorage(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(closeKV)

	require.NoError(t, kv.Set(ctx, theme.StorageKey, "dark"))
	got, ok, err := kv.Get(ctx, theme.StorageKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", got)
	require.NoError(t, kv.Remove(ctx, theme.StorageKey))
}
