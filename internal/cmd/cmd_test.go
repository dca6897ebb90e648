package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- harness ---------------------------------------------------------------

// fakeServer is a GeoPulse API that accepts any password for ada@example.com
// and requires the access_token cookie everywhere else.
type fakeServer struct {
	*httptest.Server
	profileCalls atomic.Int32

	mu       sync.Mutex
	requests []*http.Request
	bodies   map[string]string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{bodies: make(map[string]string)}
	expires := time.Now().Add(time.Hour).UnixMilli()

	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fs.mu.Lock()
		fs.requests = append(fs.requests, r)
		fs.bodies[r.Method+" "+r.URL.Path] = string(body)
		fs.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/auth/login" {
			http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "tok-1", Path: "/"})
			http.SetCookie(w, &http.Cookie{Name: "token_expires_at", Value: strconv.FormatInt(expires, 10), Path: "/"})
			writeData(w, map[string]any{"user": map[string]any{
				"id": 7, "email": "ada@example.com", "fullName": "Ada Lovelace", "timezone": "Europe/London",
			}})
			return
		}
		if ck, err := r.Cookie("access_token"); err != nil || ck.Value != "tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status":"error","message":"not authenticated"}`))
			return
		}

		switch r.Method + " " + r.URL.Path {
		case "POST /api/auth/logout":
			writeData(w, nil)
		case "GET /api/users/me":
			fs.profileCalls.Add(1)
			writeData(w, map[string]any{"id": 7, "email": "ada@example.com"})
		case "GET /api/period-tags":
			writeData(w, []map[string]any{
				{"id": 1, "tagName": "Summer trip", "startTime": "2025-06-01T00:00:00Z", "endTime": "2025-06-10T00:00:00Z", "color": "00ff00"},
				{"id": 2, "tagName": "Conference", "startTime": "2025-06-02T08:00:00Z", "color": "ff0000"},
			})
		case "GET /api/coverage/summary":
			grid, _ := strconv.Atoi(r.URL.Query().Get("grid"))
			writeData(w, map[string]any{"gridMeters": grid, "totalCells": 12, "areaSquareKm": 0.75})
		case "GET /api/coverage/status":
			writeData(w, map[string]any{"userEnabled": true, "hasCells": true, "lastProcessed": "2025-06-01T10:00:00Z"})
		case "PUT /api/friends/12/permissions/live":
			writeData(w, nil)
		case "GET /api/friends/12/permissions":
			writeData(w, map[string]any{"friendId": "12", "shareTimeline": false, "shareLiveLocation": true})
		case "GET /api/friends/permissions":
			writeData(w, []map[string]any{{"friendId": "12", "shareTimeline": true}})
		case "GET /api/streaming-timeline/multi-user":
			writeData(w, map[string]any{"users": []string{"7", "12"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func writeData(w http.ResponseWriter, data any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": data})
}

func (fs *fakeServer) lastRequest(method, path string) *http.Request {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i := len(fs.requests) - 1; i >= 0; i-- {
		if r := fs.requests[i]; r.Method == method && r.URL.Path == path {
			return r
		}
	}
	return nil
}

func (fs *fakeServer) body(method, path string) string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.bodies[method+" "+path]
}

// configure points the CLI at fs with file storage in a temp dir.
func configure(t *testing.T, fs *fakeServer) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.json")
	t.Setenv("GEOPULSE_CONFIG", "")
	t.Setenv("GEOPULSE_API_URL", fs.URL+"/api")
	t.Setenv("STORAGE_DRIVER", "file")
	t.Setenv("STORAGE_PATH", path)
	t.Setenv("LOG_LEVEL", "error")
	return path
}

// resetFlags puts every flag back to its default so runs do not leak
// into each other through the package-level flag variables.
func resetFlags() {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out, errOut bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return out.String(), err
}

func login(t *testing.T) {
	t.Helper()
	_, err := execute(t, "s3cret\n", "login", "--email", "ada@example.com", "--password-stdin")
	require.NoError(t, err)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// ---- session ---------------------------------------------------------------

func TestLogin_SessionCarriesOverToLaterRuns(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)

	out, err := execute(t, "s3cret\n", "login", "--email", "ada@example.com", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Ada Lovelace <ada@example.com>")
	assert.JSONEq(t, `{"email":"ada@example.com","password":"s3cret"}`, fs.body(http.MethodPost, "/api/auth/login"),
		"the trailing newline from stdin is not part of the password")

	out, err = execute(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Ada Lovelace <ada@example.com>")
	assert.Contains(t, out, "Europe/London")
	assert.Contains(t, out, "hydrated")
	assert.Zero(t, fs.profileCalls.Load(), "the saved snapshot is trusted")
}

func TestLogin_RequiresPassword(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)

	_, err := execute(t, "", "login", "--email", "ada@example.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
	assert.Nil(t, fs.lastRequest(http.MethodPost, "/api/auth/login"))
}

func TestLogin_RequiresEmail(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)

	_, err := execute(t, "", "login", "--password", "s3cret")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
}

func TestWhoami_NotLoggedIn(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)

	out, err := execute(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in.")

	out, err = execute(t, "", "whoami", "--json")
	require.NoError(t, err)
	assert.Equal(t, "null", strings.TrimSpace(out))
}

func TestLogout_ForgetsSession(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)
	login(t)

	out, err := execute(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = execute(t, "", "storage", "get", "userInfo")
	require.Error(t, err, "the snapshot is erased")
	_, err = execute(t, "", "storage", "get", "geopulseCredentials")
	require.Error(t, err, "the cookies are erased")
}

func TestMissingAPIURL(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)
	t.Setenv("GEOPULSE_API_URL", "")

	_, err := execute(t, "", "whoami")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEOPULSE_API_URL")
}

func TestAPIURLFlagOverridesEnvironment(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)
	t.Setenv("GEOPULSE_API_URL", "http://geopulse.invalid/api")

	_, err := execute(t, "s3cret", "login", "--email", "ada@example.com", "--password-stdin", "--api-url", fs.URL+"/api")

	require.NoError(t, err)
	assert.NotNil(t, fs.lastRequest(http.MethodPost, "/api/auth/login"))
}

// ---- theme -----------------------------------------------------------------

func TestTheme_SetAndShow(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)

	out, err := execute(t, "", "theme", "DARK")
	require.NoError(t, err)
	assert.Contains(t, out, "Theme set to dark")

	out, err = execute(t, "", "theme", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"dark","dark":true}`, out)

	out, err = execute(t, "", "storage", "get", "themeMode")
	require.NoError(t, err)
	assert.Equal(t, "dark", strings.TrimSpace(out))
}

func TestTheme_RejectsUnknownMode(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)

	_, err := execute(t, "", "theme", "purple")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown theme")
}

// ---- tags ------------------------------------------------------------------

func TestTagsMatch_LatestStartWins(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)
	login(t)

	out, err := execute(t, "", "tags", "match", "--start", "2025-06-03T12:00:00Z", "--end", "2025-06-03T14:00:00Z", "--json")
	require.NoError(t, err)

	var res struct {
		Matched bool `json:"matched"`
		Tag     struct {
			TagName string `json:"tagName"`
		} `json:"tag"`
		Color         string `json:"color"`
		TimelineQuery struct {
			Start string `json:"start"`
		} `json:"timelineQuery"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Matched)
	assert.Equal(t, "Conference", res.Tag.TagName)
	assert.Equal(t, "#ff0000", res.Color)
	assert.Equal(t, "06/02/2025", res.TimelineQuery.Start)
}

func TestTagsMatch_Visit(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)
	login(t)

	// Two hours from 23:00 end well before the conference starts at 08:00.
	start := strconv.FormatInt(time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC).UnixMilli(), 10)
	out, err := execute(t, "", "tags", "match", "--start", start, "--stay", "7200")
	require.NoError(t, err)
	assert.Contains(t, out, "Summer trip")
}

func TestTagsMatch_NoMatch(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)
	login(t)

	out, err := execute(t, "", "tags", "match", "--start", "2024-01-01")
	require.NoError(t, err)
	assert.Contains(t, out, "No period tag covers that interval.")
}

func TestTagsMatch_InvalidStart(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)

	_, err := execute(t, "", "tags", "match", "--start", "yesterday-ish")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a timestamp")
}

func TestTagsList_RequiresLogin(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)

	_, err := execute(t, "", "tags", "list")

	require.ErrorIs(t, err, errNotLoggedIn)
}

// ---- photos ----------------------------------------------------------------

const photosJSON = `[
  {"id":"p1","takenAt":"2025-06-01T10:30:00Z","latitude":52.52,"longitude":13.405},
  {"id":"p2","takenAt":"2025-06-01T11:30:00Z","latitude":52.52001,"longitude":13.40501},
  {"id":"p3","createdAt":"2025-06-01T10:59:00Z","latitude":48.8566,"longitude":2.3522},
  {"id":"p4","takenAt":"2025-06-01T10:10:00Z"}
]`

func TestPhotosGroup_OpenAndFocus(t *testing.T) {
	t.Setenv("GEOPULSE_API_URL", "")
	file := writeFile(t, "photos.json", photosJSON)

	out, err := execute(t, "", "photos", "group", file, "--open", "0", "--focus", "p2", "--json")
	require.NoError(t, err, "photo commands work without configuration")

	var res struct {
		Groups []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Indices   []int   `json:"indices"`
		} `json:"groups"`
		Opened struct {
			Photos       []struct{ ID string } `json:"photos"`
			InitialIndex int                   `json:"initialIndex"`
		} `json:"opened"`
		View struct {
			Latitude float64 `json:"latitude"`
			Zoom     float64 `json:"zoom"`
		} `json:"view"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Groups, 2)
	assert.Equal(t, []int{0, 1}, res.Groups[0].Indices)
	assert.Equal(t, 52.52, res.Groups[0].Latitude)
	assert.Equal(t, []int{2}, res.Groups[1].Indices)
	require.Len(t, res.Opened.Photos, 2)
	assert.Equal(t, "p1", res.Opened.Photos[0].ID)
	assert.Equal(t, 52.52001, res.View.Latitude)
	assert.Equal(t, float64(16), res.View.Zoom)
}

func TestPhotosGroup_OpenOutOfRange(t *testing.T) {
	file := writeFile(t, "photos.json", photosJSON)

	_, err := execute(t, "", "photos", "group", file, "--open", "5")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "only 2 markers")
}

func TestPhotosGroup_Stdin(t *testing.T) {
	out, err := execute(t, photosJSON, "photos", "group", "-")

	require.NoError(t, err)
	assert.Contains(t, out, "4 photos in 2 markers")
}

func TestPhotosMatch(t *testing.T) {
	item := writeFile(t, "stay.json", `{"timestamp":"2025-06-01T10:00:00Z","stayDuration":3600}`)
	photos := writeFile(t, "photos.json", photosJSON)

	cases := []struct {
		name    string
		args    []string
		wantIDs []string
		window  bool
	}{
		{"whole stay", nil, []string{"p1", "p3", "p4"}, true},
		{"same day", []string{"--day", "2025-06-01"}, []string{"p1", "p3", "p4"}, true},
		{"other day", []string{"--day", "2025-06-02"}, []string{}, false},
		{"trip field is empty", []string{"--field", "tripDuration"}, []string{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"photos", "match", "--item", item, "--photos", photos, "--json"}, tc.args...)
			out, err := execute(t, "", args...)
			require.NoError(t, err)

			var res struct {
				Photos []struct{ ID string } `json:"photos"`
				Start  *time.Time            `json:"start"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &res))
			ids := []string{}
			for _, p := range res.Photos {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tc.wantIDs, ids)
			assert.Equal(t, tc.window, res.Start != nil)
		})
	}
}

func TestPhotosMatch_UnknownField(t *testing.T) {
	_, err := execute(t, "", "photos", "match", "--item", "x.json", "--photos", "y.json", "--field", "distance")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--field")
}

// ---- sources ---------------------------------------------------------------

func TestSources(t *testing.T) {
	t.Setenv("GEOPULSE_API_URL", "")

	out, err := execute(t, "", "sources", "--json")
	require.NoError(t, err)

	var metas []struct {
		Value string `json:"value"`
		Label string `json:"label"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &metas))
	require.Len(t, metas, 5)
	assert.Equal(t, "OWNTRACKS", metas[0].Value)

	out, err = execute(t, "", "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "Home Assistant")
}

// ---- coverage --------------------------------------------------------------

func TestCoverageSummary(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)
	login(t)

	out, err := execute(t, "", "coverage", "summary", "--grid", "250")
	require.NoError(t, err)
	assert.Contains(t, out, "12 cells of 250 m")
	assert.Equal(t, "250", fs.lastRequest(http.MethodGet, "/api/coverage/summary").URL.Query().Get("grid"))
}

func TestCoverageSummary_RejectsGrid(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)

	_, err := execute(t, "", "coverage", "summary", "--grid", "33")

	require.Error(t, err)
	assert.Nil(t, fs.lastRequest(http.MethodGet, "/api/coverage/summary"))
}

func TestCoverageStatus(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)
	login(t)

	out, err := execute(t, "", "coverage", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "enabled")
	assert.Contains(t, out, "2025-06-01 11:00 BST", "instants are shown in the user's zone")
}

func TestCoverageCells_InvalidBBox(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)

	_, err := execute(t, "", "coverage", "cells", "--bbox", "1,2,3")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--bbox")
}

// ---- friends ---------------------------------------------------------------

func TestFriendsShare_OnlyChangesGivenFlags(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)
	login(t)

	out, err := execute(t, "", "friends", "share", "12", "--live=true")
	require.NoError(t, err)
	assert.Contains(t, out, "Friend 12")
	assert.JSONEq(t, `{"shareLiveLocation":true}`, fs.body(http.MethodPut, "/api/friends/12/permissions/live"))
	assert.Nil(t, fs.lastRequest(http.MethodPut, "/api/friends/12/permissions"))
}

func TestFriendsShare_NeedsAFlag(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)

	_, err := execute(t, "", "friends", "share", "12")

	require.Error(t, err)
}

func TestFriendsList(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)
	login(t)

	out, err := execute(t, "", "friends", "list", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"friendId":"12","shareTimeline":true,"shareLiveLocation":false}]`, out)
}

// ---- timeline --------------------------------------------------------------

func TestTimeline_DaysInUserZone(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)
	login(t)

	out, err := execute(t, "", "timeline", "--start", "2025-06-01", "--users", "12, 15")
	require.NoError(t, err)
	assert.JSONEq(t, `{"users":["7","12"]}`, out)

	q := fs.lastRequest(http.MethodGet, "/api/streaming-timeline/multi-user").URL.Query()
	assert.Equal(t, "2025-05-31T23:00:00Z", q.Get("startTime"))
	assert.Equal(t, "2025-06-01T22:59:59Z", q.Get("endTime"))
	assert.Equal(t, "12,15", q.Get("userIds"))
}

func TestTimeline_EndBeforeStart(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)
	login(t)

	_, err := execute(t, "", "timeline", "--start", "2025-06-02", "--end", "2025-06-01")

	require.Error(t, err)
}

// ---- storage ---------------------------------------------------------------

func TestStorage_GetAndRemove(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)
	login(t)

	out, err := execute(t, "", "storage", "get", "userInfo")
	require.NoError(t, err)
	assert.Contains(t, out, `"email":"ada@example.com"`)

	_, err = execute(t, "", "storage", "remove", "userInfo")
	require.NoError(t, err)

	_, err = execute(t, "", "storage", "get", "userInfo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no value stored")
}

func TestStorage_List(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)

	out, err := execute(t, "", "storage", "list", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `["themeMode"]`, out, "startup persists the theme")

	login(t)

	out, err = execute(t, "", "storage", "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"geopulseCredentials", "themeMode", "userInfo"}, strings.Fields(out))
}

func TestStorage_SQLiteFlag(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)
	db := filepath.Join(t.TempDir(), "store.db")

	_, err := execute(t, "", "theme", "light", "--storage", "sqlite", "--storage-path", db)
	require.NoError(t, err)

	out, err := execute(t, "", "storage", "get", "themeMode", "--storage", "sqlite", "--storage-path", db)
	require.NoError(t, err)
	assert.Equal(t, "light", strings.TrimSpace(out))
}

// ---- root ------------------------------------------------------------------

func TestNeedsApp(t *testing.T) {
	assert.True(t, needsApp(whoamiCmd))
	assert.True(t, needsApp(coverageSummaryCmd))
	assert.False(t, needsApp(sourcesCmd))
	assert.False(t, needsApp(photosMatchCmd), "inherited from the parent")
}

func TestParentWithoutSubcommand(t *testing.T) {
	fs := newFakeServer(t)
	configure(t, fs)

	_, err := execute(t, "", "coverage")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a subcommand")
}
