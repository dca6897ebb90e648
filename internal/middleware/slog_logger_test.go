package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/geopulse-companion/internal/middleware"
)

// decodeLine parses the single JSON log line in buf.
func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestSlogLogger_logsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	h := middleware.NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))(okHandler)

	req := httptest.NewRequest(http.MethodPut, "/theme", nil)
	req = req.WithContext(context.WithValue(req.Context(), chimiddleware.RequestIDKey, "req-42"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	line := decodeLine(t, &buf)
	require.Equal(t, "request", line["msg"])
	require.Equal(t, "PUT", line["method"])
	require.Equal(t, "/theme", line["path"])
	require.EqualValues(t, http.StatusOK, line["status"])
	require.Equal(t, "req-42", line["request_id"])
	require.Contains(t, line, "duration_ms")
	require.NotContains(t, line, "route", "no chi router, no pattern")
}

func TestSlogLogger_levelFollowsStatus(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		h := middleware.NewSlogLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/session", nil))

		require.Equal(t, tc.level, decodeLine(t, &buf)["level"], "status %d", tc.status)
	}
}

func TestSlogLogger_routePattern(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(middleware.NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	r.Get("/coverage/{kind}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/coverage/cells", nil))

	line := decodeLine(t, &buf)
	require.Equal(t, "/coverage/{kind}", line["route"])
	require.EqualValues(t, 2, line["bytes"])
}
