package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pkordes/geopulse-companion/internal/middleware"
)

// drain reads the whole body, answering 413 when the read is cut short.
var drain = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if _, err := io.ReadAll(r.Body); err != nil {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}
	w.WriteHeader(http.StatusOK)
})

func TestMaxBodySizeHandler(t *testing.T) {
	cases := []struct {
		name          string
		size          int
		contentLength int64 // -1 streams the body without a length
		want          int
	}{
		{name: "under limit", size: 64, contentLength: 64, want: http.StatusOK},
		{name: "exactly at limit", size: 100, contentLength: 100, want: http.StatusOK},
		{name: "declared too large", size: 101, contentLength: 101, want: http.StatusRequestEntityTooLarge},
		{name: "streamed too large", size: 500, contentLength: -1, want: http.StatusRequestEntityTooLarge},
	}
	h := middleware.NewMaxBodySizeHandler(100)(drain)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/photos/groups", strings.NewReader(strings.Repeat("p", tc.size)))
			req.ContentLength = tc.contentLength
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestMaxBodySizeHandler_DeclaredTooLargeSkipsHandler(t *testing.T) {
	reached := false
	h := middleware.NewMaxBodySizeHandler(10)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/period-tags/match", strings.NewReader(strings.Repeat("x", 11)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, reached)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":{"code":"payload_too_large","message":"request body too large"}}`, rec.Body.String())
}
