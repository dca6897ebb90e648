// Package apiclient is a typed client for the GeoPulse REST API.
//
// The API wraps payloads in {"status","message","data"}; methods return the
// decoded data. Authentication uses HTTP-only cookies kept in a cookie jar,
// with the access token's expiry mirrored in the token_expires_at cookie.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/geopulse-companion/internal/domain"
)

// ExpiryCookie carries the access token's expiry as epoch milliseconds.
const ExpiryCookie = "token_expires_at"

// RequestIDHeader is set on every request.
const RequestIDHeader = "X-Request-ID"

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("geopulse api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("geopulse api: %d: %s", e.Status, e.Message)
}

// Unwrap maps the status to a domain sentinel so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthenticated
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusConflict:
		return domain.ErrValidation
	default:
		return nil
	}
}

// Credentials is the persisted form of the client's cookies.
type Credentials struct {
	Cookies   map[string]string `json:"cookies"`
	ExpiresAt domain.Timestamp  `json:"expiresAt"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport. Its Jar is replaced by the client's.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithClock sets the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client talks to one GeoPulse server. Safe for concurrent use.
type Client struct {
	base *url.URL
	http *http.Client
	log  *slog.Logger
	now  func() time.Time

	jar *swapJar

	mu        sync.Mutex
	expiresAt time.Time
}

// swapJar is a cookie jar whose contents can be dropped atomically.
type swapJar struct {
	mu  sync.Mutex
	jar *cookiejar.Jar
}

func newSwapJar() *swapJar {
	jar, _ := cookiejar.New(nil) // cookiejar.New never fails with nil options
	return &swapJar{jar: jar}
}

func (j *swapJar) current() *cookiejar.Jar {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar
}

func (j *swapJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.current().SetCookies(u, cookies)
}

func (j *swapJar) Cookies(u *url.URL) []*http.Cookie {
	return j.current().Cookies(u)
}

func (j *swapJar) reset() {
	jar, _ := cookiejar.New(nil)
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar = jar
}

// New returns a Client for the API rooted at baseURL, e.g.
// "https://geopulse.example/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("apiclient.New: invalid base URL %q: %w", baseURL, domain.ErrValidation)
	}
	c := &Client{base: u, http: &http.Client{Timeout: 30 * time.Second}, log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.jar = newSwapJar()
	hc := *c.http
	hc.Jar = c.jar
	c.http = &hc
	return c, nil
}

// ---- credentials -----------------------------------------------------------

// IsTokenExpired reports whether the access token's known expiry has passed.
// With no known expiry the token is assumed live and the server decides.
func (c *Client) IsTokenExpired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.expiresAt.IsZero() && !c.now().Before(c.expiresAt)
}

// ClearAuthData forgets every cookie and the token expiry.
func (c *Client) ClearAuthData() {
	c.jar.reset()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expiresAt = time.Time{}
}

// Credentials returns the cookies held for the server.
func (c *Client) Credentials() Credentials {
	cookies := make(map[string]string)
	for _, ck := range c.jar.Cookies(c.base) {
		cookies[ck.Name] = ck.Value
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Credentials{Cookies: cookies, ExpiresAt: domain.TimestampFromTime(c.expiresAt)}
}

// RestoreCredentials loads cookies saved by Credentials.
func (c *Client) RestoreCredentials(cr Credentials) {
	cookies := make([]*http.Cookie, 0, len(cr.Cookies))
	for name, value := range cr.Cookies {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	c.jar.SetCookies(c.base, cookies)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expiresAt = cr.ExpiresAt.Time()
}

// trackExpiry mirrors a token_expires_at cookie from resp.
func (c *Client) trackExpiry(resp *http.Response) {
	for _, ck := range resp.Cookies() {
		if ck.Name != ExpiryCookie {
			continue
		}
		ts := parseExpiry(ck.Value)
		c.mu.Lock()
		c.expiresAt = ts.Time()
		c.mu.Unlock()
	}
}

// parseExpiry accepts epoch milliseconds or an RFC 3339 string.
func parseExpiry(v string) domain.Timestamp {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return domain.TimestampFromMillis(ms)
	}
	return domain.ParseTimestamp(v)
}

// ---- transport -------------------------------------------------------------

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// do sends one request. body, when non-nil, is sent as JSON. out, when
// non-nil, receives the envelope's data; a *json.RawMessage receives it raw.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.trackExpiry(resp)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: reading body: %w", method, path, err)
	}
	c.log.DebugContext(ctx, "geopulse api call",
		"method", method, "path", path, "status", resp.StatusCode, "request_id", reqID)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var env envelope
		if json.Unmarshal(raw, &env) == nil {
			apiErr.Message = env.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}

	data := unwrapEnvelope(raw)
	if rm, ok := out.(*json.RawMessage); ok {
		*rm = data
		return nil
	}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}
	return nil
}

// unwrapEnvelope returns the data of an envelope, or the whole body when it
// is not one.
func unwrapEnvelope(raw []byte) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) == nil {
		if data, ok := fields["data"]; ok {
			if _, hasStatus := fields["status"]; hasStatus {
				return data
			}
		}
	}
	return raw
}

// queryParams encodes params in the OpenAPI form style. Slices use explode
// false ("ids=a,b"); nil values are skipped.
func queryParams(params ...queryParam) (url.Values, error) {
	values := url.Values{}
	for _, p := range params {
		if p.value == nil {
			continue
		}
		frag, err := runtime.StyleParamWithLocation("form", p.explode, p.name, runtime.ParamLocationQuery, p.value)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", p.name, err)
		}
		parsed, err := url.ParseQuery(frag)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", p.name, err)
		}
		for k, vs := range parsed {
			for _, v := range vs {
				values.Add(k, v)
			}
		}
	}
	return values, nil
}

type queryParam struct {
	name    string
	value   any
	explode bool
}

func param(name string, value any) queryParam {
	return queryParam{name: name, value: value, explode: true}
}

func listParam(name string, values []string) queryParam {
	if len(values) == 0 {
		return queryParam{name: name}
	}
	return queryParam{name: name, value: values}
}

