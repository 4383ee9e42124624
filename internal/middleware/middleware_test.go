package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/visit-reservation/internal/config"
	"github.com/iliyamo/visit-reservation/internal/logging"
	"github.com/iliyamo/visit-reservation/internal/model"
	"github.com/iliyamo/visit-reservation/internal/utils"
)

const secret = "test-secret"

func protected(roles ...string) *echo.Echo {
	e := echo.New()
	g := e.Group("/admin", JWTAuth(secret), RequireRole(roles...))
	g.GET("/whoami", func(c echo.Context) error { return c.String(http.StatusOK, Subject(c)) })
	return e
}

func do(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) model.ProblemDetails {
	t.Helper()
	assert.Equal(t, model.ProblemContentType, rec.Header().Get(echo.HeaderContentType))
	var p model.ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestJWTAuth(t *testing.T) {
	e := protected(utils.RoleAdmin)
	tok, err := utils.NewAccessToken(secret, "admin@example.com", utils.RoleAdmin, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/whoami", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	rec := do(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin@example.com", rec.Body.String())

	rec = do(e, httptest.NewRequest(http.MethodGet, "/admin/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	p := decodeProblem(t, rec)
	assert.Equal(t, "UNAUTHORIZED", p.Code)
	assert.Equal(t, "/admin/whoami", p.Instance)

	req = httptest.NewRequest(http.MethodGet, "/admin/whoami", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, do(e, req).Code)

	other, err := utils.NewAccessToken("another-secret", "admin@example.com", utils.RoleAdmin, time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/admin/whoami", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+other.Token)
	assert.Equal(t, http.StatusUnauthorized, do(e, req).Code)
}

func TestRequireRole(t *testing.T) {
	e := protected(utils.RoleAdmin)
	tok, err := utils.NewAccessToken(secret, "someone", "VISITOR", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/whoami", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	rec := do(e, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeProblem(t, rec).Code)
}

func TestSubjectDefaultsToAnon(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Equal(t, "anon", Subject(c))
	c.Set(ContextSubject, "admin")
	assert.Equal(t, "admin", Subject(c))
}

func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestTokenBucketPassesThrough(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  config.RateLimitConfig
		rdb  *redis.Client
	}{
		{"disabled", config.RateLimitConfig{Enabled: false}, unreachableRedis(t)},
		{"no redis", config.RateLimitConfig{Enabled: true, Capacity: 1}, nil},
		{"redis down", config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "t"}, unreachableRedis(t)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			e.POST("/v1/reservations", func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
				NewTokenBucket(tc.cfg, tc.rdb, slog.Default()))
			for i := 0; i < 3; i++ {
				rec := do(e, httptest.NewRequest(http.MethodPost, "/v1/reservations", nil))
				assert.Equal(t, http.StatusCreated, rec.Code)
			}
		})
	}
}

func TestRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/reservations")

	for _, tc := range []struct {
		strategy string
		want     string
	}{
		{"ip", "rl:ip:10.0.0.7"},
		{"user", "rl:user:anon"},
		{"route", "rl:route:POST /v1/reservations"},
		{"ip_route", "rl:ip:10.0.0.7:route:POST /v1/reservations"},
		{"", "rl:ip:10.0.0.7:user:anon:route:POST /v1/reservations"},
	} {
		assert.Equal(t, tc.want, rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: tc.strategy}, c), tc.strategy)
	}
}

func TestCachePayloadRoundTrip(t *testing.T) {
	h := http.Header{}
	h.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	bs, err := encodePayload(http.StatusOK, h, []byte(`{"remaining":3}`))
	require.NoError(t, err)

	status, header, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, echo.MIMEApplicationJSON, header.Get(echo.HeaderContentType))
	assert.Equal(t, `{"remaining":3}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
	_, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0})
	assert.False(t, ok)
}

func TestCacheKeyDependsOnQuery(t *testing.T) {
	e := echo.New()
	key := func(target string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/v1/availability")
		return cacheKey(config.CacheConfig{Prefix: "vc", KeyStrategy: "route_query"}, c)
	}
	a := key("/v1/availability?date=2025-09-15")
	assert.Equal(t, a, key("/v1/availability?date=2025-09-15"))
	assert.NotEqual(t, a, key("/v1/availability?date=2025-09-16"))
	assert.Contains(t, a, "vc:")
}

func TestRedisCacheFallsThrough(t *testing.T) {
	calls := 0
	e := echo.New()
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Second, Prefix: "vc"}
	e.GET("/v1/availability", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, map[string]int{"remaining": 3})
	}, NewRedisCache(cfg, unreachableRedis(t), slog.Default()))

	for i := 0; i < 2; i++ {
		rec := do(e, httptest.NewRequest(http.MethodGet, "/v1/availability?date=2025-09-15", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
		assert.JSONEq(t, `{"remaining":3}`, rec.Body.String())
	}
	assert.Equal(t, 2, calls)
}

func TestCaptureWriterStopsAtLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("def"))
	assert.True(t, cw.truncated)
	assert.Equal(t, "abc", cw.buf.String())
	assert.Equal(t, "abcdef", rec.Body.String())
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logging.NewWithWriter("production", &buf)

	e := echo.New()
	e.Use(echomw.RequestID(), RequestLogger(base))
	e.GET("/v1/ping", func(c echo.Context) error {
		logging.FromContext(c.Request().Context()).InfoContext(c.Request().Context(), "inside handler")
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/v1/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "nope")
	})

	rec := do(e, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	id := rec.Header().Get(echo.HeaderXRequestID)
	require.NotEmpty(t, id)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	var inside, done map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &inside))
	require.NoError(t, json.Unmarshal(lines[1], &done))
	assert.Equal(t, "inside handler", inside["msg"])
	assert.Equal(t, id, inside["request_id"])
	assert.Equal(t, "request completed", done["msg"])
	assert.Equal(t, "/v1/ping", done["route"])
	assert.EqualValues(t, http.StatusNoContent, done["status"])

	buf.Reset()
	rec = do(e, httptest.NewRequest(http.MethodGet, "/v1/boom", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
}

func TestTimeout(t *testing.T) {
	e := echo.New()
	e.GET("/slow", func(c echo.Context) error {
		deadline, ok := c.Request().Context().Deadline()
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 500*time.Millisecond)
		return c.NoContent(http.StatusNoContent)
	}, Timeout(time.Second))
	e.GET("/free", func(c echo.Context) error {
		_, ok := c.Request().Context().Deadline()
		assert.False(t, ok)
		return c.NoContent(http.StatusNoContent)
	}, Timeout(0))

	assert.Equal(t, http.StatusNoContent, do(e, httptest.NewRequest(http.MethodGet, "/slow", nil)).Code)
	assert.Equal(t, http.StatusNoContent, do(e, httptest.NewRequest(http.MethodGet, "/free", nil)).Code)
}
