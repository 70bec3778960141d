package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/partner-portal/internal/config"
	"github.com/iliyamo/partner-portal/internal/logger"
	"github.com/iliyamo/partner-portal/internal/model"
)

const testSecret = "s3cret"

func signed(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func serve(e *echo.Echo, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func echoIdentity(c echo.Context) error {
	id, _ := IdentityFrom(c)
	return c.JSON(http.StatusOK, id)
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", echoIdentity, JWTAuth(testSecret, "idp"))

	exp := time.Now().Add(time.Hour).Unix()
	good := signed(t, jwt.MapClaims{"sub": "u1", "email": "ana@sol.com", "name": "Ana", "iss": "idp", "exp": exp}, testSecret)
	noEmail := signed(t, jwt.MapClaims{"sub": "u1", "iss": "idp", "exp": exp}, testSecret)
	wrongIss := signed(t, jwt.MapClaims{"email": "ana@sol.com", "iss": "other", "exp": exp}, testSecret)
	wrongKey := signed(t, jwt.MapClaims{"email": "ana@sol.com", "iss": "idp", "exp": exp}, "nope")
	expired := signed(t, jwt.MapClaims{"email": "ana@sol.com", "iss": "idp", "exp": time.Now().Add(-time.Hour).Unix()}, testSecret)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"valid", good, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"no email claim", noEmail, http.StatusUnauthorized},
		{"wrong issuer", wrongIss, http.StatusUnauthorized},
		{"wrong key", wrongKey, http.StatusUnauthorized},
		{"expired", expired, http.StatusUnauthorized},
		{"garbage", "not.a.jwt", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, http.MethodGet, "/me", tt.token)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	rec := serve(e, http.MethodGet, "/me", good)
	assert.JSONEq(t, `{"sub":"u1","email":"ana@sol.com","name":"Ana"}`, rec.Body.String())
}

func TestJWTAuthRejectsOtherAlgorithms(t *testing.T) {
	e := echo.New()
	e.GET("/me", echoIdentity, JWTAuth(testSecret, ""))

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"email": "ana@sol.com"}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", tok).Code)
}

func TestUserKey(t *testing.T) {
	assert.Equal(t, "ana@sol.com", userKey(model.Identity{Email: " Ana@Sol.com ", Subject: "u1"}))
	assert.Equal(t, "u1", userKey(model.Identity{Subject: "u1"}))
	assert.Equal(t, "anon", userKey(model.Identity{}))
}

func TestRequireAdmin(t *testing.T) {
	check := func(_ context.Context, id model.Identity) (bool, error) {
		switch id.Email {
		case "admin@portal.com":
			return true, nil
		case "broken@portal.com":
			return false, errors.New("store down")
		}
		return false, nil
	}

	run := func(id *model.Identity) int {
		e := echo.New()
		e.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
			func(next echo.HandlerFunc) echo.HandlerFunc {
				return func(c echo.Context) error {
					if id != nil {
						SetIdentity(c, *id)
					}
					return next(c)
				}
			},
			RequireAdmin(check))
		return serve(e, http.MethodGet, "/admin", "").Code
	}

	assert.Equal(t, http.StatusNoContent, run(&model.Identity{Email: "admin@portal.com"}))
	assert.Equal(t, http.StatusForbidden, run(&model.Identity{Email: "ana@sol.com"}))
	assert.Equal(t, http.StatusInternalServerError, run(&model.Identity{Email: "broken@portal.com"}))
	assert.Equal(t, http.StatusUnauthorized, run(nil))
}

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		KeyStrategy:  "user_route_query",
		Prefix:       "test:cache",
		MaxBodyBytes: 1 << 10,
	}
}

func TestRedisCacheHitAndMiss(t *testing.T) {
	_, rdb := newRedis(t)
	calls := 0
	e := echo.New()
	e.GET("/tariffs", func(c echo.Context) error {
		calls++
		id, _ := IdentityFrom(c)
		return c.JSON(http.StatusOK, map[string]any{"agency": id.Email, "n": calls})
	}, JWTAuth(testSecret, ""), NewRedisCache(cacheConfig(), rdb))

	ana := signed(t, jwt.MapClaims{"email": "ana@sol.com"}, testSecret)
	bia := signed(t, jwt.MapClaims{"email": "bia@mar.com"}, testSecret)

	first := serve(e, http.MethodGet, "/tariffs", ana)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := serve(e, http.MethodGet, "/tariffs", ana)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Contains(t, second.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
	assert.Equal(t, 1, calls)

	// another caller has its own entry
	other := serve(e, http.MethodGet, "/tariffs", bia)
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Contains(t, other.Body.String(), "bia@mar.com")
	assert.Equal(t, 2, calls)

	// a different query string is a different entry
	serve(e, http.MethodGet, "/tariffs?x=1", ana)
	assert.Equal(t, 3, calls)
}

func TestRedisCacheSkipsErrorsAndLargeBodies(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := cacheConfig()
	cfg.MaxBodyBytes = 8

	e := echo.New()
	e.Use(NewRedisCache(cfg, rdb))
	e.GET("/fail", func(c echo.Context) error { return c.JSON(http.StatusBadGateway, map[string]string{"error": "x"}) })
	e.GET("/big", func(c echo.Context) error { return c.String(http.StatusOK, "0123456789abcdef") })

	serve(e, http.MethodGet, "/fail", "")
	serve(e, http.MethodGet, "/big", "")
	assert.Empty(t, mr.Keys())
}

func TestRedisCacheHonoursNoStore(t *testing.T) {
	mr, rdb := newRedis(t)
	calls := 0
	e := echo.New()
	e.Use(NewRedisCache(cacheConfig(), rdb))
	e.GET("/tariffs", func(c echo.Context) error {
		calls++
		c.Response().Header().Set("Cache-Control", "no-store")
		return c.JSON(http.StatusOK, map[string]any{"products": []string{}})
	})

	serve(e, http.MethodGet, "/tariffs", "")
	second := serve(e, http.MethodGet, "/tariffs", "")
	assert.Equal(t, "MISS", second.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
	assert.Empty(t, mr.Keys())
}

func TestRedisCacheDisabledWithoutClient(t *testing.T) {
	calls := 0
	e := echo.New()
	e.Use(NewRedisCache(cacheConfig(), nil))
	e.GET("/x", func(c echo.Context) error { calls++; return c.NoContent(http.StatusOK) })

	serve(e, http.MethodGet, "/x", "")
	serve(e, http.MethodGet, "/x", "")
	assert.Equal(t, 2, calls)
}

func TestRedisCacheNoCacheRefreshes(t *testing.T) {
	_, rdb := newRedis(t)
	calls := 0
	e := echo.New()
	e.Use(NewRedisCache(cacheConfig(), rdb))
	e.GET("/tariffs", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, map[string]int{"n": calls})
	})

	serve(e, http.MethodGet, "/tariffs", "")
	hit := serve(e, http.MethodGet, "/tariffs", "")
	assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))
	assert.NotEmpty(t, hit.Header().Get("Age"))

	req := httptest.NewRequest(http.MethodGet, "/tariffs", nil)
	req.Header.Set("Cache-Control", "no-cache")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	// the refreshed entry is served afterwards
	after := serve(e, http.MethodGet, "/tariffs", "")
	assert.JSONEq(t, `{"n":2}`, after.Body.String())
}

func TestCacheKeyStrategies(t *testing.T) {
	e := echo.New()
	ctxFor := func(email, query string) echo.Context {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/tariffs?"+query, nil), httptest.NewRecorder())
		c.SetPath("/v1/tariffs")
		SetIdentity(c, model.Identity{Email: email})
		return c
	}
	cfg := cacheConfig()

	assert.NotEqual(t, cacheKey(cfg, ctxFor("ana@sol.com", "")), cacheKey(cfg, ctxFor("bia@mar.com", "")))
	assert.True(t, strings.HasPrefix(cacheKey(cfg, ctxFor("ana@sol.com", "")), "test:cache:"))

	cfg.KeyStrategy = "route_query"
	assert.Equal(t, cacheKey(cfg, ctxFor("ana@sol.com", "a=1")), cacheKey(cfg, ctxFor("bia@mar.com", "a=1")))
	assert.NotEqual(t, cacheKey(cfg, ctxFor("ana@sol.com", "a=1")), cacheKey(cfg, ctxFor("ana@sol.com", "a=2")))

	cfg.KeyStrategy = "route"
	assert.Equal(t, cacheKey(cfg, ctxFor("ana@sol.com", "a=1")), cacheKey(cfg, ctxFor("bia@mar.com", "a=2")))
}

func rateConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "user",
		Prefix:         "test:rl",
	}
}

func TestTokenBucketLimitsPerUser(t *testing.T) {
	_, rdb := newRedis(t)
	e := echo.New()
	e.GET("/v1/me", echoIdentity, JWTAuth(testSecret, ""), NewTokenBucket(rateConfig(), rdb, logger.NewTestLogger(t)))

	ana := signed(t, jwt.MapClaims{"email": "ana@sol.com"}, testSecret)
	bia := signed(t, jwt.MapClaims{"email": "bia@mar.com"}, testSecret)

	r1 := serve(e, http.MethodGet, "/v1/me", ana)
	assert.Equal(t, http.StatusOK, r1.Code)
	assert.Equal(t, "2", r1.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", r1.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/v1/me", ana).Code)

	limited := serve(e, http.MethodGet, "/v1/me", ana)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "3600", limited.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/v1/me", bia).Code)
}

func TestTokenBucketFailsOpen(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()

	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		NewTokenBucket(rateConfig(), rdb, logger.NewNoOpLogger()))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x", "").Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/reservations")
	SetIdentity(c, model.Identity{Email: "Ana@Sol.com"})

	cfg := rateConfig()
	cases := map[string]string{
		"ip":            "test:rl:ip:10.0.0.1",
		"user":          "test:rl:user:ana@sol.com",
		"user_route":    "test:rl:user:ana@sol.com:route:POST /v1/reservations",
		"ip_user_route": "test:rl:ip:10.0.0.1:user:ana@sol.com:route:POST /v1/reservations",
	}
	for strategy, want := range cases {
		cfg.KeyStrategy = strategy
		assert.Equal(t, want, buildRateKey(cfg, c), strategy)
	}
}

func TestRequestLoggerWritesErrorStatus(t *testing.T) {
	e := echo.New()
	e.Use(RequestLogger(logger.NewTestLogger(t)))
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "nope") })
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	assert.Equal(t, http.StatusTeapot, serve(e, http.MethodGet, "/boom", "").Code)
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/ok", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(e, http.MethodGet, "/missing", "").Code)
}
