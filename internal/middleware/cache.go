package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/partner-portal/internal/config"
)

// cacheEntry is what one cached response looks like in Redis.
type cacheEntry struct {
	Status      int       `json:"status"`
	ContentType string    `json:"contentType,omitempty"`
	Body        []byte    `json:"body"`
	StoredAt    time.Time `json:"storedAt"`
}

// bodyRecorder tees the response body into a bounded buffer.
type bodyRecorder struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	max      int
	overflow bool
}

func (r *bodyRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	if !r.overflow {
		if r.max > 0 && r.buf.Len()+len(b) > r.max {
			r.overflow = true
			r.buf.Reset()
		} else {
			r.buf.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

// cacheKey hashes the parts selected by the key strategy.  The tariff sheet
// is priced per agency, so the default strategy includes the caller.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
	h := sha256.New()
	write := func(parts ...string) {
		for _, p := range parts {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
	}
	write(c.Request().Method, c.Path())
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
	case "route_query":
		write(c.Request().URL.RawQuery)
	default: // user_route_query
		write(c.Request().URL.RawQuery, currentUserID(c))
	}
	return cfg.Prefix + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}

func replay(c echo.Context, e cacheEntry) error {
	h := c.Response().Header()
	if e.ContentType != "" {
		h.Set(echo.HeaderContentType, e.ContentType)
	}
	h.Set("X-Cache", "HIT")
	h.Set("Age", strconv.Itoa(int(time.Since(e.StoredAt).Seconds())))
	c.Response().WriteHeader(e.Status)
	_, err := c.Response().Write(e.Body)
	return err
}

// NewRedisCache serves repeated requests from Redis for cfg.TTL.  Only 200
// responses no larger than MaxBodyBytes are stored; a request sent with
// "Cache-Control: no-cache" skips the lookup and refreshes the entry.  A
// handler opts a response out by setting "Cache-Control: no-store".
// Without Redis or when disabled it passes through.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !cfg.Methods[strings.ToUpper(req.Method)] {
				return next(c)
			}
			key := cacheKey(cfg, c)

			if !strings.Contains(req.Header.Get("Cache-Control"), "no-cache") {
				if raw, err := rdb.Get(req.Context(), key).Bytes(); err == nil {
					var e cacheEntry
					if json.Unmarshal(raw, &e) == nil && e.Status != 0 {
						return replay(c, e)
					}
				}
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, max: cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow ||
				strings.Contains(c.Response().Header().Get("Cache-Control"), "no-store") {
				return nil
			}
			raw, err := json.Marshal(cacheEntry{
				Status:      rec.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        rec.buf.Bytes(),
				StoredAt:    time.Now().UTC(),
			})
			if err == nil {
				// the request context may already be cancelled
				_ = rdb.Set(context.WithoutCancel(req.Context()), key, raw, ttl).Err()
			}
			return nil
		}
	}
}
