package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/partner-portal/internal/config"
	"github.com/iliyamo/partner-portal/internal/logger"
)

// takeToken refills continuously at rate tokens per millisecond, capped at
// capacity, and takes one token.  It returns {allowed, remaining,
// retry_after_ms} with remaining rounded down.
var takeToken = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local ts = tonumber(redis.call('HGET', KEYS[1], 'ts'))
if not tokens or not ts then
	tokens, ts = capacity, now
end
tokens = math.min(capacity, tokens + math.max(0, now - ts) * rate)

local allowed, wait = 0, 0
if tokens >= 1 then
	allowed = 1
	tokens = tokens - 1
else
	wait = math.ceil((1 - tokens) / rate)
end
redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', now)
redis.call('EXPIRE', KEYS[1], ttl)
return {allowed, math.floor(tokens), wait}
`)

// NewTokenBucket rate-limits /v1 per key (see buildRateKey).  When Redis
// misbehaves the request goes through and a warning is logged.  Without
// Redis or when disabled it passes through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log logger.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	perMs := float64(cfg.RefillTokens) / float64(cfg.RefillInterval.Milliseconds())
	ttl := int64(cfg.TTL.Seconds())
	if ttl < 1 {
		ttl = 1
	}
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			res, err := takeToken.Run(c.Request().Context(), rdb, []string{key},
				cfg.Capacity, perMs, time.Now().UnixMilli(), ttl).Int64Slice()
			if err != nil || len(res) != 3 {
				log.WithError(err).Warn("rate limiter unavailable, allowing request", map[string]interface{}{"key": key})
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if res[0] == 1 {
				return next(c)
			}
			retry := (res[2] + 999) / 1000
			h.Set("Retry-After", strconv.FormatInt(retry, 10))
			log.Debug("rate limited", map[string]interface{}{"key": key, "retry_after_s": retry})
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "rate limit exceeded",
				"retry_after": retry,
			})
		}
	}
}

// buildRateKey joins the prefix with the parts the strategy names, e.g.
// "portal:rl:user:ana@sol.com".  Unknown strategies use every part.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := func() []string {
		if v := c.RealIP(); v != "" {
			return []string{"ip", v}
		}
		return []string{"ip", "unknown"}
	}
	user := func() []string { return []string{"user", currentUserID(c)} }
	route := func() []string { return []string{"route", c.Request().Method + " " + c.Path()} }

	var parts [][]string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = [][]string{ip()}
	case "user":
		parts = [][]string{user()}
	case "user_route":
		parts = [][]string{user(), route()}
	default: // ip_user_route
		parts = [][]string{ip(), user(), route()}
	}
	out := []string{cfg.Prefix}
	for _, p := range parts {
		out = append(out, p...)
	}
	return strings.Join(out, ":")
}
