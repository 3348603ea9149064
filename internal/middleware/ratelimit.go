package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/wedding-table/seating-server/internal/config"
)

// takeToken refills whole intervals since the stored timestamp, then takes
// one token.  Returns {allowed, remaining, wait_ms}.
var takeToken = redis.NewScript(`
local cap, refill, every, ttl = tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local now = tonumber(ARGV[1])
local b = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens, ts = tonumber(b[1]) or cap, tonumber(b[2]) or now
if every > 0 then
	local n = math.floor(math.max(0, now - ts) / every)
	if n > 0 then
		tokens = math.min(cap, tokens + n * refill)
		ts = ts + n * every
	end
end
local allowed, wait = 0, 0
if tokens > 0 then
	allowed, tokens = 1, tokens - 1
else
	wait = math.max(0, every - (now - ts))
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', ts)
redis.call('EXPIRE', KEYS[1], ttl)
return {allowed, tokens, wait}
`)

// NewTokenBucket limits requests per caller with a Redis token bucket.
// Without Redis (or when disabled) it passes every request through.  A
// Redis failure fails open: the request proceeds and a warning is logged.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, logger *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if logger == nil {
		logger = slog.Default()
	}
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			res, err := takeToken.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(), cfg.Capacity, cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(), int64(cfg.TTL.Seconds())).Int64Slice()
			if err != nil || len(res) != 3 {
				logger.Warn("rate limit check failed", "key", key, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
			if res[0] == 1 {
				return next(c)
			}
			wait := time.Duration(res[2]) * time.Millisecond
			h.Set("Retry-After", strconv.Itoa(int((wait+time.Second-1)/time.Second)))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error_code": "too_many_requests",
				"message":    "rate limit exceeded",
			})
		}
	}
}

// buildRateKey joins the parts named by cfg.KeyStrategy ("ip", "user",
// "route", underscore separated) after cfg.Prefix.  An unknown or empty
// strategy keys on all three.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := strings.Split(strings.ToLower(cfg.KeyStrategy), "_")
	key := []string{cfg.Prefix}
	for _, p := range parts {
		v, ok := rateKeyPart(p, c)
		if !ok {
			return buildRateKey(config.RateLimitConfig{Prefix: cfg.Prefix, KeyStrategy: "ip_user_route"}, c)
		}
		key = append(key, p, v)
	}
	return strings.Join(key, ":")
}

func rateKeyPart(name string, c echo.Context) (string, bool) {
	switch name {
	case "ip":
		if ip := c.RealIP(); ip != "" {
			return ip, true
		}
		return "unknown", true
	case "user":
		return subject(c), true
	case "route":
		return c.Request().Method + " " + c.Path(), true
	}
	return "", false
}
