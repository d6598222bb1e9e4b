package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/nekogravitycat/court-reservation-engine/internal/auth"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/response"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger assigns a request id and attaches a request-scoped zerolog logger
// to the request context. Handlers and services read it back with zerolog.Ctx.
func RequestLogger(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, rid)

		logger := base.With().Str("request_id", rid).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		c.Next()

		status := c.Writer.Status()
		var evt *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			evt = zerolog.Ctx(c.Request.Context()).Error()
		case status >= http.StatusBadRequest:
			evt = zerolog.Ctx(c.Request.Context()).Warn()
		default:
			evt = zerolog.Ctx(c.Request.Context()).Info()
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request completed")
	}
}

const limiterIdleTTL = 10 * time.Minute

// userLimiter hands out one token bucket per key. Buckets idle for idleTTL are dropped
// on a later call. idleTTL is never shorter than a full refill.
type userLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	lastSweep time.Time
	buckets   map[string]*userBucket
}

type userBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newUserLimiter(perMinute float64, burst int) *userLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perMinute / 60)
	ttl := limiterIdleTTL
	if refill := time.Duration(float64(burst) / float64(limit) * float64(time.Second)); refill > ttl {
		ttl = refill
	}
	return &userLimiter{
		limit:     limit,
		burst:     burst,
		idleTTL:   ttl,
		now:       time.Now,
		lastSweep: time.Now(),
		buckets:   make(map[string]*userBucket),
	}
}

func (l *userLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) >= l.idleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &userBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

func (l *userLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimitPerUser throttles the authenticated caller, falling back to the client IP.
// A non-positive perMinute disables the limit.
// It MUST be used after auth.AuthRequired middleware.
func RateLimitPerUser(perMinute float64, burst int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := newUserLimiter(perMinute, burst)

	return func(c *gin.Context) {
		key := auth.GetUserID(c)
		if key == "" {
			key = c.ClientIP()
		}

		if !limiter.get(key).Allow() {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.ErrorResponse{Error: "too many booking requests, please slow down"})
			return
		}
		c.Next()
	}
}
