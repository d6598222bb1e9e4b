package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/court-reservation-engine/internal/auth"
	"github.com/nekogravitycat/court-reservation-engine/internal/metrics"
	reservationHttp "github.com/nekogravitycat/court-reservation-engine/internal/reservation/http"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestRouter(db Pinger, reg *prometheus.Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := Config{
		Logger:             zerolog.Nop(),
		JWTManager:         auth.NewJWTManager("secret", "", time.Hour),
		ReservationHandler: reservationHttp.NewHandler(nil),
		DB:                 db,
	}
	if reg != nil {
		cfg.Gatherer = reg
	}
	return NewRouter(cfg)
}

func get(r http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	w := get(newTestRouter(nil, nil), "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })
	w = get(newTestRouter(down, nil), "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg).IncBooking("success")

	w := get(newTestRouter(nil, reg), "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "court_reservation_booking_requests_total")

	w = get(newTestRouter(nil, nil), "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	r := newTestRouter(nil, nil)

	w := get(r, "/healthz", map[string]string{requestIDHeader: "req-123"})
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))

	w = get(r, "/healthz", nil)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestReservationRoutesRequireAuth(t *testing.T) {
	w := get(newTestRouter(nil, nil), "/v1/reservations", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitPerUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		auth.SetUserID(c, c.GetHeader("X-Test-User"))
		c.Next()
	})
	r.GET("/book", RateLimitPerUser(1, 2), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	alice := map[string]string{"X-Test-User": "alice"}
	assert.Equal(t, http.StatusNoContent, get(r, "/book", alice).Code)
	assert.Equal(t, http.StatusNoContent, get(r, "/book", alice).Code)

	w := get(r, "/book", alice)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// Buckets are per user.
	assert.Equal(t, http.StatusNoContent, get(r, "/book", map[string]string{"X-Test-User": "bob"}).Code)
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/book", RateLimitPerUser(0, 0), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for range 5 {
		assert.Equal(t, http.StatusNoContent, get(r, "/book", nil).Code)
	}
}

func TestUserLimiterEvictsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	l := newUserLimiter(60, 2)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	first := l.get("user-1")
	require.True(t, first.Allow())
	l.get("user-2")
	assert.Equal(t, 2, l.size())

	// Still within the idle window, the same bucket is returned.
	now = now.Add(5 * time.Minute)
	assert.Same(t, first, l.get("user-1"))

	// Both earlier buckets have now sat idle for the whole window and are swept.
	now = now.Add(limiterIdleTTL)
	l.get("user-3")
	assert.Equal(t, 1, l.size())
	assert.NotSame(t, first, l.get("user-1"))
}
