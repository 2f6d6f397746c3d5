package web

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/maypok86/otter/v2"
	"golang.org/x/time/rate"

	"github.com/front-init/message-relay/internal/config"
	"github.com/front-init/message-relay/internal/metrics"
)

// RateLimiter throttles submissions per client address.
// Idle clients expire from the cache after the configured TTL.
type RateLimiter struct {
	limiters *otter.Cache[string, *rate.Limiter]
	mu       sync.Mutex

	limit      rate.Limit
	burst      int
	retryAfter int

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRateLimiter creates a limiter from configuration
func NewRateLimiter(cfg config.RateLimitConfig, logger *slog.Logger, m *metrics.Metrics) (*RateLimiter, error) {
	cache, err := otter.New(&otter.Options[string, *rate.Limiter]{
		MaximumSize:      cfg.MaxClients,
		ExpiryCalculator: otter.ExpiryAccessing[string, *rate.Limiter](cfg.GetClientTTLDuration()),
	})
	if err != nil {
		return nil, fmt.Errorf("create limiter cache: %w", err)
	}

	return &RateLimiter{
		limiters:   cache,
		limit:      rate.Limit(cfg.RequestsPerSecond),
		burst:      cfg.Burst,
		retryAfter: int(math.Ceil(1 / cfg.RequestsPerSecond)),
		logger:     logger,
		metrics:    m,
	}, nil
}

// Allow reports whether client may submit now, consuming a token if so
func (l *RateLimiter) Allow(client string) bool {
	return l.limiterFor(client).Allow()
}

func (l *RateLimiter) limiterFor(client string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.limiters.GetIfPresent(client); ok {
		return limiter
	}

	limiter := rate.NewLimiter(l.limit, l.burst)
	l.limiters.Set(client, limiter)
	return limiter
}

// Middleware rejects requests over the limit with 429
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientKey(r)
		if !l.Allow(client) {
			l.metrics.RecordRateLimited()
			l.logger.Warn("Submission rate limited", slog.String("client", client))

			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter))
			writeText(w, http.StatusTooManyRequests, "Too many messages, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey returns the client IP; RealIP middleware may already have
// replaced RemoteAddr with a bare address
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
