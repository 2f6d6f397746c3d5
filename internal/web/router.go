package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/front-init/message-relay/internal/metrics"
)

// Options configures the public site
type Options struct {
	StaticDir        string
	MaxBodyBytes     int64
	MaxDatagramBytes int
	AllowedOrigins   []string
}

// NewRouter wires the static pages and the submission endpoint.
// limiter may be nil to disable throttling.
func NewRouter(opts Options, relay Relay, limiter *RateLimiter, logger *slog.Logger, m *metrics.Metrics) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.GetHead)
	r.Use(requestMetrics(m))

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	static := NewStatic(opts.StaticDir, logger)
	for _, asset := range Assets {
		r.Get(asset.Path, static.Handler(asset))
	}

	submit := NewSubmitHandler(relay, logger, m, opts.MaxBodyBytes, opts.MaxDatagramBytes)
	if limiter != nil {
		r.With(limiter.Middleware).Post("/message", submit.ServeHTTP)
	} else {
		r.Post("/message", submit.ServeHTTP)
	}

	r.NotFound(static.NotFound)
	r.MethodNotAllowed(static.MethodNotAllowed)

	return r
}

// requestLogger logs one line per request
func requestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("Request completed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Duration("latency", time.Since(start)),
					slog.String("request_id", chimw.GetReqID(r.Context())),
					slog.String("remote_addr", r.RemoteAddr),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// requestMetrics records request counts and durations by route pattern
func requestMetrics(m *metrics.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			// unmatched paths share one label to keep cardinality bounded
			endpoint := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				endpoint = rctx.RoutePattern()
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			m.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(status), time.Since(start).Seconds())
			if status >= 400 {
				errorType := "client_error"
				if status >= 500 {
					errorType = "server_error"
				}
				m.RecordHTTPError(r.Method, endpoint, errorType)
			}
		})
	}
}
