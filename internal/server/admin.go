package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"

	"github.com/front-init/message-relay/internal/config"
	"github.com/front-init/message-relay/internal/metrics"
	"github.com/front-init/message-relay/internal/store"
)

// ServiceInfo identifies the running binary in admin responses
type ServiceInfo struct {
	Name    string
	Version string
}

// AdminAPI provides HTTP endpoints for monitoring the relay
type AdminAPI struct {
	info     ServiceInfo
	logger   *slog.Logger
	config   *config.Config
	listener *Listener
	store    *store.Store
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	startTime time.Time
}

// NewAdminAPI creates the monitoring API
func NewAdminAPI(info ServiceInfo, logger *slog.Logger, appConfig *config.Config, listener *Listener,
	st *store.Store, m *metrics.Metrics, gatherer prometheus.Gatherer) *AdminAPI {

	return &AdminAPI{
		info:      info,
		logger:    logger,
		config:    appConfig,
		listener:  listener,
		store:     st,
		metrics:   m,
		gatherer:  gatherer,
		startTime: time.Now(),
	}
}

// Handler returns the routed admin endpoints
func (a *AdminAPI) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", a.withMetrics("/health", a.handleHealth))
	mux.HandleFunc("/stats", a.withMetrics("/stats", a.handleStats))
	mux.HandleFunc("/config", a.withMetrics("/config", a.handleConfig))

	// no metrics for the metrics endpoint
	mux.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", a.withMetrics("/", a.handleRoot))

	return mux
}

// withMetrics wraps an HTTP handler with metrics collection
func (a *AdminAPI) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		a.metrics.RecordHTTPRequest(r.Method, "admin"+endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			a.metrics.RecordHTTPError(r.Method, "admin"+endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// handleHealth implements the /health endpoint.
// An unreadable store document makes the service unhealthy.
func (a *AdminAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	listenerStats := a.listener.GetStatistics()

	status := "healthy"
	storeStatus := map[string]interface{}{
		"status": "ok",
		"path":   a.store.Path(),
	}
	records, err := a.store.Count()
	if err != nil {
		status = "unhealthy"
		storeStatus["status"] = "error"
		storeStatus["error"] = err.Error()
	} else {
		storeStatus["records"] = records
	}

	health := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(a.startTime).String(),
		"service": map[string]interface{}{
			"name":    a.info.Name,
			"version": a.info.Version,
		},
		"components": map[string]interface{}{
			"listener": map[string]interface{}{
				"status":            "running",
				"packets_received":  listenerStats.PacketsReceived,
				"packets_persisted": listenerStats.PacketsPersisted,
				"decode_errors":     listenerStats.DecodeErrors,
				"queue_size":        listenerStats.QueueSize,
			},
			"store": storeStatus,
		},
		"host": hostStats(),
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	a.writeJSON(w, code, health)
}

// handleStats implements the /stats endpoint
func (a *AdminAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]interface{}{
		"uptime":    time.Since(a.startTime).String(),
		"timestamp": time.Now().UTC(),
		"listener":  a.listener.GetStatistics(),
	}

	if records, err := a.store.Count(); err == nil {
		a.metrics.SetStoreRecords(records)
		stats["store"] = map[string]interface{}{"records": records}
	} else {
		stats["store"] = map[string]interface{}{"error": err.Error()}
	}

	a.writeJSON(w, http.StatusOK, stats)
}

// handleConfig implements the /config endpoint
func (a *AdminAPI) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := map[string]interface{}{
		"server": map[string]interface{}{
			"udp_port":     a.config.Server.UDPPort,
			"bind_address": a.config.Server.BindAddress,
			"buffer_size":  a.config.Server.BufferSize,
			"queue_size":   a.config.Server.QueueSize,
		},
		"http": map[string]interface{}{
			"address":         a.config.HTTP.Address,
			"port":            a.config.HTTP.Port,
			"static_dir":      a.config.HTTP.StaticDir,
			"max_body_bytes":  a.config.HTTP.MaxBodyBytes,
			"allowed_origins": a.config.HTTP.AllowedOrigins,
		},
		"storage": map[string]interface{}{
			"path": a.config.Storage.Path,
		},
		"rate_limit": map[string]interface{}{
			"enabled":             a.config.RateLimit.Enabled,
			"requests_per_second": a.config.RateLimit.RequestsPerSecond,
			"burst":               a.config.RateLimit.Burst,
			"client_ttl":          a.config.RateLimit.ClientTTL,
		},
		"logging": map[string]interface{}{
			"level":  a.config.Logging.Level,
			"format": a.config.Logging.Format,
			"output": a.config.Logging.Output,
		},
	}

	a.writeJSON(w, http.StatusOK, cfg)
}

// handleRoot implements the / endpoint with API documentation
func (a *AdminAPI) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": a.info.Name,
		"version": a.info.Version,
		"endpoints": map[string]interface{}{
			"GET /":        "API documentation",
			"GET /health":  "Service health check",
			"GET /stats":   "Listener and store statistics",
			"GET /config":  "Effective configuration",
			"GET /metrics": "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	a.writeJSON(w, http.StatusOK, apiDoc)
}

func (a *AdminAPI) writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.Warn("Failed to write admin response", slog.String("error", err.Error()))
	}
}

// hostStats reports machine load; failures leave the fields out
func hostStats() map[string]interface{} {
	stats := map[string]interface{}{
		"goroutines": runtime.NumGoroutine(),
	}

	if percent, err := cpu.Percent(0, false); err == nil && len(percent) > 0 {
		stats["cpu_percent"] = percent[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats["memory_used_percent"] = vm.UsedPercent
		stats["memory_total_bytes"] = vm.Total
	}

	return stats
}
