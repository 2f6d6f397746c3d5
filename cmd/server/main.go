package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/front-init/message-relay/internal/config"
	"github.com/front-init/message-relay/internal/logging"
	"github.com/front-init/message-relay/internal/metrics"
	"github.com/front-init/message-relay/internal/server"
	"github.com/front-init/message-relay/internal/store"
	"github.com/front-init/message-relay/internal/web"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "message-relay"
	serviceVersion    = "1.0.0"

	shutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.New(cfg.Logging)
	defer logCloser.Close()

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Error("Service failed", slog.String("error", err.Error()))
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, logger *slog.Logger) error {
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.HTTP.ListenAddress()),
		slog.String("udp_address", cfg.Server.ListenAddress()),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("static_dir", cfg.HTTP.StaticDir),
		slog.Bool("rate_limit", cfg.RateLimit.Enabled),
		slog.Bool("admin", cfg.Admin.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// The store must be usable before anything can write to it
	st := store.New(cfg.Storage.Path)
	if err := st.EnsureInitialized(); err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	count, err := st.Count()
	if err != nil {
		return fmt.Errorf("read store: %w", err)
	}
	appMetrics.SetStoreRecords(count)
	logger.Info("Store ready",
		slog.String("path", st.Path()),
		slog.Int("records", count),
	)

	listener := server.NewListener(&cfg.Server, logger, st, appMetrics)
	if err := listener.Start(); err != nil {
		return fmt.Errorf("start listener: %w", err)
	}

	var limiter *web.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter, err = web.NewRateLimiter(cfg.RateLimit, logger, appMetrics)
		if err != nil {
			_ = listener.Stop()
			return fmt.Errorf("create rate limiter: %w", err)
		}
		logger.Info("Submission rate limiting enabled",
			slog.Float64("requests_per_second", cfg.RateLimit.RequestsPerSecond),
			slog.Int("burst", cfg.RateLimit.Burst),
		)
	}

	router := web.NewRouter(web.Options{
		StaticDir:        cfg.HTTP.StaticDir,
		MaxBodyBytes:     cfg.HTTP.MaxBodyBytes,
		MaxDatagramBytes: cfg.Server.BufferSize,
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
	}, server.NewDatagramSender(cfg.Server.ListenAddress()), limiter, logger, appMetrics)

	webServer := server.NewHTTPServer("web", cfg.HTTP.ListenAddress(), router, logger)
	if err := webServer.Start(); err != nil {
		_ = listener.Stop()
		return err
	}
	servers := []*server.HTTPServer{webServer}

	if cfg.Admin.Enabled {
		info := server.ServiceInfo{Name: serviceName, Version: serviceVersion}
		admin := server.NewAdminAPI(info, logger, cfg, listener, st, appMetrics, prometheus.DefaultGatherer)
		adminServer := server.NewHTTPServer("admin", cfg.Admin.ListenAddress(), admin.Handler(), logger)
		if err := adminServer.Start(); err != nil {
			shutdown(logger, servers, listener)
			return err
		}
		servers = append(servers, adminServer)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", cfg.HTTP.ListenAddress()),
		slog.String("udp_address", listener.Addr().String()),
	)

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case serveErr = <-webServer.Errors():
	case serveErr = <-adminErrors(servers):
	}

	shutdown(logger, servers, listener)
	return serveErr
}

// adminErrors returns the admin server's error channel, or nil (which
// blocks forever) when the admin API is disabled
func adminErrors(servers []*server.HTTPServer) <-chan error {
	if len(servers) < 2 {
		return nil
	}
	return servers[1].Errors()
}

// shutdown stops accepting requests first, then drains the listener so
// every relayed datagram is persisted
func shutdown(logger *slog.Logger, servers []*server.HTTPServer, listener *server.Listener) {
	logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Stop(ctx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := listener.Stop(); err != nil {
		logger.Error("Error stopping listener", slog.String("error", err.Error()))
	}

	stats := listener.GetStatistics()
	logger.Info("Final listener statistics",
		slog.Uint64("packets_received", stats.PacketsReceived),
		slog.Uint64("packets_persisted", stats.PacketsPersisted),
		slog.Uint64("packets_dropped", stats.PacketsDropped),
		slog.Uint64("decode_errors", stats.DecodeErrors),
		slog.Uint64("store_errors", stats.StoreErrors),
	)

	logger.Info("Service stopped")
}
