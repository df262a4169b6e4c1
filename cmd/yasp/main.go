package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"yasp/internal/catalog"
	"yasp/internal/config"
	"yasp/internal/logging"
	"yasp/internal/metrics"
	"yasp/internal/ratelimit"
	"yasp/internal/spec"
	"yasp/internal/store"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Config file path")
	bind := flag.String("bind", "", "Listen address, overrides server.listen (e.g. localhost:8787 or 0.0.0.0:8787)")
	envFile := flag.String("env-file", "", "Optional env file to load before reading the config")
	logFormat := flag.String("log-format", "", "Log output format: text, json (overrides logging.format)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides logging.level)")
	initConfig := flag.Bool("init-config", false, "Write a default config file to --config and exit")
	versionFlag := flag.Bool("version", false, "Show version information")
	versionShort := flag.Bool("v", false, "Show version information (shorthand)")
	flag.Parse()

	if *versionFlag || *versionShort {
		showVersion()
		os.Exit(0)
	}

	// Bootstrap logger until the config says otherwise.
	logging.Setup(*logFormat, *logLevel)

	if *initConfig {
		if err := initConfigFile(*configPath, os.Stdin, os.Stderr, stdinIsTerminal()); err != nil {
			slog.Error("write default config failed", "error", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", *configPath)
		os.Exit(0)
	}

	if *envFile != "" {
		// Existing environment variables win over the file.
		if err := godotenv.Load(*envFile); err != nil {
			slog.Error("env file error", "error", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	if *bind != "" {
		cfg.Server.Listen = *bind
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger := logging.Setup(cfg.Logging.Format, cfg.Logging.Level)

	if err := run(cfg, logger); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	dbPath, err := config.ExpandPath(cfg.Storage.Database)
	if err != nil {
		return fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}

	srv := newServer(cfg, st, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.sweepLimiter(ctx, 10*time.Minute)

	httpServer := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}

	ln, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		st.Close()
		return fmt.Errorf("listen: %w", err)
	}
	logger.Info("yasp listening", "addr", ln.Addr().String(), "version", Version, "database", dbPath)

	done := make(chan struct{})
	go func() {
		defer close(done)
		shutdownOnSignal([]*http.Server{httpServer}, func() {
			cancel()
			if err := st.Close(); err != nil {
				slog.Error("database close failed", "error", err)
			}
			slog.Debug("database closed")
		})
	}()

	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

func newServer(cfg *config.Config, st *store.Store, logger *slog.Logger) *server {
	collector := metrics.NewCollector()
	fetcher := spec.NewFetcher(spec.FetcherOptions{
		Timeout:      cfg.Fetch.Timeout,
		MaxBytes:     cfg.Fetch.MaxBytes,
		MaxRedirects: cfg.Fetch.MaxRedirects,
		Policy: spec.Policy{
			AllowedSchemes:      cfg.Fetch.AllowedSchemes,
			BlockedHostKeywords: cfg.Fetch.BlockedHostKeywords,
		},
	})
	return &server{
		cfg:     cfg,
		fetcher: fetcher,
		catalog: catalog.NewService(st, fetcher, collector, logger),
		store:   st,
		limiter: ratelimit.NewKeyed(cfg.RateLimit.FetchPerMinute, cfg.RateLimit.FetchPerHour),
		metrics: collector,
		logger:  logger,
	}
}
