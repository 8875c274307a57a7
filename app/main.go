package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/lysyi3m/wp-extractor/app/api"
	"github.com/lysyi3m/wp-extractor/app/cfg"
	"github.com/lysyi3m/wp-extractor/app/database"
	"github.com/lysyi3m/wp-extractor/app/extract"
	"github.com/lysyi3m/wp-extractor/app/jobs"
	"github.com/lysyi3m/wp-extractor/app/metrics"
	"github.com/lysyi3m/wp-extractor/app/sites"
	"github.com/lysyi3m/wp-extractor/app/tasks"
	"github.com/lysyi3m/wp-extractor/app/wordpress"
)

const shutdownTimeout = 30 * time.Second

func main() {
	config, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if config == nil {
		// Help was shown
		return
	}

	if config.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	slog.Info("Starting WP Extractor", "version", config.Version, "role", config.Role, "store", config.Store)

	if err := run(config); err != nil {
		slog.Error("WP Extractor stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("WP Extractor shutdown complete")
}

// backend bundles the store with the queue that shares its infrastructure.
type backend struct {
	store  jobs.Store
	queue  tasks.Queue
	purger tasks.Purger
	target string
	close  func()
}

func openBackend(ctx context.Context, config *cfg.Cfg) (*backend, error) {
	switch config.Store {
	case cfg.StoreSQLite:
		db, err := database.NewConnection(config.DBPath)
		if err != nil {
			return nil, err
		}
		store := jobs.NewSQLiteStore(db)
		return &backend{
			store:  store,
			queue:  tasks.NewLocalQueue(tasks.DefaultLocalCapacity),
			purger: store,
			target: config.DBPath,
			close:  func() { store.Close() },
		}, nil

	default:
		client, err := database.NewRedis(config.RedisURL)
		if err != nil {
			return nil, err
		}

		queue, err := tasks.NewRedisQueue(client, tasks.RedisQueueConfig{
			Prefix:            config.RedisPrefix,
			Consumer:          consumerName(),
			VisibilityTimeout: config.VisibilityTimeout,
		})
		if err != nil {
			client.Close()
			return nil, err
		}
		if err := queue.Initialize(ctx); err != nil {
			client.Close()
			return nil, err
		}

		return &backend{
			store:  jobs.NewRedisStore(client, config.RedisPrefix),
			queue:  queue,
			target: redactURL(config.RedisURL),
			close:  func() { closeRedis(client) },
		}, nil
	}
}

func run(config *cfg.Cfg) error {
	registry := sites.NewRegistry(config.SitesDir)
	if err := registry.Run(); err != nil {
		return fmt.Errorf("failed to load site presets: %w", err)
	}
	slog.Info("Site presets loaded", "count", registry.Count(), "dir", config.SitesDir)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	b, err := openBackend(startCtx, config)
	cancelStart()
	if err != nil {
		return err
	}
	defer b.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	newExtractor := func() *extract.Extractor {
		return extract.NewExtractor(wordpress.NewClient(config.FetchTimeout, config.UserAgent))
	}

	var pool *tasks.Pool
	if config.RunsWorkers() {
		pool = tasks.NewPool(b.queue, func() tasks.JobRunner {
			return jobs.NewRunner(b.store, newExtractor(), config.ResultTTL, config.PendingTTL)
		}, b.purger, m, tasks.PoolConfig{
			Workers:          config.WorkerCount,
			MaxJobsPerWorker: config.MaxJobsPerWorker,
			SoftTimeLimit:    config.SoftTimeLimit,
			HardTimeLimit:    config.HardTimeLimit,
			MaxDeliveries:    config.MaxDeliveries,
		})
		pool.Start()
	}

	var httpServer *http.Server
	serverErrChan := make(chan error, 1)
	if config.ServesHTTP() {
		handler := api.NewHandler(b.store, b.queue, newExtractor(), registry, m, api.HandlerConfig{
			BaseURL:    config.BaseUrl,
			StoreInfo:  b.target,
			PendingTTL: config.PendingTTL,
			PerPage:    config.PerPage,
		})

		httpServer = &http.Server{
			Addr:         ":" + config.Port,
			Handler:      api.NewServer(handler, config.APIAccessKey, reg),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: config.HTTPWriteTimeout,
			IdleTimeout:  120 * time.Second,
		}

		go func() {
			slog.Info("Starting HTTP server", "port", config.Port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down gracefully...")

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped")
		}
		cancel()
	}

	if pool != nil {
		// running jobs get until their hard limit to finish
		stopCtx, cancel := context.WithTimeout(context.Background(), config.HardTimeLimit)
		if err := pool.Stop(stopCtx); err != nil {
			slog.Warn("Worker pool stopped with interrupted jobs", "error", err)
		} else {
			slog.Info("Worker pool stopped")
		}
		cancel()
	}

	return runErr
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid URL"
	}
	return u.Redacted()
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		slog.Warn("Failed to close Redis client", "error", err)
	}
}
