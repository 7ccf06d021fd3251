// Command metricsqa runs the telemetry question-answering service: a local
// metrics collector, a SQLite metrics store and an HTTP API that answers
// natural-language questions through an LLM tool-calling loop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"metricsqa/pkg/collector"
	"metricsqa/pkg/config"
	"metricsqa/pkg/logging"
	"metricsqa/pkg/model"
	"metricsqa/pkg/observability"
	"metricsqa/pkg/orchestrator"
	"metricsqa/pkg/server"
	"metricsqa/pkg/storage"
	"metricsqa/pkg/tools"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("metricsqa", version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "metricsqa:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()
	if cfg.Logging.Level != "" {
		logger.SetMinLevel(logging.Level(cfg.Logging.Level))
	}

	tracerProvider, err := observability.NewTracerProvider("metricsqa", version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracerProvider.Shutdown(shutdownCtx)
	}()

	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open metrics store: %w", err)
	}
	defer store.Close()

	catalog, err := tools.Load()
	if err != nil {
		return fmt.Errorf("load tool catalog: %w", err)
	}

	client := model.NewClient(model.ClientConfig{
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		Timeout:   cfg.LLM.Timeout(),
		Transport: model.NewLoggingTransport(nil, cfg.Logging.Dir, cfg.LLM.NetworkLogs),
	})

	executor := tools.NewExecutor(catalog, store, logger)
	engine := orchestrator.New(client, executor, catalog, logger, cfg.LLM.MaxToolIterations)

	srv := server.New(engine, logger, server.Options{
		RateLimitPerSecond: cfg.Server.RateLimitPerSecond,
		RateLimitBurst:     cfg.Server.RateLimitBurst,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.Bind,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	if cfg.Collector.Enabled {
		coll := collector.New(store, logger, cfg.Collector.Interval())
		group.Go(func() error {
			if err := coll.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("collector: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		logger.Info(logging.CategoryHTTP, "server_started", "http server listening",
			map[string]any{"bind": cfg.Server.Bind})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
