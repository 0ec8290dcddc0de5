// Copyright 2024 Fireplexity Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/your-org/fireplexity/internal/config"
	"github.com/your-org/fireplexity/internal/firecrawl"
	"github.com/your-org/fireplexity/internal/health"
	"github.com/your-org/fireplexity/internal/search"
	"github.com/your-org/fireplexity/internal/status"
	"github.com/your-org/fireplexity/internal/telemetry"
)

const (
	healthCheckTimeout = 5 * time.Second
	readHeaderTimeout  = 10 * time.Second
)

type serveOptions struct {
	configPath string
	port       int
	envFile    string
	watch      bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the search API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Listen port (overrides configuration)")
	cmd.Flags().StringVar(&opts.envFile, "env-file", "", "Load variables from this file instead of .env.local and .env")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reload the log level when the configuration file changes")
	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	// env files first so viper and the provider lookup both see them
	if err := loadEnvFiles(opts.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}

	logger, level, err := initializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if opts.watch {
		err := config.WatchConfig(opts.configPath, logger, func(newCfg *config.Config) {
			newLevel := parseLevel(newCfg.Logging.Level)
			if level.Level() != newLevel {
				level.SetLevel(newLevel)
				logger.Info("Log level updated", zap.String("level", newLevel.String()))
			}
		})
		if err != nil {
			logger.Warn("Configuration hot reload disabled", zap.Error(err))
		}
	}

	if os.Getenv(gin.EnvGinMode) == "" {
		if level.Enabled(zapcore.DebugLevel) {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := newRouter(cfg, config.EnvLookup, logger, registry)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting fireplexity server",
			zap.Int("port", cfg.Server.Port),
			zap.String("firecrawl_url", cfg.Firecrawl.BaseURL),
			zap.Bool("firecrawl_key", config.HasFirecrawlKey(config.EnvLookup)),
			zap.Bool("azure_openai_valid", config.ValidateProvider(config.EnvLookup).IsValid),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

// newRouter wires every endpoint. Provider settings are read through lookup
// on each request.
func newRouter(cfg *config.Config, lookup config.Lookup, logger *zap.Logger, registry *prometheus.Registry) *gin.Engine {
	metrics := telemetry.NewMetrics(registry)

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(logger))

	healthManager := health.NewManager(serviceName, serviceVersion, logger)
	healthManager.SetTimeout(healthCheckTimeout)
	healthManager.AddChecker("azure_openai", health.ProviderChecker(lookup))
	healthManager.AddChecker("firecrawl", health.FirecrawlKeyChecker(lookup))
	router.GET("/health", healthManager.Handler())

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	status.NewHandler(lookup, logger, metrics).Register(router)

	searcher := firecrawl.NewClient(firecrawl.Options{
		BaseURL:      cfg.Firecrawl.BaseURL,
		Timeout:      cfg.Firecrawl.Timeout,
		DefaultLimit: cfg.Firecrawl.DefaultLimit,
		MaxLimit:     cfg.Firecrawl.MaxLimit,
	}, logger)
	service := search.NewService(lookup, searcher, search.NewOpenAIClient, search.Options{
		MaxTokens:     cfg.Chat.MaxTokens,
		Temperature:   cfg.Chat.Temperature,
		ChatTimeout:   cfg.Chat.Timeout,
		SearchTimeout: cfg.Firecrawl.Timeout,
		ScrapeContent: true,
	}, logger, metrics)
	search.NewHandler(service, logger, metrics).Register(router)

	return router
}
