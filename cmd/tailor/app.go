package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/config"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/logging"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/providers"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/tailor"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/tracing"
)

const credibilityEnv = "TAILOR_CREDIBILITY_CONFIG"

// app is the process-wide wiring shared by every command
type app struct {
	configs *config.Manager
	log     *logging.Logger
	set     *providers.Set
	service *tailor.Service
}

// loadDotenv reads .env files when present; a missing file is not an error
func loadDotenv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", f, err)
		}
	}
}

func bootstrap(configPath string) (*app, error) {
	path := config.ResolvePath(configPath)
	initial, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(initial.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	zap.ReplaceGlobals(log.Logger)
	logger := log.Logger

	configs, err := config.NewManager(path, logger)
	if err != nil {
		_ = log.Close()
		return nil, err
	}
	cfg := configs.Current()
	logger.Info("Configuration loaded", zap.String("path", path))

	if cfg.Pipeline.CredibilityPath != "" && os.Getenv(credibilityEnv) == "" {
		// read lazily on first scoring, so setting it before the service runs is enough
		_ = os.Setenv(credibilityEnv, cfg.Pipeline.CredibilityPath)
	}

	if err := tracing.Initialize(cfg.Tracing, logger); err != nil {
		logger.Warn("Failed to initialize tracing", zap.Error(err))
	}

	set, err := providers.Build(cfg, logger)
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("build providers: %w", err)
	}

	deps := tailor.Deps{
		Index:      set.Index,
		Embedder:   set.Embedder,
		Reranker:   set.Reranker,
		Summarizer: set.Summarizer,
		Search:     set.Search,
		Logger:     logger,
	}
	if set.Sessions != nil {
		deps.Sessions = set.Sessions
	}
	if set.Archive != nil {
		deps.Archive = set.Archive
	}
	service, err := tailor.NewService(deps, tailor.OptionsFromConfig(cfg.Pipeline))
	if err != nil {
		_ = set.Close()
		_ = log.Close()
		return nil, err
	}

	return &app{configs: configs, log: log, set: set, service: service}, nil
}

// watchConfig hot-reloads the pipeline options when the config file changes
func (a *app) watchConfig() {
	a.configs.OnChange(func(cfg *config.Config) {
		a.service.UpdateOptions(tailor.OptionsFromConfig(cfg.Pipeline))
	})
	a.configs.Watch()
}

func (a *app) Close() error {
	var result *multierror.Error
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("tracing: %w", err))
	}
	if err := a.set.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	_ = a.log.Sync()
	if err := a.log.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("log file: %w", err))
	}
	return result.ErrorOrNil()
}
