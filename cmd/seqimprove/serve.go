package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seqimprove/seqimprove-go/pkg/annotation"
	"github.com/seqimprove/seqimprove-go/pkg/api"
	"github.com/seqimprove/seqimprove-go/pkg/config"
	"github.com/seqimprove/seqimprove-go/pkg/features"
	"github.com/seqimprove/seqimprove-go/pkg/library"
	"github.com/seqimprove/seqimprove-go/pkg/metrics"
	"github.com/seqimprove/seqimprove-go/pkg/ner"
	"github.com/seqimprove/seqimprove-go/pkg/runstore"
	"github.com/seqimprove/seqimprove-go/pkg/sbol"
	"github.com/seqimprove/seqimprove-go/pkg/scheduler"
	"github.com/seqimprove/seqimprove-go/pkg/similar"
	"github.com/seqimprove/seqimprove-go/pkg/tools"
	"github.com/seqimprove/seqimprove-go/pkg/tracing"
)

const (
	shutdownTimeout = 30 * time.Second
	watchDebounce   = 500 * time.Millisecond
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Preload feature libraries and serve the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("starting seqimprove", "version", version, "environment", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SampleRate:   1.0,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	store, err := newLibraryStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	m.SetLibrariesLoaded(store.Len())
	logger.Info("feature libraries loaded", "count", store.Len(), "dir", cfg.LibraryDir)

	if cfg.LibraryWatch {
		watcher, err := library.NewWatcher(store, watchDebounce, logger)
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	dbPath := filepath.Join(cfg.StorageDir, "seqimprove.db")
	runs, err := runstore.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize run store: %w", err)
	}
	defer runs.Close()
	logger.Info("initialized run store", "path", dbPath)

	pruner, err := scheduler.NewService(runs, cfg.RunPruneSchedule,
		time.Duration(cfg.RunRetentionHours)*time.Hour, m, logger)
	if err != nil {
		return err
	}
	pruner.Start()
	defer pruner.Stop()

	runner := tools.NewRunner(cfg.ToolTimeout, "", logger, m)
	cleaner := tools.NewCommandCleaner(runner, cfg.CleanCommand, cfg.CleanNamespace)
	converter := tools.NewCommandConverter(runner, cfg.ConvertCommand)

	orchestrator := annotation.New(annotation.Deps{
		Resolver:  store,
		Annotator: features.NewMatcher(),
		Cleaner:   cleaner,
		Codec:     sbol.XMLCodec{},
		Recorder:  runs,
		Metrics:   m,
		Tracer:    tp.Tracer(),
		Logger:    logger,
	}, annotation.Options{
		PartialResults: cfg.PartialResults,
		Features: features.Options{
			MinFeatureLength: cfg.MinFeatureLength,
			MinTargetLength:  cfg.MinTargetLength,
			InPlace:          true,
		},
		CleanNamespace: cfg.CleanNamespace,
	})

	nerClient := ner.NewClient(ner.ClientConfig{
		URL:           cfg.NERURL,
		Timeout:       cfg.HTTPTimeout,
		RatePerSecond: cfg.NERRatePerSecond,
		Metrics:       m,
		Tracer:        tp.Tracer(),
		Logger:        logger,
	})

	similarParts := similar.NewResolver(similar.Config{
		Timeout:  cfg.HTTPTimeout,
		CacheTTL: cfg.SimilarCacheTTL,
		Metrics:  m,
		Tracer:   tp.Tracer(),
		Logger:   logger,
	})

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        m,
		Logger:         logger,
	})
	server.Mount(api.Handlers{
		Annotation: api.NewAnnotationHandler(orchestrator, cleaner, converter),
		Library:    api.NewLibraryHandler(store, m),
		Discovery:  api.NewDiscoveryHandler(nerClient, similarParts),
		Plugin:     api.NewPluginHandler(cfg.FrontendLocation),
		Runs:       api.NewRunHandler(runs),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server exited")
	return nil
}

// newLibraryStore builds the library store with its fetchers and
// preloads the library directory
func newLibraryStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*library.Store, error) {
	catalog, err := library.LoadCatalog(cfg.LibraryCatalog)
	if err != nil {
		return nil, err
	}

	fetcher := &library.SchemeFetcher{HTTP: library.NewHTTPFetcher(cfg.HTTPTimeout)}
	if cfg.S3Endpoint != "" {
		objects, err := library.NewObjectFetcher(library.ObjectStoreConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, err
		}
		fetcher.Objects = objects
		logger.Info("object store sources enabled", "endpoint", cfg.S3Endpoint)
	}

	store := library.NewStore(library.Options{
		Dir:         cfg.LibraryDir,
		Catalog:     catalog,
		Fetcher:     fetcher,
		Codec:       sbol.XMLCodec{},
		Concurrency: cfg.PreloadConcurrency,
		SkipInvalid: cfg.LibrarySkipInvalid,
		Logger:      logger,
	})
	if err := store.Preload(ctx); err != nil {
		return nil, fmt.Errorf("failed to preload feature libraries: %w", err)
	}
	return store, nil
}
