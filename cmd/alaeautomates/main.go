// Package main wires together the statements backend service.
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

	gcppubsub "cloud.google.com/go/pubsub"
	gcpstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/LaazAlae/alaeautomates-backend/internal/api"
	"github.com/LaazAlae/alaeautomates-backend/internal/cleanup"
	"github.com/LaazAlae/alaeautomates-backend/internal/clock/system"
	"github.com/LaazAlae/alaeautomates-backend/internal/config"
	"github.com/LaazAlae/alaeautomates-backend/internal/hash/sha256"
	"github.com/LaazAlae/alaeautomates-backend/internal/id/uuid"
	"github.com/LaazAlae/alaeautomates-backend/internal/logging"
	"github.com/LaazAlae/alaeautomates-backend/internal/metrics"
	"github.com/LaazAlae/alaeautomates-backend/internal/processor"
	"github.com/LaazAlae/alaeautomates-backend/internal/progress"
	"github.com/LaazAlae/alaeautomates-backend/internal/progress/sinks"
	memorypublisher "github.com/LaazAlae/alaeautomates-backend/internal/publisher/memory"
	nooppublisher "github.com/LaazAlae/alaeautomates-backend/internal/publisher/noop"
	pubsubpublisher "github.com/LaazAlae/alaeautomates-backend/internal/publisher/pubsub"
	queueMemory "github.com/LaazAlae/alaeautomates-backend/internal/queue/memory"
	"github.com/LaazAlae/alaeautomates-backend/internal/review"
	"github.com/LaazAlae/alaeautomates-backend/internal/statements"
	gcsStorage "github.com/LaazAlae/alaeautomates-backend/internal/storage/gcs"
	localStorage "github.com/LaazAlae/alaeautomates-backend/internal/storage/local"
	storeMemory "github.com/LaazAlae/alaeautomates-backend/internal/store/memory"
	storePostgres "github.com/LaazAlae/alaeautomates-backend/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	clock := system.New()

	store, pruner, err := buildStore(ctx, cfg, clock)
	if err != nil {
		logger.Fatal("session store init failed", zap.Error(err))
	}
	blobStore, err := buildBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}
	publisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}

	queue := queueMemory.NewQueue(cfg.Processing.QueueDepth)
	hasher := sha256.New()
	idGen := uuid.New()
	reviews := review.NewRegistry()

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("prometheus sink init failed", zap.Error(err))
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)

	workerCfg := processor.Config{
		BlobPrefix: cfg.Storage.Prefix,
		Topic:      cfg.PubSub.TopicName,
	}
	for i := 0; i < cfg.Processing.Workers; i++ {
		w := processor.New(
			queue,
			store,
			blobStore,
			publisher,
			hasher,
			clock,
			reviews,
			hub,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		)
		go w.Run(ctx)
	}

	if cfg.Cleanup.Enabled {
		sweeper := cleanup.New(pruner, reviews, clock, cleanup.Config{
			MaxAge:     time.Duration(cfg.Cleanup.MaxAgeHours) * time.Hour,
			Interval:   time.Duration(cfg.Cleanup.IntervalHours) * time.Hour,
			ArchiveDir: localArchiveDir(cfg),
		}, logger.Named("cleanup"))
		go sweeper.Run(ctx)
	}

	apiServer := api.NewServer(store, queue, reviews, blobStore, idGen, hasher, clock, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Error("progress hub close error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildStore(
	ctx context.Context,
	cfg config.Config,
	clock statements.Clock,
) (statements.SessionStore, cleanup.SessionPruner, error) {
	switch cfg.DB.Provider {
	case "postgres":
		store, err := storePostgres.NewSessionStore(ctx, storePostgres.Config{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.SessionTable,
			MaxConns: cfg.DB.MaxConns,
		}, clock)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		store := storeMemory.NewSessionStore(clock)
		return store, store, nil
	}
}

func buildBlobStore(ctx context.Context, cfg config.Config) (statements.BlobStore, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		client, err := gcpstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return gcsStorage.New(client, gcsStorage.Config{Bucket: cfg.Storage.GCSBucket})
	default:
		return localStorage.New(localStorage.Config{BaseDir: cfg.Storage.BaseDir})
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (statements.Publisher, error) {
	switch cfg.PubSub.Provider {
	case "pubsub":
		client, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		return pubsubpublisher.New(client.Topic(cfg.PubSub.TopicName)), nil
	case "memory":
		return memorypublisher.New(), nil
	default:
		return nooppublisher.New(), nil
	}
}

// localArchiveDir returns the directory the sweeper should prune, or empty
// when archives live in GCS and no local pruning is needed.
func localArchiveDir(cfg config.Config) string {
	if cfg.Storage.Provider == "gcs" {
		return ""
	}
	return cfg.Storage.BaseDir
}
