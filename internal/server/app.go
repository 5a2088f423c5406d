// Package server wires the serphub service together and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/serpflow/serpflow/internal/api"
	archivegcs "github.com/serpflow/serpflow/internal/archive/gcs"
	archivelocal "github.com/serpflow/serpflow/internal/archive/local"
	archivemem "github.com/serpflow/serpflow/internal/archive/memory"
	"github.com/serpflow/serpflow/internal/clock/system"
	"github.com/serpflow/serpflow/internal/config"
	"github.com/serpflow/serpflow/internal/dispatcher"
	"github.com/serpflow/serpflow/internal/hash/sha256"
	idgen "github.com/serpflow/serpflow/internal/id/uuid"
	"github.com/serpflow/serpflow/internal/logging"
	"github.com/serpflow/serpflow/internal/metrics"
	notifymem "github.com/serpflow/serpflow/internal/notify/memory"
	notifypubsub "github.com/serpflow/serpflow/internal/notify/pubsub"
	"github.com/serpflow/serpflow/internal/sampler"
	"github.com/serpflow/serpflow/internal/serp"
	memstore "github.com/serpflow/serpflow/internal/storage/memory"
	pgstore "github.com/serpflow/serpflow/internal/storage/postgres"
)

// App contains the application's dependencies.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	apiServer    *api.Server
	sampler      *sampler.Sampler
	pubsubClient *pubsub.Client
	pubsubTopic  *pubsub.Topic
	gcsClient    *storage.Client
	pgStore      *pgstore.Store
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.Bool("worker_auth", cfg.Auth.Enabled),
		zap.Bool("archive", cfg.Archive.Enabled),
	)

	projects, queries, results, err := setupStore(ctx, app)
	if err != nil {
		return nil, err
	}

	blobs, err := setupArchive(ctx, app)
	if err != nil {
		return nil, err
	}

	notifier, err := setupNotifier(ctx, app)
	if err != nil {
		return nil, err
	}

	clock := system.New()
	dispatch := dispatcher.New(
		queries,
		results,
		blobs,
		notifier,
		sha256.New(),
		clock,
		dispatcher.Config{
			MaxPages:       cfg.Dispatch.MaxPages,
			ArchiveEnabled: cfg.Archive.Enabled,
			BlobPrefix:     cfg.Archive.Prefix,
			ContentType:    cfg.Archive.ContentType,
			Topic:          cfg.PubSub.TopicName,
		},
		logger.Named("dispatcher"),
	)

	app.apiServer = api.NewServer(
		projects,
		queries,
		results,
		dispatch,
		idgen.New(),
		clock,
		cfg,
		logger.Named("api"),
	)

	if cfg.Sampler.Enabled {
		app.sampler = sampler.New(queries, sampler.Config{Spec: cfg.Sampler.Spec}, logger.Named("sampler"))
	}

	return app, nil
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.sampler != nil {
		if err := a.sampler.Start(ctx); err != nil {
			return fmt.Errorf("sampler start failed: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close gracefully shuts down the application.
func (a *App) Close(_ context.Context) error {
	if a.sampler != nil {
		a.sampler.Stop()
	}
	a.closeInfrastructure()
	a.logger.Info("shutdown complete")
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
	return nil
}

func (a *App) closeInfrastructure() {
	if a.pubsubTopic != nil {
		a.pubsubTopic.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
}

// setupStore selects the persistence backend. No configured database
// host means local development against the in-memory store.
func setupStore(ctx context.Context, app *App) (serp.ProjectStore, serp.QueryStore, serp.ResultStore, error) {
	if app.cfg.Database.Host == "" && app.cfg.Database.DSN == "" {
		app.logger.Info("using in-memory store")
		store := memstore.New()
		return store, store, store, nil
	}

	dsn := app.cfg.Database.ConnString()
	pg, err := pgstore.New(ctx, dsn, app.cfg.Database.MaxConns)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres store init failed: %w", err)
	}
	app.pgStore = pg

	// The service can come up before the database; claims fail until it
	// is reachable, so only warn here and retry migrations next boot.
	if err := pg.Ping(ctx); err != nil {
		app.logger.Warn("postgres not reachable at startup, skipping migrations", zap.Error(err))
	} else if err := pgstore.Migrate(ctx, dsn); err != nil {
		return nil, nil, nil, fmt.Errorf("migrations failed: %w", err)
	}

	app.logger.Info("postgres store initialized",
		zap.String("host", app.cfg.Database.Host),
		zap.String("database", app.cfg.Database.Name),
	)
	return pg, pg, pg, nil
}

func setupArchive(ctx context.Context, app *App) (serp.BlobStore, error) {
	if !app.cfg.Archive.Enabled {
		app.logger.Info("snapshot archiving disabled")
		return nil, nil
	}
	switch app.cfg.Archive.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.gcsClient = client
		blobs, err := archivegcs.New(client, archivegcs.Config{Bucket: app.cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Info("using GCS archive backend", zap.String("bucket", app.cfg.Archive.GCSBucket))
		return blobs, nil
	case "local":
		blobs, err := archivelocal.New(archivelocal.Config{BaseDir: app.cfg.Archive.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Info("using local archive backend", zap.String("dir", app.cfg.Archive.LocalDir))
		return blobs, nil
	default:
		app.logger.Info("using in-memory archive backend")
		return archivemem.NewBlobStore(), nil
	}
}

func setupNotifier(ctx context.Context, app *App) (serp.Notifier, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("no Pub/Sub topic configured, using in-memory notifier")
		return notifymem.New(), nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	app.pubsubTopic = client.Topic(app.cfg.PubSub.TopicName)
	app.logger.Info("Pub/Sub notifier initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return notifypubsub.New(app.pubsubTopic), nil
}
