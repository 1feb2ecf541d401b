// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/showcase-refresher/internal/clock/system"
	"github.com/JakeFAU/showcase-refresher/internal/config"
	"github.com/JakeFAU/showcase-refresher/internal/discovery"
	"github.com/JakeFAU/showcase-refresher/internal/github"
	"github.com/JakeFAU/showcase-refresher/internal/hash/sha256"
	"github.com/JakeFAU/showcase-refresher/internal/id/uuid"
	"github.com/JakeFAU/showcase-refresher/internal/ledger"
	"github.com/JakeFAU/showcase-refresher/internal/metrics"
	"github.com/JakeFAU/showcase-refresher/internal/publisher/pubsub"
	"github.com/JakeFAU/showcase-refresher/internal/refresher"
	"github.com/JakeFAU/showcase-refresher/internal/screenshot"
	"github.com/JakeFAU/showcase-refresher/internal/storage/gcs"
	"github.com/JakeFAU/showcase-refresher/internal/storage/local"
)

// Options tweak how services are built. Client options are passed through
// to the Google Cloud clients.
type Options struct {
	DryRun        bool
	GCSOptions    []option.ClientOption
	PubSubOptions []option.ClientOption
	// Capturer replaces the headless Chrome capturer when set.
	Capturer refresher.Capturer
}

// App holds all the shared, long-lived services for one refresh run.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	runID     string
	refresher *refresher.Refresher
	metrics   *metrics.Recorder
	mirror    *gcs.BlobStore
	publisher *pubsub.Publisher
}

// New wires the configured services. It fails fast when a configured cloud
// dependency is unreachable.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	base := logger
	logger = logger.With(zap.String("run_id", runID))
	logger.Info("Initializing application services...")

	client, err := github.New(github.Config{
		Endpoint:          cfg.GitHub.Endpoint,
		Token:             cfg.GitHub.Token,
		Timeout:           cfg.GitHub.Timeout,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
	}, logger.Named("github"))
	if err != nil {
		return nil, fmt.Errorf("init github client: %w", err)
	}

	capturer := opts.Capturer
	if capturer == nil {
		capturer, err = screenshot.New(screenshot.Config{
			ViewportWidth:     cfg.Browser.ViewportWidth,
			ViewportHeight:    cfg.Browser.ViewportHeight,
			NavigationTimeout: cfg.Browser.NavTimeout,
			ExecPath:          cfg.Browser.ExecPath,
			UserAgent:         cfg.Browser.UserAgent,
		}, logger.Named("screenshot"))
		if err != nil {
			return nil, fmt.Errorf("init capturer: %w", err)
		}
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		runID:   runID,
		metrics: metrics.New(),
	}
	deps := refresher.Deps{
		Fetcher:  client,
		Capturer: capturer,
		Ledger:   ledger.NewStore(cfg.State.Path, logger.Named("ledger")),
		Hasher:   sha256.New(),
		Metrics:  a.metrics,
		Clock:    system.New(),
	}

	if cfg.MirrorEnabled() && !opts.DryRun {
		if deps.Mirror, err = a.dialMirror(ctx, opts.GCSOptions); err != nil {
			return nil, fmt.Errorf("init mirror: %w", err)
		}
	}

	if cfg.NotifyEnabled() && !opts.DryRun {
		logger.Info("Publishing refresh events", zap.String("topic", cfg.Notify.Topic))
		a.publisher, err = pubsub.New(ctx, cfg.Notify.ProjectID, cfg.Notify.Topic, opts.PubSubOptions...)
		if err != nil {
			_ = a.closeClients()
			return nil, fmt.Errorf("init publisher: %w", err)
		}
		deps.Publisher = a.publisher
	}

	a.refresher, err = refresher.New(refresher.Config{
		Owner:  cfg.GitHub.Owner,
		RunID:  runID,
		DryRun: opts.DryRun,
	}, deps, base.Named("refresher"))
	if err != nil {
		_ = a.closeClients()
		return nil, fmt.Errorf("init refresher: %w", err)
	}

	logger.Info("Application services initialized successfully.")
	return a, nil
}

// dialMirror prefers GCS when a bucket is configured.
func (a *App) dialMirror(ctx context.Context, gcsOpts []option.ClientOption) (refresher.BlobStore, error) {
	m := a.cfg.Mirror
	if m.GCSBucket != "" {
		a.logger.Info("Mirroring showcases to GCS", zap.String("bucket", m.GCSBucket))
		store, err := gcs.Dial(ctx, gcs.Config{Bucket: m.GCSBucket, Prefix: m.Prefix}, gcsOpts...)
		if err != nil {
			return nil, err
		}
		a.mirror = store
		return store, nil
	}
	a.logger.Info("Mirroring showcases to local directory", zap.String("dir", m.LocalDir))
	store, err := local.New(local.Config{Dir: m.LocalDir, Prefix: m.Prefix})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// RunID identifies this run in logs, events and metrics.
func (a *App) RunID() string {
	return a.runID
}

// Refresh discovers projects under the configured root, narrows them to
// only when it is non-empty, and runs one refresh pass.
func (a *App) Refresh(ctx context.Context, only []string) (refresher.Summary, error) {
	projects, err := discovery.Discover(a.cfg.Projects.Root)
	if err != nil {
		return refresher.Summary{}, fmt.Errorf("discover projects: %w", err)
	}
	if len(only) > 0 {
		projects = discovery.Filter(projects, only)
		if len(projects) == 0 {
			a.logger.Warn("No discovered project matched the requested names", zap.Strings("only", only))
		}
	}
	return a.refresher.Run(ctx, projects)
}

// Close pushes metrics when a gateway is configured and releases clients.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("Shutting down application services...")
	var errs []error
	if url := a.cfg.Metrics.PushgatewayURL; url != "" {
		if err := a.metrics.Push(ctx, url, a.cfg.Metrics.Job); err != nil {
			a.logger.Warn("Error pushing metrics", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if err := a.closeClients(); err != nil {
		errs = append(errs, err)
	}
	// Sync commonly fails on stderr/stdout; nothing useful to do about it.
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

func (a *App) closeClients() error {
	var errs []error
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("Error closing publisher", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if a.mirror != nil {
		if err := a.mirror.Close(); err != nil {
			a.logger.Warn("Error closing storage client", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
