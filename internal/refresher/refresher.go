// Package refresher decides, per project, whether the showcase image is
// stale and drives the capture when it is.
package refresher

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/showcase-refresher/internal/clock/system"
	"github.com/JakeFAU/showcase-refresher/internal/discovery"
	"github.com/JakeFAU/showcase-refresher/internal/github"
	"github.com/JakeFAU/showcase-refresher/internal/ledger"
	"github.com/JakeFAU/showcase-refresher/internal/screenshot"
)

// Config controls a Refresher.
type Config struct {
	Owner  string
	RunID  string
	DryRun bool
}

// Deps are the collaborators of a Refresher. Mirror, Publisher, Hasher,
// Metrics and Clock are optional.
type Deps struct {
	Fetcher   MetadataFetcher
	Capturer  Capturer
	Ledger    LedgerStore
	Mirror    BlobStore
	Publisher Publisher
	Hasher    Hasher
	Metrics   Metrics
	Clock     Clock
}

// Refresher runs one sequential pass over the discovered projects.
type Refresher struct {
	cfg       Config
	fetcher   MetadataFetcher
	capturer  Capturer
	ledger    LedgerStore
	mirror    BlobStore
	publisher Publisher
	hasher    Hasher
	metrics   Metrics
	clock     Clock
	logger    *zap.Logger
}

// New validates deps and builds a Refresher.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Refresher, error) {
	if cfg.Owner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	if deps.Fetcher == nil || deps.Capturer == nil || deps.Ledger == nil {
		return nil, fmt.Errorf("fetcher, capturer and ledger are required")
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RunID != "" {
		logger = logger.With(zap.String("run_id", cfg.RunID))
	}
	return &Refresher{
		cfg:       cfg,
		fetcher:   deps.Fetcher,
		capturer:  deps.Capturer,
		ledger:    deps.Ledger,
		mirror:    deps.Mirror,
		publisher: deps.Publisher,
		hasher:    deps.Hasher,
		metrics:   deps.Metrics,
		clock:     deps.Clock,
		logger:    logger,
	}, nil
}

// Run processes projects one at a time and writes the ledger once at the
// end. Per-project failures are logged and counted, never returned; the
// only error is a failed ledger save.
func (r *Refresher) Run(ctx context.Context, projects []discovery.Project) (Summary, error) {
	state := r.ledger.Load()
	before := state.Clone()

	summary := Summary{RunID: r.cfg.RunID}
	r.logger.Info("Checking projects", zap.Int("count", len(projects)), zap.Bool("dry_run", r.cfg.DryRun))

	for _, project := range projects {
		result := r.processProject(ctx, project, state)
		summary.add(result)
		r.metrics.ObserveOutcome(string(result.Outcome))
	}
	summary.LedgerChanged = !before.Equal(state)

	if r.cfg.DryRun {
		r.logger.Info("Dry run; ledger not written", zap.Bool("ledger_changed", summary.LedgerChanged))
	} else {
		if err := r.ledger.Save(state); err != nil {
			return summary, fmt.Errorf("save ledger: %w", err)
		}
		r.metrics.ObserveRun(len(state), r.clock.Now())
	}

	r.logger.Info(
		fmt.Sprintf("Done. %d screenshot(s) updated, %d timestamp-only update(s).",
			summary.Screenshots, summary.TimestampOnly),
		zap.Int("up_to_date", summary.UpToDate),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors),
	)
	return summary, nil
}

func (r *Refresher) processProject(ctx context.Context, project discovery.Project, state ledger.Ledger) Result {
	log := r.logger.With(zap.String("project", project.Name))
	result := Result{Project: project.Name}

	info, err := r.fetcher.FetchInfo(ctx, r.cfg.Owner, project.Name)
	if err != nil {
		return r.fail(log, result, fmt.Errorf("fetch metadata: %w", err))
	}

	if info.CommittedDate == nil {
		log.Info("No commit date available; skipping")
		result.Outcome = OutcomeSkipped
		return result
	}
	committedDate := *info.CommittedDate
	result.CommittedDate = committedDate

	committed, err := parseTimestamp(committedDate)
	if err != nil {
		return r.fail(log, result, fmt.Errorf("invalid committed date %q: %w", committedDate, err))
	}

	if previous, ok := state[project.Name]; ok {
		last, perr := parseTimestamp(previous)
		switch {
		case perr != nil:
			log.Warn("Ignoring unparsable ledger entry", zap.String("entry", previous), zap.Error(perr))
		case !last.Before(committed):
			log.Info("Up to date", zap.String("committed_date", committedDate))
			result.Outcome = OutcomeUpToDate
			return result
		}
	}

	if info.HomepageURL == nil {
		log.Info("No homepage configured; recording timestamp only", zap.String("committed_date", committedDate))
		state[project.Name] = committedDate
		result.Outcome = OutcomeTimestampOnly
		return result
	}
	homepage := *info.HomepageURL
	result.HomepageURL = homepage

	outputPath := project.ShowcasePath()
	if outputPath == "" {
		return r.fail(log, result, fmt.Errorf("showcase image no longer present in %s", project.Dir))
	}
	result.Path = outputPath

	if r.cfg.DryRun {
		log.Info("Would capture screenshot", zap.String("url", homepage), zap.String("path", outputPath))
		state[project.Name] = committedDate
		result.Outcome = OutcomeScreenshot
		return result
	}

	log.Info("Capturing screenshot", zap.String("url", homepage), zap.String("path", outputPath))
	start := time.Now()
	if err := r.capturer.Capture(ctx, homepage, outputPath); err != nil {
		return r.fail(log, result, fmt.Errorf("capture %s: %w", homepage, err))
	}
	r.metrics.ObserveCapture(homepage, time.Since(start))

	state[project.Name] = committedDate
	result.Outcome = OutcomeScreenshot

	if r.hasher != nil {
		digest, err := r.hasher.HashFile(outputPath)
		if err != nil {
			log.Warn("Could not digest showcase", zap.Error(err))
		}
		result.SHA256 = digest
	}
	result.MirrorURI = r.mirrorShowcase(ctx, log, project, outputPath)
	r.notify(ctx, log, result)
	return result
}

func (r *Refresher) fail(log *zap.Logger, result Result, err error) Result {
	log.Error("Failed to refresh project", zap.Error(err))
	result.Outcome = OutcomeError
	result.Err = err
	return result
}

// mirrorShowcase uploads the fresh image when a mirror is configured. A
// failed upload does not undo the local refresh.
func (r *Refresher) mirrorShowcase(ctx context.Context, log *zap.Logger, project discovery.Project, outputPath string) string {
	if r.mirror == nil {
		return ""
	}
	uri, err := r.upload(ctx, path.Join(project.Name, filepath.Base(outputPath)), outputPath)
	if err != nil {
		log.Warn("Mirror upload failed", zap.Error(err))
		return ""
	}
	log.Debug("Showcase mirrored", zap.String("uri", uri))
	return uri
}

func (r *Refresher) upload(ctx context.Context, objectName, localPath string) (string, error) {
	// #nosec G304 -- path comes from project discovery under the configured root.
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()
	return r.mirror.PutObject(ctx, objectName, screenshot.ContentType(localPath), f)
}

func (r *Refresher) notify(ctx context.Context, log *zap.Logger, result Result) {
	if r.publisher == nil {
		return
	}
	event := ShowcaseRefreshed{
		RunID:         r.cfg.RunID,
		Project:       result.Project,
		HomepageURL:   result.HomepageURL,
		CommittedDate: result.CommittedDate,
		Path:          result.Path,
		MirrorURI:     result.MirrorURI,
		SHA256:        result.SHA256,
		CapturedAt:    r.clock.Now().UTC(),
	}
	id, err := r.publisher.Publish(ctx, event)
	if err != nil {
		log.Warn("Refresh notification failed", zap.Error(err))
		return
	}
	log.Debug("Refresh notification published", zap.String("message_id", id))
}

// parseTimestamp accepts RFC 3339 timestamps, with or without fractional
// seconds, as returned by GitHub.
func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return t, nil
}

var _ MetadataFetcher = (*github.Client)(nil)
