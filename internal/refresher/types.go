package refresher

import (
	"context"
	"io"
	"time"

	"github.com/JakeFAU/showcase-refresher/internal/github"
	"github.com/JakeFAU/showcase-refresher/internal/ledger"
)

// MetadataFetcher looks up a repository's homepage and tip commit date.
type MetadataFetcher interface {
	FetchInfo(ctx context.Context, owner, name string) (github.RepoInfo, error)
}

// Capturer renders url and writes the image to outputPath.
type Capturer interface {
	Capture(ctx context.Context, url, outputPath string) error
}

// LedgerStore loads and saves the timestamp ledger.
type LedgerStore interface {
	Load() ledger.Ledger
	Save(l ledger.Ledger) error
}

// BlobStore receives a copy of every refreshed showcase.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher announces refreshed showcases.
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// Hasher digests a captured image.
type Hasher interface {
	HashFile(path string) (string, error)
}

// Metrics observes run progress.
type Metrics interface {
	ObserveOutcome(outcome string)
	ObserveCapture(url string, d time.Duration)
	ObserveRun(ledgerEntries int, finished time.Time)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Outcome is the terminal state of one project in a run.
type Outcome string

// Possible project outcomes.
const (
	OutcomeScreenshot    Outcome = "screenshot"
	OutcomeTimestampOnly Outcome = "timestamp_only"
	OutcomeUpToDate      Outcome = "up_to_date"
	OutcomeSkipped       Outcome = "skipped"
	OutcomeError         Outcome = "error"
)

// Result describes what happened to one project.
type Result struct {
	Project       string
	Outcome       Outcome
	CommittedDate string
	HomepageURL   string
	Path          string
	MirrorURI     string
	SHA256        string
	Err           error
}

// Summary aggregates a run.
type Summary struct {
	RunID         string
	Screenshots   int
	TimestampOnly int
	UpToDate      int
	Skipped       int
	Errors        int
	LedgerChanged bool
	Results       []Result
}

func (s *Summary) add(r Result) {
	s.Results = append(s.Results, r)
	switch r.Outcome {
	case OutcomeScreenshot:
		s.Screenshots++
	case OutcomeTimestampOnly:
		s.TimestampOnly++
	case OutcomeUpToDate:
		s.UpToDate++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeError:
		s.Errors++
	}
}

// ShowcaseRefreshed is published after a successful capture.
type ShowcaseRefreshed struct {
	RunID         string    `json:"run_id,omitempty"`
	Project       string    `json:"project"`
	HomepageURL   string    `json:"homepage_url"`
	CommittedDate string    `json:"committed_date"`
	Path          string    `json:"path"`
	MirrorURI     string    `json:"mirror_uri,omitempty"`
	SHA256        string    `json:"sha256,omitempty"`
	CapturedAt    time.Time `json:"captured_at"`
}

type nopMetrics struct{}

func (nopMetrics) ObserveOutcome(string)                {}
func (nopMetrics) ObserveCapture(string, time.Duration) {}
func (nopMetrics) ObserveRun(int, time.Time)            {}
