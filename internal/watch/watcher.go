package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/shrinkray/shrinkray/internal/backoff"
	"github.com/shrinkray/shrinkray/internal/pool"
)

// Runner processes one ready file end to end.
type Runner interface {
	Process(ctx context.Context, path string) error
}

// errorCooldown is how long the loop sleeps after a failed scan cycle
// (unreadable directory and similar), so a broken mount does not spin.
const errorCooldown = 5 * time.Second

// Options configures a Watcher.
type Options struct {
	InputDir     string
	PollInterval time.Duration
	ReadyMinAge  time.Duration
	MaxJobs      int
	Backoff      time.Duration
	Runner       Runner
	Logger       *slog.Logger
}

// Watcher is the polling loop: scan the input directory, skip files that
// are claimed or in a failure backoff window, and admit the rest to the
// job pool.
type Watcher struct {
	inputDir string
	interval time.Duration
	detector *Detector
	ledger   *backoff.Ledger
	gov      *pool.Governor
	runner   Runner
	log      *slog.Logger
}

// New creates a watcher. Runner must be non-nil.
func New(opts Options) *Watcher {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		inputDir: opts.InputDir,
		interval: opts.PollInterval,
		detector: NewDetector(opts.ReadyMinAge),
		ledger:   backoff.NewLedger(opts.Backoff),
		gov:      pool.NewGovernor(opts.MaxJobs),
		runner:   opts.Runner,
		log:      log,
	}
}

// Run polls until ctx is cancelled, then waits for in-flight jobs to
// finish before returning.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info("watching for files", "dir", w.inputDir, "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.cycle(ctx); err != nil {
			w.log.Error("scan cycle failed", "error", err)
			if !sleepCtx(ctx, errorCooldown) {
				break
			}
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
			continue
		}
		break
	}

	w.log.Info("shutting down, waiting for in-flight jobs", "in_flight", w.gov.InFlight())
	w.gov.Wait()
	w.log.Info("all jobs drained")
	return ctx.Err()
}

// cycle runs one scan-and-admit pass.
func (w *Watcher) cycle(ctx context.Context) error {
	ready, present, err := w.detector.Scan(w.inputDir)
	if err != nil {
		return err
	}

	if n := w.ledger.Sweep(present); n > 0 {
		w.log.Debug("cleared backoff for departed files", "count", n)
	}

	now := time.Now()
	for _, path := range ready {
		if ctx.Err() != nil {
			return nil
		}
		if w.gov.Claimed(path) || w.ledger.ShouldSkip(path, now) {
			continue
		}
		p := path
		if w.gov.TryAdmit(p, func() { w.runJob(ctx, p) }) {
			w.log.Info("file ready, job admitted", "file", p, "in_flight", w.gov.InFlight())
		}
	}
	return nil
}

// runJob executes one job inside a pool slot and applies the failure
// backoff policy afterwards.
func (w *Watcher) runJob(ctx context.Context, path string) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("job panicked", "file", path, "panic", r)
			w.noteFailure(path)
		}
	}()

	err := w.runner.Process(ctx, path)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		// Shutdown interrupted the job; the file is untouched and will be
		// picked up on the next start. No penalty.
		w.log.Info("job abandoned by shutdown", "file", path)
		return
	}

	w.log.Error("job failed", "file", path, "error", err)
	w.noteFailure(path)
}

// noteFailure records a backoff window for the file if it still exists.
func (w *Watcher) noteFailure(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	w.ledger.RecordFailure(path, time.Now())
}

// sleepCtx waits d or until ctx is cancelled; it reports whether the full
// wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
