// Command shrinkray watches a hot folder and sends every finished media file
// to a remote compression service, dropping the result next door.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shrinkray/shrinkray/internal/api"
	"github.com/shrinkray/shrinkray/internal/config"
	"github.com/shrinkray/shrinkray/internal/job"
	"github.com/shrinkray/shrinkray/internal/logging"
	"github.com/shrinkray/shrinkray/internal/progress"
	"github.com/shrinkray/shrinkray/internal/status"
	"github.com/shrinkray/shrinkray/internal/watch"
	"github.com/shrinkray/shrinkray/internal/wipe"
)

const version = "v0.3.0"

func main() {
	if hasVersionFlag(os.Args[1:]) {
		fmt.Println(version)
		return
	}

	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, "shrinkray:", err)
		os.Exit(2)
	}

	// The dashboard owns stdout; logs move to stderr while it is up.
	useUI := cfg.UI && progress.IsTTY(os.Stdout)
	logOut := os.Stdout
	if useUI {
		logOut = os.Stderr
	}
	logger := logging.NewWithWriter(logOut, "shrinkray", cfg.LogLevel)

	if err := run(cfg, useUI, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
	logger.Info("goodbye")
}

func run(cfg config.Config, useUI bool, logger *slog.Logger) error {
	for _, dir := range []string{cfg.InputDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// The dashboard's Ctrl-C handler funnels into the same cancellation.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := api.NewClient(api.Options{
		BaseURL:             cfg.APIURL,
		RequestTimeout:      cfg.RequestTimeout,
		StreamReadTimeout:   cfg.StreamReadTimeout,
		DownloadReadTimeout: cfg.DownloadReadTimeout,
	})

	board := status.NewBoard()
	executor := job.NewExecutor(job.Options{
		Client:       client,
		OutputDir:    cfg.OutputDir,
		TargetSizeMB: cfg.UploadTargetSizeMB,
		DownloadWait: cfg.DownloadWait,
		Deleter:      wipe.ForConfig(cfg.SecureDelete),
		Board:        board,
		Logger:       logger,
	})

	watcher := watch.New(watch.Options{
		InputDir:     cfg.InputDir,
		PollInterval: cfg.PollInterval,
		ReadyMinAge:  cfg.ReadyMinAge,
		MaxJobs:      cfg.MaxConcurrentJobs,
		Backoff:      cfg.FailureBackoff,
		Runner:       executor,
		Logger:       logger,
	})

	logger.Info("starting",
		"version", version,
		"api_url", cfg.APIURL,
		"input_dir", cfg.InputDir,
		"output_dir", cfg.OutputDir,
		"max_jobs", cfg.MaxConcurrentJobs,
		"secure_delete", cfg.SecureDelete)

	if useUI {
		stopUI := progress.RunDashboard(ctx, os.Stdout, dashboardView(cfg, board), cancel)
		defer stopUI()
	}

	return watcher.Run(ctx)
}

func hasVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" {
			return true
		}
	}
	return false
}

// dashboardView adapts board snapshots to the renderer's shape.
func dashboardView(cfg config.Config, board *status.Board) func() progress.View {
	return func() progress.View {
		jobs, succeeded, failed := board.View()
		rows := make([]progress.JobRow, 0, len(jobs))
		for _, j := range jobs {
			rows = append(rows, progress.JobRow{
				File:    filepath.Base(j.Path),
				Stage:   string(j.Stage),
				Task:    j.TaskID,
				Percent: j.Percent,
				RateBps: j.Download.RateBps,
				Elapsed: time.Since(j.StartedAt),
			})
		}
		return progress.View{
			InputDir:  cfg.InputDir,
			OutputDir: cfg.OutputDir,
			Rows:      rows,
			Succeeded: succeeded,
			Failed:    failed,
		}
	}
}
