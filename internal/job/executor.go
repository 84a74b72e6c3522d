// Package job drives one input file through the remote compression protocol:
// upload, compress, stream-wait, download, local cleanup.
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/shrinkray/shrinkray/internal/api"
	"github.com/shrinkray/shrinkray/internal/bufpool"
	"github.com/shrinkray/shrinkray/internal/naming"
	"github.com/shrinkray/shrinkray/internal/status"
	"github.com/shrinkray/shrinkray/internal/wipe"
)

const outputContainer = "mp4"

// Options configures an Executor.
type Options struct {
	Client       *api.Client
	OutputDir    string
	TargetSizeMB float64
	DownloadWait time.Duration
	Deleter      wipe.Deleter
	Board        *status.Board
	Logger       *slog.Logger
}

// Executor runs compression jobs. Safe for concurrent use; each Process call
// is one independent job.
type Executor struct {
	client       *api.Client
	outputDir    string
	targetSizeMB float64
	downloadWait time.Duration
	deleter      wipe.Deleter
	board        *status.Board
	log          *slog.Logger
	bufs         *bufpool.Pool
}

// NewExecutor creates an executor writing finished files to opts.OutputDir.
func NewExecutor(opts Options) *Executor {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	deleter := opts.Deleter
	if deleter == nil {
		deleter = wipe.Plain{}
	}
	board := opts.Board
	if board == nil {
		board = status.NewBoard()
	}
	return &Executor{
		client:       opts.Client,
		outputDir:    opts.OutputDir,
		targetSizeMB: opts.TargetSizeMB,
		downloadWait: opts.DownloadWait,
		deleter:      deleter,
		board:        board,
		log:          log,
		bufs:         bufpool.New(1 << 20),
	}
}

// Process runs the full protocol for the file at path. On success the source
// file is removed and the compressed result sits in the output directory. On
// failure the source file is left in place for a later retry. A cancellation
// observed at any suspension point abandons the job without deleting the
// source; the returned error then wraps context.Canceled.
func (e *Executor) Process(ctx context.Context, path string) error {
	filename := filepath.Base(path)
	log := e.log.With("file", filename, "attempt", uuid.NewString()[:8])

	// The file may have been moved or deleted after scheduling.
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Info("skipping missing file")
		return nil
	}

	e.board.Begin(path)
	succeeded := false
	aborted := false
	defer func() {
		if aborted {
			e.board.Abandon(path)
			return
		}
		e.board.End(path, succeeded)
	}()

	// Uploading.
	log.Info("upload started")
	upload, err := e.client.Upload(ctx, path, e.targetSizeMB)
	if err != nil {
		if ctx.Err() != nil {
			aborted = true
			return fmt.Errorf("upload abandoned: %w", context.Canceled)
		}
		return fmt.Errorf("upload: %w", err)
	}
	log = log.With("job_id", upload.JobID)
	log.Info("upload complete")

	// Compressing.
	e.board.SetStage(path, status.StageCompressing)
	req := api.DefaultCompressRequest(e.targetSizeMB)
	req.Filename = upload.Filename
	req.JobID = upload.JobID
	taskID, err := e.client.Compress(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			aborted = true
			return fmt.Errorf("compress abandoned: %w", context.Canceled)
		}
		return fmt.Errorf("compress: %w", err)
	}
	log = log.With("task_id", taskID)
	e.board.SetTaskID(path, taskID)
	log.Info("compression started")

	// Streaming: wait for the terminal event.
	e.board.SetStage(path, status.StageWaiting)
	if err := e.waitForCompletion(ctx, path, taskID, log); err != nil {
		if errors.Is(err, context.Canceled) {
			aborted = true
		}
		return err
	}

	// Downloading.
	e.board.SetStage(path, status.StageDownloading)
	finalPath, err := e.download(ctx, path, taskID, log)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			aborted = true
		}
		return err
	}
	log.Info("saved output", "output", finalPath)

	// CleaningUp: remove the input only after the output is in place.
	e.board.SetStage(path, status.StageCleaning)
	if err := e.deleter.Delete(path); err != nil {
		// The output is safely in place, but a stuck input that stays in the
		// hot folder must enter backoff or it gets resubmitted every cycle.
		return fmt.Errorf("cleanup %s: %w", filename, err)
	}
	log.Info("input removed")

	succeeded = true
	return nil
}

// waitForCompletion consumes the task event stream until a terminal event.
func (e *Executor) waitForCompletion(ctx context.Context, path, taskID string, log *slog.Logger) error {
	stream, err := e.client.OpenStream(ctx, taskID)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("stream abandoned: %w", context.Canceled)
		}
		return fmt.Errorf("stream: %w", err)
	}
	defer stream.Close()

	for {
		// Shutdown is checked between events; the job's true remote state is
		// unknown at this point, so the source file is left untouched.
		select {
		case <-ctx.Done():
			log.Info("shutdown requested, leaving stream")
			return fmt.Errorf("stream abandoned: %w", context.Canceled)
		default:
		}

		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("stream ended without done/error event")
		}
		if err != nil {
			if ctx.Err() != nil {
				log.Info("shutdown requested, leaving stream")
				return fmt.Errorf("stream abandoned: %w", context.Canceled)
			}
			return fmt.Errorf("stream read: %w", err)
		}

		switch ev.Type {
		case api.EventProgress:
			e.board.SetPercent(path, ev.Percent)
			log.Debug("progress", "percent", ev.Percent)
		case api.EventDone:
			log.Info("compression finished")
			return nil
		case api.EventError:
			return fmt.Errorf("remote compression failed: %s", ev.Message)
		}
	}
}

// download streams the result to a .part file and renames it into place.
// Cancellation between chunks aborts the transfer; the partial file is
// removed so nothing at the final path is ever incomplete.
func (e *Executor) download(ctx context.Context, path, taskID string, log *slog.Logger) (string, error) {
	finalPath, err := naming.OutputPath(e.outputDir, filepath.Base(path), outputContainer)
	if err != nil {
		return "", fmt.Errorf("resolve output name: %w", err)
	}
	partPath := naming.PartPath(finalPath)

	body, size, err := e.client.Download(ctx, taskID, e.downloadWait)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("download abandoned: %w", context.Canceled)
		}
		return "", fmt.Errorf("download: %w", err)
	}
	defer body.Close()

	e.board.StartDownload(path, size)
	log.Info("download started", "bytes", size)

	out, err := os.Create(partPath)
	if err != nil {
		return "", fmt.Errorf("create temp output: %w", err)
	}

	if err := e.copyChunks(ctx, path, out, body); err != nil {
		out.Close()
		if removeErr := os.Remove(partPath); removeErr != nil {
			log.Warn("could not remove partial download", "path", partPath, "error", removeErr)
		}
		if errors.Is(err, context.Canceled) {
			log.Info("shutdown requested, download aborted")
			return "", fmt.Errorf("download abandoned: %w", context.Canceled)
		}
		return "", fmt.Errorf("download: %w", err)
	}

	if err := out.Close(); err != nil {
		os.Remove(partPath)
		return "", fmt.Errorf("flush temp output: %w", err)
	}
	if err := os.Rename(partPath, finalPath); err != nil {
		os.Remove(partPath)
		return "", fmt.Errorf("finalize output: %w", err)
	}
	return finalPath, nil
}

// copyChunks copies src to dst through a pooled buffer, checking for
// cancellation between chunks.
func (e *Executor) copyChunks(ctx context.Context, path string, dst io.Writer, src io.Reader) error {
	buf := e.bufs.Get()
	defer e.bufs.Put(buf)

	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write: %w", werr)
			}
			e.board.AddBytes(path, n)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
	}
}
