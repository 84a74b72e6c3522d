// Package status tracks in-flight jobs so logs and the optional dashboard can
// show what every worker is doing.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/shrinkray/shrinkray/internal/progress"
)

// Stage names the phase a job is currently in.
type Stage string

const (
	StageUploading   Stage = "uploading"
	StageCompressing Stage = "compressing"
	StageWaiting     Stage = "waiting"
	StageDownloading Stage = "downloading"
	StageCleaning    Stage = "cleaning"
)

// Job is a read-only snapshot of one in-flight job.
type Job struct {
	Path      string
	Stage     Stage
	TaskID    string
	Percent   float64
	Download  progress.Stats
	StartedAt time.Time
}

type entry struct {
	stage     Stage
	taskID    string
	percent   float64
	meter     *progress.Meter
	startedAt time.Time
}

// Board is a thread-safe registry of in-flight jobs plus terminal counters.
type Board struct {
	mu        sync.RWMutex
	jobs      map[string]*entry
	succeeded int
	failed    int
	now       func() time.Time
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{
		jobs: make(map[string]*entry),
		now:  time.Now,
	}
}

// Begin registers path as in-flight, starting in the upload stage.
func (b *Board) Begin(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs[path] = &entry{
		stage:     StageUploading,
		meter:     progress.NewMeter(),
		startedAt: b.now(),
	}
}

// SetStage records a stage transition for path.
func (b *Board) SetStage(path string, s Stage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.jobs[path]; ok {
		e.stage = s
	}
}

// SetTaskID records the remote task identifier once known.
func (b *Board) SetTaskID(path, taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.jobs[path]; ok {
		e.taskID = taskID
	}
}

// SetPercent records remote compression progress (0..100).
func (b *Board) SetPercent(path string, pct float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.jobs[path]; ok {
		e.percent = pct
	}
}

// StartDownload resets the download meter with the expected size.
func (b *Board) StartDownload(path string, totalBytes int64) {
	b.mu.RLock()
	e, ok := b.jobs[path]
	b.mu.RUnlock()
	if ok {
		e.meter.Start(totalBytes)
	}
}

// AddBytes credits downloaded bytes to the job's meter.
func (b *Board) AddBytes(path string, n int) {
	b.mu.RLock()
	e, ok := b.jobs[path]
	b.mu.RUnlock()
	if ok {
		e.meter.Add(n)
	}
}

// End removes path from the board, incrementing the matching counter.
func (b *Board) End(path string, succeeded bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.jobs[path]; !ok {
		return
	}
	delete(b.jobs, path)
	if succeeded {
		b.succeeded++
	} else {
		b.failed++
	}
}

// Abandon removes path from the board without touching the counters, for
// jobs cut short by shutdown.
func (b *Board) Abandon(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.jobs, path)
}

// View returns a snapshot of all in-flight jobs sorted by path, plus the
// terminal counters.
func (b *Board) View() ([]Job, int, int) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	jobs := make([]Job, 0, len(b.jobs))
	for path, e := range b.jobs {
		job := Job{
			Path:      path,
			Stage:     e.stage,
			TaskID:    e.taskID,
			Percent:   e.percent,
			Download:  e.meter.Snapshot(),
			StartedAt: e.startedAt,
		}
		if job.Stage == StageDownloading && job.Download.Total > 0 {
			job.Percent = job.Download.Percent
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].Path < jobs[j].Path
	})
	return jobs, b.succeeded, b.failed
}
