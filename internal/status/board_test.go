package status

import (
	"testing"
)

func TestBoard_Lifecycle(t *testing.T) {
	b := NewBoard()

	b.Begin("/in/clip.mov")
	jobs, done, failed := b.View()
	if len(jobs) != 1 || done != 0 || failed != 0 {
		t.Fatalf("View = %d jobs, %d done, %d failed", len(jobs), done, failed)
	}
	if jobs[0].Stage != StageUploading {
		t.Errorf("initial stage = %s, want %s", jobs[0].Stage, StageUploading)
	}

	b.SetStage("/in/clip.mov", StageWaiting)
	b.SetTaskID("/in/clip.mov", "t-42")
	b.SetPercent("/in/clip.mov", 55)

	jobs, _, _ = b.View()
	if jobs[0].Stage != StageWaiting || jobs[0].TaskID != "t-42" || jobs[0].Percent != 55 {
		t.Errorf("snapshot = %+v", jobs[0])
	}

	b.End("/in/clip.mov", true)
	jobs, done, failed = b.View()
	if len(jobs) != 0 || done != 1 || failed != 0 {
		t.Errorf("after End: %d jobs, %d done, %d failed", len(jobs), done, failed)
	}
}

func TestBoard_DownloadProgressWinsWhileDownloading(t *testing.T) {
	b := NewBoard()
	b.Begin("/in/clip.mov")
	b.SetPercent("/in/clip.mov", 99) // stale remote percent
	b.SetStage("/in/clip.mov", StageDownloading)
	b.StartDownload("/in/clip.mov", 1000)
	b.AddBytes("/in/clip.mov", 100)

	jobs, _, _ := b.View()
	if jobs[0].Percent != 10 {
		t.Errorf("Percent = %f, want 10 from download meter", jobs[0].Percent)
	}
}

func TestBoard_AbandonSkipsCounters(t *testing.T) {
	b := NewBoard()
	b.Begin("/in/clip.mov")
	b.Abandon("/in/clip.mov")

	jobs, done, failed := b.View()
	if len(jobs) != 0 || done != 0 || failed != 0 {
		t.Errorf("after Abandon: %d jobs, %d done, %d failed", len(jobs), done, failed)
	}
}

func TestBoard_ViewSorted(t *testing.T) {
	b := NewBoard()
	b.Begin("/in/b.mov")
	b.Begin("/in/a.mov")
	b.Begin("/in/c.mov")

	jobs, _, _ := b.View()
	if jobs[0].Path != "/in/a.mov" || jobs[2].Path != "/in/c.mov" {
		t.Errorf("jobs not sorted by path: %+v", jobs)
	}
}

func TestBoard_UpdatesForUnknownPathIgnored(t *testing.T) {
	b := NewBoard()
	b.SetStage("/missing", StageCleaning)
	b.AddBytes("/missing", 10)
	b.End("/missing", false)

	jobs, done, failed := b.View()
	if len(jobs) != 0 || done != 0 || failed != 0 {
		t.Errorf("unexpected state: %d jobs, %d done, %d failed", len(jobs), done, failed)
	}
}
