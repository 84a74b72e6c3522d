package progress

import (
	"strings"
	"testing"
	"time"
)

func TestMeter_SnapshotPercent(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMeterWithNow(func() time.Time { return clock })

	m.Start(1000)
	clock = clock.Add(time.Second)
	m.Add(250)

	stats := m.Snapshot()
	if stats.BytesDone != 250 {
		t.Errorf("BytesDone = %d, want 250", stats.BytesDone)
	}
	if stats.Percent != 25 {
		t.Errorf("Percent = %f, want 25", stats.Percent)
	}
	if stats.RateBps != 250 {
		t.Errorf("RateBps = %f, want 250", stats.RateBps)
	}
	if stats.ETA != 3*time.Second {
		t.Errorf("ETA = %s, want 3s", stats.ETA)
	}
}

func TestMeter_RateSmoothing(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMeterWithNow(func() time.Time { return clock })

	m.Start(10_000)
	clock = clock.Add(time.Second)
	m.Add(1000) // first sample sets the rate directly
	clock = clock.Add(time.Second)
	m.Add(2000)

	rate := m.Snapshot().RateBps
	// EWMA with alpha 0.2: 0.2*2000 + 0.8*1000
	if rate < 1190 || rate > 1210 {
		t.Errorf("RateBps = %f, want ~1200", rate)
	}
}

func TestMeter_UnknownTotal(t *testing.T) {
	m := NewMeter()
	m.Start(0)
	m.Add(512)

	stats := m.Snapshot()
	if stats.Percent != 0 {
		t.Errorf("Percent = %f, want 0 for unknown total", stats.Percent)
	}
	if stats.BytesDone != 512 {
		t.Errorf("BytesDone = %d, want 512", stats.BytesDone)
	}
}

func TestRender_Idle(t *testing.T) {
	out := Render(View{InputDir: "/in", OutputDir: "/out"})
	if !strings.Contains(out, "watching /in -> /out") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "idle") {
		t.Errorf("missing idle marker:\n%s", out)
	}
}

func TestRender_Rows(t *testing.T) {
	out := Render(View{
		InputDir:  "/in",
		OutputDir: "/out",
		Succeeded: 2,
		Failed:    1,
		Rows: []JobRow{
			{File: "clip.mov", Stage: "downloading", Task: "t-123", Percent: 42.5, RateBps: 2 << 20, Elapsed: 65 * time.Second},
		},
	})
	for _, want := range []string{"clip.mov", "downloading", "t-123", "42.5", "MB/s", "1m05s", "2 done", "1 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatRate(t *testing.T) {
	cases := []struct {
		bps  float64
		want string
	}{
		{0, "-"},
		{512, "512 B/s"},
		{4096, "4.0 KB/s"},
		{3 << 20, "3.0 MB/s"},
	}
	for _, c := range cases {
		if got := formatRate(c.bps); got != c.want {
			t.Errorf("formatRate(%f) = %q, want %q", c.bps, got, c.want)
		}
	}
}
