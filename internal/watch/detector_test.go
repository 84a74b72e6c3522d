package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetector_ReadyAfterTwoStableScans(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "clip.mov", "payload")

	d := NewDetector(0)

	ready, present, err := d.Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 0 {
		t.Errorf("first scan ready = %v, want none", ready)
	}
	if _, ok := present[path]; !ok {
		t.Error("file missing from present set")
	}

	ready, _, err = d.Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 1 || ready[0] != path {
		t.Errorf("second scan ready = %v, want [%s]", ready, path)
	}
}

func TestDetector_GrowingFileIsNotReady(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "clip.mov", "part one")

	d := NewDetector(0)
	if _, _, err := d.Scan(dir); err != nil {
		t.Fatal(err)
	}

	// The file grows between scans: the stability check restarts.
	writeFile(t, dir, "clip.mov", "part one and then some")

	ready, _, err := d.Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 0 {
		t.Errorf("ready = %v, want none while growing", ready)
	}

	ready, _, err = d.Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 1 || ready[0] != path {
		t.Errorf("ready = %v after file settled, want [%s]", ready, path)
	}
}

func TestDetector_MinAgeHoldsYoungFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "clip.mov", "payload")

	mtime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	now := mtime.Add(time.Second)
	d := NewDetectorWithNow(4*time.Second, func() time.Time { return now })

	if _, _, err := d.Scan(dir); err != nil {
		t.Fatal(err)
	}
	ready, _, err := d.Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 0 {
		t.Errorf("ready = %v, want none at age 1s", ready)
	}

	now = mtime.Add(5 * time.Second)
	ready, _, err = d.Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 1 || ready[0] != path {
		t.Errorf("ready = %v at age 5s, want [%s]", ready, path)
	}
}

func TestDetector_SkipsHiddenAndDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".partial.mov", "hidden")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	d := NewDetector(0)
	for i := 0; i < 2; i++ {
		ready, present, err := d.Scan(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(ready) != 0 || len(present) != 0 {
			t.Errorf("scan %d: ready = %v, present = %v, want empty", i, ready, present)
		}
	}
}

func TestDetector_RemovalResetsHistory(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "clip.mov", "payload")

	d := NewDetector(0)
	d.Scan(dir)
	if ready, _, _ := d.Scan(dir); len(ready) != 1 {
		t.Fatalf("ready = %v, want the file", ready)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, present, err := d.Scan(dir); err != nil || len(present) != 0 {
		t.Fatalf("present = %v after removal, err = %v", present, err)
	}

	// A new file under the same name starts a fresh stability check.
	writeFile(t, dir, "clip.mov", "payload")
	ready, _, err := d.Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 0 {
		t.Errorf("ready = %v on first sighting of recreated file, want none", ready)
	}
}

func TestDetector_MissingDirectoryErrors(t *testing.T) {
	d := NewDetector(0)
	if _, _, err := d.Scan(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error scanning a missing directory")
	}
}
