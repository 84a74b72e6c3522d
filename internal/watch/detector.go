// Package watch polls an input directory and hands files that have
// finished arriving to a job runner.
package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// stamp is one observed size/mtime snapshot of a file.
type stamp struct {
	size  int64
	mtime time.Time
}

// Detector decides when a file in the hot folder has stopped growing.
// A file is ready once two consecutive scans see the same size and
// modification time, and the modification time is at least minAge old.
// Not safe for concurrent use; the watcher calls Scan from one goroutine.
type Detector struct {
	minAge time.Duration
	prev   map[string]stamp
	now    func() time.Time
}

// NewDetector creates a detector with the given minimum file age.
func NewDetector(minAge time.Duration) *Detector {
	return NewDetectorWithNow(minAge, time.Now)
}

// NewDetectorWithNow injects the clock for tests.
func NewDetectorWithNow(minAge time.Duration, now func() time.Time) *Detector {
	return &Detector{
		minAge: minAge,
		prev:   make(map[string]stamp),
		now:    now,
	}
}

// Scan lists dir once and returns the paths that are ready for processing,
// plus the set of all candidate paths seen this cycle. Hidden files and
// non-regular entries are ignored. Files that vanish between the listing
// and the stat are skipped; the next scan sees the truth.
func (d *Detector) Scan(dir string) (ready []string, present map[string]struct{}, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("list %s: %w", dir, err)
	}

	present = make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)

		info, err := entry.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}

		present[path] = struct{}{}
		if d.observe(path, info) {
			ready = append(ready, path)
		}
	}

	// Forget files that left the directory so a same-named arrival later
	// starts a fresh stability check.
	for path := range d.prev {
		if _, ok := present[path]; !ok {
			delete(d.prev, path)
		}
	}
	return ready, present, nil
}

// observe records the current snapshot and reports readiness against the
// previous one.
func (d *Detector) observe(path string, info fs.FileInfo) bool {
	cur := stamp{size: info.Size(), mtime: info.ModTime()}
	old, seen := d.prev[path]
	d.prev[path] = cur

	if !seen || old != cur {
		return false
	}
	return d.now().Sub(cur.mtime) >= d.minAge
}
