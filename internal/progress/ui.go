package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// JobRow is one active job in the status table.
type JobRow struct {
	File    string
	Stage   string
	Task    string
	Percent float64
	RateBps float64
	Elapsed time.Duration
}

// View is a point-in-time snapshot of the daemon for rendering.
type View struct {
	InputDir  string
	OutputDir string
	Rows      []JobRow
	Succeeded int
	Failed    int
}

const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
)

func colorize(s string, color string, enabled bool) string {
	if !enabled || color == "" {
		return s
	}
	return color + s + colorReset
}

// IsTTY reports whether w is an interactive terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// Render formats the view as the multi-line dashboard body.
func Render(v View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", colorize(fmt.Sprintf("watching %s -> %s", v.InputDir, v.OutputDir), colorCyan, true))
	fmt.Fprintf(&b, "%s\n", colorize(fmt.Sprintf("jobs: %d active | %d done | %d failed", len(v.Rows), v.Succeeded, v.Failed), colorGreen, true))

	if len(v.Rows) == 0 {
		fmt.Fprintln(&b, "idle")
		return strings.TrimSuffix(b.String(), "\n")
	}

	headers := []string{"file", "stage", "task", "%", "rate", "elapsed"}
	widths := []int{28, 12, 14, 6, 11, 9}
	rows := make([][]string, 0, len(v.Rows))
	for _, row := range v.Rows {
		task := row.Task
		if task == "" {
			task = "-"
		}
		rows = append(rows, []string{
			truncate(row.File, widths[0]),
			row.Stage,
			truncate(task, widths[2]),
			fmt.Sprintf("%.1f", row.Percent),
			formatRate(row.RateBps),
			formatElapsed(row.Elapsed),
		})
	}
	renderTable(&b, headers, rows, widths)
	return strings.TrimSuffix(b.String(), "\n")
}

func renderTable(w io.Writer, headers []string, rows [][]string, widths []int) {
	var line strings.Builder
	for i, h := range headers {
		fmt.Fprintf(&line, "%-*s  ", widths[i], h)
	}
	fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	for _, row := range rows {
		line.Reset()
		for i, cell := range row {
			fmt.Fprintf(&line, "%-*s  ", widths[i], cell)
		}
		fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatRate(bps float64) string {
	switch {
	case bps <= 0:
		return "-"
	case bps >= 1<<20:
		return fmt.Sprintf("%.1f MB/s", bps/(1<<20))
	case bps >= 1<<10:
		return fmt.Sprintf("%.1f KB/s", bps/(1<<10))
	default:
		return fmt.Sprintf("%.0f B/s", bps)
	}
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
