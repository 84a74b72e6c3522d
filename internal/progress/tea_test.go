package progress

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestRunDashboard_StopBlocksUntilProgramExits(t *testing.T) {
	var buf bytes.Buffer
	stop := RunDashboard(context.Background(), &buf, func() View {
		return View{InputDir: "in", OutputDir: "out"}
	}, func() {})

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return after the program exited")
	}
}
