package observe

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatcherSamplesSelf(t *testing.T) {
	w := New(os.Getpid(), 5*time.Millisecond)
	if !w.Exists() {
		t.Fatal("own pid should exist")
	}
	w.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	stats := w.Stop()

	if stats.Samples == 0 {
		t.Skip("process sampling not supported on this platform")
	}
	if stats.PeakRSS == 0 {
		t.Error("expected non-zero RSS for the test process")
	}
}

func TestWatcherStopTwice(t *testing.T) {
	w := New(os.Getpid(), time.Millisecond)
	w.Start(context.Background())
	time.Sleep(2 * time.Millisecond)
	first := w.Stop()
	time.Sleep(2 * time.Millisecond)
	second := w.Stop()

	if first.Runtime <= 0 {
		t.Errorf("runtime = %v", first.Runtime)
	}
	if second.Runtime != first.Runtime {
		t.Error("second Stop moved the runtime")
	}
}
