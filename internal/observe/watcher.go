package observe

// Sampling is best effort. A failed sample is skipped, never fatal.

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats summarises the samples taken of a child process.
type Stats struct {
	PeakRSS    uint64  // bytes
	CPUPercent float64 // last sample
	Samples    int
	Runtime    time.Duration
}

// Watcher samples a child process's resource usage until stopped.
type Watcher struct {
	pid      int32
	interval time.Duration

	mu      sync.Mutex
	stats   Stats
	started time.Time
	stopped bool

	stop chan struct{}
	done chan struct{}
}

// New creates a watcher for a PID
func New(pid int, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Watcher{
		pid:      int32(pid),
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Exists checks if the PID is still alive
func (w *Watcher) Exists() bool {
	ok, err := process.PidExists(w.pid)
	return err == nil && ok
}

// Start samples in the background until Stop is called or ctx ends.
// Runtime is measured from here.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	w.started = time.Now()
	w.mu.Unlock()
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.sample()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-ticker.C:
				w.sample()
			}
		}
	}()
}

// Stop ends sampling and returns what was observed. Only the first call
// fixes Runtime.
func (w *Watcher) Stop() Stats {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		w.stats.Runtime = time.Since(w.started)
		close(w.stop)
	}
	w.mu.Unlock()
	<-w.done
	return w.Stats()
}

// Stats returns the samples taken so far. Runtime runs up to now until
// Stop is called.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	stats := w.stats
	if !w.stopped {
		stats.Runtime = time.Since(w.started)
	}
	return stats
}

func (w *Watcher) sample() {
	p, err := process.NewProcess(w.pid)
	if err != nil {
		return
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return
	}
	cpu, _ := p.CPUPercent()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Samples++
	w.stats.CPUPercent = cpu
	if mem.RSS > w.stats.PeakRSS {
		w.stats.PeakRSS = mem.RSS
	}
}
