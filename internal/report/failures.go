package report

import "sync"

// FailureSample keeps what is needed to debug a failed invocation without
// digging through logs.
type FailureSample struct {
	ID       string  `json:"id"`
	Tool     string  `json:"tool"`
	Mode     Mode    `json:"mode"`
	Error    string  `json:"error"`
	Duration float64 `json:"duration_seconds"`
}

// FailureLog is a ring buffer of recent tool failures (last N)
type FailureLog struct {
	samples []FailureSample
	maxSize int
	mu      sync.RWMutex
}

var globalFailureLog = NewFailureLog(50)

// NewFailureLog creates a failure log with fixed size
func NewFailureLog(maxSize int) *FailureLog {
	return &FailureLog{
		samples: make([]FailureSample, 0, maxSize),
		maxSize: maxSize,
	}
}

// GlobalFailures returns the global failure log
func GlobalFailures() *FailureLog {
	return globalFailureLog
}

// Record adds r if it failed; other outcomes are ignored
func (f *FailureLog) Record(r *Result) {
	if r.Outcome != OutcomeToolFailed {
		return
	}

	sample := FailureSample{
		ID:       r.ID,
		Tool:     r.Tool,
		Mode:     r.Mode,
		Error:    r.Error,
		Duration: r.Duration.Seconds(),
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.samples) >= f.maxSize {
		f.samples = f.samples[1:]
	}
	f.samples = append(f.samples, sample)
}

// GetRecent returns recent failures (newest first)
func (f *FailureLog) GetRecent(n int) []FailureSample {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if n <= 0 || n > len(f.samples) {
		n = len(f.samples)
	}

	result := make([]FailureSample, n)
	for i := 0; i < n; i++ {
		result[i] = f.samples[len(f.samples)-1-i]
	}
	return result
}

// Count returns the number of failures held
func (f *FailureLog) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.samples)
}
