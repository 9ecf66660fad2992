package report

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFinishOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		code        int
		intercepted bool
		err         error
		want        Outcome
	}{
		{"returned", 0, false, nil, OutcomeCompleted},
		{"exit zero", 0, true, nil, OutcomeIntercepted},
		{"exit non-zero is still intercepted", 3, true, nil, OutcomeIntercepted},
		{"error", 0, false, errors.New("boom"), OutcomeToolFailed},
		{"error after exit", 1, true, errors.New("boom"), OutcomeToolFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResult("closure", ModeFixed, []string{"--js", "a.js"})
			r.Finish(tt.code, tt.intercepted, tt.err)

			if r.Outcome != tt.want {
				t.Errorf("outcome = %s, want %s", r.Outcome, tt.want)
			}
			if r.ExitCode != tt.code || r.Intercepted != tt.intercepted {
				t.Errorf("exit = %d/%v", r.ExitCode, r.Intercepted)
			}
			if r.EndTime.Before(r.StartTime) {
				t.Error("end before start")
			}
			if tt.err != nil && r.Error != tt.err.Error() {
				t.Errorf("error = %q", r.Error)
			}
		})
	}
}

func TestNewResultCopiesArgs(t *testing.T) {
	args := []string{"a"}
	r := NewResult("t", ModeDynamic, args)
	args[0] = "b"
	if r.Args[0] != "a" {
		t.Error("args aliased")
	}
	if r.ID == "" {
		t.Error("missing id")
	}
}

func TestMetricsRecordResult(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.IncrStarted(ModeFixed)
	r := NewResult("closure", ModeFixed, nil)
	r.Finish(2, true, nil)
	m.RecordResult(r)

	if got := testutil.ToFloat64(m.started.WithLabelValues("fixed")); got != 1 {
		t.Errorf("started = %v", got)
	}
	if got := testutil.ToFloat64(m.finished.WithLabelValues("fixed", "intercepted")); got != 1 {
		t.Errorf("finished = %v", got)
	}
	if got := testutil.ToFloat64(m.exitCodes.WithLabelValues("closure", "2")); got != 1 {
		t.Errorf("exit codes = %v", got)
	}
	if got := testutil.ToFloat64(m.inFlight); got != 0 {
		t.Errorf("in flight = %v", got)
	}

	m.ObserveCache("hit")
	m.ObservePeakRSS("closure", 4096)
	if got := testutil.ToFloat64(m.cache.WithLabelValues("hit")); got != 1 {
		t.Errorf("cache hits = %v", got)
	}
	if got := testutil.ToFloat64(m.peakRSS.WithLabelValues("closure")); got != 4096 {
		t.Errorf("peak rss = %v", got)
	}
}

func TestExport(t *testing.T) {
	Global().ObserveCache("load")

	out, err := Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "toolshim_entry_cache_lookups_total") {
		t.Errorf("missing cache counter in:\n%s", out)
	}
}

func TestFailureLog(t *testing.T) {
	log := NewFailureLog(2)

	ok := NewResult("ok", ModeFixed, nil)
	ok.Finish(0, false, nil)
	log.Record(ok)
	if log.Count() != 0 {
		t.Fatal("successful result recorded")
	}

	for _, tool := range []string{"a", "b", "c"} {
		r := NewResult(tool, ModeDynamic, nil)
		r.Finish(0, false, errors.New(tool+" failed"))
		log.Record(r)
	}

	recent := log.GetRecent(0)
	if len(recent) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(recent))
	}
	if recent[0].Tool != "c" || recent[1].Tool != "b" {
		t.Errorf("expected newest first, got %v", recent)
	}
}

func TestParseSummary(t *testing.T) {
	t.Run("count line", func(t *testing.T) {
		s := ParseSummary("a.js:1: ERROR - missing ;\n1 error(s), 2 warning(s)\n")
		if s.Errors != 1 || s.Warnings != 2 || !s.Failed {
			t.Errorf("unexpected summary %+v", s)
		}
		if len(s.Details) != 1 {
			t.Errorf("details = %v", s.Details)
		}
	})

	t.Run("clean", func(t *testing.T) {
		s := ParseSummary("0 error(s), 0 warning(s)\n")
		if s.Failed || s.Errors != 0 {
			t.Errorf("unexpected summary %+v", s)
		}
	})

	t.Run("plain message", func(t *testing.T) {
		s := ParseSummary("Exception in thread main\n\tat Foo\n")
		if s.Headline != "Exception in thread main" || !s.Failed {
			t.Errorf("unexpected summary %+v", s)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if s := ParseSummary(""); s.Failed || s.Headline != "" {
			t.Errorf("unexpected summary %+v", s)
		}
	})
}
