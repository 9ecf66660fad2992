package report

import (
	"regexp"
	"strconv"
	"strings"
)

// Summary is the headline of a compiler's diagnostic output.
type Summary struct {
	Headline string   `json:"headline"`
	Errors   int      `json:"errors"`
	Warnings int      `json:"warnings"`
	Details  []string `json:"details,omitempty"`
	Failed   bool     `json:"failed"`
}

var (
	countLine = regexp.MustCompile(`(?i)^\d+ err`)
	errCount  = regexp.MustCompile(`(?i)(\d+)\s+error`)
	warnCount = regexp.MustCompile(`(?i)(\d+)\s+warning`)
)

// ParseSummary reads compiler stderr. The headline is the trailing
// "N error(s), M warning(s)" line when present, else the first line; the
// remaining lines are details. Empty output yields a zero Summary.
func ParseSummary(stderr string) Summary {
	lines := strings.Split(strings.TrimRight(stderr, "\n"), "\n")
	if len(lines) == 1 && strings.TrimSpace(lines[0]) == "" {
		return Summary{}
	}

	var s Summary
	if last := lines[len(lines)-1]; countLine.MatchString(last) {
		s.Headline = last
		s.Details = lines[:len(lines)-1]
	} else {
		s.Headline = lines[0]
		s.Details = lines[1:]
	}
	if len(s.Details) == 0 {
		s.Details = nil
	}

	if m := errCount.FindStringSubmatch(s.Headline); m != nil {
		s.Errors, _ = strconv.Atoi(m[1])
	}
	if m := warnCount.FindStringSubmatch(s.Headline); m != nil {
		s.Warnings, _ = strconv.Atoi(m[1])
	}
	// a headline that is not a count line is an error message by itself
	s.Failed = s.Errors > 0 || !countLine.MatchString(s.Headline)
	return s
}
