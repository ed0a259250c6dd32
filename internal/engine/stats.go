package engine

import (
	"fmt"
	"strings"
)

// HandlerStats holds the per-kind counters for one run.
//
// Lines counts every consumed input line, including invalid ones. Errors
// counts line-level validation failures. Adds/Updates/Deletes count
// directory mutations. Start/End are unix seconds; Seconds is the elapsed
// wall time for the kind.
type HandlerStats struct {
	Lines   int
	Errors  int
	Adds    int
	Updates int
	Deletes int
	Start   int64
	Seconds int
	End     int64
}

// Summary tabulates the per-kind stats of a completed run, in pipeline
// order, plus a grand total row.
type Summary struct {
	kinds []Kind
	stats map[Kind]HandlerStats
}

func newSummary() *Summary {
	return &Summary{stats: make(map[Kind]HandlerStats)}
}

// add publishes one kind's stats. Insertion order is preserved so the
// rendered summary matches the pipeline order.
func (s *Summary) add(kind Kind, hs HandlerStats) {
	if _, seen := s.stats[kind]; !seen {
		s.kinds = append(s.kinds, kind)
	}
	s.stats[kind] = hs
}

// Stats returns the published stats for kind, and whether any exist.
func (s *Summary) Stats(kind Kind) (HandlerStats, bool) {
	hs, ok := s.stats[kind]
	return hs, ok
}

// Totals sums the published per-kind counters.
func (s *Summary) Totals() HandlerStats {
	var t HandlerStats
	for _, k := range s.kinds {
		hs := s.stats[k]
		t.Lines += hs.Lines
		t.Errors += hs.Errors
		t.Adds += hs.Adds
		t.Updates += hs.Updates
		t.Deletes += hs.Deletes
		t.Seconds += hs.Seconds
	}
	return t
}

// Render produces the human-readable statistics block logged at the end of
// a successful run, one row per kind plus a total row.
func (s *Summary) Render() string {
	var sb strings.Builder
	for _, k := range s.kinds {
		hs := s.stats[k]
		fmt.Fprintf(&sb, "  - %-20s: processed %6d lines with %4d errors in %4d seconds: %4d adds, %4d updates, %4d deletes\n",
			string(k), hs.Lines, hs.Errors, hs.Seconds, hs.Adds, hs.Updates, hs.Deletes)
	}
	t := s.Totals()
	fmt.Fprintf(&sb, "  --- TOTAL:         processed %6d lines with %5d errors in %5d seconds: %5d adds, %5d updates, %5d deletes\n",
		t.Lines, t.Errors, t.Seconds, t.Adds, t.Updates, t.Deletes)
	return sb.String()
}
