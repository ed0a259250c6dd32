package engine

import (
	"fmt"
	"log/slog"
	"time"
)

// Status is the lifecycle status of a run.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// RunState is the run-scoped shared state threaded through every pipeline
// stage. It carries no business logic. A RunState is exclusively owned by
// the orchestrator for the run's duration; it is written only by the single
// orchestrator goroutine, published for read-only status snapshots, and
// discarded at completion except for the rendered summary.
type RunState struct {
	// ID is "<counter>:<epoch seconds>", unique per process lifetime.
	ID string

	Status  Status
	Started time.Time

	// Stamp is the run's single logical timestamp (unix nanoseconds),
	// computed once at run start and shared by every record the run
	// touches. The sweep selects ledger entries whose stamp differs.
	Stamp int64

	// Policies are resolved once at run start (overrides over defaults).
	Policies Policies

	// BatchOK is cleared by the first fatal processing error; once false,
	// remaining kinds skip ingest/reconcile but still finalize.
	BatchOK bool

	// WorkDir is the private batch processing directory, set when the
	// arriving batch is isolated (lazily, on the first processor's first
	// stage).
	WorkDir string

	// CurrentKind and CurrentStage expose pipeline progress for status
	// reporting.
	CurrentKind  Kind
	CurrentStage Stage

	// Valid-id sets, populated incrementally during each kind's ingest.
	// Later kinds consult them only when Policies.IgnoreMissingSessions
	// is true.
	validSessions       map[string]struct{}
	validOfferings      map[string]struct{}
	validEnrollmentSets map[string]struct{}
	validSections       map[string]struct{}

	// Per-kind stats being accumulated for the kind currently running.
	current HandlerStats

	// Summary collects published per-kind stats in pipeline order.
	Summary *Summary

	// SummaryText is the rendered statistics block, set at completion of a
	// successful run.
	SummaryText string
}

func newRunState(counter int64, defaults Policies, overrides map[string]string, log *slog.Logger) *RunState {
	now := time.Now()
	return &RunState{
		ID:       fmt.Sprintf("%d:%d", counter, now.Unix()),
		Status:   StatusRunning,
		Started:  now,
		Stamp:    now.UnixNano(),
		Policies: resolvePolicies(defaults, overrides, log),
		BatchOK:  true,
		Summary:  newSummary(),
	}
}

// StateLine describes the run the way an operator asks about it: the
// overall status while idle or finished, or the in-flight kind and stage
// while running.
func (r *RunState) StateLine() string {
	if r.Status == StatusRunning && r.CurrentKind != "" {
		return fmt.Sprintf("Sync (%s): %s state is: %s", r.ID, r.CurrentKind, r.CurrentStage)
	}
	return string(r.Status)
}

// setStage records a processor stage transition. Stats publication happens
// separately in finalize so a failed stage still publishes counters.
func (r *RunState) setStage(kind Kind, stage Stage) {
	r.CurrentKind = kind
	r.CurrentStage = stage
}

// MarkSession records a session eid seen in the current sessions file.
func (r *RunState) MarkSession(eid string) int {
	if r.validSessions == nil {
		r.validSessions = make(map[string]struct{})
	}
	if eid != "" {
		r.validSessions[eid] = struct{}{}
	}
	return len(r.validSessions)
}

// MarkCourseOffering records an offering eid seen in the current file.
func (r *RunState) MarkCourseOffering(eid string) int {
	if r.validOfferings == nil {
		r.validOfferings = make(map[string]struct{})
	}
	if eid != "" {
		r.validOfferings[eid] = struct{}{}
	}
	return len(r.validOfferings)
}

// MarkEnrollmentSet records an enrollment set eid seen in the current file.
func (r *RunState) MarkEnrollmentSet(eid string) int {
	if r.validEnrollmentSets == nil {
		r.validEnrollmentSets = make(map[string]struct{})
	}
	if eid != "" {
		r.validEnrollmentSets[eid] = struct{}{}
	}
	return len(r.validEnrollmentSets)
}

// MarkSection records a section eid seen in the current file.
func (r *RunState) MarkSection(eid string) int {
	if r.validSections == nil {
		r.validSections = make(map[string]struct{})
	}
	if eid != "" {
		r.validSections[eid] = struct{}{}
	}
	return len(r.validSections)
}

// ProcessSession is the dependency filter for records declaring a session
// parent: true when the session is in the current run's valid set, or when
// missing-parent suppression is off.
func (r *RunState) ProcessSession(eid string) bool {
	if !r.Policies.IgnoreMissingSessions {
		return true
	}
	_, ok := r.validSessions[eid]
	return ok
}

// ProcessCourseOffering is the dependency filter for records declaring a
// course offering parent.
func (r *RunState) ProcessCourseOffering(eid string) bool {
	if !r.Policies.IgnoreMissingSessions {
		return true
	}
	_, ok := r.validOfferings[eid]
	return ok
}

// ProcessEnrollmentSet is the dependency filter for records declaring an
// enrollment set parent.
func (r *RunState) ProcessEnrollmentSet(eid string) bool {
	if !r.Policies.IgnoreMissingSessions {
		return true
	}
	_, ok := r.validEnrollmentSets[eid]
	return ok
}

// ProcessSection is the dependency filter for records declaring a section
// parent.
func (r *RunState) ProcessSection(eid string) bool {
	if !r.Policies.IgnoreMissingSessions {
		return true
	}
	_, ok := r.validSections[eid]
	return ok
}

// SessionEids returns the current valid session set as a slice.
func (r *RunState) SessionEids() []string { return setToSlice(r.validSessions) }

// CourseOfferingEids returns the current valid offering set as a slice.
func (r *RunState) CourseOfferingEids() []string { return setToSlice(r.validOfferings) }

// EnrollmentSetEids returns the current valid enrollment set eids.
func (r *RunState) EnrollmentSetEids() []string { return setToSlice(r.validEnrollmentSets) }

// SectionEids returns the current valid section set as a slice.
func (r *RunState) SectionEids() []string { return setToSlice(r.validSections) }

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for eid := range set {
		out = append(out, eid)
	}
	return out
}
