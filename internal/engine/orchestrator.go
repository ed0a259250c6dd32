package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rostersync/rostersync/internal/directory"
	"github.com/rostersync/rostersync/internal/snapshot"
	"github.com/rostersync/rostersync/internal/store"
)

// Engine drives the fixed-order synchronization pipeline over one isolated
// batch of extract files. At most one run executes at a time; a second
// Sync while one is in flight fails fast with ErrCodeRunActive.
type Engine struct {
	store    *store.Store
	admin    directory.CourseAdmin
	ident    directory.IdentityDirectory
	snaps    *snapshot.Manager
	ids      IDGenerator
	settings Settings
	log      *slog.Logger

	running atomic.Bool
	stop    atomic.Bool
	counter atomic.Int64

	// state holds the latest StateLine for lock-free status reads.
	state atomic.Value

	mu   sync.Mutex
	last *RunState
}

// New assembles an engine. Settings zero values are filled with defaults.
func New(st *store.Store, admin directory.CourseAdmin, ident directory.IdentityDirectory, snaps *snapshot.Manager, ids IDGenerator, settings Settings, log *slog.Logger) *Engine {
	return &Engine{
		store:    st,
		admin:    admin,
		ident:    ident,
		snaps:    snaps,
		ids:      ids,
		settings: settings.withDefaults(),
		log:      log,
	}
}

// processors returns the pipeline in its fixed order. The order is
// load-bearing; see PipelineOrder.
func (e *Engine) processors() []kindProcessor {
	return []kindProcessor{
		sessionProcessor{e},
		courseSetProcessor{e},
		canonicalCourseProcessor{e},
		courseOfferingProcessor{e},
		enrollmentSetProcessor{e},
		sectionProcessor{e},
		sectionMeetingProcessor{e},
		personProcessor{e},
		enrollmentProcessor{e},
		courseMembershipProcessor{e},
		sectionMembershipProcessor{e},
	}
}

// Sync runs one synchronization over the batch waiting in the upload
// directory, applying per-run policy overrides from the job property bag.
// It returns the completed RunState; a failed batch is reported through
// RunState.Status rather than the error return, which is reserved for
// conditions that prevented the run from starting.
func (e *Engine) Sync(ctx context.Context, overrides map[string]string) (*RunState, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, &RunError{Code: ErrCodeRunActive, Message: "a synchronization is already in progress"}
	}
	defer e.running.Store(false)
	e.stop.Store(false)

	has, err := e.snaps.HasBatch()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, &RunError{Code: ErrCodeNoBatch, Message: "no extract files waiting in the upload directory"}
	}

	rs := newRunState(e.counter.Add(1), e.settings.Defaults, overrides, e.log)
	e.setLast(rs)
	e.log.Info("sync started", "run", rs.ID,
		"ignoreMissingSessions", rs.Policies.IgnoreMissingSessions,
		"ignoreMembershipRemovals", rs.Policies.IgnoreMembershipRemovals,
		"userRemovalMode", string(rs.Policies.UserRemovalMode))
	e.audit(ctx, "sync", "run "+rs.ID+" started")

	stopped := false
	for _, p := range e.processors() {
		if err := e.handleKind(ctx, rs, p); err != nil {
			rs.BatchOK = false
			if IsStopRequested(err) {
				stopped = true
			}
			e.log.Error("kind failed, batch marked not ok",
				"run", rs.ID, "kind", p.kind(), "error", err)
			e.audit(ctx, string(p.kind()), fmt.Sprintf("run %s: %v", rs.ID, err))
		}
		if p.kind() == KindSession {
			e.checkSessions(ctx, rs)
		}
	}

	success := !stopped && rs.BatchOK
	if rs.WorkDir != "" {
		if err := e.snaps.Close(rs.WorkDir, success); err != nil {
			e.log.Error("batch close failed", "run", rs.ID, "error", err)
			e.audit(ctx, "sync", fmt.Sprintf("run %s: %v", rs.ID, err))
			success = false
		}
	}
	rs.WorkDir = ""

	rs.SummaryText = rs.Summary.Render()
	if success {
		rs.Status = StatusComplete
	} else {
		rs.Status = StatusFailed
	}
	e.state.Store(rs.StateLine())
	e.log.Info("sync finished", "run", rs.ID, "status", string(rs.Status))
	e.audit(ctx, "sync", fmt.Sprintf("run %s finished %s:\n%s", rs.ID, rs.Status, rs.SummaryText))
	return rs, nil
}

// checkSessions flags a run whose sessions file yielded no valid sessions:
// with missing-parent suppression on, every dependent kind would be
// skipped, which almost always means a broken extract.
func (e *Engine) checkSessions(ctx context.Context, rs *RunState) {
	if rs.BatchOK && len(rs.SessionEids()) == 0 {
		e.log.Error("no current academic sessions after session ingest", "run", rs.ID)
		e.audit(ctx, string(KindSession), "run "+rs.ID+": no current academic sessions")
	}
}

// Stop requests a cooperative stop of the in-flight run. The run observes
// it at the next line, page, or stage boundary and finishes as failed.
func (e *Engine) Stop() {
	e.stop.Store(true)
}

func (e *Engine) stopRequested() bool {
	return e.stop.Load()
}

// stage records a processor stage transition and refreshes the published
// state line.
func (e *Engine) stage(rs *RunState, kind Kind, stage Stage) {
	rs.setStage(kind, stage)
	e.state.Store(rs.StateLine())
}

// Status reports the current run's state line, or "idle" before any run.
func (e *Engine) Status() string {
	if s, ok := e.state.Load().(string); ok {
		return s
	}
	return "idle"
}

// Running reports whether a run is in flight.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// LastRun returns the most recently started run's state.
func (e *Engine) LastRun() *RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

func (e *Engine) setLast(rs *RunState) {
	e.mu.Lock()
	e.last = rs
	e.mu.Unlock()
}

// audit appends a row to the persistent run log. Audit failures are logged
// and swallowed; bookkeeping must not take a run down.
func (e *Engine) audit(ctx context.Context, source, message string) {
	if err := e.store.Audit(ctx, source, message); err != nil {
		e.log.Warn("audit write failed", "source", source, "error", err)
	}
}
