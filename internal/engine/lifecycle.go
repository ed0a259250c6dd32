package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rostersync/rostersync/internal/directory"
	"github.com/rostersync/rostersync/internal/extract"
	"github.com/rostersync/rostersync/internal/store"
)

// action is the directory outcome of one ingested line.
type action int

const (
	// actionIgnore means no directory mutation happened: the record was
	// unchanged, or a dependency filter skipped the line.
	actionIgnore action = iota
	actionAdd
	actionUpdate
)

// LineError is a line-level validation failure: the line is counted as an
// error and skipped, and processing continues. Any other error escaping a
// processor is fatal to the batch.
type LineError struct {
	Reason string
}

func (e *LineError) Error() string { return e.Reason }

func lineErrorf(format string, args ...any) *LineError {
	return &LineError{Reason: fmt.Sprintf(format, args...)}
}

// kindProcessor supplies the kind-specific behavior plugged into the
// shared four-phase lifecycle. Implementations hold no per-run state; the
// RunState carries everything run-scoped.
type kindProcessor interface {
	kind() Kind

	// line ingests one trimmed extract record and reports the directory
	// action taken. Validation failures return *LineError.
	line(ctx context.Context, rs *RunState, fields []string) (action, error)

	// sweep reconciles previously stamped records this run's file did not
	// reaffirm, advancing rs.current.Deletes per removal.
	sweep(ctx context.Context, rs *RunState) error
}

// handleKind runs one processor through prepare, ingest, reconcile and
// finalize. Finalize always runs: a failed or skipped kind still publishes
// its counters so the summary stays consistent.
func (e *Engine) handleKind(ctx context.Context, rs *RunState, p kindProcessor) (err error) {
	kind := p.kind()
	e.stage(rs, kind, StageStart)
	rs.current = HandlerStats{Start: time.Now().Unix()}

	defer func() {
		rs.current.End = time.Now().Unix()
		rs.current.Seconds = int(rs.current.End - rs.current.Start)
		rs.Summary.add(kind, rs.current)
		if err != nil {
			e.stage(rs, kind, StageFail)
		} else {
			e.stage(rs, kind, StageDone)
			e.log.Info("kind finished", "run", rs.ID, "kind", kind,
				"lines", rs.current.Lines, "errors", rs.current.Errors,
				"adds", rs.current.Adds, "updates", rs.current.Updates,
				"deletes", rs.current.Deletes, "seconds", rs.current.Seconds)
		}
	}()

	if !rs.BatchOK {
		return nil
	}

	// The batch is isolated lazily, on the first processor's first stage.
	if rs.WorkDir == "" {
		e.stage(rs, kind, StageMove)
		dir, ierr := e.snaps.Isolate()
		if ierr != nil {
			return fmt.Errorf("isolate batch: %w", ierr)
		}
		rs.WorkDir = dir
	}

	e.stage(rs, kind, StageRead)
	readAll, err := e.ingest(ctx, rs, p)
	if err != nil {
		return err
	}

	e.stage(rs, kind, StageProcess)
	// A partially read file must never trigger mass deletion.
	if readAll && rs.current.Lines > 0 {
		if err := p.sweep(ctx, rs); err != nil {
			return err
		}
	}

	e.stage(rs, kind, StageCleanup)
	return nil
}

// ingest consumes the kind's extract file line by line. It reports whether
// the file was read through to the end; an absent or unreadable file yields
// zero lines and false, which suppresses the sweep.
func (e *Engine) ingest(ctx context.Context, rs *RunState, p kindProcessor) (bool, error) {
	kind := p.kind()
	path := filepath.Join(rs.WorkDir, kind.Filename())
	r, err := extract.Open(path, e.settings.HasHeader)
	if err != nil {
		e.audit(ctx, string(kind), fmt.Sprintf("extract file unreadable, treating as empty: %v", err))
		return false, nil
	}
	if r == nil {
		e.log.Info("no extract file for kind, skipping", "run", rs.ID, "kind", kind)
		return false, nil
	}
	defer r.Close()

	for {
		if e.stopRequested() {
			return false, newStopError(rs.ID, kind)
		}
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		if err != nil {
			// Tokenizer failure mid-file: count it and stop reading; the
			// incomplete read suppresses this kind's sweep.
			rs.current.Errors++
			e.audit(ctx, string(kind), fmt.Sprintf("read aborted at line %d: %v", rs.current.Lines+1, err))
			return false, nil
		}
		rs.current.Lines++
		act, err := p.line(ctx, rs, fields)
		var le *LineError
		if errors.As(err, &le) {
			rs.current.Errors++
			e.log.Warn("invalid line skipped", "run", rs.ID, "kind", kind,
				"line", rs.current.Lines, "reason", le.Reason)
			continue
		}
		if err != nil {
			return false, fmt.Errorf("%s line %d: %w", kind, rs.current.Lines, err)
		}
		switch act {
		case actionAdd:
			rs.current.Adds++
		case actionUpdate:
			rs.current.Updates++
		}
	}
}

// writeAction maps a directory upsert result onto line accounting.
func writeAction(res directory.WriteResult) action {
	switch res {
	case directory.WriteCreated:
		return actionAdd
	case directory.WriteUpdated:
		return actionUpdate
	}
	return actionIgnore
}

// sweepLedger pages stale ledger entries of a parentless kind and applies
// remove to each distinct identifier, deleting its tracking rows afterwards
// so a removed record does not get re-swept forever. A missing removal
// target still clears the tracking rows but is not counted as a delete.
func (e *Engine) sweepLedger(ctx context.Context, rs *RunState, kind Kind, remove func(context.Context, string) error) error {
	return e.sweepLedgerPages(ctx, rs, kind, nil, remove)
}

// sweepChildLedger sweeps a kind whose records declare a parent. When
// missing-parent suppression is on, the stale query is restricted to
// entries whose stored parent is in the run's valid set, so a child skipped
// during ingest because its parent vanished is not deleted either; an empty
// valid set skips the sweep entirely rather than risking a mass removal.
func (e *Engine) sweepChildLedger(ctx context.Context, rs *RunState, kind Kind, parents []string, remove func(context.Context, string) error) error {
	if rs.Policies.IgnoreMissingSessions && len(parents) == 0 {
		e.log.Warn("no valid parents this run, skipping sweep",
			"run", rs.ID, "kind", kind)
		return nil
	}
	if !rs.Policies.IgnoreMissingSessions {
		parents = nil
	}
	return e.sweepLedgerPages(ctx, rs, kind, parents, remove)
}

func (e *Engine) sweepLedgerPages(ctx context.Context, rs *RunState, kind Kind, parents []string, remove func(context.Context, string) error) error {
	page := e.settings.PageSize
	seen := make(map[string]struct{})
	for {
		if e.stopRequested() {
			return newStopError(rs.ID, kind)
		}
		// Every returned row's tracking rows are deleted below, so each
		// query restarts at offset zero over a strictly shrinking set;
		// advancing the offset instead would skip rows past page one.
		entries, err := e.store.StalePage(ctx, string(kind), rs.Stamp, parents, 0, page)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if _, dup := seen[entry.EID]; !dup {
				seen[entry.EID] = struct{}{}
				if err := remove(ctx, entry.EID); err != nil {
					if !directory.IsNotFound(err) {
						return err
					}
					e.log.Warn("stale record already absent from directory",
						"run", rs.ID, "kind", kind, "eid", entry.EID)
				} else {
					rs.current.Deletes++
				}
			}
			if err := e.store.DeleteKindEID(ctx, string(kind), entry.EID); err != nil {
				return err
			}
		}
		if len(entries) < page {
			return nil
		}
	}
}

// sweepMemberships pages stale membership rows of one mode and applies
// remove to each distinct (user, container) pair. When missing-parent
// suppression is on, the page query is restricted to the run's valid
// containers; an empty valid set skips the sweep entirely rather than
// risking a mass removal.
func (e *Engine) sweepMemberships(ctx context.Context, rs *RunState, kind Kind, mode string, containers []string, remove func(context.Context, store.Membership) error) error {
	if rs.Policies.IgnoreMissingSessions && len(containers) == 0 {
		e.log.Warn("no valid containers this run, skipping membership sweep",
			"run", rs.ID, "kind", kind)
		return nil
	}
	if !rs.Policies.IgnoreMissingSessions {
		containers = nil
	}
	page := e.settings.PageSize
	seen := make(map[string]struct{})
	for {
		if e.stopRequested() {
			return newStopError(rs.ID, kind)
		}
		// Every returned row is deleted below, so the query restarts at
		// offset zero over a strictly shrinking set.
		rows, err := e.store.StaleMembershipsPage(ctx, mode, rs.Stamp, containers, 0, page)
		if err != nil {
			return err
		}
		for _, m := range rows {
			key := m.ContainerEID + "\x00" + m.UserEID
			if _, dup := seen[key]; dup {
				// Duplicate tracking rows for one pair are a defect;
				// delete the extras without a second removal.
				if err := e.store.DeleteMembership(ctx, m.ID); err != nil {
					return err
				}
				continue
			}
			seen[key] = struct{}{}
			if err := remove(ctx, m); err != nil {
				if !directory.IsNotFound(err) {
					return err
				}
				e.log.Warn("stale membership already absent from directory",
					"run", rs.ID, "kind", kind, "container", m.ContainerEID, "user", m.UserEID)
			} else {
				rs.current.Deletes++
			}
			if err := e.store.DeleteMembership(ctx, m.ID); err != nil {
				return err
			}
		}
		if len(rows) < page {
			return nil
		}
	}
}
