// Package snapshot isolates one batch of uploaded extract files into a
// private working directory before processing, so files arriving mid-run
// never mix into the run in flight. Processing reads only from the
// snapshot; the upload directory is free for the next delivery as soon as
// the move completes.
package snapshot

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// dirAttempts bounds how many times Isolate retries creating a uniquely
// named snapshot directory before giving up.
const dirAttempts = 5

const (
	suffixFinished = "-finished"
	suffixFailed   = "-failed"
)

// Manager moves upload batches in and out of snapshot directories under a
// single base directory.
type Manager struct {
	base string
	log  *slog.Logger
}

// New returns a Manager rooted at the upload directory base.
func New(base string, log *slog.Logger) *Manager {
	return &Manager{base: base, log: log}
}

// Base returns the upload directory.
func (m *Manager) Base() string { return m.base }

// HasBatch reports whether at least one regular file is waiting in the
// upload directory.
func (m *Manager) HasBatch() (bool, error) {
	entries, err := os.ReadDir(m.base)
	if err != nil {
		return false, fmt.Errorf("scan upload dir: %w", err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			return true, nil
		}
	}
	return false, nil
}

// Isolate moves every regular file in the upload directory into a fresh
// snapshot directory and returns its path. If any move fails the files
// already moved are put back so the batch stays whole in the upload
// directory.
func (m *Manager) Isolate() (string, error) {
	dir, err := m.nextDir()
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(m.base)
	if err != nil {
		return "", fmt.Errorf("scan upload dir: %w", err)
	}
	var moved []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		src := filepath.Join(m.base, e.Name())
		dst := filepath.Join(dir, e.Name())
		if err := os.Rename(src, dst); err != nil {
			m.rollback(dir, moved)
			return "", fmt.Errorf("isolate %s: %w", e.Name(), err)
		}
		moved = append(moved, e.Name())
	}
	m.log.Info("batch isolated", "dir", dir, "files", len(moved))
	return dir, nil
}

// nextDir creates a snapshot directory named after the current time,
// retrying with later timestamps if the name is already taken.
func (m *Manager) nextDir() (string, error) {
	var lastErr error
	for i := 0; i < dirAttempts; i++ {
		dir := filepath.Join(m.base, fmt.Sprintf("batch-%d", time.Now().UnixNano()))
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("create snapshot dir: %w", lastErr)
}

// rollback moves already-isolated files back to the upload directory and
// removes the snapshot directory. Failures here are logged, not returned;
// the original error is what the caller reports.
func (m *Manager) rollback(dir string, names []string) {
	for _, name := range names {
		if err := os.Rename(filepath.Join(dir, name), filepath.Join(m.base, name)); err != nil {
			m.log.Warn("rollback move failed", "file", name, "error", err)
		}
	}
	if err := os.Remove(dir); err != nil {
		m.log.Warn("rollback cleanup failed", "dir", dir, "error", err)
	}
}

// Close marks a snapshot directory as completed by renaming it with a
// -finished or -failed suffix, keeping the files around for inspection.
func (m *Manager) Close(dir string, success bool) error {
	suffix := suffixFailed
	if success {
		suffix = suffixFinished
	}
	dst := dir + suffix
	if err := os.Rename(dir, dst); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	m.log.Info("batch closed", "dir", dst)
	return nil
}

// IsClosed reports whether the directory name carries a completion suffix.
func IsClosed(dir string) bool {
	return strings.HasSuffix(dir, suffixFinished) || strings.HasSuffix(dir, suffixFailed)
}
