package snapshot

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	base := t.TempDir()
	return New(base, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0o644))
}

func TestHasBatch(t *testing.T) {
	m := newTestManager(t)

	has, err := m.HasBatch()
	require.NoError(t, err)
	assert.False(t, has)

	// Sub-directories don't count as a batch.
	require.NoError(t, os.Mkdir(filepath.Join(m.Base(), "batch-1-finished"), 0o755))
	has, err = m.HasBatch()
	require.NoError(t, err)
	assert.False(t, has)

	touch(t, m.Base(), "sessions.csv")
	has, err = m.HasBatch()
	require.NoError(t, err)
	assert.True(t, has)
}

func TestIsolate_MovesAllFiles(t *testing.T) {
	m := newTestManager(t)
	touch(t, m.Base(), "sessions.csv")
	touch(t, m.Base(), "people.csv")

	dir, err := m.Isolate()
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.FileExists(t, filepath.Join(dir, "sessions.csv"))
	assert.FileExists(t, filepath.Join(dir, "people.csv"))

	has, err := m.HasBatch()
	require.NoError(t, err)
	assert.False(t, has, "upload dir is empty after isolate")
}

func TestIsolate_LeavesDirectoriesBehind(t *testing.T) {
	m := newTestManager(t)
	touch(t, m.Base(), "sessions.csv")
	require.NoError(t, os.Mkdir(filepath.Join(m.Base(), "old-batch"), 0o755))

	dir, err := m.Isolate()
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "old-batch"))
	assert.DirExists(t, filepath.Join(m.Base(), "old-batch"))
}

func TestClose_RenamesWithSuffix(t *testing.T) {
	m := newTestManager(t)
	touch(t, m.Base(), "sessions.csv")

	dir, err := m.Isolate()
	require.NoError(t, err)
	require.NoError(t, m.Close(dir, true))
	assert.NoDirExists(t, dir)
	assert.DirExists(t, dir+"-finished")
	assert.True(t, IsClosed(dir+"-finished"))

	touch(t, m.Base(), "sessions.csv")
	dir, err = m.Isolate()
	require.NoError(t, err)
	require.NoError(t, m.Close(dir, false))
	assert.DirExists(t, dir+"-failed")
	assert.True(t, IsClosed(dir+"-failed"))
	assert.False(t, IsClosed(dir))
}
