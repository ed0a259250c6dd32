package intake

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rostersync/rostersync/internal/engine"
)

type fakeSyncer struct {
	mu        sync.Mutex
	overrides map[string]string
	called    chan struct{}
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{called: make(chan struct{})}
}

func (f *fakeSyncer) Sync(ctx context.Context, overrides map[string]string) (*engine.RunState, error) {
	f.mu.Lock()
	f.overrides = overrides
	f.mu.Unlock()
	close(f.called)
	return nil, nil
}

func (f *fakeSyncer) Status() string { return "idle" }

func (f *fakeSyncer) LastRun() *engine.RunState {
	return &engine.RunState{ID: "1:1700000000", Status: engine.StatusComplete}
}

func newTestServer(t *testing.T, token string) (*httptest.Server, string, *fakeSyncer) {
	t.Helper()
	uploadDir := t.TempDir()
	syncer := newFakeSyncer()
	srv := New(uploadDir, token, syncer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, uploadDir, syncer
}

type formPart struct {
	name, filename, value string
}

func postBatch(t *testing.T, url, token string, parts []formPart) *http.Response {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, p := range parts {
		if p.filename != "" {
			fw, err := w.CreateFormFile(p.name, p.filename)
			require.NoError(t, err)
			_, err = fw.Write([]byte(p.value))
			require.NoError(t, err)
		} else {
			require.NoError(t, w.WriteField(p.name, p.value))
		}
	}
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, url+"/batch", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestBatch_StoresFilesUnderKindNames(t *testing.T) {
	ts, uploadDir, _ := newTestServer(t, "")

	resp := postBatch(t, ts.URL, "", []formPart{
		{name: "sessions", filename: "whatever.csv", value: "FALL2025,Fall,Term,2025-09-01,2025-12-20\n"},
		{name: "people", filename: "upload.csv", value: "alice,Liddell,Alice,a@x,pw,student\n"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Parts land under the fixed per-kind filenames, not the client's.
	data, err := os.ReadFile(filepath.Join(uploadDir, "sessions.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "FALL2025")
	assert.FileExists(t, filepath.Join(uploadDir, "people.csv"))
}

func TestBatch_RejectsUnknownPart(t *testing.T) {
	ts, _, _ := newTestServer(t, "")

	resp := postBatch(t, ts.URL, "", []formPart{
		{name: "grades", filename: "grades.csv", value: "x\n"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBatch_RunJobTriggersSyncWithOverrides(t *testing.T) {
	ts, _, syncer := newTestServer(t, "")

	resp := postBatch(t, ts.URL, "", []formPart{
		{name: "sessions", filename: "s.csv", value: "FALL2025,Fall,Term,2025-09-01,2025-12-20\n"},
		{name: "userRemovalMode", value: "delete"},
		{name: "ignoreMissingSessions", value: "true"},
		{name: "runJob", value: "true"},
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case <-syncer.called:
	case <-time.After(2 * time.Second):
		t.Fatal("sync was not triggered")
	}
	syncer.mu.Lock()
	defer syncer.mu.Unlock()
	assert.Equal(t, "delete", syncer.overrides[engine.OverrideUserRemovalMode])
	assert.Equal(t, "true", syncer.overrides[engine.OverrideIgnoreMissingSessions])
}

func TestAuth_RejectsBadToken(t *testing.T) {
	ts, _, _ := newTestServer(t, "secret")

	resp := postBatch(t, ts.URL, "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postBatch(t, ts.URL, "secret", []formPart{
		{name: "sessions", filename: "s.csv", value: "x,y,z,2025-01-01,2025-02-01\n"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatus(t *testing.T) {
	ts, _, _ := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "idle")
	assert.Contains(t, string(body), "1:1700000000")
}
