// Package intake is the HTTP upload surface. A multipart POST delivers one
// batch of extract files into the upload directory under the fixed
// per-kind filenames, optionally triggering a synchronization run once the
// upload lands.
package intake

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rostersync/rostersync/internal/engine"
)

// Syncer is the slice of the engine the intake server drives.
type Syncer interface {
	Sync(ctx context.Context, overrides map[string]string) (*engine.RunState, error)
	Status() string
	LastRun() *engine.RunState
}

// Server handles batch uploads and status queries.
type Server struct {
	uploadDir string
	token     string
	syncer    Syncer
	log       *slog.Logger
}

// New builds an intake server writing into uploadDir. An empty token
// disables authentication.
func New(uploadDir, token string, syncer Syncer, log *slog.Logger) *Server {
	return &Server{uploadDir: uploadDir, token: token, syncer: syncer, log: log}
}

// Router returns the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.authenticate)
	r.Post("/batch", s.handleBatch)
	r.Get("/status", s.handleStatus)
	return r
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// partFilenames maps accepted multipart part names to the per-kind extract
// filenames inside the upload directory.
func partFilenames() map[string]string {
	m := make(map[string]string, len(engine.PipelineOrder))
	for _, kind := range engine.PipelineOrder {
		name := strings.TrimSuffix(kind.Filename(), ".csv")
		m[name] = kind.Filename()
	}
	return m
}

// overrideKeys are the form fields forwarded to the job property bag.
var overrideKeys = map[string]struct{}{
	engine.OverrideIgnoreMissingSessions:    {},
	engine.OverrideIgnoreMembershipRemovals: {},
	engine.OverrideUserRemovalMode:          {},
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected a multipart request: "+err.Error())
		return
	}
	filenames := partFilenames()
	overrides := make(map[string]string)
	runJob := false
	saved := 0

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "read multipart: "+err.Error())
			return
		}
		name := part.FormName()
		switch {
		case part.FileName() != "":
			dst, ok := filenames[name]
			if !ok {
				part.Close()
				writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown extract part %q", name))
				return
			}
			if err := s.savePart(part, dst); err != nil {
				part.Close()
				s.log.Error("upload write failed", "part", name, "error", err)
				writeError(w, http.StatusInternalServerError, "store upload: "+err.Error())
				return
			}
			saved++
		case name == "runJob":
			v, _ := readValue(part)
			runJob, _ = strconv.ParseBool(v)
		default:
			if _, ok := overrideKeys[name]; ok {
				v, err := readValue(part)
				if err != nil {
					writeError(w, http.StatusBadRequest, "read field "+name+": "+err.Error())
					return
				}
				overrides[name] = v
			}
		}
		part.Close()
	}

	s.log.Info("batch uploaded", "files", saved, "overrides", len(overrides), "runJob", runJob)
	if runJob {
		// The run executes in the background; outcome is queryable via
		// the status endpoint and the audit log.
		go func() {
			if _, err := s.syncer.Sync(context.Background(), overrides); err != nil {
				s.log.Error("triggered sync did not start", "error", err)
			}
		}()
		writeJSON(w, http.StatusAccepted, map[string]any{"files": saved, "triggered": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": saved, "triggered": false})
}

func (s *Server) savePart(part io.Reader, filename string) error {
	dst := filepath.Join(s.uploadDir, filename)
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, part); err != nil {
		f.Close()
		os.Remove(dst)
		return err
	}
	return f.Close()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"state": s.syncer.Status()}
	if last := s.syncer.LastRun(); last != nil {
		out["lastRun"] = map[string]string{"id": last.ID, "status": string(last.Status)}
	}
	writeJSON(w, http.StatusOK, out)
}

// readValue reads a small form-field part.
func readValue(r io.Reader) (string, error) {
	b, err := io.ReadAll(io.LimitReader(r, 1024))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
