package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/rostersync/rostersync/internal/config"
	"github.com/rostersync/rostersync/internal/directory"
	"github.com/rostersync/rostersync/internal/engine"
	"github.com/rostersync/rostersync/internal/snapshot"
	"github.com/rostersync/rostersync/internal/store"
)

// app bundles everything a command needs after assembly.
type app struct {
	cfg    *config.Config
	store  *store.Store
	engine *engine.Engine
	log    *slog.Logger
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Error("error closing database", "error", err)
	}
}

// loadApp configures logging, loads configuration, opens the database and
// wires the engine. Callers must close() the returned app.
func loadApp(opts *RootOptions) (*app, error) {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(log)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create upload directory", err)
	}

	log.Info("opening database", "path", cfg.DatabasePath)
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	dir, err := directory.NewSQLite(st.DB())
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to prepare directory schema", err)
	}

	snaps := snapshot.New(cfg.UploadDir, log)
	eng := engine.New(st, dir, dir, snaps, engine.UUIDGenerator{}, cfg.EngineSettings(), log)

	return &app{cfg: cfg, store: st, engine: eng, log: log}, nil
}

// parseOverrides turns key=value command arguments into the job property
// bag passed to the engine.
func parseOverrides(args []string) (map[string]string, error) {
	overrides := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, found := strings.Cut(arg, "=")
		if !found {
			return nil, fmt.Errorf("override %q is not key=value", arg)
		}
		overrides[k] = v
	}
	return overrides, nil
}
