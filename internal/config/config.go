// Package config loads the YAML configuration file and maps it onto the
// engine's settings. Per-run overrides are not part of this file; they
// arrive through the job property bag and take precedence at run start.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rostersync/rostersync/internal/engine"
)

// Config is the installation-wide configuration.
type Config struct {
	// UploadDir receives extract files and hosts batch snapshot
	// directories.
	UploadDir string `yaml:"uploadDir"`

	// DatabasePath locates the SQLite bookkeeping database.
	DatabasePath string `yaml:"databasePath"`

	// DateLayout is the Go reference layout for extract date fields.
	DateLayout string `yaml:"dateLayout"`

	// PageSize bounds reconciliation sweep pages.
	PageSize int `yaml:"pageSize"`

	// HasHeader skips the first line of every extract file.
	HasHeader bool `yaml:"hasHeader"`

	// Default policies, overridable per run.
	IgnoreMissingSessions    bool   `yaml:"ignoreMissingSessions"`
	IgnoreMembershipRemovals bool   `yaml:"ignoreMembershipRemovals"`
	UserRemovalMode          string `yaml:"userRemovalMode"`

	// SuspendedType is the person type written by the disable removal
	// mode.
	SuspendedType string `yaml:"suspendedType"`

	// OptionalPersonFields names person columns after the sixth, in file
	// order. The name "id" designates the preferred-identifier hint.
	OptionalPersonFields []string `yaml:"optionalPersonFields"`

	// Membership role values and enrollment defaults.
	InstructorRole       string `yaml:"instructorRole"`
	StudentRole          string `yaml:"studentRole"`
	DefaultCredits       string `yaml:"defaultCredits"`
	DefaultGradingScheme string `yaml:"defaultGradingScheme"`

	// Section category registration.
	DefaultSectionCategory string            `yaml:"defaultSectionCategory"`
	SectionCategories      map[string]string `yaml:"sectionCategories"`

	// Intake configures the upload HTTP server.
	Intake Intake `yaml:"intake"`
}

// Intake configures the HTTP upload surface.
type Intake struct {
	// Addr is the listen address, e.g. ":8090".
	Addr string `yaml:"addr"`

	// Token is the shared bearer secret guarding uploads. Empty disables
	// authentication; do not run that way outside tests.
	Token string `yaml:"token"`
}

// Default returns a configuration with every knob at its default.
func Default() *Config {
	return &Config{
		UploadDir:              "uploads",
		DatabasePath:           "rostersync.db",
		DateLayout:             "2006-01-02",
		PageSize:               1000,
		UserRemovalMode:        "disable",
		SuspendedType:          "suspended",
		InstructorRole:         "I",
		StudentRole:            "S",
		DefaultCredits:         "0",
		DefaultGradingScheme:   "Letter Grade",
		DefaultSectionCategory: "NONE",
		SectionCategories:      map[string]string{"NONE": "Uncategorized"},
		Intake:                 Intake{Addr: ":8090"},
	}
}

// Load reads a YAML file over the defaults. A missing path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.UploadDir == "" {
		return fmt.Errorf("config: uploadDir must not be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("config: databasePath must not be empty")
	}
	if c.PageSize < 1 {
		return fmt.Errorf("config: pageSize must be at least 1, got %d", c.PageSize)
	}
	switch c.UserRemovalMode {
	case "disable", "delete", "ignore":
	default:
		return fmt.Errorf("config: userRemovalMode must be disable, delete, or ignore, got %q", c.UserRemovalMode)
	}
	return nil
}

// EngineSettings maps the configuration onto the engine's settings.
func (c *Config) EngineSettings() engine.Settings {
	return engine.Settings{
		PageSize:               c.PageSize,
		HasHeader:              c.HasHeader,
		DateLayout:             c.DateLayout,
		SuspendedType:          c.SuspendedType,
		OptionalPersonFields:   c.OptionalPersonFields,
		InstructorRole:         c.InstructorRole,
		StudentRole:            c.StudentRole,
		DefaultCredits:         c.DefaultCredits,
		DefaultGradingScheme:   c.DefaultGradingScheme,
		DefaultSectionCategory: c.DefaultSectionCategory,
		SectionCategories:      c.SectionCategories,
		Defaults: engine.Policies{
			IgnoreMissingSessions:    c.IgnoreMissingSessions,
			IgnoreMembershipRemovals: c.IgnoreMembershipRemovals,
			UserRemovalMode:          engine.RemovalMode(c.UserRemovalMode),
		},
	}
}
