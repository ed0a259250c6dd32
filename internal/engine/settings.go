package engine

// Settings is the engine's installation-wide behavior surface, loaded from
// configuration once at startup. Per-run policy overrides layer on top of
// Defaults; everything else is fixed for the process lifetime.
type Settings struct {
	// PageSize bounds ledger sweep pages.
	PageSize int

	// HasHeader skips the first line of every extract file.
	HasHeader bool

	// DateLayout is the Go reference layout for extract date fields.
	DateLayout string

	// SuspendedType is the sentinel person type written by the disable
	// removal mode.
	SuspendedType string

	// OptionalPersonFields names the person columns after the sixth, in
	// file order. The name "id" marks the preferred-identifier hint; it is
	// consumed at first creation and never stored as a property.
	OptionalPersonFields []string

	// InstructorRole and StudentRole are the membership role values that
	// trigger official-instructor registration and enrollment writes.
	InstructorRole string
	StudentRole    string

	// DefaultCredits and DefaultGradingScheme fill absent enrollment
	// fields.
	DefaultCredits       string
	DefaultGradingScheme string

	// DefaultSectionCategory substitutes for a blank section category
	// code; SectionCategories maps codes to display descriptions for
	// on-demand category creation.
	DefaultSectionCategory string
	SectionCategories      map[string]string

	// Defaults are the installation-wide policies, overridable per run.
	Defaults Policies
}

// withDefaults fills zero-valued settings so a partially populated struct
// still drives a sane engine. Tests construct Settings directly.
func (s Settings) withDefaults() Settings {
	if s.PageSize <= 0 {
		s.PageSize = 1000
	}
	if s.DateLayout == "" {
		s.DateLayout = "2006-01-02"
	}
	if s.SuspendedType == "" {
		s.SuspendedType = "suspended"
	}
	if s.InstructorRole == "" {
		s.InstructorRole = "I"
	}
	if s.StudentRole == "" {
		s.StudentRole = "S"
	}
	if s.DefaultCredits == "" {
		s.DefaultCredits = "0"
	}
	if s.DefaultGradingScheme == "" {
		s.DefaultGradingScheme = "Letter Grade"
	}
	if s.DefaultSectionCategory == "" {
		s.DefaultSectionCategory = "NONE"
	}
	if s.SectionCategories == nil {
		s.SectionCategories = map[string]string{"NONE": "Uncategorized"}
	}
	if s.Defaults.UserRemovalMode == "" {
		s.Defaults.UserRemovalMode = RemovalDisable
	}
	return s
}
