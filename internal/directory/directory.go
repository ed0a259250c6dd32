// Package directory defines the course-management and identity capability
// interfaces the synchronization engine writes through, plus a SQLite
// reference implementation used by the CLI and tests.
//
// The engine owns no long-lived references to directory records; it looks
// everything up by external identifier and lets the implementation decide
// whether a write changed anything.
package directory

import "context"

// WriteResult reports what an upsert did.
type WriteResult int

const (
	// WriteUnchanged means the record already matched the incoming values.
	WriteUnchanged WriteResult = iota
	// WriteCreated means a new record was created.
	WriteCreated
	// WriteUpdated means an existing record was modified.
	WriteUpdated
)

// Session is an academic session (term).
type Session struct {
	EID         string
	Title       string
	Description string
	StartDate   string
	EndDate     string
}

// CourseSet groups canonical courses and offerings, optionally nested.
type CourseSet struct {
	EID         string
	Title       string
	Description string
	Category    string
	ParentEID   string
}

// CanonicalCourse is the catalog-level course definition.
type CanonicalCourse struct {
	EID         string
	Title       string
	Description string
}

// CourseOffering is a canonical course offered in one academic session.
type CourseOffering struct {
	EID                string
	SessionEID         string
	Title              string
	Description        string
	Status             string
	StartDate          string
	EndDate            string
	CanonicalCourseEID string
}

// EnrollmentSet is the container official enrollments attach to.
type EnrollmentSet struct {
	EID            string
	Title          string
	Description    string
	Category       string
	CourseOffering string
	DefaultCredits string
}

// Section is a teachable subdivision of a course offering.
type Section struct {
	EID              string
	Title            string
	Description      string
	Category         string
	ParentSectionEID string
	EnrollmentSetEID string
	CourseOffering   string
}

// Meeting is one scheduled meeting of a section.
type Meeting struct {
	SectionEID string
	Location   string
	Notes      string
	StartTime  string
	EndTime    string
}

// CourseAdmin is the administrative write surface of the course directory.
// All operations are synchronous; implementations report NotFoundError for
// operations against absent containers.
type CourseAdmin interface {
	UpsertSession(ctx context.Context, s Session) (WriteResult, error)
	RemoveSession(ctx context.Context, eid string) error

	UpsertCourseSet(ctx context.Context, cs CourseSet) (WriteResult, error)
	RemoveCourseSet(ctx context.Context, eid string) error

	UpsertCanonicalCourse(ctx context.Context, cc CanonicalCourse) (WriteResult, error)
	RemoveCanonicalCourse(ctx context.Context, eid string) error
	// AddCourseToSet links a canonical course into a course set; unknown
	// sets are ignored by the engine before calling.
	AddCourseToSet(ctx context.Context, setEID, courseEID string) error
	IsCourseSetDefined(ctx context.Context, eid string) (bool, error)

	UpsertCourseOffering(ctx context.Context, co CourseOffering) (WriteResult, error)
	RemoveCourseOffering(ctx context.Context, eid string) error
	AddOfferingToSet(ctx context.Context, setEID, offeringEID string) error

	UpsertEnrollmentSet(ctx context.Context, es EnrollmentSet) (WriteResult, error)
	RemoveEnrollmentSet(ctx context.Context, eid string) error

	UpsertSection(ctx context.Context, sec Section) (WriteResult, error)
	RemoveSection(ctx context.Context, eid string) error
	GetSection(ctx context.Context, eid string) (*Section, error)
	// EnsureSectionCategory registers a category code with a description if
	// it is not already known.
	EnsureSectionCategory(ctx context.Context, code, description string) error
	IsSectionCategoryDefined(ctx context.Context, code string) (bool, error)
	// SetSectionEnrollmentSet points a section at an enrollment set.
	SetSectionEnrollmentSet(ctx context.Context, sectionEID, enrollmentSetEID string) error

	AddSectionMeeting(ctx context.Context, m Meeting) (WriteResult, error)

	// AddOrUpdateSectionMembership and AddOrUpdateCourseMembership put a
	// user in a container with a role and status.
	AddOrUpdateSectionMembership(ctx context.Context, userEID, role, sectionEID, status string) (WriteResult, error)
	RemoveSectionMembership(ctx context.Context, userEID, sectionEID string) error
	AddOrUpdateCourseMembership(ctx context.Context, userEID, role, offeringEID, status string) (WriteResult, error)
	RemoveCourseMembership(ctx context.Context, userEID, offeringEID string) error

	IsEnrollmentSetDefined(ctx context.Context, eid string) (bool, error)
	AddOrUpdateEnrollment(ctx context.Context, userEID, enrollmentSetEID, status, credits, gradingScheme string) (WriteResult, error)
	RemoveEnrollment(ctx context.Context, userEID, enrollmentSetEID string) error
	// SetOfficialInstructor registers the user as an official instructor of
	// the enrollment set.
	SetOfficialInstructor(ctx context.Context, enrollmentSetEID, userEID string) error
}

// Person is an identity directory record.
type Person struct {
	ID         string
	EID        string
	LastName   string
	FirstName  string
	Email      string
	Password   string
	Type       string
	Properties map[string]string
}

// IdentityDirectory is the identity write surface. GetByEID returns nil
// (not an error) when no record exists for the eid.
type IdentityDirectory interface {
	GetByEID(ctx context.Context, eid string) (*Person, error)
	// Create stores a new person; p.ID must be pre-assigned by the caller.
	Create(ctx context.Context, p *Person) error
	Update(ctx context.Context, p *Person) error
	// CheckPassword reports whether the stored credential for the user id
	// matches the given cleartext.
	CheckPassword(ctx context.Context, id, password string) (bool, error)
	SetType(ctx context.Context, id, userType string) error
	Remove(ctx context.Context, id string) error
}
