package directory

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is a reference implementation of CourseAdmin and IdentityDirectory
// on a SQLite database. It shares the connection opened by the bookkeeping
// store; the schema is applied idempotently on construction.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps an open database, ensuring the directory schema exists.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("apply directory schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// entityRow is the wide row backing every cm_entities kind. Each kind maps
// the subset of columns it uses; unused columns stay empty strings.
type entityRow struct {
	kind          string
	eid           string
	title         string
	description   string
	category      string
	status        string
	parentEID     string
	sessionEID    string
	offeringEID   string
	enrollmentSet string
	canonicalEID  string
	startDate     string
	endDate       string
	credits       string
}

func (d *SQLite) getEntity(ctx context.Context, kind, eid string) (*entityRow, error) {
	var r entityRow
	err := d.db.QueryRowContext(ctx, `
		SELECT kind, eid, COALESCE(title,''), COALESCE(description,''), COALESCE(category,''),
		       COALESCE(status,''), COALESCE(parent_eid,''), COALESCE(session_eid,''),
		       COALESCE(offering_eid,''), COALESCE(enrollment_set,''), COALESCE(canonical_eid,''),
		       COALESCE(start_date,''), COALESCE(end_date,''), COALESCE(default_credits,'')
		FROM cm_entities WHERE kind = ? AND eid = ?
	`, kind, eid).Scan(&r.kind, &r.eid, &r.title, &r.description, &r.category, &r.status,
		&r.parentEID, &r.sessionEID, &r.offeringEID, &r.enrollmentSet, &r.canonicalEID,
		&r.startDate, &r.endDate, &r.credits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", kind, eid, err)
	}
	return &r, nil
}

func (d *SQLite) upsertEntity(ctx context.Context, r entityRow) (WriteResult, error) {
	existing, err := d.getEntity(ctx, r.kind, r.eid)
	if err != nil {
		return WriteUnchanged, err
	}
	if existing != nil && *existing == r {
		return WriteUnchanged, nil
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO cm_entities
		(kind, eid, title, description, category, status, parent_eid, session_eid,
		 offering_eid, enrollment_set, canonical_eid, start_date, end_date, default_credits)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, eid) DO UPDATE SET
		 title=excluded.title, description=excluded.description, category=excluded.category,
		 status=excluded.status, parent_eid=excluded.parent_eid, session_eid=excluded.session_eid,
		 offering_eid=excluded.offering_eid, enrollment_set=excluded.enrollment_set,
		 canonical_eid=excluded.canonical_eid, start_date=excluded.start_date,
		 end_date=excluded.end_date, default_credits=excluded.default_credits
	`, r.kind, r.eid, r.title, r.description, r.category, r.status, r.parentEID,
		r.sessionEID, r.offeringEID, r.enrollmentSet, r.canonicalEID,
		r.startDate, r.endDate, r.credits)
	if err != nil {
		return WriteUnchanged, fmt.Errorf("upsert %s %s: %w", r.kind, r.eid, err)
	}
	if existing == nil {
		return WriteCreated, nil
	}
	return WriteUpdated, nil
}

func (d *SQLite) removeEntity(ctx context.Context, kind, eid string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM cm_entities WHERE kind = ? AND eid = ?`, kind, eid)
	if err != nil {
		return fmt.Errorf("remove %s %s: %w", kind, eid, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Kind: kind, EID: eid}
	}
	return nil
}

func (d *SQLite) entityDefined(ctx context.Context, kind, eid string) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx, `
		SELECT 1 FROM cm_entities WHERE kind = ? AND eid = ?
	`, kind, eid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s %s: %w", kind, eid, err)
	}
	return true, nil
}

const (
	kindSession       = "session"
	kindCourseSet     = "courseSet"
	kindCanonical     = "canonicalCourse"
	kindOffering      = "courseOffering"
	kindEnrollmentSet = "enrollmentSet"
	kindSection       = "section"
)

// UpsertSession implements CourseAdmin.
func (d *SQLite) UpsertSession(ctx context.Context, s Session) (WriteResult, error) {
	return d.upsertEntity(ctx, entityRow{
		kind: kindSession, eid: s.EID, title: s.Title, description: s.Description,
		startDate: s.StartDate, endDate: s.EndDate,
	})
}

// RemoveSession implements CourseAdmin.
func (d *SQLite) RemoveSession(ctx context.Context, eid string) error {
	return d.removeEntity(ctx, kindSession, eid)
}

// UpsertCourseSet implements CourseAdmin.
func (d *SQLite) UpsertCourseSet(ctx context.Context, cs CourseSet) (WriteResult, error) {
	return d.upsertEntity(ctx, entityRow{
		kind: kindCourseSet, eid: cs.EID, title: cs.Title, description: cs.Description,
		category: cs.Category, parentEID: cs.ParentEID,
	})
}

// RemoveCourseSet implements CourseAdmin.
func (d *SQLite) RemoveCourseSet(ctx context.Context, eid string) error {
	return d.removeEntity(ctx, kindCourseSet, eid)
}

// IsCourseSetDefined implements CourseAdmin.
func (d *SQLite) IsCourseSetDefined(ctx context.Context, eid string) (bool, error) {
	return d.entityDefined(ctx, kindCourseSet, eid)
}

// UpsertCanonicalCourse implements CourseAdmin.
func (d *SQLite) UpsertCanonicalCourse(ctx context.Context, cc CanonicalCourse) (WriteResult, error) {
	return d.upsertEntity(ctx, entityRow{
		kind: kindCanonical, eid: cc.EID, title: cc.Title, description: cc.Description,
	})
}

// RemoveCanonicalCourse implements CourseAdmin.
func (d *SQLite) RemoveCanonicalCourse(ctx context.Context, eid string) error {
	return d.removeEntity(ctx, kindCanonical, eid)
}

// AddCourseToSet implements CourseAdmin.
func (d *SQLite) AddCourseToSet(ctx context.Context, setEID, courseEID string) error {
	return d.addSetLink(ctx, setEID, kindCanonical, courseEID)
}

// AddOfferingToSet implements CourseAdmin.
func (d *SQLite) AddOfferingToSet(ctx context.Context, setEID, offeringEID string) error {
	return d.addSetLink(ctx, setEID, kindOffering, offeringEID)
}

func (d *SQLite) addSetLink(ctx context.Context, setEID, memberKind, memberEID string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO cm_set_links (set_eid, member_kind, member_eid) VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, setEID, memberKind, memberEID)
	if err != nil {
		return fmt.Errorf("link %s into set %s: %w", memberEID, setEID, err)
	}
	return nil
}

// UpsertCourseOffering implements CourseAdmin.
func (d *SQLite) UpsertCourseOffering(ctx context.Context, co CourseOffering) (WriteResult, error) {
	return d.upsertEntity(ctx, entityRow{
		kind: kindOffering, eid: co.EID, title: co.Title, description: co.Description,
		status: co.Status, sessionEID: co.SessionEID, canonicalEID: co.CanonicalCourseEID,
		startDate: co.StartDate, endDate: co.EndDate,
	})
}

// RemoveCourseOffering implements CourseAdmin.
func (d *SQLite) RemoveCourseOffering(ctx context.Context, eid string) error {
	return d.removeEntity(ctx, kindOffering, eid)
}

// UpsertEnrollmentSet implements CourseAdmin.
func (d *SQLite) UpsertEnrollmentSet(ctx context.Context, es EnrollmentSet) (WriteResult, error) {
	return d.upsertEntity(ctx, entityRow{
		kind: kindEnrollmentSet, eid: es.EID, title: es.Title, description: es.Description,
		category: es.Category, offeringEID: es.CourseOffering, credits: es.DefaultCredits,
	})
}

// RemoveEnrollmentSet implements CourseAdmin.
func (d *SQLite) RemoveEnrollmentSet(ctx context.Context, eid string) error {
	return d.removeEntity(ctx, kindEnrollmentSet, eid)
}

// IsEnrollmentSetDefined implements CourseAdmin.
func (d *SQLite) IsEnrollmentSetDefined(ctx context.Context, eid string) (bool, error) {
	return d.entityDefined(ctx, kindEnrollmentSet, eid)
}

// UpsertSection implements CourseAdmin.
func (d *SQLite) UpsertSection(ctx context.Context, sec Section) (WriteResult, error) {
	return d.upsertEntity(ctx, entityRow{
		kind: kindSection, eid: sec.EID, title: sec.Title, description: sec.Description,
		category: sec.Category, parentEID: sec.ParentSectionEID,
		enrollmentSet: sec.EnrollmentSetEID, offeringEID: sec.CourseOffering,
	})
}

// RemoveSection implements CourseAdmin.
func (d *SQLite) RemoveSection(ctx context.Context, eid string) error {
	return d.removeEntity(ctx, kindSection, eid)
}

// GetSection implements CourseAdmin.
func (d *SQLite) GetSection(ctx context.Context, eid string) (*Section, error) {
	r, err := d.getEntity(ctx, kindSection, eid)
	if err != nil || r == nil {
		return nil, err
	}
	return &Section{
		EID: r.eid, Title: r.title, Description: r.description, Category: r.category,
		ParentSectionEID: r.parentEID, EnrollmentSetEID: r.enrollmentSet,
		CourseOffering: r.offeringEID,
	}, nil
}

// SetSectionEnrollmentSet implements CourseAdmin.
func (d *SQLite) SetSectionEnrollmentSet(ctx context.Context, sectionEID, enrollmentSetEID string) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE cm_entities SET enrollment_set = ? WHERE kind = ? AND eid = ?
	`, enrollmentSetEID, kindSection, sectionEID)
	if err != nil {
		return fmt.Errorf("set section enrollment set: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Kind: kindSection, EID: sectionEID}
	}
	return nil
}

// EnsureSectionCategory implements CourseAdmin.
func (d *SQLite) EnsureSectionCategory(ctx context.Context, code, description string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO cm_section_categories (code, description) VALUES (?, ?)
		ON CONFLICT(code) DO NOTHING
	`, code, description)
	if err != nil {
		return fmt.Errorf("ensure section category %s: %w", code, err)
	}
	return nil
}

// IsSectionCategoryDefined implements CourseAdmin.
func (d *SQLite) IsSectionCategoryDefined(ctx context.Context, code string) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx, `
		SELECT 1 FROM cm_section_categories WHERE code = ?
	`, code).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup section category %s: %w", code, err)
	}
	return true, nil
}

// AddSectionMeeting implements CourseAdmin. Re-adding an identical meeting
// is reported as unchanged.
func (d *SQLite) AddSectionMeeting(ctx context.Context, m Meeting) (WriteResult, error) {
	defined, err := d.entityDefined(ctx, kindSection, m.SectionEID)
	if err != nil {
		return WriteUnchanged, err
	}
	if !defined {
		return WriteUnchanged, &NotFoundError{Kind: kindSection, EID: m.SectionEID}
	}
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO cm_meetings (section_eid, location, notes, start_time, end_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, m.SectionEID, m.Location, m.Notes, m.StartTime, m.EndTime)
	if err != nil {
		return WriteUnchanged, fmt.Errorf("add meeting for %s: %w", m.SectionEID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return WriteUnchanged, nil
	}
	return WriteCreated, nil
}

// AddOrUpdateSectionMembership implements CourseAdmin.
func (d *SQLite) AddOrUpdateSectionMembership(ctx context.Context, userEID, role, sectionEID, status string) (WriteResult, error) {
	return d.putMembership(ctx, "section", sectionEID, userEID, role, status)
}

// RemoveSectionMembership implements CourseAdmin.
func (d *SQLite) RemoveSectionMembership(ctx context.Context, userEID, sectionEID string) error {
	return d.dropMembership(ctx, "section", sectionEID, userEID)
}

// AddOrUpdateCourseMembership implements CourseAdmin.
func (d *SQLite) AddOrUpdateCourseMembership(ctx context.Context, userEID, role, offeringEID, status string) (WriteResult, error) {
	return d.putMembership(ctx, "course", offeringEID, userEID, role, status)
}

// RemoveCourseMembership implements CourseAdmin.
func (d *SQLite) RemoveCourseMembership(ctx context.Context, userEID, offeringEID string) error {
	return d.dropMembership(ctx, "course", offeringEID, userEID)
}

func (d *SQLite) putMembership(ctx context.Context, mode, containerEID, userEID, role, status string) (WriteResult, error) {
	var curRole, curStatus string
	err := d.db.QueryRowContext(ctx, `
		SELECT role, status FROM cm_memberships WHERE mode = ? AND container_eid = ? AND user_eid = ?
	`, mode, containerEID, userEID).Scan(&curRole, &curStatus)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return WriteUnchanged, fmt.Errorf("lookup %s membership %s/%s: %w", mode, containerEID, userEID, err)
	}
	if exists && curRole == role && curStatus == status {
		return WriteUnchanged, nil
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO cm_memberships (mode, container_eid, user_eid, role, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(mode, container_eid, user_eid) DO UPDATE SET
		 role=excluded.role, status=excluded.status
	`, mode, containerEID, userEID, role, status)
	if err != nil {
		return WriteUnchanged, fmt.Errorf("put %s membership %s/%s: %w", mode, containerEID, userEID, err)
	}
	if exists {
		return WriteUpdated, nil
	}
	return WriteCreated, nil
}

func (d *SQLite) dropMembership(ctx context.Context, mode, containerEID, userEID string) error {
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM cm_memberships WHERE mode = ? AND container_eid = ? AND user_eid = ?
	`, mode, containerEID, userEID)
	if err != nil {
		return fmt.Errorf("drop %s membership %s/%s: %w", mode, containerEID, userEID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Kind: mode + " membership", EID: containerEID + "/" + userEID}
	}
	return nil
}

// AddOrUpdateEnrollment implements CourseAdmin.
func (d *SQLite) AddOrUpdateEnrollment(ctx context.Context, userEID, enrollmentSetEID, status, credits, gradingScheme string) (WriteResult, error) {
	var curStatus, curCredits, curScheme string
	err := d.db.QueryRowContext(ctx, `
		SELECT status, credits, grading_scheme FROM cm_enrollments
		WHERE enrollment_set = ? AND user_eid = ?
	`, enrollmentSetEID, userEID).Scan(&curStatus, &curCredits, &curScheme)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return WriteUnchanged, fmt.Errorf("lookup enrollment %s/%s: %w", enrollmentSetEID, userEID, err)
	}
	if exists && curStatus == status && curCredits == credits && curScheme == gradingScheme {
		return WriteUnchanged, nil
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO cm_enrollments (enrollment_set, user_eid, status, credits, grading_scheme)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(enrollment_set, user_eid) DO UPDATE SET
		 status=excluded.status, credits=excluded.credits, grading_scheme=excluded.grading_scheme
	`, enrollmentSetEID, userEID, status, credits, gradingScheme)
	if err != nil {
		return WriteUnchanged, fmt.Errorf("put enrollment %s/%s: %w", enrollmentSetEID, userEID, err)
	}
	if exists {
		return WriteUpdated, nil
	}
	return WriteCreated, nil
}

// RemoveEnrollment implements CourseAdmin.
func (d *SQLite) RemoveEnrollment(ctx context.Context, userEID, enrollmentSetEID string) error {
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM cm_enrollments WHERE enrollment_set = ? AND user_eid = ?
	`, enrollmentSetEID, userEID)
	if err != nil {
		return fmt.Errorf("remove enrollment %s/%s: %w", enrollmentSetEID, userEID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Kind: "enrollment", EID: enrollmentSetEID + "/" + userEID}
	}
	return nil
}

// SetOfficialInstructor implements CourseAdmin.
func (d *SQLite) SetOfficialInstructor(ctx context.Context, enrollmentSetEID, userEID string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO cm_instructors (enrollment_set, user_eid) VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`, enrollmentSetEID, userEID)
	if err != nil {
		return fmt.Errorf("set instructor %s/%s: %w", enrollmentSetEID, userEID, err)
	}
	return nil
}
