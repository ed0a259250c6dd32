package directory

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDirectory(t *testing.T) *SQLite {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "directory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	d, err := NewSQLite(db)
	require.NoError(t, err)
	return d
}

func TestUpsertSession_CreateUnchangedUpdate(t *testing.T) {
	d := setupDirectory(t)
	ctx := context.Background()
	s := Session{EID: "FALL2025", Title: "Fall 2025", StartDate: "2025-09-01", EndDate: "2025-12-20"}

	res, err := d.UpsertSession(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, WriteCreated, res)

	res, err = d.UpsertSession(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, WriteUnchanged, res)

	s.Title = "Fall Semester 2025"
	res, err = d.UpsertSession(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, WriteUpdated, res)
}

func TestRemoveSession_NotFound(t *testing.T) {
	d := setupDirectory(t)
	ctx := context.Background()

	err := d.RemoveSession(ctx, "GHOST")
	assert.True(t, IsNotFound(err))

	_, err = d.UpsertSession(ctx, Session{EID: "FALL2025"})
	require.NoError(t, err)
	require.NoError(t, d.RemoveSession(ctx, "FALL2025"))
	assert.True(t, IsNotFound(d.RemoveSession(ctx, "FALL2025")))
}

func TestGetSection_RoundTrip(t *testing.T) {
	d := setupDirectory(t)
	ctx := context.Background()

	sec, err := d.GetSection(ctx, "BIO101-F25-01")
	require.NoError(t, err)
	assert.Nil(t, sec)

	in := Section{
		EID: "BIO101-F25-01", Title: "Biology Lab", Category: "LAB",
		EnrollmentSetEID: "BIO101-F25-ES", CourseOffering: "BIO101-F25",
	}
	_, err = d.UpsertSection(ctx, in)
	require.NoError(t, err)

	sec, err = d.GetSection(ctx, "BIO101-F25-01")
	require.NoError(t, err)
	require.NotNil(t, sec)
	assert.Equal(t, in, *sec)
}

func TestSetSectionEnrollmentSet(t *testing.T) {
	d := setupDirectory(t)
	ctx := context.Background()

	err := d.SetSectionEnrollmentSet(ctx, "MISSING", "X_ES")
	assert.True(t, IsNotFound(err))

	_, err = d.UpsertSection(ctx, Section{EID: "CHEM-01", CourseOffering: "CHEM-F25"})
	require.NoError(t, err)
	require.NoError(t, d.SetSectionEnrollmentSet(ctx, "CHEM-01", "CHEM-01_ES"))

	sec, err := d.GetSection(ctx, "CHEM-01")
	require.NoError(t, err)
	assert.Equal(t, "CHEM-01_ES", sec.EnrollmentSetEID)
}

func TestSectionCategories(t *testing.T) {
	d := setupDirectory(t)
	ctx := context.Background()

	defined, err := d.IsSectionCategoryDefined(ctx, "LAB")
	require.NoError(t, err)
	assert.False(t, defined)

	require.NoError(t, d.EnsureSectionCategory(ctx, "LAB", "Laboratory"))
	// Re-registering keeps the first description.
	require.NoError(t, d.EnsureSectionCategory(ctx, "LAB", "Other"))

	defined, err = d.IsSectionCategoryDefined(ctx, "LAB")
	require.NoError(t, err)
	assert.True(t, defined)
}

func TestAddSectionMeeting(t *testing.T) {
	d := setupDirectory(t)
	ctx := context.Background()
	m := Meeting{SectionEID: "BIO101-01", Location: "Room 4", StartTime: "09:00", EndTime: "10:30"}

	_, err := d.AddSectionMeeting(ctx, m)
	assert.True(t, IsNotFound(err))

	_, err = d.UpsertSection(ctx, Section{EID: "BIO101-01", CourseOffering: "BIO101-F25"})
	require.NoError(t, err)

	res, err := d.AddSectionMeeting(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, WriteCreated, res)

	res, err = d.AddSectionMeeting(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, WriteUnchanged, res)
}

func TestMemberships(t *testing.T) {
	d := setupDirectory(t)
	ctx := context.Background()

	res, err := d.AddOrUpdateSectionMembership(ctx, "alice", "S", "BIO101-01", "enrolled")
	require.NoError(t, err)
	assert.Equal(t, WriteCreated, res)

	res, err = d.AddOrUpdateSectionMembership(ctx, "alice", "S", "BIO101-01", "enrolled")
	require.NoError(t, err)
	assert.Equal(t, WriteUnchanged, res)

	res, err = d.AddOrUpdateSectionMembership(ctx, "alice", "S", "BIO101-01", "waitlisted")
	require.NoError(t, err)
	assert.Equal(t, WriteUpdated, res)

	// Course and section memberships for the same pair do not collide.
	res, err = d.AddOrUpdateCourseMembership(ctx, "alice", "S", "BIO101-01", "enrolled")
	require.NoError(t, err)
	assert.Equal(t, WriteCreated, res)

	require.NoError(t, d.RemoveSectionMembership(ctx, "alice", "BIO101-01"))
	assert.True(t, IsNotFound(d.RemoveSectionMembership(ctx, "alice", "BIO101-01")))
	require.NoError(t, d.RemoveCourseMembership(ctx, "alice", "BIO101-01"))
}

func TestEnrollments(t *testing.T) {
	d := setupDirectory(t)
	ctx := context.Background()

	res, err := d.AddOrUpdateEnrollment(ctx, "bob", "BIO101_ES", "enrolled", "3", "Letter Grade")
	require.NoError(t, err)
	assert.Equal(t, WriteCreated, res)

	res, err = d.AddOrUpdateEnrollment(ctx, "bob", "BIO101_ES", "enrolled", "3", "Letter Grade")
	require.NoError(t, err)
	assert.Equal(t, WriteUnchanged, res)

	res, err = d.AddOrUpdateEnrollment(ctx, "bob", "BIO101_ES", "dropped", "3", "Letter Grade")
	require.NoError(t, err)
	assert.Equal(t, WriteUpdated, res)

	require.NoError(t, d.RemoveEnrollment(ctx, "bob", "BIO101_ES"))
	assert.True(t, IsNotFound(d.RemoveEnrollment(ctx, "bob", "BIO101_ES")))
}

func TestSetOfficialInstructor_Idempotent(t *testing.T) {
	d := setupDirectory(t)
	ctx := context.Background()

	require.NoError(t, d.SetOfficialInstructor(ctx, "BIO101_ES", "prof"))
	require.NoError(t, d.SetOfficialInstructor(ctx, "BIO101_ES", "prof"))

	var n int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cm_instructors WHERE enrollment_set = 'BIO101_ES'
	`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIdentity_CRUD(t *testing.T) {
	d := setupDirectory(t)
	ctx := context.Background()

	p, err := d.GetByEID(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, p)

	in := Person{
		ID: "u-1", EID: "alice", LastName: "Liddell", FirstName: "Alice",
		Email: "alice@example.edu", Password: "pw", Type: "student",
		Properties: map[string]string{"dept": "biology"},
	}
	require.NoError(t, d.Create(ctx, &in))

	p, err = d.GetByEID(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, in, *p)

	ok, err := d.CheckPassword(ctx, "u-1", "pw")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = d.CheckPassword(ctx, "u-1", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	in.Email = "a.liddell@example.edu"
	require.NoError(t, d.Update(ctx, &in))
	p, err = d.GetByEID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "a.liddell@example.edu", p.Email)

	require.NoError(t, d.SetType(ctx, "u-1", "suspended"))
	p, err = d.GetByEID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "suspended", p.Type)

	require.NoError(t, d.Remove(ctx, "u-1"))
	p, err = d.GetByEID(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, p)

	assert.True(t, IsNotFound(d.Update(ctx, &in)))
	assert.True(t, IsNotFound(d.SetType(ctx, "u-1", "student")))
	assert.True(t, IsNotFound(d.Remove(ctx, "u-1")))
}
