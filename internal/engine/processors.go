package engine

import (
	"context"
	"fmt"

	"github.com/rostersync/rostersync/internal/directory"
	"github.com/rostersync/rostersync/internal/extract"
)

// requireFields rejects lines shorter than n fields or with a blank
// external identifier in field 0.
func requireFields(fields []string, n int) error {
	if len(fields) < n {
		return lineErrorf("expected at least %d fields, got %d", n, len(fields))
	}
	if fields[0] == "" {
		return lineErrorf("missing external identifier")
	}
	return nil
}

// requireValue rejects a blank required field; trimming has already turned
// whitespace-only values into empty strings.
func requireValue(name, value string) error {
	if value == "" {
		return lineErrorf("missing %s", name)
	}
	return nil
}

// checkDate validates a required date field against the configured layout.
func (e *Engine) checkDate(name, value string) error {
	if value == "" {
		return lineErrorf("missing %s", name)
	}
	if _, err := extract.ParseDate(value, e.settings.DateLayout); err != nil {
		return lineErrorf("unparseable %s %q", name, value)
	}
	return nil
}

type sessionProcessor struct{ *Engine }

func (p sessionProcessor) kind() Kind { return KindSession }

func (p sessionProcessor) line(ctx context.Context, rs *RunState, fields []string) (action, error) {
	if err := requireFields(fields, 5); err != nil {
		return actionIgnore, err
	}
	if err := requireValue("title", fields[1]); err != nil {
		return actionIgnore, err
	}
	if err := requireValue("description", fields[2]); err != nil {
		return actionIgnore, err
	}
	if err := p.checkDate("startDate", fields[3]); err != nil {
		return actionIgnore, err
	}
	if err := p.checkDate("endDate", fields[4]); err != nil {
		return actionIgnore, err
	}
	eid := fields[0]
	rs.MarkSession(eid)
	res, err := p.admin.UpsertSession(ctx, directory.Session{
		EID: eid, Title: fields[1], Description: fields[2],
		StartDate: fields[3], EndDate: fields[4],
	})
	if err != nil {
		return actionIgnore, err
	}
	if err := p.store.Stamp(ctx, string(KindSession), eid, "", rs.Stamp); err != nil {
		return actionIgnore, err
	}
	return writeAction(res), nil
}

func (p sessionProcessor) sweep(ctx context.Context, rs *RunState) error {
	return p.sweepLedger(ctx, rs, KindSession, p.admin.RemoveSession)
}

type courseSetProcessor struct{ *Engine }

func (p courseSetProcessor) kind() Kind { return KindCourseSet }

func (p courseSetProcessor) line(ctx context.Context, rs *RunState, fields []string) (action, error) {
	if err := requireFields(fields, 5); err != nil {
		return actionIgnore, err
	}
	if err := requireValue("title", fields[1]); err != nil {
		return actionIgnore, err
	}
	if err := requireValue("description", fields[2]); err != nil {
		return actionIgnore, err
	}
	if err := requireValue("category", fields[3]); err != nil {
		return actionIgnore, err
	}
	eid := fields[0]
	res, err := p.admin.UpsertCourseSet(ctx, directory.CourseSet{
		EID: eid, Title: fields[1], Description: fields[2],
		// A blank fifth field means the set has no parent.
		Category: fields[3], ParentEID: fields[4],
	})
	if err != nil {
		return actionIgnore, err
	}
	if err := p.store.Stamp(ctx, string(KindCourseSet), eid, "", rs.Stamp); err != nil {
		return actionIgnore, err
	}
	return writeAction(res), nil
}

func (p courseSetProcessor) sweep(ctx context.Context, rs *RunState) error {
	return p.sweepLedger(ctx, rs, KindCourseSet, p.admin.RemoveCourseSet)
}

type canonicalCourseProcessor struct{ *Engine }

func (p canonicalCourseProcessor) kind() Kind { return KindCanonicalCourse }

func (p canonicalCourseProcessor) line(ctx context.Context, rs *RunState, fields []string) (action, error) {
	if err := requireFields(fields, 3); err != nil {
		return actionIgnore, err
	}
	if err := requireValue("title", fields[1]); err != nil {
		return actionIgnore, err
	}
	if err := requireValue("description", fields[2]); err != nil {
		return actionIgnore, err
	}
	eid := fields[0]
	res, err := p.admin.UpsertCanonicalCourse(ctx, directory.CanonicalCourse{
		EID: eid, Title: fields[1], Description: fields[2],
	})
	if err != nil {
		return actionIgnore, err
	}
	if setEID := extract.Field(fields, 3); setEID != "" {
		defined, err := p.admin.IsCourseSetDefined(ctx, setEID)
		if err != nil {
			return actionIgnore, err
		}
		if defined {
			if err := p.admin.AddCourseToSet(ctx, setEID, eid); err != nil {
				return actionIgnore, err
			}
		} else {
			p.log.Debug("course set not defined, skipping link",
				"run", rs.ID, "course", eid, "set", setEID)
		}
	}
	if err := p.store.Stamp(ctx, string(KindCanonicalCourse), eid, "", rs.Stamp); err != nil {
		return actionIgnore, err
	}
	return writeAction(res), nil
}

func (p canonicalCourseProcessor) sweep(ctx context.Context, rs *RunState) error {
	return p.sweepLedger(ctx, rs, KindCanonicalCourse, p.admin.RemoveCanonicalCourse)
}

type courseOfferingProcessor struct{ *Engine }

func (p courseOfferingProcessor) kind() Kind { return KindCourseOffering }

func (p courseOfferingProcessor) line(ctx context.Context, rs *RunState, fields []string) (action, error) {
	if err := requireFields(fields, 7); err != nil {
		return actionIgnore, err
	}
	eid, sessionEID := fields[0], fields[1]
	if sessionEID == "" {
		return actionIgnore, lineErrorf("missing sessionEid")
	}
	if err := requireValue("title", fields[2]); err != nil {
		return actionIgnore, err
	}
	if err := requireValue("description", fields[3]); err != nil {
		return actionIgnore, err
	}
	if err := requireValue("status", fields[4]); err != nil {
		return actionIgnore, err
	}
	if err := p.checkDate("startDate", fields[5]); err != nil {
		return actionIgnore, err
	}
	if err := p.checkDate("endDate", fields[6]); err != nil {
		return actionIgnore, err
	}
	if !rs.ProcessSession(sessionEID) {
		p.log.Debug("session not in current run, skipping offering",
			"run", rs.ID, "offering", eid, "session", sessionEID)
		return actionIgnore, nil
	}
	rs.MarkCourseOffering(eid)
	res, err := p.admin.UpsertCourseOffering(ctx, directory.CourseOffering{
		EID: eid, SessionEID: sessionEID, Title: fields[2], Description: fields[3],
		Status: fields[4], StartDate: fields[5], EndDate: fields[6],
		CanonicalCourseEID: extract.Field(fields, 7),
	})
	if err != nil {
		return actionIgnore, err
	}
	if setEID := extract.Field(fields, 8); setEID != "" {
		defined, err := p.admin.IsCourseSetDefined(ctx, setEID)
		if err != nil {
			return actionIgnore, err
		}
		if defined {
			if err := p.admin.AddOfferingToSet(ctx, setEID, eid); err != nil {
				return actionIgnore, err
			}
		}
	}
	if err := p.store.Stamp(ctx, string(KindCourseOffering), eid, sessionEID, rs.Stamp); err != nil {
		return actionIgnore, err
	}
	return writeAction(res), nil
}

func (p courseOfferingProcessor) sweep(ctx context.Context, rs *RunState) error {
	return p.sweepChildLedger(ctx, rs, KindCourseOffering, rs.SessionEids(), p.admin.RemoveCourseOffering)
}

type enrollmentSetProcessor struct{ *Engine }

func (p enrollmentSetProcessor) kind() Kind { return KindEnrollmentSet }

func (p enrollmentSetProcessor) line(ctx context.Context, rs *RunState, fields []string) (action, error) {
	if err := requireFields(fields, 6); err != nil {
		return actionIgnore, err
	}
	eid, offeringEID := fields[0], fields[4]
	if offeringEID == "" {
		return actionIgnore, lineErrorf("missing courseOfferingEid")
	}
	if err := requireValue("title", fields[1]); err != nil {
		return actionIgnore, err
	}
	if err := requireValue("description", fields[2]); err != nil {
		return actionIgnore, err
	}
	if err := requireValue("category", fields[3]); err != nil {
		return actionIgnore, err
	}
	if !rs.ProcessCourseOffering(offeringEID) {
		p.log.Debug("offering not in current run, skipping enrollment set",
			"run", rs.ID, "enrollmentSet", eid, "offering", offeringEID)
		return actionIgnore, nil
	}
	rs.MarkEnrollmentSet(eid)
	credits := fields[5]
	if credits == "" {
		credits = p.settings.DefaultCredits
	}
	res, err := p.admin.UpsertEnrollmentSet(ctx, directory.EnrollmentSet{
		EID: eid, Title: fields[1], Description: fields[2], Category: fields[3],
		CourseOffering: offeringEID, DefaultCredits: credits,
	})
	if err != nil {
		return actionIgnore, err
	}
	if err := p.store.Stamp(ctx, string(KindEnrollmentSet), eid, offeringEID, rs.Stamp); err != nil {
		return actionIgnore, err
	}
	return writeAction(res), nil
}

func (p enrollmentSetProcessor) sweep(ctx context.Context, rs *RunState) error {
	return p.sweepChildLedger(ctx, rs, KindEnrollmentSet, rs.CourseOfferingEids(), p.admin.RemoveEnrollmentSet)
}

type sectionProcessor struct{ *Engine }

func (p sectionProcessor) kind() Kind { return KindSection }

func (p sectionProcessor) line(ctx context.Context, rs *RunState, fields []string) (action, error) {
	if err := requireFields(fields, 7); err != nil {
		return actionIgnore, err
	}
	eid, offeringEID := fields[0], fields[6]
	if offeringEID == "" {
		return actionIgnore, lineErrorf("missing courseOfferingEid")
	}
	if err := requireValue("title", fields[1]); err != nil {
		return actionIgnore, err
	}
	if err := requireValue("description", fields[2]); err != nil {
		return actionIgnore, err
	}
	if !rs.ProcessCourseOffering(offeringEID) {
		p.log.Debug("offering not in current run, skipping section",
			"run", rs.ID, "section", eid, "offering", offeringEID)
		return actionIgnore, nil
	}
	rs.MarkSection(eid)
	category, err := p.ensureCategory(ctx, fields[3])
	if err != nil {
		return actionIgnore, err
	}
	res, err := p.admin.UpsertSection(ctx, directory.Section{
		EID: eid, Title: fields[1], Description: fields[2], Category: category,
		ParentSectionEID: fields[4], EnrollmentSetEID: fields[5],
		CourseOffering: offeringEID,
	})
	if err != nil {
		return actionIgnore, err
	}
	if err := p.store.Stamp(ctx, string(KindSection), eid, offeringEID, rs.Stamp); err != nil {
		return actionIgnore, err
	}
	return writeAction(res), nil
}

// ensureCategory substitutes the default code for a blank category and
// registers unknown codes on demand using the configured descriptions.
func (p sectionProcessor) ensureCategory(ctx context.Context, code string) (string, error) {
	if code == "" {
		code = p.settings.DefaultSectionCategory
	}
	defined, err := p.admin.IsSectionCategoryDefined(ctx, code)
	if err != nil {
		return "", err
	}
	if !defined {
		desc, ok := p.settings.SectionCategories[code]
		if !ok {
			desc = code
		}
		if err := p.admin.EnsureSectionCategory(ctx, code, desc); err != nil {
			return "", err
		}
	}
	return code, nil
}

func (p sectionProcessor) sweep(ctx context.Context, rs *RunState) error {
	return p.sweepChildLedger(ctx, rs, KindSection, rs.CourseOfferingEids(), p.admin.RemoveSection)
}

// sectionMeetingProcessor ingests meeting rows. Meetings carry no external
// identifier of their own, so they are not ledgered and have no sweep;
// stale meetings disappear with their section.
type sectionMeetingProcessor struct{ *Engine }

func (p sectionMeetingProcessor) kind() Kind { return KindSectionMeeting }

func (p sectionMeetingProcessor) line(ctx context.Context, rs *RunState, fields []string) (action, error) {
	if err := requireFields(fields, 3); err != nil {
		return actionIgnore, err
	}
	sectionEID := fields[0]
	if !rs.ProcessSection(sectionEID) {
		p.log.Debug("section not in current run, skipping meeting",
			"run", rs.ID, "section", sectionEID)
		return actionIgnore, nil
	}
	m := directory.Meeting{
		SectionEID: sectionEID, Location: fields[1], Notes: fields[2],
	}
	// Start and end times travel as a pair.
	start, end := extract.Field(fields, 3), extract.Field(fields, 4)
	if (start == "") != (end == "") {
		return actionIgnore, lineErrorf("startTime and endTime must both be present or both blank")
	}
	m.StartTime, m.EndTime = start, end
	res, err := p.admin.AddSectionMeeting(ctx, m)
	if err != nil {
		if directory.IsNotFound(err) {
			return actionIgnore, lineErrorf("section %s not defined", sectionEID)
		}
		return actionIgnore, fmt.Errorf("add meeting: %w", err)
	}
	return writeAction(res), nil
}

func (p sectionMeetingProcessor) sweep(ctx context.Context, rs *RunState) error {
	return nil
}
