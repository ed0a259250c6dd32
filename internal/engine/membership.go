package engine

import (
	"context"
	"fmt"

	"github.com/rostersync/rostersync/internal/directory"
	"github.com/rostersync/rostersync/internal/extract"
	"github.com/rostersync/rostersync/internal/store"
)

// statusDropped is the enrollment status written by the enrollment sweep.
// Dropped enrollments stay visible in the directory instead of vanishing.
const statusDropped = "dropped"

type courseMembershipProcessor struct{ *Engine }

func (p courseMembershipProcessor) kind() Kind { return KindCourseMembership }

func (p courseMembershipProcessor) line(ctx context.Context, rs *RunState, fields []string) (action, error) {
	if err := requireFields(fields, 4); err != nil {
		return actionIgnore, err
	}
	offeringEID, userEID, role, status := fields[0], fields[1], fields[2], fields[3]
	if userEID == "" {
		return actionIgnore, lineErrorf("missing userEid")
	}
	if !rs.ProcessCourseOffering(offeringEID) {
		p.log.Debug("offering not in current run, skipping course membership",
			"run", rs.ID, "offering", offeringEID, "user", userEID)
		return actionIgnore, nil
	}
	res, err := p.admin.AddOrUpdateCourseMembership(ctx, userEID, role, offeringEID, status)
	if err != nil {
		return actionIgnore, fmt.Errorf("course membership %s/%s: %w", offeringEID, userEID, err)
	}
	if !rs.Policies.IgnoreMembershipRemovals {
		if err := p.store.UpsertMembership(ctx, userEID, offeringEID, role, store.ModeCourse, rs.Stamp); err != nil {
			return actionIgnore, err
		}
	}
	return writeAction(res), nil
}

func (p courseMembershipProcessor) sweep(ctx context.Context, rs *RunState) error {
	if rs.Policies.IgnoreMembershipRemovals {
		p.log.Info("membership removals suppressed, skipping course membership sweep", "run", rs.ID)
		return nil
	}
	return p.sweepMemberships(ctx, rs, KindCourseMembership, store.ModeCourse, rs.CourseOfferingEids(),
		func(ctx context.Context, m store.Membership) error {
			return p.admin.RemoveCourseMembership(ctx, m.UserEID, m.ContainerEID)
		})
}

type sectionMembershipProcessor struct{ *Engine }

func (p sectionMembershipProcessor) kind() Kind { return KindSectionMembership }

func (p sectionMembershipProcessor) line(ctx context.Context, rs *RunState, fields []string) (action, error) {
	if err := requireFields(fields, 4); err != nil {
		return actionIgnore, err
	}
	sectionEID, userEID, role, status := fields[0], fields[1], fields[2], fields[3]
	if userEID == "" {
		return actionIgnore, lineErrorf("missing userEid")
	}
	if !rs.ProcessSection(sectionEID) {
		p.log.Debug("section not in current run, skipping section membership",
			"run", rs.ID, "section", sectionEID, "user", userEID)
		return actionIgnore, nil
	}
	section, err := p.admin.GetSection(ctx, sectionEID)
	if err != nil {
		return actionIgnore, err
	}
	if section == nil {
		return actionIgnore, lineErrorf("section %s not defined", sectionEID)
	}
	esEID, err := p.ensureEnrollmentSet(ctx, section)
	if err != nil {
		return actionIgnore, err
	}
	res, err := p.admin.AddOrUpdateSectionMembership(ctx, userEID, role, sectionEID, status)
	if err != nil {
		return actionIgnore, fmt.Errorf("section membership %s/%s: %w", sectionEID, userEID, err)
	}
	act := writeAction(res)
	switch role {
	case p.settings.InstructorRole:
		if err := p.admin.SetOfficialInstructor(ctx, esEID, userEID); err != nil {
			return actionIgnore, err
		}
	case p.settings.StudentRole:
		credits := extract.Field(fields, 4)
		if credits == "" {
			credits = p.settings.DefaultCredits
		}
		scheme := extract.Field(fields, 5)
		if scheme == "" {
			scheme = p.settings.DefaultGradingScheme
		}
		eres, err := p.admin.AddOrUpdateEnrollment(ctx, userEID, esEID, status, credits, scheme)
		if err != nil {
			return actionIgnore, err
		}
		if act == actionIgnore {
			act = writeAction(eres)
		}
	}
	if !rs.Policies.IgnoreMembershipRemovals {
		if err := p.store.UpsertMembership(ctx, userEID, sectionEID, role, store.ModeSection, rs.Stamp); err != nil {
			return actionIgnore, err
		}
	}
	return act, nil
}

// ensureEnrollmentSet returns the section's enrollment set eid, creating a
// derived set from the section's own attributes when none is attached yet.
func (p sectionMembershipProcessor) ensureEnrollmentSet(ctx context.Context, section *directory.Section) (string, error) {
	if section.EnrollmentSetEID != "" {
		return section.EnrollmentSetEID, nil
	}
	esEID := section.EID + "_ES"
	if _, err := p.admin.UpsertEnrollmentSet(ctx, directory.EnrollmentSet{
		EID: esEID, Title: section.Title, Description: section.Description,
		Category: section.Category, CourseOffering: section.CourseOffering,
		DefaultCredits: p.settings.DefaultCredits,
	}); err != nil {
		return "", fmt.Errorf("derive enrollment set for section %s: %w", section.EID, err)
	}
	if err := p.admin.SetSectionEnrollmentSet(ctx, section.EID, esEID); err != nil {
		return "", err
	}
	section.EnrollmentSetEID = esEID
	return esEID, nil
}

func (p sectionMembershipProcessor) sweep(ctx context.Context, rs *RunState) error {
	if rs.Policies.IgnoreMembershipRemovals {
		p.log.Info("membership removals suppressed, skipping section membership sweep", "run", rs.ID)
		return nil
	}
	return p.sweepMemberships(ctx, rs, KindSectionMembership, store.ModeSection, rs.SectionEids(),
		func(ctx context.Context, m store.Membership) error {
			if err := p.admin.RemoveSectionMembership(ctx, m.UserEID, m.ContainerEID); err != nil {
				return err
			}
			// A student membership carries a paired enrollment; drop it
			// along with the membership.
			section, err := p.admin.GetSection(ctx, m.ContainerEID)
			if err != nil || section == nil || section.EnrollmentSetEID == "" {
				return err
			}
			err = p.admin.RemoveEnrollment(ctx, m.UserEID, section.EnrollmentSetEID)
			if err != nil && !directory.IsNotFound(err) {
				return err
			}
			return nil
		})
}

type enrollmentProcessor struct{ *Engine }

func (p enrollmentProcessor) kind() Kind { return KindEnrollment }

func (p enrollmentProcessor) line(ctx context.Context, rs *RunState, fields []string) (action, error) {
	if err := requireFields(fields, 3); err != nil {
		return actionIgnore, err
	}
	esEID, userEID, status := fields[0], fields[1], fields[2]
	if userEID == "" {
		return actionIgnore, lineErrorf("missing userEid")
	}
	if !rs.ProcessEnrollmentSet(esEID) {
		p.log.Debug("enrollment set not in current run, skipping enrollment",
			"run", rs.ID, "enrollmentSet", esEID, "user", userEID)
		return actionIgnore, nil
	}
	defined, err := p.admin.IsEnrollmentSetDefined(ctx, esEID)
	if err != nil {
		return actionIgnore, err
	}
	if !defined {
		return actionIgnore, lineErrorf("enrollment set %s not defined", esEID)
	}
	credits := extract.Field(fields, 3)
	if credits == "" {
		credits = p.settings.DefaultCredits
	}
	scheme := extract.Field(fields, 4)
	if scheme == "" {
		scheme = p.settings.DefaultGradingScheme
	}
	res, err := p.admin.AddOrUpdateEnrollment(ctx, userEID, esEID, status, credits, scheme)
	if err != nil {
		return actionIgnore, fmt.Errorf("enrollment %s/%s: %w", esEID, userEID, err)
	}
	if !rs.Policies.IgnoreMembershipRemovals {
		if err := p.store.UpsertMembership(ctx, userEID, esEID, "", store.ModeEnrollment, rs.Stamp); err != nil {
			return actionIgnore, err
		}
	}
	return writeAction(res), nil
}

// sweep marks stale enrollments dropped rather than deleting them, so the
// directory keeps a record of the withdrawal.
func (p enrollmentProcessor) sweep(ctx context.Context, rs *RunState) error {
	if rs.Policies.IgnoreMembershipRemovals {
		p.log.Info("membership removals suppressed, skipping enrollment sweep", "run", rs.ID)
		return nil
	}
	return p.sweepMemberships(ctx, rs, KindEnrollment, store.ModeEnrollment, rs.EnrollmentSetEids(),
		func(ctx context.Context, m store.Membership) error {
			_, err := p.admin.AddOrUpdateEnrollment(ctx, m.UserEID, m.ContainerEID,
				statusDropped, p.settings.DefaultCredits, p.settings.DefaultGradingScheme)
			return err
		})
}
