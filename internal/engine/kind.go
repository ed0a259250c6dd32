package engine

// Kind identifies one entity kind processed by the pipeline.
type Kind string

const (
	KindSession           Kind = "AcademicSession"
	KindCourseSet         Kind = "CourseSet"
	KindCanonicalCourse   Kind = "CanonicalCourse"
	KindCourseOffering    Kind = "CourseOffering"
	KindEnrollmentSet     Kind = "EnrollmentSet"
	KindSection           Kind = "Section"
	KindSectionMeeting    Kind = "SectionMeeting"
	KindPerson            Kind = "Person"
	KindEnrollment        Kind = "Enrollment"
	KindCourseMembership  Kind = "CourseMembership"
	KindSectionMembership Kind = "SectionMembership"
)

// PipelineOrder is the fixed processing order for a run. The order is
// load-bearing: each later kind's dependency checks consult valid-id sets
// populated by an earlier kind. SectionMembership must stay last - it is
// the run's final action and triggers the batch directory close.
var PipelineOrder = []Kind{
	KindSession,
	KindCourseSet,
	KindCanonicalCourse,
	KindCourseOffering,
	KindEnrollmentSet,
	KindSection,
	KindSectionMeeting,
	KindPerson,
	KindEnrollment,
	KindCourseMembership,
	KindSectionMembership,
}

// Filename returns the extract file name carrying this kind's records
// inside a batch directory.
func (k Kind) Filename() string {
	switch k {
	case KindSession:
		return "sessions.csv"
	case KindCourseSet:
		return "courseSets.csv"
	case KindCanonicalCourse:
		return "courses.csv"
	case KindCourseOffering:
		return "courseOfferings.csv"
	case KindEnrollmentSet:
		return "enrollmentSets.csv"
	case KindSection:
		return "courseSections.csv"
	case KindSectionMeeting:
		return "sectionMeetings.csv"
	case KindPerson:
		return "people.csv"
	case KindEnrollment:
		return "enrollments.csv"
	case KindCourseMembership:
		return "courseMemberships.csv"
	case KindSectionMembership:
		return "sectionMemberships.csv"
	}
	return string(k) + ".csv"
}

// Stage is one step of a processor's lifecycle, observable through RunState
// for progress reporting.
type Stage string

const (
	StageStart   Stage = "start"
	StageMove    Stage = "move"
	StageRead    Stage = "read"
	StageProcess Stage = "process"
	StageCleanup Stage = "cleanup"
	StageFail    Stage = "fail"
	StageDone    Stage = "done"
)
