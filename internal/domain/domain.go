package domain

import (
	"github.com/yungbote/studyforge-backend/internal/domain/jobs"
	"github.com/yungbote/studyforge-backend/internal/domain/learning"
)

const (
	CourseStatusGeneratingOutline = learning.CourseStatusGeneratingOutline
	CourseStatusGeneratingContent = learning.CourseStatusGeneratingContent
	CourseStatusCompleted         = learning.CourseStatusCompleted
	CourseStatusFailed            = learning.CourseStatusFailed

	JobStatusQueued    = jobs.JobStatusQueued
	JobStatusRunning   = jobs.JobStatusRunning
	JobStatusSucceeded = jobs.JobStatusSucceeded
	JobStatusFailed    = jobs.JobStatusFailed
	JobStatusCanceled  = jobs.JobStatusCanceled

	JobTypeCourseBuild = jobs.JobTypeCourseBuild
	EntityTypeCourse   = jobs.EntityTypeCourse
)

type (
	Course           = learning.Course
	CourseSettings   = learning.CourseSettings
	SettingsOverride = learning.SettingsOverride
	Outline          = learning.Outline
	OutlineSection   = learning.OutlineSection
	ContentEntry     = learning.ContentEntry

	JobRun = jobs.JobRun
)

var (
	DefaultCourseSettings  = learning.DefaultCourseSettings
	IsTerminalCourseStatus = learning.IsTerminalCourseStatus
	ActiveCourseStatuses   = learning.ActiveCourseStatuses
	IsTerminalJobStatus    = jobs.IsTerminalJobStatus
)

// AutoMigrateModels lists every persisted model.
func AutoMigrateModels() []any {
	return []any{
		&learning.Course{},
		&jobs.JobRun{},
	}
}
