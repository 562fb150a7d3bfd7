package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos/jobs"
	"github.com/yungbote/studyforge-backend/internal/data/repos/learning"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type CourseRepo = learning.CourseRepo
type JobRunRepo = jobs.JobRunRepo

type Set struct {
	Course CourseRepo
	JobRun JobRunRepo
}

func New(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Course: learning.NewCourseRepo(db, log),
		JobRun: jobs.NewJobRunRepo(db, log),
	}
}
