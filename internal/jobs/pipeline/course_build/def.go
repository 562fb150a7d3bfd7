package course_build

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/learning/generator"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/services"
)

const (
	JobType    = types.JobTypeCourseBuild
	EntityType = types.EntityTypeCourse
)

type CourseBuildPipeline struct {
	log          *logger.Logger
	courseRepo   repos.CourseRepo
	gen          generator.Generator
	courseNotify services.CourseNotifier
	tracer       trace.Tracer
}

func NewCourseBuildPipeline(
	baseLog *logger.Logger,
	courseRepo repos.CourseRepo,
	gen generator.Generator,
	courseNotify services.CourseNotifier,
) *CourseBuildPipeline {
	return &CourseBuildPipeline{
		log:          baseLog.With("job", JobType),
		courseRepo:   courseRepo,
		gen:          gen,
		courseNotify: courseNotify,
		tracer:       otel.Tracer("studyforge/course_build"),
	}
}
