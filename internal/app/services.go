package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	"github.com/yungbote/studyforge-backend/internal/jobs/pipeline/course_build"
	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/jobs/worker"
	"github.com/yungbote/studyforge-backend/internal/learning/generator"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/services"
)

type Services struct {
	Auth         services.AuthService
	Jobs         services.JobService
	Course       services.CourseService
	JobNotify    services.JobNotifier
	CourseNotify services.CourseNotifier
	Generator    generator.Generator

	// Worker is nil when RUN_WORKER is off.
	Worker *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet repos.Set, clients Clients, emitter services.SSEEmitter) (Services, error) {
	log.Info("Wiring services...")
	jobNotify := services.NewJobNotifier(emitter)
	courseNotify := services.NewCourseNotifier(emitter)

	gen := generator.New(log, clients.Gemini, cfg.Generation)
	jobService := services.NewJobService(db, log, reposet.JobRun, jobNotify)

	out := Services{
		Auth:         services.NewAuthService(log, cfg.JWTSecretKey, cfg.JWTIssuer, cfg.AccessTokenTTL),
		Jobs:         jobService,
		Course:       services.NewCourseService(db, log, reposet.Course, jobService, gen, courseNotify),
		JobNotify:    jobNotify,
		CourseNotify: courseNotify,
		Generator:    gen,
	}

	if cfg.RunWorker {
		registry := runtime.NewRegistry()
		if err := registry.Register(course_build.NewCourseBuildPipeline(log, reposet.Course, gen, courseNotify)); err != nil {
			return Services{}, fmt.Errorf("register course_build: %w", err)
		}
		out.Worker = worker.NewWorker(db, log, reposet.JobRun, registry, jobNotify, cfg.Worker)
		// Enqueued jobs wake an idle loop instead of waiting for the next poll.
		jobService.SetWaker(out.Worker)
	}
	return out, nil
}
