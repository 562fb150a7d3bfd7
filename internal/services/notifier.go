package services

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/realtime"
)

// =========================
// Job notifier
// =========================

type JobNotifier interface {
	JobCreated(userID uuid.UUID, job *types.JobRun)
	JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string)
	JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string)
	JobDone(userID uuid.UUID, job *types.JobRun)
}

type jobNotifier struct {
	emit SSEEmitter
}

func NewJobNotifier(emit SSEEmitter) JobNotifier {
	return &jobNotifier{emit: emit}
}

func (n *jobNotifier) send(userID uuid.UUID, event realtime.SSEEvent, data map[string]any) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{Channel: userID.String(), Event: event, Data: data})
}

func (n *jobNotifier) JobCreated(userID uuid.UUID, job *types.JobRun) {
	n.send(userID, realtime.SSEEventJobCreated, jobData(job, map[string]any{}))
}

func (n *jobNotifier) JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string) {
	n.send(userID, realtime.SSEEventJobProgress, jobData(job, map[string]any{
		"stage":    stage,
		"progress": progress,
		"message":  message,
	}))
}

func (n *jobNotifier) JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string) {
	n.send(userID, realtime.SSEEventJobFailed, jobData(job, map[string]any{
		"stage": stage,
		"error": errorMessage,
	}))
}

func (n *jobNotifier) JobDone(userID uuid.UUID, job *types.JobRun) {
	n.send(userID, realtime.SSEEventJobDone, jobData(job, map[string]any{}))
}

// =========================
// Course notifier
// =========================

type CourseNotifier interface {
	CourseGenerationQueued(userID uuid.UUID, course *types.Course, job *types.JobRun)
	CourseGenerationProgress(userID uuid.UUID, course *types.Course, job *types.JobRun, stage string, progress int, message string)
	CourseGenerationFailed(userID uuid.UUID, course *types.Course, job *types.JobRun, stage string, errorMessage string)
	CourseGenerationDone(userID uuid.UUID, course *types.Course, job *types.JobRun)
	CourseDeleted(userID uuid.UUID, courseID uuid.UUID)
}

type courseNotifier struct {
	emit SSEEmitter
}

func NewCourseNotifier(emit SSEEmitter) CourseNotifier {
	return &courseNotifier{emit: emit}
}

func (n *courseNotifier) send(userID uuid.UUID, event realtime.SSEEvent, data map[string]any) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{Channel: userID.String(), Event: event, Data: data})
}

func (n *courseNotifier) CourseGenerationQueued(userID uuid.UUID, course *types.Course, job *types.JobRun) {
	n.send(userID, realtime.SSEEventCourseGenerationQueued, courseData(course, job, map[string]any{
		"status": safeCourseStatus(course),
	}))
}

func (n *courseNotifier) CourseGenerationProgress(userID uuid.UUID, course *types.Course, job *types.JobRun, stage string, progress int, message string) {
	n.send(userID, realtime.SSEEventCourseGenerationProgress, courseData(course, job, map[string]any{
		"status":   safeCourseStatus(course),
		"stage":    stage,
		"progress": progress,
		"message":  message,
	}))
}

func (n *courseNotifier) CourseGenerationFailed(userID uuid.UUID, course *types.Course, job *types.JobRun, stage string, errorMessage string) {
	n.send(userID, realtime.SSEEventCourseGenerationFailed, courseData(course, job, map[string]any{
		"status": types.CourseStatusFailed,
		"stage":  stage,
		"error":  errorMessage,
	}))
}

func (n *courseNotifier) CourseGenerationDone(userID uuid.UUID, course *types.Course, job *types.JobRun) {
	n.send(userID, realtime.SSEEventCourseGenerationDone, courseData(course, job, map[string]any{
		"status": types.CourseStatusCompleted,
	}))
}

func (n *courseNotifier) CourseDeleted(userID uuid.UUID, courseID uuid.UUID) {
	n.send(userID, realtime.SSEEventCourseDeleted, map[string]any{"course_id": courseID.String()})
}

// =========================
// helpers
// =========================

func jobData(job *types.JobRun, data map[string]any) map[string]any {
	if job != nil {
		data["job_id"] = job.ID.String()
		data["job_type"] = job.JobType
		if job.EntityType == "course" && job.EntityID != nil {
			data["course_id"] = job.EntityID.String()
		}
	}
	return data
}

func courseData(course *types.Course, job *types.JobRun, data map[string]any) map[string]any {
	if course != nil {
		data["course_id"] = course.ID.String()
		data["title"] = course.Title
	}
	if job != nil {
		data["job_id"] = job.ID.String()
	}
	return data
}

func safeCourseStatus(course *types.Course) string {
	if course == nil {
		return ""
	}
	return course.Status
}
