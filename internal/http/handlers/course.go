package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/http/response"
	"github.com/yungbote/studyforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/services"
)

type CourseHandler struct {
	log     *logger.Logger
	courses services.CourseService
}

func NewCourseHandler(log *logger.Logger, courses services.CourseService) *CourseHandler {
	return &CourseHandler{
		log:     log.With("handler", "CourseHandler"),
		courses: courses,
	}
}

type regenerateRequest struct {
	Settings *types.SettingsOverride `json:"settings"`
}

type structuredRequest struct {
	Count int `json:"count"`
}

// POST /api/courses
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var req services.CreateCourseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_failed", fmt.Errorf("invalid request body: %w", err))
		return
	}
	course, err := h.courses.RequestGeneration(c.Request.Context(), ctxutil.UserID(c.Request.Context()), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, course)
}

// GET /api/courses
func (h *CourseHandler) ListCourses(c *gin.Context) {
	courses, err := h.courses.List(c.Request.Context(), ctxutil.UserID(c.Request.Context()))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if courses == nil {
		courses = []*types.Course{}
	}
	response.RespondOK(c, courses)
}

// GET /api/courses/:id
func (h *CourseHandler) GetCourse(c *gin.Context) {
	courseID, ok := courseIDParam(c)
	if !ok {
		return
	}
	course, err := h.courses.Get(c.Request.Context(), ctxutil.UserID(c.Request.Context()), courseID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, course)
}

// GET /api/courses/:id/job
func (h *CourseHandler) GetCourseJob(c *gin.Context) {
	courseID, ok := courseIDParam(c)
	if !ok {
		return
	}
	job, err := h.courses.LatestJob(c.Request.Context(), ctxutil.UserID(c.Request.Context()), courseID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// DELETE /api/courses/:id
func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	courseID, ok := courseIDParam(c)
	if !ok {
		return
	}
	if err := h.courses.Delete(c.Request.Context(), ctxutil.UserID(c.Request.Context()), courseID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

// POST /api/courses/:id/regenerate
func (h *CourseHandler) RegenerateCourse(c *gin.Context) {
	courseID, ok := courseIDParam(c)
	if !ok {
		return
	}
	var req regenerateRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	course, err := h.courses.Regenerate(c.Request.Context(), ctxutil.UserID(c.Request.Context()), courseID, req.Settings)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, course)
}

// GET /api/courses/:id/pdf
func (h *CourseHandler) DownloadPDF(c *gin.Context) {
	courseID, ok := courseIDParam(c)
	if !ok {
		return
	}
	filename, data, err := h.courses.RenderPDF(c.Request.Context(), ctxutil.UserID(c.Request.Context()), courseID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}

// POST /api/courses/:id/quiz
func (h *CourseHandler) GenerateQuiz(c *gin.Context) {
	h.structured(c, h.courses.GenerateQuiz)
}

// POST /api/courses/:id/flashcards
func (h *CourseHandler) GenerateFlashcards(c *gin.Context) {
	h.structured(c, h.courses.GenerateFlashcards)
}

type structuredFunc func(ctx context.Context, ownerUserID uuid.UUID, courseID uuid.UUID, count int) (map[string]any, error)

func (h *CourseHandler) structured(c *gin.Context, fn structuredFunc) {
	courseID, ok := courseIDParam(c)
	if !ok {
		return
	}
	var req structuredRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	out, err := fn(c.Request.Context(), ctxutil.UserID(c.Request.Context()), courseID, req.Count)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// courseIDParam parses :id. A malformed id cannot name an owned course, so
// it is reported exactly like a missing one.
func courseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusNotFound, "course_not_found", errors.New("course not found"))
		return uuid.Nil, false
	}
	return id, true
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "validation_failed", fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}
