package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/sellerspro/internal/metrics"
	"github.com/example/sellerspro/internal/middleware"
	"github.com/example/sellerspro/internal/services"
)

// LessonHandler serves the lesson catalog and per-user progress.
type LessonHandler struct {
	lessons  *services.LessonService
	progress *services.ProgressService
	metrics  *metrics.Metrics
}

// NewLessonHandler constructs a LessonHandler.
func NewLessonHandler(lessons *services.LessonService, progress *services.ProgressService, m *metrics.Metrics) *LessonHandler {
	return &LessonHandler{lessons: lessons, progress: progress, metrics: m}
}

// ListLessons returns every lesson ordered by id.
func (h *LessonHandler) ListLessons(c *fiber.Ctx) error {
	lessons, err := h.lessons.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": lessons})
}

// GetLesson returns a single lesson.
func (h *LessonHandler) GetLesson(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid lesson id")
	}

	lesson, err := h.lessons.Get(c.UserContext(), uint(id))
	if err != nil {
		if errors.Is(err, services.ErrLessonNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "lesson not found")
		}
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": lesson})
}

// CompleteLesson marks a lesson completed for the authenticated user.
func (h *LessonHandler) CompleteLesson(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, middleware.MessageUnauthorized)
	}

	lessonID, err := c.ParamsInt("lessonId")
	if err != nil || lessonID <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid lesson id")
	}

	ctx := c.UserContext()
	if err := h.progress.MarkCompleted(ctx, userID, uint(lessonID)); err != nil {
		return err
	}
	h.metrics.IncLessonsCompleted()

	progress, err := h.progress.Progress(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "lesson completed",
		"progress": progress,
	})
}

// GetProgress returns the authenticated user's lesson progress.
func (h *LessonHandler) GetProgress(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, middleware.MessageUnauthorized)
	}

	progress, err := h.progress.Progress(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "progress": progress})
}
