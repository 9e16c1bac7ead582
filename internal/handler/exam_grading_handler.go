package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-exam-api/internal/dto"
	"github.com/noah-isme/gema-exam-api/internal/middleware"
	"github.com/noah-isme/gema-exam-api/internal/service"
	"github.com/noah-isme/gema-exam-api/internal/utils"
)

// ExamGradingHandler wires grading endpoints for teachers.
type ExamGradingHandler struct {
	service service.ExamGradingService
	logger  zerolog.Logger
}

// NewExamGradingHandler constructs the handler.
func NewExamGradingHandler(service service.ExamGradingService, logger zerolog.Logger) *ExamGradingHandler {
	return &ExamGradingHandler{
		service: service,
		logger:  logger.With().Str("component", "exam_grading_handler").Logger(),
	}
}

// Register attaches grading endpoints to the exam-submissions group.
func (h *ExamGradingHandler) Register(submissions fiber.Router) {
	teacher := middleware.RequireTeacher()

	submissions.Post("/:sid/grade", teacher, h.grade)
	submissions.Get("/:sid/suggested-scores", teacher, h.suggest)
	submissions.Get("/:sid/activity", teacher, h.activity)
}

func (h *ExamGradingHandler) grade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "sid")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.ExamGradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.service.Grade(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrIncompleteGrading),
			errors.Is(err, service.ErrInvalidScore),
			errors.Is(err, service.ErrUnknownQuestion),
			errors.Is(err, service.ErrDuplicateAnswer):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrNotSubmitted):
			return utils.SendError(c, fiber.StatusConflict, "submission has not been submitted")
		case errors.Is(err, service.ErrAlreadyGraded):
			return utils.SendError(c, fiber.StatusConflict, "submission already graded, set force_regrade to overwrite")
		}
		if handled, sendErr := sendAccessError(c, err); handled {
			return sendErr
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("submission_id", id).Msg("failed to grade submission")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to grade submission")
	}

	return utils.SendSuccess(c, "submission graded", submission)
}

func (h *ExamGradingHandler) suggest(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "sid")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	suggestions, err := h.service.SuggestScores(requestContext(c), actorFromContext(c), id)
	if err != nil {
		if handled, sendErr := sendAccessError(c, err); handled {
			return sendErr
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("submission_id", id).Msg("failed to suggest scores")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to suggest scores")
	}

	return utils.SendSuccess(c, "scores suggested", suggestions)
}

func (h *ExamGradingHandler) activity(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "sid")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	entries, err := h.service.Activity(requestContext(c), actorFromContext(c), id)
	if err != nil {
		if handled, sendErr := sendAccessError(c, err); handled {
			return sendErr
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("submission_id", id).Msg("failed to load activity")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load activity")
	}

	return utils.OK(c, entries, "activity retrieved", map[string]int{"total": len(entries)})
}
