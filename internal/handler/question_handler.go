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

// QuestionHandler exposes the question bank to the owning teacher.
type QuestionHandler struct {
	service service.QuestionBankService
	logger  zerolog.Logger
}

// NewQuestionHandler constructs the handler.
func NewQuestionHandler(service service.QuestionBankService, logger zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		service: service,
		logger:  logger.With().Str("component", "question_handler").Logger(),
	}
}

// Register attaches question routes to the exams group.
func (h *QuestionHandler) Register(exams fiber.Router) {
	teacher := middleware.RequireTeacher()

	exams.Get("/:id/questions", teacher, h.list)
	exams.Post("/:id/questions", teacher, h.create)
	exams.Patch("/:id/questions/:qid", teacher, h.update)
	exams.Delete("/:id/questions/:qid", teacher, h.delete)
}

func (h *QuestionHandler) list(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	questions, err := h.service.List(requestContext(c), actorFromContext(c), examID)
	if err != nil {
		return h.fail(c, err, "failed to list questions")
	}

	return utils.OK(c, questions, "questions retrieved", map[string]int{"total": len(questions)})
}

func (h *QuestionHandler) create(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	var payload dto.QuestionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	question, err := h.service.Create(requestContext(c), actorFromContext(c), examID, payload)
	if err != nil {
		return h.fail(c, err, "failed to create question")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "question created", question)
}

func (h *QuestionHandler) update(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}
	questionID, err := parseUintParam(c, "qid")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid question id")
	}

	var payload dto.QuestionUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	question, err := h.service.Update(requestContext(c), actorFromContext(c), examID, questionID, payload)
	if err != nil {
		return h.fail(c, err, "failed to update question")
	}

	return utils.SendSuccess(c, "question updated", question)
}

func (h *QuestionHandler) delete(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}
	questionID, err := parseUintParam(c, "qid")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid question id")
	}

	if err := h.service.Delete(requestContext(c), actorFromContext(c), examID, questionID); err != nil {
		return h.fail(c, err, "failed to delete question")
	}

	return utils.SendSuccess(c, "question deleted", nil)
}

func (h *QuestionHandler) fail(c *fiber.Ctx, err error, message string) error {
	switch {
	case errors.Is(err, service.ErrQuestionLocked):
		return utils.SendError(c, fiber.StatusConflict, "questions are locked once attempts exist")
	case errors.Is(err, service.ErrInvalidQuestion):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if handled, sendErr := sendAccessError(c, err); handled {
		return sendErr
	}
	requestLogger(h.logger, c).Error().Err(err).Msg(message)
	return utils.SendError(c, fiber.StatusInternalServerError, message)
}
