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

// AttemptHandler exposes the student attempt lifecycle.
type AttemptHandler struct {
	service service.AttemptService
	logger  zerolog.Logger
}

// NewAttemptHandler constructs the handler.
func NewAttemptHandler(service service.AttemptService, logger zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		service: service,
		logger:  logger.With().Str("component", "attempt_handler").Logger(),
	}
}

// Register attaches attempt routes to the exams group. The autosave limiter
// may be nil.
func (h *AttemptHandler) Register(exams fiber.Router, autosaveLimiter fiber.Handler) {
	student := middleware.RequireStudent()
	teacher := middleware.RequireTeacher()

	autosave := []fiber.Handler{student}
	if autosaveLimiter != nil {
		autosave = append(autosave, autosaveLimiter)
	}
	autosave = append(autosave, h.autosave)

	exams.Post("/:id/begin", student, h.begin)
	exams.Patch("/:id/submissions/:sid", autosave...)
	exams.Post("/:id/submissions/:sid/submit", student, h.submit)
	exams.Get("/:id/submissions", teacher, h.list)
}

// RegisterSubmissions attaches the shared submission read route.
func (h *AttemptHandler) RegisterSubmissions(submissions fiber.Router) {
	submissions.Get("/:sid", middleware.WithAuth(h.get, middleware.AuthOptions{Role: middleware.AuthRoleAny}))
}

func (h *AttemptHandler) begin(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	response, err := h.service.Begin(requestContext(c), actorFromContext(c), examID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOutOfWindow):
			return utils.SendError(c, fiber.StatusForbidden, "exam is not open")
		case errors.Is(err, service.ErrAlreadyFinalized):
			return utils.SendError(c, fiber.StatusForbidden, "exam attempt already submitted")
		case errors.Is(err, service.ErrConflict):
			return utils.SendError(c, fiber.StatusConflict, "attempt is being created, retry")
		}
		if handled, sendErr := sendAccessError(c, err); handled {
			return sendErr
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("exam_id", examID).Msg("failed to begin exam")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to begin exam")
	}

	message := "exam started"
	if response.Resumed {
		message = "exam resumed"
	}
	return utils.SendSuccess(c, message, response)
}

func (h *AttemptHandler) autosave(c *fiber.Ctx) error {
	return h.sync(c, false)
}

func (h *AttemptHandler) submit(c *fiber.Ctx) error {
	return h.sync(c, true)
}

func (h *AttemptHandler) sync(c *fiber.Ctx, finalize bool) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}
	submissionID, err := parseUintParam(c, "sid")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.AnswerSyncRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	var response dto.ExamSubmissionResponse
	if finalize {
		response, err = h.service.Submit(requestContext(c), actorFromContext(c), examID, submissionID, payload)
	} else {
		response, err = h.service.Autosave(requestContext(c), actorFromContext(c), examID, submissionID, payload)
	}
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyFinalized):
			return utils.SendError(c, fiber.StatusBadRequest, "exam attempt already submitted")
		case errors.Is(err, service.ErrWindowClosed):
			return utils.SendError(c, fiber.StatusBadRequest, "exam window has closed")
		case errors.Is(err, service.ErrOutOfWindow):
			return utils.SendError(c, fiber.StatusBadRequest, "exam is not open")
		case errors.Is(err, service.ErrUnknownQuestion), errors.Is(err, service.ErrDuplicateAnswer):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		if handled, sendErr := sendAccessError(c, err); handled {
			return sendErr
		}
		requestLogger(h.logger, c).Error().Err(err).
			Uint("exam_id", examID).
			Uint("submission_id", submissionID).
			Bool("finalize", finalize).
			Msg("failed to store answers")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to store answers")
	}

	if finalize {
		return utils.SendSuccess(c, "exam submitted", response)
	}
	return utils.SendSuccess(c, "answers saved", response)
}

func (h *AttemptHandler) get(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "sid")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	response, err := h.service.Get(requestContext(c), actorFromContext(c), submissionID)
	if err != nil {
		if handled, sendErr := sendAccessError(c, err); handled {
			return sendErr
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("submission_id", submissionID).Msg("failed to load submission")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load submission")
	}

	return utils.SendSuccess(c, "submission retrieved", response)
}

func (h *AttemptHandler) list(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	rows, err := h.service.ListByExam(requestContext(c), actorFromContext(c), examID)
	if err != nil {
		if handled, sendErr := sendAccessError(c, err); handled {
			return sendErr
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("exam_id", examID).Msg("failed to list submissions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list submissions")
	}

	return utils.OK(c, rows, "submissions retrieved", map[string]int{"total": len(rows)})
}
