package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/studyline/studyline-api/internal/dto"
	"github.com/studyline/studyline-api/internal/service"
	"github.com/studyline/studyline-api/internal/utils"
)

// AttemptHandler wires exam attempt HTTP routes.
type AttemptHandler struct {
	service   service.AttemptService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAttemptHandler constructs the handler.
func NewAttemptHandler(service service.AttemptService, validator *validator.Validate, logger zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "attempt_handler").Logger(),
	}
}

// Register attaches student-facing attempt endpoints to the router group.
func (h *AttemptHandler) Register(router fiber.Router) {
	router.Post("", h.start)
	router.Get("/me", h.listMine)
	router.Get("/:id", h.get)
	router.Post("/:id/answers", h.submitAnswer)
	router.Post("/:id/finalize", h.finalize)
}

// RegisterManagement attaches instructor-only endpoints to the router group.
func (h *AttemptHandler) RegisterManagement(router fiber.Router) {
	router.Get("/exams/:examID/attempts", h.listByExam)
	router.Get("/answers/:answerID", h.getAnswer)
	router.Patch("/answers/:answerID", h.regradeAnswer)
	router.Delete("/answers/:answerID", h.deleteAnswer)
}

func (h *AttemptHandler) start(c *fiber.Ctx) error {
	var payload dto.AttemptStartRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	attempt, err := h.service.Start(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempt started", attempt)
}

func (h *AttemptHandler) listMine(c *fiber.Ctx) error {
	attempts, err := h.service.ListByUser(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "attempts retrieved", attempts)
}

func (h *AttemptHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	attempt, err := h.service.Get(c.Context(), id, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempt retrieved", attempt)
}

func (h *AttemptHandler) submitAnswer(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AnswerSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	answer, err := h.service.SubmitAnswer(c.Context(), id, userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answer recorded", answer)
}

func (h *AttemptHandler) finalize(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	attempt, err := h.service.Finalize(c.Context(), id, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempt finalized", attempt)
}

func (h *AttemptHandler) listByExam(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	attempts, err := h.service.ListByExam(c.Context(), examID)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "attempts retrieved", attempts)
}

func (h *AttemptHandler) getAnswer(c *fiber.Ctx) error {
	answerID, err := parseUintParam(c, "answerID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	answer, err := h.service.GetAnswer(c.Context(), answerID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answer retrieved", answer)
}

func (h *AttemptHandler) regradeAnswer(c *fiber.Ctx) error {
	answerID, err := parseUintParam(c, "answerID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AnswerUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	answer, err := h.service.RegradeAnswer(c.Context(), answerID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answer regraded", answer)
}

func (h *AttemptHandler) deleteAnswer(c *fiber.Ctx) error {
	answerID, err := parseUintParam(c, "answerID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.DeleteAnswer(c.Context(), answerID); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answer removed", nil)
}

func (h *AttemptHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	case errors.Is(err, service.ErrAttemptNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "attempt not found")
	case errors.Is(err, service.ErrAnswerNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "answer not found")
	case errors.Is(err, service.ErrAttemptForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "attempt belongs to another user")
	case errors.Is(err, service.ErrAttemptInProgress):
		return utils.SendError(c, fiber.StatusConflict, "an in-progress attempt already exists")
	case errors.Is(err, service.ErrAttemptEnded):
		return utils.SendError(c, fiber.StatusConflict, "attempt already ended")
	case errors.Is(err, service.ErrExamNotOpen),
		errors.Is(err, service.ErrAnswerAfterDeadline):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrQuestionNotInExam),
		errors.Is(err, service.ErrInvalidAnswerValue):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *AttemptHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
