package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/studyline/studyline-api/internal/dto"
	"github.com/studyline/studyline-api/internal/models"
	"github.com/studyline/studyline-api/internal/repository"
	"github.com/studyline/studyline-api/internal/service"
	"github.com/studyline/studyline-api/internal/utils"
)

// CommentHandler wires discussion HTTP routes.
type CommentHandler struct {
	service   service.CommentService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewCommentHandler constructs the handler.
func NewCommentHandler(service service.CommentService, validator *validator.Validate, logger zerolog.Logger) *CommentHandler {
	return &CommentHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "comment_handler").Logger(),
	}
}

// Register attaches comment endpoints to the router group.
func (h *CommentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Delete("/:id", h.delete)
}

func (h *CommentHandler) list(c *fiber.Ctx) error {
	filter := repository.CommentFilter{}

	courseID, err := parseQueryInt(c, "course_id")
	if err != nil || courseID < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course_id")
	}
	if courseID > 0 {
		id := uint(courseID)
		filter.CourseID = &id
	}

	examID, err := parseQueryInt(c, "exam_id")
	if err != nil || examID < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam_id")
	}
	if examID > 0 {
		id := uint(examID)
		filter.ExamID = &id
	}

	if filter.Limit, err = parseQueryInt(c, "limit"); err != nil || filter.Limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	if filter.Offset, err = parseQueryInt(c, "offset"); err != nil || filter.Offset < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	comments, err := h.service.List(c.Context(), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "comments retrieved", comments)
}

func (h *CommentHandler) create(c *fiber.Ctx) error {
	var payload dto.CommentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	comment, err := h.service.Create(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "comment posted", comment)
}

func (h *CommentHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	role := userRoleFromContext(c)
	isModerator := role == models.RoleInstructor || role == models.RoleAdmin

	if err := h.service.Delete(c.Context(), id, userIDFromContext(c), isModerator); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "comment deleted", fiber.Map{"id": id})
}

func (h *CommentHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrCommentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "comment not found")
	case errors.Is(err, service.ErrCommentForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "comment belongs to another user")
	case errors.Is(err, service.ErrCommentParentTarget),
		errors.Is(err, service.ErrCommentEmpty):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
