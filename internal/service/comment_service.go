package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/studyline/studyline-api/internal/dto"
	"github.com/studyline/studyline-api/internal/models"
	"github.com/studyline/studyline-api/internal/repository"
)

// Sentinel errors surfaced by the comment workflow.
var (
	ErrCommentNotFound     = errors.New("comment not found")
	ErrCommentParentTarget = errors.New("comment must target exactly one of a course or an exam")
	ErrCommentEmpty        = errors.New("comment body empty after sanitization")
	ErrCommentForbidden    = errors.New("comment belongs to another user")
)

// CommentService exposes threaded discussion on courses and exams.
type CommentService interface {
	List(ctx context.Context, filter repository.CommentFilter) ([]dto.CommentResponse, error)
	Create(ctx context.Context, authorID uint, payload dto.CommentCreateRequest) (dto.CommentResponse, error)
	Delete(ctx context.Context, id, userID uint, isModerator bool) error
}

type commentService struct {
	comments  repository.CommentRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewCommentService builds the comment service.
func NewCommentService(comments repository.CommentRepository, validate *validator.Validate, logger zerolog.Logger) CommentService {
	return &commentService{
		comments:  comments,
		validator: validate,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger.With().Str("component", "comment_service").Logger(),
	}
}

func (s *commentService) List(ctx context.Context, filter repository.CommentFilter) ([]dto.CommentResponse, error) {
	if (filter.CourseID == nil) == (filter.ExamID == nil) {
		return nil, ErrCommentParentTarget
	}

	comments, err := s.comments.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewCommentResponseSlice(comments), nil
}

func (s *commentService) Create(ctx context.Context, authorID uint, payload dto.CommentCreateRequest) (dto.CommentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CommentResponse{}, err
	}

	if (payload.CourseID == nil) == (payload.ExamID == nil) {
		return dto.CommentResponse{}, ErrCommentParentTarget
	}

	body := strings.TrimSpace(s.sanitizer.Sanitize(payload.Body))
	if body == "" {
		return dto.CommentResponse{}, ErrCommentEmpty
	}

	if payload.ParentID != nil {
		parent, err := s.comments.GetByID(ctx, *payload.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.CommentResponse{}, ErrCommentNotFound
			}
			return dto.CommentResponse{}, err
		}
		// Replies inherit the parent's target.
		payload.CourseID = parent.CourseID
		payload.ExamID = parent.ExamID
	}

	comment := models.Comment{
		CourseID: payload.CourseID,
		ExamID:   payload.ExamID,
		ParentID: payload.ParentID,
		AuthorID: authorID,
		Body:     body,
	}
	if err := s.comments.Create(ctx, &comment); err != nil {
		return dto.CommentResponse{}, err
	}

	s.logger.Info().Uint("comment_id", comment.ID).Uint("author_id", authorID).Msg("comment posted")

	return dto.NewCommentResponse(comment), nil
}

func (s *commentService) Delete(ctx context.Context, id, userID uint, isModerator bool) error {
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		return err
	}

	if !isModerator && comment.AuthorID != userID {
		return ErrCommentForbidden
	}

	if err := s.comments.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		return err
	}

	s.logger.Info().Uint("comment_id", id).Msg("comment deleted")
	return nil
}
