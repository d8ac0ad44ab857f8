package dto

import (
	"time"

	"github.com/studyline/studyline-api/internal/models"
)

// CommentCreateRequest describes the payload for posting a comment. Exactly one
// of course_id or exam_id must be set.
type CommentCreateRequest struct {
	CourseID *uint  `json:"course_id"`
	ExamID   *uint  `json:"exam_id"`
	ParentID *uint  `json:"parent_id"`
	Body     string `json:"body" validate:"required,min=1,max=4000"`
}

// CommentResponse is the serialized representation returned to API clients.
type CommentResponse struct {
	ID        uint      `json:"id"`
	CourseID  *uint     `json:"course_id,omitempty"`
	ExamID    *uint     `json:"exam_id,omitempty"`
	ParentID  *uint     `json:"parent_id,omitempty"`
	AuthorID  uint      `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCommentResponse converts a model into a DTO.
func NewCommentResponse(model models.Comment) CommentResponse {
	return CommentResponse{
		ID:        model.ID,
		CourseID:  model.CourseID,
		ExamID:    model.ExamID,
		ParentID:  model.ParentID,
		AuthorID:  model.AuthorID,
		Body:      model.Body,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// NewCommentResponseSlice converts a slice of models into DTOs.
func NewCommentResponseSlice(comments []models.Comment) []CommentResponse {
	responses := make([]CommentResponse, 0, len(comments))
	for _, comment := range comments {
		responses = append(responses, NewCommentResponse(comment))
	}

	return responses
}
