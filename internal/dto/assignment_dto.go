package dto

import (
	"time"

	"github.com/studyline/studyline-api/internal/models"
)

// AssignmentCreateRequest describes the payload for creating a new assignment.
type AssignmentCreateRequest struct {
	Title       string  `form:"title" json:"title" validate:"required,min=3"`
	Description string  `form:"description" json:"description" validate:"required,min=10"`
	CourseID    uint    `form:"course_id" json:"course_id" validate:"required"`
	DueDate     string  `form:"due_date" json:"due_date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	MaxScore    float64 `form:"max_score" json:"max_score" validate:"omitempty,gt=0"`
}

// AssignmentUpdateRequest describes the payload for updating an assignment.
type AssignmentUpdateRequest struct {
	Title       *string  `form:"title" json:"title" validate:"omitempty,min=3"`
	Description *string  `form:"description" json:"description" validate:"omitempty,min=10"`
	DueDate     *string  `form:"due_date" json:"due_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	MaxScore    *float64 `form:"max_score" json:"max_score" validate:"omitempty,gt=0"`
}

// AssignmentResponse is the serialized representation returned to API clients.
type AssignmentResponse struct {
	ID          uint               `json:"id"`
	CourseID    uint               `json:"course_id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	DueDate     time.Time          `json:"due_date"`
	MaxScore    float64            `json:"max_score"`
	Questions   []QuestionResponse `json:"questions,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// AssignmentAttemptResponse is the serialized representation of a submission attempt.
type AssignmentAttemptResponse struct {
	ID           uint             `json:"id"`
	AssignmentID uint             `json:"assignment_id"`
	UserID       uint             `json:"user_id"`
	FileURL      string           `json:"file_url,omitempty"`
	Score        float64          `json:"score"`
	Status       string           `json:"status"`
	Answers      []AnswerResponse `json:"answers,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// NewAssignmentResponse converts a model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	response := AssignmentResponse{
		ID:          model.ID,
		CourseID:    model.CourseID,
		Title:       model.Title,
		Description: model.Description,
		DueDate:     model.DueDate,
		MaxScore:    model.MaxScore,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}

	if len(model.Questions) > 0 {
		response.Questions = NewQuestionResponseSlice(model.Questions)
	}

	return response
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment))
	}

	return responses
}

// NewAssignmentAttemptResponse converts a model into a DTO.
func NewAssignmentAttemptResponse(model models.AssignmentAttempt) AssignmentAttemptResponse {
	response := AssignmentAttemptResponse{
		ID:           model.ID,
		AssignmentID: model.AssignmentID,
		UserID:       model.UserID,
		FileURL:      model.FileURL,
		Score:        model.Score,
		Status:       model.Status,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}

	if len(model.Answers) > 0 {
		response.Answers = NewAnswerResponseSlice(model.Answers)
	}

	return response
}

// NewAssignmentAttemptResponseSlice converts a slice of models into DTOs.
func NewAssignmentAttemptResponseSlice(attempts []models.AssignmentAttempt) []AssignmentAttemptResponse {
	responses := make([]AssignmentAttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		responses = append(responses, NewAssignmentAttemptResponse(attempt))
	}

	return responses
}
