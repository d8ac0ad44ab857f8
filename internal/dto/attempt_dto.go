package dto

import (
	"time"

	"github.com/studyline/studyline-api/internal/models"
)

// AttemptStartRequest describes the payload for beginning an exam attempt.
type AttemptStartRequest struct {
	ExamID uint `json:"exam_id" validate:"required"`
}

// AnswerSubmitRequest describes the payload for submitting one answer.
type AnswerSubmitRequest struct {
	QuestionID uint   `json:"question_id" validate:"required"`
	Value      string `json:"value" validate:"required"`
}

// AnswerUpdateRequest describes the instructor regrade payload.
type AnswerUpdateRequest struct {
	IsCorrect *bool    `json:"is_correct"`
	Points    *float64 `json:"points" validate:"omitempty,gte=0"`
}

// AnswerResponse is the serialized representation of a graded answer.
type AnswerResponse struct {
	ID                  uint      `json:"id"`
	QuestionID          uint      `json:"question_id"`
	ExamAttemptID       *uint     `json:"exam_attempt_id,omitempty"`
	AssignmentAttemptID *uint     `json:"assignment_attempt_id,omitempty"`
	Type                string    `json:"type"`
	Value               string    `json:"value"`
	IsCorrect           bool      `json:"is_correct"`
	SubmittedBy         uint      `json:"submitted_by"`
	Points              float64   `json:"points"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// AttemptResponse is the serialized representation of an exam attempt.
type AttemptResponse struct {
	ID        uint             `json:"id"`
	ExamID    uint             `json:"exam_id"`
	UserID    uint             `json:"user_id"`
	Score     float64          `json:"score"`
	Status    string           `json:"status"`
	Answers   []AnswerResponse `json:"answers,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewAnswerResponse converts a model into a DTO.
func NewAnswerResponse(model models.Answer) AnswerResponse {
	return AnswerResponse{
		ID:                  model.ID,
		QuestionID:          model.QuestionID,
		ExamAttemptID:       model.ExamAttemptID,
		AssignmentAttemptID: model.AssignmentAttemptID,
		Type:                model.Type,
		Value:               model.Value,
		IsCorrect:           model.IsCorrect,
		SubmittedBy:         model.SubmittedBy,
		Points:              model.Points,
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
	}
}

// NewAnswerResponseSlice converts a slice of models into DTOs.
func NewAnswerResponseSlice(answers []models.Answer) []AnswerResponse {
	responses := make([]AnswerResponse, 0, len(answers))
	for _, answer := range answers {
		responses = append(responses, NewAnswerResponse(answer))
	}

	return responses
}

// NewAttemptResponse converts a model into a DTO.
func NewAttemptResponse(model models.ExamAttempt) AttemptResponse {
	response := AttemptResponse{
		ID:        model.ID,
		ExamID:    model.ExamID,
		UserID:    model.UserID,
		Score:     model.Score,
		Status:    model.Status,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}

	if len(model.Answers) > 0 {
		response.Answers = NewAnswerResponseSlice(model.Answers)
	}

	return response
}

// NewAttemptResponseSlice converts a slice of models into DTOs.
func NewAttemptResponseSlice(attempts []models.ExamAttempt) []AttemptResponse {
	responses := make([]AttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		responses = append(responses, NewAttemptResponse(attempt))
	}

	return responses
}
