package dto

import (
	"time"

	"github.com/studyline/studyline-api/internal/models"
)

// ExamCreateRequest describes the payload for scheduling a new exam.
type ExamCreateRequest struct {
	Title           string `json:"title" validate:"required,min=3"`
	CourseID        uint   `json:"course_id" validate:"required"`
	StartAt         string `json:"start_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	DurationMinutes int    `json:"duration_minutes" validate:"required"`
}

// ExamUpdateRequest describes the payload for editing an exam before it starts.
type ExamUpdateRequest struct {
	Title           *string `json:"title" validate:"omitempty,min=3"`
	StartAt         *string `json:"start_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	DurationMinutes *int    `json:"duration_minutes"`
}

// QuestionCreateRequest describes the payload for adding a question.
type QuestionCreateRequest struct {
	Prompt        string   `json:"prompt" validate:"required,min=3"`
	Type          string   `json:"type" validate:"required,oneof=multiple_choice true_false short_answer"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer" validate:"required"`
	Points        float64  `json:"points" validate:"omitempty,gt=0"`
	Position      int      `json:"position" validate:"omitempty,gte=0"`
}

// QuestionUpdateRequest describes the payload for editing a question.
type QuestionUpdateRequest struct {
	Prompt        *string  `json:"prompt" validate:"omitempty,min=3"`
	Options       []string `json:"options"`
	CorrectAnswer *string  `json:"correct_answer" validate:"omitempty,min=1"`
	Points        *float64 `json:"points" validate:"omitempty,gt=0"`
	Position      *int     `json:"position" validate:"omitempty,gte=0"`
}

// QuestionResponse is the student-facing serialization of a question; the
// correct answer never leaves the service layer.
type QuestionResponse struct {
	ID           uint      `json:"id"`
	ExamID       *uint     `json:"exam_id,omitempty"`
	AssignmentID *uint     `json:"assignment_id,omitempty"`
	Prompt       string    `json:"prompt"`
	Type         string    `json:"type"`
	Options      []string  `json:"options"`
	Points       float64   `json:"points"`
	Position     int       `json:"position"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ExamResponse is the serialized representation returned to API clients.
type ExamResponse struct {
	ID              uint               `json:"id"`
	Title           string             `json:"title"`
	CourseID        uint               `json:"course_id"`
	InstructorID    uint               `json:"instructor_id"`
	StartAt         time.Time          `json:"start_at"`
	EndAt           time.Time          `json:"end_at"`
	DurationMinutes int                `json:"duration_minutes"`
	Status          string             `json:"status"`
	Questions       []QuestionResponse `json:"questions,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// NewQuestionResponse converts a model into a DTO.
func NewQuestionResponse(model models.Question) QuestionResponse {
	return QuestionResponse{
		ID:           model.ID,
		ExamID:       model.ExamID,
		AssignmentID: model.AssignmentID,
		Prompt:       model.Prompt,
		Type:         model.Type,
		Options:      model.Options,
		Points:       model.Points,
		Position:     model.Position,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

// NewQuestionResponseSlice converts a slice of models into DTOs.
func NewQuestionResponseSlice(questions []models.Question) []QuestionResponse {
	responses := make([]QuestionResponse, 0, len(questions))
	for _, question := range questions {
		responses = append(responses, NewQuestionResponse(question))
	}

	return responses
}

// NewExamResponse converts a model into a DTO.
func NewExamResponse(model models.Exam) ExamResponse {
	response := ExamResponse{
		ID:              model.ID,
		Title:           model.Title,
		CourseID:        model.CourseID,
		InstructorID:    model.InstructorID,
		StartAt:         model.StartAt,
		EndAt:           model.EndAt(),
		DurationMinutes: model.DurationMinutes,
		Status:          model.Status,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}

	if len(model.Questions) > 0 {
		response.Questions = NewQuestionResponseSlice(model.Questions)
	}

	return response
}

// NewExamResponseSlice converts a slice of models into DTOs.
func NewExamResponseSlice(exams []models.Exam) []ExamResponse {
	responses := make([]ExamResponse, 0, len(exams))
	for _, exam := range exams {
		responses = append(responses, NewExamResponse(exam))
	}

	return responses
}
