package models

import "time"

// Answer is a graded response record. Exactly one of ExamAttemptID and
// AssignmentAttemptID is set; the composite unique indexes make resubmission
// an upsert rather than a duplicate row.
type Answer struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	QuestionID          uint      `gorm:"not null;uniqueIndex:idx_answers_exam_attempt;uniqueIndex:idx_answers_assignment_attempt" json:"question_id"`
	ExamAttemptID       *uint     `gorm:"uniqueIndex:idx_answers_exam_attempt" json:"exam_attempt_id,omitempty"`
	AssignmentAttemptID *uint     `gorm:"uniqueIndex:idx_answers_assignment_attempt" json:"assignment_attempt_id,omitempty"`
	Type                string    `gorm:"size:32;not null" json:"type"`
	Value               string    `gorm:"type:text;not null" json:"value"`
	IsCorrect           bool      `gorm:"not null;default:false" json:"is_correct"`
	SubmittedBy         uint      `gorm:"not null" json:"submitted_by"`
	Points              float64   `gorm:"not null;default:0" json:"points"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
