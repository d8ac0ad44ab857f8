package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// QuestionTypeMultipleChoice presents a fixed set of option strings.
	QuestionTypeMultipleChoice = "multiple_choice"
	// QuestionTypeTrueFalse presents exactly the options "true" and "false".
	QuestionTypeTrueFalse = "true_false"
	// QuestionTypeShortAnswer accepts free text graded by string comparison.
	QuestionTypeShortAnswer = "short_answer"
)

// Question belongs to exactly one exam or one assignment and is treated as
// immutable once an attempt references it.
type Question struct {
	ID            uint                        `gorm:"primaryKey" json:"id"`
	ExamID        *uint                       `gorm:"index" json:"exam_id,omitempty"`
	AssignmentID  *uint                       `gorm:"index" json:"assignment_id,omitempty"`
	Prompt        string                      `gorm:"type:text;not null" json:"prompt"`
	Type          string                      `gorm:"size:32;not null" json:"type"`
	Options       datatypes.JSONSlice[string] `json:"options"`
	CorrectAnswer string                      `gorm:"size:512;not null" json:"-"`
	Points        float64                     `gorm:"not null;default:1" json:"points"`
	Position      int                         `gorm:"not null;default:0" json:"position"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

// BelongsToExam reports whether the question is owned by the given exam.
func (q Question) BelongsToExam(examID uint) bool {
	return q.ExamID != nil && *q.ExamID == examID
}

// BelongsToAssignment reports whether the question is owned by the given assignment.
func (q Question) BelongsToAssignment(assignmentID uint) bool {
	return q.AssignmentID != nil && *q.AssignmentID == assignmentID
}

// IsValidQuestionType reports whether t is one of the supported question types.
func IsValidQuestionType(t string) bool {
	switch t {
	case QuestionTypeMultipleChoice, QuestionTypeTrueFalse, QuestionTypeShortAnswer:
		return true
	default:
		return false
	}
}
