package models

import "time"

const (
	// AttemptStatusInProgress is the only state an attempt can be created in.
	AttemptStatusInProgress = "in_progress"
	// AttemptStatusEnded is terminal; no transition leaves it.
	AttemptStatusEnded = "ended"
)

// ExamAttempt is a single user's pass at an exam. The score is written once,
// when the attempt is finalized.
type ExamAttempt struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ExamID    uint      `gorm:"not null;index:idx_exam_attempts_exam_user" json:"exam_id"`
	UserID    uint      `gorm:"not null;index:idx_exam_attempts_exam_user" json:"user_id"`
	Score     float64   `gorm:"not null;default:0" json:"score"`
	Status    string    `gorm:"size:32;not null;default:in_progress" json:"status"`
	Answers   []Answer  `gorm:"foreignKey:ExamAttemptID" json:"answers,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsEnded reports whether the attempt has reached its terminal state.
func (a ExamAttempt) IsEnded() bool {
	return a.Status == AttemptStatusEnded
}
