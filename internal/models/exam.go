package models

import "time"

const (
	// ExamStatusNotStarted indicates the exam window has not opened yet.
	ExamStatusNotStarted = "not_started"
	// ExamStatusStarted indicates the exam window is currently open.
	ExamStatusStarted = "started"
	// ExamStatusEnded indicates the exam window has closed.
	ExamStatusEnded = "ended"
)

// AllowedExamDurations lists the selectable exam lengths in minutes.
var AllowedExamDurations = []int{15, 30, 60, 90, 120}

// Exam is a timed assessment owning an ordered set of questions. Its status
// moves forward only (not_started -> started -> ended) and is derived from the
// start timestamp and duration by the status sweeper.
type Exam struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"size:255;not null" json:"title"`
	CourseID        uint           `gorm:"not null;index" json:"course_id"`
	InstructorID    uint           `gorm:"not null;index" json:"instructor_id"`
	StartAt         time.Time      `gorm:"not null" json:"start_at"`
	DurationMinutes int            `gorm:"not null" json:"duration_minutes"`
	Status          string     `gorm:"size:32;not null;default:not_started;index" json:"status"`
	Questions       []Question `gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// EndAt returns the instant the exam window closes.
func (e Exam) EndAt() time.Time {
	return e.StartAt.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

// IsAllowedExamDuration reports whether minutes is one of the selectable exam lengths.
func IsAllowedExamDuration(minutes int) bool {
	for _, allowed := range AllowedExamDurations {
		if minutes == allowed {
			return true
		}
	}
	return false
}
