package models

import "time"

// Assignment is the untimed counterpart of an exam: students open an attempt,
// upload a file, and instructors grade answers attached to the attempt.
type Assignment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CourseID    uint      `gorm:"not null;index" json:"course_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	DueDate     time.Time  `gorm:"not null" json:"due_date"`
	MaxScore    float64    `gorm:"not null;default:100" json:"max_score"`
	Questions   []Question `gorm:"foreignKey:AssignmentID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return reference.After(a.DueDate)
}

// AssignmentAttempt mirrors ExamAttempt for assignments.
type AssignmentAttempt struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AssignmentID uint      `gorm:"not null;index:idx_assignment_attempts_assignment_user" json:"assignment_id"`
	UserID       uint      `gorm:"not null;index:idx_assignment_attempts_assignment_user" json:"user_id"`
	FileURL      string    `gorm:"size:512" json:"file_url"`
	Score        float64   `gorm:"not null;default:0" json:"score"`
	Status       string    `gorm:"size:32;not null;default:in_progress" json:"status"`
	Answers      []Answer  `gorm:"foreignKey:AssignmentAttemptID" json:"answers,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
