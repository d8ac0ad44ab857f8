package models

import "time"

// Course groups exams, assignments and enrollments.
type Course struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	InstructorID uint      `gorm:"not null;index" json:"instructor_id"`
	Published    bool      `gorm:"not null;default:false" json:"published"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Enrollment links a user to a course. Payment processing happens upstream;
// a row here means the user is entitled to the course content.
type Enrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_enrollments_course_user" json:"course_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_enrollments_course_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
