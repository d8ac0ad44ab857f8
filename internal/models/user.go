package models

import "time"

const (
	// RoleStudent can browse, enroll and sit exams.
	RoleStudent = "student"
	// RoleInstructor can author courses, exams and regrade answers.
	RoleInstructor = "instructor"
	// RoleAdmin can do everything an instructor can, everywhere.
	RoleAdmin = "admin"
)

// User is a minimal account record; authentication itself lives in the JWT
// middleware, this row only anchors foreign keys.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role      string    `gorm:"size:32;not null;default:student" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
