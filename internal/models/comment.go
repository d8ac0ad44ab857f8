package models

import "time"

// Comment is a threaded remark on a course or an exam. Exactly one parent
// reference is set.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  *uint     `gorm:"index" json:"course_id,omitempty"`
	ExamID    *uint     `gorm:"index" json:"exam_id,omitempty"`
	ParentID  *uint     `gorm:"index" json:"parent_id,omitempty"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
