package dto

// ExamAnalyticsResponse aggregates attempt outcomes for one exam.
type ExamAnalyticsResponse struct {
	ExamID          uint    `json:"exam_id"`
	TotalAttempts   int     `json:"total_attempts"`
	EndedAttempts   int     `json:"ended_attempts"`
	AverageScore    float64 `json:"average_score"`
	HighestScore    float64 `json:"highest_score"`
	LowestScore     float64 `json:"lowest_score"`
	CompletionRate  float64 `json:"completion_rate"`
	MaxPossibleView float64 `json:"max_possible_score"`
}

// CourseAnalyticsResponse aggregates activity across one course.
type CourseAnalyticsResponse struct {
	CourseID        uint    `json:"course_id"`
	EnrolledCount   int     `json:"enrolled_count"`
	ExamCount       int     `json:"exam_count"`
	AssignmentCount int     `json:"assignment_count"`
	AverageScore    float64 `json:"average_score"`
}
