package dto

import "time"

// Event types published on the exam event stream.
const (
	EventExamStatusChanged = "exam.status_changed"
	EventAnswerSubmitted   = "exam.answer_submitted"
	EventAttemptFinalized  = "exam.attempt_finalized"

	// EventExamSnapshot is only sent on the live feed, never on the bus.
	EventExamSnapshot = "exam.snapshot"
)

// ExamEvent is the envelope broadcast to the event bus and live feed clients
// whenever something notable happens to an exam.
type ExamEvent struct {
	Type             string    `json:"type"`
	ExamID           uint      `json:"exam_id"`
	AttemptID        uint      `json:"attempt_id,omitempty"`
	UserID           uint      `json:"user_id,omitempty"`
	PreviousStatus   string    `json:"previous_status,omitempty"`
	Status           string    `json:"status,omitempty"`
	Score            float64   `json:"score,omitempty"`
	RemainingSeconds int64     `json:"remaining_seconds,omitempty"`
	NodeID           string    `json:"node_id"`
	OccurredAt       time.Time `json:"occurred_at"`
}
