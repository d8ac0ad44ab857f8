package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/studyline/studyline-api/internal/models"
	"github.com/studyline/studyline-api/internal/observability"
)

// ExamStore is the slice of the exam repository the sweeper needs.
type ExamStore interface {
	ListByStatuses(ctx context.Context, statuses []string) ([]models.Exam, error)
	UpdateStatus(ctx context.Context, id uint, from, to string) (bool, error)
}

// EventSink receives status transition notifications. Implementations must be
// safe to call from the sweep goroutine.
type EventSink interface {
	ExamStatusChanged(ctx context.Context, exam models.Exam, previous string)
}

// SweepResult summarises one sweep pass.
type SweepResult struct {
	Checked      int
	Transitioned int
	Failed       int
}

// Sweeper keeps Exam.Status consistent with wall-clock time. It evaluates both
// lifecycle thresholds on every pass, so an exam whose whole window elapsed
// between sweeps moves straight to ended.
type Sweeper struct {
	exams  ExamStore
	events EventSink
	logger zerolog.Logger
	now    func() time.Time
}

// NewSweeper constructs a sweeper. events may be nil.
func NewSweeper(exams ExamStore, events EventSink, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		exams:  exams,
		events: events,
		logger: logger.With().Str("component", "exam_sweeper").Logger(),
		now:    time.Now,
	}
}

// NextStatus returns the status the exam should hold at the given instant.
// It never moves backwards: an ended exam stays ended regardless of the clock.
func NextStatus(exam models.Exam, now time.Time) string {
	switch exam.Status {
	case models.ExamStatusNotStarted:
		if !now.Before(exam.EndAt()) {
			return models.ExamStatusEnded
		}
		if !now.Before(exam.StartAt) {
			return models.ExamStatusStarted
		}
		return models.ExamStatusNotStarted
	case models.ExamStatusStarted:
		if !now.Before(exam.EndAt()) {
			return models.ExamStatusEnded
		}
		return models.ExamStatusStarted
	default:
		return exam.Status
	}
}

// RunSweep executes a single transition-evaluation pass over all non-terminal
// exams. A persistence failure for one exam is logged and counted but does not
// stop the pass.
func (s *Sweeper) RunSweep(ctx context.Context) SweepResult {
	observability.SweepRuns().Inc()

	result := SweepResult{}
	now := s.now()

	exams, err := s.exams.ListByStatuses(ctx, []string{models.ExamStatusNotStarted, models.ExamStatusStarted})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list exams for sweep")
		observability.SweepErrors().Inc()
		result.Failed++
		return result
	}

	for _, exam := range exams {
		result.Checked++

		target := NextStatus(exam, now)
		if target == exam.Status {
			continue
		}

		applied, err := s.exams.UpdateStatus(ctx, exam.ID, exam.Status, target)
		if err != nil {
			s.logger.Error().Err(err).
				Uint("exam_id", exam.ID).
				Str("from", exam.Status).
				Str("to", target).
				Msg("failed to persist exam status transition")
			observability.SweepErrors().Inc()
			result.Failed++
			continue
		}

		if !applied {
			// Another sweep already moved this exam; re-applying is a no-op.
			continue
		}

		result.Transitioned++
		observability.ExamTransitions().WithLabelValues(target).Inc()
		s.logger.Info().
			Uint("exam_id", exam.ID).
			Str("from", exam.Status).
			Str("to", target).
			Msg("exam status transitioned")

		if s.events != nil {
			previous := exam.Status
			exam.Status = target
			s.events.ExamStatusChanged(ctx, exam, previous)
		}
	}

	return result
}

// Run drives RunSweep on a fixed interval until the context is cancelled. One
// sweep executes immediately so freshly deployed instances converge without
// waiting a full period.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	s.logger.Info().Dur("interval", interval).Msg("exam sweeper started")

	s.RunSweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("exam sweeper stopped")
			return
		case <-ticker.C:
			s.RunSweep(ctx)
		}
	}
}
