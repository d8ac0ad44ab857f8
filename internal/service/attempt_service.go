package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/studyline/studyline-api/internal/dto"
	"github.com/studyline/studyline-api/internal/models"
	"github.com/studyline/studyline-api/internal/observability"
	"github.com/studyline/studyline-api/internal/repository"
)

// Sentinel errors surfaced by the attempt workflow.
var (
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrAttemptForbidden    = errors.New("attempt belongs to another user")
	ErrAttemptEnded        = errors.New("attempt already ended")
	ErrAttemptInProgress   = errors.New("an in-progress attempt already exists for this exam")
	ErrExamNotOpen         = errors.New("exam is not accepting answers")
	ErrQuestionNotInExam   = errors.New("question does not belong to this exam")
	ErrAnswerNotFound      = errors.New("answer not found")
	ErrInvalidAnswerValue  = errors.New("answer value is not valid for this question")
	ErrAnswerAfterDeadline = errors.New("exam window has closed")
)

// GradingOptions tunes how submitted values are compared to the stored
// correct answer. With NormalizeAnswers off the comparison is byte-exact.
type GradingOptions struct {
	NormalizeAnswers bool
}

// Grade compares a submitted value against the expected answer.
func (o GradingOptions) Grade(expected, submitted string) bool {
	if o.NormalizeAnswers {
		return strings.EqualFold(strings.TrimSpace(expected), strings.TrimSpace(submitted))
	}
	return expected == submitted
}

// AttemptService exposes the exam attempt lifecycle: start, answer, finalize.
type AttemptService interface {
	Start(ctx context.Context, userID uint, payload dto.AttemptStartRequest) (dto.AttemptResponse, error)
	Get(ctx context.Context, id, userID uint) (dto.AttemptResponse, error)
	ListByExam(ctx context.Context, examID uint) ([]dto.AttemptResponse, error)
	ListByUser(ctx context.Context, userID uint) ([]dto.AttemptResponse, error)
	SubmitAnswer(ctx context.Context, attemptID, userID uint, payload dto.AnswerSubmitRequest) (dto.AnswerResponse, error)
	Finalize(ctx context.Context, attemptID, userID uint) (dto.AttemptResponse, error)
	GetAnswer(ctx context.Context, answerID uint) (dto.AnswerResponse, error)
	RegradeAnswer(ctx context.Context, answerID uint, payload dto.AnswerUpdateRequest) (dto.AnswerResponse, error)
	DeleteAnswer(ctx context.Context, answerID uint) error
}

type attemptService struct {
	exams     repository.ExamRepository
	attempts  repository.ExamAttemptRepository
	questions repository.QuestionRepository
	answers   repository.AnswerRepository
	events    ExamEventPublisher
	grading   GradingOptions
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAttemptService builds the attempt service. events may be nil.
func NewAttemptService(
	exams repository.ExamRepository,
	attempts repository.ExamAttemptRepository,
	questions repository.QuestionRepository,
	answers repository.AnswerRepository,
	events ExamEventPublisher,
	grading GradingOptions,
	validate *validator.Validate,
	logger zerolog.Logger,
) AttemptService {
	return &attemptService{
		exams:     exams,
		attempts:  attempts,
		questions: questions,
		answers:   answers,
		events:    events,
		grading:   grading,
		validator: validate,
		logger:    logger.With().Str("component", "attempt_service").Logger(),
		tracer:    otel.Tracer("github.com/studyline/studyline-api/internal/service/attempt"),
		now:       time.Now,
	}
}

func (s *attemptService) Start(ctx context.Context, userID uint, payload dto.AttemptStartRequest) (dto.AttemptResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AttemptResponse{}, err
	}

	exam, err := s.exams.GetByID(ctx, payload.ExamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttemptResponse{}, ErrExamNotFound
		}
		return dto.AttemptResponse{}, err
	}

	// Attempt creation is gated on the persisted status: a not_started exam
	// stays closed until the sweeper opens it, even past the start instant.
	// The clock still guards the window tail so a stale started exam whose
	// window elapsed cannot be entered either.
	if exam.Status != models.ExamStatusStarted {
		return dto.AttemptResponse{}, ErrExamNotOpen
	}
	now := s.now()
	if now.Before(exam.StartAt) || !now.Before(exam.EndAt()) {
		return dto.AttemptResponse{}, ErrExamNotOpen
	}

	inProgress, err := s.attempts.HasInProgress(ctx, exam.ID, userID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}
	if inProgress {
		return dto.AttemptResponse{}, ErrAttemptInProgress
	}

	attempt := models.ExamAttempt{
		ExamID: exam.ID,
		UserID: userID,
		Status: models.AttemptStatusInProgress,
	}
	if err := s.attempts.Create(ctx, &attempt); err != nil {
		return dto.AttemptResponse{}, err
	}

	s.logger.Info().
		Uint("attempt_id", attempt.ID).
		Uint("exam_id", exam.ID).
		Uint("user_id", userID).
		Msg("exam attempt started")

	return dto.NewAttemptResponse(attempt), nil
}

func (s *attemptService) Get(ctx context.Context, id, userID uint) (dto.AttemptResponse, error) {
	attempt, err := s.getOwnedAttempt(ctx, id, userID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}

	answers, err := s.answers.ListByExamAttempt(ctx, attempt.ID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}
	attempt.Answers = answers

	return dto.NewAttemptResponse(attempt), nil
}

func (s *attemptService) ListByExam(ctx context.Context, examID uint) ([]dto.AttemptResponse, error) {
	attempts, err := s.attempts.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	return dto.NewAttemptResponseSlice(attempts), nil
}

func (s *attemptService) ListByUser(ctx context.Context, userID uint) ([]dto.AttemptResponse, error) {
	attempts, err := s.attempts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return dto.NewAttemptResponseSlice(attempts), nil
}

func (s *attemptService) SubmitAnswer(ctx context.Context, attemptID, userID uint, payload dto.AnswerSubmitRequest) (dto.AnswerResponse, error) {
	ctx, span := s.tracer.Start(ctx, "attempt.submit_answer", trace.WithAttributes(
		attribute.Int64("attempt.id", int64(attemptID)),
		attribute.Int64("attempt.question_id", int64(payload.QuestionID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.AnswerResponse{}, err
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		span.RecordError(err)
		return dto.AnswerResponse{}, err
	}

	if attempt.IsEnded() {
		return dto.AnswerResponse{}, ErrAttemptEnded
	}

	exam, err := s.exams.GetByID(ctx, attempt.ExamID)
	if err != nil {
		span.RecordError(err)
		return dto.AnswerResponse{}, err
	}

	if !s.now().Before(exam.EndAt()) {
		return dto.AnswerResponse{}, ErrAnswerAfterDeadline
	}

	question, err := s.questions.GetByID(ctx, payload.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerResponse{}, ErrQuestionNotInExam
		}
		span.RecordError(err)
		return dto.AnswerResponse{}, err
	}
	if !question.BelongsToExam(exam.ID) {
		return dto.AnswerResponse{}, ErrQuestionNotInExam
	}

	if err := validateAnswerValue(question, payload.Value); err != nil {
		return dto.AnswerResponse{}, err
	}

	correct := s.grading.Grade(question.CorrectAnswer, payload.Value)
	points := 0.0
	if correct {
		points = question.Points
	}

	answer := models.Answer{
		QuestionID:    question.ID,
		ExamAttemptID: &attempt.ID,
		Type:          question.Type,
		Value:         payload.Value,
		IsCorrect:     correct,
		SubmittedBy:   userID,
		Points:        points,
	}
	if err := s.answers.UpsertForExamAttempt(ctx, &answer); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "answer_upsert_failed")
		return dto.AnswerResponse{}, err
	}

	// A finalize racing this call may have ended the attempt between the
	// status check above and the upsert. The raced answer must not survive
	// on an ended attempt, so re-check and roll the row back.
	current, err := s.attempts.GetByID(ctx, attempt.ID)
	if err != nil {
		span.RecordError(err)
		return dto.AnswerResponse{}, err
	}
	if current.IsEnded() {
		if err := s.answers.Delete(ctx, answer.ID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Uint("answer_id", answer.ID).Msg("failed to roll back answer on ended attempt")
		}
		span.SetAttributes(attribute.Bool("attempt.lost_finalize_race", true))
		return dto.AnswerResponse{}, ErrAttemptEnded
	}

	observability.AnswersGraded().WithLabelValues(strconv.FormatBool(correct)).Inc()
	span.SetAttributes(attribute.Bool("attempt.answer_correct", correct))

	if s.events != nil {
		s.events.AnswerSubmitted(ctx, exam.ID, attempt.ID, userID)
	}

	return dto.NewAnswerResponse(answer), nil
}

func (s *attemptService) Finalize(ctx context.Context, attemptID, userID uint) (dto.AttemptResponse, error) {
	ctx, span := s.tracer.Start(ctx, "attempt.finalize", trace.WithAttributes(
		attribute.Int64("attempt.id", int64(attemptID)),
	))
	defer span.End()

	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		span.RecordError(err)
		return dto.AttemptResponse{}, err
	}

	// Repeated finalize calls return the stored terminal state untouched.
	if attempt.IsEnded() {
		span.SetAttributes(attribute.Bool("attempt.idempotent", true))
		return dto.NewAttemptResponse(attempt), nil
	}

	score, err := s.answers.SumPointsByExamAttempt(ctx, attempt.ID)
	if err != nil {
		span.RecordError(err)
		return dto.AttemptResponse{}, err
	}

	applied, err := s.attempts.Finalize(ctx, attempt.ID, score)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalize_failed")
		return dto.AttemptResponse{}, err
	}

	if !applied {
		// A concurrent finalize won; its score is the one that counts.
		stored, err := s.attempts.GetByID(ctx, attempt.ID)
		if err != nil {
			return dto.AttemptResponse{}, err
		}
		span.SetAttributes(attribute.Bool("attempt.idempotent", true))
		return dto.NewAttemptResponse(stored), nil
	}

	attempt.Status = models.AttemptStatusEnded
	attempt.Score = score

	observability.AttemptsFinalized().Inc()
	span.SetAttributes(attribute.Float64("attempt.score", score))
	s.logger.Info().
		Uint("attempt_id", attempt.ID).
		Uint("exam_id", attempt.ExamID).
		Float64("score", score).
		Msg("exam attempt finalized")

	if s.events != nil {
		s.events.AttemptFinalized(ctx, attempt.ExamID, attempt.ID, userID, score)
	}

	return dto.NewAttemptResponse(attempt), nil
}

func (s *attemptService) GetAnswer(ctx context.Context, answerID uint) (dto.AnswerResponse, error) {
	answer, err := s.answers.GetByID(ctx, answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerResponse{}, ErrAnswerNotFound
		}
		return dto.AnswerResponse{}, err
	}

	return dto.NewAnswerResponse(answer), nil
}

func (s *attemptService) RegradeAnswer(ctx context.Context, answerID uint, payload dto.AnswerUpdateRequest) (dto.AnswerResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AnswerResponse{}, err
	}

	answer, err := s.answers.GetByID(ctx, answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerResponse{}, ErrAnswerNotFound
		}
		return dto.AnswerResponse{}, err
	}

	if payload.IsCorrect != nil {
		answer.IsCorrect = *payload.IsCorrect
	}
	if payload.Points != nil {
		answer.Points = *payload.Points
	}

	if err := s.answers.Update(ctx, &answer); err != nil {
		return dto.AnswerResponse{}, err
	}

	s.refreshEndedScore(ctx, answer)

	s.logger.Info().Uint("answer_id", answer.ID).Msg("answer regraded")

	return dto.NewAnswerResponse(answer), nil
}

func (s *attemptService) DeleteAnswer(ctx context.Context, answerID uint) error {
	answer, err := s.answers.GetByID(ctx, answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnswerNotFound
		}
		return err
	}

	if err := s.answers.Delete(ctx, answer.ID); err != nil {
		return err
	}

	s.refreshEndedScore(ctx, answer)

	s.logger.Info().Uint("answer_id", answer.ID).Msg("answer removed")

	return nil
}

// refreshEndedScore keeps an ended attempt's score consistent with its
// remaining answers after an instructor correction.
func (s *attemptService) refreshEndedScore(ctx context.Context, answer models.Answer) {
	if answer.ExamAttemptID == nil {
		return
	}

	attempt, err := s.attempts.GetByID(ctx, *answer.ExamAttemptID)
	if err != nil || !attempt.IsEnded() {
		return
	}

	score, err := s.answers.SumPointsByExamAttempt(ctx, attempt.ID)
	if err != nil {
		return
	}

	if err := s.attempts.UpdateScore(ctx, attempt.ID, score); err != nil {
		s.logger.Warn().Err(err).Uint("attempt_id", attempt.ID).Msg("failed to refresh attempt score after correction")
	}
}

func (s *attemptService) getOwnedAttempt(ctx context.Context, id, userID uint) (models.ExamAttempt, error) {
	attempt, err := s.attempts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ExamAttempt{}, ErrAttemptNotFound
		}
		return models.ExamAttempt{}, err
	}

	if attempt.UserID != userID {
		return models.ExamAttempt{}, ErrAttemptForbidden
	}

	return attempt, nil
}

func validateAnswerValue(question models.Question, value string) error {
	switch question.Type {
	case models.QuestionTypeTrueFalse:
		if value != "true" && value != "false" {
			return ErrInvalidAnswerValue
		}
	case models.QuestionTypeMultipleChoice:
		for _, option := range question.Options {
			if option == value {
				return nil
			}
		}
		return ErrInvalidAnswerValue
	}
	return nil
}
