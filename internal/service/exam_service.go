package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/studyline/studyline-api/internal/dto"
	"github.com/studyline/studyline-api/internal/models"
	"github.com/studyline/studyline-api/internal/repository"
)

// Sentinel errors surfaced by the exam management workflow.
var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrExamLocked       = errors.New("exam can no longer be edited")
	ErrInvalidDuration  = errors.New("duration must be one of the allowed exam lengths")
	ErrQuestionNotFound = errors.New("question not found")
	ErrInvalidQuestion  = errors.New("question definition is invalid")
)

// ExamService exposes instructor-facing exam and question management.
type ExamService interface {
	List(ctx context.Context, courseID uint) ([]dto.ExamResponse, error)
	Get(ctx context.Context, id uint) (dto.ExamResponse, error)
	GetWithQuestions(ctx context.Context, id uint) (dto.ExamResponse, error)
	Create(ctx context.Context, instructorID uint, payload dto.ExamCreateRequest) (dto.ExamResponse, error)
	Update(ctx context.Context, id uint, payload dto.ExamUpdateRequest) (dto.ExamResponse, error)
	Delete(ctx context.Context, id uint) error
	AddQuestion(ctx context.Context, examID uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error)
	UpdateQuestion(ctx context.Context, examID, questionID uint, payload dto.QuestionUpdateRequest) (dto.QuestionResponse, error)
	DeleteQuestion(ctx context.Context, examID, questionID uint) error
}

type examService struct {
	exams     repository.ExamRepository
	questions repository.QuestionRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewExamService builds the exam management service.
func NewExamService(exams repository.ExamRepository, questions repository.QuestionRepository, validate *validator.Validate, logger zerolog.Logger) ExamService {
	return &examService{
		exams:     exams,
		questions: questions,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "exam_service").Logger(),
		now:       time.Now,
	}
}

func (s *examService) List(ctx context.Context, courseID uint) ([]dto.ExamResponse, error) {
	exams, err := s.exams.List(ctx, courseID)
	if err != nil {
		return nil, err
	}

	return dto.NewExamResponseSlice(exams), nil
}

func (s *examService) Get(ctx context.Context, id uint) (dto.ExamResponse, error) {
	exam, err := s.getExam(ctx, id)
	if err != nil {
		return dto.ExamResponse{}, err
	}

	return dto.NewExamResponse(exam), nil
}

func (s *examService) GetWithQuestions(ctx context.Context, id uint) (dto.ExamResponse, error) {
	exam, err := s.exams.GetWithQuestions(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResponse{}, ErrExamNotFound
		}
		return dto.ExamResponse{}, err
	}

	return dto.NewExamResponse(exam), nil
}

func (s *examService) Create(ctx context.Context, instructorID uint, payload dto.ExamCreateRequest) (dto.ExamResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamResponse{}, err
	}

	if !models.IsAllowedExamDuration(payload.DurationMinutes) {
		return dto.ExamResponse{}, ErrInvalidDuration
	}

	startAt, err := time.Parse(time.RFC3339, payload.StartAt)
	if err != nil {
		return dto.ExamResponse{}, fmt.Errorf("invalid start time: %w", err)
	}

	if !startAt.After(s.now()) {
		return dto.ExamResponse{}, fmt.Errorf("start time must be in the future")
	}

	exam := models.Exam{
		Title:           strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		CourseID:        payload.CourseID,
		InstructorID:    instructorID,
		StartAt:         startAt,
		DurationMinutes: payload.DurationMinutes,
		Status:          models.ExamStatusNotStarted,
	}

	if err := s.exams.Create(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}

	s.logger.Info().Uint("exam_id", exam.ID).Time("start_at", exam.StartAt).Msg("exam created")

	return dto.NewExamResponse(exam), nil
}

func (s *examService) Update(ctx context.Context, id uint, payload dto.ExamUpdateRequest) (dto.ExamResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamResponse{}, err
	}

	exam, err := s.getExam(ctx, id)
	if err != nil {
		return dto.ExamResponse{}, err
	}

	if err := s.requireEditable(exam); err != nil {
		return dto.ExamResponse{}, err
	}

	if payload.Title != nil {
		exam.Title = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Title))
	}

	if payload.DurationMinutes != nil {
		if !models.IsAllowedExamDuration(*payload.DurationMinutes) {
			return dto.ExamResponse{}, ErrInvalidDuration
		}
		exam.DurationMinutes = *payload.DurationMinutes
	}

	if payload.StartAt != nil {
		startAt, err := time.Parse(time.RFC3339, *payload.StartAt)
		if err != nil {
			return dto.ExamResponse{}, fmt.Errorf("invalid start time: %w", err)
		}
		if !startAt.After(s.now()) {
			return dto.ExamResponse{}, fmt.Errorf("start time must be in the future")
		}
		exam.StartAt = startAt
	}

	if err := s.exams.Update(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}

	s.logger.Info().Uint("exam_id", exam.ID).Msg("exam updated")

	return dto.NewExamResponse(exam), nil
}

func (s *examService) Delete(ctx context.Context, id uint) error {
	exam, err := s.getExam(ctx, id)
	if err != nil {
		return err
	}

	if err := s.requireEditable(exam); err != nil {
		return err
	}

	if err := s.exams.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrExamNotFound
		}
		return err
	}

	s.logger.Info().Uint("exam_id", id).Msg("exam deleted")
	return nil
}

func (s *examService) AddQuestion(ctx context.Context, examID uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	if err := s.requireEditable(exam); err != nil {
		return dto.QuestionResponse{}, err
	}

	question := models.Question{
		ExamID:        &exam.ID,
		Prompt:        strings.TrimSpace(s.sanitizer.Sanitize(payload.Prompt)),
		Type:          payload.Type,
		Options:       payload.Options,
		CorrectAnswer: payload.CorrectAnswer,
		Points:        payload.Points,
		Position:      payload.Position,
	}
	if question.Points <= 0 {
		question.Points = 1
	}

	if err := validateQuestion(question); err != nil {
		return dto.QuestionResponse{}, err
	}

	if err := s.questions.Create(ctx, &question); err != nil {
		return dto.QuestionResponse{}, err
	}

	s.logger.Info().Uint("exam_id", exam.ID).Uint("question_id", question.ID).Msg("question added")

	return dto.NewQuestionResponse(question), nil
}

func (s *examService) UpdateQuestion(ctx context.Context, examID, questionID uint, payload dto.QuestionUpdateRequest) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	if err := s.requireEditable(exam); err != nil {
		return dto.QuestionResponse{}, err
	}

	question, err := s.getExamQuestion(ctx, exam.ID, questionID)
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	if payload.Prompt != nil {
		question.Prompt = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Prompt))
	}
	if payload.Options != nil {
		question.Options = payload.Options
	}
	if payload.CorrectAnswer != nil {
		question.CorrectAnswer = *payload.CorrectAnswer
	}
	if payload.Points != nil {
		question.Points = *payload.Points
	}
	if payload.Position != nil {
		question.Position = *payload.Position
	}

	if err := validateQuestion(question); err != nil {
		return dto.QuestionResponse{}, err
	}

	if err := s.questions.Update(ctx, &question); err != nil {
		return dto.QuestionResponse{}, err
	}

	s.logger.Info().Uint("exam_id", exam.ID).Uint("question_id", question.ID).Msg("question updated")

	return dto.NewQuestionResponse(question), nil
}

func (s *examService) DeleteQuestion(ctx context.Context, examID, questionID uint) error {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return err
	}

	if err := s.requireEditable(exam); err != nil {
		return err
	}

	question, err := s.getExamQuestion(ctx, exam.ID, questionID)
	if err != nil {
		return err
	}

	if err := s.questions.Delete(ctx, question.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	s.logger.Info().Uint("exam_id", exam.ID).Uint("question_id", question.ID).Msg("question deleted")
	return nil
}

func (s *examService) getExam(ctx context.Context, id uint) (models.Exam, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Exam{}, ErrExamNotFound
		}
		return models.Exam{}, err
	}

	return exam, nil
}

func (s *examService) getExamQuestion(ctx context.Context, examID, questionID uint) (models.Question, error) {
	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Question{}, ErrQuestionNotFound
		}
		return models.Question{}, err
	}

	if !question.BelongsToExam(examID) {
		return models.Question{}, ErrQuestionNotFound
	}

	return question, nil
}

// requireEditable rejects any mutation once the exam window has opened,
// judged by the clock rather than the persisted status.
func (s *examService) requireEditable(exam models.Exam) error {
	if exam.Status != models.ExamStatusNotStarted || !s.now().Before(exam.StartAt) {
		return ErrExamLocked
	}
	return nil
}

func validateQuestion(question models.Question) error {
	if question.Prompt == "" {
		return ErrInvalidQuestion
	}
	if !models.IsValidQuestionType(question.Type) {
		return ErrInvalidQuestion
	}

	switch question.Type {
	case models.QuestionTypeTrueFalse:
		if question.CorrectAnswer != "true" && question.CorrectAnswer != "false" {
			return ErrInvalidQuestion
		}
	case models.QuestionTypeMultipleChoice:
		if len(question.Options) < 2 {
			return ErrInvalidQuestion
		}
		found := false
		for _, option := range question.Options {
			if option == question.CorrectAnswer {
				found = true
				break
			}
		}
		if !found {
			return ErrInvalidQuestion
		}
	case models.QuestionTypeShortAnswer:
		if strings.TrimSpace(question.CorrectAnswer) == "" {
			return ErrInvalidQuestion
		}
	}

	return nil
}
