package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/studyline/studyline-api/internal/dto"
	"github.com/studyline/studyline-api/internal/models"
	"github.com/studyline/studyline-api/internal/repository"
)

// Sentinel errors surfaced by the assignment workflow.
var (
	ErrAssignmentNotFound        = errors.New("assignment not found")
	ErrAssignmentPastDue         = errors.New("assignment deadline has passed")
	ErrAssignmentAttemptNotFound = errors.New("assignment attempt not found")
	ErrAssignmentAttemptExists   = errors.New("an in-progress attempt already exists for this assignment")
	ErrUnsupportedFileType       = errors.New("unsupported submission file type")
)

// FileUploader abstracts uploading binary data and returning a URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// AssignmentService exposes assignment authoring and the student attempt flow.
// Assignments mirror exams structurally but are gated by a due date instead of
// a timed window.
type AssignmentService interface {
	List(ctx context.Context, courseID uint) ([]dto.AssignmentResponse, error)
	Get(ctx context.Context, id uint) (dto.AssignmentResponse, error)
	Create(ctx context.Context, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error)
	Delete(ctx context.Context, id uint) error
	AddQuestion(ctx context.Context, assignmentID uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error)

	StartAttempt(ctx context.Context, assignmentID, userID uint) (dto.AssignmentAttemptResponse, error)
	SubmitAnswer(ctx context.Context, attemptID, userID uint, payload dto.AnswerSubmitRequest) (dto.AnswerResponse, error)
	UploadFile(ctx context.Context, attemptID, userID uint, file *multipart.FileHeader) (dto.AssignmentAttemptResponse, error)
	FinalizeAttempt(ctx context.Context, attemptID, userID uint) (dto.AssignmentAttemptResponse, error)
	ListAttempts(ctx context.Context, assignmentID uint) ([]dto.AssignmentAttemptResponse, error)
	GradeAttempt(ctx context.Context, attemptID uint, score float64) (dto.AssignmentAttemptResponse, error)
}

type assignmentService struct {
	repo      repository.AssignmentRepository
	questions repository.QuestionRepository
	answers   repository.AnswerRepository
	uploader  FileUploader
	grading   GradingOptions
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAssignmentService builds a new assignment service. uploader may be nil,
// in which case file uploads are rejected.
func NewAssignmentService(
	repo repository.AssignmentRepository,
	questions repository.QuestionRepository,
	answers repository.AnswerRepository,
	uploader FileUploader,
	grading GradingOptions,
	validate *validator.Validate,
	logger zerolog.Logger,
) AssignmentService {
	return &assignmentService{
		repo:      repo,
		questions: questions,
		answers:   answers,
		uploader:  uploader,
		grading:   grading,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "assignment_service").Logger(),
		now:       time.Now,
	}
}

func (s *assignmentService) List(ctx context.Context, courseID uint) ([]dto.AssignmentResponse, error) {
	assignments, err := s.repo.List(ctx, courseID)
	if err != nil {
		return nil, err
	}

	return dto.NewAssignmentResponseSlice(assignments), nil
}

func (s *assignmentService) Get(ctx context.Context, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.getAssignment(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	questions, err := s.questions.ListByAssignment(ctx, assignment.ID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	assignment.Questions = questions

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Create(ctx context.Context, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	dueDate, err := time.Parse(time.RFC3339, payload.DueDate)
	if err != nil {
		return dto.AssignmentResponse{}, fmt.Errorf("invalid due date: %w", err)
	}

	if !dueDate.After(s.now()) {
		return dto.AssignmentResponse{}, fmt.Errorf("due date must be in the future")
	}

	assignment := models.Assignment{
		CourseID:    payload.CourseID,
		Title:       strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		Description: strings.TrimSpace(s.sanitizer.Sanitize(payload.Description)),
		DueDate:     dueDate,
		MaxScore:    payload.MaxScore,
	}
	if assignment.MaxScore <= 0 {
		assignment.MaxScore = 100
	}

	if err := s.repo.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Msg("assignment created")

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.getAssignment(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	if payload.Title != nil {
		assignment.Title = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Title))
	}
	if payload.Description != nil {
		assignment.Description = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Description))
	}
	if payload.MaxScore != nil {
		assignment.MaxScore = *payload.MaxScore
	}
	if payload.DueDate != nil {
		dueDate, err := time.Parse(time.RFC3339, *payload.DueDate)
		if err != nil {
			return dto.AssignmentResponse{}, fmt.Errorf("invalid due date: %w", err)
		}
		if !dueDate.After(s.now()) {
			return dto.AssignmentResponse{}, fmt.Errorf("due date must be in the future")
		}
		assignment.DueDate = dueDate
	}

	if err := s.repo.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Msg("assignment updated")

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	s.logger.Info().Uint("assignment_id", id).Msg("assignment deleted")
	return nil
}

func (s *assignmentService) AddQuestion(ctx context.Context, assignmentID uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	assignment, err := s.getAssignment(ctx, assignmentID)
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	question := models.Question{
		AssignmentID:  &assignment.ID,
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

	s.logger.Info().Uint("assignment_id", assignment.ID).Uint("question_id", question.ID).Msg("question added")

	return dto.NewQuestionResponse(question), nil
}

func (s *assignmentService) StartAttempt(ctx context.Context, assignmentID, userID uint) (dto.AssignmentAttemptResponse, error) {
	assignment, err := s.getAssignment(ctx, assignmentID)
	if err != nil {
		return dto.AssignmentAttemptResponse{}, err
	}

	if assignment.IsPastDue(s.now()) {
		return dto.AssignmentAttemptResponse{}, ErrAssignmentPastDue
	}

	inProgress, err := s.repo.HasInProgressAttempt(ctx, assignment.ID, userID)
	if err != nil {
		return dto.AssignmentAttemptResponse{}, err
	}
	if inProgress {
		return dto.AssignmentAttemptResponse{}, ErrAssignmentAttemptExists
	}

	attempt := models.AssignmentAttempt{
		AssignmentID: assignment.ID,
		UserID:       userID,
		Status:       models.AttemptStatusInProgress,
	}
	if err := s.repo.CreateAttempt(ctx, &attempt); err != nil {
		return dto.AssignmentAttemptResponse{}, err
	}

	s.logger.Info().
		Uint("attempt_id", attempt.ID).
		Uint("assignment_id", assignment.ID).
		Uint("user_id", userID).
		Msg("assignment attempt started")

	return dto.NewAssignmentAttemptResponse(attempt), nil
}

func (s *assignmentService) SubmitAnswer(ctx context.Context, attemptID, userID uint, payload dto.AnswerSubmitRequest) (dto.AnswerResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AnswerResponse{}, err
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return dto.AnswerResponse{}, err
	}

	if attempt.Status == models.AttemptStatusEnded {
		return dto.AnswerResponse{}, ErrAttemptEnded
	}

	assignment, err := s.getAssignment(ctx, attempt.AssignmentID)
	if err != nil {
		return dto.AnswerResponse{}, err
	}

	if assignment.IsPastDue(s.now()) {
		return dto.AnswerResponse{}, ErrAssignmentPastDue
	}

	question, err := s.questions.GetByID(ctx, payload.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerResponse{}, ErrQuestionNotFound
		}
		return dto.AnswerResponse{}, err
	}
	if !question.BelongsToAssignment(assignment.ID) {
		return dto.AnswerResponse{}, ErrQuestionNotFound
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
		QuestionID:          question.ID,
		AssignmentAttemptID: &attempt.ID,
		Type:                question.Type,
		Value:               payload.Value,
		IsCorrect:           correct,
		SubmittedBy:         userID,
		Points:              points,
	}
	if err := s.answers.UpsertForAssignmentAttempt(ctx, &answer); err != nil {
		return dto.AnswerResponse{}, err
	}

	return dto.NewAnswerResponse(answer), nil
}

func (s *assignmentService) UploadFile(ctx context.Context, attemptID, userID uint, file *multipart.FileHeader) (dto.AssignmentAttemptResponse, error) {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return dto.AssignmentAttemptResponse{}, err
	}

	if attempt.Status == models.AttemptStatusEnded {
		return dto.AssignmentAttemptResponse{}, ErrAttemptEnded
	}

	if s.uploader == nil {
		return dto.AssignmentAttemptResponse{}, errors.New("file uploads are not configured")
	}

	if err := validateSubmissionFileType(file); err != nil {
		return dto.AssignmentAttemptResponse{}, err
	}

	src, err := file.Open()
	if err != nil {
		return dto.AssignmentAttemptResponse{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	url, err := s.uploader.Upload(ctx, file.Filename, src)
	if err != nil {
		return dto.AssignmentAttemptResponse{}, fmt.Errorf("failed to upload file: %w", err)
	}

	if err := s.repo.UpdateAttemptFileURL(ctx, attempt.ID, url); err != nil {
		return dto.AssignmentAttemptResponse{}, err
	}
	attempt.FileURL = url

	s.logger.Info().Uint("attempt_id", attempt.ID).Str("file_url", url).Msg("submission file uploaded")

	return dto.NewAssignmentAttemptResponse(attempt), nil
}

func (s *assignmentService) FinalizeAttempt(ctx context.Context, attemptID, userID uint) (dto.AssignmentAttemptResponse, error) {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return dto.AssignmentAttemptResponse{}, err
	}

	if attempt.Status == models.AttemptStatusEnded {
		return dto.NewAssignmentAttemptResponse(attempt), nil
	}

	score, err := s.answers.SumPointsByAssignmentAttempt(ctx, attempt.ID)
	if err != nil {
		return dto.AssignmentAttemptResponse{}, err
	}

	applied, err := s.repo.FinalizeAttempt(ctx, attempt.ID, score)
	if err != nil {
		return dto.AssignmentAttemptResponse{}, err
	}

	if !applied {
		stored, err := s.repo.GetAttempt(ctx, attempt.ID)
		if err != nil {
			return dto.AssignmentAttemptResponse{}, err
		}
		return dto.NewAssignmentAttemptResponse(stored), nil
	}

	attempt.Status = models.AttemptStatusEnded
	attempt.Score = score

	s.logger.Info().
		Uint("attempt_id", attempt.ID).
		Float64("score", score).
		Msg("assignment attempt finalized")

	return dto.NewAssignmentAttemptResponse(attempt), nil
}

func (s *assignmentService) ListAttempts(ctx context.Context, assignmentID uint) ([]dto.AssignmentAttemptResponse, error) {
	attempts, err := s.repo.ListAttempts(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	return dto.NewAssignmentAttemptResponseSlice(attempts), nil
}

func (s *assignmentService) GradeAttempt(ctx context.Context, attemptID uint, score float64) (dto.AssignmentAttemptResponse, error) {
	attempt, err := s.repo.GetAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentAttemptResponse{}, ErrAssignmentAttemptNotFound
		}
		return dto.AssignmentAttemptResponse{}, err
	}

	assignment, err := s.getAssignment(ctx, attempt.AssignmentID)
	if err != nil {
		return dto.AssignmentAttemptResponse{}, err
	}

	if score < 0 || score > assignment.MaxScore {
		return dto.AssignmentAttemptResponse{}, fmt.Errorf("score must be between 0 and %v", assignment.MaxScore)
	}

	if err := s.repo.UpdateAttemptScore(ctx, attempt.ID, score); err != nil {
		return dto.AssignmentAttemptResponse{}, err
	}
	attempt.Score = score

	s.logger.Info().Uint("attempt_id", attempt.ID).Float64("score", score).Msg("assignment attempt graded")

	return dto.NewAssignmentAttemptResponse(attempt), nil
}

func (s *assignmentService) getAssignment(ctx context.Context, id uint) (models.Assignment, error) {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (s *assignmentService) getOwnedAttempt(ctx context.Context, id, userID uint) (models.AssignmentAttempt, error) {
	attempt, err := s.repo.GetAttempt(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AssignmentAttempt{}, ErrAssignmentAttemptNotFound
		}
		return models.AssignmentAttempt{}, err
	}

	if attempt.UserID != userID {
		return models.AssignmentAttempt{}, ErrAttemptForbidden
	}

	return attempt, nil
}

func validateSubmissionFileType(file *multipart.FileHeader) error {
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	mime, err := mimetype.DetectReader(reader)
	if err != nil {
		return fmt.Errorf("failed to detect file type: %w", err)
	}

	allowed := []string{"application/pdf", "application/zip", "application/x-zip-compressed", "image/png", "image/jpeg", "text/plain"}
	for _, a := range allowed {
		if mime.Is(a) {
			return nil
		}
	}

	return ErrUnsupportedFileType
}
