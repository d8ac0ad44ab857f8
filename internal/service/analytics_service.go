package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/studyline/studyline-api/internal/dto"
	"github.com/studyline/studyline-api/internal/models"
	"github.com/studyline/studyline-api/internal/repository"
)

// AnalyticsService produces aggregated exam and course statistics. Results are
// cached in Redis for a short TTL because the aggregates are read far more
// often than attempts change.
type AnalyticsService interface {
	ExamAnalytics(ctx context.Context, examID uint) (dto.ExamAnalyticsResponse, error)
	CourseAnalytics(ctx context.Context, courseID uint) (dto.CourseAnalyticsResponse, error)
}

type analyticsService struct {
	exams       repository.ExamRepository
	attempts    repository.ExamAttemptRepository
	questions   repository.QuestionRepository
	courses     repository.CourseRepository
	enrollments repository.EnrollmentRepository
	assignments repository.AssignmentRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// NewAnalyticsService builds the analytics aggregator. cache may be nil.
func NewAnalyticsService(
	exams repository.ExamRepository,
	attempts repository.ExamAttemptRepository,
	questions repository.QuestionRepository,
	courses repository.CourseRepository,
	enrollments repository.EnrollmentRepository,
	assignments repository.AssignmentRepository,
	cache *redis.Client,
	ttl time.Duration,
	logger zerolog.Logger,
) AnalyticsService {
	return &analyticsService{
		exams:       exams,
		attempts:    attempts,
		questions:   questions,
		courses:     courses,
		enrollments: enrollments,
		assignments: assignments,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "analytics_service").Logger(),
	}
}

func (s *analyticsService) ExamAnalytics(ctx context.Context, examID uint) (dto.ExamAnalyticsResponse, error) {
	cacheKey := fmt.Sprintf("analytics:exam:%d", examID)

	var cachedResponse dto.ExamAnalyticsResponse
	if s.readCache(ctx, cacheKey, &cachedResponse) {
		return cachedResponse, nil
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamAnalyticsResponse{}, ErrExamNotFound
		}
		return dto.ExamAnalyticsResponse{}, err
	}

	attempts, err := s.attempts.ListByExam(ctx, exam.ID)
	if err != nil {
		return dto.ExamAnalyticsResponse{}, err
	}

	questions, err := s.questions.ListByExam(ctx, exam.ID)
	if err != nil {
		return dto.ExamAnalyticsResponse{}, err
	}

	var maxPossible float64
	for _, question := range questions {
		maxPossible += question.Points
	}

	response := buildExamAnalytics(exam.ID, attempts, maxPossible)

	s.writeCache(ctx, cacheKey, response)

	return response, nil
}

func (s *analyticsService) CourseAnalytics(ctx context.Context, courseID uint) (dto.CourseAnalyticsResponse, error) {
	cacheKey := fmt.Sprintf("analytics:course:%d", courseID)

	var cachedResponse dto.CourseAnalyticsResponse
	if s.readCache(ctx, cacheKey, &cachedResponse) {
		return cachedResponse, nil
	}

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseAnalyticsResponse{}, ErrCourseNotFound
		}
		return dto.CourseAnalyticsResponse{}, err
	}

	enrollments, err := s.enrollments.ListByCourse(ctx, course.ID)
	if err != nil {
		return dto.CourseAnalyticsResponse{}, err
	}

	exams, err := s.exams.List(ctx, course.ID)
	if err != nil {
		return dto.CourseAnalyticsResponse{}, err
	}

	assignments, err := s.assignments.List(ctx, course.ID)
	if err != nil {
		return dto.CourseAnalyticsResponse{}, err
	}

	var scoreTotal float64
	var scoredAttempts int
	for _, exam := range exams {
		attempts, err := s.attempts.ListByExam(ctx, exam.ID)
		if err != nil {
			return dto.CourseAnalyticsResponse{}, err
		}
		for _, attempt := range attempts {
			if attempt.IsEnded() {
				scoreTotal += attempt.Score
				scoredAttempts++
			}
		}
	}

	response := dto.CourseAnalyticsResponse{
		CourseID:        course.ID,
		EnrolledCount:   len(enrollments),
		ExamCount:       len(exams),
		AssignmentCount: len(assignments),
	}
	if scoredAttempts > 0 {
		response.AverageScore = scoreTotal / float64(scoredAttempts)
	}

	s.writeCache(ctx, cacheKey, response)

	return response, nil
}

func buildExamAnalytics(examID uint, attempts []models.ExamAttempt, maxPossible float64) dto.ExamAnalyticsResponse {
	response := dto.ExamAnalyticsResponse{
		ExamID:          examID,
		TotalAttempts:   len(attempts),
		MaxPossibleView: maxPossible,
	}

	var scoreTotal float64
	first := true
	for _, attempt := range attempts {
		if !attempt.IsEnded() {
			continue
		}
		response.EndedAttempts++
		scoreTotal += attempt.Score
		if first {
			response.HighestScore = attempt.Score
			response.LowestScore = attempt.Score
			first = false
			continue
		}
		if attempt.Score > response.HighestScore {
			response.HighestScore = attempt.Score
		}
		if attempt.Score < response.LowestScore {
			response.LowestScore = attempt.Score
		}
	}

	if response.EndedAttempts > 0 {
		response.AverageScore = scoreTotal / float64(response.EndedAttempts)
	}
	if response.TotalAttempts > 0 {
		response.CompletionRate = float64(response.EndedAttempts) / float64(response.TotalAttempts)
	}

	return response
}

func (s *analyticsService) readCache(ctx context.Context, key string, target interface{}) bool {
	if s.cache == nil {
		return false
	}

	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read analytics cache")
		}
		return false
	}

	if err := json.Unmarshal([]byte(cached), target); err != nil {
		return false
	}

	s.logger.Debug().Str("key", key).Msg("analytics cache hit")
	return true
}

func (s *analyticsService) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to store analytics cache")
	}
}
