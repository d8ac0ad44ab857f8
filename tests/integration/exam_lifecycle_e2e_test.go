package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/studyline/studyline-api/internal/config"
	"github.com/studyline/studyline-api/internal/dto"
	"github.com/studyline/studyline-api/internal/handler"
	"github.com/studyline/studyline-api/internal/models"
	"github.com/studyline/studyline-api/internal/repository"
	"github.com/studyline/studyline-api/internal/router"
	"github.com/studyline/studyline-api/internal/scheduler"
	"github.com/studyline/studyline-api/internal/service"
	"github.com/studyline/studyline-api/internal/utils"
)

type stack struct {
	app     *fiber.App
	db      *gorm.DB
	events  service.ExamEventPublisher
	sweeper *scheduler.Sweeper
}

// setupStack wires the whole application against sqlite. Requests under
// /api/v1/manage and /api/v1/analytics run as an instructor, everything else
// runs as a student, mirroring the two principals of a real deployment.
func setupStack(t *testing.T) stack {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Enrollment{},
		&models.Exam{},
		&models.Question{},
		&models.ExamAttempt{},
		&models.Assignment{},
		&models.AssignmentAttempt{},
		&models.Answer{},
		&models.Comment{},
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	examRepo := repository.NewExamRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	attemptRepo := repository.NewExamAttemptRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	events := service.NewExamEventPublisher(nil, "", nil, logger)

	courseService := service.NewCourseService(courseRepo, enrollmentRepo, validate, logger)
	examService := service.NewExamService(examRepo, questionRepo, validate, logger)
	attemptService := service.NewAttemptService(examRepo, attemptRepo, questionRepo, answerRepo, events, service.GradingOptions{}, validate, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, questionRepo, answerRepo, nil, service.GradingOptions{}, validate, logger)
	commentService := service.NewCommentService(commentRepo, validate, logger)
	analyticsService := service.NewAnalyticsService(examRepo, attemptRepo, questionRepo, courseRepo, enrollmentRepo, assignmentRepo, nil, time.Minute, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		CourseHandler:     handler.NewCourseHandler(courseService, validate, logger),
		ExamHandler:       handler.NewExamHandler(examService, validate, logger),
		AttemptHandler:    handler.NewAttemptHandler(attemptService, validate, logger),
		AssignmentHandler: handler.NewAssignmentHandler(assignmentService, validate, logger),
		CommentHandler:    handler.NewCommentHandler(commentService, validate, logger),
		AnalyticsHandler:  handler.NewAnalyticsHandler(analyticsService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			if strings.HasPrefix(c.Path(), "/api/v1/manage") || strings.HasPrefix(c.Path(), "/api/v1/analytics") {
				c.Locals("user_id", uint(9001))
				c.Locals("user_role", models.RoleInstructor)
			} else {
				c.Locals("user_id", uint(1))
				c.Locals("user_role", models.RoleStudent)
			}
			return c.Next()
		},
	})

	return stack{
		app:     app,
		db:      db,
		events:  events,
		sweeper: scheduler.NewSweeper(examRepo, events, logger),
	}
}

func do(t *testing.T, app *fiber.App, method, target string, payload interface{}) *http.Response {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func payload(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	var envelope utils.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))

	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok, "expected object data, got %T", envelope.Data)
	return data
}

func TestExamLifecycleEndToEnd(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	// Instructor schedules an exam with two questions.
	resp := do(t, s.app, http.MethodPost, "/api/v1/manage/exams", fiber.Map{
		"title":            "Algebra Final",
		"course_id":        1,
		"start_at":         time.Now().Add(time.Hour).Format(time.RFC3339),
		"duration_minutes": 60,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "not_started", payload(t, resp)["status"])

	resp = do(t, s.app, http.MethodPost, "/api/v1/manage/exams/1/questions", fiber.Map{
		"type":           "short_answer",
		"prompt":         "2+2?",
		"correct_answer": "4",
		"points":         2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, s.app, http.MethodPost, "/api/v1/manage/exams/1/questions", fiber.Map{
		"type":           "true_false",
		"prompt":         "The earth is flat",
		"correct_answer": "false",
		"points":         1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The window has not opened yet, so attempts are rejected.
	resp = do(t, s.app, http.MethodPost, "/api/v1/attempts", fiber.Map{"exam_id": 1})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Move the start into the past and let the sweeper open the exam.
	require.NoError(t, s.db.Model(&models.Exam{}).Where("id = ?", 1).
		Update("start_at", time.Now().Add(-5*time.Minute)).Error)

	feed, cancel := s.events.Subscribe(1)
	defer cancel()

	result := s.sweeper.RunSweep(ctx)
	require.Equal(t, 1, result.Checked)
	require.Equal(t, 1, result.Transitioned)
	require.Zero(t, result.Failed)

	select {
	case event := <-feed:
		require.Equal(t, dto.EventExamStatusChanged, event.Type)
		require.Equal(t, models.ExamStatusNotStarted, event.PreviousStatus)
		require.Equal(t, models.ExamStatusStarted, event.Status)
	case <-time.After(time.Second):
		t.Fatal("expected status change event from sweep")
	}

	// A second sweep finds nothing to do.
	result = s.sweeper.RunSweep(ctx)
	require.Zero(t, result.Transitioned)

	// Student takes the exam.
	resp = do(t, s.app, http.MethodPost, "/api/v1/attempts", fiber.Map{"exam_id": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "in_progress", payload(t, resp)["status"])

	resp = do(t, s.app, http.MethodPost, "/api/v1/attempts/1/answers", fiber.Map{
		"question_id": 1,
		"value":       "4",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, payload(t, resp)["is_correct"])

	resp = do(t, s.app, http.MethodPost, "/api/v1/attempts/1/answers", fiber.Map{
		"question_id": 2,
		"value":       "true",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, payload(t, resp)["is_correct"])

	resp = do(t, s.app, http.MethodPost, "/api/v1/attempts/1/finalize", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	final := payload(t, resp)
	require.Equal(t, "ended", final["status"])
	require.Equal(t, 2.0, final["score"])

	// Instructor reviews the outcome.
	resp = do(t, s.app, http.MethodGet, "/api/v1/analytics/exams/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	analytics := payload(t, resp)
	require.Equal(t, 1.0, analytics["total_attempts"])
	require.Equal(t, 1.0, analytics["ended_attempts"])
	require.Equal(t, 2.0, analytics["average_score"])
	require.Equal(t, 3.0, analytics["max_possible_score"])
	require.Equal(t, 1.0, analytics["completion_rate"])
}

func TestSweeperClosesElapsedExamDirectly(t *testing.T) {
	s := setupStack(t)

	exam := models.Exam{
		Title:           "Missed Window",
		CourseID:        1,
		InstructorID:    9001,
		StartAt:         time.Now().Add(-2 * time.Hour),
		DurationMinutes: 30,
		Status:          models.ExamStatusNotStarted,
	}
	require.NoError(t, s.db.Create(&exam).Error)

	result := s.sweeper.RunSweep(context.Background())
	require.Equal(t, 1, result.Transitioned)

	var reloaded models.Exam
	require.NoError(t, s.db.First(&reloaded, exam.ID).Error)
	require.Equal(t, models.ExamStatusEnded, reloaded.Status)

	// An ended exam never reopens, whatever the clock says.
	result = s.sweeper.RunSweep(context.Background())
	require.Zero(t, result.Checked)
	require.Zero(t, result.Transitioned)
}

func TestSweeperEventDrivesAttemptWindow(t *testing.T) {
	s := setupStack(t)

	exam := models.Exam{
		Title:           "Closing Exam",
		CourseID:        1,
		InstructorID:    9001,
		StartAt:         time.Now().Add(-31 * time.Minute),
		DurationMinutes: 30,
		Status:          models.ExamStatusStarted,
	}
	require.NoError(t, s.db.Create(&exam).Error)

	result := s.sweeper.RunSweep(context.Background())
	require.Equal(t, 1, result.Transitioned)

	// The window is over, so a fresh attempt is rejected.
	resp := do(t, s.app, http.MethodPost, "/api/v1/attempts", fiber.Map{"exam_id": exam.ID})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}
