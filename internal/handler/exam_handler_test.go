package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/studyline/studyline-api/internal/config"
	"github.com/studyline/studyline-api/internal/handler"
	"github.com/studyline/studyline-api/internal/models"
	"github.com/studyline/studyline-api/internal/repository"
	"github.com/studyline/studyline-api/internal/router"
	"github.com/studyline/studyline-api/internal/service"
	"github.com/studyline/studyline-api/internal/utils"
)

type testApp struct {
	app *fiber.App
	db  *gorm.DB
}

func setupApp(t *testing.T, role string) testApp {
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

	courseService := service.NewCourseService(courseRepo, enrollmentRepo, validate, logger)
	examService := service.NewExamService(examRepo, questionRepo, validate, logger)
	attemptService := service.NewAttemptService(examRepo, attemptRepo, questionRepo, answerRepo, nil, service.GradingOptions{}, validate, logger)
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
			c.Locals("user_id", uint(1))
			c.Locals("user_role", role)
			return c.Next()
		},
	})

	return testApp{app: app, db: db}
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	return req
}

func decodeEnvelope(t *testing.T, resp *http.Response) utils.APIResponse {
	t.Helper()

	var envelope utils.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope
}

func dataField(t *testing.T, envelope utils.APIResponse) map[string]interface{} {
	t.Helper()

	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok, "expected object data, got %T", envelope.Data)
	return data
}

func TestExamHandlerCreateAndFetch(t *testing.T) {
	ta := setupApp(t, models.RoleInstructor)

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/manage/exams", fiber.Map{
		"title":            "Midterm",
		"course_id":        1,
		"start_at":         time.Now().Add(time.Hour).Format(time.RFC3339),
		"duration_minutes": 60,
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	created := decodeEnvelope(t, resp)
	require.True(t, created.Success)
	examID := dataField(t, created)["id"].(float64)

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/manage/exams/1/questions", fiber.Map{
		"type":           "multiple_choice",
		"prompt":         "Capital of France",
		"options":        []string{"Paris", "Lyon"},
		"correct_answer": "Paris",
		"points":         3,
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ta.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/exams/1", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	fetched := dataField(t, decodeEnvelope(t, resp))
	require.Equal(t, examID, fetched["id"])
	require.Equal(t, "not_started", fetched["status"])

	questions, ok := fetched["questions"].([]interface{})
	require.True(t, ok)
	require.Len(t, questions, 1)

	question := questions[0].(map[string]interface{})
	require.Equal(t, "Capital of France", question["prompt"])
	require.NotContains(t, question, "correct_answer")
}

func TestExamHandlerRejectsBadDuration(t *testing.T) {
	ta := setupApp(t, models.RoleInstructor)

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/manage/exams", fiber.Map{
		"title":            "Midterm",
		"course_id":        1,
		"start_at":         time.Now().Add(time.Hour).Format(time.RFC3339),
		"duration_minutes": 45,
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.False(t, decodeEnvelope(t, resp).Success)
}

func TestExamHandlerManagementForbiddenForStudents(t *testing.T) {
	ta := setupApp(t, models.RoleStudent)

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/manage/exams", fiber.Map{
		"title":            "Midterm",
		"course_id":        1,
		"start_at":         time.Now().Add(time.Hour).Format(time.RFC3339),
		"duration_minutes": 60,
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestExamHandlerUpdateLockedAfterStart(t *testing.T) {
	ta := setupApp(t, models.RoleInstructor)

	exam := models.Exam{
		Title:           "Running Exam",
		CourseID:        1,
		InstructorID:    1,
		StartAt:         time.Now().Add(-5 * time.Minute),
		DurationMinutes: 60,
		Status:          models.ExamStatusStarted,
	}
	require.NoError(t, ta.db.Create(&exam).Error)

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPatch, "/api/v1/manage/exams/1", fiber.Map{
		"title": "Renamed Exam",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestExamHandlerGetUnknown(t *testing.T) {
	ta := setupApp(t, models.RoleStudent)

	resp, err := ta.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/exams/99", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
