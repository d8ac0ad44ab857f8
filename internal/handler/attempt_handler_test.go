package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/studyline/studyline-api/internal/models"
)

func seedOpenExam(t *testing.T, ta testApp) (models.Exam, models.Question) {
	t.Helper()

	exam := models.Exam{
		Title:           "Midterm",
		CourseID:        1,
		InstructorID:    1,
		StartAt:         time.Now().Add(-10 * time.Minute),
		DurationMinutes: 60,
		Status:          models.ExamStatusStarted,
	}
	require.NoError(t, ta.db.Create(&exam).Error)

	question := models.Question{
		ExamID:        &exam.ID,
		Prompt:        "2+2?",
		Type:          models.QuestionTypeShortAnswer,
		CorrectAnswer: "4",
		Points:        2,
	}
	require.NoError(t, ta.db.Create(&question).Error)

	return exam, question
}

func TestAttemptLifecycle(t *testing.T) {
	ta := setupApp(t, models.RoleStudent)
	exam, question := seedOpenExam(t, ta)

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts", fiber.Map{
		"exam_id": exam.ID,
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	attempt := dataField(t, decodeEnvelope(t, resp))
	require.Equal(t, "in_progress", attempt["status"])

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts/1/answers", fiber.Map{
		"question_id": question.ID,
		"value":       "4",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	answer := dataField(t, decodeEnvelope(t, resp))
	require.Equal(t, true, answer["is_correct"])
	require.Equal(t, 2.0, answer["points"])

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts/1/finalize", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	final := dataField(t, decodeEnvelope(t, resp))
	require.Equal(t, "ended", final["status"])
	require.Equal(t, 2.0, final["score"])
}

func TestAttemptSecondStartConflicts(t *testing.T) {
	ta := setupApp(t, models.RoleStudent)
	exam, _ := seedOpenExam(t, ta)

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts", fiber.Map{"exam_id": exam.ID}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts", fiber.Map{"exam_id": exam.ID}))
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAttemptStartOutsideWindowConflicts(t *testing.T) {
	ta := setupApp(t, models.RoleStudent)

	exam := models.Exam{
		Title:           "Future Exam",
		CourseID:        1,
		InstructorID:    1,
		StartAt:         time.Now().Add(time.Hour),
		DurationMinutes: 30,
		Status:          models.ExamStatusNotStarted,
	}
	require.NoError(t, ta.db.Create(&exam).Error)

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts", fiber.Map{"exam_id": exam.ID}))
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAttemptFinalizeIsIdempotentOverHTTP(t *testing.T) {
	ta := setupApp(t, models.RoleStudent)
	exam, question := seedOpenExam(t, ta)

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts", fiber.Map{"exam_id": exam.ID}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts/1/answers", fiber.Map{
		"question_id": question.ID,
		"value":       "5",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts/1/finalize", nil))
	require.NoError(t, err)
	first := dataField(t, decodeEnvelope(t, resp))

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts/1/finalize", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := dataField(t, decodeEnvelope(t, resp))

	require.Equal(t, first["score"], second["score"])
	require.Equal(t, "ended", second["status"])
}

func TestAttemptSubmitAfterFinalizeConflicts(t *testing.T) {
	ta := setupApp(t, models.RoleStudent)
	exam, question := seedOpenExam(t, ta)

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts", fiber.Map{"exam_id": exam.ID}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts/1/finalize", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts/1/answers", fiber.Map{
		"question_id": question.ID,
		"value":       "4",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAttemptForeignQuestionRejected(t *testing.T) {
	ta := setupApp(t, models.RoleStudent)
	exam, _ := seedOpenExam(t, ta)

	other := models.Exam{
		Title:           "Other Exam",
		CourseID:        1,
		InstructorID:    1,
		StartAt:         time.Now().Add(-10 * time.Minute),
		DurationMinutes: 60,
		Status:          models.ExamStatusStarted,
	}
	require.NoError(t, ta.db.Create(&other).Error)

	foreign := models.Question{
		ExamID:        &other.ID,
		Prompt:        "3+3?",
		Type:          models.QuestionTypeShortAnswer,
		CorrectAnswer: "6",
		Points:        1,
	}
	require.NoError(t, ta.db.Create(&foreign).Error)

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts", fiber.Map{"exam_id": exam.ID}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts/1/answers", fiber.Map{
		"question_id": foreign.ID,
		"value":       "6",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAttemptManagementRegrade(t *testing.T) {
	ta := setupApp(t, models.RoleInstructor)
	exam, question := seedOpenExam(t, ta)

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts", fiber.Map{"exam_id": exam.ID}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts/1/answers", fiber.Map{
		"question_id": question.ID,
		"value":       "IV",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPatch, "/api/v1/manage/answers/1", fiber.Map{
		"is_correct": true,
		"points":     2,
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	regraded := dataField(t, decodeEnvelope(t, resp))
	require.Equal(t, true, regraded["is_correct"])
	require.Equal(t, 2.0, regraded["points"])
}

func TestAttemptManagementGetAnswer(t *testing.T) {
	ta := setupApp(t, models.RoleInstructor)
	exam, question := seedOpenExam(t, ta)

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts", fiber.Map{"exam_id": exam.ID}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts/1/answers", fiber.Map{
		"question_id": question.ID,
		"value":       "4",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ta.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/manage/answers/1", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	answer := dataField(t, decodeEnvelope(t, resp))
	require.Equal(t, "4", answer["value"])
	require.Equal(t, true, answer["is_correct"])

	resp, err = ta.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/manage/answers/99", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAttemptManagementDeleteAnswer(t *testing.T) {
	ta := setupApp(t, models.RoleInstructor)
	exam, question := seedOpenExam(t, ta)

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts", fiber.Map{"exam_id": exam.ID}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts/1/answers", fiber.Map{
		"question_id": question.ID,
		"value":       "4",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ta.app.Test(jsonRequest(t, http.MethodDelete, "/api/v1/manage/answers/1", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ta.app.Test(jsonRequest(t, http.MethodDelete, "/api/v1/manage/answers/1", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAttemptListByExamManagement(t *testing.T) {
	ta := setupApp(t, models.RoleInstructor)
	exam, _ := seedOpenExam(t, ta)

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/v1/attempts", fiber.Map{"exam_id": exam.ID}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ta.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/manage/exams/1/attempts", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	envelope := decodeEnvelope(t, resp)
	attempts, ok := envelope.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, attempts, 1)
}
