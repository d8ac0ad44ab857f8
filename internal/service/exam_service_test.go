package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/studyline/studyline-api/internal/dto"
	"github.com/studyline/studyline-api/internal/models"
)

type examFixture struct {
	svc       *examService
	exams     *fakeExamRepo
	questions *fakeQuestionRepo
	now       time.Time
}

func newExamFixture(t *testing.T) examFixture {
	t.Helper()

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	exams := newFakeExamRepo()
	questions := newFakeQuestionRepo()

	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewExamService(exams, questions, validate, testLogger()).(*examService)
	svc.now = func() time.Time { return now }

	return examFixture{svc: svc, exams: exams, questions: questions, now: now}
}

func (fx examFixture) createExam(t *testing.T) dto.ExamResponse {
	t.Helper()

	exam, err := fx.svc.Create(context.Background(), 7, dto.ExamCreateRequest{
		Title:           "Final Exam",
		CourseID:        1,
		StartAt:         fx.now.Add(time.Hour).Format(time.RFC3339),
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	return exam
}

func TestCreateExamRejectsDisallowedDuration(t *testing.T) {
	fx := newExamFixture(t)

	for _, minutes := range []int{10, 45, 121, -30} {
		_, err := fx.svc.Create(context.Background(), 7, dto.ExamCreateRequest{
			Title:           "Final Exam",
			CourseID:        1,
			StartAt:         fx.now.Add(time.Hour).Format(time.RFC3339),
			DurationMinutes: minutes,
		})
		require.ErrorIs(t, err, ErrInvalidDuration, "duration %d should be rejected", minutes)
	}
}

func TestCreateExamRejectsPastStart(t *testing.T) {
	fx := newExamFixture(t)

	_, err := fx.svc.Create(context.Background(), 7, dto.ExamCreateRequest{
		Title:           "Final Exam",
		CourseID:        1,
		StartAt:         fx.now.Add(-time.Minute).Format(time.RFC3339),
		DurationMinutes: 60,
	})
	require.Error(t, err)
}

func TestCreateExamDefaultsToNotStarted(t *testing.T) {
	fx := newExamFixture(t)

	exam := fx.createExam(t)
	require.Equal(t, models.ExamStatusNotStarted, exam.Status)
	require.Equal(t, exam.StartAt.Add(time.Hour), exam.EndAt)
}

func TestUpdateExamLockedOnceWindowOpens(t *testing.T) {
	fx := newExamFixture(t)
	exam := fx.createExam(t)

	// Clock moves past the start instant; the sweep has not run yet.
	fx.svc.now = func() time.Time { return fx.now.Add(61 * time.Minute) }

	title := "Renamed"
	_, err := fx.svc.Update(context.Background(), exam.ID, dto.ExamUpdateRequest{Title: &title})
	require.ErrorIs(t, err, ErrExamLocked)

	require.ErrorIs(t, fx.svc.Delete(context.Background(), exam.ID), ErrExamLocked)
}

func TestUpdateExamEditableBeforeStart(t *testing.T) {
	fx := newExamFixture(t)
	exam := fx.createExam(t)

	minutes := 90
	updated, err := fx.svc.Update(context.Background(), exam.ID, dto.ExamUpdateRequest{DurationMinutes: &minutes})
	require.NoError(t, err)
	require.Equal(t, 90, updated.DurationMinutes)
}

func TestAddQuestionValidatesDefinition(t *testing.T) {
	fx := newExamFixture(t)
	exam := fx.createExam(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		payload dto.QuestionCreateRequest
	}{
		{
			name: "true_false with non-boolean answer",
			payload: dto.QuestionCreateRequest{
				Prompt:        "Water is wet",
				Type:          models.QuestionTypeTrueFalse,
				CorrectAnswer: "yes",
			},
		},
		{
			name: "multiple_choice with a single option",
			payload: dto.QuestionCreateRequest{
				Prompt:        "Pick one",
				Type:          models.QuestionTypeMultipleChoice,
				Options:       []string{"only"},
				CorrectAnswer: "only",
			},
		},
		{
			name: "multiple_choice answer outside options",
			payload: dto.QuestionCreateRequest{
				Prompt:        "Pick one",
				Type:          models.QuestionTypeMultipleChoice,
				Options:       []string{"a", "b"},
				CorrectAnswer: "c",
			},
		},
		{
			name: "short_answer with blank answer",
			payload: dto.QuestionCreateRequest{
				Prompt:        "Explain",
				Type:          models.QuestionTypeShortAnswer,
				CorrectAnswer: "   ",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.AddQuestion(ctx, exam.ID, tc.payload)
			require.ErrorIs(t, err, ErrInvalidQuestion)
		})
	}
}

func TestAddQuestionDefaultsPoints(t *testing.T) {
	fx := newExamFixture(t)
	exam := fx.createExam(t)

	question, err := fx.svc.AddQuestion(context.Background(), exam.ID, dto.QuestionCreateRequest{
		Prompt:        "2+2?",
		Type:          models.QuestionTypeShortAnswer,
		CorrectAnswer: "4",
	})
	require.NoError(t, err)
	require.Equal(t, 1.0, question.Points)
}

func TestAddQuestionLockedOnceWindowOpens(t *testing.T) {
	fx := newExamFixture(t)
	exam := fx.createExam(t)

	fx.svc.now = func() time.Time { return fx.now.Add(2 * time.Hour) }

	_, err := fx.svc.AddQuestion(context.Background(), exam.ID, dto.QuestionCreateRequest{
		Prompt:        "2+2?",
		Type:          models.QuestionTypeShortAnswer,
		CorrectAnswer: "4",
	})
	require.ErrorIs(t, err, ErrExamLocked)
}

func TestUpdateQuestionRejectsForeignQuestion(t *testing.T) {
	fx := newExamFixture(t)
	exam := fx.createExam(t)
	other := fx.createExam(t)

	question, err := fx.svc.AddQuestion(context.Background(), other.ID, dto.QuestionCreateRequest{
		Prompt:        "2+2?",
		Type:          models.QuestionTypeShortAnswer,
		CorrectAnswer: "4",
	})
	require.NoError(t, err)

	prompt := "3+3?"
	_, err = fx.svc.UpdateQuestion(context.Background(), exam.ID, question.ID, dto.QuestionUpdateRequest{Prompt: &prompt})
	require.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestQuestionSerializationHidesCorrectAnswer(t *testing.T) {
	fx := newExamFixture(t)
	exam := fx.createExam(t)

	question, err := fx.svc.AddQuestion(context.Background(), exam.ID, dto.QuestionCreateRequest{
		Prompt:        "2+2?",
		Type:          models.QuestionTypeShortAnswer,
		CorrectAnswer: "4",
	})
	require.NoError(t, err)

	payload, err := json.Marshal(question)
	require.NoError(t, err)
	require.NotContains(t, string(payload), "correct_answer")

	stored, err := fx.questions.GetByID(context.Background(), question.ID)
	require.NoError(t, err)

	raw, err := json.Marshal(stored)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "\"4\"")
}
