package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studyline/studyline-api/internal/models"
)

// AnswerRepository defines persistence operations for graded answer records.
type AnswerRepository interface {
	// UpsertForExamAttempt inserts the answer or, when one already exists for
	// the same (exam attempt, question) pair, replaces its submitted value and
	// grading fields. The conflict target is the composite unique index, so
	// duplicate client retries can never produce two rows.
	UpsertForExamAttempt(ctx context.Context, answer *models.Answer) error
	UpsertForAssignmentAttempt(ctx context.Context, answer *models.Answer) error
	GetByID(ctx context.Context, id uint) (models.Answer, error)
	ListByExamAttempt(ctx context.Context, attemptID uint) ([]models.Answer, error)
	ListByAssignmentAttempt(ctx context.Context, attemptID uint) ([]models.Answer, error)
	SumPointsByExamAttempt(ctx context.Context, attemptID uint) (float64, error)
	SumPointsByAssignmentAttempt(ctx context.Context, attemptID uint) (float64, error)
	Update(ctx context.Context, answer *models.Answer) error
	Delete(ctx context.Context, id uint) error
}

type answerRepository struct {
	db *gorm.DB
}

// NewAnswerRepository instantiates a GORM-backed answer repository.
func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

func (r *answerRepository) UpsertForExamAttempt(ctx context.Context, answer *models.Answer) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "exam_attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value", "is_correct", "points", "submitted_by", "updated_at",
		}),
	}).Create(answer).Error
}

func (r *answerRepository) UpsertForAssignmentAttempt(ctx context.Context, answer *models.Answer) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "assignment_attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value", "is_correct", "points", "submitted_by", "updated_at",
		}),
	}).Create(answer).Error
}

func (r *answerRepository) GetByID(ctx context.Context, id uint) (models.Answer, error) {
	var answer models.Answer
	if err := r.db.WithContext(ctx).First(&answer, id).Error; err != nil {
		return models.Answer{}, err
	}

	return answer, nil
}

func (r *answerRepository) ListByExamAttempt(ctx context.Context, attemptID uint) ([]models.Answer, error) {
	var answers []models.Answer
	if err := r.db.WithContext(ctx).
		Where("exam_attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}

	return answers, nil
}

func (r *answerRepository) ListByAssignmentAttempt(ctx context.Context, attemptID uint) ([]models.Answer, error) {
	var answers []models.Answer
	if err := r.db.WithContext(ctx).
		Where("assignment_attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}

	return answers, nil
}

func (r *answerRepository) SumPointsByExamAttempt(ctx context.Context, attemptID uint) (float64, error) {
	return r.sumPoints(ctx, "exam_attempt_id", attemptID)
}

func (r *answerRepository) SumPointsByAssignmentAttempt(ctx context.Context, attemptID uint) (float64, error) {
	return r.sumPoints(ctx, "assignment_attempt_id", attemptID)
}

func (r *answerRepository) sumPoints(ctx context.Context, column string, attemptID uint) (float64, error) {
	var total float64
	if err := r.db.WithContext(ctx).
		Model(&models.Answer{}).
		Select("COALESCE(SUM(points), 0)").
		Where(column+" = ?", attemptID).
		Scan(&total).Error; err != nil {
		return 0, err
	}

	return total, nil
}

func (r *answerRepository) Update(ctx context.Context, answer *models.Answer) error {
	return r.db.WithContext(ctx).Save(answer).Error
}

func (r *answerRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Answer{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
