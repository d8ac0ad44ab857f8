package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/studyline/studyline-api/internal/models"
)

// ExamAttemptRepository defines persistence operations for exam attempts.
type ExamAttemptRepository interface {
	Create(ctx context.Context, attempt *models.ExamAttempt) error
	GetByID(ctx context.Context, id uint) (models.ExamAttempt, error)
	ListByExam(ctx context.Context, examID uint) ([]models.ExamAttempt, error)
	ListByUser(ctx context.Context, userID uint) ([]models.ExamAttempt, error)
	HasInProgress(ctx context.Context, examID, userID uint) (bool, error)
	// Finalize transitions the attempt from in_progress to ended and writes the
	// score in the same conditional update. A false result with nil error means
	// the attempt was already ended, so the caller lost the race and should
	// re-read the stored terminal state.
	Finalize(ctx context.Context, id uint, score float64) (bool, error)
	UpdateScore(ctx context.Context, id uint, score float64) error
}

type examAttemptRepository struct {
	db *gorm.DB
}

// NewExamAttemptRepository instantiates a GORM-backed attempt repository.
func NewExamAttemptRepository(db *gorm.DB) ExamAttemptRepository {
	return &examAttemptRepository{db: db}
}

func (r *examAttemptRepository) Create(ctx context.Context, attempt *models.ExamAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *examAttemptRepository) GetByID(ctx context.Context, id uint) (models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	if err := r.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return models.ExamAttempt{}, err
	}

	return attempt, nil
}

func (r *examAttemptRepository) ListByExam(ctx context.Context, examID uint) ([]models.ExamAttempt, error) {
	var attempts []models.ExamAttempt
	if err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("created_at ASC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}

	return attempts, nil
}

func (r *examAttemptRepository) ListByUser(ctx context.Context, userID uint) ([]models.ExamAttempt, error) {
	var attempts []models.ExamAttempt
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}

	return attempts, nil
}

func (r *examAttemptRepository) HasInProgress(ctx context.Context, examID, userID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("exam_id = ? AND user_id = ? AND status = ?", examID, userID, models.AttemptStatusInProgress).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *examAttemptRepository) Finalize(ctx context.Context, id uint, score float64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("id = ? AND status = ?", id, models.AttemptStatusInProgress).
		Updates(map[string]interface{}{
			"status": models.AttemptStatusEnded,
			"score":  score,
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *examAttemptRepository) UpdateScore(ctx context.Context, id uint, score float64) error {
	result := r.db.WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("id = ?", id).
		Update("score", score)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
