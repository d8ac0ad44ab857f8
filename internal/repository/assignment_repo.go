package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/studyline/studyline-api/internal/models"
)

// AssignmentRepository defines persistence operations for assignments and
// their attempts.
type AssignmentRepository interface {
	List(ctx context.Context, courseID uint) ([]models.Assignment, error)
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id uint) error

	CreateAttempt(ctx context.Context, attempt *models.AssignmentAttempt) error
	GetAttempt(ctx context.Context, id uint) (models.AssignmentAttempt, error)
	ListAttempts(ctx context.Context, assignmentID uint) ([]models.AssignmentAttempt, error)
	HasInProgressAttempt(ctx context.Context, assignmentID, userID uint) (bool, error)
	// FinalizeAttempt mirrors ExamAttemptRepository.Finalize: a conditional
	// in_progress -> ended transition carrying the score.
	FinalizeAttempt(ctx context.Context, id uint, score float64) (bool, error)
	UpdateAttemptScore(ctx context.Context, id uint, score float64) error
	UpdateAttemptFileURL(ctx context.Context, id uint, fileURL string) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed assignment repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) List(ctx context.Context, courseID uint) ([]models.Assignment, error) {
	query := r.db.WithContext(ctx).Order("due_date ASC")
	if courseID != 0 {
		query = query.Where("course_id = ?", courseID)
	}

	var assignments []models.Assignment
	if err := query.Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *assignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Save(assignment).Error
}

func (r *assignmentRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Assignment{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *assignmentRepository) CreateAttempt(ctx context.Context, attempt *models.AssignmentAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *assignmentRepository) GetAttempt(ctx context.Context, id uint) (models.AssignmentAttempt, error) {
	var attempt models.AssignmentAttempt
	if err := r.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return models.AssignmentAttempt{}, err
	}

	return attempt, nil
}

func (r *assignmentRepository) ListAttempts(ctx context.Context, assignmentID uint) ([]models.AssignmentAttempt, error) {
	var attempts []models.AssignmentAttempt
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("created_at ASC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}

	return attempts, nil
}

func (r *assignmentRepository) HasInProgressAttempt(ctx context.Context, assignmentID, userID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.AssignmentAttempt{}).
		Where("assignment_id = ? AND user_id = ? AND status = ?", assignmentID, userID, models.AttemptStatusInProgress).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *assignmentRepository) FinalizeAttempt(ctx context.Context, id uint, score float64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AssignmentAttempt{}).
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

func (r *assignmentRepository) UpdateAttemptFileURL(ctx context.Context, id uint, fileURL string) error {
	result := r.db.WithContext(ctx).
		Model(&models.AssignmentAttempt{}).
		Where("id = ?", id).
		Update("file_url", fileURL)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *assignmentRepository) UpdateAttemptScore(ctx context.Context, id uint, score float64) error {
	result := r.db.WithContext(ctx).
		Model(&models.AssignmentAttempt{}).
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
