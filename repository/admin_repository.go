package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"psychotest/models"
)

// AdminRepository runs the aggregate queries behind the admin panel.
type AdminRepository interface {
	ListUsers(ctx context.Context) ([]models.UserSummary, error)
	ListCompletedResults(ctx context.Context) ([]models.CompletedResult, error)
	// GetResult returns any attempt, finished or not.
	GetResult(ctx context.Context, attemptID uint) (*models.CompletedResult, error)
	ListTestStats(ctx context.Context) ([]models.TestStats, error)
	CountUsers(ctx context.Context) (int, error)
}

type adminRepository struct {
	db *gorm.DB
}

// NewAdminRepository creates a gorm-backed AdminRepository.
func NewAdminRepository(db *gorm.DB) AdminRepository {
	return &adminRepository{db: db}
}

const resultColumns = `r.id AS id, r.user_id AS user_id, u.email AS user_email, u.name AS user_name,
	t.slug AS test_slug, t.name AS test_name, COALESCE(r.result_type, '') AS result_type,
	r.completed_at AS completed_at, (r.ai_analysis IS NOT NULL) AS has_analysis, r.is_completed AS is_completed`

func (r *adminRepository) results(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("user_test_results AS r").
		Select(resultColumns).
		Joins("JOIN users u ON u.id = r.user_id").
		Joins("JOIN tests t ON t.id = r.test_id")
}

func (r *adminRepository) completedResults(ctx context.Context) *gorm.DB {
	return r.results(ctx).Where("r.is_completed = ?", true)
}

func (r *adminRepository) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	var users []models.UserSummary
	err := r.db.WithContext(ctx).
		Table("users AS u").
		Select("u.id, u.email, u.name, u.created_at, COUNT(CASE WHEN r.is_completed = ? THEN 1 END) AS completed_tests", true).
		Joins("LEFT JOIN user_test_results r ON r.user_id = u.id").
		Group("u.id, u.email, u.name, u.created_at").
		Order("u.created_at DESC").
		Scan(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *adminRepository) ListCompletedResults(ctx context.Context) ([]models.CompletedResult, error) {
	var results []models.CompletedResult
	if err := r.completedResults(ctx).Order("r.completed_at DESC").Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to list completed results: %w", err)
	}
	return results, nil
}

func (r *adminRepository) GetResult(ctx context.Context, attemptID uint) (*models.CompletedResult, error) {
	var result models.CompletedResult
	res := r.results(ctx).Where("r.id = ?", attemptID).Limit(1).Scan(&result)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to fetch result %d: %w", attemptID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &result, nil
}

func (r *adminRepository) ListTestStats(ctx context.Context) ([]models.TestStats, error) {
	var stats []models.TestStats
	err := r.db.WithContext(ctx).
		Table("tests AS t").
		Select(`t.*,
			(SELECT COUNT(*) FROM test_questions q WHERE q.test_id = t.id) AS actual_question_count,
			(SELECT COUNT(*) FROM user_test_results r WHERE r.test_id = t.id) AS started_count,
			(SELECT COUNT(*) FROM user_test_results r WHERE r.test_id = t.id AND r.is_completed = ?) AS completion_count,
			(SELECT COUNT(*) FROM user_test_results r WHERE r.test_id = t.id AND r.ai_analysis IS NOT NULL) AS analyzed_count`, true).
		Order("t.id").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list test statistics: %w", err)
	}
	return stats, nil
}

func (r *adminRepository) CountUsers(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return int(count), nil
}
