package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"psychotest/models"
)

// CatalogRepository reads and seeds tests and their question banks.
// Lookups return (nil, nil) for unknown tests.
type CatalogRepository interface {
	ListActiveTests(ctx context.Context) ([]models.Test, error)
	// GetTestBySlug returns an active test.
	GetTestBySlug(ctx context.Context, slug string) (*models.Test, error)
	GetTestByID(ctx context.Context, id uint) (*models.Test, error)
	GetQuestions(ctx context.Context, testID uint) ([]models.Question, error)
	CountQuestions(ctx context.Context, testID uint) (int, error)
	// UpsertTest creates or refreshes a test and replaces its question bank.
	UpsertTest(ctx context.Context, test *models.Test, questions []models.Question) error
}

type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a gorm-backed CatalogRepository.
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) ListActiveTests(ctx context.Context) ([]models.Test, error) {
	var tests []models.Test
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&tests).Error; err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	return tests, nil
}

func (r *catalogRepository) GetTestBySlug(ctx context.Context, slug string) (*models.Test, error) {
	var test models.Test
	err := r.db.WithContext(ctx).First(&test, "slug = ? AND is_active = ?", slug, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch test %q: %w", slug, err)
	}
	return &test, nil
}

func (r *catalogRepository) GetTestByID(ctx context.Context, id uint) (*models.Test, error) {
	var test models.Test
	if err := r.db.WithContext(ctx).First(&test, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch test %d: %w", id, err)
	}
	return &test, nil
}

func (r *catalogRepository) GetQuestions(ctx context.Context, testID uint) ([]models.Question, error) {
	var questions []models.Question
	if err := r.db.WithContext(ctx).Where("test_id = ?", testID).Order("question_number").Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch questions of test %d: %w", testID, err)
	}
	return questions, nil
}

func (r *catalogRepository) CountQuestions(ctx context.Context, testID uint) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Question{}).Where("test_id = ?", testID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count questions of test %d: %w", testID, err)
	}
	return int(count), nil
}

func (r *catalogRepository) UpsertTest(ctx context.Context, test *models.Test, questions []models.Question) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "description", "icon", "color", "question_count",
				"duration_minutes", "is_active", "scoring_strategy", "updated_at",
			}),
		}).Create(test).Error
		if err != nil {
			return fmt.Errorf("failed to upsert test %q: %w", test.Slug, err)
		}
		// The insert may have been turned into an update; read the real id back.
		var stored models.Test
		if err := tx.Select("id").First(&stored, "slug = ?", test.Slug).Error; err != nil {
			return fmt.Errorf("failed to reload test %q: %w", test.Slug, err)
		}
		test.ID = stored.ID

		numbers := make([]int, 0, len(questions))
		for i := range questions {
			questions[i].TestID = test.ID
			numbers = append(numbers, questions[i].Number)
		}
		if len(questions) > 0 {
			err = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "test_id"}, {Name: "question_number"}},
				DoUpdates: clause.AssignmentColumns([]string{"question_type", "left_text", "right_text", "section", "options", "updated_at"}),
			}).Create(&questions).Error
			if err != nil {
				return fmt.Errorf("failed to upsert questions of test %q: %w", test.Slug, err)
			}
		}

		stale := tx.Where("test_id = ?", test.ID)
		if len(numbers) > 0 {
			stale = stale.Where("question_number NOT IN ?", numbers)
		}
		if err := stale.Delete(&models.Question{}).Error; err != nil {
			return fmt.Errorf("failed to prune questions of test %q: %w", test.Slug, err)
		}
		log.Printf("INFO: [CatalogRepository] Seeded test %q (id %d) with %d questions.", test.Slug, test.ID, len(questions))
		return nil
	})
}
