package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"psychotest/models"
	"psychotest/scoring"
)

// ErrAttemptNotCompleted is returned when an analysis is saved for an attempt
// that has not been completed.
var ErrAttemptNotCompleted = errors.New("attempt is not completed")

// ErrAttemptCompleted is returned when an answer is written to an attempt that
// has already been completed.
var ErrAttemptCompleted = errors.New("attempt is already completed")

// AttemptRepository persists attempts and their answers.
// Lookups return (nil, nil) when no attempt exists; the service layer interprets that.
type AttemptRepository interface {
	GetAttempt(ctx context.Context, userID, testID uint) (*models.Attempt, error)
	GetAttemptByID(ctx context.Context, id uint) (*models.Attempt, error)
	// CreateAttempt inserts an empty attempt, or returns the existing one when a
	// concurrent start already created it.
	CreateAttempt(ctx context.Context, userID, testID uint) (*models.Attempt, error)
	// SetAnswer overwrites the answer for one question. Other questions are untouched.
	// It fails with ErrAttemptCompleted once the attempt is completed.
	SetAnswer(ctx context.Context, attemptID uint, questionNumber int, answer string) error
	// MarkCompleted stores the result only if the attempt is still in progress.
	// It reports false when another completion won.
	MarkCompleted(ctx context.Context, attemptID uint, result scoring.Result, at time.Time) (bool, error)
	// SaveAnalysis overwrites the narrative of a completed attempt.
	SaveAnalysis(ctx context.Context, attemptID uint, analysis string, at time.Time) error
}

type attemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository creates a gorm-backed AttemptRepository.
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) GetAttempt(ctx context.Context, userID, testID uint) (*models.Attempt, error) {
	var attempt models.Attempt
	err := r.db.WithContext(ctx).First(&attempt, "user_id = ? AND test_id = ?", userID, testID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Printf("ERROR: [AttemptRepository] Failed to fetch attempt for user %d test %d: %v", userID, testID, err)
		return nil, fmt.Errorf("failed to fetch attempt for user %d test %d: %w", userID, testID, err)
	}
	if err := r.loadAnswers(ctx, &attempt); err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) GetAttemptByID(ctx context.Context, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := r.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch attempt %d: %w", id, err)
	}
	if err := r.loadAnswers(ctx, &attempt); err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) loadAnswers(ctx context.Context, attempt *models.Attempt) error {
	var rows []models.AttemptAnswer
	if err := r.db.WithContext(ctx).Where("attempt_id = ?", attempt.ID).Order("question_number").Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load answers of attempt %d: %w", attempt.ID, err)
	}
	attempt.Answers = make(map[int]string, len(rows))
	for _, row := range rows {
		attempt.Answers[row.QuestionNumber] = row.Answer
	}
	return nil
}

func (r *attemptRepository) CreateAttempt(ctx context.Context, userID, testID uint) (*models.Attempt, error) {
	attempt := models.Attempt{
		UserID:    userID,
		TestID:    testID,
		StartedAt: time.Now(),
	}
	// The unique (user_id, test_id) index decides racing starts; the loser reads the winner's row.
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "test_id"}},
		DoNothing: true,
	}).Create(&attempt)
	if res.Error != nil {
		log.Printf("ERROR: [AttemptRepository] Failed to create attempt for user %d test %d: %v", userID, testID, res.Error)
		return nil, fmt.Errorf("failed to create attempt for user %d test %d: %w", userID, testID, res.Error)
	}
	if res.RowsAffected == 0 {
		log.Printf("INFO: [AttemptRepository] Attempt for user %d test %d already existed.", userID, testID)
	} else {
		log.Printf("INFO: [AttemptRepository] Created attempt for user %d test %d.", userID, testID)
	}

	existing, err := r.GetAttempt(ctx, userID, testID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("attempt for user %d test %d missing after create", userID, testID)
	}
	return existing, nil
}

func (r *attemptRepository) SetAnswer(ctx context.Context, attemptID uint, questionNumber int, answer string) error {
	row := models.AttemptAnswer{
		AttemptID:      attemptID,
		QuestionNumber: questionNumber,
		Answer:         answer,
	}
	// The attempt row stays locked until the answer is written, so a completion
	// either sees this answer or makes the write fail.
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var attempt models.Attempt
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "is_completed").
			First(&attempt, attemptID).Error
		if err != nil {
			return err
		}
		if attempt.IsCompleted {
			return ErrAttemptCompleted
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_number"}},
			DoUpdates: clause.AssignmentColumns([]string{"answer", "updated_at"}),
		}).Create(&row).Error
	})
	if errors.Is(err, ErrAttemptCompleted) {
		log.Printf("INFO: [AttemptRepository] Rejected answer %d for completed attempt %d.", questionNumber, attemptID)
		return fmt.Errorf("attempt %d: %w", attemptID, ErrAttemptCompleted)
	}
	if err != nil {
		log.Printf("ERROR: [AttemptRepository] Failed to save answer %d of attempt %d: %v", questionNumber, attemptID, err)
		return fmt.Errorf("failed to save answer %d of attempt %d: %w", questionNumber, attemptID, err)
	}
	return nil
}

func (r *attemptRepository) MarkCompleted(ctx context.Context, attemptID uint, result scoring.Result, at time.Time) (bool, error) {
	scores, err := json.Marshal(result.Scores)
	if err != nil {
		return false, fmt.Errorf("failed to encode scores of attempt %d: %w", attemptID, err)
	}
	res := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("id = ? AND is_completed = ?", attemptID, false).
		Updates(map[string]interface{}{
			"is_completed": true,
			"result_type":  result.ResultType,
			"scores":       datatypes.JSON(scores),
			"completed_at": at,
		})
	if res.Error != nil {
		log.Printf("ERROR: [AttemptRepository] Failed to complete attempt %d: %v", attemptID, res.Error)
		return false, fmt.Errorf("failed to complete attempt %d: %w", attemptID, res.Error)
	}
	if res.RowsAffected == 0 {
		log.Printf("INFO: [AttemptRepository] Attempt %d was already completed; result left unchanged.", attemptID)
		return false, nil
	}
	log.Printf("INFO: [AttemptRepository] Attempt %d completed with result %s.", attemptID, result.ResultType)
	return true, nil
}

func (r *attemptRepository) SaveAnalysis(ctx context.Context, attemptID uint, analysis string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("id = ? AND is_completed = ?", attemptID, true).
		Updates(map[string]interface{}{
			"ai_analysis":   analysis,
			"analysis_date": at,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to save analysis of attempt %d: %w", attemptID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("attempt %d: %w", attemptID, ErrAttemptNotCompleted)
	}
	return nil
}
