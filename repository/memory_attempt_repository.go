package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/datatypes"

	"psychotest/models"
	"psychotest/scoring"
)

type attemptKey struct {
	userID, testID uint
}

// memoryAttemptRepository keeps attempts in process memory. It honours the same
// uniqueness and conditional-completion rules as the gorm implementation.
type memoryAttemptRepository struct {
	mu            sync.RWMutex
	attempts      map[uint]*models.Attempt
	byUserAndTest map[attemptKey]uint
	nextID        uint
}

// NewMemoryAttemptRepository creates an in-memory AttemptRepository.
func NewMemoryAttemptRepository() AttemptRepository {
	return &memoryAttemptRepository{
		attempts:      make(map[uint]*models.Attempt),
		byUserAndTest: make(map[attemptKey]uint),
		nextID:        1,
	}
}

// snapshot copies an attempt so callers never share the stored maps.
func snapshot(a *models.Attempt) *models.Attempt {
	cp := *a
	cp.Answers = make(map[int]string, len(a.Answers))
	for q, v := range a.Answers {
		cp.Answers[q] = v
	}
	return &cp
}

func (r *memoryAttemptRepository) GetAttempt(_ context.Context, userID, testID uint) (*models.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUserAndTest[attemptKey{userID, testID}]
	if !ok {
		return nil, nil
	}
	return snapshot(r.attempts[id]), nil
}

func (r *memoryAttemptRepository) GetAttemptByID(_ context.Context, id uint) (*models.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	attempt, ok := r.attempts[id]
	if !ok {
		return nil, nil
	}
	return snapshot(attempt), nil
}

func (r *memoryAttemptRepository) CreateAttempt(_ context.Context, userID, testID uint) (*models.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := attemptKey{userID, testID}
	if id, ok := r.byUserAndTest[key]; ok {
		return snapshot(r.attempts[id]), nil
	}
	now := time.Now()
	attempt := &models.Attempt{
		ID:        r.nextID,
		UserID:    userID,
		TestID:    testID,
		Answers:   map[int]string{},
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.nextID++
	r.attempts[attempt.ID] = attempt
	r.byUserAndTest[key] = attempt.ID

	log.Printf("INFO: [MemoryAttemptRepository] Created attempt: ID=%d, UserID=%d, TestID=%d", attempt.ID, userID, testID)
	return snapshot(attempt), nil
}

func (r *memoryAttemptRepository) SetAnswer(_ context.Context, attemptID uint, questionNumber int, answer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, ok := r.attempts[attemptID]
	if !ok {
		return fmt.Errorf("attempt record with ID %d not found", attemptID)
	}
	if attempt.IsCompleted {
		return fmt.Errorf("attempt %d: %w", attemptID, ErrAttemptCompleted)
	}
	attempt.Answers[questionNumber] = answer
	attempt.UpdatedAt = time.Now()
	return nil
}

func (r *memoryAttemptRepository) MarkCompleted(_ context.Context, attemptID uint, result scoring.Result, at time.Time) (bool, error) {
	scores, err := json.Marshal(result.Scores)
	if err != nil {
		return false, fmt.Errorf("failed to encode scores of attempt %d: %w", attemptID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, ok := r.attempts[attemptID]
	if !ok {
		return false, fmt.Errorf("attempt record with ID %d not found", attemptID)
	}
	if attempt.IsCompleted {
		return false, nil
	}
	resultType := result.ResultType
	completedAt := at
	attempt.IsCompleted = true
	attempt.ResultType = &resultType
	attempt.Scores = datatypes.JSON(scores)
	attempt.CompletedAt = &completedAt
	attempt.UpdatedAt = time.Now()
	return true, nil
}

func (r *memoryAttemptRepository) SaveAnalysis(_ context.Context, attemptID uint, analysis string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, ok := r.attempts[attemptID]
	if !ok {
		return fmt.Errorf("attempt record with ID %d not found", attemptID)
	}
	if !attempt.IsCompleted {
		return fmt.Errorf("attempt %d: %w", attemptID, ErrAttemptNotCompleted)
	}
	text := analysis
	analyzedAt := at
	attempt.AIAnalysis = &text
	attempt.AnalysisDate = &analyzedAt
	return nil
}
