package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"

	"psychotest/llm"
	"psychotest/models"
	"psychotest/scoring"
)

// fakeCatalog serves a fixed set of tests.
type fakeCatalog struct {
	mu        sync.Mutex
	tests     map[string]*models.Test
	questions map[uint][]models.Question
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{tests: map[string]*models.Test{}, questions: map[uint][]models.Question{}}
}

func (c *fakeCatalog) addBinary(id uint, slug string, count int) *models.Test {
	test := &models.Test{ID: id, Slug: slug, Name: slug + " test", QuestionCount: count, IsActive: true}
	questions := make([]models.Question, 0, count)
	for i := 1; i <= count; i++ {
		questions = append(questions, models.Question{
			TestID: id, Number: i, Type: models.QuestionTypeBinary,
			LeftText: fmt.Sprintf("left %d", i), RightText: fmt.Sprintf("right %d", i),
		})
	}
	c.tests[slug] = test
	c.questions[id] = questions
	return test
}

func (c *fakeCatalog) addChoice(id uint, slug string, count int) *models.Test {
	test := &models.Test{ID: id, Slug: slug, Name: slug + " test", QuestionCount: count, IsActive: true}
	questions := make([]models.Question, 0, count)
	for i := 1; i <= count; i++ {
		questions = append(questions, models.Question{
			TestID: id, Number: i, Type: models.QuestionTypeMultipleChoice,
			LeftText: fmt.Sprintf("question %d", i),
			Options:  datatypes.JSON(`{"A":"listen","B":"frame","C":"adapt","D":"act","E":"explore"}`),
		})
	}
	c.tests[slug] = test
	c.questions[id] = questions
	return test
}

func (c *fakeCatalog) ListActiveTests(context.Context) ([]models.Test, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Test
	for _, t := range c.tests {
		out = append(out, *t)
	}
	return out, nil
}

func (c *fakeCatalog) GetTestBySlug(_ context.Context, slug string) (*models.Test, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tests[slug]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (c *fakeCatalog) GetTestByID(_ context.Context, id uint) (*models.Test, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tests {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (c *fakeCatalog) GetQuestions(_ context.Context, testID uint) ([]models.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.questions[testID], nil
}

func (c *fakeCatalog) CountQuestions(_ context.Context, testID uint) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.questions[testID]), nil
}

func (c *fakeCatalog) UpsertTest(context.Context, *models.Test, []models.Question) error {
	return nil
}

// MockAttemptRepository is a mock type for the AttemptRepository interface
type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) GetAttempt(ctx context.Context, userID, testID uint) (*models.Attempt, error) {
	args := m.Called(ctx, userID, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) GetAttemptByID(ctx context.Context, id uint) (*models.Attempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) CreateAttempt(ctx context.Context, userID, testID uint) (*models.Attempt, error) {
	args := m.Called(ctx, userID, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) SetAnswer(ctx context.Context, attemptID uint, questionNumber int, answer string) error {
	return m.Called(ctx, attemptID, questionNumber, answer).Error(0)
}

func (m *MockAttemptRepository) MarkCompleted(ctx context.Context, attemptID uint, result scoring.Result, at time.Time) (bool, error) {
	args := m.Called(ctx, attemptID, result, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockAttemptRepository) SaveAnalysis(ctx context.Context, attemptID uint, analysis string, at time.Time) error {
	return m.Called(ctx, attemptID, analysis, at).Error(0)
}

// MockGenerator is a mock type for the llm.Generator interface
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Available(provider string) bool {
	return m.Called(provider).Bool(0)
}

func (m *MockGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func strPtr(s string) *string { return &s }
