package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"psychotest/cache"
	"psychotest/models"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	failGet bool
}

func newMapCache() *mapCache { return &mapCache{entries: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, errors.New("connection refused")
	}
	v, ok := c.entries[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) ListActiveTests(ctx context.Context) ([]models.Test, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Test), args.Error(1)
}

func (m *MockCatalogRepository) GetTestBySlug(ctx context.Context, slug string) (*models.Test, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Test), args.Error(1)
}

func (m *MockCatalogRepository) GetTestByID(ctx context.Context, id uint) (*models.Test, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Test), args.Error(1)
}

func (m *MockCatalogRepository) GetQuestions(ctx context.Context, testID uint) ([]models.Question, error) {
	args := m.Called(ctx, testID)
	return args.Get(0).([]models.Question), args.Error(1)
}

func (m *MockCatalogRepository) CountQuestions(ctx context.Context, testID uint) (int, error) {
	args := m.Called(ctx, testID)
	return args.Int(0), args.Error(1)
}

func (m *MockCatalogRepository) UpsertTest(ctx context.Context, test *models.Test, questions []models.Question) error {
	return m.Called(ctx, test, questions).Error(0)
}

func TestCachedCatalogRepository(t *testing.T) {
	ctx := context.Background()
	test := &models.Test{ID: 5, Slug: "mbti", Name: "MBTI", IsActive: true}
	questions := []models.Question{{Number: 1, TestID: 5, Type: models.QuestionTypeBinary}, {Number: 2, TestID: 5, Type: models.QuestionTypeBinary}}

	t.Run("Second read is served from cache", func(t *testing.T) {
		next := new(MockCatalogRepository)
		next.On("GetTestBySlug", ctx, "mbti").Return(test, nil).Once()
		next.On("GetQuestions", ctx, uint(5)).Return(questions, nil).Once()
		repo := NewCachedCatalogRepository(next, newMapCache(), time.Minute)

		for i := 0; i < 2; i++ {
			found, err := repo.GetTestBySlug(ctx, "mbti")
			require.NoError(t, err)
			assert.Equal(t, "MBTI", found.Name)

			count, err := repo.CountQuestions(ctx, 5)
			require.NoError(t, err)
			assert.Equal(t, 2, count)
		}
		next.AssertExpectations(t)
	})

	t.Run("Unknown tests are not cached", func(t *testing.T) {
		next := new(MockCatalogRepository)
		next.On("GetTestBySlug", ctx, "missing").Return(nil, nil).Twice()
		repo := NewCachedCatalogRepository(next, newMapCache(), time.Minute)

		for i := 0; i < 2; i++ {
			found, err := repo.GetTestBySlug(ctx, "missing")
			assert.NoError(t, err)
			assert.Nil(t, found)
		}
		next.AssertExpectations(t)
	})

	t.Run("Cache failure falls through", func(t *testing.T) {
		next := new(MockCatalogRepository)
		next.On("ListActiveTests", ctx).Return([]models.Test{*test}, nil).Twice()
		c := newMapCache()
		c.failGet = true
		repo := NewCachedCatalogRepository(next, c, time.Minute)

		for i := 0; i < 2; i++ {
			tests, err := repo.ListActiveTests(ctx)
			require.NoError(t, err)
			assert.Len(t, tests, 1)
		}
		next.AssertExpectations(t)
	})

	t.Run("Upsert invalidates cached entries", func(t *testing.T) {
		next := new(MockCatalogRepository)
		next.On("GetTestBySlug", ctx, "mbti").Return(test, nil).Twice()
		next.On("UpsertTest", ctx, test, questions).Return(nil).Once()
		repo := NewCachedCatalogRepository(next, newMapCache(), time.Minute)

		_, err := repo.GetTestBySlug(ctx, "mbti")
		require.NoError(t, err)
		require.NoError(t, repo.UpsertTest(ctx, test, questions))
		_, err = repo.GetTestBySlug(ctx, "mbti")
		require.NoError(t, err)
		next.AssertExpectations(t)
	})
}
