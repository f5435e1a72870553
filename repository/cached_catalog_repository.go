package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"psychotest/cache"
	"psychotest/models"
)

const activeTestsKey = "tests:active"

func testSlugKey(slug string) string  { return "tests:slug:" + slug }
func questionsKey(testID uint) string { return fmt.Sprintf("tests:%d:questions", testID) }

// cachedCatalogRepository serves catalog reads from a cache and falls through to
// the wrapped repository on misses. Cache failures are logged, never returned.
type cachedCatalogRepository struct {
	next  CatalogRepository
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedCatalogRepository wraps next with a read-through cache.
func NewCachedCatalogRepository(next CatalogRepository, c cache.Cache, ttl time.Duration) CatalogRepository {
	return &cachedCatalogRepository{next: next, cache: c, ttl: ttl}
}

func (r *cachedCatalogRepository) load(ctx context.Context, key string, dest interface{}) bool {
	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("WARN: [CatalogCache] Get %s failed: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		log.Printf("WARN: [CatalogCache] Dropping undecodable entry %s: %v", key, err)
		return false
	}
	return true
}

func (r *cachedCatalogRepository) store(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("WARN: [CatalogCache] Encode %s failed: %v", key, err)
		return
	}
	if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
		log.Printf("WARN: [CatalogCache] Set %s failed: %v", key, err)
	}
}

func (r *cachedCatalogRepository) ListActiveTests(ctx context.Context) ([]models.Test, error) {
	var tests []models.Test
	if r.load(ctx, activeTestsKey, &tests) {
		return tests, nil
	}
	tests, err := r.next.ListActiveTests(ctx)
	if err != nil {
		return nil, err
	}
	r.store(ctx, activeTestsKey, tests)
	return tests, nil
}

func (r *cachedCatalogRepository) GetTestBySlug(ctx context.Context, slug string) (*models.Test, error) {
	var test models.Test
	if r.load(ctx, testSlugKey(slug), &test) {
		return &test, nil
	}
	found, err := r.next.GetTestBySlug(ctx, slug)
	if err != nil || found == nil {
		return found, err
	}
	r.store(ctx, testSlugKey(slug), found)
	return found, nil
}

func (r *cachedCatalogRepository) GetTestByID(ctx context.Context, id uint) (*models.Test, error) {
	return r.next.GetTestByID(ctx, id)
}

func (r *cachedCatalogRepository) GetQuestions(ctx context.Context, testID uint) ([]models.Question, error) {
	var questions []models.Question
	if r.load(ctx, questionsKey(testID), &questions) {
		return questions, nil
	}
	questions, err := r.next.GetQuestions(ctx, testID)
	if err != nil {
		return nil, err
	}
	r.store(ctx, questionsKey(testID), questions)
	return questions, nil
}

func (r *cachedCatalogRepository) CountQuestions(ctx context.Context, testID uint) (int, error) {
	questions, err := r.GetQuestions(ctx, testID)
	if err != nil {
		return 0, err
	}
	return len(questions), nil
}

func (r *cachedCatalogRepository) UpsertTest(ctx context.Context, test *models.Test, questions []models.Question) error {
	if err := r.next.UpsertTest(ctx, test, questions); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, activeTestsKey, testSlugKey(test.Slug), questionsKey(test.ID)); err != nil {
		log.Printf("WARN: [CatalogCache] Invalidation for test %q failed: %v", test.Slug, err)
	}
	return nil
}
