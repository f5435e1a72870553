package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"psychotest/models"
	"psychotest/repository"
	"psychotest/scoring"
)

func newTestRegistry(t *testing.T) *scoring.Registry {
	t.Helper()
	registry := scoring.NewRegistry()
	binary, err := scoring.NewBinaryStrategy(scoring.DefaultMBTIBands())
	require.NoError(t, err)
	require.NoError(t, registry.Register("mbti", binary))
	require.NoError(t, registry.Register("ai-therapist", scoring.NewDefaultTherapistStrategy()))
	return registry
}

func newFlow(t *testing.T) (AttemptService, repository.AttemptRepository) {
	t.Helper()
	catalog := newFakeCatalog()
	catalog.addBinary(1, "mbti", 44)
	catalog.addChoice(2, "ai-therapist", 20)
	catalog.addBinary(3, "mood", 2)
	attempts := repository.NewMemoryAttemptRepository()
	return NewAttemptService(catalog, attempts, newTestRegistry(t)), attempts
}

func answerAll(t *testing.T, svc AttemptService, userID uint, slug string, from, to int, letter string) {
	t.Helper()
	for q := from; q <= to; q++ {
		require.NoError(t, svc.RecordAnswer(context.Background(), userID, slug, q, letter))
	}
}

func TestAttemptService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFlow(t)
	const user = uint(42)

	start, err := svc.Start(ctx, user, "mbti")
	require.NoError(t, err)
	assert.False(t, start.AlreadyCompleted)
	assert.False(t, start.Resumed)
	assert.Empty(t, start.Answers)
	var first *CompletionResult

	t.Run("Complete with missing answers reports progress", func(t *testing.T) {
		answerAll(t, svc, user, "mbti", 1, 39, "A")

		_, err := svc.Complete(ctx, user, "mbti")
		var incomplete *IncompleteAnswersError
		require.True(t, errors.As(err, &incomplete))
		assert.Equal(t, 39, incomplete.Answered)
		assert.Equal(t, 44, incomplete.Required)
	})

	t.Run("Start resumes with saved answers", func(t *testing.T) {
		resumed, err := svc.Start(ctx, user, "mbti")
		require.NoError(t, err)
		assert.True(t, resumed.Resumed)
		assert.Equal(t, start.AttemptID, resumed.AttemptID)
		assert.Len(t, resumed.Answers, 39)
	})

	t.Run("Full answers complete with ESTJ", func(t *testing.T) {
		answerAll(t, svc, user, "mbti", 40, 44, "A")
		require.NoError(t, svc.RecordAnswer(ctx, user, "mbti", 45, "D"))

		result, err := svc.Complete(ctx, user, "mbti")
		require.NoError(t, err)
		assert.False(t, result.AlreadyCompleted)
		assert.Equal(t, "ESTJ", result.ResultType)
		assert.Equal(t, float64(24), result.Scores["E"])
		assert.Equal(t, float64(0), result.Scores["I"])
		first = result
	})

	t.Run("Second completion returns the stored result", func(t *testing.T) {
		again, err := svc.Complete(ctx, user, "mbti")
		require.NoError(t, err)
		assert.True(t, again.AlreadyCompleted)
		assert.Equal(t, "ESTJ", again.ResultType)
		require.NotNil(t, first)
		assert.Equal(t, first.Scores, again.Scores)
	})

	t.Run("Answers after completion are rejected", func(t *testing.T) {
		err := svc.RecordAnswer(ctx, user, "mbti", 1, "D")
		assert.ErrorIs(t, err, ErrAttemptAlreadyCompleted)
	})

	t.Run("Start after completion does not reset", func(t *testing.T) {
		again, err := svc.Start(ctx, user, "mbti")
		require.NoError(t, err)
		assert.True(t, again.AlreadyCompleted)
		assert.Equal(t, "ESTJ", again.ResultType)
		assert.Equal(t, start.AttemptID, again.AttemptID)
	})

	t.Run("Result view carries scores and questions", func(t *testing.T) {
		view, err := svc.GetResult(ctx, user, "mbti")
		require.NoError(t, err)
		assert.True(t, view.Attempt.IsCompleted)
		assert.Len(t, view.Questions, 44)
		assert.EqualValues(t, 22, view.Scores["S"])
	})

	t.Run("Listing shows per-test status", func(t *testing.T) {
		tests, err := svc.ListTests(ctx, user)
		require.NoError(t, err)
		statuses := map[string]string{}
		for _, summary := range tests {
			statuses[summary.Slug] = summary.Status
		}
		assert.Equal(t, StatusCompleted, statuses["mbti"])
		assert.Equal(t, StatusNotStarted, statuses["ai-therapist"])

		anonymous, err := svc.ListTests(ctx, 0)
		require.NoError(t, err)
		for _, summary := range anonymous {
			assert.Equal(t, StatusNotStarted, summary.Status)
		}
	})
}

func TestAttemptService_CategoricalAndCompletionOnly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFlow(t)

	_, err := svc.Start(ctx, 7, "ai-therapist")
	require.NoError(t, err)
	answerAll(t, svc, 7, "ai-therapist", 1, 20, "D")

	result, err := svc.Complete(ctx, 7, "ai-therapist")
	require.NoError(t, err)
	assert.Equal(t, "MOTIVASYONEL_KOC", result.ResultType)
	assert.Equal(t, float64(40), result.Scores[scoring.TraitBehavioral])
	assert.Equal(t, scoring.TraitSupportive, result.Scores[scoring.KeySecondaryStyle])

	_, err = svc.Start(ctx, 7, "mood")
	require.NoError(t, err)
	answerAll(t, svc, 7, "mood", 1, 2, "B")
	mood, err := svc.Complete(ctx, 7, "mood")
	require.NoError(t, err)
	assert.Equal(t, scoring.CompletedResultType, mood.ResultType)
	assert.Empty(t, mood.Scores)
}

// completingAttemptRepository runs beforeSetAnswer once, between the service's
// completion check and the answer write.
type completingAttemptRepository struct {
	repository.AttemptRepository
	beforeSetAnswer func()
}

func (r *completingAttemptRepository) SetAnswer(ctx context.Context, attemptID uint, questionNumber int, answer string) error {
	if hook := r.beforeSetAnswer; hook != nil {
		r.beforeSetAnswer = nil
		hook()
	}
	return r.AttemptRepository.SetAnswer(ctx, attemptID, questionNumber, answer)
}

func TestAttemptService_AnswerRacingCompletion(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog()
	catalog.addBinary(1, "mbti", 44)
	attempts := &completingAttemptRepository{AttemptRepository: repository.NewMemoryAttemptRepository()}
	svc := NewAttemptService(catalog, attempts, newTestRegistry(t))
	const user = uint(3)

	start, err := svc.Start(ctx, user, "mbti")
	require.NoError(t, err)
	answerAll(t, svc, user, "mbti", 1, 44, "A")

	var completed *CompletionResult
	attempts.beforeSetAnswer = func() {
		result, err := svc.Complete(ctx, user, "mbti")
		require.NoError(t, err)
		completed = result
	}

	err = svc.RecordAnswer(ctx, user, "mbti", 1, "D")
	assert.ErrorIs(t, err, ErrAttemptAlreadyCompleted)
	require.NotNil(t, completed)
	assert.Equal(t, "ESTJ", completed.ResultType)

	stored, err := attempts.GetAttemptByID(ctx, start.AttemptID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "A", stored.Answers[1])
	assert.Equal(t, "ESTJ", *stored.ResultType)
}

func TestAttemptService_ConcurrentCompletion(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFlow(t)

	_, err := svc.Start(ctx, 9, "mbti")
	require.NoError(t, err)
	answerAll(t, svc, 9, "mbti", 1, 44, "D")

	var wg sync.WaitGroup
	results := make(chan *CompletionResult, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Complete(ctx, 9, "mbti")
			if assert.NoError(t, err) {
				results <- res
			}
		}()
	}
	wg.Wait()
	close(results)

	fresh := 0
	for res := range results {
		assert.Equal(t, "INFP", res.ResultType)
		if !res.AlreadyCompleted {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
}

func TestAttemptService_Errors(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog()
	test := catalog.addBinary(1, "mbti", 44)

	t.Run("Unknown test", func(t *testing.T) {
		svc := NewAttemptService(catalog, new(MockAttemptRepository), nil)
		_, err := svc.Start(ctx, 1, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, svc.RecordAnswer(ctx, 1, "nope", 1, "A"), ErrTestNotFound)
	})

	t.Run("Invalid answers never reach the store", func(t *testing.T) {
		repo := new(MockAttemptRepository)
		svc := NewAttemptService(catalog, repo, nil)
		assert.ErrorIs(t, svc.RecordAnswer(ctx, 1, "mbti", 0, "A"), ErrInvalidAnswer)
		assert.ErrorIs(t, svc.RecordAnswer(ctx, 1, "mbti", 3, "  "), ErrInvalidAnswer)
		assert.ErrorIs(t, svc.RecordAnswer(ctx, 1, "mbti", 4, strings.Repeat("A", maxAnswerLength+1)), ErrInvalidAnswer)
		repo.AssertNotCalled(t, "SetAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Answer without attempt", func(t *testing.T) {
		repo := new(MockAttemptRepository)
		repo.On("GetAttempt", ctx, uint(1), test.ID).Return(nil, nil).Once()
		svc := NewAttemptService(catalog, repo, nil)

		assert.ErrorIs(t, svc.RecordAnswer(ctx, 1, "mbti", 1, "A"), ErrAttemptNotFound)
		repo.AssertExpectations(t)
	})

	t.Run("Unrecognised letters are stored as given", func(t *testing.T) {
		repo := new(MockAttemptRepository)
		repo.On("GetAttempt", ctx, uint(1), test.ID).Return(&models.Attempt{ID: 5, Answers: map[int]string{}}, nil).Once()
		repo.On("SetAnswer", ctx, uint(5), 2, "Z").Return(nil).Once()
		svc := NewAttemptService(catalog, repo, nil)

		assert.NoError(t, svc.RecordAnswer(ctx, 1, "mbti", 2, "Z"))
		repo.AssertExpectations(t)
	})

	t.Run("Start creates an attempt when none exists", func(t *testing.T) {
		repo := new(MockAttemptRepository)
		repo.On("GetAttempt", ctx, uint(1), test.ID).Return(nil, nil).Once()
		repo.On("CreateAttempt", ctx, uint(1), test.ID).Return(&models.Attempt{ID: 11}, nil).Once()
		svc := NewAttemptService(catalog, repo, nil)

		start, err := svc.Start(ctx, 1, "mbti")
		require.NoError(t, err)
		assert.Equal(t, uint(11), start.AttemptID)
		assert.NotNil(t, start.Answers)
		repo.AssertExpectations(t)
	})

	t.Run("Losing a completion race returns the winner's result", func(t *testing.T) {
		answers := map[int]string{}
		for q := 1; q <= 44; q++ {
			answers[q] = "A"
		}
		repo := new(MockAttemptRepository)
		repo.On("GetAttempt", ctx, uint(1), test.ID).Return(&models.Attempt{ID: 5, Answers: answers}, nil).Once()
		repo.On("MarkCompleted", ctx, uint(5), mock.AnythingOfType("scoring.Result"), mock.AnythingOfType("time.Time")).Return(false, nil).Once()
		repo.On("GetAttemptByID", ctx, uint(5)).Return(&models.Attempt{
			ID: 5, IsCompleted: true, ResultType: strPtr("ISTJ"), Scores: []byte(`{"E":0}`),
		}, nil).Once()
		svc := NewAttemptService(catalog, repo, newTestRegistry(t))

		result, err := svc.Complete(ctx, 1, "mbti")
		require.NoError(t, err)
		assert.True(t, result.AlreadyCompleted)
		assert.Equal(t, "ISTJ", result.ResultType)
		repo.AssertExpectations(t)
	})

	t.Run("Store failures are propagated", func(t *testing.T) {
		repo := new(MockAttemptRepository)
		boom := errors.New("db down")
		repo.On("GetAttempt", ctx, uint(1), test.ID).Return(nil, boom).Once()
		svc := NewAttemptService(catalog, repo, nil)

		_, err := svc.Complete(ctx, 1, "mbti")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("No result before start", func(t *testing.T) {
		repo := new(MockAttemptRepository)
		repo.On("GetAttempt", ctx, uint(1), test.ID).Return(nil, nil).Once()
		svc := NewAttemptService(catalog, repo, nil)

		_, err := svc.GetResult(ctx, 1, "mbti")
		assert.ErrorIs(t, err, ErrResultNotFound)
	})
}
