package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"psychotest/config"
	"psychotest/llm"
	"psychotest/repository"
)

var testAnalysisConfig = config.AnalysisConfig{
	Timeout: time.Second,
	Default: config.AnalysisRoute{Provider: "openai", Model: "gpt-4o-mini", SystemPrompt: "You are a careful psychologist."},
	Routes: map[string]config.AnalysisRoute{
		"ai-therapist": {PromptID: "therapist-style", PromptVersion: "3"},
	},
}

func completedFlow(t *testing.T, slug string, total int, letter string) (*fakeCatalog, repository.AttemptRepository) {
	t.Helper()
	catalog := newFakeCatalog()
	catalog.addBinary(1, "mbti", 44)
	catalog.addChoice(2, "ai-therapist", 20)
	attempts := repository.NewMemoryAttemptRepository()
	svc := NewAttemptService(catalog, attempts, newTestRegistry(t))

	ctx := context.Background()
	_, err := svc.Start(ctx, 5, slug)
	require.NoError(t, err)
	answerAll(t, svc, 5, slug, 1, total, letter)
	_, err = svc.Complete(ctx, 5, slug)
	require.NoError(t, err)
	return catalog, attempts
}

func TestAnalysisService_Analyze(t *testing.T) {
	ctx := context.Background()
	who := Identity{ID: 5, Email: "ada@example.com", Name: "Ada"}

	t.Run("Stores the narrative and overwrites on regeneration", func(t *testing.T) {
		catalog, attempts := completedFlow(t, "mbti", 44, "A")
		gen := new(MockGenerator)
		gen.On("Available", "openai").Return(true)
		gen.On("Generate", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
			return req.Model == "gpt-4o-mini" &&
				req.SystemPrompt == "You are a careful psychologist." &&
				strings.Contains(req.Input, `"result_type": "ESTJ"`) &&
				strings.Contains(req.Input, `"email": "ada@example.com"`) &&
				strings.Contains(req.Input, `strongly prefers \"left 1\" over \"right 1\"`)
		})).Return("first narrative", nil).Once()
		gen.On("Generate", mock.Anything, mock.Anything).Return("second narrative", nil).Once()

		svc := NewAnalysisService(catalog, attempts, gen, testAnalysisConfig)

		first, err := svc.Analyze(ctx, who, "mbti")
		require.NoError(t, err)
		assert.Equal(t, "first narrative", first.Analysis)
		assert.False(t, first.AnalyzedAt.IsZero())

		second, err := svc.Analyze(ctx, who, "mbti")
		require.NoError(t, err)
		assert.Equal(t, "second narrative", second.Analysis)

		stored, err := attempts.GetAttempt(ctx, 5, 1)
		require.NoError(t, err)
		require.NotNil(t, stored.AIAnalysis)
		assert.Equal(t, "second narrative", *stored.AIAnalysis)
		require.NotNil(t, stored.AnalysisDate)
		gen.AssertExpectations(t)
	})

	t.Run("Per-test route keeps default provider and model", func(t *testing.T) {
		catalog, attempts := completedFlow(t, "ai-therapist", 20, "B")
		gen := new(MockGenerator)
		gen.On("Available", "openai").Return(true)
		gen.On("Generate", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
			return req.Provider == "openai" && req.Model == "gpt-4o-mini" &&
				req.PromptID == "therapist-style" && req.PromptVersion == "3" &&
				strings.Contains(req.Input, "B: frame")
		})).Return("narrative", nil).Once()

		svc := NewAnalysisService(catalog, attempts, gen, testAnalysisConfig)
		_, err := svc.Analyze(ctx, who, "ai-therapist")
		require.NoError(t, err)
		gen.AssertExpectations(t)
	})

	t.Run("Unavailable generator", func(t *testing.T) {
		catalog, attempts := completedFlow(t, "mbti", 44, "A")
		gen := new(MockGenerator)
		gen.On("Available", "openai").Return(false)

		svc := NewAnalysisService(catalog, attempts, gen, testAnalysisConfig)
		_, err := svc.Analyze(ctx, who, "mbti")
		assert.ErrorIs(t, err, ErrServiceUnavailable)
		gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)

		_, err = NewAnalysisService(catalog, attempts, nil, testAnalysisConfig).Analyze(ctx, who, "mbti")
		assert.ErrorIs(t, err, ErrServiceUnavailable)
	})

	t.Run("Incomplete attempt is refused", func(t *testing.T) {
		catalog := newFakeCatalog()
		catalog.addBinary(1, "mbti", 44)
		attempts := repository.NewMemoryAttemptRepository()
		_, err := attempts.CreateAttempt(ctx, 5, 1)
		require.NoError(t, err)
		gen := new(MockGenerator)
		gen.On("Available", "openai").Return(true)

		svc := NewAnalysisService(catalog, attempts, gen, testAnalysisConfig)
		_, err = svc.Analyze(ctx, who, "mbti")
		assert.ErrorIs(t, err, ErrNotCompleted)

		_, err = svc.Analyze(ctx, Identity{ID: 99}, "mbti")
		assert.ErrorIs(t, err, ErrNotCompleted)

		_, err = svc.Analyze(ctx, who, "unknown")
		assert.ErrorIs(t, err, ErrTestNotFound)
	})

	t.Run("Generator reports missing model", func(t *testing.T) {
		catalog, attempts := completedFlow(t, "mbti", 44, "A")
		gen := new(MockGenerator)
		gen.On("Available", "openai").Return(true)
		gen.On("Generate", mock.Anything, mock.Anything).Return("", llm.ErrUnavailable)

		svc := NewAnalysisService(catalog, attempts, gen, testAnalysisConfig)
		_, err := svc.Analyze(ctx, who, "mbti")
		assert.ErrorIs(t, err, ErrServiceUnavailable)
	})

	t.Run("Provider failures keep the attempt unchanged", func(t *testing.T) {
		catalog, attempts := completedFlow(t, "mbti", 44, "A")
		gen := new(MockGenerator)
		gen.On("Available", "openai").Return(true)
		gen.On("Generate", mock.Anything, mock.Anything).Return("", &llm.ProviderError{Provider: "openai", Err: errors.New("bad gateway")}).Once()
		gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("connection reset")).Once()

		svc := NewAnalysisService(catalog, attempts, gen, testAnalysisConfig)

		_, err := svc.Analyze(ctx, who, "mbti")
		var providerErr *llm.ProviderError
		require.True(t, errors.As(err, &providerErr))
		assert.Contains(t, providerErr.Error(), "bad gateway")

		_, err = svc.Analyze(ctx, who, "mbti")
		require.True(t, errors.As(err, &providerErr))
		assert.Equal(t, "openai", providerErr.Provider)

		stored, err := attempts.GetAttempt(ctx, 5, 1)
		require.NoError(t, err)
		assert.Nil(t, stored.AIAnalysis)
	})

	t.Run("Generation is bounded by the configured timeout", func(t *testing.T) {
		catalog, attempts := completedFlow(t, "mbti", 44, "A")
		gen := new(MockGenerator)
		gen.On("Available", "openai").Return(true)
		gen.On("Generate", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				<-args.Get(0).(context.Context).Done()
			}).
			Return("", context.DeadlineExceeded)

		cfg := testAnalysisConfig
		cfg.Timeout = 20 * time.Millisecond
		svc := NewAnalysisService(catalog, attempts, gen, cfg)

		_, err := svc.Analyze(ctx, who, "mbti")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
