package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"psychotest/config"
	"psychotest/llm"
	"psychotest/repository"
)

// Identity is the tester as known from the access token.
type Identity struct {
	ID    uint
	Email string
	Name  string
}

// AnalysisOutcome is the stored narrative.
type AnalysisOutcome struct {
	Analysis   string    `json:"analysis"`
	AnalyzedAt time.Time `json:"analyzedAt"`
}

// analysisInput is the document sent to the generator.
type analysisInput struct {
	Email      string                 `json:"email"`
	Name       string                 `json:"name"`
	TestName   string                 `json:"test_name"`
	ResultType string                 `json:"result_type"`
	Scores     map[string]interface{} `json:"scores"`
	Answers    []string               `json:"answers"`
}

// AnalysisService requests and stores narrative analyses of completed attempts.
type AnalysisService interface {
	// Analyze generates a new narrative, replacing any earlier one.
	Analyze(ctx context.Context, who Identity, slug string) (*AnalysisOutcome, error)
}

type analysisService struct {
	catalog   repository.CatalogRepository
	attempts  repository.AttemptRepository
	generator llm.Generator
	cfg       config.AnalysisConfig
	now       func() time.Time
}

// NewAnalysisService creates an AnalysisService. A nil generator makes every
// call fail with ErrServiceUnavailable.
func NewAnalysisService(catalog repository.CatalogRepository, attempts repository.AttemptRepository, generator llm.Generator, cfg config.AnalysisConfig) AnalysisService {
	return &analysisService{
		catalog:   catalog,
		attempts:  attempts,
		generator: generator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *analysisService) Analyze(ctx context.Context, who Identity, slug string) (*AnalysisOutcome, error) {
	route := s.cfg.RouteFor(slug)
	if s.generator == nil || !s.generator.Available(route.Provider) {
		log.Printf("WARN: [AnalysisService] No generator available for test %q (provider '%s').", slug, route.Provider)
		return nil, ErrServiceUnavailable
	}

	test, err := s.catalog.GetTestBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to look up test %q: %w", slug, err)
	}
	if test == nil {
		return nil, fmt.Errorf("%q: %w", slug, ErrTestNotFound)
	}
	attempt, err := s.attempts.GetAttempt(ctx, who.ID, test.ID)
	if err != nil {
		return nil, err
	}
	if attempt == nil || !attempt.IsCompleted {
		return nil, fmt.Errorf("user %d test %q: %w", who.ID, slug, ErrNotCompleted)
	}

	questions, err := s.catalog.GetQuestions(ctx, test.ID)
	if err != nil {
		return nil, err
	}
	scores, err := attempt.DecodedScores()
	if err != nil {
		return nil, fmt.Errorf("failed to decode scores of attempt %d: %w", attempt.ID, err)
	}
	input := analysisInput{
		Email:    who.Email,
		Name:     who.Name,
		TestName: test.Name,
		Scores:   scores,
		Answers:  BuildTranscript(questions, attempt.Answers),
	}
	if attempt.ResultType != nil {
		input.ResultType = *attempt.ResultType
	}
	payload, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis input: %w", err)
	}

	genCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	text, err := s.generator.Generate(genCtx, llm.Request{
		Provider:      route.Provider,
		Model:         route.Model,
		PromptID:      route.PromptID,
		PromptVersion: route.PromptVersion,
		SystemPrompt:  route.SystemPrompt,
		Input:         string(payload),
	})
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			return nil, fmt.Errorf("%v: %w", err, ErrServiceUnavailable)
		}
		var providerErr *llm.ProviderError
		if !errors.As(err, &providerErr) {
			err = &llm.ProviderError{Provider: route.Provider, Err: err}
		}
		log.Printf("ERROR: [AnalysisService] Generation for attempt %d failed: %v", attempt.ID, err)
		return nil, fmt.Errorf("analysis of test %q failed: %w", slug, err)
	}

	analyzedAt := s.now()
	if err := s.attempts.SaveAnalysis(ctx, attempt.ID, text, analyzedAt); err != nil {
		return nil, err
	}
	log.Printf("INFO: [AnalysisService] Stored analysis for attempt %d (%d chars).", attempt.ID, len(text))
	return &AnalysisOutcome{Analysis: text, AnalyzedAt: analyzedAt}, nil
}
