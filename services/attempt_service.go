package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"psychotest/models"
	"psychotest/repository"
	"psychotest/scoring"
)

// maxAnswerLength matches the answer column size.
const maxAnswerLength = 32

// Attempt status values reported to clients.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// StartResult is returned by Start.
type StartResult struct {
	AttemptID        uint           `json:"resultId"`
	AlreadyCompleted bool           `json:"alreadyCompleted"`
	Resumed          bool           `json:"resumed"`
	ResultType       string         `json:"resultType,omitempty"`
	Answers          map[int]string `json:"answers,omitempty"`
}

// CompletionResult is returned by Complete. AlreadyCompleted is set when the
// stored result of an earlier completion is returned.
type CompletionResult struct {
	AttemptID        uint                   `json:"resultId"`
	ResultType       string                 `json:"resultType"`
	Scores           map[string]interface{} `json:"scores"`
	AlreadyCompleted bool                   `json:"alreadyCompleted"`
}

// TestSummary is a catalog entry with the caller's progress.
type TestSummary struct {
	models.Test
	Status        string `json:"status"`
	ResultType    string `json:"resultType,omitempty"`
	AnsweredCount int    `json:"answeredCount"`
}

// TestDetail is a test with its questions and the caller's attempt, if any.
type TestDetail struct {
	Test      models.Test       `json:"test"`
	Questions []models.Question `json:"questions"`
	Attempt   *models.Attempt   `json:"userResult"`
}

// ResultView is a completed or in-progress attempt with what is needed to render it.
type ResultView struct {
	Test      models.Test            `json:"test"`
	Attempt   *models.Attempt        `json:"result"`
	Scores    map[string]interface{} `json:"scores"`
	Questions []models.Question      `json:"questions"`
}

// AttemptService drives an attempt from start to completion.
type AttemptService interface {
	// ListTests returns active tests; userID 0 means an anonymous caller.
	ListTests(ctx context.Context, userID uint) ([]TestSummary, error)
	GetTest(ctx context.Context, userID uint, slug string) (*TestDetail, error)
	Start(ctx context.Context, userID uint, slug string) (*StartResult, error)
	RecordAnswer(ctx context.Context, userID uint, slug string, questionNumber int, answer string) error
	Complete(ctx context.Context, userID uint, slug string) (*CompletionResult, error)
	GetResult(ctx context.Context, userID uint, slug string) (*ResultView, error)
}

type attemptService struct {
	catalog  repository.CatalogRepository
	attempts repository.AttemptRepository
	registry *scoring.Registry
	now      func() time.Time
}

// NewAttemptService creates a new instance of AttemptService.
func NewAttemptService(catalog repository.CatalogRepository, attempts repository.AttemptRepository, registry *scoring.Registry) AttemptService {
	if registry == nil {
		registry = scoring.NewRegistry()
	}
	return &attemptService{
		catalog:  catalog,
		attempts: attempts,
		registry: registry,
		now:      time.Now,
	}
}

func (s *attemptService) activeTest(ctx context.Context, slug string) (*models.Test, error) {
	test, err := s.catalog.GetTestBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to look up test %q: %w", slug, err)
	}
	if test == nil {
		return nil, fmt.Errorf("%q: %w", slug, ErrTestNotFound)
	}
	return test, nil
}

func (s *attemptService) ListTests(ctx context.Context, userID uint) ([]TestSummary, error) {
	tests, err := s.catalog.ListActiveTests(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	summaries := make([]TestSummary, 0, len(tests))
	for _, test := range tests {
		summary := TestSummary{Test: test, Status: StatusNotStarted}
		if userID != 0 {
			attempt, err := s.attempts.GetAttempt(ctx, userID, test.ID)
			if err != nil {
				return nil, err
			}
			if attempt != nil {
				summary.Status = statusOf(attempt)
				summary.AnsweredCount = len(attempt.Answers)
				if attempt.ResultType != nil {
					summary.ResultType = *attempt.ResultType
				}
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func statusOf(a *models.Attempt) string {
	if a.IsCompleted {
		return StatusCompleted
	}
	return StatusInProgress
}

func (s *attemptService) GetTest(ctx context.Context, userID uint, slug string) (*TestDetail, error) {
	test, err := s.activeTest(ctx, slug)
	if err != nil {
		return nil, err
	}
	questions, err := s.catalog.GetQuestions(ctx, test.ID)
	if err != nil {
		return nil, err
	}
	attempt, err := s.attempts.GetAttempt(ctx, userID, test.ID)
	if err != nil {
		return nil, err
	}
	return &TestDetail{Test: *test, Questions: questions, Attempt: attempt}, nil
}

// Start creates an empty attempt, resumes an in-progress one, or reports a
// completed one without resetting it.
func (s *attemptService) Start(ctx context.Context, userID uint, slug string) (*StartResult, error) {
	test, err := s.activeTest(ctx, slug)
	if err != nil {
		return nil, err
	}

	attempt, err := s.attempts.GetAttempt(ctx, userID, test.ID)
	if err != nil {
		return nil, err
	}
	resumed := attempt != nil
	if attempt == nil {
		attempt, err = s.attempts.CreateAttempt(ctx, userID, test.ID)
		if err != nil {
			return nil, err
		}
		log.Printf("INFO: [AttemptService] User %d started test %q (attempt %d).", userID, slug, attempt.ID)
	}

	if attempt.IsCompleted {
		result := &StartResult{AttemptID: attempt.ID, AlreadyCompleted: true}
		if attempt.ResultType != nil {
			result.ResultType = *attempt.ResultType
		}
		return result, nil
	}
	answers := attempt.Answers
	if answers == nil {
		answers = map[int]string{}
	}
	return &StartResult{AttemptID: attempt.ID, Resumed: resumed, Answers: answers}, nil
}

func (s *attemptService) RecordAnswer(ctx context.Context, userID uint, slug string, questionNumber int, answer string) error {
	answer = strings.TrimSpace(answer)
	if questionNumber < 1 {
		return fmt.Errorf("question number %d: %w", questionNumber, ErrInvalidAnswer)
	}
	if answer == "" {
		return fmt.Errorf("empty answer for question %d: %w", questionNumber, ErrInvalidAnswer)
	}
	if utf8.RuneCountInString(answer) > maxAnswerLength {
		return fmt.Errorf("answer for question %d longer than %d characters: %w", questionNumber, maxAnswerLength, ErrInvalidAnswer)
	}

	test, err := s.activeTest(ctx, slug)
	if err != nil {
		return err
	}
	attempt, err := s.attempts.GetAttempt(ctx, userID, test.ID)
	if err != nil {
		return err
	}
	if attempt == nil {
		return fmt.Errorf("user %d test %q: %w", userID, slug, ErrAttemptNotFound)
	}
	if attempt.IsCompleted {
		return fmt.Errorf("attempt %d: %w", attempt.ID, ErrAttemptAlreadyCompleted)
	}
	if err := s.attempts.SetAnswer(ctx, attempt.ID, questionNumber, answer); err != nil {
		if errors.Is(err, repository.ErrAttemptCompleted) {
			return fmt.Errorf("attempt %d: %w", attempt.ID, ErrAttemptAlreadyCompleted)
		}
		return err
	}
	return nil
}

// Complete scores a fully answered attempt exactly once. Later or racing calls
// receive the stored result.
func (s *attemptService) Complete(ctx context.Context, userID uint, slug string) (*CompletionResult, error) {
	test, err := s.activeTest(ctx, slug)
	if err != nil {
		return nil, err
	}
	attempt, err := s.attempts.GetAttempt(ctx, userID, test.ID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, fmt.Errorf("user %d test %q: %w", userID, slug, ErrAttemptNotFound)
	}
	if attempt.IsCompleted {
		return storedCompletion(attempt)
	}

	total, err := s.catalog.CountQuestions(ctx, test.ID)
	if err != nil {
		return nil, err
	}
	answers := scoring.Answers(attempt.Answers).Within(total)
	if missing := answers.Missing(total); missing > 0 {
		return nil, &IncompleteAnswersError{Answered: total - missing, Required: total}
	}

	strategy := s.registry.For(test.Slug)
	result := strategy.Score(answers)

	won, err := s.attempts.MarkCompleted(ctx, attempt.ID, result, s.now())
	if err != nil {
		return nil, err
	}
	if !won {
		log.Printf("INFO: [AttemptService] Attempt %d was completed concurrently; returning stored result.", attempt.ID)
		stored, err := s.attempts.GetAttemptByID(ctx, attempt.ID)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, fmt.Errorf("attempt %d: %w", attempt.ID, ErrAttemptNotFound)
		}
		return storedCompletion(stored)
	}

	log.Printf("INFO: [AttemptService] User %d completed test %q with %s (%s strategy).", userID, slug, result.ResultType, strategy.Name())
	scores, err := storedScores(result.Scores)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scores of attempt %d: %w", attempt.ID, err)
	}
	return &CompletionResult{
		AttemptID:  attempt.ID,
		ResultType: result.ResultType,
		Scores:     scores,
	}, nil
}

// storedScores converts scores to the form they take after a round trip through
// the store, so fresh and repeated completions return identical values.
func storedScores(scores scoring.Scores) (map[string]interface{}, error) {
	raw, err := json.Marshal(scores)
	if err != nil {
		return nil, err
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

func storedCompletion(attempt *models.Attempt) (*CompletionResult, error) {
	scores, err := attempt.DecodedScores()
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored scores of attempt %d: %w", attempt.ID, err)
	}
	result := &CompletionResult{AttemptID: attempt.ID, Scores: scores, AlreadyCompleted: true}
	if attempt.ResultType != nil {
		result.ResultType = *attempt.ResultType
	}
	return result, nil
}

func (s *attemptService) GetResult(ctx context.Context, userID uint, slug string) (*ResultView, error) {
	test, err := s.activeTest(ctx, slug)
	if err != nil {
		return nil, err
	}
	attempt, err := s.attempts.GetAttempt(ctx, userID, test.ID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, fmt.Errorf("user %d test %q: %w", userID, slug, ErrResultNotFound)
	}
	scores, err := attempt.DecodedScores()
	if err != nil {
		return nil, fmt.Errorf("failed to decode scores of attempt %d: %w", attempt.ID, err)
	}
	questions, err := s.catalog.GetQuestions(ctx, test.ID)
	if err != nil {
		return nil, err
	}
	return &ResultView{Test: *test, Attempt: attempt, Scores: scores, Questions: questions}, nil
}
