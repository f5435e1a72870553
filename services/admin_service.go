package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"psychotest/models"
	"psychotest/repository"
)

// AdminService backs the admin panel: listings, question banks, result details
// and the usage overview.
type AdminService interface {
	ListUsers(ctx context.Context) ([]models.UserSummary, error)
	ListResults(ctx context.Context) ([]models.CompletedResult, error)
	ListTests(ctx context.Context) ([]models.TestStats, error)
	GetQuestions(ctx context.Context, testID uint) ([]models.Question, error)
	GetResultDetails(ctx context.Context, resultID uint) (*models.ResultDetails, error)
	Overview(ctx context.Context) (*models.Overview, error)
}

type adminService struct {
	admin    repository.AdminRepository
	catalog  repository.CatalogRepository
	attempts repository.AttemptRepository
}

// NewAdminService creates a new instance of AdminService.
func NewAdminService(admin repository.AdminRepository, catalog repository.CatalogRepository, attempts repository.AttemptRepository) AdminService {
	return &adminService{admin: admin, catalog: catalog, attempts: attempts}
}

func (s *adminService) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	return s.admin.ListUsers(ctx)
}

func (s *adminService) ListResults(ctx context.Context) ([]models.CompletedResult, error) {
	return s.admin.ListCompletedResults(ctx)
}

func (s *adminService) ListTests(ctx context.Context) ([]models.TestStats, error) {
	return s.admin.ListTestStats(ctx)
}

func (s *adminService) GetQuestions(ctx context.Context, testID uint) ([]models.Question, error) {
	test, err := s.catalog.GetTestByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	if test == nil {
		return nil, fmt.Errorf("test %d: %w", testID, ErrTestNotFound)
	}
	return s.catalog.GetQuestions(ctx, testID)
}

// GetResultDetails pairs every question of the test with the stored answer.
// Attempts still in progress are served with the answers given so far.
func (s *adminService) GetResultDetails(ctx context.Context, resultID uint) (*models.ResultDetails, error) {
	summary, err := s.admin.GetResult(ctx, resultID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, fmt.Errorf("result %d: %w", resultID, ErrResultNotFound)
	}
	attempt, err := s.attempts.GetAttemptByID(ctx, resultID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, fmt.Errorf("result %d: %w", resultID, ErrResultNotFound)
	}
	questions, err := s.catalog.GetQuestions(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}
	scores, err := attempt.DecodedScores()
	if err != nil {
		return nil, fmt.Errorf("failed to decode scores of result %d: %w", resultID, err)
	}

	details := &models.ResultDetails{
		Result:    *summary,
		Scores:    scores,
		Questions: make([]models.AnsweredQuestion, 0, len(questions)),
	}
	if attempt.AIAnalysis != nil {
		details.Analysis = *attempt.AIAnalysis
	}
	for _, q := range questions {
		details.Questions = append(details.Questions, models.AnsweredQuestion{Question: q, UserAnswer: attempt.Answers[q.Number]})
	}
	return details, nil
}

// Overview sums the per-test counters into platform totals.
func (s *adminService) Overview(ctx context.Context) (*models.Overview, error) {
	if s.admin == nil {
		return nil, errors.New("admin repository not available")
	}
	users, err := s.admin.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := s.admin.ListTestStats(ctx)
	if err != nil {
		return nil, err
	}
	overview := &models.Overview{Users: users, Tests: stats, GeneratedAt: time.Now()}
	for _, t := range stats {
		overview.AttemptsStarted += t.StartedCount
		overview.AttemptsCompleted += t.CompletionCount
		overview.AttemptsAnalyzed += t.AnalyzedCount
	}
	log.Printf("INFO: [AdminService] Overview: %d users, %d attempts started, %d completed, %d analyzed.",
		users, overview.AttemptsStarted, overview.AttemptsCompleted, overview.AttemptsAnalyzed)
	return overview, nil
}
