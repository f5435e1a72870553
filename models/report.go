package models

import "time"

// UserSummary is an admin listing row.
type UserSummary struct {
	ID             uint      `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"createdAt"`
	CompletedTests int       `json:"completedTests"`
}

// CompletedResult is a completed attempt joined with its user and test.
type CompletedResult struct {
	ID          uint       `json:"id"`
	UserID      uint       `json:"userId"`
	UserEmail   string     `json:"userEmail"`
	UserName    string     `json:"userName"`
	TestSlug    string     `json:"testSlug"`
	TestName    string     `json:"testName"`
	ResultType  string     `json:"resultType"`
	CompletedAt *time.Time `json:"completedAt"`
	HasAnalysis bool       `json:"hasAnalysis"`
	IsCompleted bool       `json:"isCompleted"`
}

// TestStats is a catalog entry with usage counts.
type TestStats struct {
	Test
	ActualQuestionCount int `json:"actualQuestionCount"`
	CompletionCount     int `json:"completionCount"`
	StartedCount        int `json:"startedCount"`
	AnalyzedCount       int `json:"analyzedCount"`
}

// AnsweredQuestion pairs a question with the user's stored answer.
type AnsweredQuestion struct {
	Question
	UserAnswer string `json:"userAnswer,omitempty"`
}

// ResultDetails is the admin view of one attempt.
type ResultDetails struct {
	Result    CompletedResult        `json:"result"`
	Scores    map[string]interface{} `json:"scores"`
	Analysis  string                 `json:"aiAnalysis,omitempty"`
	Questions []AnsweredQuestion     `json:"questions"`
}

// Overview aggregates platform usage.
type Overview struct {
	Users             int         `json:"users"`
	AttemptsStarted   int         `json:"attemptsStarted"`
	AttemptsCompleted int         `json:"attemptsCompleted"`
	AttemptsAnalyzed  int         `json:"attemptsAnalyzed"`
	Tests             []TestStats `json:"tests"`
	GeneratedAt       time.Time   `json:"generatedAt"`
}
