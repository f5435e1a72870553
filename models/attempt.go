package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Attempt is a user's single run through one test. There is at most one per
// (user, test) pair.
type Attempt struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	UserID       uint           `json:"userId" gorm:"uniqueIndex:idx_attempt_user_test;not null"`
	TestID       uint           `json:"testId" gorm:"uniqueIndex:idx_attempt_user_test;not null"`
	Answers      map[int]string `json:"answers" gorm:"-"` // loaded from attempt_answers
	IsCompleted  bool           `json:"isCompleted" gorm:"not null;default:false;index"`
	ResultType   *string        `json:"resultType,omitempty" gorm:"size:100"`
	Scores       datatypes.JSON `json:"scores,omitempty"`
	AIAnalysis   *string        `json:"aiAnalysis,omitempty" gorm:"column:ai_analysis"`
	StartedAt    time.Time      `json:"startedAt"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
	AnalysisDate *time.Time     `json:"analysisDate,omitempty"`
	CreatedAt    time.Time      `json:"-"`
	UpdatedAt    time.Time      `json:"-"`
}

// TableName keeps the historical table name.
func (Attempt) TableName() string {
	return "user_test_results"
}

// DecodedScores unmarshals the stored score payload. Incomplete attempts return nil.
func (a *Attempt) DecodedScores() (map[string]interface{}, error) {
	if len(a.Scores) == 0 {
		return nil, nil
	}
	var scores map[string]interface{}
	if err := json.Unmarshal(a.Scores, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// AttemptAnswer stores one answer of an attempt. Writes for different questions
// never touch the same row.
type AttemptAnswer struct {
	ID             uint   `gorm:"primaryKey"`
	AttemptID      uint   `gorm:"uniqueIndex:idx_answer_attempt_question;not null"`
	QuestionNumber int    `gorm:"uniqueIndex:idx_answer_attempt_question;not null"`
	Answer         string `gorm:"size:32;not null"`
	UpdatedAt      time.Time
}

// User mirrors the identity carried by access tokens.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Email     string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Name      string    `json:"name" gorm:"size:255"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
}
