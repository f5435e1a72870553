package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// QuestionType defines how a question is presented and answered.
type QuestionType string

const (
	QuestionTypeBinary         QuestionType = "binary"          // Two statements, answered A-D
	QuestionTypeMultipleChoice QuestionType = "multiple_choice" // Labelled options, answered A-E
)

// Test is a catalog entry for one personality test.
type Test struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Slug            string    `json:"slug" gorm:"uniqueIndex;size:100;not null"`
	Name            string    `json:"name" gorm:"size:255;not null"`
	Description     string    `json:"description"`
	Icon            string    `json:"icon" gorm:"size:50"`
	Color           string    `json:"color" gorm:"size:20"`
	QuestionCount   int       `json:"questionCount"`
	DurationMinutes int       `json:"durationMinutes"`
	IsActive        bool      `json:"isActive"`
	ScoringStrategy string    `json:"scoringStrategy" gorm:"size:20"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Question is one numbered item of a test.
type Question struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	TestID    uint           `json:"testId" gorm:"uniqueIndex:idx_question_test_number;not null"`
	Number    int            `json:"questionNumber" gorm:"column:question_number;uniqueIndex:idx_question_test_number;not null"`
	Type      QuestionType   `json:"questionType" gorm:"column:question_type;size:20;not null"`
	LeftText  string         `json:"leftText"`
	RightText string         `json:"rightText"`
	Section   string         `json:"section,omitempty" gorm:"size:100"`
	Options   datatypes.JSON `json:"options,omitempty"` // letter -> option text, multiple_choice only
	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"-"`
}

// OptionMap decodes the stored options. Binary questions return an empty map.
func (q Question) OptionMap() (map[string]string, error) {
	options := map[string]string{}
	if len(q.Options) == 0 {
		return options, nil
	}
	if err := json.Unmarshal(q.Options, &options); err != nil {
		return nil, err
	}
	return options, nil
}

// TableName keeps the historical table name.
func (Question) TableName() string {
	return "test_questions"
}
