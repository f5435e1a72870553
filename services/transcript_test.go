package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"

	"psychotest/models"
)

func TestBuildTranscript(t *testing.T) {
	binary := models.Question{Number: 1, Type: models.QuestionTypeBinary, LeftText: "parties", RightText: "books"}
	choice := models.Question{
		Number: 2, Type: models.QuestionTypeMultipleChoice, LeftText: "A client cries.",
		Options: datatypes.JSON(`{"A":"Stay with the feeling","B":"Reframe the thought"}`),
	}
	questions := []models.Question{binary, choice}

	t.Run("Binary answers read as preferences", func(t *testing.T) {
		cases := map[string]string{
			"A": `Q1: strongly prefers "parties" over "books"`,
			"B": `Q1: slightly prefers "parties" over "books"`,
			"C": `Q1: slightly prefers "books" over "parties"`,
			"D": `Q1: strongly prefers "books" over "parties"`,
			"E": `Q1: no preference between "parties" and "books"`,
		}
		for answer, want := range cases {
			assert.Equal(t, []string{want}, BuildTranscript(questions[:1], map[int]string{1: answer}), answer)
		}
	})

	t.Run("Multiple choice answers quote the option", func(t *testing.T) {
		lines := BuildTranscript(questions, map[int]string{2: "B"})
		assert.Equal(t, []string{"Q2: A client cries. -> B: Reframe the thought"}, lines)

		lines = BuildTranscript(questions, map[int]string{2: "E"})
		assert.Equal(t, []string{"Q2: A client cries. -> option E"}, lines)
	})

	t.Run("Question order wins and unknown numbers are skipped", func(t *testing.T) {
		lines := BuildTranscript(questions, map[int]string{2: "A", 1: "x", 9: "A"})
		assert.Equal(t, []string{
			`Q1: unrecognised answer "x"`,
			"Q2: A client cries. -> A: Stay with the feeling",
		}, lines)
	})

	t.Run("No answers", func(t *testing.T) {
		assert.Empty(t, BuildTranscript(questions, nil))
	})
}
