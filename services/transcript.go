package services

import (
	"fmt"

	"psychotest/models"
	"psychotest/scoring"
)

// BuildTranscript renders each answered question with what the answer means,
// in question order. Answers to unknown question numbers are left out.
func BuildTranscript(questions []models.Question, answers map[int]string) []string {
	lines := make([]string, 0, len(answers))
	for _, q := range questions {
		raw, ok := answers[q.Number]
		if !ok || raw == "" {
			continue
		}
		lines = append(lines, describeAnswer(q, raw))
	}
	return lines
}

func describeAnswer(q models.Question, raw string) string {
	letter, ok := scoring.ParseLetter(raw)
	if !ok {
		return fmt.Sprintf("Q%d: unrecognised answer %q", q.Number, raw)
	}

	if q.Type == models.QuestionTypeMultipleChoice {
		options, err := q.OptionMap()
		if err != nil || options[string(letter)] == "" {
			return fmt.Sprintf("Q%d: %s -> option %s", q.Number, q.LeftText, letter)
		}
		return fmt.Sprintf("Q%d: %s -> %s: %s", q.Number, q.LeftText, letter, options[string(letter)])
	}

	switch letter {
	case scoring.LetterA:
		return fmt.Sprintf("Q%d: strongly prefers %q over %q", q.Number, q.LeftText, q.RightText)
	case scoring.LetterB:
		return fmt.Sprintf("Q%d: slightly prefers %q over %q", q.Number, q.LeftText, q.RightText)
	case scoring.LetterC:
		return fmt.Sprintf("Q%d: slightly prefers %q over %q", q.Number, q.RightText, q.LeftText)
	case scoring.LetterD:
		return fmt.Sprintf("Q%d: strongly prefers %q over %q", q.Number, q.RightText, q.LeftText)
	case scoring.LetterE:
		return fmt.Sprintf("Q%d: no preference between %q and %q", q.Number, q.LeftText, q.RightText)
	}
	return fmt.Sprintf("Q%d: unrecognised answer %q", q.Number, raw)
}
