package scoring

import "strings"

// Letter is an answer code submitted for a question. Binary questions use A-D,
// multiple-choice questions use A-E.
type Letter string

const (
	LetterA Letter = "A"
	LetterB Letter = "B"
	LetterC Letter = "C"
	LetterD Letter = "D"
	LetterE Letter = "E"
)

// Letters lists every valid answer code in declaration order.
var Letters = []Letter{LetterA, LetterB, LetterC, LetterD, LetterE}

// ParseLetter converts a stored answer into a Letter.
// Anything outside A-E is reported as not ok and contributes nothing when scoring.
func ParseLetter(raw string) (Letter, bool) {
	switch Letter(strings.TrimSpace(raw)) {
	case LetterA:
		return LetterA, true
	case LetterB:
		return LetterB, true
	case LetterC:
		return LetterC, true
	case LetterD:
		return LetterD, true
	case LetterE:
		return LetterE, true
	}
	return "", false
}

// Index returns the zero-based position of the letter in A-E, or -1.
func (l Letter) Index() int {
	switch l {
	case LetterA:
		return 0
	case LetterB:
		return 1
	case LetterC:
		return 2
	case LetterD:
		return 3
	case LetterE:
		return 4
	}
	return -1
}
