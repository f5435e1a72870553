package scoring

import (
	"errors"
	"fmt"
	"strings"
)

// Band is a contiguous range of question numbers scored against one pair of poles.
type Band struct {
	Start    int    `yaml:"start" json:"start"`
	End      int    `yaml:"end" json:"end"`
	Positive string `yaml:"positive" json:"positive"`
	Negative string `yaml:"negative" json:"negative"`
}

// BandCount is the number of axes of a four-letter typology.
const BandCount = 4

// BinaryStrategy scores forced-choice answers on a four-point scale per band.
// A and B lean to the positive pole, C and D to the negative one.
type BinaryStrategy struct {
	bands []Band
}

// DefaultMBTIBands covers the 44-question four-axis test.
func DefaultMBTIBands() []Band {
	return []Band{
		{Start: 1, End: 12, Positive: "E", Negative: "I"},
		{Start: 13, End: 23, Positive: "S", Negative: "N"},
		{Start: 24, End: 34, Positive: "T", Negative: "F"},
		{Start: 35, End: 44, Positive: "J", Negative: "P"},
	}
}

// NewBinaryStrategy validates the bands and returns a strategy using them.
func NewBinaryStrategy(bands []Band) (*BinaryStrategy, error) {
	if len(bands) != BandCount {
		return nil, fmt.Errorf("binary scoring needs exactly %d bands, got %d", BandCount, len(bands))
	}
	poles := make(map[string]bool)
	for i, b := range bands {
		if b.Start < 1 || b.End < b.Start {
			return nil, fmt.Errorf("band %d has invalid range %d-%d", i, b.Start, b.End)
		}
		if b.Positive == "" || b.Negative == "" {
			return nil, fmt.Errorf("band %d is missing a pole label", i)
		}
		for _, p := range []string{b.Positive, b.Negative} {
			if poles[p] {
				return nil, fmt.Errorf("pole %q is used by more than one band", p)
			}
			poles[p] = true
		}
		for j := 0; j < i; j++ {
			if b.Start <= bands[j].End && bands[j].Start <= b.End {
				return nil, errors.New("bands must not overlap")
			}
		}
	}
	owned := make([]Band, len(bands))
	copy(owned, bands)
	return &BinaryStrategy{bands: owned}, nil
}

func (s *BinaryStrategy) Name() string { return "binary" }

// Bands returns a copy of the configured bands.
func (s *BinaryStrategy) Bands() []Band {
	out := make([]Band, len(s.bands))
	copy(out, s.bands)
	return out
}

// magnitude reports how far an answer leans. positive is true for the positive pole.
func magnitude(l Letter) (points int, positive bool) {
	switch l {
	case LetterA:
		return 2, true
	case LetterB:
		return 1, true
	case LetterC:
		return 1, false
	case LetterD:
		return 2, false
	case LetterE:
		return 0, false
	}
	return 0, false
}

// Score sums each band and picks the winning pole, positive on a tie.
func (s *BinaryStrategy) Score(answers Answers) Result {
	scores := make(Scores, len(s.bands)*2)
	var typ strings.Builder
	for _, b := range s.bands {
		pos, neg := 0, 0
		for q := b.Start; q <= b.End; q++ {
			l, ok := ParseLetter(answers[q])
			if !ok {
				continue
			}
			points, positive := magnitude(l)
			if positive {
				pos += points
			} else {
				neg += points
			}
		}
		scores[b.Positive] = pos
		scores[b.Negative] = neg
		if pos >= neg {
			typ.WriteString(b.Positive)
		} else {
			typ.WriteString(b.Negative)
		}
	}
	return Result{ResultType: typ.String(), Scores: scores}
}
