package scoring

// Answers maps a question number to the raw answer stored for it.
type Answers map[int]string

// Scores is the per-dimension payload persisted with a completed attempt.
// Field names are part of the stored result contract.
type Scores map[string]interface{}

// Result is the outcome of scoring one attempt.
type Result struct {
	ResultType string `json:"resultType"`
	Scores     Scores `json:"scores"`
}

// Strategy turns a complete answer map into a result. Implementations must be
// pure: the same answers always produce the same result.
type Strategy interface {
	Name() string
	Score(answers Answers) Result
}

// CompletedResultType is the result type recorded for tests without a scoring model.
const CompletedResultType = "COMPLETED"

// CompletionOnlyStrategy marks a test as finished without computing dimensions.
type CompletionOnlyStrategy struct{}

func (CompletionOnlyStrategy) Name() string { return "completion" }

func (CompletionOnlyStrategy) Score(Answers) Result {
	return Result{ResultType: CompletedResultType, Scores: Scores{}}
}
