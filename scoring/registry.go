package scoring

import (
	"fmt"
	"sync"
)

// Registry selects the scoring strategy for a test by its slug. Tests without a
// registered strategy are scored with CompletionOnlyStrategy.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register binds a strategy to a test slug, replacing any earlier binding.
func (r *Registry) Register(slug string, s Strategy) error {
	if s == nil {
		return fmt.Errorf("nil strategy for test %q", slug)
	}
	if slug == "" {
		return fmt.Errorf("cannot register strategy %q without a test slug", s.Name())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[slug] = s
	return nil
}

// For returns the strategy registered for slug.
func (r *Registry) For(slug string) Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.strategies[slug]; ok {
		return s
	}
	return CompletionOnlyStrategy{}
}

// Within returns only the answers numbered 1..total. Out-of-range answers stay
// stored on the attempt but never reach a strategy.
func (a Answers) Within(total int) Answers {
	out := make(Answers, len(a))
	for q, v := range a {
		if q >= 1 && q <= total {
			out[q] = v
		}
	}
	return out
}

// Missing reports how many of the questions 1..total have no non-empty answer.
func (a Answers) Missing(total int) int {
	missing := 0
	for q := 1; q <= total; q++ {
		if a[q] == "" {
			missing++
		}
	}
	return missing
}
