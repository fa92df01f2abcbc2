package strategy

import (
	"fmt"

	"github.com/linhao/stockscan/internal/marketdata"
)

// Verdict is one strategy's judgment for one symbol. Immutable after creation.
type Verdict struct {
	Symbol    string `json:"symbol"`
	Strategy  string `json:"strategy"`
	Triggered bool   `json:"triggered"`
	Detail    string `json:"detail,omitempty"`
}

// Strategy scores one validated series. Implementations must be pure:
// series in, verdict out, no shared state between calls.
type Strategy interface {
	Name() string
	Evaluate(series *marketdata.Series) (Verdict, error)
}

// Registry is a fixed, ordered set of strategies built at startup.
// ⭐ SSOT: 전략 등록은 여기서만
type Registry struct {
	ordered []Strategy
	byName  map[string]Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Strategy)}
}

// Register appends a strategy. Registration order is the verdict order in
// every report.
func (r *Registry) Register(s Strategy) error {
	name := s.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("strategy %s already registered", name)
	}
	r.byName[name] = s
	r.ordered = append(r.ordered, s)
	return nil
}

// Strategies returns the registered strategies in registration order.
func (r *Registry) Strategies() []Strategy {
	out := make([]Strategy, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// DefaultRegistry builds the standard strategy set in its canonical order.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// Registration cannot fail here: names are distinct constants.
	_ = r.Register(NewBreakout())
	_ = r.Register(NewKeepIncreasing())
	_ = r.Register(NewBacktraceMA250())
	return r
}
