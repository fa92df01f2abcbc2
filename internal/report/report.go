package report

import (
	"time"

	"github.com/linhao/stockscan/internal/batch"
	"github.com/linhao/stockscan/internal/strategy"
)

// Result is one symbol's outcome inside a report.
type Result struct {
	Symbol   string             `json:"symbol"`
	Status   string             `json:"status"`
	Degraded bool               `json:"degraded,omitempty"`
	Failure  string             `json:"failure,omitempty"`
	Verdicts []strategy.Verdict `json:"verdicts,omitempty"`
}

// Report is the final scan report for one batch run.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Universe  int `json:"universe"`
	Done      int `json:"done"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
	Triggered int `json:"triggered"`
	Degraded  int `json:"degraded"`

	// Results keeps universe order, triggered or not.
	Results []Result `json:"results"`
}

// Build summarizes a finished (or interrupted) run into a report.
func Build(run *batch.Run) *Report {
	r := &Report{
		RunID:       run.ID,
		GeneratedAt: time.Now(),
		Universe:    len(run.Symbols),
		Results:     make([]Result, 0, len(run.Symbols)),
	}

	for _, symbol := range run.Symbols {
		result := Result{
			Symbol:   symbol,
			Status:   string(run.Status[symbol]),
			Degraded: run.Degraded[symbol],
			Failure:  run.Failures[symbol],
			Verdicts: run.Verdicts[symbol],
		}
		r.Results = append(r.Results, result)

		switch run.Status[symbol] {
		case batch.StatusDone:
			r.Done++
		case batch.StatusFailed:
			r.Failed++
		default:
			r.Pending++
		}
		if result.Degraded {
			r.Degraded++
		}
		for _, v := range result.Verdicts {
			if v.Triggered {
				r.Triggered++
				break
			}
		}
	}

	return r
}

// TriggeredSymbols lists the symbols with at least one triggered strategy,
// in universe order.
func (r *Report) TriggeredSymbols() []string {
	out := make([]string, 0)
	for _, res := range r.Results {
		for _, v := range res.Verdicts {
			if v.Triggered {
				out = append(out, res.Symbol)
				break
			}
		}
	}
	return out
}
