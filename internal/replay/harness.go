package replay

// #region imports
import (
	"context"
	"fmt"
	"log"

	"github.com/ebrodeur/recoupement/internal/pipeline"
	"github.com/ebrodeur/recoupement/internal/store"
)

// #endregion imports

// #region harness-types

// StepResult records the outcome of replaying one fixture document.
type StepResult struct {
	Index      int
	Hash       string
	Result     pipeline.Result
	Err        error
	Mismatches []string
}

// Summary aggregates a full replay run.
type Summary struct {
	Total          int
	ThreatsCreated int
	ThreatsUpdated int
	Requests       int
	Errors         int
	Mismatches     int
}

// Harness replays fixture documents through the pipeline in order,
// comparing outcomes against the fixture's expectations when present.
type Harness struct {
	orch *pipeline.Orchestrator
	docs store.DocumentStore
}

// #endregion harness-types

// #region harness

func NewHarness(orch *pipeline.Orchestrator, docs store.DocumentStore) *Harness {
	return &Harness{orch: orch, docs: docs}
}

// Run replays every document in the fixture sequentially. Per-document
// failures are recorded and do not stop the run; only a context error aborts.
func (h *Harness) Run(ctx context.Context, f *Fixture) (Summary, []StepResult, error) {
	expected := make(map[int]ExpectedResult, len(f.ExpectedResults))
	for _, e := range f.ExpectedResults {
		expected[e.Index] = e
	}

	summary := Summary{Total: len(f.Documents)}
	steps := make([]StepResult, 0, len(f.Documents))

	for i := range f.Documents {
		if err := ctx.Err(); err != nil {
			return summary, steps, err
		}

		doc := f.Documents[i].ToDocument()
		step := StepResult{Index: i, Hash: doc.ContentHash}

		if err := h.docs.InsertDocument(ctx, doc); err != nil {
			step.Err = fmt.Errorf("insert document %d: %w", i, err)
			summary.Errors++
			steps = append(steps, step)
			continue
		}

		res, err := h.orch.Reevaluate(ctx, doc)
		step.Result = res
		if err != nil {
			step.Err = fmt.Errorf("reevaluate document %d: %w", i, err)
			summary.Errors++
			steps = append(steps, step)
			continue
		}

		summary.ThreatsCreated += len(res.ThreatsCreated)
		summary.ThreatsUpdated += len(res.ThreatsUpdated)
		summary.Requests += len(res.CollectionRequests)

		if exp, ok := expected[i]; ok {
			step.Mismatches = compare(exp, res)
			if len(step.Mismatches) > 0 {
				summary.Mismatches++
				log.Printf("[REPLAY] document %d diverged: %v", i, step.Mismatches)
			}
		}
		steps = append(steps, step)
	}

	return summary, steps, nil
}

func compare(exp ExpectedResult, res pipeline.Result) []string {
	var diffs []string
	if exp.Isolated != res.Isolated {
		diffs = append(diffs, fmt.Sprintf("isolated: want %v got %v", exp.Isolated, res.Isolated))
	}
	if exp.ClusterSize != res.ClusterSize {
		diffs = append(diffs, fmt.Sprintf("cluster_size: want %d got %d", exp.ClusterSize, res.ClusterSize))
	}
	if exp.ThreatsCreated != len(res.ThreatsCreated) {
		diffs = append(diffs, fmt.Sprintf("threats_created: want %d got %d", exp.ThreatsCreated, len(res.ThreatsCreated)))
	}
	if exp.ThreatsUpdated != len(res.ThreatsUpdated) {
		diffs = append(diffs, fmt.Sprintf("threats_updated: want %d got %d", exp.ThreatsUpdated, len(res.ThreatsUpdated)))
	}
	if exp.Requests != len(res.CollectionRequests) {
		diffs = append(diffs, fmt.Sprintf("requests: want %d got %d", exp.Requests, len(res.CollectionRequests)))
	}
	return diffs
}

// #endregion harness
