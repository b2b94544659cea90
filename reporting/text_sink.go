package reporting

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-snapcheck/types"
)

const SummaryFileName = "summary.log"

// TextSummarySink writes a plain-text summary.log of the run into a directory,
// normally the workspace root so it sits next to the actual snapshots.
type TextSummarySink struct {
	baseDir string
	runID   string

	mu       sync.Mutex
	outcomes []types.Outcome
}

func NewTextSummarySink(baseDir, runID string) *TextSummarySink {
	return &TextSummarySink{baseDir: baseDir, runID: runID}
}

func (s *TextSummarySink) Consume(outcome types.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
	return nil
}

func (s *TextSummarySink) Complete(summary Summary) error {
	s.mu.Lock()
	outcomes := make([]types.Outcome, len(s.outcomes))
	copy(outcomes, s.outcomes)
	s.mu.Unlock()

	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].Case.Name < outcomes[j].Case.Name
	})

	var buf bytes.Buffer
	p := NewPlainPrinter()
	fmt.Fprintf(&buf, "Run ID: %s\n", s.runID)
	fmt.Fprintf(&buf, "Completed: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Status: %s\n", summary.Status())
	fmt.Fprintf(&buf, "%s\n\n", summary)

	for _, o := range outcomes {
		line := fmt.Sprintf("%-8s %s", o.Status(), o.Case.Name)
		if kind := FailureKind(o); kind != "" {
			line += " (" + kind + ")"
		}
		fmt.Fprintln(&buf, line)
	}

	for _, o := range outcomes {
		if !o.Status().IsFailure() {
			continue
		}
		fmt.Fprintf(&buf, "\n=== %s ===\n", o.Case.Script)
		writeFailureDetail(&buf, p, o)
	}

	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", s.baseDir, err)
	}
	summaryFile := filepath.Join(s.baseDir, SummaryFileName)
	if err := os.WriteFile(summaryFile, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	return nil
}
