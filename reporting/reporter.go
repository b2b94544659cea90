package reporting

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-snapcheck/exitcodes"
	"github.com/ethereum-optimism/infra/op-snapcheck/runner"
	"github.com/ethereum-optimism/infra/op-snapcheck/types"
)

// Sink receives every outcome the reporter prints, plus the final summary
type Sink interface {
	Consume(outcome types.Outcome) error
	Complete(summary Summary) error
}

// Summary aggregates the outcomes of a run
type Summary struct {
	RunID    string
	Passed   int
	Updated  int
	Failed   int
	Duration time.Duration
	Outcomes []types.Outcome // Arrival order
}

func (s *Summary) add(o types.Outcome) {
	switch o.Status() {
	case types.TestStatusPass:
		s.Passed++
	case types.TestStatusUpdated:
		s.Updated++
	default:
		s.Failed++
	}
	s.Outcomes = append(s.Outcomes, o)
}

func (s Summary) Total() int {
	return s.Passed + s.Updated + s.Failed
}

// Status is failed if any outcome failed, updated if any snapshot was
// accepted, passed otherwise
func (s Summary) Status() types.TestStatus {
	switch {
	case s.Failed > 0:
		return types.TestStatusFail
	case s.Updated > 0:
		return types.TestStatusUpdated
	default:
		return types.TestStatusPass
	}
}

// ExitCode is non-zero iff at least one test failed
func (s Summary) ExitCode() int {
	if s.Failed > 0 {
		return exitcodes.TestFailure
	}
	return exitcodes.Success
}

// Failures returns the failed outcomes in arrival order
func (s Summary) Failures() []types.Outcome {
	var failed []types.Outcome
	for _, o := range s.Outcomes {
		if o.Status().IsFailure() {
			failed = append(failed, o)
		}
	}
	return failed
}

func (s Summary) String() string {
	return fmt.Sprintf("%d tests: %d passed, %d updated, %d failed (%s)",
		s.Total(), s.Passed, s.Updated, s.Failed, formatDuration(s.Duration))
}

type ReporterConfig struct {
	Out     io.Writer
	ErrOut  io.Writer
	Printer Printer
	Verbose bool // Print captured streams of passing tests
	RunID   string
	Sinks   []Sink
	Log     log.Logger
}

// Reporter prints outcomes as they arrive. It is the only writer to Out and
// ErrOut during a run.
type Reporter struct {
	out     io.Writer
	errOut  io.Writer
	printer Printer
	verbose bool
	runID   string
	sinks   []Sink
	log     log.Logger
}

func NewReporter(cfg ReporterConfig) *Reporter {
	r := &Reporter{
		out:     cfg.Out,
		errOut:  cfg.ErrOut,
		printer: cfg.Printer,
		verbose: cfg.Verbose,
		runID:   cfg.RunID,
		sinks:   cfg.Sinks,
		log:     cfg.Log,
	}
	if r.out == nil {
		r.out = io.Discard
	}
	if r.errOut == nil {
		r.errOut = io.Discard
	}
	if r.printer == nil {
		r.printer = NewPlainPrinter()
	}
	if r.log == nil {
		r.log = log.Root()
	}
	return r
}

// Report consumes outcomes until the channel closes. A failed outcome never
// stops processing of the ones after it.
func (r *Reporter) Report(outcomes <-chan types.Outcome) Summary {
	start := time.Now()
	summary := Summary{RunID: r.runID}

	for o := range outcomes {
		r.printOutcome(o)
		summary.add(o)
		for _, sink := range r.sinks {
			if err := sink.Consume(o); err != nil {
				r.log.Warn("Result sink failed to consume outcome", "test", o.Case.Name, "err", err)
			}
		}
	}
	summary.Duration = time.Since(start)

	for _, sink := range r.sinks {
		if err := sink.Complete(summary); err != nil {
			r.log.Error("Result sink failed to complete", "err", err)
		}
	}
	return summary
}

func (r *Reporter) printOutcome(o types.Outcome) {
	p := r.printer
	switch o.Status() {
	case types.TestStatusUpdated:
		fmt.Fprintf(r.out, "%s %s\n", p.Sprint(StyleUpdated, "Updated snapshot:"), o.Case.Script)
	case types.TestStatusPass:
		fmt.Fprintf(r.out, "%s %s\n", p.Sprint(StylePass, "Test passed:"), o.Case.Script)
	default:
		fmt.Fprintf(r.out, "%s\n", p.Sprint(StyleFail, "Test failed: "+o.Case.Script))
		writeFailureDetail(r.out, p, o)
		return
	}

	if o.Result == nil || (o.Status() != types.TestStatusUpdated && !r.verbose) {
		return
	}
	if o.Result.Stdout != "" {
		fmt.Fprint(r.out, withNewline(p.Sprint(StyleNone, o.Result.Stdout)))
	}
	if o.Result.Stderr != "" {
		fmt.Fprint(r.errOut, withNewline(p.Sprint(StyleNone, o.Result.Stderr)))
	}
}

// FailureKind labels why an outcome failed
func FailureKind(o types.Outcome) string {
	switch {
	case !o.Status().IsFailure():
		return ""
	case runner.IsSnapshotMismatch(o.Err):
		return "snapshot mismatch"
	default:
		return "infrastructure error"
	}
}

// writeFailureDetail prints everything needed to reproduce a failed case by hand
func writeFailureDetail(w io.Writer, p Printer, o types.Outcome) {
	var (
		mismatch *runner.SnapshotMismatchError
		infraErr *runner.InfrastructureError
	)
	switch {
	case errors.As(o.Err, &mismatch):
		fmt.Fprintf(w, "%s %s\n", p.Sprint(StyleLabel, "Snapshot mismatch:"), o.Case.Name)
		writeCommand(w, p, mismatch.Command)
		if mismatch.Diff != "" {
			fmt.Fprint(w, withNewline(p.Diff(mismatch.Diff)))
		}
		writeStreams(w, p, mismatch.Stdout, mismatch.Stderr)
	case errors.As(o.Err, &infraErr):
		fmt.Fprintf(w, "%s %s failed: %v\n", p.Sprint(StyleLabel, "Infrastructure error:"), infraErr.Op, infraErr.Err)
		writeCommand(w, p, infraErr.Command)
		writeStreams(w, p, infraErr.Stdout, infraErr.Stderr)
	case o.Err != nil:
		fmt.Fprintf(w, "%s %v\n", p.Sprint(StyleLabel, "Error:"), o.Err)
	default:
		fmt.Fprintf(w, "%s no result\n", p.Sprint(StyleLabel, "Error:"))
	}
}

func writeCommand(w io.Writer, p Printer, command string) {
	if command == "" {
		return
	}
	fmt.Fprintf(w, "%s\n", p.Sprint(StyleCommand, command))
}

func writeStreams(w io.Writer, p Printer, stdout, stderr string) {
	fmt.Fprintf(w, "%s\n%s", p.Sprint(StyleLabel, "stdout:"), withNewline(p.Sprint(StyleNone, stdout)))
	fmt.Fprintf(w, "%s\n%s", p.Sprint(StyleLabel, "stderr:"), withNewline(p.Sprint(StyleNone, stderr)))
}

func withNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}
