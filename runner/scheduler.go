package runner

import (
	"context"
	"runtime"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/ethereum-optimism/infra/op-snapcheck/types"
)

// DefaultConcurrency is the worker count used when none is configured
func DefaultConcurrency() int {
	return runtime.NumCPU()
}

// Scheduler runs test cases through a Worker on a bounded pool and streams
// each terminal Outcome as soon as it is known.
type Scheduler struct {
	worker      Worker
	concurrency int
	log         log.Logger
	ui          ProgressIndicator
}

// NewScheduler creates a scheduler. A non-positive concurrency selects
// DefaultConcurrency; a nil ui disables progress reporting.
func NewScheduler(worker Worker, concurrency int, ui ProgressIndicator, logger log.Logger) *Scheduler {
	if worker == nil {
		panic("worker cannot be nil")
	}
	if logger == nil {
		logger = log.Root()
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency()
	}
	if concurrency > 64 {
		logger.Warn("Very high concurrency requested", "concurrency", concurrency,
			"recommendation", "Each worker spawns privileged processes; consider a lower value")
	}
	if ui == nil {
		ui = NewNoOpProgressIndicator()
	}
	return &Scheduler{
		worker:      worker,
		concurrency: concurrency,
		log:         logger.New("component", "scheduler"),
		ui:          ui,
	}
}

// Concurrency returns the maximum number of cases run at once
func (s *Scheduler) Concurrency() int {
	return s.concurrency
}

// RunAll submits every case and returns a channel yielding exactly one
// Outcome per case, in completion order. The channel is closed after the
// last outcome. A failing or panicking case never affects its siblings and
// nothing stops early.
func (s *Scheduler) RunAll(ctx context.Context, cases []types.TestCase) <-chan types.Outcome {
	// Sized so workers never block on a slow consumer
	out := make(chan types.Outcome, len(cases))

	go func() {
		defer close(out)
		start := time.Now()
		s.log.Info("Starting test execution", "totalTests", len(cases), "concurrency", s.concurrency)
		s.ui.Start(len(cases))

		p := pool.New().WithMaxGoroutines(s.concurrency)
		for _, tc := range cases {
			// Go blocks while all workers are busy
			p.Go(func() {
				out <- s.runOne(ctx, tc)
			})
		}
		p.Wait()

		s.ui.Complete()
		s.log.Info("Test execution completed", "totalTests", len(cases), "duration", time.Since(start))
	}()

	return out
}

func (s *Scheduler) runOne(ctx context.Context, tc types.TestCase) types.Outcome {
	s.ui.StartTest(tc.Name)
	s.log.Debug("Worker processing test", "test", tc.Name)

	var (
		result *types.ExecutionResult
		err    error
	)
	if recovered := panics.Try(func() {
		result, err = s.worker.Run(ctx, tc)
	}); recovered != nil {
		s.log.Error("Worker panicked", "test", tc.Name, "panic", recovered.Value)
		result = nil
		err = &InfrastructureError{Case: tc.Name, Op: "worker panic", Err: recovered.AsError()}
	}

	if err == nil && result == nil {
		err = &InfrastructureError{Case: tc.Name, Op: "execute", Err: errNoResult}
	}

	outcome := types.Outcome{Case: tc, Result: result, Err: err}
	s.ui.UpdateTest(tc.Name, outcome.Status())
	s.log.Debug("Worker completed test", "test", tc.Name, "status", outcome.Status())
	return outcome
}

// Collect drains an outcome channel into a slice
func Collect(outcomes <-chan types.Outcome) []types.Outcome {
	var all []types.Outcome
	for o := range outcomes {
		all = append(all, o)
	}
	return all
}
