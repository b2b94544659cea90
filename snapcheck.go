package snapcheck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-snapcheck/build"
	"github.com/ethereum-optimism/infra/op-snapcheck/catalog"
	"github.com/ethereum-optimism/infra/op-snapcheck/exitcodes"
	"github.com/ethereum-optimism/infra/op-snapcheck/flags"
	"github.com/ethereum-optimism/infra/op-snapcheck/metrics"
	"github.com/ethereum-optimism/infra/op-snapcheck/reporting"
	"github.com/ethereum-optimism/infra/op-snapcheck/runner"
	"github.com/ethereum-optimism/infra/op-snapcheck/service"
	"github.com/ethereum-optimism/infra/op-snapcheck/types"
	"github.com/ethereum-optimism/infra/op-snapcheck/workspace"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// ExecCaseCommand is the hidden subcommand an isolated worker process runs
const ExecCaseCommand = "exec-case"

// snapcheck implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &snapcheck{}

// snapcheck builds the tool under test, runs the snapshot suite once and
// reports the outcome.
type snapcheck struct {
	config  *Config
	version string
	runID   string
	log     log.Logger
	printer reporting.Printer
	service *service.Service
	summary *reporting.Summary

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*snapcheck, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Log == nil {
		config.Log = log.Root()
	}
	if config.Stdout == nil {
		config.Stdout = os.Stdout
	}
	if config.Stderr == nil {
		config.Stderr = os.Stderr
	}
	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}

	runID := uuid.New().String()
	logger := config.Log.New("run_id", runID)
	logger.Debug("Creating snapcheck with config",
		"repoRoot", config.RepoRoot,
		"suiteConfig", config.SuiteConfigFile,
		"suiteDir", config.Suite.SuiteDir,
		"workspace", config.Suite.Workspace,
		"tool", config.Suite.Tool,
		"isolation", config.Isolation,
		"parallelism", config.Parallelism)

	s := &snapcheck{
		config:           config,
		version:          version,
		runID:            runID,
		log:              logger,
		printer:          reporting.NewPrinter(config.Color, config.Stdout),
		shutdownCallback: shutdownCallback,
	}
	if config.Metrics.Enabled {
		s.service = service.New(logger)
	}
	return s, nil
}

// Start runs the suite once. Start implements the cliapp.Lifecycle interface.
func (s *snapcheck) Start(ctx context.Context) error {
	s.running.Store(true)
	if s.service != nil {
		s.service.Start(ctx, s.config.Metrics.ListenAddr, s.config.Metrics.ListenPort)
	}

	summary, err := s.run(ctx)
	if err != nil {
		s.log.Error("Runtime error running tests", "phase", RuntimeErrorPhase(err), "error", err)
		return err
	}
	s.summary = &summary

	if summary.ExitCode() != exitcodes.Success {
		s.log.Warn("Test run completed with failures", "failed", summary.Failed)
		return NewTestFailureError(summary.String())
	}

	s.log.Info("Tests completed, exiting")
	go func() {
		s.shutdownCallback(nil)
	}()
	return nil
}

// run executes the build, discovery, scheduling and reporting phases. Only
// failures before scheduling abort the run, tagged with their Phase;
// everything per-test is contained in the summary.
func (s *snapcheck) run(ctx context.Context) (reporting.Summary, error) {
	ctx, span := otel.Tracer("snapcheck").Start(ctx, "snapshot run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", s.runID))

	cfg := s.config
	if cfg.UpdateSnapshot {
		fmt.Fprintln(cfg.Stdout, s.printer.Sprint(reporting.StyleUpdated, "Updating snapshots..."))
	}

	root := cfg.Suite.Workspace
	if err := workspace.CheckRoot(root, cfg.Suite.SuiteDir, cfg.RepoRoot); err != nil {
		return reporting.Summary{}, s.fail(span, PhaseWorkspace, err)
	}

	if cfg.SkipBuild {
		s.log.Info("Skipping build phase")
	} else {
		start := time.Now()
		b := &build.Runner{
			Dir:    cfg.RepoRoot,
			Stdout: cfg.Stdout,
			Stderr: cfg.Stderr,
			Color:  s.printer.Colored(),
			Log:    s.log,
		}
		if err := b.Run(ctx, cfg.Suite.Build); err != nil {
			return reporting.Summary{}, s.fail(span, PhaseBuild, err)
		}
		metrics.RecordBuild(time.Since(start))
	}

	if err := workspace.PrepareRoot(root); err != nil {
		return reporting.Summary{}, s.fail(span, PhaseWorkspace, err)
	}

	cases, err := catalog.Discover(cfg.Suite.SuiteDir, catalog.Options{
		Only:      cfg.Only,
		Skip:      cfg.Skip,
		ScriptExt: cfg.Suite.ScriptExt,
	})
	if err != nil {
		return reporting.Summary{}, s.fail(span, PhaseDiscovery, err)
	}
	if len(cases) == 0 {
		s.log.Warn("No test cases found", "suiteDir", cfg.Suite.SuiteDir)
	}
	span.SetAttributes(attribute.Int("tests", len(cases)))

	worker, err := s.newWorker()
	if err != nil {
		return reporting.Summary{}, s.fail(span, PhaseWorker, err)
	}

	var ui runner.ProgressIndicator
	if cfg.ShowProgress {
		ui = runner.NewConsoleProgressIndicator(s.log, cfg.ProgressInterval)
	}
	scheduler := runner.NewScheduler(worker, cfg.Parallelism, ui, s.log)

	reporter := reporting.NewReporter(reporting.ReporterConfig{
		Out:     cfg.Stdout,
		ErrOut:  cfg.Stderr,
		Printer: s.printer,
		Verbose: cfg.Verbose,
		RunID:   s.runID,
		Sinks: []reporting.Sink{
			reporting.NewTextSummarySink(root, s.runID),
			&metricsSink{runID: s.runID},
		},
		Log: s.log,
	})
	summary := reporter.Report(scheduler.RunAll(ctx, cases))

	fmt.Fprintln(cfg.Stdout, reporting.SummaryTable(summary, s.printer.Colored()))
	fmt.Fprintln(cfg.Stdout, summary.String())

	span.SetAttributes(attribute.String("status", string(summary.Status())))
	if summary.Status() == types.TestStatusFail {
		span.SetStatus(codes.Error, "tests failed")
	}
	s.log.Info("Test run completed", "status", summary.Status(), "passed", summary.Passed,
		"updated", summary.Updated, "failed", summary.Failed)
	return summary, nil
}

// fail tags a run-fatal error with its phase for the exit code, metrics and trace
func (s *snapcheck) fail(span trace.Span, phase Phase, err error) error {
	metrics.RecordErrorDetails(string(phase), err)
	span.SetStatus(codes.Error, string(phase)+" failed")
	span.RecordError(err)
	return NewRuntimeError(phase, err)
}

func (s *snapcheck) newWorker() (runner.Worker, error) {
	execCfg := s.config.ExecutorConfig()
	switch s.config.Isolation {
	case flags.IsolationNone:
		executor, err := runner.NewExecutor(execCfg, s.log)
		if err != nil {
			return nil, err
		}
		return &runner.InProcessWorker{Executor: executor, Update: s.config.UpdateSnapshot}, nil
	default:
		return runner.NewProcessWorker([]string{ExecCaseCommand}, execCfg, s.config.UpdateSnapshot, s.log)
	}
}

// Stop implements the cliapp.Lifecycle interface.
func (s *snapcheck) Stop(ctx context.Context) error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)
	if s.service != nil {
		s.service.Shutdown()
	}
	s.log.Info("snapcheck stopped")
	return nil
}

// Stopped implements the cliapp.Lifecycle interface.
func (s *snapcheck) Stopped() bool {
	return !s.running.Load()
}

// Summary returns the result of the last completed run, if any
func (s *snapcheck) Summary() *reporting.Summary {
	return s.summary
}

type metricsSink struct {
	runID string
}

func (m *metricsSink) Consume(o types.Outcome) error {
	var duration time.Duration
	if o.Result != nil {
		duration = o.Result.Duration
	}
	metrics.RecordTest(m.runID, o.Case.Name, o.Status(), reporting.FailureKind(o), duration)
	return nil
}

func (m *metricsSink) Complete(summary reporting.Summary) error {
	metrics.RecordRun(m.runID, summary.Status(), summary.Passed, summary.Updated, summary.Failed, summary.Duration)
	return nil
}
