package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	snapcheck "github.com/ethereum-optimism/infra/op-snapcheck"
	"github.com/ethereum-optimism/infra/op-snapcheck/exitcodes"
	"github.com/ethereum-optimism/infra/op-snapcheck/flags"
	"github.com/ethereum-optimism/infra/op-snapcheck/runner"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := newApp()

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-snapcheck"
	app.Usage = "Snapshot test harness for command-line tracing tools"
	app.Description = "op-snapcheck builds a tool, runs every script in a snapshot suite under it and compares the recorded output with the expected snapshots"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.Commands = []*cli.Command{
		{
			Name:   snapcheck.ExecCaseCommand,
			Usage:  "Run a single test case read from stdin (used by isolated workers)",
			Hidden: true,
			Action: execCase,
		},
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		if err == nil {
			return
		}
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
			return
		}
		cli.HandleExitCoder(cli.Exit(err.Error(), exitCode(err)))
	}
	return app
}

// exitCode maps typed errors onto process exit codes
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitcodes.Success
	case snapcheck.IsRuntimeError(err):
		return exitcodes.RuntimeErr
	case snapcheck.IsTestFailureError(err):
		return exitcodes.TestFailure
	default:
		// Unclassified errors come from flag parsing or setup
		return exitcodes.RuntimeErr
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := snapcheck.NewConfig(ctx, log)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, snapcheck.NewRuntimeError(snapcheck.PhaseConfig, fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	svc, err := snapcheck.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		return nil, snapcheck.NewRuntimeError(snapcheck.PhaseConfig, fmt.Errorf("failed to create snapcheck: %w", err))
	}
	return svc, nil
}

// execCase is the worker side of process isolation. Stdout carries the
// response, so logs go to stderr.
func execCase(c *cli.Context) error {
	logger := oplog.NewLogger(os.Stderr, oplog.ReadCLIConfig(c))
	return runner.ServeCase(c.Context, os.Stdin, os.Stdout, logger)
}
