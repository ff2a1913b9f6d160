package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"

	acceptor "github.com/ethereum-optimism/infra/ibs-acceptor"
	"github.com/ethereum-optimism/infra/ibs-acceptor/exitcodes"
	"github.com/ethereum-optimism/infra/ibs-acceptor/flags"
	"github.com/ethereum-optimism/infra/ibs-acceptor/service"
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
	app.Name = "ibs-acceptor"
	app.Usage = "Inventory/Billing Service Acceptance Tester"
	app.ArgsUsage = "<{key:token}>"
	app.Description = "ibs-acceptor runs nine weighted checks against an inventory/billing service and prints a JSON scorecard"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = exitErrHandler
	return app
}

func exitErrHandler(c *cli.Context, err error) {
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		// Use the exit code from the ExitCoder
		cli.HandleExitCoder(exitErr)
	} else if err != nil {
		cli.HandleExitCoder(cli.Exit(err.Error(), exitCode(err)))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitcodes.Success
	case acceptor.IsTestFailureError(err):
		return exitcodes.TestFailure
	default:
		// Anything that prevented a scorecard from being judged
		return exitcodes.RuntimeErr
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	// stdout carries the scorecard
	log := oplog.NewLogger(os.Stderr, logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	// The token is the last positional argument
	var tokenArg string
	if n := ctx.Args().Len(); n > 0 {
		tokenArg = ctx.Args().Get(n - 1)
	}

	cfg, err := acceptor.NewConfig(ctx, log, tokenArg)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, acceptor.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	svc := service.New(cfg.Service, log)

	acc, err := acceptor.New(ctx.Context, cfg, Version, svc, closeApp)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, acceptor.NewRuntimeError(fmt.Errorf("failed to create acceptor: %w", err))
	}

	return acc, nil
}
