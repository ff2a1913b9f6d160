package acceptor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/ethereum-optimism/infra/ibs-acceptor/apiclient"
	"github.com/ethereum-optimism/infra/ibs-acceptor/metrics"
	"github.com/ethereum-optimism/infra/ibs-acceptor/reporting"
	"github.com/ethereum-optimism/infra/ibs-acceptor/runner"
	"github.com/ethereum-optimism/infra/ibs-acceptor/service"
	"github.com/ethereum-optimism/infra/ibs-acceptor/store"
	"github.com/ethereum-optimism/infra/ibs-acceptor/testcases"
)

// acceptor implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &acceptor{}

// SideService runs alongside the acceptance run, exposing its live scorecard.
type SideService interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	SetSource(src service.ScorecardSource)
}

// acceptor runs the acceptance cases once against an inventory/billing service.
type acceptor struct {
	ctx      context.Context
	config   *Config
	version  string
	runner   runner.TestRunner
	reporter MetricsReporter
	svc      SideService
	result   *runner.RunnerResult

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, svc SideService, shutdownCallback func(error)) (*acceptor, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating acceptor with config",
		"productsURL", config.ProductsURL,
		"billingURL", config.BillingURL,
		"requestTimeout", config.RequestTimeout,
		"requestsPerSecond", config.RequestsPerSecond,
		"failUnder", config.FailUnder)

	api, err := apiclient.New(apiclient.Config{
		ProductsURL:       config.ProductsURL,
		BillingURL:        config.BillingURL,
		Timeout:           config.RequestTimeout,
		RequestsPerSecond: config.RequestsPerSecond,
		Log:               config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	dialer := config.Store
	if dialer == nil {
		dialer = store.NewPGXDialer(config.DatabaseURL, config.RequestTimeout)
	}

	runContext, err := config.Token.JSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode run context: %w", err)
	}

	testRunner, err := runner.NewTestRunner(runner.Config{
		Env: &testcases.Env{
			API:   api,
			Store: dialer,
			Gen:   testcases.RandomGenerator{},
			Log:   config.Log,
		},
		Context: runContext,
		Log:     config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create test runner: %w", err)
	}
	config.Log.Info("acceptor.New: created api client and test runner")

	if config.Stdout == nil {
		config.Stdout = os.Stdout
	}
	if config.Stderr == nil {
		config.Stderr = os.Stderr
	}

	return &acceptor{
		ctx:              ctx,
		config:           config,
		version:          version,
		runner:           testRunner,
		reporter:         NewDefaultMetricsReporter(),
		svc:              svc,
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the acceptance cases once, prints the scorecard and asks the app to shut down.
// Start implements the cliapp.Lifecycle interface.
func (a *acceptor) Start(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.config.Log.Error("Runtime error occurred", "error", r)
			err = NewRuntimeError(fmt.Errorf("panic: %v", r))
		}
	}()

	a.ctx = ctx
	a.running.Store(true)
	a.config.Log.Info("Starting ibs-acceptor", "version", a.version)

	if a.svc != nil {
		a.svc.SetSource(a.runner)
		if err := a.svc.Start(ctx); err != nil {
			return NewRuntimeError(err)
		}
	}

	if err := a.runTests(ctx); err != nil {
		a.config.Log.Error("Runtime error running tests", "error", err)
		return err
	}

	sc := a.result.Scorecard
	if a.config.FailUnder > 0 && sc.TotalPointsAwarded < a.config.FailUnder {
		a.config.Log.Warn("Run scored below threshold, returning exit code 1",
			"awarded", sc.TotalPointsAwarded, "failUnder", a.config.FailUnder)
		return NewTestFailureError(fmt.Sprintf("%d/%d points awarded, below --fail-under %d",
			sc.TotalPointsAwarded, sc.TotalPointsAvailable, a.config.FailUnder))
	}

	a.config.Log.Info("Tests completed, exiting")
	if a.shutdownCallback != nil {
		go func() {
			a.shutdownCallback(nil)
		}()
	}
	return nil
}

// runTests runs all cases and publishes the scorecard
func (a *acceptor) runTests(ctx context.Context) error {
	a.config.Log.Info("Running all tests...")
	result, err := a.runner.Run(ctx)
	if err != nil {
		return NewRuntimeError(err)
	}
	a.result = result

	if _, err := fmt.Fprintln(a.config.Stdout, string(result.JSON)); err != nil {
		return NewRuntimeError(fmt.Errorf("failed to write scorecard: %w", err))
	}

	if a.config.ResultsTable {
		if err := reporting.RenderTable(a.config.Stderr, result.Scorecard); err != nil {
			a.config.Log.Warn("Failed to render results table", "error", err)
		}
	}

	if a.config.ReportDir != "" {
		sinks := []reporting.Sink{
			reporting.NewJSONFileSink(a.config.ReportDir),
			reporting.NewTextSummarySink(a.config.ReportDir),
		}
		if err := reporting.CompleteAll(sinks, result.Scorecard); err != nil {
			a.config.Log.Error("Failed to write reports", "dir", a.config.ReportDir, "error", err)
			metrics.RecordErrorDetails("report", err)
		} else {
			a.config.Log.Info("Wrote reports", "dir", reporting.RunDir(a.config.ReportDir, result.RunID))
		}
	}

	a.reporter.ReportResults(result)

	if a.config.PushgatewayURL != "" {
		if err := metrics.Push(ctx, a.config.PushgatewayURL); err != nil {
			a.config.Log.Warn("Failed to push metrics", "url", a.config.PushgatewayURL, "error", err)
		} else {
			a.config.Log.Debug("Pushed metrics", "url", a.config.PushgatewayURL)
		}
	}

	a.config.Log.Info("Test run completed", "run_id", result.RunID, "status", result.Scorecard.Status)
	return nil
}

// Stop stops the ibs-acceptor service.
// Stop implements the cliapp.Lifecycle interface.
func (a *acceptor) Stop(ctx context.Context) error {
	a.config.Log.Info("Stopping ibs-acceptor")

	if !a.running.Load() {
		a.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	a.running.Store(false)

	if a.svc != nil {
		if err := a.svc.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop service: %w", err)
		}
	}

	a.config.Log.Info("ibs-acceptor stopped successfully")
	return nil
}

// Stopped returns true if the ibs-acceptor service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (a *acceptor) Stopped() bool {
	return !a.running.Load()
}
