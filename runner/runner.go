// Package runner executes the acceptance cases in order against one service
// under test and aggregates their outcomes.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/ibs-acceptor/metrics"
	"github.com/ethereum-optimism/infra/ibs-acceptor/reporting"
	"github.com/ethereum-optimism/infra/ibs-acceptor/store"
	"github.com/ethereum-optimism/infra/ibs-acceptor/testcases"
	"github.com/ethereum-optimism/infra/ibs-acceptor/types"
)

// TestRunner runs the full case sequence once per call.
type TestRunner interface {
	Run(ctx context.Context) (*RunnerResult, error)
	// Snapshot returns the scorecard of the run in progress, or of the last run.
	Snapshot() types.Scorecard
}

// RunnerResult is the outcome of one run.
type RunnerResult struct {
	RunID     string
	Scorecard types.Scorecard
	// JSON is the scorecard serialized for output.
	JSON []byte
}

type runner struct {
	env     *testcases.Env
	cases   []testcases.TestCase
	context json.RawMessage
	log     log.Logger
	tracer  trace.Tracer
	current atomic.Pointer[reporting.Reporter]
}

// Config holds configuration for creating a new runner
type Config struct {
	Env *testcases.Env
	// Cases defaults to testcases.All().
	Cases []testcases.TestCase
	// Context is embedded verbatim in every scorecard.
	Context json.RawMessage
	Log     log.Logger
}

// NewTestRunner creates a new test runner instance
func NewTestRunner(cfg Config) (TestRunner, error) {
	if cfg.Env == nil {
		return nil, fmt.Errorf("environment is required")
	}
	if cfg.Env.API == nil {
		return nil, fmt.Errorf("api client is required")
	}
	if cfg.Env.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Env.Log == nil {
		cfg.Env.Log = cfg.Log
	}
	if cfg.Env.Gen == nil {
		cfg.Env.Gen = testcases.RandomGenerator{}
	}
	if len(cfg.Cases) == 0 {
		cfg.Cases = testcases.All()
	}

	cfg.Log.Debug("NewTestRunner()", "cases", len(cfg.Cases), "points", testcases.TotalPoints(cfg.Cases))

	return &runner{
		env:     cfg.Env,
		cases:   cfg.Cases,
		context: cfg.Context,
		log:     cfg.Log,
		tracer:  otel.Tracer("ibs-acceptor runner"),
	}, nil
}

func (r *runner) Snapshot() types.Scorecard {
	rep := r.current.Load()
	if rep == nil {
		return types.Scorecard{Status: types.TestStatusPending}
	}
	return rep.Snapshot()
}

// Run clears the store, runs every case in order, clears the store again and
// returns the final scorecard. Case failures never abort the run.
func (r *runner) Run(ctx context.Context) (*RunnerResult, error) {
	runID := uuid.New().String()
	lgr := r.log.New("run_id", runID)

	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("run %s", runID))
	defer span.End()

	rep := reporting.NewReporter(runID, r.context, lgr)
	r.current.Store(rep)

	lgr.Info("Starting acceptance run", "cases", len(r.cases))
	r.reset(ctx, lgr, "before")

	rc := testcases.NewRunContext()
	for _, tc := range r.cases {
		r.runCase(ctx, lgr, rep, rc, tc)
	}

	r.reset(ctx, lgr, "after")

	sc := rep.Finalize()
	out, err := reporting.MarshalScorecard(sc)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to serialize scorecard: %w", err)
	}

	span.SetAttributes(
		attribute.Int("points.awarded", sc.TotalPointsAwarded),
		attribute.Int("points.available", sc.TotalPointsAvailable),
	)
	lgr.Info("Acceptance run complete",
		"status", sc.Status,
		"awarded", sc.TotalPointsAwarded,
		"available", sc.TotalPointsAvailable,
		"passed", sc.Stats.Passed,
		"failed", sc.Stats.Failed,
		"duration", sc.Duration())

	return &RunnerResult{RunID: runID, Scorecard: sc, JSON: out}, nil
}

// reset empties every table. Failures are logged and counted, never returned.
func (r *runner) reset(ctx context.Context, lgr log.Logger, phase string) {
	err := func() (err error) {
		conn, err := r.env.Store.Connect(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := conn.Close(ctx); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return conn.TruncateAll(ctx)
	}()
	metrics.RecordReset(err)
	if err != nil {
		lgr.Warn("Failed to reset store", "phase", phase, "tables", store.Tables, "err", err)
		return
	}
	lgr.Debug("Reset store", "phase", phase)
}

// runCase applies the shared protocol to one case: register, check dependencies,
// run under a panic supervisor, record.
func (r *runner) runCase(ctx context.Context, lgr log.Logger, rep *reporting.Reporter, rc *testcases.RunContext, tc testcases.TestCase) {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("case %s", tc.ID))
	defer span.End()

	lgr = lgr.New("case", tc.ID)
	start := time.Now()
	rep.UpdatePreResultPoints(tc.Description, tc.Expected, tc.Points)

	var (
		res     testcases.Result
		actual  string
		err     error
		skipped bool
	)
	var pc panics.Catcher
	pc.Try(func() {
		if tc.Requires != nil {
			if ok, reason := tc.Requires(rc); !ok {
				skipped = true
				res, actual = testcases.Result{}, reason
				return
			}
		}
		res, err = tc.Run(ctx, r.env, rc)
	})
	if recovered := pc.Recovered(); recovered != nil {
		err = recovered.AsError()
		res = testcases.Result{}
	}

	switch {
	case skipped:
		lgr.Info("Dependency not met", "actual", actual)
	case err != nil:
		actual = tc.Failure
		lgr.Error("Case faulted", "err", err)
		metrics.RecordErrorDetails(tc.ID, err)
		span.RecordError(err)
	default:
		actual = tc.ActualFor(res)
	}

	awarded := types.Award(res.Passed, tc.Points)
	rep.UpdateResult(res.Passed, tc.Expected, actual, tc.Description, types.NotApplicable, tc.Points, awarded)

	status := types.TestStatusFail
	if res.Passed {
		status = types.TestStatusPass
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, actual)
	}
	duration := time.Since(start)
	metrics.RecordCase(tc.ID, status, awarded, duration)
	span.SetAttributes(
		attribute.String("case.result", string(status)),
		attribute.Int("case.points", awarded),
	)
	lgr.Info("Case finished", append([]any{"result", status, "points", awarded, "actual", actual, "duration", duration}, rc.LogValues()...)...)
}
