// Package testcases defines the nine checks run against the inventory/billing service,
// in the order they must run.
package testcases

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/ibs-acceptor/apiclient"
	"github.com/ethereum-optimism/infra/ibs-acceptor/store"
)

// ActualAPICallFailed is the actual text recorded when the service could not be
// reached or answered with a non-2xx status.
const ActualAPICallFailed = "API call failed"

// DependencyFailed is the actual text for a case skipped because an earlier
// creation did not succeed.
func DependencyFailed(entity string) string {
	return fmt.Sprintf("%s creation failed! dependent on %s creation", entity, entity)
}

// Env holds the collaborators every case talks to.
type Env struct {
	API   apiclient.API
	Store store.Dialer
	Gen   Generator
	Log   log.Logger
}

// Result is what a case body reports. A passing result always records the
// expected text as actual; a failing result with an empty Actual records the
// case's generic failure text.
type Result struct {
	Passed bool
	Actual string
}

var passed = Result{Passed: true}

func failed(actual string) Result {
	return Result{Actual: actual}
}

// TestCase is one weighted check.
type TestCase struct {
	ID          string
	Description string
	Expected    string
	// Failure is the generic actual text for a failed verification or an unexpected fault.
	Failure string
	Points  int
	// Requires reports whether the results of earlier cases allow this case to run.
	// When it does not, the returned text is recorded as actual and no call is made.
	Requires func(rc *RunContext) (bool, string)
	// Run performs the calls and the verification. A returned error is an
	// unexpected fault and fails the case with the generic failure text.
	Run func(ctx context.Context, env *Env, rc *RunContext) (Result, error)
}

// ActualFor returns the actual text to record for r.
func (tc TestCase) ActualFor(r Result) string {
	if r.Passed {
		return tc.Expected
	}
	if r.Actual == "" {
		return tc.Failure
	}
	return r.Actual
}

// withConn dials a fresh store connection, runs fn and always closes it.
func withConn(ctx context.Context, d store.Dialer, fn func(store.Conn) error) (err error) {
	conn, err := d.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(ctx); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close db connection: %w", cerr)
		}
	}()
	return fn(conn)
}

func recordByID(ctx context.Context, d store.Dialer, table string, id int64) (*store.Record, error) {
	var rec *store.Record
	err := withConn(ctx, d, func(conn store.Conn) error {
		var err error
		rec, err = conn.RecordByID(ctx, table, id)
		return err
	})
	return rec, err
}

// callFailed separates failed API calls from unexpected faults such as an
// undecodable 2xx body.
func callFailed(env *Env, tc string, err error) (Result, error) {
	if apiclient.IsCallFailure(err) {
		env.Log.Info("API call failed", "case", tc, "err", err)
		return failed(ActualAPICallFailed), nil
	}
	return Result{}, err
}

// remember records a run-context assignment, logging rather than failing when it is rejected.
func remember(env *Env, tc string, err error) {
	if err != nil {
		env.Log.Error("Rejected run context update", "case", tc, "err", err)
	}
}
