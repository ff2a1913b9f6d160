// Package reporting collects case outcomes into a scorecard and renders it.
package reporting

import (
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/ibs-acceptor/types"
)

// ActualDidNotComplete is recorded for cases that were registered but never reported a result.
const ActualDidNotComplete = "test case did not complete"

// Reporter accumulates outcomes in registration order. It is safe for concurrent use
// so that a status server can read snapshots while a run is in progress.
type Reporter struct {
	mu        sync.Mutex
	log       log.Logger
	now       func() time.Time
	scorecard types.Scorecard
	index     map[string]int
	started   map[string]time.Time
}

func NewReporter(runID string, runContext json.RawMessage, lgr log.Logger) *Reporter {
	r := &Reporter{
		log:     lgr,
		now:     time.Now,
		index:   make(map[string]int),
		started: make(map[string]time.Time),
	}
	r.scorecard = types.Scorecard{
		RunID:     runID,
		Context:   runContext,
		Status:    types.TestStatusPending,
		StartTime: r.now(),
	}
	return r
}

// UpdatePreResult registers a case before it runs.
func (r *Reporter) UpdatePreResult(description, expected string) {
	r.UpdatePreResultPoints(description, expected, 0)
}

// UpdatePreResultPoints registers a case before it runs, along with the points it is worth.
func (r *Reporter) UpdatePreResultPoints(description, expected string, pointsAvailable int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[description]; ok {
		r.log.Warn("Case registered twice, keeping the first registration", "description", description, "status", r.scorecard.Outcomes[i].Status)
		return
	}
	r.index[description] = len(r.scorecard.Outcomes)
	r.started[description] = r.now()
	r.scorecard.Outcomes = append(r.scorecard.Outcomes, types.Outcome{
		Description:     description,
		Expected:        expected,
		Extra:           types.NotApplicable,
		PointsAvailable: pointsAvailable,
		Status:          types.TestStatusPending,
	})
}

// UpdateResult records the outcome of a case. Awarded points are forced to
// pointsAvailable for a pass and to zero otherwise.
func (r *Reporter) UpdateResult(passed bool, expected, actual, description, extra string, pointsAvailable, pointsAwarded int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	awarded := types.Award(passed, pointsAvailable)
	if awarded != pointsAwarded {
		r.log.Warn("Correcting awarded points", "description", description, "passed", passed, "reported", pointsAwarded, "awarded", awarded)
	}
	status := types.TestStatusFail
	if passed {
		status = types.TestStatusPass
	}
	if extra == "" {
		extra = types.NotApplicable
	}

	outcome := types.Outcome{
		Description:     description,
		Expected:        expected,
		Actual:          actual,
		Passed:          passed,
		Extra:           extra,
		PointsAvailable: pointsAvailable,
		PointsAwarded:   awarded,
		Status:          status,
	}

	i, ok := r.index[description]
	if !ok {
		r.index[description] = len(r.scorecard.Outcomes)
		r.scorecard.Outcomes = append(r.scorecard.Outcomes, outcome)
		return
	}
	if prev := r.scorecard.Outcomes[i]; prev.Status != types.TestStatusPending {
		r.log.Error("Ignoring second result for case", "description", description, "status", prev.Status)
		return
	}
	if start, ok := r.started[description]; ok {
		outcome.DurationMS = r.now().Sub(start).Milliseconds()
	}
	r.scorecard.Outcomes[i] = outcome
}

// Snapshot returns a tallied copy of the scorecard as it stands.
func (r *Reporter) Snapshot() types.Scorecard {
	r.mu.Lock()
	defer r.mu.Unlock()

	sc := r.scorecard
	sc.Outcomes = slices.Clone(r.scorecard.Outcomes)
	sc.Tally()
	return sc
}

// Finalize closes the run: cases still pending are failed, the end time is set
// and the tallied scorecard is returned. Calling it again returns the same scorecard.
func (r *Reporter) Finalize() types.Scorecard {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, o := range r.scorecard.Outcomes {
		if o.Status != types.TestStatusPending {
			continue
		}
		r.log.Warn("Case did not complete", "description", o.Description)
		o.Status = types.TestStatusFail
		o.Actual = ActualDidNotComplete
		o.Passed = false
		o.PointsAwarded = 0
		r.scorecard.Outcomes[i] = o
	}
	if r.scorecard.EndTime.IsZero() {
		r.scorecard.EndTime = r.now()
	}
	r.scorecard.Tally()

	sc := r.scorecard
	sc.Outcomes = slices.Clone(r.scorecard.Outcomes)
	return sc
}

// ResultFinal finalizes the run and returns the scorecard as JSON indented with four spaces.
func (r *Reporter) ResultFinal() ([]byte, error) {
	return MarshalScorecard(r.Finalize())
}

func MarshalScorecard(sc types.Scorecard) ([]byte, error) {
	return json.MarshalIndent(sc, "", "    ")
}
