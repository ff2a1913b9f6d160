// Package types contains shared types used across the ibs-acceptor harness
package types

import (
	"encoding/json"
	"time"
)

// TestStatus represents the possible states of a test case
type TestStatus string

const (
	TestStatusPass    TestStatus = "pass"
	TestStatusFail    TestStatus = "fail"
	TestStatusPending TestStatus = "pending" // registered via a pre-result, no result yet
)

// NotApplicable is the value of Outcome.Extra when a case has nothing more to say.
const NotApplicable = "N/A"

// Outcome is the recorded result of a single test case.
type Outcome struct {
	Description     string     `json:"description"`
	Expected        string     `json:"expected"`
	Actual          string     `json:"actual"`
	Passed          bool       `json:"passed"`
	Extra           string     `json:"extra"`
	PointsAvailable int        `json:"points_available"`
	PointsAwarded   int        `json:"points_awarded"`
	Status          TestStatus `json:"status"`
	DurationMS      int64      `json:"duration_ms"`
}

// Award returns the points a case earns: all of them when it passed, none otherwise.
func Award(passed bool, pointsAvailable int) int {
	if passed {
		return pointsAvailable
	}
	return 0
}

// ResultStats tracks case counts for a run
type ResultStats struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Pending int `json:"pending,omitempty"`
}

// Scorecard is the aggregate of all outcomes of one run.
type Scorecard struct {
	RunID                string          `json:"run_id,omitempty"`
	Context              json.RawMessage `json:"context,omitempty"`
	Status               TestStatus      `json:"status"`
	TotalPointsAwarded   int             `json:"total_points_awarded"`
	TotalPointsAvailable int             `json:"total_points_available"`
	Stats                ResultStats     `json:"stats"`
	Outcomes             []Outcome       `json:"testcases"`
	StartTime            time.Time       `json:"start_time"`
	EndTime              time.Time       `json:"end_time,omitempty"`
}

// Tally recomputes the totals, counts and overall status from Outcomes.
func (s *Scorecard) Tally() {
	s.TotalPointsAwarded = 0
	s.TotalPointsAvailable = 0
	s.Stats = ResultStats{}
	for _, o := range s.Outcomes {
		s.TotalPointsAvailable += o.PointsAvailable
		s.TotalPointsAwarded += o.PointsAwarded
		s.Stats.Total++
		switch o.Status {
		case TestStatusPass:
			s.Stats.Passed++
		case TestStatusPending:
			s.Stats.Pending++
		default:
			s.Stats.Failed++
		}
	}
	s.Status = TestStatusPass
	if s.Stats.Failed > 0 || s.Stats.Total == 0 {
		s.Status = TestStatusFail
	} else if s.Stats.Pending > 0 {
		s.Status = TestStatusPending
	}
}

// Duration returns the wall-clock duration of the run, or zero while it is still running.
func (s *Scorecard) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}
