package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAward(t *testing.T) {
	assert.Equal(t, 10, Award(true, 10))
	assert.Equal(t, 0, Award(false, 10))
	assert.Equal(t, 20, Award(true, 20))
	assert.Equal(t, 0, Award(false, 20))
}

func TestScorecardTally(t *testing.T) {
	tests := []struct {
		name      string
		outcomes  []Outcome
		status    TestStatus
		awarded   int
		available int
		stats     ResultStats
	}{
		{
			name:   "empty run fails",
			status: TestStatusFail,
		},
		{
			name: "all passed",
			outcomes: []Outcome{
				{Status: TestStatusPass, Passed: true, PointsAvailable: 10, PointsAwarded: 10},
				{Status: TestStatusPass, Passed: true, PointsAvailable: 20, PointsAwarded: 20},
			},
			status:    TestStatusPass,
			awarded:   30,
			available: 30,
			stats:     ResultStats{Total: 2, Passed: 2},
		},
		{
			name: "one failure fails the run",
			outcomes: []Outcome{
				{Status: TestStatusPass, Passed: true, PointsAvailable: 10, PointsAwarded: 10},
				{Status: TestStatusFail, PointsAvailable: 20},
			},
			status:    TestStatusFail,
			awarded:   10,
			available: 30,
			stats:     ResultStats{Total: 2, Passed: 1, Failed: 1},
		},
		{
			name: "pending without failures",
			outcomes: []Outcome{
				{Status: TestStatusPass, Passed: true, PointsAvailable: 10, PointsAwarded: 10},
				{Status: TestStatusPending, PointsAvailable: 10},
			},
			status:    TestStatusPending,
			awarded:   10,
			available: 20,
			stats:     ResultStats{Total: 2, Passed: 1, Pending: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &Scorecard{Outcomes: tt.outcomes}
			sc.Tally()
			assert.Equal(t, tt.status, sc.Status)
			assert.Equal(t, tt.awarded, sc.TotalPointsAwarded)
			assert.Equal(t, tt.available, sc.TotalPointsAvailable)
			assert.Equal(t, tt.stats, sc.Stats)
		})
	}
}

func TestScorecardDuration(t *testing.T) {
	start := time.Now()
	sc := &Scorecard{StartTime: start}
	assert.Zero(t, sc.Duration())

	sc.EndTime = start.Add(1500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, sc.Duration())
}
