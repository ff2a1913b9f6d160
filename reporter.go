package acceptor

import (
	"github.com/ethereum-optimism/infra/ibs-acceptor/metrics"
	"github.com/ethereum-optimism/infra/ibs-acceptor/runner"
)

// MetricsReporter is responsible for reporting metrics from test results.
type MetricsReporter interface {
	ReportResults(result *runner.RunnerResult)
}

// DefaultMetricsReporter implements the MetricsReporter interface.
type DefaultMetricsReporter struct{}

// NewDefaultMetricsReporter creates a new DefaultMetricsReporter.
func NewDefaultMetricsReporter() *DefaultMetricsReporter {
	return &DefaultMetricsReporter{}
}

// ReportResults reports the scorecard totals to the metrics registry.
func (r *DefaultMetricsReporter) ReportResults(result *runner.RunnerResult) {
	sc := result.Scorecard
	metrics.RecordAcceptance(
		result.RunID,
		string(sc.Status),
		sc.Stats.Total,
		sc.Stats.Passed,
		sc.Stats.Failed,
		sc.TotalPointsAwarded,
		sc.TotalPointsAvailable,
		sc.Duration(),
	)
}
