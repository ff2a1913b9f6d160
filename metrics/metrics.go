package metrics

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/ibs-acceptor/types"
)

const (
	MetricsNamespace = "ibs_acceptor"
	PushJobName      = "ibs_acceptor"
)

var (
	Debug                bool = true
	validResults              = []types.TestStatus{types.TestStatusPass, types.TestStatusFail}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	// Registry holds every harness metric; it is what the metrics server exposes
	// and what gets pushed to a Pushgateway.
	Registry = opmetrics.NewRegistry()
	factory  = promauto.With(Registry)

	errorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	caseResultsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "case_results_total",
		Help:      "Count of test case results",
	}, []string{
		"case",
		"result",
	})

	casePointsAwarded = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "case_points_awarded",
		Help:      "Points awarded to a test case in the last run",
	}, []string{
		"case",
	})

	caseDuration = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "case_duration_seconds",
		Help:      "Duration of a test case in the last run",
	}, []string{
		"case",
	})

	resetsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "store_resets_total",
		Help:      "Count of store resets",
	}, []string{
		"result",
	})

	acceptanceResults = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "acceptance_results",
		Help:      "Result of acceptance runs",
	}, []string{
		"run_id",
		"result",
	})

	acceptanceTestTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "acceptance_test_total",
		Help:      "Total number of test cases run",
	}, []string{
		"run_id",
	})

	acceptanceTestPassed = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "acceptance_test_passed",
		Help:      "Number of passed test cases",
	}, []string{
		"run_id",
	})

	acceptanceTestFailed = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "acceptance_test_failed",
		Help:      "Number of failed test cases",
	}, []string{
		"run_id",
	})

	acceptancePoints = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "acceptance_points",
		Help:      "Points of the last run",
	}, []string{
		"run_id",
		"kind",
	})

	acceptanceTestDuration = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "acceptance_test_duration",
		Help:      "Duration of acceptance runs",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordCase(caseID string, result types.TestStatus, pointsAwarded int, duration time.Duration) {
	if !isValidResult(result) {
		log.Error("RecordCase - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "case_results_total",
			"case", caseID,
			"result", result,
			"points", pointsAwarded)
	}
	caseResultsTotal.WithLabelValues(caseID, string(result)).Inc()
	casePointsAwarded.WithLabelValues(caseID).Set(float64(pointsAwarded))
	caseDuration.WithLabelValues(caseID).Set(duration.Seconds())
}

// RecordReset counts a store reset; a failed reset is also counted as an error.
func RecordReset(err error) {
	if err != nil {
		resetsTotal.WithLabelValues("error").Inc()
		RecordErrorDetails("reset", err)
		return
	}
	resetsTotal.WithLabelValues("ok").Inc()
}

func RecordAcceptance(
	runID string,
	result string,
	total int,
	passed int,
	failed int,
	pointsAwarded int,
	pointsAvailable int,
	duration time.Duration,
) {
	acceptanceResults.WithLabelValues(runID, result).Set(1)
	acceptanceTestTotal.WithLabelValues(runID).Add(float64(total))
	acceptanceTestPassed.WithLabelValues(runID).Add(float64(passed))
	acceptanceTestFailed.WithLabelValues(runID).Add(float64(failed))
	acceptancePoints.WithLabelValues(runID, "awarded").Set(float64(pointsAwarded))
	acceptancePoints.WithLabelValues(runID, "available").Set(float64(pointsAvailable))
	acceptanceTestDuration.WithLabelValues(runID).Set(duration.Seconds())
}

// Push replaces the job's metrics on a Pushgateway with the current contents of Registry.
func Push(ctx context.Context, url string) error {
	return push.New(url, PushJobName).
		Gatherer(Registry).
		PushContext(ctx)
}

func isValidResult(result types.TestStatus) bool {
	return slices.Contains(validResults, result)
}
