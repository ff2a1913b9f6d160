package acceptor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/ibs-acceptor/reporting"
	"github.com/ethereum-optimism/infra/ibs-acceptor/service"
	"github.com/ethereum-optimism/infra/ibs-acceptor/testutil"
	"github.com/ethereum-optimism/infra/ibs-acceptor/token"
	"github.com/ethereum-optimism/infra/ibs-acceptor/types"
)

type recordingService struct {
	src      service.ScorecardSource
	started  bool
	shutdown bool
}

func (r *recordingService) Start(ctx context.Context) error    { r.started = true; return nil }
func (r *recordingService) Shutdown(ctx context.Context) error { r.shutdown = true; return nil }
func (r *recordingService) SetSource(src service.ScorecardSource) {
	r.src = src
}

type testHarness struct {
	cfg    *Config
	ibs    *testutil.IBS
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T, behavior testutil.Behavior) *testHarness {
	t.Helper()
	mem := testutil.NewMemStore()
	ibs := testutil.NewIBS(mem, behavior)
	srv := ibs.Serve(t)

	h := &testHarness{ibs: ibs, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	h.cfg = &Config{
		ProductsURL:    srv.URL,
		BillingURL:     srv.URL,
		DatabaseURL:    "postgres://unused",
		RequestTimeout: time.Second,
		ResultsTable:   true,
		Token:          token.Context{Token: "abc123"},
		Log:            log.NewLogger(log.DiscardHandler()),
		Store:          mem,
		Stdout:         h.stdout,
		Stderr:         h.stderr,
	}
	return h
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, "test", nil, nil)
	assert.Error(t, err)
}

func TestNew_InvalidURL(t *testing.T) {
	h := newHarness(t, testutil.Behavior{})
	h.cfg.ProductsURL = "not a url"
	_, err := New(context.Background(), h.cfg, "test", nil, nil)
	assert.Error(t, err)
}

func TestStart_PrintsScorecard(t *testing.T) {
	h := newHarness(t, testutil.Behavior{})
	svc := &recordingService{}
	shutdown := make(chan error, 1)

	a, err := New(context.Background(), h.cfg, "test", svc, func(err error) { shutdown <- err })
	require.NoError(t, err)
	require.True(t, a.Stopped())

	require.NoError(t, a.Start(context.Background()))
	assert.False(t, a.Stopped())

	select {
	case err := <-shutdown:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown callback not called")
	}

	var sc types.Scorecard
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &sc))
	assert.Equal(t, json.RawMessage(`{"token":"abc123"}`), sc.Context)
	require.Len(t, sc.Outcomes, 9)
	assert.Equal(t, 100, sc.TotalPointsAwarded)
	assert.Equal(t, 100, sc.TotalPointsAvailable)

	assert.Contains(t, h.stderr.String(), "TOTAL")
	assert.True(t, svc.started)
	require.NotNil(t, svc.src)
	assert.Equal(t, sc.RunID, svc.src.Snapshot().RunID)

	require.NoError(t, a.Stop(context.Background()))
	assert.True(t, a.Stopped())
	assert.True(t, svc.shutdown)
	require.NoError(t, a.Stop(context.Background()))
}

func TestStart_ScorecardIsIndentedJSON(t *testing.T) {
	h := newHarness(t, testutil.Behavior{})
	h.cfg.ResultsTable = false

	a, err := New(context.Background(), h.cfg, "test", nil, nil)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	assert.Contains(t, h.stdout.String(), "{\n    \"run_id\"")
	assert.Empty(t, h.stderr.String())
}

func TestStart_FailUnder(t *testing.T) {
	h := newHarness(t, testutil.Behavior{FailStatus: map[string]int{testutil.RouteCreateBilling: http.StatusInternalServerError}})
	h.cfg.FailUnder = 80

	var called atomic.Bool
	a, err := New(context.Background(), h.cfg, "test", nil, func(error) { called.Store(true) })
	require.NoError(t, err)

	err = a.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.Contains(t, err.Error(), "60/100 points awarded")

	var sc types.Scorecard
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &sc))
	assert.Equal(t, 60, sc.TotalPointsAwarded)
	assert.False(t, called.Load())
}

func TestStart_FailUnderMet(t *testing.T) {
	h := newHarness(t, testutil.Behavior{})
	h.cfg.FailUnder = 100

	a, err := New(context.Background(), h.cfg, "test", nil, nil)
	require.NoError(t, err)
	assert.NoError(t, a.Start(context.Background()))
}

func TestStart_WritesReports(t *testing.T) {
	h := newHarness(t, testutil.Behavior{})
	h.cfg.ReportDir = t.TempDir()

	a, err := New(context.Background(), h.cfg, "test", nil, nil)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	runDir := reporting.RunDir(h.cfg.ReportDir, a.result.RunID)
	written, err := os.ReadFile(filepath.Join(runDir, reporting.ScorecardFileName))
	require.NoError(t, err)
	assert.JSONEq(t, h.stdout.String(), string(written))

	summary, err := os.ReadFile(filepath.Join(runDir, reporting.SummaryFileName))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Check for successful product creation")
	assert.NotContains(t, string(summary), "\x1b[")
}

func TestStart_PushesMetrics(t *testing.T) {
	var pushes atomic.Int32
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushes.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	h := newHarness(t, testutil.Behavior{})
	h.cfg.PushgatewayURL = gateway.URL

	a, err := New(context.Background(), h.cfg, "test", nil, nil)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	assert.Equal(t, int32(1), pushes.Load())
}

func TestStart_UnreachablePushgatewayIsNotFatal(t *testing.T) {
	gateway := httptest.NewServer(http.NotFoundHandler())
	url := gateway.URL
	gateway.Close()

	h := newHarness(t, testutil.Behavior{})
	h.cfg.PushgatewayURL = url

	a, err := New(context.Background(), h.cfg, "test", nil, nil)
	require.NoError(t, err)
	assert.NoError(t, a.Start(context.Background()))
}

func TestStart_WithDisabledService(t *testing.T) {
	h := newHarness(t, testutil.Behavior{})
	svc := service.New(service.Config{}, h.cfg.Log)

	a, err := New(context.Background(), h.cfg, "test", svc, nil)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Stop(context.Background()))
}
