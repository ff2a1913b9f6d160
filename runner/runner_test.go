package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/ibs-acceptor/apiclient"
	"github.com/ethereum-optimism/infra/ibs-acceptor/store"
	"github.com/ethereum-optimism/infra/ibs-acceptor/testcases"
	"github.com/ethereum-optimism/infra/ibs-acceptor/testutil"
	"github.com/ethereum-optimism/infra/ibs-acceptor/types"
)

func newAPI(t *testing.T, url string) apiclient.API {
	t.Helper()
	api, err := apiclient.New(apiclient.Config{ProductsURL: url, BillingURL: url, Timeout: time.Second})
	require.NoError(t, err)
	return api
}

func newRunner(t *testing.T, api apiclient.API, mem *testutil.MemStore, gen *testutil.Generator, cases ...testcases.TestCase) TestRunner {
	t.Helper()
	lgr := log.NewLogger(log.DiscardHandler())
	r, err := NewTestRunner(Config{
		Env:     &testcases.Env{API: api, Store: mem, Gen: gen, Log: lgr},
		Cases:   cases,
		Context: json.RawMessage(`{"token":"abc"}`),
		Log:     lgr,
	})
	require.NoError(t, err)
	return r
}

func assertScoringInvariants(t *testing.T, sc types.Scorecard) {
	t.Helper()
	for _, o := range sc.Outcomes {
		assert.Contains(t, []int{0, o.PointsAvailable}, o.PointsAwarded, o.Description)
		assert.Equal(t, o.Passed, o.PointsAwarded == o.PointsAvailable, o.Description)
		assert.NotEqual(t, types.TestStatusPending, o.Status, o.Description)
		assert.Equal(t, types.NotApplicable, o.Extra)
	}
}

func descriptions(cases []testcases.TestCase) []string {
	out := make([]string, len(cases))
	for i, tc := range cases {
		out[i] = tc.Description
	}
	return out
}

func outcomeDescriptions(sc types.Scorecard) []string {
	out := make([]string, len(sc.Outcomes))
	for i, o := range sc.Outcomes {
		out[i] = o.Description
	}
	return out
}

func TestNewTestRunner_Validation(t *testing.T) {
	_, err := NewTestRunner(Config{})
	assert.Error(t, err)

	_, err = NewTestRunner(Config{Env: &testcases.Env{Store: testutil.NewMemStore()}})
	assert.Error(t, err)

	_, err = NewTestRunner(Config{Env: &testcases.Env{API: newAPI(t, "http://localhost:1")}})
	assert.Error(t, err)
}

func TestRun_ConformingService(t *testing.T) {
	mem := testutil.NewMemStore()
	ibs := testutil.NewIBS(mem, testutil.Behavior{})
	srv := ibs.Serve(t)

	r := newRunner(t, newAPI(t, srv.URL), mem, &testutil.Generator{BillingQuantities: []int{3, 4}})
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	sc := res.Scorecard
	require.Len(t, sc.Outcomes, 9)
	assert.Equal(t, descriptions(testcases.All()), outcomeDescriptions(sc))
	for _, o := range sc.Outcomes {
		assert.True(t, o.Passed, "%s: %s", o.Description, o.Actual)
		assert.Equal(t, o.Expected, o.Actual)
	}
	assert.Equal(t, 100, sc.TotalPointsAwarded)
	assert.Equal(t, 100, sc.TotalPointsAvailable)
	assert.Equal(t, types.TestStatusPass, sc.Status)
	assertScoringInvariants(t, sc)

	assert.Equal(t, 2, mem.Truncations())
	for _, table := range store.Tables {
		assert.Zero(t, mem.Count(table), table)
	}
	assert.Zero(t, mem.OpenConns())
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, res.RunID, sc.RunID)
}

func TestRun_FailedBillingSkipsDependents(t *testing.T) {
	mem := testutil.NewMemStore()
	ibs := testutil.NewIBS(mem, testutil.Behavior{FailStatus: map[string]int{testutil.RouteCreateBilling: http.StatusInternalServerError}})
	srv := ibs.Serve(t)

	r := newRunner(t, newAPI(t, srv.URL), mem, &testutil.Generator{})
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	sc := res.Scorecard
	require.Len(t, sc.Outcomes, 9)
	assert.Equal(t, testcases.ActualAPICallFailed, sc.Outcomes[6].Actual)
	assert.Equal(t, "billing creation failed! dependent on billing creation", sc.Outcomes[7].Actual)
	assert.Equal(t, "billing creation failed! dependent on billing creation", sc.Outcomes[8].Actual)
	assert.Equal(t, 1, ibs.Calls(testutil.RouteCreateBilling))
	assert.Zero(t, ibs.Calls(testutil.RouteListBillings))
	assert.Equal(t, 60, sc.TotalPointsAwarded)
	assert.Equal(t, types.TestStatusFail, sc.Status)
	assertScoringInvariants(t, sc)
}

func TestRun_FailedProductCreationSkipsBilling(t *testing.T) {
	mem := testutil.NewMemStore()
	ibs := testutil.NewIBS(mem, testutil.Behavior{FailStatus: map[string]int{testutil.RouteCreateProduct: http.StatusBadRequest}})
	srv := ibs.Serve(t)

	r := newRunner(t, newAPI(t, srv.URL), mem, &testutil.Generator{})
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	sc := res.Scorecard
	assert.Equal(t, "product creation failed! dependent on product creation", sc.Outcomes[6].Actual)
	assert.Zero(t, ibs.Calls(testutil.RouteCreateBilling))
	assert.Equal(t, 50, sc.TotalPointsAwarded)
}

func TestRun_UnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	mem := testutil.NewMemStore()
	r := newRunner(t, newAPI(t, url), mem, &testutil.Generator{})
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	sc := res.Scorecard
	require.Len(t, sc.Outcomes, 9)
	for _, o := range sc.Outcomes {
		assert.False(t, o.Passed, o.Description)
	}
	assert.Zero(t, sc.TotalPointsAwarded)
	assert.Equal(t, 100, sc.TotalPointsAvailable)
	assertScoringInvariants(t, sc)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(res.JSON, &decoded))
	assert.Len(t, decoded["testcases"], 9)
	assert.Equal(t, map[string]any{"token": "abc"}, decoded["context"])
}

func TestRun_StoreDown(t *testing.T) {
	mem := testutil.NewMemStore()
	ibs := testutil.NewIBS(mem, testutil.Behavior{})
	srv := ibs.Serve(t)
	mem.SetDown(true)

	r := newRunner(t, newAPI(t, srv.URL), mem, &testutil.Generator{})
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	sc := res.Scorecard
	require.Len(t, sc.Outcomes, 9)
	assert.Zero(t, sc.TotalPointsAwarded)
	assert.Equal(t, "product creation was not successful!", sc.Outcomes[0].Actual)
	assert.Equal(t, "product creation failed! Failed to connect to db", sc.Outcomes[1].Actual)
	assert.Zero(t, mem.Truncations())
	assertScoringInvariants(t, sc)
}

func TestRun_PanicIsContained(t *testing.T) {
	mem := testutil.NewMemStore()
	srv := testutil.NewIBS(mem, testutil.Behavior{}).Serve(t)

	boom := testcases.TestCase{
		ID:          "boom",
		Description: "Panics",
		Expected:    "never",
		Failure:     "boom failed!",
		Points:      10,
		Run: func(ctx context.Context, env *testcases.Env, rc *testcases.RunContext) (testcases.Result, error) {
			panic("kaboom")
		},
	}

	r := newRunner(t, newAPI(t, srv.URL), mem, &testutil.Generator{}, boom, testcases.CreateProduct())
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	sc := res.Scorecard
	require.Len(t, sc.Outcomes, 2)
	assert.False(t, sc.Outcomes[0].Passed)
	assert.Equal(t, "boom failed!", sc.Outcomes[0].Actual)
	assert.True(t, sc.Outcomes[1].Passed)
	assertScoringInvariants(t, sc)
}

func TestRun_Snapshot(t *testing.T) {
	mem := testutil.NewMemStore()
	srv := testutil.NewIBS(mem, testutil.Behavior{}).Serve(t)

	var r TestRunner
	var during types.Scorecard
	probe := testcases.TestCase{
		ID:          "probe",
		Description: "Probe",
		Expected:    "ok",
		Failure:     "not ok",
		Points:      10,
		Run: func(ctx context.Context, env *testcases.Env, rc *testcases.RunContext) (testcases.Result, error) {
			during = r.Snapshot()
			return testcases.Result{Passed: true}, nil
		},
	}
	r = newRunner(t, newAPI(t, srv.URL), mem, &testutil.Generator{}, probe)

	assert.Equal(t, types.TestStatusPending, r.Snapshot().Status)
	assert.Empty(t, r.Snapshot().Outcomes)

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, during.Outcomes, 1)
	assert.Equal(t, types.TestStatusPending, during.Outcomes[0].Status)
	assert.Equal(t, 10, during.TotalPointsAvailable)

	after := r.Snapshot()
	require.Len(t, after.Outcomes, 1)
	assert.Equal(t, types.TestStatusPass, after.Outcomes[0].Status)
}

func TestRun_FreshContextPerRun(t *testing.T) {
	mem := testutil.NewMemStore()
	srv := testutil.NewIBS(mem, testutil.Behavior{}).Serve(t)

	r := newRunner(t, newAPI(t, srv.URL), mem, &testutil.Generator{})
	first, err := r.Run(context.Background())
	require.NoError(t, err)
	second, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, 100, first.Scorecard.TotalPointsAwarded)
	assert.Equal(t, 100, second.Scorecard.TotalPointsAwarded)
}
