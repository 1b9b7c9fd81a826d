package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/metrics"
	"github.com/andresuchdata/procurement-engine/internal/pipeline"
	"github.com/andresuchdata/procurement-engine/internal/pipeline/procurement"
	"github.com/andresuchdata/procurement-engine/internal/repository"
	"github.com/andresuchdata/procurement-engine/internal/repository/memory"
	"github.com/andresuchdata/procurement-engine/internal/service"
)

var day = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

type stubProcessor struct {
	err error
}

func (p stubProcessor) ProcessDate(ctx context.Context, businessDate time.Time) (*procurement.Result, error) {
	status := domain.RunSucceeded
	if p.err != nil {
		status = domain.RunFailed
	}
	return &procurement.Result{Summary: domain.RunSummary{RunID: "run-9", BusinessDate: businessDate, Status: status}}, p.err
}

func newTestRouter(t *testing.T, proc service.DateProcessor) (*gin.Engine, *pipeline.MemoryTracker) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	results := memory.NewResultStore()
	require.NoError(t, results.SaveResults(context.Background(), &repository.ResultSet{
		BusinessDate: day,
		Summary:      domain.RunSummary{RunID: "run-1", BusinessDate: day, Status: domain.RunSucceeded},
		SupplierOrders: []domain.SupplierOrderLine{{
			POID:          "PO-20240315-00001",
			WarehouseCode: "W1",
			SKUCode:       "S1",
			SupplierCode:  "SUP-B",
			OrderedQty:    96,
			UnitPrice:     decimal.RequireFromString("40.00"),
			TotalCost:     decimal.RequireFromString("3840.00"),
			Currency:      "IDR",
			Status:        domain.POStatusPending,
		}},
		NetDemand: []domain.NetDemand{{WarehouseCode: "W1", SKUCode: "S1", NetRequirement: 90}},
		Exceptions: []domain.Exception{
			{Stage: domain.StageAggregation, Reason: domain.ReasonUnknownSKU, SKUCode: "S404"},
		},
	}))

	tracker := pipeline.NewMemoryTracker()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveRun(domain.RunSummary{Status: domain.RunSucceeded})

	svc := service.NewPOService(results, nil, tracker, proc, "procurement")
	return NewRouter(&Services{POService: svc, Gatherer: reg}, []string{"*"}), tracker
}

func do(router *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestGetSummary(t *testing.T) {
	router, _ := newTestRouter(t, stubProcessor{})

	w := do(router, http.MethodGet, "/api/v1/results/2024-03-15/summary")
	require.Equal(t, http.StatusOK, w.Code)

	var summary domain.RunSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "run-1", summary.RunID)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestGetSummaryErrors(t *testing.T) {
	router, _ := newTestRouter(t, stubProcessor{})

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/api/v1/results/15-03-2024/summary").Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/api/v1/results/2024-03-16/summary").Code)
}

func TestGetSupplierOrders(t *testing.T) {
	router, _ := newTestRouter(t, stubProcessor{})

	w := do(router, http.MethodGet, "/api/v1/results/2024-03-15/orders?warehouse=W1&page_size=10")
	require.Equal(t, http.StatusOK, w.Code)

	var page domain.SupplierOrderPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 10, page.PageSize)
	require.Len(t, page.Items, 1)
	assert.EqualValues(t, 96, page.Items[0].OrderedQty)
	assert.True(t, page.Items[0].TotalCost.Equal(decimal.RequireFromString("3840")))

	w = do(router, http.MethodGet, "/api/v1/results/2024-03-15/orders?supplier=SUP-A")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Items)
}

func TestGetNetDemandAndExceptions(t *testing.T) {
	router, _ := newTestRouter(t, stubProcessor{})

	w := do(router, http.MethodGet, "/api/v1/results/2024-03-15/net_demand?warehouse=W1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"net_requirement":90`)

	w = do(router, http.MethodGet, "/api/v1/results/2024-03-15/exceptions?stage=aggregation")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
	assert.Contains(t, w.Body.String(), domain.ReasonUnknownSKU)
}

func TestGetAvailableDates(t *testing.T) {
	router, _ := newTestRouter(t, stubProcessor{})

	w := do(router, http.MethodGet, "/api/v1/results/dates")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"dates":["2024-03-15"]}`, w.Body.String())
}

func TestTriggerRun(t *testing.T) {
	router, _ := newTestRouter(t, stubProcessor{})

	w := do(router, http.MethodPost, "/api/v1/runs/2024-03-16")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"succeeded"`)
}

func TestTriggerRunStructuralFailure(t *testing.T) {
	err := &procurement.StructuralError{Stage: "orders", Err: repository.ErrInputNotFound}
	router, _ := newTestRouter(t, stubProcessor{err: err})

	w := do(router, http.MethodPost, "/api/v1/runs/2024-03-16")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"failed"`)
}

func TestTriggerRunOtherFailure(t *testing.T) {
	router, _ := newTestRouter(t, stubProcessor{err: errors.New("upload failed")})

	w := do(router, http.MethodPost, "/api/v1/runs/2024-03-16")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRuns(t *testing.T) {
	router, tracker := newTestRouter(t, stubProcessor{})
	run := &pipeline.PipelineRun{PipelineName: "procurement", BusinessDate: day, Status: pipeline.StatusSucceeded}
	require.NoError(t, tracker.CreatePipelineRun(context.Background(), run))
	require.NoError(t, tracker.ReplaceStageJobs(context.Background(), run.ID, []*pipeline.StageJob{
		{Stage: domain.StageAggregation, Status: pipeline.StageStatusCompleted, Rows: 2},
	}))

	w := do(router, http.MethodGet, "/api/v1/runs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pipeline_name":"procurement"`)

	w = do(router, http.MethodGet, "/api/v1/runs/2024-03-15")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"stage":"aggregation"`)

	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/api/v1/runs/2024-03-01").Code)
}

func TestRunsStatusFilter(t *testing.T) {
	router, tracker := newTestRouter(t, stubProcessor{})
	ctx := context.Background()
	require.NoError(t, tracker.CreatePipelineRun(ctx, &pipeline.PipelineRun{PipelineName: "procurement", BusinessDate: day, Status: pipeline.StatusSucceeded}))
	require.NoError(t, tracker.CreatePipelineRun(ctx, &pipeline.PipelineRun{PipelineName: "procurement", BusinessDate: day.AddDate(0, 0, 1), Status: pipeline.StatusFailed}))

	w := do(router, http.MethodGet, "/api/v1/runs?status=FAILED")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Runs []pipeline.PipelineRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, pipeline.StatusFailed, body.Runs[0].Status)

	w = do(router, http.MethodGet, "/api/v1/runs")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Runs, 2)

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/api/v1/runs?status=pending").Code)
}

func TestMetricsAndHealth(t *testing.T) {
	router, _ := newTestRouter(t, stubProcessor{})

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/healthz").Code)

	w := do(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "procurement_runs_total"))
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"http://a.test, http://b.test", " "})
	assert.False(t, all)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, origins)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}
