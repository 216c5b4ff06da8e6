package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/opcost/internal/activity"
	"github.com/matthewbaird/opcost/internal/engine"
	"github.com/matthewbaird/opcost/internal/event"
	"github.com/matthewbaird/opcost/internal/observability/metrics"
	"github.com/matthewbaird/opcost/internal/settlement"
	"github.com/matthewbaird/opcost/internal/source"
	"github.com/matthewbaird/opcost/internal/statement"
	"github.com/matthewbaird/opcost/internal/store"
	"github.com/matthewbaird/opcost/internal/types"
)

const yearBody = `{"period":{"start":"2023-01-01","end":"2023-12-31"},"pools":[{"category_id":"heat"}]}`

func day(s string) time.Time {
	t, _ := time.Parse(types.DateLayout, s)
	return t
}

func newService(t *testing.T) *statement.Service {
	t.Helper()
	src := source.NewMemoryStore()
	a60, a40 := decimal.NewFromInt(60), decimal.NewFromInt(40)
	require.NoError(t, src.Import(context.Background(), engine.Snapshot{
		Building: types.Building{ID: "b1", Name: "Lindenhof"},
		Units: []types.Unit{
			{ID: "u1", Area: &a60},
			{ID: "u2", Area: &a40},
		},
		Contracts: []types.LeaseContract{
			{ID: "c1", TenantID: "t1", UnitID: "u1", Term: types.DateRange{Start: day("2021-01-01")}, Occupants: 2},
			{ID: "c2", TenantID: "t2", UnitID: "u2", Term: types.DateRange{Start: day("2021-01-01")}, Occupants: 1},
		},
		Categories: []types.CostCategory{{ID: "heat", Main: "Heating", DefaultKey: types.KeyAreaWeighted}},
		CostEntries: []types.CostEntry{
			{ID: "e1", CategoryID: "heat", BuildingID: "b1", Date: day("2023-03-01"), Amount: decimal.NewFromInt(1000), Origin: types.OriginInvoice},
		},
	}))
	act := activity.NewMemoryStore()
	return statement.NewService(statement.Deps{
		Source:   src,
		Store:    store.NewMemoryStore(),
		Recorder: event.NewActivityRecorder(act),
		Activity: act,
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Log:      zerolog.Nop(),
	}, statement.Options{Currency: "EUR"})
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	NewStatementHandler(newService(t), zerolog.Nop()).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var actor = map[string]string{"X-Actor": "alice", "X-Correlation-ID": "req-1"}

func TestPreview_OK(t *testing.T) {
	h := newRouter(t)
	rec := do(t, h, http.MethodPost, "/v1/buildings/b1/statements/preview", yearBody, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Statement settlement.Statement `json:"statement"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, settlement.StatusDraft, res.Statement.Status)
	require.Len(t, res.Statement.Items, 2)
	assert.True(t, res.Statement.Items[0].AllocatedCost.Equal(decimal.NewFromInt(600)))
}

func TestPreview_ValidationFailed(t *testing.T) {
	h := newRouter(t)
	body := `{"period":{"start":"2023-01-01","end":"2023-12-31"},"pools":[{"category_id":"heat"},{"category_id":"heat"},{"category_id":"gas"}]}`
	rec := do(t, h, http.MethodPost, "/v1/buildings/b1/statements/preview", body, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp validationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_FAILED", resp.Code)
	codes := make([]string, len(resp.Problems))
	for i, p := range resp.Problems {
		codes[i] = p.Code
	}
	assert.ElementsMatch(t, []string{engine.CodeDuplicateSelection, engine.CodeUnknownCategory}, codes)
}

func TestPreview_BadRequests(t *testing.T) {
	h := newRouter(t)
	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{name: "malformed json", path: "/v1/buildings/b1/statements/preview", body: `{`, want: http.StatusBadRequest},
		{name: "unknown field", path: "/v1/buildings/b1/statements/preview", body: `{"periode":{}}`, want: http.StatusBadRequest},
		{name: "bad date", path: "/v1/buildings/b1/statements/preview", body: `{"period":{"start":"01.01.2023","end":"2023-12-31"}}`, want: http.StatusBadRequest},
		{name: "unknown building", path: "/v1/buildings/b9/statements/preview", body: yearBody, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestFinalize_ThenGetAndList(t *testing.T) {
	h := newRouter(t)

	rec := do(t, h, http.MethodPost, "/v1/buildings/b1/statements", yearBody, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/buildings/b1/statements", yearBody, actor)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created settlement.Statement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, settlement.StatusCompleted, created.Status)
	assert.Equal(t, "alice", created.CreatedBy)

	rec = do(t, h, http.MethodGet, "/v1/statements/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got settlement.Statement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Items, 2)

	rec = do(t, h, http.MethodGet, "/v1/buildings/b1/statements?limit=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Statements []settlement.Statement `json:"statements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Statements, 1)
	assert.Equal(t, created.ID, list.Statements[0].ID)

	rec = do(t, h, http.MethodGet, "/v1/buildings/b1/activity", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), event.TypeStatementCompleted)

	rec = do(t, h, http.MethodGet, "/v1/statements/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDrafts(t *testing.T) {
	h := newRouter(t)

	rec := do(t, h, http.MethodPut, "/v1/buildings/b1/drafts/d1", yearBody, actor)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/v1/drafts/d1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var d store.Draft
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "b1", d.BuildingID)
	assert.Equal(t, "alice", d.UpdatedBy)
	require.Len(t, d.Request.Pools, 1)
	assert.Equal(t, "heat", d.Request.Pools[0].CategoryID)

	rec = do(t, h, http.MethodGet, "/v1/drafts/d2", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOccupancy(t *testing.T) {
	h := newRouter(t)

	rec := do(t, h, http.MethodGet, "/v1/buildings/b1/occupancy?start=2023-01-01&end=2023-06-30&unit_id=u2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Intervals []struct {
			Key    string `json:"key"`
			UnitID string `json:"unit_id"`
		} `json:"intervals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Intervals, 1)
	assert.Equal(t, "c2", resp.Intervals[0].Key)

	rec = do(t, h, http.MethodGet, "/v1/buildings/b1/occupancy?start=2023-06-30&end=2023-01-01", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/buildings/b1/occupancy?start=2023-01-01&end=2023-06-30&unit_id=u7", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
