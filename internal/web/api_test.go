package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mesh-intelligence/tabula/internal/pipeline"
	"github.com/mesh-intelligence/tabula/internal/viewstate"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// decoded mirrors the JSON of viewResponse with plain maps for rows.
type decoded struct {
	Name          string               `json:"name"`
	Rows          []map[string]any     `json:"rows"`
	Tab           string               `json:"tab"`
	Tabs          []viewstate.TabCount `json:"tabs"`
	Query         string               `json:"query"`
	Filters       map[string][]string  `json:"filters"`
	Sort          pipeline.Sort        `json:"sort"`
	Page          pipeline.Page        `json:"page"`
	Total         int                  `json:"total"`
	Label         string               `json:"label"`
	Selected      []string             `json:"selected"`
	AllSelected   bool                 `json:"all_selected"`
	Indeterminate bool                 `json:"indeterminate"`
	SourceError   string               `json:"source_error"`
}

func newTestServer(t *testing.T) (*httptest.Server, *viewstate.Table[types.Record]) {
	t.Helper()
	view := types.ViewConfig{
		Name: "tickets",
		Tabs: []types.TabConfig{
			{ID: "all", Label: "All"},
			{ID: "open", Label: "Open", Field: "state", Values: []string{"open"}},
		},
		SearchFields: []string{"title"},
		FilterOptions: []pipeline.FilterOption{
			{Field: "priority", AllowedValues: []string{"low", "high"}},
		},
		PageSize:  5,
		PageSizes: []int{5, 10},
	}.Normalize()
	tbl, err := viewstate.ForView(view, zaptest.NewLogger(t))
	require.NoError(t, err)

	records := make([]types.Record, 12)
	for i := range records {
		state, priority := "open", "low"
		if i%2 == 1 {
			state = "closed"
		}
		if i%3 == 0 {
			priority = "high"
		}
		records[i] = types.Record{
			"id":       fmt.Sprintf("t%02d", i),
			"title":    fmt.Sprintf("ticket %d", i),
			"state":    state,
			"priority": priority,
		}
	}
	tbl.SetRecords(records)

	srv := NewServer(map[string]*viewstate.Table[types.Record]{"tickets": tbl}, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, tbl
}

func do(t *testing.T, method, url, body string) (*http.Response, decoded) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var d decoded
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
	}
	return resp, d
}

func errorBody(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var e map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return resp.StatusCode, e["error"]
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestViewList(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/views")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"tickets"}, body["views"])
}

func TestViewGet(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, d := do(t, http.MethodGet, ts.URL+"/api/views/tickets", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "tickets", d.Name)
	assert.Len(t, d.Rows, 5)
	assert.Equal(t, 12, d.Total)
	assert.Equal(t, "1–5 of 12", d.Label)
	assert.Equal(t, []viewstate.TabCount{
		{ID: "all", Label: "All", Count: 12},
		{ID: "open", Label: "Open", Count: 6},
	}, d.Tabs)
	assert.Equal(t, []string{}, d.Selected)
}

func TestViewGetUnknown(t *testing.T) {
	ts, _ := newTestServer(t)
	status, msg := errorBody(t, http.MethodGet, ts.URL+"/api/views/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, msg, "nope")
}

func TestViewPatch(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, d := do(t, http.MethodPatch, ts.URL+"/api/views/tickets",
		`{"tab":"open","filters":{"priority":["high"]},"sort":"title","direction":"desc"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "open", d.Tab)
	assert.Equal(t, map[string][]string{"priority": {"high"}}, d.Filters)
	assert.Equal(t, pipeline.Sort{Field: "title", Direction: pipeline.Desc}, d.Sort)
	require.Len(t, d.Rows, 2)
	assert.Equal(t, "t06", d.Rows[0]["id"])
	assert.Equal(t, "t00", d.Rows[1]["id"])
}

func TestViewPatchPageAfterReset(t *testing.T) {
	ts, _ := newTestServer(t)

	// The query resets the page before the page change applies.
	_, d := do(t, http.MethodPatch, ts.URL+"/api/views/tickets", `{"query":"ticket","page":1}`)
	assert.Equal(t, 1, d.Page.Index)

	_, d = do(t, http.MethodPatch, ts.URL+"/api/views/tickets", `{"page":9}`)
	assert.Equal(t, 1, d.Page.Index, "out of range page is ignored")

	_, d = do(t, http.MethodPatch, ts.URL+"/api/views/tickets", `{"page_size":10}`)
	assert.Equal(t, 0, d.Page.Index)
	assert.Len(t, d.Rows, 10)
}

func TestViewPatchErrors(t *testing.T) {
	ts, _ := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed", body: `{"tab":`},
		{name: "unknown key", body: `{"colour":"red"}`},
		{name: "unknown filter field", body: `{"filters":{"state":["open"]}}`},
		{name: "disallowed value", body: `{"filters":{"priority":["urgent"]}}`},
		{name: "page size", body: `{"page_size":7}`},
		{name: "page size after tab and query", body: `{"tab":"open","query":"ticket 1","page_size":7}`},
		{name: "one bad filter among good ones", body: `{"filters":{"priority":["high"],"state":["open"]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := errorBody(t, http.MethodPatch, ts.URL+"/api/views/tickets", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.NotEmpty(t, msg)

			_, d := do(t, http.MethodGet, ts.URL+"/api/views/tickets", "")
			assert.Equal(t, "all", d.Tab, "rejected patch leaves the view as it was")
			assert.Equal(t, "", d.Query)
			assert.Empty(t, d.Filters)
			assert.Equal(t, 5, d.Page.Size)
		})
	}
}

func TestSelectionEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)
	base := ts.URL + "/api/views/tickets/selection"

	_, d := do(t, http.MethodPost, base+"/t00", "")
	assert.Equal(t, []string{"t00"}, d.Selected)
	assert.True(t, d.Indeterminate)

	_, d = do(t, http.MethodPost, base+"?checked=true", "")
	assert.Len(t, d.Selected, 5)
	assert.True(t, d.AllSelected)

	_, d = do(t, http.MethodPost, base+"/t00", "")
	assert.Len(t, d.Selected, 4)

	_, d = do(t, http.MethodDelete, base, "")
	assert.Empty(t, d.Selected)

	do(t, http.MethodPost, base+"/t01", "")
	_, d = do(t, http.MethodPost, base+"?checked=false", "")
	assert.Empty(t, d.Selected)

	status, _ := errorBody(t, http.MethodPost, base+"?checked=maybe", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSourceErrorIsReported(t *testing.T) {
	ts, tbl := newTestServer(t)
	tbl.SetData(nil, false, errors.New("disk on fire"))

	_, d := do(t, http.MethodGet, ts.URL+"/api/views/tickets", "")
	assert.Equal(t, "disk on fire", d.SourceError)
	assert.Empty(t, d.Rows)
}

func TestServeStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	srv := NewServer(nil, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * shutdownTimeout):
		t.Fatal("Serve did not return")
	}
}
