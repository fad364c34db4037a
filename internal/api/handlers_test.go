package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuttle-tracker/internal/catalog"
	"shuttle-tracker/internal/live"
	"shuttle-tracker/internal/metrics"
	"shuttle-tracker/internal/schedule"
	"shuttle-tracker/internal/tracker"
)

type fakeSource struct {
	cat   *catalog.Catalog
	agg   *schedule.Aggregator
	snap  *live.Snapshot
	board *tracker.Board
	now   time.Time
}

func (f *fakeSource) Catalog() *catalog.Catalog        { return f.cat }
func (f *fakeSource) Aggregator() *schedule.Aggregator { return f.agg }
func (f *fakeSource) Snapshot() *live.Snapshot         { return f.snap }
func (f *fakeSource) Board() *tracker.Board            { return f.board }
func (f *fakeSource) Now() time.Time                   { return f.now }

func newSource(t *testing.T, now time.Time) *fakeSource {
	t.Helper()
	c, _, err := catalog.LoadEmbedded()
	require.NoError(t, err)
	return &fakeSource{cat: c, agg: schedule.NewAggregator(c.Contributions()), now: now}
}

// Monday 2026-10-19 08:05 in Cambridge.
func mondayMorning(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(2026, time.October, 19, 8, 5, 0, 0, loc)
}

func get(t *testing.T, h http.Handler, path string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestHealth(t *testing.T) {
	src := newSource(t, mondayMorning(t))
	src.snap = &live.Snapshot{Vehicles: []live.Vehicle{{VehicleID: "bus-1"}}}
	router := NewRouter(src, nil, nil, nil)

	var resp HealthResponse
	rec := get(t, router, "/healthz", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, src.cat.Version, resp.CatalogVersion)
	assert.Equal(t, 1, resp.LiveVehicles)
	assert.Nil(t, resp.LastTick)
}

func TestRoutes_RunningFirst(t *testing.T) {
	router := NewRouter(newSource(t, mondayMorning(t)), nil, nil, nil)

	var resp RoutesResponse
	rec := get(t, router, "/routes", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Routes, 11)
	assert.Equal(t, "Allston Loop", resp.Routes[0].Name)
	assert.Equal(t, schedule.Running, resp.Routes[0].Status)
	assert.Equal(t, schedule.NotRunning, resp.Routes[len(resp.Routes)-1].Status)
}

func TestTimetable(t *testing.T) {
	router := NewRouter(newSource(t, mondayMorning(t)), nil, nil, nil)

	var resp TimetableResponse
	rec := get(t, router, "/routes/ME/timetable", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mather Express", resp.Route.Name)
	require.Len(t, resp.Timetables, 1)
	first := resp.Timetables[0].Stops[0]
	require.Len(t, first.Minutes, len(first.Times))
	assert.Equal(t, schedule.MinuteOfDay(7*60+40), first.Minutes[0])

	rec = get(t, router, "/routes/NOPE/timetable", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStops(t *testing.T) {
	src := newSource(t, mondayMorning(t))
	router := NewRouter(src, nil, nil, nil)

	var resp StopsResponse
	rec := get(t, router, "/stops", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, len(src.cat.Stops), resp.Count)
	for _, s := range resp.Stops {
		if s.Name == "Widener Gate" {
			assert.True(t, s.ServedToday)
		}
	}
}

func TestArrivals(t *testing.T) {
	router := NewRouter(newSource(t, mondayMorning(t)), nil, nil, nil)

	var resp ArrivalsResponse
	rec := get(t, router, "/stops/Widener%20Gate/arrivals", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Widener Gate", resp.Stop)
	assert.True(t, resp.Served)
	assert.True(t, resp.Upcoming)
	require.NotEmpty(t, resp.Arrivals)
	var me *schedule.ArrivalEntry
	for i := range resp.Arrivals {
		if resp.Arrivals[i].RouteName == "Mather Express" {
			me = &resp.Arrivals[i]
		}
	}
	require.NotNil(t, me)
	assert.Equal(t, []schedule.MinuteOfDay{8*60 + 23, 8*60 + 48, 9*60 + 13}, me.Minutes)
	for i := 1; i < len(resp.Arrivals); i++ {
		assert.LessOrEqual(t, int(resp.Arrivals[i-1].Soonest()), int(resp.Arrivals[i].Soonest()))
	}
}

func TestArrivals_UnknownStop(t *testing.T) {
	router := NewRouter(newSource(t, mondayMorning(t)), nil, nil, nil)
	rec := get(t, router, "/stops/Nowhere/arrivals", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Stop not found", body.Error)
}

func TestArrivals_LateNightStopStillServed(t *testing.T) {
	src := newSource(t, mondayMorning(t))
	src.now = time.Date(2026, time.October, 19, 23, 59, 0, 0, src.now.Location())
	router := NewRouter(src, nil, nil, nil)

	var resp ArrivalsResponse
	rec := get(t, router, "/stops/Mather%20House/arrivals", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Served)
	assert.NotNil(t, resp.Arrivals)
}

func TestMetricsMounted(t *testing.T) {
	col := metrics.NewCollector(time.Minute)
	col.SetCatalog("v1", "embedded")
	router := NewRouter(newSource(t, mondayMorning(t)), col.Handler(), []string{"http://localhost:5173"}, nil)

	rec := get(t, router, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shuttle_catalog_info")
}
