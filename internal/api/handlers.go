// Package api serves the resident schedule state over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"shuttle-tracker/internal/catalog"
	"shuttle-tracker/internal/live"
	"shuttle-tracker/internal/schedule"
	"shuttle-tracker/internal/tracker"
)

// Source is the read side of the tracker.
type Source interface {
	Catalog() *catalog.Catalog
	Aggregator() *schedule.Aggregator
	Snapshot() *live.Snapshot
	Board() *tracker.Board
	Now() time.Time
}

type Handler struct {
	src Source
}

func NewHandler(src Source) *Handler {
	return &Handler{src: src}
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type HealthResponse struct {
	Status         string     `json:"status"`
	CatalogVersion string     `json:"catalogVersion"`
	LiveVehicles   int        `json:"liveVehicles"`
	LastTick       *time.Time `json:"lastTick,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

type RoutesResponse struct {
	Routes []tracker.RouteStatus `json:"routes"`
	At     time.Time             `json:"at"`
}

type TimetableStop struct {
	Stop    string                 `json:"stop"`
	Times   []string               `json:"times"`
	Minutes []schedule.MinuteOfDay `json:"minutes"`
}

type TimetableView struct {
	Label string            `json:"label"`
	Days  schedule.DayClass `json:"days"`
	Runs  int               `json:"runs"`
	Stops []TimetableStop   `json:"stops"`
}

type TimetableResponse struct {
	Route      catalog.Route   `json:"route"`
	Timetables []TimetableView `json:"timetables"`
}

type StopView struct {
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	ServedToday bool    `json:"servedToday"`
}

type StopsResponse struct {
	Stops []StopView `json:"stops"`
	Count int        `json:"count"`
}

type ArrivalsResponse struct {
	Stop     string                  `json:"stop"`
	Served   bool                    `json:"servedToday"`
	Upcoming bool                    `json:"upcoming"`
	Arrivals []schedule.ArrivalEntry `json:"arrivals"`
	At       time.Time               `json:"at"`
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:         "ok",
		CatalogVersion: h.src.Catalog().Version,
		LiveVehicles:   h.src.Snapshot().Len(),
		Timestamp:      time.Now().UTC(),
	}
	if b := h.src.Board(); b != nil {
		at := b.GeneratedAt
		resp.LastTick = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

// Routes handles GET /routes
// Returns every route with its status evaluated at request time.
func (h *Handler) Routes(w http.ResponseWriter, r *http.Request) {
	now := h.src.Now()
	writeJSON(w, http.StatusOK, RoutesResponse{
		Routes: tracker.RouteStatuses(h.src.Catalog(), h.src.Snapshot(), now),
		At:     now,
	})
}

// Timetable handles GET /routes/{code}/timetable
func (h *Handler) Timetable(w http.ResponseWriter, r *http.Request) {
	code := pathParam(r, "code")
	cat := h.src.Catalog()
	route, ok := cat.Route(code)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "Route not found",
			Details: map[string]interface{}{"code": code},
		})
		return
	}
	resp := TimetableResponse{Route: route, Timetables: []TimetableView{}}
	for _, t := range cat.TimetablesFor(code) {
		view := TimetableView{Label: t.Label, Days: t.Days, Runs: t.Runs()}
		for _, s := range t.Stops {
			view.Stops = append(view.Stops, TimetableStop{
				Stop:    s.Stop,
				Times:   s.Times,
				Minutes: schedule.Normalize(schedule.Strings(s.Times)),
			})
		}
		resp.Timetables = append(resp.Timetables, view)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Stops handles GET /stops
func (h *Handler) Stops(w http.ResponseWriter, r *http.Request) {
	cat, agg, now := h.src.Catalog(), h.src.Aggregator(), h.src.Now()
	stops := make([]StopView, 0, len(cat.Stops))
	for _, s := range cat.Stops {
		stops = append(stops, StopView{
			Name:        s.Name,
			Lat:         s.Lat,
			Lon:         s.Lon,
			ServedToday: agg.IsServedToday(s.Name, now),
		})
	}
	writeJSON(w, http.StatusOK, StopsResponse{Stops: stops, Count: len(stops)})
}

// Arrivals handles GET /stops/{stop}/arrivals
// Returns up to three upcoming times per running route, soonest route first.
func (h *Handler) Arrivals(w http.ResponseWriter, r *http.Request) {
	stop := pathParam(r, "stop")
	agg := h.src.Aggregator()
	if !knownStop(agg, stop) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "Stop not found",
			Details: map[string]interface{}{"stop": stop},
		})
		return
	}
	now := h.src.Now()
	active := tracker.ActiveRoutes(tracker.RouteStatuses(h.src.Catalog(), h.src.Snapshot(), now))
	arrivals := agg.NextArrivals(stop, now, active)
	if arrivals == nil {
		arrivals = []schedule.ArrivalEntry{}
	}
	writeJSON(w, http.StatusOK, ArrivalsResponse{
		Stop:     stop,
		Served:   agg.IsServedToday(stop, now),
		Upcoming: len(arrivals) > 0,
		Arrivals: arrivals,
		At:       now,
	})
}

func knownStop(agg *schedule.Aggregator, stop string) bool {
	for _, s := range agg.Stops() {
		if s == stop {
			return true
		}
	}
	return false
}

// pathParam returns a decoded URL parameter; stop names carry spaces and
// apostrophes.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
