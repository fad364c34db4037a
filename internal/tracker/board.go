package tracker

import (
	"sort"
	"time"

	"shuttle-tracker/internal/catalog"
	"shuttle-tracker/internal/live"
	"shuttle-tracker/internal/schedule"
)

// Board is everything a presentation layer needs for one instant.
type Board struct {
	TickID         string        `json:"tickId"`
	GeneratedAt    time.Time     `json:"generatedAt"`
	CatalogVersion string        `json:"catalogVersion"`
	Routes         []RouteStatus `json:"routes"`
	Stops          []StopBoard   `json:"stops"`
	Vehicles       []VehicleView `json:"vehicles"`
	Suppressed     int           `json:"suppressed"`
}

type RouteStatus struct {
	ShortCode string            `json:"shortCode"`
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Color     string            `json:"color"`
	Schedule  string            `json:"schedule"`
	Status    schedule.Status   `json:"status"`
	Confirmed bool              `json:"confirmed"`
	Vehicles  int               `json:"vehicles"`
	Windows   []schedule.Window `json:"windows"`
}

type StopBoard struct {
	Stop        string                  `json:"stop"`
	ServedToday bool                    `json:"servedToday"`
	Arrivals    []schedule.ArrivalEntry `json:"arrivals"`
}

type VehicleView struct {
	live.Vehicle
	Route       string `json:"route"`
	NearestStop string `json:"nearestStop,omitempty"`
}

// RouteStatuses evaluates every route of the catalog at now. Running routes
// come first, then routes are ordered by name.
func RouteStatuses(c *catalog.Catalog, snap *live.Snapshot, now time.Time) []RouteStatus {
	out := make([]RouteStatus, 0, len(c.Routes))
	for _, r := range c.Routes {
		static := schedule.IsRunning(r.Windows, now)
		vs := snap.VehiclesFor(c, r)
		a := schedule.Assess(static, len(vs) > 0)
		out = append(out, RouteStatus{
			ShortCode: r.ShortCode,
			ID:        r.ID,
			Name:      r.Name,
			Color:     r.Color,
			Schedule:  r.Schedule,
			Status:    a.Status,
			Confirmed: a.Confirmed,
			Vehicles:  len(vs),
			Windows:   r.Windows,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Status == schedule.Running, out[j].Status == schedule.Running
		if ri != rj {
			return ri
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ActiveRoutes returns the IDs of routes in the running state.
func ActiveRoutes(statuses []RouteStatus) schedule.RouteSet {
	ids := make([]string, 0, len(statuses))
	for _, s := range statuses {
		if s.Status == schedule.Running {
			ids = append(ids, s.ID)
		}
	}
	return schedule.NewRouteSet(ids...)
}

// BuildBoard assembles a board from the catalog, its aggregator and the live
// snapshot. It reads but never mutates its inputs.
func BuildBoard(c *catalog.Catalog, agg *schedule.Aggregator, snap *live.Snapshot, now time.Time, tickID string) *Board {
	b := &Board{
		TickID:         tickID,
		GeneratedAt:    now,
		CatalogVersion: c.Version,
		Routes:         RouteStatuses(c, snap, now),
	}
	active := ActiveRoutes(b.Routes)

	for _, stop := range agg.Stops() {
		b.Stops = append(b.Stops, StopBoard{
			Stop:        stop,
			ServedToday: agg.IsServedToday(stop, now),
			Arrivals:    agg.NextArrivals(stop, now, active),
		})
	}

	for _, r := range c.Routes {
		vs := snap.VehiclesFor(c, r)
		if len(vs) == 0 {
			continue
		}
		if !active.Has(r.ID) {
			b.Suppressed += len(vs)
			continue
		}
		for _, v := range vs {
			view := VehicleView{Vehicle: v, Route: r.ShortCode}
			if name, ok := live.NearestStop(c.Stops, v.Lat, v.Lon); ok {
				view.NearestStop = name
			}
			b.Vehicles = append(b.Vehicles, view)
		}
	}
	sort.Slice(b.Vehicles, func(i, j int) bool { return b.Vehicles[i].VehicleID < b.Vehicles[j].VehicleID })
	return b
}

func (b *Board) runningAndConfirmed() (running, confirmed int) {
	for _, r := range b.Routes {
		if r.Status == schedule.Running {
			running++
		}
		if r.Confirmed {
			confirmed++
		}
	}
	return running, confirmed
}

func (b *Board) servedStops() int {
	n := 0
	for _, s := range b.Stops {
		if s.ServedToday {
			n++
		}
	}
	return n
}
