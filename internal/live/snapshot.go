// Package live holds the latest observation of vehicles from the real-time
// feed. Snapshots are immutable once built; the store swaps whole snapshots.
package live

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"shuttle-tracker/internal/catalog"
)

type Vehicle struct {
	VehicleID string    `json:"vehicleId"`
	RouteID   string    `json:"routeId"`   // feed route identifier
	RouteName string    `json:"routeName"` // feed route label
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	SeenAt    time.Time `json:"seenAt"`
}

type Snapshot struct {
	Vehicles  []Vehicle
	FetchedAt time.Time
}

// Observes reports whether any vehicle in the snapshot belongs to the route,
// either by feed label through the catalog's name table or by a bound feed ID.
// A nil or empty snapshot observes nothing.
func (s *Snapshot) Observes(c *catalog.Catalog, r catalog.Route) bool {
	return len(s.VehiclesFor(c, r)) > 0
}

func (s *Snapshot) VehiclesFor(c *catalog.Catalog, r catalog.Route) []Vehicle {
	if s == nil {
		return nil
	}
	var out []Vehicle
	for _, v := range s.Vehicles {
		if r.FeedID != "" && v.RouteID == r.FeedID {
			out = append(out, v)
			continue
		}
		if code, ok := c.ShortCodeForFeedName(v.RouteName); ok && code == r.ShortCode {
			out = append(out, v)
		}
	}
	return out
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Vehicles)
}

// Store publishes the current snapshot to concurrent readers.
type Store struct {
	cur atomic.Pointer[Snapshot]
}

// Load returns the current snapshot, possibly nil.
func (st *Store) Load() *Snapshot { return st.cur.Load() }

// Swap installs s and returns the previous snapshot.
func (st *Store) Swap(s *Snapshot) *Snapshot { return st.cur.Swap(s) }

// Buffer accumulates positions as they arrive, latest per vehicle.
type Buffer struct {
	mu       sync.Mutex
	vehicles map[string]Vehicle
}

func NewBuffer() *Buffer {
	return &Buffer{vehicles: make(map[string]Vehicle)}
}

func (b *Buffer) Put(v Vehicle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.vehicles[v.VehicleID]; ok && prev.SeenAt.After(v.SeenAt) {
		return
	}
	b.vehicles[v.VehicleID] = v
}

// Freeze copies the buffer into a snapshot, evicting vehicles not seen within
// staleAfter of now. staleAfter <= 0 keeps everything.
func (b *Buffer) Freeze(now time.Time, staleAfter time.Duration) *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := &Snapshot{FetchedAt: now, Vehicles: make([]Vehicle, 0, len(b.vehicles))}
	for id, v := range b.vehicles {
		if staleAfter > 0 && now.Sub(v.SeenAt) > staleAfter {
			delete(b.vehicles, id)
			continue
		}
		out.Vehicles = append(out.Vehicles, v)
	}
	sort.Slice(out.Vehicles, func(i, j int) bool { return out.Vehicles[i].VehicleID < out.Vehicles[j].VehicleID })
	return out
}

// NearestStop returns the catalog stop closest to a position. Distances are
// planar in degrees, which is enough to rank stops a few hundred metres apart.
func NearestStop(stops []catalog.Stop, lat, lon float64) (string, bool) {
	best, bestD := "", math.Inf(1)
	for _, s := range stops {
		d := math.Hypot(lat-s.Lat, lon-s.Lon)
		if d < bestD {
			best, bestD = s.Name, d
		}
	}
	return best, best != ""
}
