package schedule

import (
	"slices"
	"sort"
	"time"
)

// MaxTimesPerRoute caps the upcoming minutes listed for one route at a stop.
const MaxTimesPerRoute = 3

// Contribution is one route timetable registered under a day filter, already
// normalized. Stops maps stop name to that stop's minutes; NoRun entries are allowed.
type Contribution struct {
	RouteID   string
	RouteName string
	Color     string
	Days      DayClass
	Stops     map[string][]MinuteOfDay
}

// ArrivalEntry is what one route contributes to a stop's upcoming list.
type ArrivalEntry struct {
	RouteID   string        `json:"routeId"`
	RouteName string        `json:"routeName"`
	Color     string        `json:"color"`
	Minutes   []MinuteOfDay `json:"minutes"`
}

// Soonest is the first upcoming minute, or NoRun for an empty entry.
func (e ArrivalEntry) Soonest() MinuteOfDay {
	if len(e.Minutes) == 0 {
		return NoRun
	}
	return e.Minutes[0]
}

// RouteSet holds the IDs of routes currently running.
type RouteSet map[string]struct{}

func NewRouteSet(ids ...string) RouteSet {
	s := make(RouteSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s RouteSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

type stopEntry struct {
	routeID   string
	routeName string
	color     string
	days      DayClass
	minutes   []MinuteOfDay // non-null only
}

// Aggregator answers per-stop questions over resident, immutable timetables.
// It is safe for concurrent use.
type Aggregator struct {
	byStop map[string][]stopEntry
	stops  []string
}

func NewAggregator(contribs []Contribution) *Aggregator {
	a := &Aggregator{byStop: make(map[string][]stopEntry)}
	for _, c := range contribs {
		// sorted iteration keeps entry order independent of map order
		names := make([]string, 0, len(c.Stops))
		for stop := range c.Stops {
			names = append(names, stop)
		}
		sort.Strings(names)
		for _, stop := range names {
			mins := make([]MinuteOfDay, 0, len(c.Stops[stop]))
			for _, m := range c.Stops[stop] {
				if m.Valid() {
					mins = append(mins, m)
				}
			}
			a.byStop[stop] = append(a.byStop[stop], stopEntry{
				routeID:   c.RouteID,
				routeName: c.RouteName,
				color:     c.Color,
				days:      c.Days,
				minutes:   mins,
			})
		}
	}
	for stop := range a.byStop {
		a.stops = append(a.stops, stop)
	}
	sort.Strings(a.stops)
	return a
}

// Stops lists every stop that appears in any timetable.
func (a *Aggregator) Stops() []string {
	return slices.Clone(a.stops)
}

// IsServedToday reports whether any timetable registered for today's day class
// has at least one run at the stop, whatever the hour.
func (a *Aggregator) IsServedToday(stop string, now time.Time) bool {
	day := now.Weekday()
	for _, e := range a.byStop[stop] {
		if e.days.Matches(day) && len(e.minutes) > 0 {
			return true
		}
	}
	return false
}

// NextArrivals lists upcoming arrivals at a stop for the routes in active,
// merged per route, at most MaxTimesPerRoute minutes each, soonest route first.
func (a *Aggregator) NextArrivals(stop string, now time.Time, active RouteSet) []ArrivalEntry {
	day := now.Weekday()
	nowMin := MinuteOfDay(now.Hour()*60 + now.Minute())

	merged := make(map[string]*ArrivalEntry)
	var order []string
	for _, e := range a.byStop[stop] {
		if !e.days.Matches(day) || !active.Has(e.routeID) {
			continue
		}
		var upcoming []MinuteOfDay
		for _, m := range e.minutes {
			if m >= nowMin {
				upcoming = append(upcoming, m)
			}
		}
		if len(upcoming) == 0 {
			continue
		}
		entry, ok := merged[e.routeID]
		if !ok {
			entry = &ArrivalEntry{RouteID: e.routeID, RouteName: e.routeName, Color: e.color}
			merged[e.routeID] = entry
			order = append(order, e.routeID)
		}
		entry.Minutes = append(entry.Minutes, upcoming...)
	}

	out := make([]ArrivalEntry, 0, len(order))
	for _, id := range order {
		entry := merged[id]
		slices.Sort(entry.Minutes)
		entry.Minutes = slices.Compact(entry.Minutes)
		if len(entry.Minutes) > MaxTimesPerRoute {
			entry.Minutes = entry.Minutes[:MaxTimesPerRoute]
		}
		entry.Minutes = slices.Clip(entry.Minutes)
		out = append(out, *entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Soonest() != out[j].Soonest() {
			return out[i].Soonest() < out[j].Soonest()
		}
		if out[i].RouteName != out[j].RouteName {
			return out[i].RouteName < out[j].RouteName
		}
		return out[i].RouteID < out[j].RouteID
	})
	return out
}

// HasUpcoming is the boolean companion of NextArrivals.
func (a *Aggregator) HasUpcoming(stop string, now time.Time, active RouteSet) bool {
	return len(a.NextArrivals(stop, now, active)) > 0
}
