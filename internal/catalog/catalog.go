// Package catalog holds the static route configuration: routes, their service
// windows, their timetables and the feed name table. A Catalog is loaded and
// validated once and then treated as immutable.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"shuttle-tracker/internal/schedule"
)

//go:embed data/harvard.json
var embedded []byte

var (
	ErrUnknownRoute   = errors.New("unknown route")
	ErrLengthMismatch = errors.New("stop sequences differ in length")
)

type Route struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	ShortCode string            `json:"shortCode"`
	Color     string            `json:"color"`
	Schedule  string            `json:"schedule"`
	Windows   []schedule.Window `json:"windows"`
	FeedID    string            `json:"feedId,omitempty"`
}

// BindFeedID returns a copy of the route annotated with the identifier the
// live feed uses for it. Binding the same ID again returns an equal value.
func (r Route) BindFeedID(feedID string) Route {
	if r.FeedID == feedID {
		return r
	}
	out := r
	out.Windows = append([]schedule.Window(nil), r.Windows...)
	out.FeedID = feedID
	return out
}

type StopTimes struct {
	Stop  string   `json:"stop"`
	Times []string `json:"times"`
}

// Timetable is one route's table for one day filter. The Nth token at every
// stop belongs to the same run.
type Timetable struct {
	Route string            `json:"route"`
	Days  schedule.DayClass `json:"days"`
	Label string            `json:"label"`
	Stops []StopTimes       `json:"stops"`
}

// Runs is the number of runs in the table.
func (t Timetable) Runs() int {
	if len(t.Stops) == 0 {
		return 0
	}
	return len(t.Stops[0].Times)
}

type Stop struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type Catalog struct {
	Version    string            `json:"version"`
	Timezone   string            `json:"timezone"`
	FeedNames  map[string]string `json:"feedNames"`
	Routes     []Route           `json:"routes"`
	Stops      []Stop            `json:"stops"`
	Timetables []Timetable       `json:"timetables"`
}

// LoadEmbedded parses and validates the catalog compiled into the binary.
func LoadEmbedded() (*Catalog, []schedule.TokenIssue, error) {
	return Parse(embedded)
}

// Parse decodes and validates a catalog document. Token issues are data-quality
// warnings, not failures.
func Parse(data []byte) (*Catalog, []schedule.TokenIssue, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	return &c, c.TokenIssues(), nil
}

// Route looks up a route by its short code.
func (c *Catalog) Route(shortCode string) (Route, bool) {
	for _, r := range c.Routes {
		if r.ShortCode == shortCode {
			return r, true
		}
	}
	return Route{}, false
}

// ShortCodeForFeedName maps a live feed's route label to a short code.
func (c *Catalog) ShortCodeForFeedName(name string) (string, bool) {
	code, ok := c.FeedNames[name]
	return code, ok
}

// WithFeedBinding returns a catalog in which the route with the given short code
// carries feedID. The receiver is not modified. changed is false when the
// binding was already present.
func (c *Catalog) WithFeedBinding(shortCode, feedID string) (out *Catalog, changed bool, err error) {
	idx := -1
	for i, r := range c.Routes {
		if r.ShortCode == shortCode {
			idx = i
			break
		}
	}
	if idx < 0 {
		return c, false, fmt.Errorf("%w: %s", ErrUnknownRoute, shortCode)
	}
	if c.Routes[idx].FeedID == feedID {
		return c, false, nil
	}
	cp := *c
	cp.Routes = append([]Route(nil), c.Routes...)
	cp.Routes[idx] = c.Routes[idx].BindFeedID(feedID)
	return &cp, true, nil
}

// TimetablesFor returns the route's timetables in catalog order.
func (c *Catalog) TimetablesFor(shortCode string) []Timetable {
	var out []Timetable
	for _, t := range c.Timetables {
		if t.Route == shortCode {
			out = append(out, t)
		}
	}
	return out
}

// Contributions normalizes every timetable for the arrival aggregator.
func (c *Catalog) Contributions() []schedule.Contribution {
	out := make([]schedule.Contribution, 0, len(c.Timetables))
	for _, t := range c.Timetables {
		r, ok := c.Route(t.Route)
		if !ok {
			continue
		}
		stops := make(map[string][]schedule.MinuteOfDay, len(t.Stops))
		for _, s := range t.Stops {
			stops[s.Stop] = append(stops[s.Stop], schedule.Normalize(schedule.Strings(s.Times))...)
		}
		out = append(out, schedule.Contribution{
			RouteID:   r.ID,
			RouteName: r.Name,
			Color:     r.Color,
			Days:      t.Days,
			Stops:     stops,
		})
	}
	return out
}

// StopIssue is a malformed token located within the catalog.
type StopIssue struct {
	Timetable string
	Stop      string
	schedule.TokenIssue
}

// TokenIssues lists every malformed token across all timetables.
func (c *Catalog) TokenIssues() []schedule.TokenIssue {
	var out []schedule.TokenIssue
	for _, si := range c.StopIssues() {
		out = append(out, si.TokenIssue)
	}
	return out
}

func (c *Catalog) StopIssues() []StopIssue {
	var out []StopIssue
	for _, t := range c.Timetables {
		for _, s := range t.Stops {
			_, issues := schedule.NormalizeTokens(schedule.Strings(s.Times))
			for _, is := range issues {
				out = append(out, StopIssue{Timetable: t.Label, Stop: s.Stop, TokenIssue: is})
			}
		}
	}
	return out
}

// StopNames returns every stop referenced by a timetable, sorted.
func (c *Catalog) StopNames() []string {
	seen := make(map[string]struct{})
	for _, t := range c.Timetables {
		for _, s := range t.Stops {
			seen[s.Stop] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
