package catalog

import (
	"errors"
	"fmt"
	"strings"

	"shuttle-tracker/internal/schedule"
)

// ValidationError collects every problem found in a catalog.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("invalid catalog (%d problems): %s", len(e.Problems), strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() []error { return e.Problems }

// Validate checks the invariants the engine relies on and does not re-check
// per evaluation.
func (c *Catalog) Validate() error {
	var problems []error
	add := func(err error) { problems = append(problems, err) }

	codes := make(map[string]struct{}, len(c.Routes))
	ids := make(map[string]struct{}, len(c.Routes))
	for _, r := range c.Routes {
		if r.ID == "" || r.ShortCode == "" || r.Name == "" {
			add(fmt.Errorf("route %q: id, name and short code are required", r.Name))
		}
		if _, dup := codes[r.ShortCode]; dup {
			add(fmt.Errorf("route %q: duplicate short code %q", r.Name, r.ShortCode))
		}
		if _, dup := ids[r.ID]; dup {
			add(fmt.Errorf("route %q: duplicate id %q", r.Name, r.ID))
		}
		codes[r.ShortCode] = struct{}{}
		ids[r.ID] = struct{}{}
		for _, w := range r.Windows {
			if _, err := schedule.ParseDayClass(string(w.Days)); err != nil {
				add(fmt.Errorf("route %s: %w", r.ShortCode, err))
			}
			if w.Start < 0 || w.Start > 24 || w.End < 0 || w.End > 24 {
				add(fmt.Errorf("route %s: window %s hours out of range", r.ShortCode, w))
			}
		}
	}

	for name, code := range c.FeedNames {
		if _, ok := codes[code]; !ok {
			add(fmt.Errorf("feed name %q: %w %q", name, ErrUnknownRoute, code))
		}
	}

	for _, t := range c.Timetables {
		if _, ok := codes[t.Route]; !ok {
			add(fmt.Errorf("timetable %q: %w %q", t.Label, ErrUnknownRoute, t.Route))
		}
		if _, err := schedule.ParseDayClass(string(t.Days)); err != nil {
			add(fmt.Errorf("timetable %q: %w", t.Label, err))
		}
		want := t.Runs()
		seen := make(map[string]struct{}, len(t.Stops))
		for _, s := range t.Stops {
			if len(s.Times) != want {
				add(fmt.Errorf("timetable %q stop %q: %w (%d, want %d)", t.Label, s.Stop, ErrLengthMismatch, len(s.Times), want))
			}
			if _, dup := seen[s.Stop]; dup {
				add(fmt.Errorf("timetable %q: stop %q listed twice", t.Label, s.Stop))
			}
			seen[s.Stop] = struct{}{}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// IsValidation reports whether err came from catalog validation.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
