package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// TimeToken is one raw timetable cell: "-" or "" for no run, "8:00", or "8:00AM".
type TimeToken string

// MinuteOfDay counts minutes since local midnight.
type MinuteOfDay int

// NoRun marks a timetable position where the run skips the stop.
const NoRun MinuteOfDay = -1

const MinutesPerDay = 24 * 60

func (m MinuteOfDay) Valid() bool { return m >= 0 }

// Clock renders the minute as "h:mm AM".
func (m MinuteOfDay) Clock() string {
	if !m.Valid() {
		return "-"
	}
	v := int(m) % MinutesPerDay
	h, mm := v/60, v%60
	period := "AM"
	if h >= 12 {
		period = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, mm, period)
}

var ErrMalformedToken = errors.New("malformed time token")

// TokenIssue records a cell that could not be read and was treated as no run.
type TokenIssue struct {
	Index int
	Token TimeToken
	Err   error
}

func (i TokenIssue) Error() string {
	return fmt.Sprintf("token %d (%q): %v", i.Index, string(i.Token), i.Err)
}

func (i TokenIssue) Unwrap() error { return i.Err }

// Period is the half of the day an inference chain is currently in.
type Period int

const (
	PeriodUnknown Period = iota
	PeriodAM
	PeriodPM
)

func (p Period) String() string {
	switch p {
	case PeriodAM:
		return "AM"
	case PeriodPM:
		return "PM"
	default:
		return "unknown"
	}
}

// Inference carries AM/PM state across the tokens of one stop. The zero value
// is not ready; use NewInference.
type Inference struct {
	period   Period
	lastHour int
}

func NewInference() *Inference {
	return &Inference{period: PeriodUnknown, lastHour: -1}
}

func (s *Inference) Period() Period { return s.period }

// Step consumes one token. ok is false for placeholders and malformed tokens;
// neither changes the inference state.
func (s *Inference) Step(tok TimeToken) (m MinuteOfDay, ok bool, err error) {
	p, err := parseToken(tok)
	if err != nil {
		return NoRun, false, err
	}
	if p.empty {
		return NoRun, false, nil
	}

	switch {
	case p.marked != PeriodUnknown:
		s.period = p.marked
	case p.hour == 12 && s.lastHour >= 10:
		s.period = PeriodPM
	case p.hour < s.lastHour && s.lastHour >= 11:
		s.period = PeriodPM
	case s.period == PeriodPM && p.hour < s.lastHour && p.hour != 12:
		// still PM
	case s.period == PeriodUnknown:
		s.period = PeriodAM
	}
	s.lastHour = p.hour

	return MinuteOfDay(to24h(p.hour, s.period)*60 + p.minute), true, nil
}

func to24h(hour int, period Period) int {
	switch {
	case period == PeriodPM && hour != 12:
		return hour + 12
	case period == PeriodAM && hour == 12:
		return 0
	default:
		return hour
	}
}

// Normalize converts one stop's tokens to minutes, NoRun where there is no run.
func Normalize(tokens []TimeToken) []MinuteOfDay {
	out, _ := NormalizeTokens(tokens)
	return out
}

// NormalizeTokens is Normalize that also reports malformed tokens.
func NormalizeTokens(tokens []TimeToken) ([]MinuteOfDay, []TokenIssue) {
	out := make([]MinuteOfDay, len(tokens))
	var issues []TokenIssue
	inf := NewInference()
	for i, tok := range tokens {
		m, _, err := inf.Step(tok)
		if err != nil {
			issues = append(issues, TokenIssue{Index: i, Token: tok, Err: err})
		}
		out[i] = m
	}
	return out, issues
}

// Strings is a convenience for callers holding plain string slices.
func Strings(values []string) []TimeToken {
	out := make([]TimeToken, len(values))
	for i, v := range values {
		out[i] = TimeToken(v)
	}
	return out
}

type parsedToken struct {
	empty  bool
	hour   int
	minute int
	marked Period
}

func parseToken(tok TimeToken) (parsedToken, error) {
	s := strings.ToUpper(strings.TrimSpace(string(tok)))
	if s == "" || s == "-" {
		return parsedToken{empty: true}, nil
	}

	var p parsedToken
	switch {
	case strings.HasSuffix(s, "AM"):
		p.marked = PeriodAM
		s = strings.TrimSpace(strings.TrimSuffix(s, "AM"))
	case strings.HasSuffix(s, "PM"):
		p.marked = PeriodPM
		s = strings.TrimSpace(strings.TrimSuffix(s, "PM"))
	}

	hs, ms, hasMinutes := strings.Cut(s, ":")
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 12 {
		return parsedToken{}, fmt.Errorf("%w: hour %q", ErrMalformedToken, hs)
	}
	if p.marked != PeriodUnknown && h == 0 {
		return parsedToken{}, fmt.Errorf("%w: hour 0 with %s", ErrMalformedToken, p.marked)
	}
	p.hour = h
	if hasMinutes {
		if len(ms) == 0 || len(ms) > 2 {
			return parsedToken{}, fmt.Errorf("%w: minute %q", ErrMalformedToken, ms)
		}
		m, err := strconv.Atoi(ms)
		if err != nil || m < 0 || m > 59 {
			return parsedToken{}, fmt.Errorf("%w: minute %q", ErrMalformedToken, ms)
		}
		p.minute = m
	}
	return p, nil
}
