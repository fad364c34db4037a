package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_RoundTripVector(t *testing.T) {
	got := Normalize(Strings([]string{"8:00AM", "8:10", "8:20", "12:05PM", "12:15", "1:30"}))
	assert.Equal(t, []MinuteOfDay{480, 490, 500, 725, 735, 810}, got)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i], got[i-1])
	}
}

func TestNormalize_PlaceholdersAreNoRun(t *testing.T) {
	got := Normalize(Strings([]string{"11:20AM", "-", "", "11:50", "12:10"}))
	assert.Equal(t, []MinuteOfDay{680, NoRun, NoRun, 710, 730}, got)
}

func TestNormalize_LeadingPlaceholdersDefaultAM(t *testing.T) {
	got := Normalize(Strings([]string{"-", "-", "4:30", "4:50"}))
	assert.Equal(t, []MinuteOfDay{NoRun, NoRun, 270, 290}, got)
}

func TestNormalize_ExplicitSuffixWinsAtItsPosition(t *testing.T) {
	cases := [][]string{
		{"-", "5:15PM", "5:45", "6:15"},
		{"12:42AM", "1:25", "2:00"},
		{"12:00PM", "12:20", "1:00"},
		{"7:40am", "8:00"},
		{"9:30 pm", "10:00"},
	}
	for _, tokens := range cases {
		inf := NewInference()
		for _, tok := range tokens {
			_, ok, err := inf.Step(TimeToken(tok))
			require.NoError(t, err)
			if ok {
				p, _ := parseToken(TimeToken(tok))
				require.NotEqual(t, PeriodUnknown, p.marked, "first real token must be marked in %v", tokens)
				assert.Equal(t, p.marked, inf.Period(), "tokens %v", tokens)
				break
			}
		}
	}
}

func TestNormalize_MalformedTokenIsReportedAndSkipped(t *testing.T) {
	got, issues := NormalizeTokens(Strings([]string{"10:50AM", "1x:00", "11:10", "25:00", "11:61", "12:00"}))
	assert.Equal(t, []MinuteOfDay{650, NoRun, 670, NoRun, NoRun, 720}, got)
	require.Len(t, issues, 3)
	assert.Equal(t, 1, issues[0].Index)
	assert.ErrorIs(t, issues[0], ErrMalformedToken)
	assert.Equal(t, 3, issues[1].Index)
	assert.Equal(t, 4, issues[2].Index)
}

func TestNormalize_StateIsPerCall(t *testing.T) {
	pm := Normalize(Strings([]string{"5:00PM", "6:00"}))
	fresh := Normalize(Strings([]string{"6:00"}))
	assert.Equal(t, MinuteOfDay(18*60), pm[1])
	assert.Equal(t, MinuteOfDay(6*60), fresh[0])
}

func TestNormalize_Idempotent(t *testing.T) {
	in := Strings([]string{"7:40AM", "8:00", "11:40", "12:00", "12:20", "1:00", "-", "3:10"})
	assert.Equal(t, Normalize(in), Normalize(in))
}

func TestInference_TieBreakRules(t *testing.T) {
	tests := []struct {
		name   string
		seed   []string
		token  string
		want   MinuteOfDay
		period Period
	}{
		{"noon after ten", []string{"10:40"}, "12:00", 12 * 60, PeriodPM},
		{"noon after eleven", []string{"11:55"}, "12:10", 12*60 + 10, PeriodPM},
		{"twelve after nine stays AM", []string{"9:50"}, "12:00", 0, PeriodAM},
		{"drop after eleven flips PM", []string{"11:30"}, "1:00", 13 * 60, PeriodPM},
		{"drop after ten keeps AM", []string{"10:30"}, "9:00", 9 * 60, PeriodAM},
		{"PM stays PM on decrease", []string{"5:00PM", "9:00"}, "8:00", 20 * 60, PeriodPM},
		{"carry AM forward", []string{"7:00AM"}, "8:00", 8 * 60, PeriodAM},
		{"carry PM forward", []string{"4:20PM"}, "4:45", 16*60 + 45, PeriodPM},
		{"explicit AM after PM", []string{"11:40PM"}, "12:00AM", 0, PeriodAM},
		{"no history defaults AM", nil, "6:15", 6*60 + 15, PeriodAM},
		{"bare hour reads as H:00", []string{"7:00AM"}, "8", 8 * 60, PeriodAM},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inf := NewInference()
			for _, s := range tt.seed {
				_, _, err := inf.Step(TimeToken(s))
				require.NoError(t, err)
			}
			got, ok, err := inf.Step(TimeToken(tt.token))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.period, inf.Period())
		})
	}
}

func TestInference_PlaceholderDoesNotPerturb(t *testing.T) {
	inf := NewInference()
	_, _, _ = inf.Step("11:30")
	_, ok, err := inf.Step("-")
	require.NoError(t, err)
	assert.False(t, ok)
	got, _, _ := inf.Step("1:00")
	assert.Equal(t, MinuteOfDay(13*60), got, "last real hour (11) must still drive the flip")
}

func TestMinuteOfDay_Clock(t *testing.T) {
	assert.Equal(t, "12:00 AM", MinuteOfDay(0).Clock())
	assert.Equal(t, "8:05 AM", MinuteOfDay(485).Clock())
	assert.Equal(t, "12:30 PM", MinuteOfDay(750).Clock())
	assert.Equal(t, "11:59 PM", MinuteOfDay(1439).Clock())
	assert.Equal(t, "-", NoRun.Clock())
}
