package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name string
		in   Period
		want Period
	}{
		{"mid year", Period{time.June, 2025}, Period{time.July, 2025}},
		{"december rolls over", Period{time.December, 2025}, Period{time.January, 2026}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Next())
		})
	}
}

func TestParse(t *testing.T) {
	p, err := Parse("12/2025")
	require.NoError(t, err)
	assert.Equal(t, Period{time.December, 2025}, p)
	assert.Equal(t, "12/2025", p.String())
	assert.Equal(t, "2025-12", p.ID())

	for _, bad := range []string{"13/2025", "0/2025", "12-2025", "x/2025", "12/y"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrInvalid, bad)
	}
}

func TestParseID(t *testing.T) {
	p, err := ParseID("2026-1-EnergyUsage")
	require.NoError(t, err)
	assert.Equal(t, Period{time.January, 2026}, p)

	_, err = ParseID("2026")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseMonth(t *testing.T) {
	for in, want := range map[string]time.Month{
		"Sept":     time.September,
		" march ":  time.March,
		"dec":      time.December,
		"7":        time.July,
		"FEBRUARY": time.February,
	} {
		got, err := ParseMonth(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMonth("smarch")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestBefore(t *testing.T) {
	assert.True(t, Period{time.December, 2025}.Before(Period{time.January, 2026}))
	assert.False(t, Period{time.March, 2026}.Before(Period{time.February, 2026}))
	assert.Equal(t, "December 2025", Period{time.December, 2025}.Label())
}
