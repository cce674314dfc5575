package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/gridbill/internal/period"
)

func TestParsePeriodArg(t *testing.T) {
	want := period.Period{Month: time.September, Year: 2026}
	for _, in := range []string{"9/2026", "2026-9", "2026-09", "sept 2026", "September 2026", " 9 2026 "} {
		got, err := parsePeriodArg(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "13/2026", "someday", "smarch 2026", "sep twenty"} {
		_, err := parsePeriodArg(in)
		assert.Error(t, err, in)
	}
}

func TestParseMoney(t *testing.T) {
	d, err := parseMoney("$12.50")
	require.NoError(t, err)
	assert.Equal(t, "12.50", d.StringFixed(2))

	_, err = parseMoney("-1")
	assert.Error(t, err)
	_, err = parseMoney("lots")
	assert.Error(t, err)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "$1,234.50", formatMoney(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "-$3.00", formatMoney(decimal.RequireFromString("-3")))
	assert.Equal(t, "1,954.4 kWh", formatKWh(1954.37))
	assert.Equal(t, "-", orDash(""))
}
