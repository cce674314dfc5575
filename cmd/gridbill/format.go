package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/jgoulah/gridbill/internal/period"
)

// formatMoney renders an amount as "$1,234.56"
func formatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", d.Round(2).InexactFloat64())
}

// formatKWh renders usage as "1,954.4 kWh"
func formatKWh(kwh float64) string {
	return humanize.FormatFloat("#,###.#", kwh) + " kWh"
}

// parseMoney reads a non-negative amount given on the command line
func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount must not be negative, got %s", s)
	}
	return d, nil
}

// parsePeriodArg accepts "12/2025", "2025-12" or "dec 2025"
func parsePeriodArg(s string) (period.Period, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		return period.Parse(s)
	}
	if strings.Contains(s, "-") {
		return period.ParseID(s)
	}

	fields := strings.Fields(s)
	if len(fields) == 2 {
		month, err := period.ParseMonth(fields[0])
		if err != nil {
			return period.Period{}, err
		}
		year, err := strconv.Atoi(fields[1])
		if err != nil {
			return period.Period{}, fmt.Errorf("invalid year %q", fields[1])
		}
		return period.New(int(month), year)
	}
	return period.Period{}, fmt.Errorf("invalid period %q (use MM/YYYY, YYYY-MM or \"Month YYYY\")", s)
}

// orDash shows "-" for empty references
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
