// Package billing turns site usage into bills and applies them to the site
// ledger.
//
// Usage is synthetic: leaves draw a figure from a range that depends on
// their type, buildings sum their apartments. Pricing is a single tier where
// the whole month is charged at the overuse rate once usage reaches the
// threshold.
package billing

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jgoulah/gridbill/internal/settings"
	"github.com/jgoulah/gridbill/internal/site"
)

// Monthly usage ranges in kWh, lower bound inclusive.
const (
	HomeMinKWh      = 1100.0
	HomeMaxKWh      = 3400.0
	ApartmentMinKWh = 600.0
	ApartmentMaxKWh = 1500.0
)

// Source supplies uniformly distributed floats in [0, 1).
type Source interface {
	Float64() float64
}

// NewSource returns a time-seeded source for production use.
func NewSource() Source {
	seed := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(seed, seed>>32|1))
}

// RateProvider returns the prices currently in force.
type RateProvider interface {
	Rates() settings.Rates
}

// Hierarchy resolves a building's apartments.
type Hierarchy interface {
	Children(name string) ([]site.Site, error)
}

// Reading is one measurement of a site: the usage and the bill derived from
// that same usage.
type Reading struct {
	Usage   float64
	Bill    decimal.Decimal
	Overuse bool
}

// Engine computes usage and bills.
type Engine struct {
	sites Hierarchy
	rates RateProvider
	src   Source
	log   *zap.Logger
}

// NewEngine creates an engine that reads prices from rates and draws
// usage from src.
func NewEngine(sites Hierarchy, rates RateProvider, src Source, log *zap.Logger) *Engine {
	if src == nil {
		src = NewSource()
	}
	return &Engine{sites: sites, rates: rates, src: src, log: log}
}

func (e *Engine) draw(lo, hi float64) float64 {
	return lo + e.src.Float64()*(hi-lo)
}

// GenerateUsage draws a month of usage for s. A building's usage is the sum
// of fresh draws for each apartment, so two calls never agree; use Measure
// when usage and bill must match.
func (e *Engine) GenerateUsage(s site.Site) (float64, error) {
	switch s.Type() {
	case site.Home:
		return e.draw(HomeMinKWh, HomeMaxKWh), nil
	case site.Apartment:
		return e.draw(ApartmentMinKWh, ApartmentMaxKWh), nil
	case site.Building:
		children, err := e.sites.Children(s.Name())
		if err != nil {
			return 0, fmt.Errorf("listing apartments of %q: %w", s.Name(), err)
		}
		var total float64
		for _, child := range children {
			u, err := e.GenerateUsage(child)
			if err != nil {
				return 0, err
			}
			total += u
		}
		return total, nil
	default:
		return 0, &site.UnsupportedSiteTypeError{Type: s.Type()}
	}
}

// CalculateBill returns the bill for s along with the usage it was priced
// from.
func (e *Engine) CalculateBill(s site.Site) (decimal.Decimal, float64, error) {
	r, err := e.Measure(s)
	if err != nil {
		return decimal.Zero, 0, err
	}
	return r.Bill, r.Usage, nil
}

// Measure draws usage once per leaf and prices it. A building's usage and
// bill are the sums over its apartments.
func (e *Engine) Measure(s site.Site) (Reading, error) {
	rates := e.rates.Rates()
	return e.reading(s, rates, nil)
}

// MeasureAll measures every site in one pass, keyed by name. Each leaf is
// drawn once and buildings sum the readings of their apartments from the
// same pass, so the readings of a building and its apartments agree.
func (e *Engine) MeasureAll(sites []site.Site) (map[string]Reading, error) {
	rates := e.rates.Rates()
	leaves := make(map[string]Reading)
	out := make(map[string]Reading, len(sites))
	for _, s := range sites {
		r, err := e.reading(s, rates, leaves)
		if err != nil {
			return nil, fmt.Errorf("measuring %q: %w", s.Name(), err)
		}
		out[s.Name()] = r
	}
	return out, nil
}

func (e *Engine) reading(s site.Site, rates settings.Rates, leaves map[string]Reading) (Reading, error) {
	usage, bill, err := e.measure(s, rates, leaves)
	if err != nil {
		return Reading{}, err
	}
	r := Reading{Usage: usage, Bill: bill, Overuse: usage > rates.OveruseThresholdKWh}
	e.log.Debug("site measured",
		zap.String("site", s.Name()),
		zap.Float64("usage_kwh", usage),
		zap.String("bill", bill.StringFixed(2)),
	)
	return r, nil
}

// measure prices s. When leaves is non-nil, leaf readings are taken from
// and recorded in it.
func (e *Engine) measure(s site.Site, rates settings.Rates, leaves map[string]Reading) (float64, decimal.Decimal, error) {
	switch s.Type() {
	case site.Home, site.Apartment:
		if r, ok := leaves[s.Name()]; ok {
			return r.Usage, r.Bill, nil
		}
		usage, err := e.GenerateUsage(s)
		if err != nil {
			return 0, decimal.Zero, err
		}
		bill := Price(usage, rates)
		if leaves != nil {
			leaves[s.Name()] = Reading{Usage: usage, Bill: bill}
		}
		return usage, bill, nil
	case site.Building:
		children, err := e.sites.Children(s.Name())
		if err != nil {
			return 0, decimal.Zero, fmt.Errorf("listing apartments of %q: %w", s.Name(), err)
		}
		var usage float64
		bill := decimal.Zero
		for _, child := range children {
			u, b, err := e.measure(child, rates, leaves)
			if err != nil {
				return 0, decimal.Zero, err
			}
			usage += u
			bill = bill.Add(b)
		}
		return usage, bill, nil
	default:
		return 0, decimal.Zero, &site.UnsupportedSiteTypeError{Type: s.Type()}
	}
}

// Price charges the whole usage at one rate: the overuse rate when usage
// reaches the threshold, the base rate otherwise. The result is rounded to
// cents.
func Price(usage float64, rates settings.Rates) decimal.Decimal {
	rate := rates.PricePerKWh
	if usage >= rates.OveruseThresholdKWh {
		rate = rates.OverusePricePerKWh
	}
	return decimal.NewFromFloat(usage).Mul(rate).Round(2)
}
