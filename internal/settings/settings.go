// Package settings persists the admin settings file: price table, overuse
// threshold, receipts collected outside buildings, and the current billing
// period.
//
// The file holds one key=value pair per line and is rewritten in full on
// every change, the same no-log flat-file pattern the record store uses.
package settings

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/moby/sys/atomicwriter"
	"github.com/shopspring/decimal"

	"github.com/jgoulah/gridbill/internal/period"
)

// FileName is the settings file name inside the data directory.
const FileName = "adminSettings.ini"

// Keys in file order.
const (
	KeyPricePerKWh        = "PricePerKWh"
	KeyOveruseThreshold   = "OveruseThreshold"
	KeyOverusePricePerKWh = "OverusePricePerKWh"
	KeyGlobalMoney        = "GlobalMoney"
	KeyCurrentDate        = "CurrentDate"
)

var keys = []string{KeyPricePerKWh, KeyOveruseThreshold, KeyOverusePricePerKWh, KeyGlobalMoney, KeyCurrentDate}

// Defaults applied when the file is first created or reset.
var (
	DefaultPricePerKWh        = decimal.RequireFromString("0.1762")
	DefaultOveruseThreshold   = 15000.0
	DefaultOverusePricePerKWh = decimal.RequireFromString("0.389")
	DefaultCurrentPeriod      = period.Period{Month: time.December, Year: 2025}
)

var (
	ErrInvalidValue = errors.New("settings: invalid value")
	ErrUnknownKey   = errors.New("settings: unknown key")
)

// Rates is the pricing view the billing engine reads.
type Rates struct {
	PricePerKWh         decimal.Decimal
	OveruseThresholdKWh float64
	OverusePricePerKWh  decimal.Decimal
}

// Settings is the in-memory copy of the settings file.
type Settings struct {
	path string

	pricePerKWh        decimal.Decimal
	overuseThreshold   float64
	overusePricePerKWh decimal.Decimal
	globalMoney        decimal.Decimal
	currentPeriod      period.Period
}

// Open loads the settings file at path, creating it with defaults if it
// does not exist.
func Open(path string) (*Settings, error) {
	s := &Settings{path: path}
	s.applyDefaults()
	s.globalMoney = decimal.Zero
	s.currentPeriod = DefaultCurrentPeriod

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating settings directory: %w", err)
		}
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	if err := s.parse(data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return s, nil
}

func (s *Settings) applyDefaults() {
	s.pricePerKWh = DefaultPricePerKWh
	s.overuseThreshold = DefaultOveruseThreshold
	s.overusePricePerKWh = DefaultOverusePricePerKWh
}

func (s *Settings) parse(data []byte) error {
	seen := make(map[string]bool, len(keys))
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("%w: line %q is not key=value", ErrInvalidValue, line)
		}
		key = strings.TrimSpace(key)
		if err := s.assign(key, strings.TrimSpace(value)); err != nil {
			return err
		}
		seen[key] = true
	}
	if err := sc.Err(); err != nil {
		return err
	}
	for _, k := range keys {
		if !seen[k] {
			return fmt.Errorf("%w: %s missing", ErrInvalidValue, k)
		}
	}
	return nil
}

// assign validates and stores one raw value without saving.
func (s *Settings) assign(key, value string) error {
	switch key {
	case KeyPricePerKWh:
		d, err := parsePrice(key, value)
		if err != nil {
			return err
		}
		s.pricePerKWh = d
	case KeyOverusePricePerKWh:
		d, err := parsePrice(key, value)
		if err != nil {
			return err
		}
		s.overusePricePerKWh = d
	case KeyOveruseThreshold:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, value)
		}
		s.overuseThreshold = f
	case KeyGlobalMoney:
		d, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, value)
		}
		s.globalMoney = d
	case KeyCurrentDate:
		p, err := period.Parse(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
		}
		s.currentPeriod = p
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return nil
}

func parsePrice(key, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil || d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, value)
	}
	return d, nil
}

func (s *Settings) encode() []byte {
	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(s.raw(k))
	}
	return buf.Bytes()
}

func (s *Settings) raw(key string) string {
	switch key {
	case KeyPricePerKWh:
		return s.pricePerKWh.String()
	case KeyOveruseThreshold:
		return strconv.FormatFloat(s.overuseThreshold, 'f', -1, 64)
	case KeyOverusePricePerKWh:
		return s.overusePricePerKWh.String()
	case KeyGlobalMoney:
		return s.globalMoney.StringFixed(2)
	case KeyCurrentDate:
		return s.currentPeriod.String()
	}
	return ""
}

func (s *Settings) save() error {
	if err := atomicwriter.WriteFile(s.path, s.encode(), 0644); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	return nil
}

// update runs mutate and rewrites the file, restoring the previous values
// if the write fails.
func (s *Settings) update(mutate func() error) error {
	prev := *s
	if err := mutate(); err != nil {
		*s = prev
		return err
	}
	if err := s.save(); err != nil {
		*s = prev
		return err
	}
	return nil
}

// Path returns the settings file location.
func (s *Settings) Path() string { return s.path }

// Rates returns the current pricing values.
func (s *Settings) Rates() Rates {
	return Rates{
		PricePerKWh:         s.pricePerKWh,
		OveruseThresholdKWh: s.overuseThreshold,
		OverusePricePerKWh:  s.overusePricePerKWh,
	}
}

func (s *Settings) PricePerKWh() decimal.Decimal        { return s.pricePerKWh }
func (s *Settings) OveruseThresholdKWh() float64        { return s.overuseThreshold }
func (s *Settings) OverusePricePerKWh() decimal.Decimal { return s.overusePricePerKWh }
func (s *Settings) GlobalMoney() decimal.Decimal        { return s.globalMoney }
func (s *Settings) CurrentPeriod() period.Period        { return s.currentPeriod }

// Get returns the raw file value of key.
func (s *Settings) Get(key string) (string, error) {
	for _, k := range keys {
		if k == key {
			return s.raw(k), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

// Keys returns the settings keys in file order.
func Keys() []string {
	return append([]string(nil), keys...)
}

// Set parses value for key and persists it.
func (s *Settings) Set(key, value string) error {
	return s.update(func() error { return s.assign(key, strings.TrimSpace(value)) })
}

// SetPricePerKWh persists the base price.
func (s *Settings) SetPricePerKWh(d decimal.Decimal) error {
	return s.Set(KeyPricePerKWh, d.String())
}

func (s *Settings) SetOveruseThresholdKWh(f float64) error {
	return s.Set(KeyOveruseThreshold, strconv.FormatFloat(f, 'f', -1, 64))
}

func (s *Settings) SetOverusePricePerKWh(d decimal.Decimal) error {
	return s.Set(KeyOverusePricePerKWh, d.String())
}

// SetGlobalMoney replaces the global receipts total.
func (s *Settings) SetGlobalMoney(d decimal.Decimal) error {
	return s.update(func() error {
		s.globalMoney = d
		return nil
	})
}

// AddGlobalMoney credits receipts from sites that do not belong to a
// building.
func (s *Settings) AddGlobalMoney(d decimal.Decimal) error {
	return s.SetGlobalMoney(s.globalMoney.Add(d))
}

// SetCurrentPeriod persists p as the current billing period.
func (s *Settings) SetCurrentPeriod(p period.Period) error {
	return s.update(func() error {
		if _, err := period.New(int(p.Month), p.Year); err != nil {
			return err
		}
		s.currentPeriod = p
		return nil
	})
}

// Reset restores the price table defaults. Global money and the current
// period are kept since they are running state rather than settings.
func (s *Settings) Reset() error {
	return s.update(func() error {
		s.applyDefaults()
		return nil
	})
}
