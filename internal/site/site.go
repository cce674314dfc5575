// Package site models billable sites (homes, buildings and the apartments
// inside buildings) as views over rows of the units table.
//
// Relations are stored as names: an apartment names its parent building and
// a site names its manager. A building's apartments are never stored on the
// building; they are found by scanning for rows that name it as parent.
package site

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/jgoulah/gridbill/internal/recordstore"
)

// Type is the kind of a site.
type Type string

const (
	Home      Type = "home"
	Building  Type = "building"
	Apartment Type = "apartment"
)

// ParseType validates a stored or user supplied type.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case Home, Building, Apartment:
		return t, nil
	default:
		return "", &UnsupportedSiteTypeError{Type: t}
	}
}

// TableName is the record store table holding sites.
const TableName = "units"

// Field names of the units table.
const (
	FieldName          = "unitName"
	FieldType          = "unitType"
	FieldManager       = "managerUsername"
	FieldAmountDue     = "amountDue"
	FieldBillTotal     = "billTotal"
	FieldMonthsOverdue = "monthsOverdue"
	FieldParent        = "parentUnitName"
)

// Schema is the units table layout.
var Schema = []string{FieldName, FieldType, FieldManager, FieldAmountDue, FieldBillTotal, FieldMonthsOverdue, FieldParent}

// Site is a read-only copy of one units row. Values are decoded on access.
// A Site does not follow later writes; fetch it again from the Graph after
// changing it.
type Site struct {
	rec recordstore.Record
}

func (s Site) Name() string    { return s.rec.Value(FieldName) }
func (s Site) Type() Type      { return Type(s.rec.Value(FieldType)) }
func (s Site) Manager() string { return s.rec.Ref(FieldManager) }
func (s Site) Parent() string  { return s.rec.Ref(FieldParent) }

func (s Site) IsHome() bool      { return s.Type() == Home }
func (s Site) IsBuilding() bool  { return s.Type() == Building }
func (s Site) IsApartment() bool { return s.Type() == Apartment }

// AmountDue is the unpaid balance.
func (s Site) AmountDue() (decimal.Decimal, error) {
	return s.decimalField(FieldAmountDue)
}

// BillTotal is the running total billed since the balance was last clear.
func (s Site) BillTotal() (decimal.Decimal, error) {
	return s.decimalField(FieldBillTotal)
}

// MonthsOverdue counts consecutive bills issued on top of an unpaid balance.
func (s Site) MonthsOverdue() (int, error) {
	raw := s.rec.Value(FieldMonthsOverdue)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: site %q %s %q", recordstore.ErrParse, s.Name(), FieldMonthsOverdue, raw)
	}
	return n, nil
}

func (s Site) decimalField(field string) (decimal.Decimal, error) {
	raw := s.rec.Value(field)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: site %q %s %q", recordstore.ErrParse, s.Name(), field, raw)
	}
	return d, nil
}

// Record returns a copy of the underlying row.
func (s Site) Record() recordstore.Record {
	return s.rec.Clone()
}

// FormatMoney renders an amount the way ledger fields are stored.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
