// Package snapshot stores monthly usage reports. A report is generated once
// per billing period from the live site graph and never changes afterwards;
// it is the source of the bills sent for that period.
package snapshot

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jgoulah/gridbill/internal/billing"
	"github.com/jgoulah/gridbill/internal/period"
	"github.com/jgoulah/gridbill/internal/recordstore"
	"github.com/jgoulah/gridbill/internal/site"
	"github.com/jgoulah/gridbill/pkg/models"
)

// Dir is the record store sub-directory holding reports.
const Dir = "Monthly Reports"

const nameSuffix = "-EnergyUsage"

const (
	FieldSite    = "unitName"
	FieldUsage   = "energyUsage"
	FieldOveruse = "energyOveruse"
	FieldBill    = "billTotal"
)

// Schema is the report table layout.
var Schema = []string{FieldSite, FieldUsage, FieldOveruse, FieldBill}

var ErrAlreadyExists = errors.New("snapshot: report already exists")

// AlreadyExistsError is returned when a period's report has already been
// generated.
type AlreadyExistsError struct {
	Period period.Period
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("snapshot: report for %s already exists", e.Period.Label())
}

func (e *AlreadyExistsError) Unwrap() error { return ErrAlreadyExists }

// Row is one site's line in a report.
type Row struct {
	Site     string
	UsageKWh float64
	Overuse  bool
	Bill     decimal.Decimal
}

func encodeRow(r Row) recordstore.Record {
	overuse := "no"
	if r.Overuse {
		overuse = "yes"
	}
	return recordstore.Record{
		FieldSite:    r.Site,
		FieldUsage:   strconv.FormatFloat(r.UsageKWh, 'f', -1, 64),
		FieldOveruse: overuse,
		FieldBill:    r.Bill.StringFixed(2),
	}
}

func decodeRow(rec recordstore.Record) (Row, error) {
	name := rec.Value(FieldSite)
	usage, err := strconv.ParseFloat(rec.Value(FieldUsage), 64)
	if err != nil {
		return Row{}, fmt.Errorf("%w: report row %q usage %q", recordstore.ErrParse, name, rec.Value(FieldUsage))
	}
	bill, err := decimal.NewFromString(rec.Value(FieldBill))
	if err != nil {
		return Row{}, fmt.Errorf("%w: report row %q bill %q", recordstore.ErrParse, name, rec.Value(FieldBill))
	}
	return Row{
		Site:     name,
		UsageKWh: usage,
		Overuse:  strings.EqualFold(rec.Value(FieldOveruse), "yes"),
		Bill:     bill,
	}, nil
}

// Snapshot is one loaded report.
type Snapshot struct {
	Period period.Period
	table  *recordstore.Table
}

// Len returns the number of rows.
func (s *Snapshot) Len() int { return s.table.Len() }

// Path returns the report file.
func (s *Snapshot) Path() string { return s.table.Path() }

// Rows decodes every row in generation order.
func (s *Snapshot) Rows() ([]Row, error) {
	var rows []Row
	err := s.table.ForEach(func(rec recordstore.Record) error {
		r, err := decodeRow(rec)
		if err != nil {
			return err
		}
		rows = append(rows, r)
		return nil
	})
	return rows, err
}

// Row returns the line for the named site.
func (s *Snapshot) Row(siteName string) (Row, bool, error) {
	recs, err := s.table.Query(FieldSite, siteName)
	if err != nil || len(recs) == 0 {
		return Row{}, false, err
	}
	r, err := decodeRow(recs[0])
	return r, err == nil, err
}

// BillRecords converts the report into bill history records tagged with
// runID.
func (s *Snapshot) BillRecords(runID string) ([]models.BillRecord, error) {
	rows, err := s.Rows()
	if err != nil {
		return nil, err
	}
	out := make([]models.BillRecord, len(rows))
	for i, r := range rows {
		out[i] = models.BillRecord{
			RunID:    runID,
			Year:     s.Period.Year,
			Month:    int(s.Period.Month),
			Site:     r.Site,
			UsageKWh: r.UsageKWh,
			Overuse:  r.Overuse,
			Bill:     r.Bill,
		}
	}
	return out, nil
}

// Sites is the read side of the site graph.
type Sites interface {
	All() []site.Site
	FindByName(name string) (site.Site, bool, error)
}

// Meter measures all sites in one consistent pass.
type Meter interface {
	MeasureAll(sites []site.Site) (map[string]billing.Reading, error)
}

// BillApplier posts a bill to a site's ledger.
type BillApplier interface {
	ApplyBill(name string, amount decimal.Decimal) error
}

// Store generates, reads and bills from reports.
type Store struct {
	records *recordstore.Store
	sites   Sites
	meter   Meter
	ledger  BillApplier
	log     *zap.Logger
}

// New creates a report store over the record store. Reports are measured
// with meter and billed through ledger.
func New(records *recordstore.Store, sites Sites, meter Meter, ledger BillApplier, log *zap.Logger) *Store {
	return &Store{records: records, sites: sites, meter: meter, ledger: ledger, log: log}
}

// TableName returns the record store name of a period's report.
func TableName(p period.Period) string {
	return Dir + "/" + p.ID() + nameSuffix
}

// Exists reports whether the period's report has been generated.
func (s *Store) Exists(p period.Period) (bool, error) {
	return s.records.Exists(TableName(p))
}

// Generate measures every site and writes the period's report in a single
// file write. It fails with *AlreadyExistsError when the report exists.
func (s *Store) Generate(p period.Period) (*Snapshot, error) {
	exists, err := s.Exists(p)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &AlreadyExistsError{Period: p}
	}

	sites := s.sites.All()
	readings, err := s.meter.MeasureAll(sites)
	if err != nil {
		return nil, fmt.Errorf("measuring sites for %s: %w", p.Label(), err)
	}
	recs := make([]recordstore.Record, 0, len(sites))
	for _, st := range sites {
		r := readings[st.Name()]
		recs = append(recs, encodeRow(Row{
			Site:     st.Name(),
			UsageKWh: r.Usage,
			Overuse:  r.Overuse,
			Bill:     r.Bill,
		}))
	}

	t, err := s.records.CreateWith(Schema, TableName(p), recs, false)
	if err != nil {
		if errors.Is(err, recordstore.ErrAlreadyExists) {
			return nil, &AlreadyExistsError{Period: p}
		}
		return nil, fmt.Errorf("writing report for %s: %w", p.Label(), err)
	}

	s.log.Info("monthly report generated",
		zap.String("period", p.ID()),
		zap.Int("rows", len(recs)),
	)
	return &Snapshot{Period: p, table: t}, nil
}

// Discard removes the period's report so it can be generated again.
func (s *Store) Discard(p period.Period) error {
	if err := s.records.Remove(TableName(p)); err != nil {
		return fmt.Errorf("discarding report for %s: %w", p.Label(), err)
	}
	s.log.Info("monthly report discarded", zap.String("period", p.ID()))
	return nil
}

// Get loads the period's report. found is false when it has not been
// generated.
func (s *Store) Get(p period.Period) (*Snapshot, bool, error) {
	t, err := s.records.Load(TableName(p))
	if err != nil {
		if recordstore.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &Snapshot{Period: p, table: t}, true, nil
}

// List returns the periods that have a report on disk, oldest first. Files
// in the reports directory that do not name a period are ignored.
func (s *Store) List() ([]period.Period, error) {
	names, err := s.records.List(Dir)
	if err != nil {
		return nil, err
	}
	var out []period.Period
	for _, name := range names {
		if !strings.HasSuffix(name, nameSuffix) {
			continue
		}
		p, err := period.ParseID(strings.TrimSuffix(name, nameSuffix))
		if err != nil {
			s.log.Debug("skipping unrecognised report file", zap.String("name", name))
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b period.Period) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		default:
			return 0
		}
	})
	return out, nil
}

// Bill returns the stored bill of one site for a period.
func (s *Store) Bill(p period.Period, siteName string) (decimal.Decimal, bool, error) {
	row, found, err := s.row(p, siteName)
	return row.Bill, found, err
}

// Usage returns the stored usage of one site for a period.
func (s *Store) Usage(p period.Period, siteName string) (float64, bool, error) {
	row, found, err := s.row(p, siteName)
	return row.UsageKWh, found, err
}

func (s *Store) row(p period.Period, siteName string) (Row, bool, error) {
	snap, found, err := s.Get(p)
	if err != nil || !found {
		return Row{}, false, err
	}
	return snap.Row(siteName)
}

// SendAllBills applies each row's stored bill to the live site of the same
// name. Rows whose site no longer exists are skipped. It returns the number
// of bills applied.
func (s *Store) SendAllBills(p period.Period) (int, error) {
	snap, found, err := s.Get(p)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: no report for %s", recordstore.ErrNotFound, p.Label())
	}
	rows, err := snap.Rows()
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, r := range rows {
		_, exists, err := s.sites.FindByName(r.Site)
		if err != nil {
			return sent, err
		}
		if !exists {
			s.log.Debug("skipping bill for removed site",
				zap.String("period", p.ID()),
				zap.String("site", r.Site),
			)
			continue
		}
		if err := s.ledger.ApplyBill(r.Site, r.Bill); err != nil {
			return sent, fmt.Errorf("sending bill to %q: %w", r.Site, err)
		}
		sent++
	}

	s.log.Info("bills sent",
		zap.String("period", p.ID()),
		zap.Int("sent", sent),
		zap.Int("skipped", len(rows)-sent),
	)
	return sent, nil
}
