package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jgoulah/gridbill/internal/account"
	"github.com/jgoulah/gridbill/internal/billing"
	"github.com/jgoulah/gridbill/internal/period"
	"github.com/jgoulah/gridbill/internal/recordstore"
	"github.com/jgoulah/gridbill/internal/settings"
	"github.com/jgoulah/gridbill/internal/site"
)

type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

type env struct {
	records *recordstore.Store
	graph   *site.Graph
	reports *Store
}

// newEnv wires a store whose every draw is the range minimum: homes use
// 1100 kWh (193.82) and apartments 600 kWh (105.72).
func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	records, err := recordstore.Open(dir)
	require.NoError(t, err)
	accounts, err := account.Open(records, zap.NewNop())
	require.NoError(t, err)
	graph, err := site.Open(records, accounts, zap.NewNop())
	require.NoError(t, err)
	cfg, err := settings.Open(filepath.Join(dir, settings.FileName))
	require.NoError(t, err)

	engine := billing.NewEngine(graph, cfg, constSource(0), zap.NewNop())
	ledger := billing.NewLedger(graph, accounts, cfg, zap.NewNop())
	return &env{
		records: records,
		graph:   graph,
		reports: New(records, graph, engine, ledger, zap.NewNop()),
	}
}

func (e *env) add(t *testing.T, name string, typ site.Type, parent string) {
	t.Helper()
	_, err := e.graph.Create(name, typ, "", parent)
	require.NoError(t, err)
}

var dec2025 = period.Period{Month: time.December, Year: 2025}

func TestGenerate(t *testing.T) {
	e := newEnv(t)
	e.add(t, "H", site.Home, "")
	e.add(t, "Tower", site.Building, "")
	e.add(t, "A1", site.Apartment, "Tower")
	e.add(t, "A2", site.Apartment, "Tower")

	snap, err := e.reports.Generate(dec2025)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Len())
	assert.Equal(t, filepath.Join(e.records.Root(), "Monthly Reports", "2025-12-EnergyUsage.csv"), snap.Path())

	raw, err := os.ReadFile(snap.Path())
	require.NoError(t, err)
	assert.Equal(t,
		"unitName,energyUsage,energyOveruse,billTotal\n"+
			"H,1100,no,193.82\n"+
			"Tower,1200,no,211.44\n"+
			"A1,600,no,105.72\n"+
			"A2,600,no,105.72\n",
		string(raw))

	rows, err := snap.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Tower", rows[1].Site)
	assert.Equal(t, 1200.0, rows[1].UsageKWh)
	assert.False(t, rows[1].Overuse)
}

func TestGenerateIsOncePerPeriod(t *testing.T) {
	e := newEnv(t)
	e.add(t, "H", site.Home, "")
	snap, err := e.reports.Generate(dec2025)
	require.NoError(t, err)
	before, err := os.ReadFile(snap.Path())
	require.NoError(t, err)

	e.add(t, "H2", site.Home, "")
	_, err = e.reports.Generate(dec2025)
	var aee *AlreadyExistsError
	require.ErrorAs(t, err, &aee)
	assert.Equal(t, dec2025, aee.Period)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	after, err := os.ReadFile(snap.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestGetMissingIsNotAnError(t *testing.T) {
	e := newEnv(t)
	_, found, err := e.reports.Get(dec2025)
	require.NoError(t, err)
	assert.False(t, found)

	exists, err := e.reports.Exists(dec2025)
	require.NoError(t, err)
	assert.False(t, exists)

	_, found, err = e.reports.Bill(dec2025, "H")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBillAndUsage(t *testing.T) {
	e := newEnv(t)
	e.add(t, "H", site.Home, "")
	_, err := e.reports.Generate(dec2025)
	require.NoError(t, err)

	bill, found, err := e.reports.Bill(dec2025, "H")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "193.82", bill.StringFixed(2))

	usage, found, err := e.reports.Usage(dec2025, "H")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1100.0, usage)

	_, found, err = e.reports.Usage(dec2025, "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestList(t *testing.T) {
	e := newEnv(t)
	e.add(t, "H", site.Home, "")

	empty, err := e.reports.List()
	require.NoError(t, err)
	assert.Empty(t, empty)

	jan := period.Period{Month: time.January, Year: 2026}
	nov := period.Period{Month: time.November, Year: 2025}
	for _, p := range []period.Period{jan, dec2025, nov} {
		_, err := e.reports.Generate(p)
		require.NoError(t, err)
	}
	stray := filepath.Join(e.records.Root(), Dir, "notes.csv")
	require.NoError(t, os.WriteFile(stray, []byte("a\n"), 0644))

	got, err := e.reports.List()
	require.NoError(t, err)
	assert.Equal(t, []period.Period{nov, dec2025, jan}, got)
}

func assertDue(t *testing.T, g *site.Graph, name, want string) {
	t.Helper()
	s, err := g.Get(name)
	require.NoError(t, err)
	due, err := s.AmountDue()
	require.NoError(t, err)
	assert.Equal(t, want, due.StringFixed(2), name)
}

func TestSendAllBills(t *testing.T) {
	e := newEnv(t)
	e.add(t, "H", site.Home, "")
	e.add(t, "Gone", site.Home, "")
	_, err := e.reports.Generate(dec2025)
	require.NoError(t, err)

	require.NoError(t, e.graph.Delete("Gone"))
	e.add(t, "Late", site.Home, "")

	sent, err := e.reports.SendAllBills(dec2025)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assertDue(t, e.graph, "H", "193.82")
	assertDue(t, e.graph, "Late", "0.00")

	// stored bill is reused, not recalculated
	sent, err = e.reports.SendAllBills(dec2025)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assertDue(t, e.graph, "H", "387.64")
}

func TestGenerateFailureLeavesNoReport(t *testing.T) {
	e := newEnv(t)
	e.add(t, "H", site.Home, "")

	// a plain file where the reports directory belongs makes the write fail
	blocker := filepath.Join(e.records.Root(), Dir)
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	_, err := e.reports.Generate(dec2025)
	assert.ErrorIs(t, err, recordstore.ErrPersistence)

	require.NoError(t, os.Remove(blocker))
	exists, err := e.reports.Exists(dec2025)
	require.NoError(t, err)
	assert.False(t, exists)

	snap, err := e.reports.Generate(dec2025)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
}

func TestSendAllBillsWithoutReport(t *testing.T) {
	e := newEnv(t)
	_, err := e.reports.SendAllBills(dec2025)
	assert.ErrorIs(t, err, recordstore.ErrNotFound)
}

func TestBillRecords(t *testing.T) {
	e := newEnv(t)
	e.add(t, "H", site.Home, "")
	snap, err := e.reports.Generate(dec2025)
	require.NoError(t, err)

	recs, err := snap.BillRecords("run-7")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "run-7", recs[0].RunID)
	assert.Equal(t, 2025, recs[0].Year)
	assert.Equal(t, 12, recs[0].Month)
	assert.Equal(t, "H", recs[0].Site)
	assert.Equal(t, "193.82", recs[0].Bill.StringFixed(2))
}
