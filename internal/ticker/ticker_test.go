package ticker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
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
	"github.com/jgoulah/gridbill/internal/snapshot"
)

type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

type env struct {
	settings *settings.Settings
	graph    *site.Graph
	reports  *snapshot.Store
	ticker   *Ticker
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvIn(t, t.TempDir())
}

func newEnvIn(t *testing.T, dir string) *env {
	t.Helper()
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
	reports := snapshot.New(records, graph, engine, ledger, zap.NewNop())
	return &env{
		settings: cfg,
		graph:    graph,
		reports:  reports,
		ticker:   New(cfg, reports, zap.NewNop()),
	}
}

func TestAdvancePeriod(t *testing.T) {
	e := newEnv(t)
	_, err := e.graph.Create("H", site.Home, "", "")
	require.NoError(t, err)

	res, err := e.ticker.AdvancePeriod(context.Background())
	require.NoError(t, err)
	jan := period.Period{Month: time.January, Year: 2026}
	assert.Equal(t, jan, res.Period)
	assert.Equal(t, jan, e.settings.CurrentPeriod())
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, 1, res.Billed)
	assert.NotEmpty(t, res.RunID)

	exists, err := e.reports.Exists(jan)
	require.NoError(t, err)
	assert.True(t, exists)

	res2, err := e.ticker.AdvancePeriod(context.Background())
	require.NoError(t, err)
	assert.Equal(t, period.Period{Month: time.February, Year: 2026}, res2.Period)
	assert.NotEqual(t, res.RunID, res2.RunID)

	s, err := e.graph.Get("H")
	require.NoError(t, err)
	due, err := s.AmountDue()
	require.NoError(t, err)
	assert.Equal(t, "387.64", due.StringFixed(2))
	months, err := s.MonthsOverdue()
	require.NoError(t, err)
	assert.Equal(t, 1, months)
}

func TestAdvancePeriodRefusesExistingReport(t *testing.T) {
	e := newEnv(t)
	jan := period.Period{Month: time.January, Year: 2026}
	_, err := e.reports.Generate(jan)
	require.NoError(t, err)

	_, err = e.ticker.AdvancePeriod(context.Background())
	assert.ErrorIs(t, err, snapshot.ErrAlreadyExists)
	assert.Equal(t, settings.DefaultCurrentPeriod, e.settings.CurrentPeriod())
}

func TestAdvancePeriodCancelledBeforeStart(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ticker.AdvancePeriod(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, settings.DefaultCurrentPeriod, e.settings.CurrentPeriod())
}

func TestFailedGenerateKeepsPeriod(t *testing.T) {
	dir := t.TempDir()
	raw := "unitName,unitType,managerUsername,amountDue,billTotal,monthsOverdue,parentUnitName\n" +
		"G,garage,null,0.00,0.00,0,null\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, site.TableName+recordstore.Ext), []byte(raw), 0644))
	e := newEnvIn(t, dir)

	jan := period.Period{Month: time.January, Year: 2026}
	for range 3 {
		_, err := e.ticker.AdvancePeriod(context.Background())
		assert.ErrorIs(t, err, site.ErrUnsupportedSiteType)
		assert.Equal(t, settings.DefaultCurrentPeriod, e.settings.CurrentPeriod())

		exists, err := e.reports.Exists(jan)
		require.NoError(t, err)
		assert.False(t, exists)
	}
}

type stuckClock struct {
	current period.Period
}

func (c stuckClock) CurrentPeriod() period.Period { return c.current }

func (c stuckClock) SetCurrentPeriod(period.Period) error {
	return errors.New("disk full")
}

func TestFailedPeriodSaveDiscardsReport(t *testing.T) {
	e := newEnv(t)
	_, err := e.graph.Create("H", site.Home, "", "")
	require.NoError(t, err)

	tk := New(stuckClock{current: settings.DefaultCurrentPeriod}, e.reports, zap.NewNop())
	_, err = tk.AdvancePeriod(context.Background())
	assert.ErrorContains(t, err, "disk full")

	jan := period.Period{Month: time.January, Year: 2026}
	exists, err := e.reports.Exists(jan)
	require.NoError(t, err)
	assert.False(t, exists)

	s, err := e.graph.Get("H")
	require.NoError(t, err)
	due, err := s.AmountDue()
	require.NoError(t, err)
	assert.True(t, due.IsZero())
}

type fakeAdvancer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeAdvancer) AdvancePeriod(context.Context) (TickResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return TickResult{RunID: "r"}, f.err
}

func (f *fakeAdvancer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestLoopCheckCountsUnpausedIntervals(t *testing.T) {
	adv := &fakeAdvancer{}
	l := NewLoop(adv, LoopConfig{CheckInterval: time.Hour, TickEvery: 3}, zap.NewNop())
	var ticks []TickResult
	l.OnTick(func(r TickResult) { ticks = append(ticks, r) })
	ctx := context.Background()

	assert.False(t, l.check(ctx))
	l.Pause()
	assert.True(t, l.Paused())
	assert.False(t, l.check(ctx))
	assert.False(t, l.check(ctx))
	l.Resume()
	assert.False(t, l.check(ctx))
	assert.True(t, l.check(ctx))

	assert.Equal(t, 1, adv.count())
	assert.Len(t, ticks, 1)

	// counter restarts after a tick
	assert.False(t, l.check(ctx))
	assert.False(t, l.check(ctx))
	assert.True(t, l.check(ctx))
	assert.Equal(t, 2, adv.count())
}

func TestLoopSurvivesFailedTick(t *testing.T) {
	adv := &fakeAdvancer{err: errors.New("disk full")}
	l := NewLoop(adv, LoopConfig{CheckInterval: time.Hour, TickEvery: 1}, zap.NewNop())
	called := false
	l.OnTick(func(TickResult) { called = true })

	assert.True(t, l.check(context.Background()))
	assert.True(t, l.check(context.Background()))
	assert.Equal(t, 2, adv.count())
	assert.False(t, called)
}

func TestLoopStartStop(t *testing.T) {
	adv := &fakeAdvancer{}
	l := NewLoop(adv, LoopConfig{CheckInterval: 5 * time.Millisecond, TickEvery: 2}, zap.NewNop())

	l.Start(context.Background())
	l.Start(context.Background())
	assert.Eventually(t, func() bool { return adv.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	l.Stop()

	n := adv.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, adv.count())
	l.Stop()
}

func TestNewLoopDefaults(t *testing.T) {
	l := NewLoop(&fakeAdvancer{}, LoopConfig{}, zap.NewNop())
	assert.Equal(t, DefaultLoopConfig(), l.cfg)
}
