package ticker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Advancer runs one tick.
type Advancer interface {
	AdvancePeriod(ctx context.Context) (TickResult, error)
}

// LoopConfig controls how often the loop advances the period.
type LoopConfig struct {
	// CheckInterval is the time between checks.
	CheckInterval time.Duration
	// TickEvery is the number of unpaused checks between ticks.
	TickEvery int
}

// DefaultLoopConfig advances one period every ten minutes.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{CheckInterval: time.Minute, TickEvery: 10}
}

// Loop advances the period on a timer. Ticks run on the loop goroutine one
// at a time; a slow tick delays the next check rather than overlapping it.
type Loop struct {
	adv    Advancer
	cfg    LoopConfig
	log    *zap.Logger
	onTick func(TickResult)

	paused  atomic.Bool
	elapsed int

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewLoop creates a stopped loop over adv. Zero fields in cfg take the
// defaults.
func NewLoop(adv Advancer, cfg LoopConfig, log *zap.Logger) *Loop {
	def := DefaultLoopConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.TickEvery <= 0 {
		cfg.TickEvery = def.TickEvery
	}
	return &Loop{adv: adv, cfg: cfg, log: log}
}

// OnTick registers fn to run after every successful tick, on the loop
// goroutine. Call before Start.
func (l *Loop) OnTick(fn func(TickResult)) { l.onTick = fn }

// Start launches the loop. Calling Start on a running loop does nothing.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.wg.Add(1)
	go l.run(ctx)

	l.log.Info("period loop started",
		zap.Duration("check_interval", l.cfg.CheckInterval),
		zap.Int("tick_every", l.cfg.TickEvery),
	)
}

// Stop ends the loop and waits for an in-flight tick to finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	cancel := l.cancel
	l.mu.Unlock()

	cancel()
	l.wg.Wait()
	l.log.Info("period loop stopped")
}

// Pause stops time from progressing. Checks keep running but do not count.
func (l *Loop) Pause() { l.paused.Store(true) }

// Resume lets time progress again after Pause.
func (l *Loop) Resume() { l.paused.Store(false) }

func (l *Loop) Paused() bool { return l.paused.Load() }

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()
	t := time.NewTicker(l.cfg.CheckInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.check(ctx)
		}
	}
}

// check counts one elapsed interval and ticks when enough have passed. It
// reports whether a tick was attempted.
func (l *Loop) check(ctx context.Context) bool {
	if l.paused.Load() {
		return false
	}
	l.elapsed++
	if l.elapsed < l.cfg.TickEvery {
		return false
	}
	l.elapsed = 0

	res, err := l.adv.AdvancePeriod(ctx)
	if err != nil {
		l.log.Error("period advance failed", zap.Error(err))
		return true
	}
	if l.onTick != nil {
		l.onTick(res)
	}
	return true
}
