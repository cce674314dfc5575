// Package ticker advances the billing period: it moves the current month
// forward, generates that month's report and sends its bills.
package ticker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jgoulah/gridbill/internal/period"
	"github.com/jgoulah/gridbill/internal/snapshot"
)

// Clock holds the current billing period.
type Clock interface {
	CurrentPeriod() period.Period
	SetCurrentPeriod(p period.Period) error
}

// Reports generates and bills monthly reports.
type Reports interface {
	Exists(p period.Period) (bool, error)
	Generate(p period.Period) (*snapshot.Snapshot, error)
	Discard(p period.Period) error
	SendAllBills(p period.Period) (int, error)
}

// TickResult describes one completed period advance.
type TickResult struct {
	RunID  string
	Period period.Period
	Rows   int
	Billed int
}

// Ticker performs period advances.
type Ticker struct {
	clock   Clock
	reports Reports
	log     *zap.Logger
}

// New creates a ticker that moves clock forward and bills through reports.
func New(clock Clock, reports Reports, log *zap.Logger) *Ticker {
	return &Ticker{clock: clock, reports: reports, log: log}
}

// AdvancePeriod generates next month's report, moves the current period to
// it and sends the bills. ctx is only checked before any state changes;
// once started, a tick runs to completion.
//
// The period only moves once the report is written, and a report whose
// period could not be saved is discarded, so a failed tick can be retried
// without skipping a month. Bills are sent last: a crash while sending can
// leave some ledgers unbilled for the new period.
func (t *Ticker) AdvancePeriod(ctx context.Context) (TickResult, error) {
	if err := ctx.Err(); err != nil {
		return TickResult{}, err
	}

	next := t.clock.CurrentPeriod().Next()
	exists, err := t.reports.Exists(next)
	if err != nil {
		return TickResult{}, err
	}
	if exists {
		return TickResult{}, &snapshot.AlreadyExistsError{Period: next}
	}

	res := TickResult{RunID: uuid.NewString(), Period: next}
	log := t.log.With(zap.String("run_id", res.RunID), zap.String("period", next.ID()))

	snap, err := t.reports.Generate(next)
	if err != nil {
		return TickResult{}, err
	}
	res.Rows = snap.Len()

	if err := t.clock.SetCurrentPeriod(next); err != nil {
		if derr := t.reports.Discard(next); derr != nil {
			log.Error("discarding report after failed advance", zap.Error(derr))
			return TickResult{}, fmt.Errorf("advancing to %s: %w", next, errors.Join(err, derr))
		}
		return TickResult{}, fmt.Errorf("advancing to %s: %w", next, err)
	}

	billed, err := t.reports.SendAllBills(next)
	res.Billed = billed
	if err != nil {
		return res, err
	}

	log.Info("period advanced", zap.Int("rows", res.Rows), zap.Int("billed", res.Billed))
	return res, nil
}
