package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jgoulah/gridbill/internal/site"
)

var ErrInvalidAmount = errors.New("billing: amount must not be negative")

// SiteLedger is the part of the site graph the ledger writes to.
type SiteLedger interface {
	Get(name string) (site.Site, error)
	SetAmountDue(name string, d decimal.Decimal) error
	SetBillTotal(name string, d decimal.Decimal) error
	SetMonthsOverdue(name string, n int) error
}

// Wallets moves money between manager accounts.
type Wallets interface {
	Balance(username string) (decimal.Decimal, error)
	Credit(username string, amount decimal.Decimal) error
	Debit(username string, amount decimal.Decimal) error
}

// Receipts collects payments that do not belong to a building manager.
type Receipts interface {
	AddGlobalMoney(d decimal.Decimal) error
}

// Ledger applies bills and payments to site balances.
type Ledger struct {
	sites    SiteLedger
	wallets  Wallets
	receipts Receipts
	log      *zap.Logger
}

// NewLedger creates a ledger that posts to sites and moves money between
// wallets and the global receipts.
func NewLedger(sites SiteLedger, wallets Wallets, receipts Receipts, log *zap.Logger) *Ledger {
	return &Ledger{sites: sites, wallets: wallets, receipts: receipts, log: log}
}

// ApplyBill adds amount to the site's balance. Billing a site that still
// owes money counts one more month overdue and grows the running total;
// billing a clear site starts a fresh total.
func (l *Ledger) ApplyBill(name string, amount decimal.Decimal) error {
	s, err := l.sites.Get(name)
	if err != nil {
		return err
	}
	due, err := s.AmountDue()
	if err != nil {
		return err
	}

	var (
		total  decimal.Decimal
		months int
	)
	if !due.IsZero() {
		prevTotal, err := s.BillTotal()
		if err != nil {
			return err
		}
		prevMonths, err := s.MonthsOverdue()
		if err != nil {
			return err
		}
		total = prevTotal.Add(amount)
		months = prevMonths + 1
	} else {
		total = amount
	}

	if err := l.sites.SetMonthsOverdue(name, months); err != nil {
		return err
	}
	if err := l.sites.SetBillTotal(name, total); err != nil {
		return err
	}
	if err := l.sites.SetAmountDue(name, due.Add(amount)); err != nil {
		return err
	}

	l.log.Debug("bill applied",
		zap.String("site", name),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("amount_due", due.Add(amount).StringFixed(2)),
		zap.Int("months_overdue", months),
	)
	return nil
}

// Pay settles up to amount of the site's balance from payer's account. The
// amount actually paid is capped by the payer's money and the balance, and
// is returned; nothing is written when it is zero. An apartment's payment goes to its building's manager; every
// other payment goes to the global receipts.
func (l *Ledger) Pay(name, payer string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	s, err := l.sites.Get(name)
	if err != nil {
		return decimal.Zero, err
	}
	due, err := s.AmountDue()
	if err != nil {
		return decimal.Zero, err
	}
	if !due.IsPositive() {
		return decimal.Zero, nil
	}
	money, err := l.wallets.Balance(payer)
	if err != nil {
		return decimal.Zero, err
	}

	paid := decimal.Min(amount, money, due)
	if !paid.IsPositive() {
		return decimal.Zero, nil
	}

	payee, err := l.payee(s)
	if err != nil {
		return decimal.Zero, err
	}

	if err := l.wallets.Debit(payer, paid); err != nil {
		return decimal.Zero, err
	}
	if err := l.sites.SetAmountDue(name, due.Sub(paid)); err != nil {
		return decimal.Zero, err
	}
	if payee != "" {
		err = l.wallets.Credit(payee, paid)
	} else {
		err = l.receipts.AddGlobalMoney(paid)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("crediting payment for %q: %w", name, err)
	}

	l.log.Info("payment recorded",
		zap.String("site", name),
		zap.String("payer", payer),
		zap.String("paid", paid.StringFixed(2)),
		zap.String("payee", payee),
	)
	return paid, nil
}

// payee returns the manager credited for a payment on s, or "" for the
// global receipts. An apartment whose building has no manager pays into the
// global receipts.
func (l *Ledger) payee(s site.Site) (string, error) {
	if !s.IsApartment() {
		return "", nil
	}
	building, err := l.sites.Get(s.Parent())
	if err != nil {
		return "", fmt.Errorf("resolving building of %q: %w", s.Name(), err)
	}
	return building.Manager(), nil
}
