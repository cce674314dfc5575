// Package account keeps the manager accounts sites refer to by name: which
// unit each manager owns and the money they hold. Identity and
// authentication live elsewhere; this table only backs the foreign key and
// the payment flow.
package account

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jgoulah/gridbill/internal/recordstore"
)

// TableName is the record store table holding accounts.
const TableName = "users"

const (
	FieldUsername = "username"
	FieldUnitName = "unitName"
	FieldMoney    = "money"
)

// Schema is the accounts table layout.
var Schema = []string{FieldUsername, FieldUnitName, FieldMoney}

var (
	ErrNotFound          = errors.New("account: not found")
	ErrAlreadyExists     = errors.New("account: already exists")
	ErrInvalidName       = errors.New("account: invalid username")
	ErrInvalidAmount     = errors.New("account: invalid amount")
	ErrInsufficientFunds = errors.New("account: insufficient funds")
	ErrDataIntegrity     = errors.New("account: data integrity violation")
)

// Account is a decoded row of the accounts table.
type Account struct {
	Username string
	UnitName string // empty when the manager owns no unit
	Money    decimal.Decimal
}

// Registry reads and writes accounts. Every change is written through to
// the table file immediately.
type Registry struct {
	table *recordstore.Table
	log   *zap.Logger
}

// Open loads the accounts table from store, creating it on first use.
func Open(store *recordstore.Store, log *zap.Logger) (*Registry, error) {
	t, err := store.CreateOrLoad(Schema, TableName)
	if err != nil {
		return nil, fmt.Errorf("opening accounts table: %w", err)
	}
	return &Registry{table: t, log: log}, nil
}

func decode(rec recordstore.Record) (Account, error) {
	money, err := decimal.NewFromString(rec.Value(FieldMoney))
	if err != nil {
		return Account{}, fmt.Errorf("%w: account %q money %q", recordstore.ErrParse, rec.Value(FieldUsername), rec.Value(FieldMoney))
	}
	return Account{
		Username: rec.Value(FieldUsername),
		UnitName: rec.Ref(FieldUnitName),
		Money:    money,
	}, nil
}

// Create adds an account with no unit and zero money.
func (r *Registry) Create(username string) (Account, error) {
	if username == "" || username == recordstore.Null {
		return Account{}, fmt.Errorf("%w: %q", ErrInvalidName, username)
	}
	exists, err := r.table.Contains(FieldUsername, username)
	if err != nil {
		return Account{}, err
	}
	if exists {
		return Account{}, fmt.Errorf("%w: %q", ErrAlreadyExists, username)
	}

	rec := recordstore.Record{
		FieldUsername: username,
		FieldUnitName: recordstore.Null,
		FieldMoney:    "0.00",
	}
	if err := r.table.Insert(rec, false); err != nil {
		return Account{}, fmt.Errorf("inserting account %q: %w", username, err)
	}
	r.log.Debug("account created", zap.String("username", username))
	return decode(rec)
}

// Find looks up an account. found is false when no row matches.
func (r *Registry) Find(username string) (Account, bool, error) {
	rows, err := r.table.Query(FieldUsername, username)
	if err != nil {
		return Account{}, false, err
	}
	switch len(rows) {
	case 0:
		return Account{}, false, nil
	case 1:
		a, err := decode(rows[0])
		return a, err == nil, err
	default:
		return Account{}, false, fmt.Errorf("%w: %d accounts named %q", ErrDataIntegrity, len(rows), username)
	}
}

// Get is Find that treats a miss as ErrNotFound.
func (r *Registry) Get(username string) (Account, error) {
	a, found, err := r.Find(username)
	if err != nil {
		return Account{}, err
	}
	if !found {
		return Account{}, fmt.Errorf("%w: %q", ErrNotFound, username)
	}
	return a, nil
}

// All returns every account in insertion order.
func (r *Registry) All() ([]Account, error) {
	var out []Account
	err := r.table.ForEach(func(rec recordstore.Record) error {
		a, err := decode(rec)
		if err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	return out, err
}

func (r *Registry) set(username, field, value string) error {
	n, err := r.table.Update(FieldUsername, username, field, value)
	if err != nil {
		return fmt.Errorf("updating account %q: %w", username, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, username)
	}
	return nil
}

// SetUnit records unitName as the unit username owns.
func (r *Registry) SetUnit(username, unitName string) error {
	return r.set(username, FieldUnitName, recordstore.NullableRef(unitName))
}

// ClearUnit drops the owned unit reference of username. A missing account
// is ignored so deleting a site whose manager is gone still succeeds.
func (r *Registry) ClearUnit(username string) error {
	err := r.SetUnit(username, "")
	if errors.Is(err, ErrNotFound) {
		r.log.Warn("clearing unit of unknown account", zap.String("username", username))
		return nil
	}
	return err
}

// RenameUnit rewrites every reference to unit oldName.
func (r *Registry) RenameUnit(oldName, newName string) error {
	if _, err := r.table.Update(FieldUnitName, oldName, FieldUnitName, recordstore.NullableRef(newName)); err != nil {
		return fmt.Errorf("renaming unit references %q: %w", oldName, err)
	}
	return nil
}

// Credit adds amount to the account's money.
func (r *Registry) Credit(username string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	a, err := r.Get(username)
	if err != nil {
		return err
	}
	return r.set(username, FieldMoney, a.Money.Add(amount).StringFixed(2))
}

// Debit removes amount from the account's money. It never goes negative.
func (r *Registry) Debit(username string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	a, err := r.Get(username)
	if err != nil {
		return err
	}
	if a.Money.LessThan(amount) {
		return fmt.Errorf("%w: %q has %s, needs %s", ErrInsufficientFunds, username, a.Money.StringFixed(2), amount.StringFixed(2))
	}
	return r.set(username, FieldMoney, a.Money.Sub(amount).StringFixed(2))
}

// UnitOf returns the unit username owns, or "" when it owns none.
func (r *Registry) UnitOf(username string) (string, error) {
	a, err := r.Get(username)
	if err != nil {
		return "", err
	}
	return a.UnitName, nil
}

// Owns reports whether username currently owns unitName. A missing account
// owns nothing.
func (r *Registry) Owns(username, unitName string) (bool, error) {
	a, found, err := r.Find(username)
	if err != nil || !found {
		return false, err
	}
	return a.UnitName == unitName, nil
}

// Balance returns the money username holds.
func (r *Registry) Balance(username string) (decimal.Decimal, error) {
	a, err := r.Get(username)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Money, nil
}
