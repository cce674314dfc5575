package site

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jgoulah/gridbill/internal/recordstore"
)

// Owners is the manager registry sites point at by name.
type Owners interface {
	// UnitOf returns the unit username owns, or "" when none.
	UnitOf(username string) (string, error)
	Owns(username, unitName string) (bool, error)
	SetUnit(username, unitName string) error
	ClearUnit(username string) error
	RenameUnit(oldName, newName string) error
}

// Graph is the set of sites in the units table, linked by name.
type Graph struct {
	table  *recordstore.Table
	owners Owners
	log    *zap.Logger
}

// Open loads the units table from store, creating it on first use. owners
// may be nil when no manager registry is wired in.
func Open(store *recordstore.Store, owners Owners, log *zap.Logger) (*Graph, error) {
	t, err := store.CreateOrLoad(Schema, TableName)
	if err != nil {
		return nil, fmt.Errorf("opening units table: %w", err)
	}
	return &Graph{table: t, owners: owners, log: log}, nil
}

// FindByName returns the site called name. found is false when no row
// matches; more than one match is a *DataIntegrityError.
func (g *Graph) FindByName(name string) (Site, bool, error) {
	rows, err := g.table.Query(FieldName, name)
	if err != nil {
		return Site{}, false, err
	}
	switch len(rows) {
	case 0:
		return Site{}, false, nil
	case 1:
		return Site{rec: rows[0]}, true, nil
	default:
		return Site{}, false, &DataIntegrityError{Name: name, Count: len(rows)}
	}
}

// Get is FindByName that treats a miss as ErrNotFound.
func (g *Graph) Get(name string) (Site, error) {
	s, found, err := g.FindByName(name)
	if err != nil {
		return Site{}, err
	}
	if !found {
		return Site{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return s, nil
}

// Create adds a site with zeroed ledger fields. Apartments must name an
// existing building as parent; other types must not have one. manager may
// be empty; otherwise it must be a registered account, and it is assigned
// the new site as with Assign.
func (g *Graph) Create(name string, typ Type, manager, parent string) (Site, error) {
	if err := validName(name); err != nil {
		return Site{}, err
	}
	if _, err := ParseType(string(typ)); err != nil {
		return Site{}, err
	}

	_, found, err := g.FindByName(name)
	if err != nil {
		return Site{}, err
	}
	if found {
		return Site{}, fmt.Errorf("%w: %q", ErrAlreadyExists, name)
	}

	if typ == Apartment {
		if parent == "" {
			return Site{}, fmt.Errorf("%w: apartment %q", ErrMissingParent, name)
		}
		if err := g.checkParent(parent); err != nil {
			return Site{}, err
		}
	} else if parent != "" {
		return Site{}, fmt.Errorf("%w: %s %q cannot have a parent", ErrInvalidParent, typ, name)
	}

	if manager != "" {
		if g.owners == nil {
			return Site{}, fmt.Errorf("site: no manager registry configured")
		}
		if _, err := g.owners.UnitOf(manager); err != nil {
			return Site{}, fmt.Errorf("manager of site %q: %w", name, err)
		}
	}

	rec := recordstore.Record{
		FieldName:          name,
		FieldType:          string(typ),
		FieldManager:       recordstore.Null,
		FieldAmountDue:     "0.00",
		FieldBillTotal:     "0.00",
		FieldMonthsOverdue: "0",
		FieldParent:        recordstore.NullableRef(parent),
	}
	if err := g.table.Insert(rec, false); err != nil {
		return Site{}, fmt.Errorf("inserting site %q: %w", name, err)
	}

	if manager != "" {
		if err := g.Assign(manager, name); err != nil {
			if _, derr := g.table.DeleteWhere(FieldName, name); derr != nil {
				g.log.Error("removing half-created site", zap.String("site", name), zap.Error(derr))
			}
			return Site{}, err
		}
	}

	g.log.Info("site created",
		zap.String("site", name),
		zap.String("type", string(typ)),
		zap.String("manager", manager),
		zap.String("parent", parent),
	)
	return g.Get(name)
}

func validName(name string) error {
	if name == "" || name == recordstore.Null {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (g *Graph) checkParent(parent string) error {
	p, found, err := g.FindByName(parent)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %q", ErrParentNotFound, parent)
	}
	if !p.IsBuilding() {
		return fmt.Errorf("%w: %q is a %s, not a building", ErrInvalidParent, parent, p.Type())
	}
	return nil
}

// Children returns the apartments whose parent is the named building. The
// table is scanned on every call so the result is never stale.
func (g *Graph) Children(name string) ([]Site, error) {
	rows, err := g.table.Query(FieldParent, name)
	if err != nil {
		return nil, err
	}
	var out []Site
	for _, rec := range rows {
		if Type(rec.Value(FieldType)) == Apartment {
			out = append(out, Site{rec: rec})
		}
	}
	return out, nil
}

// All returns every site in insertion order.
func (g *Graph) All() []Site {
	rows := g.table.Rows()
	out := make([]Site, len(rows))
	for i, rec := range rows {
		out[i] = Site{rec: rec}
	}
	return out
}

// ForEach calls fn for every site in insertion order.
func (g *Graph) ForEach(fn func(Site) error) error {
	return g.table.ForEach(func(rec recordstore.Record) error {
		return fn(Site{rec: rec})
	})
}

// Len returns the number of sites.
func (g *Graph) Len() int { return g.table.Len() }

// Delete removes the named site. A building's apartments are deleted first,
// each fetched fresh, and the owning manager's unit reference is cleared.
func (g *Graph) Delete(name string) error {
	s, err := g.Get(name)
	if err != nil {
		return err
	}

	if s.IsBuilding() {
		children, err := g.Children(name)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := g.Delete(child.Name()); err != nil {
				return fmt.Errorf("deleting apartment %q of %q: %w", child.Name(), name, err)
			}
		}
	}

	if err := g.release(s); err != nil {
		return fmt.Errorf("clearing manager %q of %q: %w", s.Manager(), name, err)
	}

	if _, err := g.table.DeleteWhere(FieldName, name); err != nil {
		return fmt.Errorf("deleting site %q: %w", name, err)
	}
	g.log.Info("site deleted", zap.String("site", name), zap.String("type", string(s.Type())))
	return nil
}

func (g *Graph) set(name, field, value string) error {
	n, err := g.table.Update(FieldName, name, field, value)
	if err != nil {
		return fmt.Errorf("updating %s of site %q: %w", field, name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}

// Rename changes a site's name and rewrites every reference to it: the
// parent field of its apartments and the owning manager's unit.
func (g *Graph) Rename(oldName, newName string) error {
	if err := validName(newName); err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}
	if _, err := g.Get(oldName); err != nil {
		return err
	}
	_, taken, err := g.FindByName(newName)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, newName)
	}

	if err := g.set(oldName, FieldName, newName); err != nil {
		return err
	}
	if _, err := g.table.Update(FieldParent, oldName, FieldParent, newName); err != nil {
		return fmt.Errorf("renaming parent references of %q: %w", oldName, err)
	}
	if g.owners != nil {
		if err := g.owners.RenameUnit(oldName, newName); err != nil {
			return err
		}
	}
	g.log.Info("site renamed", zap.String("from", oldName), zap.String("to", newName))
	return nil
}

// SetManager makes manager the owner of the named site, or releases the
// site when manager is empty. The registry is updated either way.
func (g *Graph) SetManager(name, manager string) error {
	if manager != "" {
		return g.Assign(manager, name)
	}
	s, err := g.Get(name)
	if err != nil {
		return err
	}
	if err := g.release(s); err != nil {
		return err
	}
	return g.set(name, FieldManager, recordstore.Null)
}

// release clears the unit of s's manager, but only while that manager
// still owns s.
func (g *Graph) release(s Site) error {
	manager := s.Manager()
	if manager == "" || g.owners == nil {
		return nil
	}
	owns, err := g.owners.Owns(manager, s.Name())
	if err != nil || !owns {
		return err
	}
	return g.owners.ClearUnit(manager)
}

// Assign makes manager the owner of the named site. Any unit the manager
// owned before is released, and the site's previous manager loses it.
func (g *Graph) Assign(manager, name string) error {
	if g.owners == nil {
		return fmt.Errorf("site: no manager registry configured")
	}
	target, err := g.Get(name)
	if err != nil {
		return err
	}
	currentUnit, err := g.owners.UnitOf(manager)
	if err != nil {
		return err
	}

	if currentUnit != "" && currentUnit != name {
		if err := g.set(currentUnit, FieldManager, recordstore.Null); err != nil && !isNotFound(err) {
			return err
		}
	}
	if prev := target.Manager(); prev != "" && prev != manager {
		if err := g.release(target); err != nil {
			return err
		}
	}

	if err := g.owners.SetUnit(manager, name); err != nil {
		return err
	}
	return g.set(name, FieldManager, manager)
}

// SetParent moves an apartment under another building.
func (g *Graph) SetParent(name, parent string) error {
	s, err := g.Get(name)
	if err != nil {
		return err
	}
	if !s.IsApartment() {
		return fmt.Errorf("%w: %s %q cannot have a parent", ErrInvalidParent, s.Type(), name)
	}
	if err := g.checkParent(parent); err != nil {
		return err
	}
	return g.set(name, FieldParent, parent)
}

// SetAmountDue stores the site's outstanding balance.
func (g *Graph) SetAmountDue(name string, d decimal.Decimal) error {
	return g.set(name, FieldAmountDue, FormatMoney(d))
}

// SetBillTotal stores the site's most recent bill.
func (g *Graph) SetBillTotal(name string, d decimal.Decimal) error {
	return g.set(name, FieldBillTotal, FormatMoney(d))
}

// SetMonthsOverdue stores how many periods the site has gone unpaid.
func (g *Graph) SetMonthsOverdue(name string, n int) error {
	return g.set(name, FieldMonthsOverdue, strconv.Itoa(n))
}
