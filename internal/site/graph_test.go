package site

import (
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jgoulah/gridbill/internal/account"
	"github.com/jgoulah/gridbill/internal/recordstore"
)

type fixture struct {
	store    *recordstore.Store
	accounts *account.Registry
	graph    *Graph
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := recordstore.Open(t.TempDir())
	require.NoError(t, err)
	accounts, err := account.Open(store, zap.NewNop())
	require.NoError(t, err)
	graph, err := Open(store, accounts, zap.NewNop())
	require.NoError(t, err)
	return &fixture{store: store, accounts: accounts, graph: graph}
}

func (f *fixture) mustCreate(t *testing.T, name string, typ Type, manager, parent string) Site {
	t.Helper()
	s, err := f.graph.Create(name, typ, manager, parent)
	require.NoError(t, err)
	return s
}

func TestCreate(t *testing.T) {
	t.Run("sets ledger defaults", func(t *testing.T) {
		f := newFixture(t)
		s := f.mustCreate(t, "A", Home, "", "")

		assert.Equal(t, "A", s.Name())
		assert.Equal(t, Home, s.Type())
		assert.Empty(t, s.Manager())
		assert.Empty(t, s.Parent())
		due, err := s.AmountDue()
		require.NoError(t, err)
		assert.True(t, due.IsZero())
		months, err := s.MonthsOverdue()
		require.NoError(t, err)
		assert.Zero(t, months)

		loaded, err := f.store.Load(TableName)
		require.NoError(t, err)
		assert.Equal(t, Schema, loaded.Schema())
		assert.Equal(t, "A", loaded.Rows()[0].Value(FieldName))
		assert.Equal(t, recordstore.Null, loaded.Rows()[0].Value(FieldParent))
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		f := newFixture(t)
		f.mustCreate(t, "A", Home, "", "")
		_, err := f.graph.Create("A", Building, "", "")
		assert.ErrorIs(t, err, ErrAlreadyExists)
		assert.Equal(t, 1, f.graph.Len())
	})

	t.Run("apartment needs a parent", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.graph.Create("A1", Apartment, "", "")
		assert.ErrorIs(t, err, ErrMissingParent)
	})

	t.Run("apartment parent must resolve", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.graph.Create("A1", Apartment, "", "Tower")
		assert.ErrorIs(t, err, ErrParentNotFound)
	})

	t.Run("apartment parent must be a building", func(t *testing.T) {
		f := newFixture(t)
		f.mustCreate(t, "H", Home, "", "")
		_, err := f.graph.Create("A1", Apartment, "", "H")
		assert.ErrorIs(t, err, ErrInvalidParent)
	})

	t.Run("only apartments carry a parent", func(t *testing.T) {
		f := newFixture(t)
		f.mustCreate(t, "Tower", Building, "", "")
		_, err := f.graph.Create("H", Home, "", "Tower")
		assert.ErrorIs(t, err, ErrInvalidParent)
	})

	t.Run("unknown type", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.graph.Create("X", Type("castle"), "", "")
		var ute *UnsupportedSiteTypeError
		require.ErrorAs(t, err, &ute)
		assert.True(t, IsClientError(err))
	})

	t.Run("reserved names", func(t *testing.T) {
		f := newFixture(t)
		for _, name := range []string{"", recordstore.Null} {
			_, err := f.graph.Create(name, Home, "", "")
			assert.ErrorIs(t, err, ErrInvalidName)
		}
	})
}

func TestFindByName(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "A", Home, "", "")

	s, found, err := f.graph.FindByName("A")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "A", s.Name())

	_, found, err = f.graph.FindByName("B")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = f.graph.Get("B")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByNameDuplicateRowsIsIntegrityError(t *testing.T) {
	dir := t.TempDir()
	store, err := recordstore.Open(dir)
	require.NoError(t, err)
	raw := "unitName,unitType,managerUsername,amountDue,billTotal,monthsOverdue,parentUnitName\n" +
		"A,home,null,0.00,0.00,0,null\n" +
		"A,home,null,0.00,0.00,0,null\n"
	require.NoError(t, os.WriteFile(store.Path(TableName), []byte(raw), 0644))

	g, err := Open(store, nil, zap.NewNop())
	require.NoError(t, err)

	_, _, err = g.FindByName("A")
	var die *DataIntegrityError
	require.ErrorAs(t, err, &die)
	assert.Equal(t, 2, die.Count)
	assert.False(t, IsClientError(err))
}

func TestChildrenAreRecomputed(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "Tower", Building, "", "")
	f.mustCreate(t, "Other", Building, "", "")
	f.mustCreate(t, "A1", Apartment, "", "Tower")
	f.mustCreate(t, "B1", Apartment, "", "Other")

	kids, err := f.graph.Children("Tower")
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, "A1", kids[0].Name())

	f.mustCreate(t, "A2", Apartment, "", "Tower")
	kids, err = f.graph.Children("Tower")
	require.NoError(t, err)
	assert.Len(t, kids, 2)

	require.NoError(t, f.graph.SetParent("B1", "Tower"))
	kids, err = f.graph.Children("Tower")
	require.NoError(t, err)
	assert.Len(t, kids, 3)
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture(t)
	_, err := f.accounts.Create("mgr")
	require.NoError(t, err)
	_, err = f.accounts.Create("renter")
	require.NoError(t, err)

	f.mustCreate(t, "Tower", Building, "mgr", "")
	f.mustCreate(t, "A1", Apartment, "renter", "Tower")
	f.mustCreate(t, "A2", Apartment, "", "Tower")
	f.mustCreate(t, "H", Home, "", "")

	require.NoError(t, f.graph.Delete("Tower"))

	for _, name := range []string{"Tower", "A1", "A2"} {
		_, found, err := f.graph.FindByName(name)
		require.NoError(t, err)
		assert.False(t, found, name)
	}
	_, found, err := f.graph.FindByName("H")
	require.NoError(t, err)
	assert.True(t, found)

	for _, user := range []string{"mgr", "renter"} {
		unit, err := f.accounts.UnitOf(user)
		require.NoError(t, err)
		assert.Empty(t, unit, user)
	}

	// persisted, not just in memory
	reloaded, err := Open(f.store, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Len())
}

func TestDeleteMissingSite(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.graph.Delete("ghost"), ErrNotFound)
}

func TestDeleteToleratesMissingManagerAccount(t *testing.T) {
	store, err := recordstore.Open(t.TempDir())
	require.NoError(t, err)
	raw := "unitName,unitType,managerUsername,amountDue,billTotal,monthsOverdue,parentUnitName\n" +
		"H,home,gone,0.00,0.00,0,null\n"
	require.NoError(t, os.WriteFile(store.Path(TableName), []byte(raw), 0644))
	accounts, err := account.Open(store, zap.NewNop())
	require.NoError(t, err)
	g, err := Open(store, accounts, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, g.Delete("H"))
	assert.Zero(t, g.Len())
}

func TestCreateWithManagerAssigns(t *testing.T) {
	f := newFixture(t)
	_, err := f.accounts.Create("m")
	require.NoError(t, err)
	f.mustCreate(t, "S1", Home, "", "")
	require.NoError(t, f.graph.Assign("m", "S1"))

	s2 := f.mustCreate(t, "S2", Home, "m", "")
	assert.Equal(t, "m", s2.Manager())
	unit, err := f.accounts.UnitOf("m")
	require.NoError(t, err)
	assert.Equal(t, "S2", unit)
	s1, err := f.graph.Get("S1")
	require.NoError(t, err)
	assert.Empty(t, s1.Manager())

	t.Run("unknown manager creates nothing", func(t *testing.T) {
		_, err := f.graph.Create("S3", Home, "nobody", "")
		assert.ErrorIs(t, err, account.ErrNotFound)
		_, found, err := f.graph.FindByName("S3")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestDeleteKeepsManagersOtherUnit(t *testing.T) {
	f := newFixture(t)
	_, err := f.accounts.Create("m")
	require.NoError(t, err)
	f.mustCreate(t, "S1", Home, "", "")
	require.NoError(t, f.graph.Assign("m", "S1"))

	// a manager reference left behind on disk, with m owning S1
	raw := "unitName,unitType,managerUsername,amountDue,billTotal,monthsOverdue,parentUnitName\n" +
		"S1,home,m,0.00,0.00,0,null\n" +
		"S2,home,m,0.00,0.00,0,null\n"
	require.NoError(t, os.WriteFile(f.store.Path(TableName), []byte(raw), 0644))
	g, err := Open(f.store, f.accounts, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, g.Delete("S2"))

	unit, err := f.accounts.UnitOf("m")
	require.NoError(t, err)
	assert.Equal(t, "S1", unit)
	s1, err := g.Get("S1")
	require.NoError(t, err)
	assert.Equal(t, "m", s1.Manager())
}

func TestSetManagerUpdatesRegistry(t *testing.T) {
	f := newFixture(t)
	_, err := f.accounts.Create("m")
	require.NoError(t, err)
	f.mustCreate(t, "H", Home, "", "")

	require.NoError(t, f.graph.SetManager("H", "m"))
	unit, err := f.accounts.UnitOf("m")
	require.NoError(t, err)
	assert.Equal(t, "H", unit)

	require.NoError(t, f.graph.SetManager("H", ""))
	h, err := f.graph.Get("H")
	require.NoError(t, err)
	assert.Empty(t, h.Manager())
	unit, err = f.accounts.UnitOf("m")
	require.NoError(t, err)
	assert.Empty(t, unit)

	assert.ErrorIs(t, f.graph.SetManager("H", "nobody"), account.ErrNotFound)
}

func TestRenamePropagates(t *testing.T) {
	f := newFixture(t)
	_, err := f.accounts.Create("mgr")
	require.NoError(t, err)
	f.mustCreate(t, "Tower", Building, "", "")
	require.NoError(t, f.graph.Assign("mgr", "Tower"))
	f.mustCreate(t, "A1", Apartment, "", "Tower")

	require.NoError(t, f.graph.Rename("Tower", "Spire"))

	kids, err := f.graph.Children("Spire")
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, "A1", kids[0].Name())

	kids, err = f.graph.Children("Tower")
	require.NoError(t, err)
	assert.Empty(t, kids)

	unit, err := f.accounts.UnitOf("mgr")
	require.NoError(t, err)
	assert.Equal(t, "Spire", unit)

	f.mustCreate(t, "H", Home, "", "")
	assert.ErrorIs(t, f.graph.Rename("H", "Spire"), ErrAlreadyExists)
	assert.ErrorIs(t, f.graph.Rename("ghost", "x"), ErrNotFound)
}

func TestAssignMovesOwnership(t *testing.T) {
	f := newFixture(t)
	for _, u := range []string{"alice", "bob"} {
		_, err := f.accounts.Create(u)
		require.NoError(t, err)
	}
	f.mustCreate(t, "H1", Home, "", "")
	f.mustCreate(t, "H2", Home, "", "")

	require.NoError(t, f.graph.Assign("alice", "H1"))
	require.NoError(t, f.graph.Assign("alice", "H2"))

	h1, err := f.graph.Get("H1")
	require.NoError(t, err)
	assert.Empty(t, h1.Manager())

	require.NoError(t, f.graph.Assign("bob", "H2"))
	h2, err := f.graph.Get("H2")
	require.NoError(t, err)
	assert.Equal(t, "bob", h2.Manager())

	unit, err := f.accounts.UnitOf("alice")
	require.NoError(t, err)
	assert.Empty(t, unit)
}

func TestLedgerSettersPersist(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "H", Home, "", "")

	require.NoError(t, f.graph.SetAmountDue("H", decimal.RequireFromString("12.5")))
	require.NoError(t, f.graph.SetBillTotal("H", decimal.RequireFromString("30")))
	require.NoError(t, f.graph.SetMonthsOverdue("H", 2))

	reloaded, err := Open(f.store, nil, zap.NewNop())
	require.NoError(t, err)
	s, err := reloaded.Get("H")
	require.NoError(t, err)

	due, err := s.AmountDue()
	require.NoError(t, err)
	assert.Equal(t, "12.50", FormatMoney(due))
	total, err := s.BillTotal()
	require.NoError(t, err)
	assert.Equal(t, "30.00", FormatMoney(total))
	months, err := s.MonthsOverdue()
	require.NoError(t, err)
	assert.Equal(t, 2, months)

	assert.ErrorIs(t, f.graph.SetAmountDue("ghost", decimal.Zero), ErrNotFound)
}

func TestCorruptLedgerFieldIsParseError(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "H", Home, "", "")
	_, err := f.graph.table.Update(FieldName, "H", FieldAmountDue, "lots")
	require.NoError(t, err)

	s, err := f.graph.Get("H")
	require.NoError(t, err)
	_, err = s.AmountDue()
	assert.ErrorIs(t, err, recordstore.ErrParse)
}
