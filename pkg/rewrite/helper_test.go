// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package rewrite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/common"
	"github.com/daviszhen/binopt/pkg/eval"
	"github.com/daviszhen/binopt/pkg/stmt"
)

// fixture holds a small schema with data:
//
//	t(x, y, k unique)  x = 5 5 7, y = 1 2 3, k = 10 20 30
//	u(x)               x = 5
//	l(a, b)            a = 1 1 2 2 3, b = 1 2 1 2 3
//	r(a, b)            a = 1 2 2 3 4, b = 2 1 2 3 4
type fixture struct {
	cat  *catalog.Catalog
	t    *catalog.Table
	u    *catalog.Table
	l    *catalog.Table
	r    *catalog.Table
	a    *stmt.Arena
	data *eval.Dataset
	bts  map[*catalog.Table]*stmt.Stmt
	bats map[*catalog.Column]*stmt.Stmt
}

func ints(vals ...int64) []common.Value {
	ret := make([]common.Value, 0, len(vals))
	for _, v := range vals {
		ret = append(ret, common.IntValue(v))
	}
	return ret
}

func intCol(name string) catalog.ColumnDef {
	return catalog.ColumnDef{Name: name, Typ: common.IntegerType()}
}

func newFixture(t *testing.T) *fixture {
	cat := catalog.NewCatalog()
	mk := func(name string, cols ...catalog.ColumnDef) *catalog.Table {
		tab, err := cat.CreateTable(catalog.SysSchema, catalog.TableDef{Name: name, Columns: cols})
		require.NoError(t, err)
		return tab
	}
	f := &fixture{
		cat: cat,
		t: mk("t", intCol("x"), intCol("y"),
			catalog.ColumnDef{Name: "k", Typ: common.IntegerType(), Unique: true}),
		u:    mk("u", intCol("x")),
		l:    mk("l", intCol("a"), intCol("b")),
		r:    mk("r", intCol("a"), intCol("b")),
		a:    stmt.NewArena(0),
		data: eval.NewDataset(),
		bts:  make(map[*catalog.Table]*stmt.Stmt),
		bats: make(map[*catalog.Column]*stmt.Stmt),
	}
	f.data.SetColumn(f.t.Column("x"), ints(5, 5, 7)...)
	f.data.SetColumn(f.t.Column("y"), ints(1, 2, 3)...)
	f.data.SetColumn(f.t.Column("k"), ints(10, 20, 30)...)
	f.data.SetColumn(f.u.Column("x"), ints(5)...)
	f.data.SetColumn(f.l.Column("a"), ints(1, 1, 2, 2, 3)...)
	f.data.SetColumn(f.l.Column("b"), ints(1, 2, 1, 2, 3)...)
	f.data.SetColumn(f.r.Column("a"), ints(1, 2, 2, 3, 4)...)
	f.data.SetColumn(f.r.Column("b"), ints(2, 1, 2, 3, 4)...)
	return f
}

func (f *fixture) m(t *testing.T) func(*stmt.Stmt, error) *stmt.Stmt {
	return func(s *stmt.Stmt, err error) *stmt.Stmt {
		require.NoError(t, err)
		return s
	}
}

// bat reads a column. Every column is read by one shared node.
func (f *fixture) bat(t *testing.T, tab *catalog.Table, col string) *stmt.Stmt {
	m := f.m(t)
	c := tab.Column(col)
	if s, has := f.bats[c]; has {
		return s
	}
	bt, has := f.bts[tab]
	if !has {
		bt = m(f.a.BaseTable(tab, tab.Name))
		f.bts[tab] = bt
	}
	s := m(f.a.Bat(c, bt, stmt.AC_RdOnly))
	f.bats[c] = s
	return s
}

func (f *fixture) atom(t *testing.T, v int64) *stmt.Stmt {
	return f.m(t)(f.a.AtomInt(v))
}

func (f *fixture) fun(t *testing.T, name string) stmt.FuncVal {
	fun, err := f.cat.Func(name)
	require.NoError(t, err)
	return stmt.FuncVal{Fun: fun, Res: fun.Res}
}

func (f *fixture) optimizer(opts Options) *Optimizer {
	return NewOptimizer(f.a, f.cat, opts)
}

func (f *fixture) optimize(t *testing.T, s *stmt.Stmt, opts Options) *stmt.Stmt {
	res, err := f.optimizer(opts).Optimize(s)
	require.NoError(t, err)
	return res
}

func (f *fixture) eval(t *testing.T, s *stmt.Stmt, opts ...eval.Option) *eval.Bat {
	res, err := eval.NewInterpreter(f.data, opts...).Eval(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, eval.RK_Bat, res.Kind, "%s", s)
	return res.Bat
}

// requireSame evaluates both plans and compares their rows.
func (f *fixture) requireSame(t *testing.T, want, got *stmt.Stmt, opts ...eval.Option) {
	require.Equal(t, f.eval(t, want, opts...).Pairs(), f.eval(t, got, opts...).Pairs())
}

func (f *fixture) requireSameHeads(t *testing.T, want, got *stmt.Stmt) {
	require.Equal(t, f.eval(t, want).Heads(), f.eval(t, got).Heads())
}
