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
package stmt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/common"
)

type fixture struct {
	cat  *catalog.Catalog
	t    *catalog.Table
	u    *catalog.Table
	a    *Arena
	btT  *Stmt
	btU  *Stmt
	eq   FuncVal
	next FuncVal
	cnt  AggrVal
}

func newFixture(t *testing.T) *fixture {
	cat := catalog.NewCatalog()
	tabT, err := cat.CreateTable(catalog.SysSchema, catalog.TableDef{
		Name: "t",
		Columns: []catalog.ColumnDef{
			{Name: "a", Typ: common.IntegerType()},
			{Name: "b", Typ: common.IntegerType(), Null: true},
		},
	})
	require.NoError(t, err)
	tabU, err := cat.CreateTable(catalog.SysSchema, catalog.TableDef{
		Name: "u",
		Columns: []catalog.ColumnDef{
			{Name: "a", Typ: common.IntegerType()},
		},
	})
	require.NoError(t, err)
	f := &fixture{cat: cat, t: tabT, u: tabU, a: NewArena(0)}
	f.btT, err = f.a.BaseTable(tabT, "t")
	require.NoError(t, err)
	f.btU, err = f.a.BaseTable(tabU, "u")
	require.NoError(t, err)

	eq, err := cat.Func(catalog.FuncEqual)
	require.NoError(t, err)
	f.eq = FuncVal{Fun: eq, Res: common.BooleanType()}
	next, err := cat.Func(catalog.FuncNextValueFor)
	require.NoError(t, err)
	f.next = FuncVal{Fun: next, Res: common.BigintType()}
	cnt, err := cat.Aggr("count")
	require.NoError(t, err)
	f.cnt = AggrVal{Aggr: cnt, Res: common.BigintType()}
	return f
}

func (f *fixture) bat(t *testing.T, tab *catalog.Table, col string) *Stmt {
	bt := f.btT
	if tab == f.u {
		bt = f.btU
	}
	s, err := f.a.Bat(tab.Column(col), bt, AC_RdOnly)
	require.NoError(t, err)
	return s
}

func must(t *testing.T) func(*Stmt, error) *Stmt {
	return func(s *Stmt, err error) *Stmt {
		require.NoError(t, err)
		require.NotNil(t, s)
		return s
	}
}
