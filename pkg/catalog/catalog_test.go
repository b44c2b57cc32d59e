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
package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviszhen/binopt/pkg/common"
)

func newTestTable(t *testing.T, cat *Catalog) *Table {
	_, err := cat.CreateSchema("tpch")
	require.NoError(t, err)
	tab, err := cat.CreateTable("tpch", TableDef{
		Name: "orders",
		Columns: []ColumnDef{
			{Name: "o_orderkey", Typ: common.IntegerType(), Unique: true},
			{Name: "o_custkey", Typ: common.IntegerType()},
			{Name: "o_comment", Typ: common.VarcharType(), Null: true},
		},
	})
	require.NoError(t, err)
	return tab
}

func TestCreateTable(t *testing.T) {
	cat := NewCatalog()
	tab := newTestTable(t, cat)
	assert.True(t, tab.IsTable())
	assert.Len(t, tab.Columns, 3)
	for i, col := range tab.Columns {
		assert.Equal(t, i, col.Nr)
		assert.Equal(t, tab.Id+ObjectId(i+1), col.Id)
		assert.Same(t, tab, col.Table)
	}
	assert.Equal(t, "tpch.orders.o_custkey", tab.Column("o_custkey").String())

	got, err := cat.Table("tpch", "orders")
	require.NoError(t, err)
	assert.Same(t, tab, got)

	_, err = cat.CreateTable("tpch", TableDef{Name: "orders"})
	assert.True(t, ErrDuplicateObject.Is(err))
	_, err = cat.Table("tpch", "lineitem")
	assert.True(t, ErrObjectNotFound.Is(err))
}

func TestIndexAndDrop(t *testing.T) {
	cat := NewCatalog()
	tab := newTestTable(t, cat)
	idx, err := cat.CreateIndex(tab, "orders_cust", IndexHash, "o_custkey")
	require.NoError(t, err)
	assert.Same(t, idx, tab.Index("orders_cust"))
	_, err = cat.CreateIndex(tab, "bad", IndexHash, "nope")
	assert.Error(t, err)

	typ, obj, ok := cat.Object(idx.Id)
	require.True(t, ok)
	assert.Equal(t, ObjIndex, typ)
	assert.Same(t, idx, obj)

	ids, err := cat.DropTable("tpch", "orders")
	require.NoError(t, err)
	assert.Len(t, ids, 5)
	_, _, ok = cat.Object(tab.Columns[0].Id)
	assert.False(t, ok)
	_, err = cat.Table("tpch", "orders")
	assert.Error(t, err)
}

func TestBuiltins(t *testing.T) {
	cat := NewCatalog()
	next, err := cat.Func(FuncNextValueFor)
	require.NoError(t, err)
	assert.True(t, next.SideEffect)

	hash, err := cat.Func(FuncHash)
	require.NoError(t, err)
	assert.False(t, hash.SideEffect)
	assert.Equal(t, common.LTID_HASH, hash.Res.Id)

	count, err := cat.Aggr("count")
	require.NoError(t, err)
	assert.True(t, count.IsAggr())
	_, err = cat.Aggr(FuncEqual)
	assert.Error(t, err)

	assert.Equal(t, "rotate_xor_hash", cat.ObjectName(mustFunc(t, cat, FuncRotateXorHash).Id))
	assert.Equal(t, "#100000", cat.ObjectName(100000))

	n := 0
	cat.Scan(func(id ObjectId, typ ObjType, obj any) bool {
		n++
		return true
	})
	assert.Greater(t, n, 20)
}

func mustFunc(t *testing.T, cat *Catalog, name string) *Func {
	fun, err := cat.Func(name)
	require.NoError(t, err)
	return fun
}
