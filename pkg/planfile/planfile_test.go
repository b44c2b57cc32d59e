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
package planfile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/eval"
	"github.com/daviszhen/binopt/pkg/stmt"
)

func setup(t *testing.T) (*File, *catalog.Catalog, *eval.Dataset) {
	f, err := Load("testdata/plan.yaml")
	require.NoError(t, err)
	cat := catalog.NewCatalog()
	ds := eval.NewDataset()
	require.NoError(t, f.Setup(cat, ds))
	return f, cat, ds
}

func run(t *testing.T, ds *eval.Dataset, s *stmt.Stmt) *eval.Bat {
	res, err := eval.NewInterpreter(ds).Eval(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, eval.RK_Bat, res.Kind)
	return res.Bat
}

func TestLoad(t *testing.T) {
	f, cat, ds := setup(t)
	assert.Equal(t, []string{"filter", "eqjoin", "delta"}, f.Names())

	tab, err := cat.Table(catalog.SysSchema, "t")
	require.NoError(t, err)
	require.Len(t, tab.Columns, 3)
	assert.True(t, tab.Column("k").Unique)
	assert.Equal(t, 3, ds.Rows(tab.Column("x")))

	r, err := cat.Table(catalog.SysSchema, "r")
	require.NoError(t, err)
	assert.Equal(t, 6, ds.Rows(r.Column("c")))
}

func TestBuild(t *testing.T) {
	f, cat, ds := setup(t)
	a := stmt.NewArena(0)

	filter, err := f.Build(a, cat, "filter")
	require.NoError(t, err)
	assert.Equal(t, stmt.ST_RelSelect, filter.Typ)
	require.Len(t, filter.Op1.List(), 4)
	//all selections read the same basetable
	bt := filter.Op1.List()[0].Op1.H
	for _, sel := range filter.Op1.List() {
		assert.Same(t, bt, sel.Op1.H)
	}
	assert.Equal(t, []string{"1"}, run(t, ds, filter).Heads())

	eqjoin, err := f.Build(a, cat, "eqjoin")
	require.NoError(t, err)
	assert.Equal(t, stmt.ST_RelEqJoin, eqjoin.Typ)
	assert.Equal(t, []string{"1|0", "2|1", "3|2", "4|3"}, run(t, ds, eqjoin).Pairs())

	delta, err := f.Build(a, cat, "delta")
	require.NoError(t, err)
	assert.Equal(t, stmt.ST_Select, delta.Typ)
	assert.Equal(t, []string{"0|9", "2|3", "3|4", "5|6"}, run(t, ds, delta).Pairs())
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("statement: []\n"))
	assert.Error(t, err)

	_, err = Parse([]byte(`
statements:
  - name: q
    nodes: [{id: a, kind: atom, type: int, value: "1"}]
  - name: q
    nodes: [{id: a, kind: atom, type: int, value: "1"}]
`))
	require.Error(t, err)
	assert.True(t, ErrBadNode.Is(err))

	_, err = Parse([]byte("statements: [{name: q}]\n"))
	require.Error(t, err)
	assert.True(t, ErrBadNode.Is(err))
}

func TestBuildErrors(t *testing.T) {
	cases := []struct {
		name  string
		nodes string
		kind  interface{ Is(error) bool }
	}{
		{
			name:  "unknown operand",
			nodes: `[{id: s, kind: reverse, ops: [missing]}]`,
			kind:  ErrUnknownNode,
		},
		{
			name:  "operand count",
			nodes: `[{id: a, kind: atom, type: int, value: "1"}, {id: s, kind: diff, ops: [a]}]`,
			kind:  ErrBadNode,
		},
		{
			name:  "unknown kind",
			nodes: `[{id: a, kind: atom, type: int, value: "1"}, {id: s, kind: frobnicate, ops: [a]}]`,
			kind:  ErrBadNode,
		},
		{
			name:  "bad literal",
			nodes: `[{id: a, kind: atom, type: int, value: "x"}]`,
			kind:  ErrBadNode,
		},
		{
			name:  "duplicate id",
			nodes: `[{id: a, kind: atom, type: int, value: "1"}, {id: a, kind: atom, type: int, value: "2"}]`,
			kind:  ErrBadNode,
		},
		{
			name:  "range flag",
			nodes: `[{id: a, kind: atom, type: int, value: "1"}, {id: s, kind: select2, ops: [a, a, a], range: [up]}]`,
			kind:  ErrBadNode,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f, err := Parse([]byte("statements:\n  - name: q\n    nodes: " + c.nodes + "\n"))
			require.NoError(t, err)
			_, err = f.Build(stmt.NewArena(0), catalog.NewCatalog(), "q")
			require.Error(t, err)
			assert.True(t, c.kind.Is(err), "%v", err)
		})
	}

	f, err := Parse([]byte("statements: [{name: q, nodes: [{id: a, kind: atom, type: int, value: \"1\"}]}]\n"))
	require.NoError(t, err)
	_, err = f.Build(stmt.NewArena(0), catalog.NewCatalog(), "other")
	require.Error(t, err)
	assert.True(t, ErrUnknownNode.Is(err))
}
