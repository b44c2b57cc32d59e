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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/stmt"
	"github.com/daviszhen/binopt/pkg/util"
)

func TestOptimizeIdempotent(t *testing.T) {
	f := newFixture(t)
	m := f.m(t)
	a := f.a
	tx := f.bat(t, f.t, "x")
	sel := m(a.Select(m(a.Alias(tx, "t", "x")), f.atom(t, 5), stmt.CMP_Equal))
	root := m(a.List([]*stmt.Stmt{sel, m(a.Mirror(sel))}))

	o := f.optimizer(DefaultOptions())
	res, err := o.Optimize(root)
	require.NoError(t, err)
	assert.NotSame(t, root, res)
	n := a.Len()

	again, err := o.Optimize(root)
	require.NoError(t, err)
	assert.Same(t, res, again)
	again, err = o.Optimize(res)
	require.NoError(t, err)
	assert.Same(t, res, again)
	assert.Equal(t, n, a.Len())

	//the shared select is rewritten once
	l := res.List()
	assert.Same(t, l[0], l[1].Op1)
	assert.Equal(t, stmt.ST_Alias, l[0].Typ)
	assert.Equal(t, 1, o.Applied()["select_alias"])

	//a lower level reuses the result
	low := NewOptimizer(a, f.cat, Options{Level: LevelLower})
	low._memo = o._memo
	again, err = low.Optimize(root)
	require.NoError(t, err)
	assert.Same(t, res, again)
}

func TestOptimizeDeterministic(t *testing.T) {
	build := func(f *fixture) *stmt.Stmt {
		m := f.m(t)
		a := f.a
		tx := f.bat(t, f.t, "x")
		ux := f.bat(t, f.u, "x")
		sel := m(a.Select(m(a.Union(tx, ux)), f.atom(t, 5), stmt.CMP_Gte))
		ej := m(a.RelEqJoin2(
			[]*stmt.Stmt{f.bat(t, f.l, "a"), f.bat(t, f.l, "b")},
			[]*stmt.Stmt{f.bat(t, f.r, "a"), f.bat(t, f.r, "b")}))
		return m(a.List([]*stmt.Stmt{sel, ej}))
	}
	render := func() string {
		f := newFixture(t)
		res := f.optimize(t, build(f), DefaultOptions())
		var buf bytes.Buffer
		require.NoError(t, stmt.PrintStmts(&buf, stmt.Array(res)))
		return buf.String()
	}
	assert.Equal(t, render(), render())
}

func TestOptimizeCopyOnWrite(t *testing.T) {
	f := newFixture(t)
	m := f.m(t)
	a := f.a
	tx := f.bat(t, f.t, "x")
	al := m(a.Alias(tx, "t", "x"))
	sel := m(a.Select(al, f.atom(t, 5), stmt.CMP_Equal))
	ord := m(a.Order(sel, 0))
	res := f.optimize(t, ord, DefaultOptions())

	assert.Same(t, sel, ord.Op1)
	assert.Same(t, al, sel.Op1)
	assert.NotSame(t, ord, res)
	assert.Equal(t, stmt.ST_Order, res.Typ)
	f.requireSame(t, ord, res)

	//nothing to rewrite
	plain := m(a.Order(tx, 0))
	assert.Same(t, plain, f.optimize(t, plain, DefaultOptions()))
}

func TestOptimizeLevels(t *testing.T) {
	f := newFixture(t)
	m := f.m(t)
	a := f.a
	tx := f.bat(t, f.t, "x")
	sel := m(a.Select(m(a.Alias(tx, "t", "x")), f.atom(t, 5), stmt.CMP_Equal))
	ej := m(a.RelEqJoin2([]*stmt.Stmt{f.bat(t, f.l, "a")}, []*stmt.Stmt{f.bat(t, f.r, "a")}))
	root := m(a.List([]*stmt.Stmt{sel, ej}))

	res := f.optimize(t, root, Options{Level: LevelLower})
	l := res.List()
	assert.Same(t, sel, l[0])
	assert.Equal(t, stmt.ST_Join, l[1].Typ)
}

func TestOptimizeMemoOverwrite(t *testing.T) {
	f := newFixture(t)
	tx := f.bat(t, f.t, "x")
	ty := f.bat(t, f.t, "y")
	o := f.optimizer(DefaultOptions())
	o.set(tx, tx)
	o.set(tx, tx)
	assert.Panics(t, func() {
		o.set(tx, ty)
	})
}

func TestOptimizeUnknownKind(t *testing.T) {
	f := newFixture(t)
	o := f.optimizer(DefaultOptions())
	assert.Panics(t, func() {
		_, _ = o.Optimize(&stmt.Stmt{Id: 1 << 20, Typ: stmt.StType(1000)})
	})
}

func TestOptimizeArenaExhausted(t *testing.T) {
	f := newFixture(t)
	m := f.m(t)
	build := func(a *stmt.Arena) *stmt.Stmt {
		bl := m(a.BaseTable(f.l, "l"))
		br := m(a.BaseTable(f.r, "r"))
		col := func(bt *stmt.Stmt, c *catalog.Column) *stmt.Stmt {
			return m(a.Bat(c, bt, stmt.AC_RdOnly))
		}
		return m(a.RelEqJoin2(
			[]*stmt.Stmt{col(bl, f.l.Column("a")), col(bl, f.l.Column("b"))},
			[]*stmt.Stmt{col(br, f.r.Column("a")), col(br, f.r.Column("b"))}))
	}
	counter := stmt.NewArena(0)
	build(counter)
	small := stmt.NewArena(counter.Len() + 3)
	ej := build(small)
	_, err := NewOptimizer(small, f.cat, DefaultOptions()).Optimize(ej)
	assert.True(t, stmt.ErrArenaExhausted.Is(err))
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(util.OptimizerOptions{NoHash: true, HashBits: 3})
	assert.Equal(t, Options{Level: util.DefaultOptimizeLevel, NoHash: true, HashBits: 3}, opts)

	opts = OptionsFromConfig(util.OptimizerOptions{Level: LevelRewrite, NoShrink: true})
	assert.Equal(t, Options{Level: LevelRewrite, NoShrink: true}, opts)
}
