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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviszhen/binopt/pkg/common"
	"github.com/daviszhen/binopt/pkg/stmt"
)

func TestShrinkSelectRanges(t *testing.T) {
	f := newFixture(t)
	m := f.m(t)
	a := f.a
	tx := f.bat(t, f.t, "x")
	ty := f.bat(t, f.t, "y")
	o := f.optimizer(DefaultOptions())

	sels := []*stmt.Stmt{
		m(a.Select(tx, f.atom(t, 1), stmt.CMP_Gt)),
		m(a.Select(ty, f.atom(t, 2), stmt.CMP_Equal)),
		m(a.Select(tx, f.atom(t, 3), stmt.CMP_Gt)),
		m(a.Select(tx, f.atom(t, 9), stmt.CMP_Lte)),
		m(a.Select(tx, f.atom(t, 4), stmt.CMP_NotEqual)),
	}
	res, err := o.shrinkSelectRanges(sels)
	require.NoError(t, err)
	require.Len(t, res, 3)
	//x > max(1, 3) and x <= 9
	rng := res[0]
	require.Equal(t, stmt.ST_USelect2, rng.Typ)
	assert.Same(t, tx, rng.Op1)
	assert.Equal(t, stmt.RANGE_IncHigh, rng.Flag)
	assert.Equal(t, stmt.ST_Binop, rng.Op2.Typ)
	assert.Equal(t, "sql_max", rng.Op2.Func().Fun.Name)
	assert.Same(t, sels[3].Op2, rng.Op3)
	assert.Same(t, sels[4], res[1])
	assert.Same(t, sels[1], res[2])

	//equality becomes a closed range
	sels = []*stmt.Stmt{
		m(a.Select(tx, f.atom(t, 5), stmt.CMP_Equal)),
		m(a.Select2(tx, f.atom(t, 2), f.atom(t, 8), stmt.RANGE_IncLow|stmt.RANGE_IncHigh)),
	}
	res, err = o.shrinkSelectRanges(sels)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, stmt.RANGE_IncLow|stmt.RANGE_IncHigh, res[0].Flag)
	assert.Equal(t, "sql_max", res[0].Op2.Func().Fun.Name)
	assert.Equal(t, "sql_min", res[0].Op3.Func().Fun.Name)

	//bounds of different types are kept
	sels = []*stmt.Stmt{
		m(a.Select(tx, f.atom(t, 5), stmt.CMP_Gt)),
		m(a.Select(tx, m(a.AtomLng(9)), stmt.CMP_Lt)),
	}
	res, err = o.shrinkSelectRanges(sels)
	require.NoError(t, err)
	assert.Equal(t, sels, res)
}

func TestRelSelect(t *testing.T) {
	f := newFixture(t)
	m := f.m(t)
	a := f.a
	tx := f.bat(t, f.t, "x")
	ty := f.bat(t, f.t, "y")
	tk := f.bat(t, f.t, "k")

	rs := m(a.RelSelect([]*stmt.Stmt{
		m(a.Select(tx, f.atom(t, 5), stmt.CMP_Equal)),
		m(a.Select(ty, f.atom(t, 1), stmt.CMP_Gt)),
		m(a.Select(ty, f.atom(t, 3), stmt.CMP_Lte)),
		m(a.Select(tk, f.atom(t, 10), stmt.CMP_Gt)),
	}))
	assert.Equal(t, []string{"1"}, f.eval(t, rs).Heads())

	o := f.optimizer(DefaultOptions())
	res, err := o.Optimize(rs)
	require.NoError(t, err)
	assert.Zero(t, kinds(res)[stmt.ST_RelSelect])
	assert.Equal(t, 1, o.Applied()["relselect"])
	assert.Equal(t, 1, o.Applied()["shrink_ranges"])
	f.requireSameHeads(t, rs, res)

	//the selection on the unique column drives, the others run over
	//its rows
	drive := rs.Op1.List()[3]
	assert.Contains(t, stmt.Array(res).Stmts, drive)
	assert.NotSame(t, drive, res)
	assert.Equal(t, 2, kinds(res)[stmt.ST_SemiJoin])

	//without merging every selection stays
	o = f.optimizer(Options{NoShrink: true})
	res, err = o.Optimize(rs)
	require.NoError(t, err)
	assert.Zero(t, o.Applied()["shrink_ranges"])
	f.requireSameHeads(t, rs, res)

	//one selection is the result itself
	one := m(a.Select(tx, f.atom(t, 5), stmt.CMP_Equal))
	assert.Same(t, one, f.optimize(t, m(a.RelSelect([]*stmt.Stmt{one})), DefaultOptions()))
}

func TestRelSelectThroughDeltas(t *testing.T) {
	f := newFixture(t)
	m := f.m(t)
	a := f.a
	f.data.Update(f.t.Column("y"), 0, common.IntValue(7))
	f.data.Delete(f.t, 1)
	tx := f.bat(t, f.t, "x")
	ty := f.bat(t, f.t, "y")
	conv := m(a.Convert(ty, common.IntegerType(), common.BigintType()))

	rs := m(a.RelSelect([]*stmt.Stmt{
		m(a.Select(tx, f.atom(t, 6), stmt.CMP_Lt)),
		m(a.Select(conv, m(a.AtomLng(2)), stmt.CMP_Gt)),
	}))
	assert.Equal(t, []string{"0"}, f.eval(t, rs).Heads())
	opts := DefaultOptions()
	opts.ExpandDeltas = true
	res := f.optimize(t, rs, opts)
	f.requireSameHeads(t, rs, res)
}

func TestShrinkMixedBounds(t *testing.T) {
	f := newFixture(t)
	m := f.m(t)
	a := f.a
	tx := f.bat(t, f.t, "x")
	o := f.optimizer(DefaultOptions())

	gt := m(a.Select(tx, f.atom(t, 1), stmt.CMP_Gt))
	gte := m(a.Select(tx, f.atom(t, 3), stmt.CMP_Gte))
	lt := m(a.Select(tx, f.atom(t, 9), stmt.CMP_Lt))
	res, err := o.shrinkSelectRanges([]*stmt.Stmt{gt, gte, lt})
	require.NoError(t, err)
	require.Len(t, res, 2)
	//1 < x < 9, then x >= 3
	require.Equal(t, stmt.ST_USelect2, res[0].Typ)
	assert.Equal(t, 0, res[0].Flag)
	assert.Same(t, gt.Op2, res[0].Op2)
	assert.Same(t, lt.Op2, res[0].Op3)
	require.Equal(t, stmt.ST_USelect, res[1].Typ)
	assert.Equal(t, stmt.CMP_Gte, res[1].Cmp())
	assert.Same(t, gte.Op2, res[1].Op2)
}

func TestLowerEmptyLists(t *testing.T) {
	f := newFixture(t)
	m := f.m(t)

	_, err := f.optimizer(DefaultOptions()).Optimize(m(f.a.RelSelectInit()))
	require.Error(t, err)
	assert.True(t, ErrNoOperands.Is(err), "%v", err)

	_, err = f.optimizer(DefaultOptions()).Optimize(m(f.a.RelEqJoinInit()))
	require.Error(t, err)
	assert.True(t, ErrNoOperands.Is(err), "%v", err)

	o := f.optimizer(DefaultOptions())
	_, err = o.compileEqJoin([]*stmt.Stmt{f.bat(t, f.l, "a")}, nil)
	require.Error(t, err)
	assert.True(t, ErrOperandMismatch.Is(err), "%v", err)
	_, err = o.compileJoin(nil, nil)
	require.Error(t, err)
	assert.True(t, ErrNoOperands.Is(err), "%v", err)
}
