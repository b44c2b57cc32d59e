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
package eval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/common"
	"github.com/daviszhen/binopt/pkg/stmt"
	"github.com/daviszhen/binopt/pkg/util"
)

type env struct {
	cat  *catalog.Catalog
	t    *catalog.Table
	u    *catalog.Table
	g    *catalog.Table
	a    *stmt.Arena
	data *Dataset
	bts  map[*catalog.Table]*stmt.Stmt
}

func ints(vals ...int64) []common.Value {
	ret := make([]common.Value, 0, len(vals))
	for _, v := range vals {
		ret = append(ret, common.IntValue(v))
	}
	return ret
}

func newEnv(t *testing.T) *env {
	cat := catalog.NewCatalog()
	mk := func(name string, cols ...catalog.ColumnDef) *catalog.Table {
		tab, err := cat.CreateTable(catalog.SysSchema, catalog.TableDef{Name: name, Columns: cols})
		require.NoError(t, err)
		return tab
	}
	e := &env{
		cat: cat,
		t: mk("t",
			catalog.ColumnDef{Name: "a", Typ: common.IntegerType()},
			catalog.ColumnDef{Name: "b", Typ: common.IntegerType()}),
		u: mk("u", catalog.ColumnDef{Name: "a", Typ: common.IntegerType()}),
		g: mk("g",
			catalog.ColumnDef{Name: "k", Typ: common.VarcharType()},
			catalog.ColumnDef{Name: "v", Typ: common.IntegerType()}),
		a:    stmt.NewArena(0),
		data: NewDataset(),
		bts:  make(map[*catalog.Table]*stmt.Stmt),
	}
	e.data.SetColumn(e.t.Column("a"), ints(1, 2, 3)...)
	e.data.SetColumn(e.t.Column("b"), ints(10, 20, 30)...)
	e.data.SetColumn(e.u.Column("a"), ints(2)...)
	e.data.SetColumn(e.g.Column("k"),
		common.StringValue("x"), common.StringValue("y"), common.StringValue("x"))
	e.data.SetColumn(e.g.Column("v"), ints(1, 2, 3)...)
	return e
}

func (e *env) m(t *testing.T) func(*stmt.Stmt, error) *stmt.Stmt {
	return func(s *stmt.Stmt, err error) *stmt.Stmt {
		require.NoError(t, err)
		return s
	}
}

func (e *env) bat(t *testing.T, tab *catalog.Table, col string) *stmt.Stmt {
	m := e.m(t)
	bt, has := e.bts[tab]
	if !has {
		bt = m(e.a.BaseTable(tab, tab.Name))
		e.bts[tab] = bt
	}
	return m(e.a.Bat(tab.Column(col), bt, stmt.AC_RdOnly))
}

func (e *env) fun(t *testing.T, name string, res common.LType) stmt.FuncVal {
	f, err := e.cat.Func(name)
	require.NoError(t, err)
	return stmt.FuncVal{Fun: f, Res: res}
}

func (e *env) aggr(t *testing.T, name string) stmt.AggrVal {
	f, err := e.cat.Aggr(name)
	require.NoError(t, err)
	return stmt.AggrVal{Aggr: f, Res: common.BigintType()}
}

func evalBat(t *testing.T, in *Interpreter, s *stmt.Stmt) *Bat {
	res, err := in.Eval(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, RK_Bat, res.Kind, "%s", s)
	return res.Bat
}

func TestEvalBasic(t *testing.T) {
	e := newEnv(t)
	m := e.m(t)
	a := e.a
	in := NewInterpreter(e.data)
	ta := e.bat(t, e.t, "a")
	tb := e.bat(t, e.t, "b")
	ua := e.bat(t, e.u, "a")
	two := m(a.AtomInt(2))

	sel := m(a.Select(ta, two, stmt.CMP_Gte))
	assert.Equal(t, []string{"1|2", "2|3"}, evalBat(t, in, sel).Pairs())
	usel := m(a.USelect(ta, two, stmt.CMP_Gte))
	assert.Equal(t, []string{"1|null", "2|null"}, evalBat(t, in, usel).Pairs())

	j := m(a.Join(ta, m(a.Reverse(ua)), stmt.CMP_Equal))
	assert.Equal(t, []string{"1|0"}, evalBat(t, in, j).Pairs())

	mk := m(a.Mark(sel, 10))
	assert.Equal(t, []string{"10|2", "11|3"}, evalBat(t, in, mk).Pairs())
	assert.Equal(t, []string{"1|1", "2|2"}, evalBat(t, in, m(a.Mirror(sel))).Pairs())

	assert.Equal(t, []string{"1|20", "2|30"}, evalBat(t, in, m(a.SemiJoin(tb, sel))).Pairs())
	assert.Equal(t, []string{"0|10"}, evalBat(t, in, m(a.Diff(tb, sel))).Pairs())
	assert.Equal(t, []string{"0|10", "1|20", "1|20", "2|30", "2|30"},
		evalBat(t, in, m(a.Union(tb, m(a.SemiJoin(tb, usel))))).Pairs())

	sum := m(a.Binop(ta, tb, e.fun(t, "+", common.IntegerType())))
	assert.Equal(t, []string{"11", "22", "33"}, evalBat(t, in, sum).Tails())

	rng := m(a.Select2(ta, m(a.AtomInt(1)), m(a.AtomInt(3)), stmt.RANGE_IncLow))
	assert.Equal(t, []string{"0|1", "1|2"}, evalBat(t, in, rng).Pairs())
	anti := m(a.Select2(ta, m(a.AtomInt(1)), m(a.AtomInt(3)), stmt.RANGE_IncLow|stmt.RANGE_Anti))
	assert.Equal(t, []string{"2|3"}, evalBat(t, in, anti).Pairs())
}

func TestEvalOrderLimit(t *testing.T) {
	e := newEnv(t)
	m := e.m(t)
	a := e.a
	in := NewInterpreter(e.data)
	tb := e.bat(t, e.t, "b")
	ord := m(a.Order(tb, stmt.DIR_Desc))
	b := evalBat(t, in, ord)
	assert.Equal(t, ints(30, 20, 10), b.Tail)

	lim := m(a.Limit(ord, m(a.AtomLng(1)), m(a.AtomLng(5)), stmt.DIR_Desc))
	assert.Equal(t, ints(20, 10), evalBat(t, in, lim).Tail)
	all := m(a.Limit(tb, m(a.AtomLng(0)), m(a.AtomNull(common.BigintType())), 0))
	assert.Equal(t, 3, evalBat(t, in, all).Len())
}

func TestEvalAggregates(t *testing.T) {
	e := newEnv(t)
	m := e.m(t)
	a := e.a
	in := NewInterpreter(e.data)
	ta := e.bat(t, e.t, "a")

	res, err := in.Eval(context.Background(), m(a.Aggr(ta, nil, e.aggr(t, "count"), true)))
	require.NoError(t, err)
	require.Equal(t, RK_Scalar, res.Kind)
	assert.Equal(t, int64(3), res.Val.I64)

	res, err = in.Eval(context.Background(), m(a.Aggr(ta, nil, e.aggr(t, "max"), true)))
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Val.I64)

	g, err := a.GroupCreate(e.bat(t, e.g, "k"), nil)
	require.NoError(t, err)
	stmt.GroupDone(g)
	grouped := m(a.Aggr(e.bat(t, e.g, "v"), g, e.aggr(t, "sum"), true))
	assert.Equal(t, []string{"0|4", "1|2"}, evalBat(t, in, grouped).Pairs())
	assert.Equal(t, []string{"0|0", "1|1"}, evalBat(t, in, g.Ext).Pairs())

	like := m(a.LikeSelect(e.bat(t, e.g, "k"), m(a.AtomString("x%")), nil, stmt.CMP_Like))
	assert.Equal(t, []string{"0|x", "2|x"}, evalBat(t, in, like).Pairs())
}

func TestEvalDeltas(t *testing.T) {
	e := newEnv(t)
	m := e.m(t)
	col := e.t.Column("a")
	e.data.Insert(col, common.IntValue(4))
	e.data.Update(col, 0, common.IntValue(100))
	e.data.Delete(e.t, 1)
	in := NewInterpreter(e.data)

	ro := e.bat(t, e.t, "a")
	want := []string{"0|100", "2|3", "3|4"}
	assert.Equal(t, want, evalBat(t, in, ro).Pairs())
	delta := m(e.a.DeltaTableBat(col, e.bts[e.t], stmt.AC_RdOnly))
	assert.Equal(t, want, evalBat(t, in, delta).Pairs())

	ins := m(e.a.Bat(col, e.bts[e.t], stmt.AC_RdIns))
	assert.Equal(t, []string{"3|4"}, evalBat(t, in, ins).Pairs())
	dbat := m(e.a.TBat(e.t, stmt.AC_RdIns))
	assert.Equal(t, []string{"0|1"}, evalBat(t, in, dbat).Pairs())
}

func TestEvalSideEffect(t *testing.T) {
	e := newEnv(t)
	m := e.m(t)
	a := e.a
	in := NewInterpreter(e.data)
	rows := e.bat(t, e.t, "a")
	args := m(a.List([]*stmt.Stmt{m(a.AtomString("sys")), m(a.AtomString("seq"))}))
	nxt := m(a.Nop(args, e.fun(t, catalog.FuncNextValueFor, common.BigintType())))
	b := evalBat(t, in, m(a.Const(rows, nxt)))
	assert.Equal(t, []string{"1", "2", "3"}, b.Tails())

	//the sequence keeps going
	noArgs := m(a.Nop(m(a.List(nil)), e.fun(t, catalog.FuncNextValueFor, common.BigintType())))
	b = evalBat(t, in, m(a.Const(rows, noArgs)))
	assert.Equal(t, []string{"1", "2", "3"}, b.Tails())
	b = evalBat(t, in, m(a.Const(rows, nxt)))
	assert.Equal(t, []string{"4", "5", "6"}, b.Tails())
}

func TestEvalHasher(t *testing.T) {
	e := newEnv(t)
	m := e.m(t)
	a := e.a
	in := NewInterpreter(e.data, WithHasher(func(common.Value) uint64 {
		return 7
	}))
	h := m(a.Unop(e.bat(t, e.t, "a"), e.fun(t, catalog.FuncHash, common.HashType())))
	assert.Equal(t, []string{"7", "7", "7"}, evalBat(t, in, h).Tails())

	rot := m(a.Nop(m(a.List([]*stmt.Stmt{h, m(a.AtomInt(4)), e.bat(t, e.t, "b")})),
		e.fun(t, catalog.FuncRotateXorHash, common.HashType())))
	want := fmt.Sprintf("%x", util.RotateLeft(7, 4)^7)
	assert.Equal(t, []string{want, want, want}, evalBat(t, in, rot).Tails())
}

func TestEvalErrors(t *testing.T) {
	e := newEnv(t)
	m := e.m(t)
	a := e.a
	in := NewInterpreter(e.data)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := in.Eval(ctx, e.bat(t, e.t, "a"))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = in.Eval(context.Background(), m(a.TableClear(e.t)))
	assert.True(t, ErrUnsupportedKind.Is(err))

	_, err = NewInterpreter(NewDataset()).Eval(context.Background(), e.bat(t, e.t, "a"))
	assert.True(t, ErrMissingData.Is(err))

	_, err = in.Eval(context.Background(), m(a.Exception(m(a.AtomBool(true)), "boom", 42)))
	assert.True(t, ErrRaised.Is(err))
	res, err := in.Eval(context.Background(), m(a.Exception(m(a.AtomBool(false)), "boom", 42)))
	require.NoError(t, err)
	assert.Equal(t, RK_None, res.Kind)

	v := m(a.Var("x", common.IntegerType(), false, 0))
	_, err = in.Eval(context.Background(), v)
	assert.True(t, ErrUnboundVar.Is(err))
	res, err = NewInterpreter(e.data, WithVar("x", common.IntValue(5))).Eval(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Val.I64)

	unknown := stmt.FuncVal{Fun: &catalog.Func{Name: "nope"}, Res: common.IntegerType()}
	_, err = in.Eval(context.Background(), m(a.Unop(e.bat(t, e.t, "a"), unknown)))
	assert.True(t, ErrUnknownFunction.Is(err))
}

func TestEvalFault(t *testing.T) {
	e := newEnv(t)
	util.Arm(util.FaultEval)
	defer util.Disarm(util.FaultEval)
	util.Inject(util.FaultEval, FaultEvalNode, nil, func([]string) error {
		return fmt.Errorf("disk on fire")
	})
	_, err := NewInterpreter(e.data).Eval(context.Background(), e.bat(t, e.t, "a"))
	assert.EqualError(t, err, "disk on fire")
}

func TestWildcardMatch(t *testing.T) {
	cases := []struct {
		pattern, target string
		escape          byte
		want            bool
	}{
		{"a%", "abc", 0, true},
		{"a%", "b", 0, false},
		{"%b_", "abc", 0, true},
		{"%", "", 0, true},
		{"a_c", "ac", 0, false},
		{"a%c%e", "abxcdde", 0, true},
		{"a\\%b", "a%b", '\\', true},
		{"a\\%b", "axb", '\\', false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, wildcardMatch(c.pattern, c.target, c.escape), "%q ~ %q", c.target, c.pattern)
	}
}
