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
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/src-d/go-errors.v1"

	"github.com/daviszhen/binopt/pkg/common"
	"github.com/daviszhen/binopt/pkg/stmt"
	"github.com/daviszhen/binopt/pkg/util"
)

var (
	ErrUnsupportedKind = errors.NewKind("eval: unsupported statement %s")
	ErrUnknownFunction = errors.NewKind("eval: unknown function %s")
	ErrMissingData     = errors.NewKind("eval: no data for object %d")
	ErrUnboundVar      = errors.NewKind("eval: variable %s is not bound")
	ErrBadOperand      = errors.NewKind("eval: %s expects a %s operand, got %s")
	ErrRaised          = errors.NewKind("exception %d: %s")
)

const FaultEvalNode = "eval.node"

// Hasher is the per value hash behind the hash functions.
type Hasher func(common.Value) uint64

type Option func(in *Interpreter)

// WithHasher replaces the value hash, e.g. to force collisions.
func WithHasher(h Hasher) Option {
	return func(in *Interpreter) {
		in._hasher = h
	}
}

// WithVar binds a variable read by var statements.
func WithVar(name string, val common.Value) Option {
	return func(in *Interpreter) {
		in._vars[name] = val
	}
}

// Interpreter evaluates statement DAGs over a dataset. It never modifies
// the dataset. Sequences advance across calls to Eval.
type Interpreter struct {
	_data   *Dataset
	_hasher Hasher
	_vars   map[string]common.Value
	_seqs   map[string]int64
	_funcs  FunctionList
	_aggrs  AggrList
}

func NewInterpreter(data *Dataset, opts ...Option) *Interpreter {
	in := &Interpreter{
		_data:   data,
		_hasher: common.Value.Hash,
		_vars:   make(map[string]common.Value),
		_seqs:   make(map[string]int64),
		_funcs:  builtinFuncs,
		_aggrs:  builtinAggrs,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

func (in *Interpreter) hasher(v common.Value) uint64 {
	return in._hasher(v)
}

func (in *Interpreter) nextValue(seq string) int64 {
	in._seqs[seq]++
	return in._seqs[seq]
}

// run holds the results of one evaluation.
type run struct {
	in      *Interpreter
	results map[int]*Result
	tails   map[*Bat]map[any]common.Value
}

// Eval computes the value of root. Nodes are evaluated once each, in
// topological order.
func (in *Interpreter) Eval(ctx context.Context, root *stmt.Stmt) (*Result, error) {
	lin := stmt.Array(root)
	r := &run{
		in:      in,
		results: make(map[int]*Result, lin.Len()),
		tails:   make(map[*Bat]map[any]common.Value),
	}
	for i, s := range lin.Stmts {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := util.Check(util.FaultEval, FaultEvalNode).Fire(); err != nil {
			return nil, err
		}
		res, err := r.eval(s)
		if err != nil {
			return nil, err
		}
		r.results[s.Id] = res
	}
	util.Debug("eval done", zap.Int("nodes", lin.Len()))
	if root == nil {
		return noneResult, nil
	}
	return r.results[root.Id], nil
}

func (r *run) get(s *stmt.Stmt) *Result {
	if s == nil {
		return noneResult
	}
	res, has := r.results[s.Id]
	util.AssertFunc(has)
	return res
}

func (r *run) bat(who stmt.StType, s *stmt.Stmt) (*Bat, error) {
	res := r.get(s)
	if res.Kind != RK_Bat {
		return nil, ErrBadOperand.New(who, RK_Bat, res.Kind)
	}
	return res.Bat, nil
}

func (r *run) scalar(who stmt.StType, s *stmt.Stmt) (common.Value, error) {
	res := r.get(s)
	if res.Kind != RK_Scalar {
		return common.Value{}, ErrBadOperand.New(who, RK_Scalar, res.Kind)
	}
	return res.Val, nil
}

func (r *run) bats(who stmt.StType, l *stmt.Stmt) ([]*Bat, error) {
	var ret []*Bat
	for _, e := range l.List() {
		b, err := r.bat(who, e)
		if err != nil {
			return nil, err
		}
		ret = append(ret, b)
	}
	return ret, nil
}

func (r *run) tailOf(b *Bat) map[any]common.Value {
	m, has := r.tails[b]
	if !has {
		m = b.tailOf()
		r.tails[b] = m
	}
	return m
}

func voidValue() common.Value {
	return common.NullValue(common.Null())
}

func (r *run) eval(s *stmt.Stmt) (*Result, error) {
	switch s.Typ {
	case stmt.ST_None, stmt.ST_BaseTable:
		return noneResult, nil
	case stmt.ST_Atom:
		return scalarResult(s.Atom()), nil
	case stmt.ST_Var:
		name := fmt.Sprintf("A%d", s.Flag)
		if s.Op1 != nil {
			name = s.Op1.Atom().Str
		}
		v, has := r.in._vars[name]
		if !has {
			return nil, ErrUnboundVar.New(name)
		}
		return scalarResult(v), nil
	case stmt.ST_Temp:
		return batResult(NewBat(0)), nil
	case stmt.ST_Single:
		v, err := r.scalar(s.Typ, s.Op1)
		if err != nil {
			return nil, err
		}
		b := NewBat(1)
		b.Append(common.OidValue(0), v)
		return batResult(b), nil
	case stmt.ST_Bat:
		col := s.Column()
		b, err := r.in._data.part(col.Id, col.Table, s.Flag)
		if err != nil {
			return nil, err
		}
		return batResult(b), nil
	case stmt.ST_IdxBat:
		idx := s.Index()
		b, err := r.in._data.part(idx.Id, idx.Table, s.Flag)
		if err != nil {
			return nil, err
		}
		return batResult(b), nil
	case stmt.ST_DBat:
		return batResult(r.in._data.deletes(s.Table())), nil
	case stmt.ST_Const:
		return r.evalConst(s)
	case stmt.ST_Mark:
		return r.evalMark(s)
	case stmt.ST_Reverse:
		b, err := r.bat(s.Typ, s.Op1)
		if err != nil {
			return nil, err
		}
		return batResult(&Bat{Head: b.Tail, Tail: b.Head}), nil
	case stmt.ST_Mirror:
		b, err := r.bat(s.Typ, s.Op1)
		if err != nil {
			return nil, err
		}
		return batResult(&Bat{Head: b.Head, Tail: b.Head}), nil
	case stmt.ST_Limit, stmt.ST_Limit2:
		return r.evalLimit(s)
	case stmt.ST_Order, stmt.ST_Reorder:
		return r.evalOrder(s)
	case stmt.ST_Ordered:
		return r.evalOrdered(s)
	case stmt.ST_Output, stmt.ST_AffectedRows, stmt.ST_Alias, stmt.ST_Return:
		return r.get(s.Op1), nil
	case stmt.ST_Select, stmt.ST_USelect, stmt.ST_Select2, stmt.ST_USelect2:
		return r.evalSelect(s)
	case stmt.ST_SelectN, stmt.ST_USelectN:
		return r.evalSelectN(s)
	case stmt.ST_SemiJoin, stmt.ST_Diff:
		return r.evalFilterHeads(s)
	case stmt.ST_RelSelect:
		return r.evalRelSelect(s)
	case stmt.ST_RelEqJoin:
		return r.evalRelEqJoin(s)
	case stmt.ST_RelJoin:
		return r.evalRelJoin(s)
	case stmt.ST_Join, stmt.ST_OuterJoin:
		return r.evalJoin(s)
	case stmt.ST_Join2:
		return r.evalJoin2(s)
	case stmt.ST_JoinN:
		return r.evalJoinN(s)
	case stmt.ST_Union, stmt.ST_Append:
		b1, err := r.bat(s.Typ, s.Op1)
		if err != nil {
			return nil, err
		}
		b2, err := r.bat(s.Typ, s.Op2)
		if err != nil {
			return nil, err
		}
		return batResult(&Bat{
			Head: append(util.CopyTo(b1.Head), b2.Head...),
			Tail: append(util.CopyTo(b1.Tail), b2.Tail...),
		}), nil
	case stmt.ST_Unique:
		return r.evalUnique(s)
	case stmt.ST_Group, stmt.ST_Derive, stmt.ST_GroupExt:
		return r.evalGroup(s)
	case stmt.ST_Aggr:
		return r.evalAggr(s)
	case stmt.ST_Convert:
		return r.evalConvert(s)
	case stmt.ST_Unop, stmt.ST_Binop, stmt.ST_Nop:
		return r.evalFunc(s)
	case stmt.ST_List:
		ret := &Result{Kind: RK_List}
		for _, e := range s.List() {
			ret.List = append(ret.List, r.get(e))
		}
		return ret, nil
	case stmt.ST_Exception:
		return r.evalException(s)
	case stmt.ST_Assign:
		v, err := r.scalar(s.Typ, s.Op2)
		if err != nil {
			return nil, err
		}
		r.in._vars[s.Op1.Atom().Str] = v
		return noneResult, nil
	default:
		return nil, ErrUnsupportedKind.New(s.Typ)
	}
}

func (r *run) evalConst(s *stmt.Stmt) (*Result, error) {
	rows, err := r.bat(s.Typ, s.Op1)
	if err != nil {
		return nil, err
	}
	v, err := r.scalar(s.Typ, s.Op2)
	if err != nil {
		return nil, err
	}
	b := NewBat(rows.Len())
	for _, h := range rows.Head {
		b.Append(h, v)
	}
	return batResult(b), nil
}

func (r *run) evalMark(s *stmt.Stmt) (*Result, error) {
	in, err := r.bat(s.Typ, s.Op1)
	if err != nil {
		return nil, err
	}
	base, err := r.scalar(s.Typ, s.Op2)
	if err != nil {
		return nil, err
	}
	b := NewBat(in.Len())
	for i, h := range in.Head {
		b.Append(h, common.OidValue(base.I64+int64(i)))
	}
	return batResult(b), nil
}

func (r *run) evalLimit(s *stmt.Stmt) (*Result, error) {
	offset, err := r.scalar(s.Typ, s.Op2)
	if err != nil {
		return nil, err
	}
	limit, err := r.scalar(s.Typ, s.Op3)
	if err != nil {
		return nil, err
	}
	var in *Bat
	if s.Typ == stmt.ST_Limit {
		in, err = r.bat(s.Typ, s.Op1)
	} else {
		in, err = r.bat(s.Typ, s.Op1.List()[1])
	}
	if err != nil {
		return nil, err
	}
	lo := 0
	if !offset.IsNull {
		lo = min(int(offset.I64), in.Len())
	}
	hi := in.Len()
	if !limit.IsNull {
		hi = min(lo+int(limit.I64), in.Len())
	}
	sliced := &Bat{Head: in.Head[lo:hi], Tail: in.Tail[lo:hi]}
	if s.Typ == stmt.ST_Limit {
		return batResult(sliced), nil
	}
	//limit2 keeps the rows of the second input for the surviving heads
	second, err := r.bat(s.Typ, s.Op1.List()[0])
	if err != nil {
		return nil, err
	}
	return batResult(filterHeads(second, sliced, true)), nil
}

// compareNullsFirst orders values with nulls in front.
func compareNullsFirst(a, b common.Value) int {
	switch {
	case a.IsNull && b.IsNull:
		return 0
	case a.IsNull:
		return -1
	case b.IsNull:
		return 1
	}
	c, _ := a.Compare(b)
	return c
}

func (r *run) evalOrder(s *stmt.Stmt) (*Result, error) {
	in, err := r.bat(s.Typ, s.Op1)
	if err != nil {
		return nil, err
	}
	var second map[any]common.Value
	if s.Typ == stmt.ST_Reorder {
		t, err := r.bat(s.Typ, s.Op2)
		if err != nil {
			return nil, err
		}
		second = r.tailOf(t)
	}
	idx := make([]int, in.Len())
	for i := range idx {
		idx[i] = i
	}
	desc := s.Flag == stmt.DIR_Desc
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := idx[i], idx[j]
		c := compareNullsFirst(in.Tail[a], in.Tail[b])
		if c == 0 && second != nil {
			c = compareNullsFirst(second[in.Head[a].Key()], second[in.Head[b].Key()])
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
	b := NewBat(len(idx))
	for _, i := range idx {
		b.Append(in.Head[i], in.Tail[i])
	}
	return batResult(b), nil
}

func (r *run) evalOrdered(s *stmt.Stmt) (*Result, error) {
	order, err := r.bat(s.Typ, s.Op1)
	if err != nil {
		return nil, err
	}
	res, err := r.bat(s.Typ, s.Op2)
	if err != nil {
		return nil, err
	}
	rows := res.heads()
	b := NewBat(res.Len())
	for _, h := range order.Head {
		for _, i := range rows[h.Key()] {
			b.Append(res.Head[i], res.Tail[i])
		}
		delete(rows, h.Key())
	}
	return batResult(b), nil
}

// matchCmp applies a comparison sub opcode. Nulls never match.
func matchCmp(v, o common.Value, cmp stmt.CmpType, escape byte) bool {
	if cmp == stmt.CMP_All {
		return true
	}
	if v.IsNull || o.IsNull {
		return false
	}
	if cmp.IsPattern() {
		target, pattern := v.Str, o.Str
		if cmp == stmt.CMP_ILike || cmp == stmt.CMP_NotILike {
			target, pattern = strings.ToLower(target), strings.ToLower(pattern)
		}
		hit := wildcardMatch(pattern, target, escape)
		if cmp == stmt.CMP_NotLike || cmp == stmt.CMP_NotILike {
			return !hit
		}
		return hit
	}
	c, ok := v.Compare(o)
	if !ok {
		return false
	}
	switch cmp {
	case stmt.CMP_Equal, stmt.CMP_Project, stmt.CMP_ReorderProject:
		return c == 0
	case stmt.CMP_NotEqual:
		return c != 0
	case stmt.CMP_Lt:
		return c < 0
	case stmt.CMP_Lte:
		return c <= 0
	case stmt.CMP_Gt:
		return c > 0
	case stmt.CMP_Gte:
		return c >= 0
	default:
		panic(fmt.Sprintf("usp cmp %s", cmp))
	}
}

// inRange tests lo < v < hi with the bounds included per flag. A null
// bound is open.
func inRange(v, lo, hi common.Value, flag int) bool {
	if v.IsNull {
		return false
	}
	ok := true
	if !lo.IsNull {
		c, cok := v.Compare(lo)
		ok = cok && (c > 0 || (c == 0 && flag&stmt.RANGE_IncLow != 0))
	}
	if ok && !hi.IsNull {
		c, cok := v.Compare(hi)
		ok = cok && (c < 0 || (c == 0 && flag&stmt.RANGE_IncHigh != 0))
	}
	if flag&stmt.RANGE_Anti != 0 {
		return !ok
	}
	return ok
}

// bound yields the comparison value for the row with head h. Scalars
// apply to every row, bats by head.
type bound func(h common.Value) (common.Value, bool)

func (r *run) bound(who stmt.StType, s *stmt.Stmt) (bound, error) {
	if s == nil {
		return func(common.Value) (common.Value, bool) {
			return voidValue(), true
		}, nil
	}
	res := r.get(s)
	switch res.Kind {
	case RK_Scalar:
		return func(common.Value) (common.Value, bool) {
			return res.Val, true
		}, nil
	case RK_Bat:
		m := r.tailOf(res.Bat)
		return func(h common.Value) (common.Value, bool) {
			v, has := m[h.Key()]
			return v, has
		}, nil
	default:
		return nil, ErrBadOperand.New(who, RK_Scalar, res.Kind)
	}
}

func (r *run) evalSelect(s *stmt.Stmt) (*Result, error) {
	in, err := r.bat(s.Typ, s.Op1)
	if err != nil {
		return nil, err
	}
	lo, err := r.bound(s.Typ, s.Op2)
	if err != nil {
		return nil, err
	}
	hi, err := r.bound(s.Typ, s.Op3)
	if err != nil {
		return nil, err
	}
	ranged := s.Typ == stmt.ST_Select2 || s.Typ == stmt.ST_USelect2
	b := NewBat(in.Len())
	for i, t := range in.Tail {
		h := in.Head[i]
		o, ok1 := lo(h)
		o3, ok2 := hi(h)
		if !ok1 || !ok2 {
			continue
		}
		var hit bool
		if ranged {
			hit = inRange(t, o, o3, s.Flag)
		} else {
			var escape byte
			if !o3.IsNull && len(o3.Str) > 0 {
				escape = o3.Str[0]
			}
			hit = matchCmp(t, o, s.Cmp(), escape)
		}
		if hit {
			if s.Typ.IsUSelect() {
				t = voidValue()
			}
			b.Append(h, t)
		}
	}
	return batResult(b), nil
}

func (r *run) evalSelectN(s *stmt.Stmt) (*Result, error) {
	in, err := r.bat(s.Typ, s.Op1)
	if err != nil {
		return nil, err
	}
	args := []*Result{batResult(in)}
	if s.Op2 != nil {
		args = append(args, r.get(s.Op2).List...)
	}
	vals, err := r.apply(s.Func(), args)
	if err != nil {
		return nil, err
	}
	keep := make(map[any]bool, vals.Len())
	for i, v := range vals.Tail {
		if !v.IsNull && v.Bool {
			keep[vals.Head[i].Key()] = true
		}
	}
	b := NewBat(in.Len())
	for i, h := range in.Head {
		if keep[h.Key()] {
			t := in.Tail[i]
			if s.Typ.IsUSelect() {
				t = voidValue()
			}
			b.Append(h, t)
		}
	}
	return batResult(b), nil
}

// filterHeads keeps the rows of in whose head occurs in by, or does not
// occur when keep is false.
func filterHeads(in, by *Bat, keep bool) *Bat {
	heads := make(map[any]bool, by.Len())
	for _, h := range by.Head {
		if k := h.Key(); k != nil {
			heads[k] = true
		}
	}
	b := NewBat(in.Len())
	for i, h := range in.Head {
		if heads[h.Key()] == keep {
			b.Append(h, in.Tail[i])
		}
	}
	return b
}

func (r *run) evalFilterHeads(s *stmt.Stmt) (*Result, error) {
	in, err := r.bat(s.Typ, s.Op1)
	if err != nil {
		return nil, err
	}
	by, err := r.bat(s.Typ, s.Op2)
	if err != nil {
		return nil, err
	}
	return batResult(filterHeads(in, by, s.Typ == stmt.ST_SemiJoin)), nil
}

func (r *run) evalRelSelect(s *stmt.Stmt) (*Result, error) {
	sels, err := r.bats(s.Typ, s.Op1)
	if err != nil {
		return nil, err
	}
	if len(sels) == 0 {
		return batResult(NewBat(0)), nil
	}
	b := sels[0]
	for _, o := range sels[1:] {
		b = filterHeads(b, o, true)
	}
	return batResult(b), nil
}

func (r *run) evalRelEqJoin(s *stmt.Stmt) (*Result, error) {
	l, err := r.bats(s.Typ, s.Op1)
	if err != nil {
		return nil, err
	}
	rr, err := r.bats(s.Typ, s.Op2)
	if err != nil {
		return nil, err
	}
	if len(l) == 0 || len(l) != len(rr) {
		return nil, ErrBadOperand.New(s.Typ, "key list", fmt.Sprintf("%d/%d columns", len(l), len(rr)))
	}
	byKey := make(map[any][]int)
	for i, t := range rr[0].Tail {
		if k := t.Key(); k != nil {
			byKey[k] = append(byKey[k], i)
		}
	}
	b := NewBat(l[0].Len())
	for i, t := range l[0].Tail {
		lh := l[0].Head[i]
		for _, j := range byKey[t.Key()] {
			rh := rr[0].Head[j]
			match := true
			for c := 1; c < len(l) && match; c++ {
				lv, lok := r.tailOf(l[c])[lh.Key()]
				rv, rok := r.tailOf(rr[c])[rh.Key()]
				match = lok && rok && lv.Equal(rv)
			}
			if match && t.Key() != nil {
				b.Append(lh, rh)
			}
		}
	}
	return batResult(b), nil
}

type pairKey struct {
	h, t any
}

func (r *run) evalRelJoin(s *stmt.Stmt) (*Result, error) {
	joins, err := r.bats(s.Typ, s.Op2)
	if err != nil {
		return nil, err
	}
	var b *Bat
	if s.Op1 != nil {
		if b, err = r.bat(s.Typ, s.Op1); err != nil {
			return nil, err
		}
	} else if len(joins) > 0 {
		b, joins = joins[0], joins[1:]
	} else {
		return batResult(NewBat(0)), nil
	}
	for _, j := range joins {
		pairs := make(map[pairKey]bool, j.Len())
		for i := range j.Head {
			pairs[pairKey{j.Head[i].Key(), j.Tail[i].Key()}] = true
		}
		nb := NewBat(b.Len())
		for i := range b.Head {
			if pairs[pairKey{b.Head[i].Key(), b.Tail[i].Key()}] {
				nb.Append(b.Head[i], b.Tail[i])
			}
		}
		b = nb
	}
	return batResult(b), nil
}

func (r *run) evalJoin(s *stmt.Stmt) (*Result, error) {
	l, err := r.bat(s.Typ, s.Op1)
	if err != nil {
		return nil, err
	}
	rr, err := r.bat(s.Typ, s.Op2)
	if err != nil {
		return nil, err
	}
	cmp := s.Cmp()
	outer := s.Typ == stmt.ST_OuterJoin
	b := NewBat(l.Len())
	switch cmp {
	case stmt.CMP_Equal, stmt.CMP_Project, stmt.CMP_ReorderProject:
		heads := rr.heads()
		for i, t := range l.Tail {
			rows := heads[t.Key()]
			if t.IsNull {
				rows = nil
			}
			for _, j := range rows {
				b.Append(l.Head[i], rr.Tail[j])
			}
			if outer && len(rows) == 0 {
				b.Append(l.Head[i], voidValue())
			}
		}
	default:
		for i, t := range l.Tail {
			found := false
			for j, h := range rr.Head {
				if matchCmp(t, h, cmp, 0) {
					b.Append(l.Head[i], rr.Tail[j])
					found = true
				}
			}
			if outer && !found {
				b.Append(l.Head[i], voidValue())
			}
		}
	}
	return batResult(b), nil
}

func (r *run) evalJoin2(s *stmt.Stmt) (*Result, error) {
	l, err := r.bat(s.Typ, s.Op1)
	if err != nil {
		return nil, err
	}
	lo, err := r.bat(s.Typ, s.Op2)
	if err != nil {
		return nil, err
	}
	hi, err := r.bat(s.Typ, s.Op3)
	if err != nil {
		return nil, err
	}
	his := r.tailOf(hi)
	b := NewBat(l.Len())
	for i, t := range l.Tail {
		for j, rh := range lo.Head {
			hv, has := his[rh.Key()]
			if has && inRange(t, lo.Tail[j], hv, s.Flag) {
				b.Append(l.Head[i], rh)
			}
		}
	}
	return batResult(b), nil
}

func (r *run) evalJoinN(s *stmt.Stmt) (*Result, error) {
	l, err := r.bats(s.Typ, s.Op1)
	if err != nil {
		return nil, err
	}
	rr, err := r.bats(s.Typ, s.Op2)
	if err != nil {
		return nil, err
	}
	if len(l) == 0 || len(rr) == 0 {
		return nil, ErrBadOperand.New(s.Typ, "column list", "empty list")
	}
	fun, err := r.in.function(s.Func())
	if err != nil {
		return nil, err
	}
	collect := func(cols []*Bat, h common.Value) ([]common.Value, bool) {
		ret := make([]common.Value, 0, len(cols))
		for _, c := range cols {
			v, has := r.tailOf(c)[h.Key()]
			if !has {
				return nil, false
			}
			ret = append(ret, v)
		}
		return ret, true
	}
	b := NewBat(l[0].Len())
	for _, lh := range l[0].Head {
		largs, ok := collect(l, lh)
		if !ok {
			continue
		}
		for _, rh := range rr[0].Head {
			rargs, ok := collect(rr, rh)
			if !ok {
				continue
			}
			v, err := fun(r.in, append(util.CopyTo(largs), rargs...), s.Func().Res)
			if err != nil {
				return nil, err
			}
			if !v.IsNull && v.Bool {
				b.Append(lh, rh)
			}
		}
	}
	return batResult(b), nil
}

func (r *run) evalUnique(s *stmt.Stmt) (*Result, error) {
	in, err := r.bat(s.Typ, s.Op1)
	if err != nil {
		return nil, err
	}
	seen := make(map[any]bool, in.Len())
	b := NewBat(in.Len())
	for i, t := range in.Tail {
		k := t.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		b.Append(in.Head[i], t)
	}
	return batResult(b), nil
}

// evalGroup numbers groups by the head of their first row.
func (r *run) evalGroup(s *stmt.Stmt) (*Result, error) {
	in, err := r.bat(s.Typ, s.Op1)
	if err != nil {
		return nil, err
	}
	b := NewBat(in.Len())
	switch s.Typ {
	case stmt.ST_Group:
		first := make(map[any]common.Value)
		for i, t := range in.Tail {
			gid, has := first[t.Key()]
			if !has {
				gid = common.OidValue(in.Head[i].I64)
				first[t.Key()] = gid
			}
			b.Append(in.Head[i], gid)
		}
	case stmt.ST_Derive:
		by, err := r.bat(s.Typ, s.Op2)
		if err != nil {
			return nil, err
		}
		vals := r.tailOf(by)
		first := make(map[pairKey]common.Value)
		for i, t := range in.Tail {
			k := pairKey{t.Key(), vals[in.Head[i].Key()].Key()}
			gid, has := first[k]
			if !has {
				gid = common.OidValue(in.Head[i].I64)
				first[k] = gid
			}
			b.Append(in.Head[i], gid)
		}
	case stmt.ST_GroupExt:
		seen := make(map[any]bool)
		for _, gid := range in.Tail {
			if !seen[gid.Key()] {
				seen[gid.Key()] = true
				b.Append(gid, gid)
			}
		}
	}
	return batResult(b), nil
}

func (r *run) evalAggr(s *stmt.Stmt) (*Result, error) {
	av := s.AggrFunc()
	fun, has := r.in._aggrs[av.Aggr.Name]
	if !has {
		return nil, ErrUnknownFunction.New(av.Aggr.Name)
	}
	in := r.get(s.Op1)
	var vals []common.Value
	switch in.Kind {
	case RK_Bat:
		vals = in.Bat.Tail
	case RK_Scalar:
		vals = []common.Value{in.Val}
	default:
		return nil, ErrBadOperand.New(s.Typ, RK_Bat, in.Kind)
	}

	if s.Op2 != nil && in.Kind == RK_Bat {
		//per group: op2 maps rows to groups, by the extent or by value
		grp, err := r.bat(s.Typ, s.Op2)
		if err != nil {
			return nil, err
		}
		gids := r.tailOf(grp)
		members := make(map[any][]common.Value)
		var order []common.Value
		if s.Op3 != nil {
			ext, err := r.bat(s.Typ, s.Op3)
			if err != nil {
				return nil, err
			}
			order = ext.Head
		}
		seen := make(map[any]bool)
		for i, h := range in.Bat.Head {
			gid, has := gids[h.Key()]
			if !has {
				continue
			}
			members[gid.Key()] = append(members[gid.Key()], in.Bat.Tail[i])
			if s.Op3 == nil && !seen[gid.Key()] {
				seen[gid.Key()] = true
				order = append(order, gid)
			}
		}
		b := NewBat(len(order))
		for _, gid := range order {
			v, err := fun(members[gid.Key()], av.Res)
			if err != nil {
				return nil, err
			}
			b.Append(gid, v)
		}
		return batResult(b), nil
	}

	v, err := fun(vals, av.Res)
	if err != nil {
		return nil, err
	}
	if s.NrCols == 0 {
		return scalarResult(v), nil
	}
	b := NewBat(1)
	b.Append(common.OidValue(0), v)
	return batResult(b), nil
}

func (r *run) evalConvert(s *stmt.Stmt) (*Result, error) {
	to := s.Op4.(stmt.ConvertVal).To
	in := r.get(s.Op1)
	switch in.Kind {
	case RK_Scalar:
		v, err := in.Val.Cast(to)
		if err != nil {
			return nil, err
		}
		return scalarResult(v), nil
	case RK_Bat:
		b := NewBat(in.Bat.Len())
		for i, t := range in.Bat.Tail {
			v, err := t.Cast(to)
			if err != nil {
				return nil, err
			}
			b.Append(in.Bat.Head[i], v)
		}
		return batResult(b), nil
	default:
		return nil, ErrBadOperand.New(s.Typ, RK_Bat, in.Kind)
	}
}

func (in *Interpreter) function(fv stmt.FuncVal) (ScalarFunc, error) {
	fun, has := in._funcs[fv.Fun.Name]
	if !has {
		return nil, ErrUnknownFunction.New(fv.Fun.Name)
	}
	return fun, nil
}

// apply calls fv once per row of the first bat argument. The other bat
// arguments are aligned by head, scalars are broadcast. Without bat
// arguments fv is called once.
func (r *run) apply(fv stmt.FuncVal, args []*Result) (*Bat, error) {
	fun, err := r.in.function(fv)
	if err != nil {
		return nil, err
	}
	var driver *Bat
	for _, arg := range args {
		if arg.Kind == RK_Bat {
			driver = arg.Bat
			break
		}
	}
	if driver == nil {
		vals := make([]common.Value, len(args))
		for i, arg := range args {
			if arg.Kind != RK_Scalar {
				return nil, ErrBadOperand.New(fv.Fun.Name, RK_Scalar, arg.Kind)
			}
			vals[i] = arg.Val
		}
		v, err := fun(r.in, vals, fv.Res)
		if err != nil {
			return nil, err
		}
		return &Bat{Head: []common.Value{voidValue()}, Tail: []common.Value{v}}, nil
	}
	b := NewBat(driver.Len())
	vals := make([]common.Value, len(args))
	for i, h := range driver.Head {
		complete := true
		for a, arg := range args {
			switch {
			case arg.Kind == RK_Scalar:
				vals[a] = arg.Val
			case arg.Kind == RK_Bat && arg.Bat == driver:
				vals[a] = driver.Tail[i]
			case arg.Kind == RK_Bat:
				v, has := r.tailOf(arg.Bat)[h.Key()]
				vals[a] = v
				complete = complete && has
			default:
				return nil, ErrBadOperand.New(fv.Fun.Name, RK_Bat, arg.Kind)
			}
		}
		if !complete {
			continue
		}
		v, err := fun(r.in, vals, fv.Res)
		if err != nil {
			return nil, err
		}
		b.Append(h, v)
	}
	return b, nil
}

func (r *run) evalFunc(s *stmt.Stmt) (*Result, error) {
	var args []*Result
	switch s.Typ {
	case stmt.ST_Unop:
		args = []*Result{r.get(s.Op1)}
	case stmt.ST_Binop:
		args = []*Result{r.get(s.Op1), r.get(s.Op2)}
	case stmt.ST_Nop:
		args = r.get(s.Op1).List
	}
	b, err := r.apply(s.Func(), args)
	if err != nil {
		return nil, err
	}
	for _, arg := range args {
		if arg.Kind == RK_Bat {
			return batResult(b), nil
		}
	}
	return scalarResult(b.Tail[0]), nil
}

func (r *run) evalException(s *stmt.Stmt) (*Result, error) {
	cond := r.get(s.Op1)
	raise := false
	switch cond.Kind {
	case RK_Scalar:
		raise = !cond.Val.IsNull && cond.Val.Bool
	case RK_Bat:
		for _, t := range cond.Bat.Tail {
			if !t.IsNull && t.Bool {
				raise = true
				break
			}
		}
	}
	if !raise {
		return noneResult, nil
	}
	msg, err := r.scalar(s.Typ, s.Op2)
	if err != nil {
		return nil, err
	}
	code, err := r.scalar(s.Typ, s.Op3)
	if err != nil {
		return nil, err
	}
	return nil, ErrRaised.New(code.I64, msg.Str)
}
