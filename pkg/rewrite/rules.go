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
	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/stmt"
)

// commutes reports whether the selection s may move below a diff or a
// union. Negated comparisons stay above.
func commutes(s *stmt.Stmt) bool {
	switch s.Typ {
	case stmt.ST_Select, stmt.ST_USelect:
		return s.Cmp() != stmt.CMP_NotEqual && s.Cmp() != stmt.CMP_NotLike &&
			s.Cmp() != stmt.CMP_NotILike
	case stmt.ST_Select2, stmt.ST_USelect2:
		return s.Flag&stmt.RANGE_Anti == 0
	}
	return true
}

// pushSelect moves a selection below alias, diff and union.
func (o *Optimizer) pushSelect(s *stmt.Stmt) (*stmt.Stmt, error) {
	in, err := o.optimize(s.Op1)
	if err != nil {
		return nil, err
	}
	op2, err := o.optimize(s.Op2)
	if err != nil {
		return nil, err
	}
	op3, err := o.optimize(s.Op3)
	if err != nil {
		return nil, err
	}
	over := func(input *stmt.Stmt) (*stmt.Stmt, error) {
		sel, err := o._arena.Rebuild(s, input, op2, op3)
		if err != nil {
			return nil, err
		}
		return o.optimize(sel)
	}
	switch {
	case in.Typ == stmt.ST_Alias:
		sel, err := over(in.Op1)
		if err != nil {
			return nil, err
		}
		o.applied("select_alias", s)
		return o._arena.Rebuild(in, sel, in.Op2, in.Op3)
	case in.Typ == stmt.ST_Diff && commutes(s):
		sel, err := over(in.Op1)
		if err != nil {
			return nil, err
		}
		o.applied("select_diff", s)
		return o._arena.Diff(sel, in.Op2)
	case in.Typ == stmt.ST_Union && commutes(s):
		l, err := over(in.Op1)
		if err != nil {
			return nil, err
		}
		r, err := over(in.Op2)
		if err != nil {
			return nil, err
		}
		o.applied("select_union", s)
		return o._arena.Union(l, r)
	}
	if in == s.Op1 && op2 == s.Op2 && op3 == s.Op3 {
		return s, nil
	}
	return o._arena.Rebuild(s, in, op2, op3)
}

func zeroOffset(off *stmt.Stmt) bool {
	if off.Typ != stmt.ST_Atom {
		return false
	}
	v := off.Atom()
	return v.IsNull || v.I64 == 0
}

// wholeColumn reports whether s yields every live row of one column, either
// as the merged bat or as its delta expansion.
func wholeColumn(s *stmt.Stmt) bool {
	switch s.Typ {
	case stmt.ST_Bat:
		return s.Flag == stmt.AC_RdOnly
	case stmt.ST_Diff:
		if s.Op2.Typ != stmt.ST_Reverse || s.Op2.Op1.Typ != stmt.ST_DBat {
			return false
		}
		c := deltaMerge(s.Op1)
		return c != nil && c.Table == s.Op2.Op1.Table()
	}
	return false
}

// deltaMerge returns the column whose base, update and insert parts s merges.
func deltaMerge(s *stmt.Stmt) *catalog.Column {
	switch s.Typ {
	case stmt.ST_Bat:
		if s.Flag == stmt.AC_RdOnly || s.Flag == stmt.AC_RdBase {
			return s.Column()
		}
	case stmt.ST_Diff:
		if s.Op1.Typ == stmt.ST_Bat && s.Op1.Flag == stmt.AC_RdBase &&
			s.Op2.Typ == stmt.ST_Bat && s.Op2.Flag == stmt.AC_RdUpd &&
			s.Op1.Column() == s.Op2.Column() {
			return s.Op1.Column()
		}
	case stmt.ST_Union:
		if s.Op2.Typ != stmt.ST_Bat ||
			(s.Op2.Flag != stmt.AC_RdIns && s.Op2.Flag != stmt.AC_RdUpd) {
			return nil
		}
		if c := deltaMerge(s.Op1); c != nil && c == s.Op2.Column() {
			return c
		}
	}
	return nil
}

// pushLimit moves a limit without offset below a projection join over the
// same relation, or below a positional mark.
func (o *Optimizer) pushLimit(s *stmt.Stmt) (*stmt.Stmt, error) {
	in, err := o.optimize(s.Op1)
	if err != nil {
		return nil, err
	}
	off, err := o.optimize(s.Op2)
	if err != nil {
		return nil, err
	}
	lim, err := o.optimize(s.Op3)
	if err != nil {
		return nil, err
	}
	limit := func(input *stmt.Stmt) (*stmt.Stmt, error) {
		l, err := o._arena.Limit(input, off, lim, s.Flag)
		if err != nil {
			return nil, err
		}
		return o.optimize(l)
	}
	if zeroOffset(off) {
		if in.Typ == stmt.ST_Join &&
			(in.Cmp() == stmt.CMP_Equal || in.Cmp() == stmt.CMP_Project) &&
			in.Op1.T != nil && in.Op1.T == in.Op2.H && wholeColumn(in.Op2) {
			//every row of the left side finds its row on the right
			l, err := limit(in.Op1)
			if err != nil {
				return nil, err
			}
			o.applied("limit_join", s)
			return o._arena.Rebuild(in, l, in.Op2, nil)
		}
		if in.Typ == stmt.ST_Reverse && in.Op1.Typ == stmt.ST_Mark &&
			in.Op1.Op1.Typ == stmt.ST_Reverse {
			m := in.Op1
			l, err := limit(m.Op1.Op1)
			if err != nil {
				return nil, err
			}
			rl, err := o._arena.Reverse(l)
			if err != nil {
				return nil, err
			}
			if rl, err = o.optimize(rl); err != nil {
				return nil, err
			}
			nm, err := o._arena.Rebuild(m, rl, m.Op2, nil)
			if err != nil {
				return nil, err
			}
			res, err := o._arena.Reverse(nm)
			if err != nil {
				return nil, err
			}
			o.applied("limit_mark", s)
			return o.optimize(res)
		}
	}
	if in == s.Op1 && off == s.Op2 && lim == s.Op3 {
		return s, nil
	}
	return o._arena.Rebuild(s, in, off, lim)
}

// columnSelect returns the base column of a single column selection with
// constant bounds.
func columnSelect(s *stmt.Stmt) *catalog.Column {
	switch s.Typ {
	case stmt.ST_Select, stmt.ST_USelect, stmt.ST_Select2, stmt.ST_USelect2:
	default:
		return nil
	}
	if s.Op2.NrCols != 0 || (s.Op3 != nil && s.Op3.NrCols != 0) {
		return nil
	}
	return stmt.BaseColumn(s.Op1)
}

// selectRank orders selections over one column, cheapest filter first.
func selectRank(s *stmt.Stmt) int {
	if s.Typ == stmt.ST_Select2 || s.Typ == stmt.ST_USelect2 {
		return 3
	}
	switch s.Cmp() {
	case stmt.CMP_Equal:
		return 0
	case stmt.CMP_NotEqual:
		return 1
	default:
		return 2
	}
}

// semiJoin folds the semijoin of two selections over the same column into
// one chain of selections, and lets a selection drive the semijoin with a
// projection of its column.
func (o *Optimizer) semiJoin(s *stmt.Stmt) (*stmt.Stmt, error) {
	l, err := o.optimize(s.Op1)
	if err != nil {
		return nil, err
	}
	r, err := o.optimize(s.Op2)
	if err != nil {
		return nil, err
	}
	lc, rc := columnSelect(l), columnSelect(r)
	if lc != nil && lc == rc && l.Op1 == r.Op1 {
		first, second := l, r
		if selectRank(r) < selectRank(l) {
			first, second = r, l
		}
		inner, err := o._arena.Reselect(first, first.Op1, false)
		if err != nil {
			return nil, err
		}
		if inner, err = o.optimize(inner); err != nil {
			return nil, err
		}
		outer, err := o._arena.Reselect(second, inner, l.Typ.IsUSelect())
		if err != nil {
			return nil, err
		}
		o.applied("semijoin_fold", s)
		return o.optimize(outer)
	}
	if rc != nil && lc == nil && !r.Typ.IsUSelect() &&
		l.Typ == stmt.ST_Join && l.Cmp() == stmt.CMP_Project &&
		l.Op1.Typ == stmt.ST_Mirror && l.H == r.H &&
		stmt.BaseColumn(l.Op2) == rc &&
		stmt.TailType(l).Equal(stmt.TailType(r)) {
		o.applied("semijoin_swap", s)
		return o._arena.SemiJoin(r, l)
	}
	if l == s.Op1 && r == s.Op2 {
		return s, nil
	}
	return o._arena.Rebuild(s, l, r, nil)
}

func (o *Optimizer) reverse(s *stmt.Stmt) (*stmt.Stmt, error) {
	in, err := o.optimize(s.Op1)
	if err != nil {
		return nil, err
	}
	switch in.Typ {
	case stmt.ST_Reverse:
		o.applied("reverse_reverse", s)
		return o.optimize(in.Op1)
	case stmt.ST_Mirror:
		o.applied("reverse_mirror", s)
		return in, nil
	}
	if in == s.Op1 {
		return s, nil
	}
	return o._arena.Rebuild(s, in, nil, nil)
}

// join drops the deletion mask of the right side of an equi-join when the
// left tails are already masked by the same table.
func (o *Optimizer) join(s *stmt.Stmt) (*stmt.Stmt, error) {
	l, err := o.optimize(s.Op1)
	if err != nil {
		return nil, err
	}
	r, err := o.optimize(s.Op2)
	if err != nil {
		return nil, err
	}
	cmp := s.Cmp()
	if (cmp == stmt.CMP_Equal || cmp == stmt.CMP_Project) && r.Typ == stmt.ST_Diff {
		if tab := deletesOf(r.Op2); tab != nil && newMasks(tab).tailMasked(l) {
			o.applied("join_diff", s)
			return o._arena.Rebuild(s, l, r.Op1, nil)
		}
	}
	if l == s.Op1 && r == s.Op2 {
		return s, nil
	}
	return o._arena.Rebuild(s, l, r, nil)
}

// deletesOf returns the table when s is the reversed deletion bat of it.
func deletesOf(s *stmt.Stmt) *catalog.Table {
	if s.Typ == stmt.ST_Reverse && s.Op1.Typ == stmt.ST_DBat {
		return s.Op1.Table()
	}
	return nil
}

// masks decides whether the heads or the tails of a node hold live oids
// of a table only.
type masks struct {
	_tab  *catalog.Table
	_head map[int]bool
	_tail map[int]bool
}

func newMasks(tab *catalog.Table) *masks {
	return &masks{
		_tab:  tab,
		_head: make(map[int]bool),
		_tail: make(map[int]bool),
	}
}

func (m *masks) headMasked(s *stmt.Stmt) bool {
	if s == nil {
		return false
	}
	if v, has := m._head[s.Id]; has {
		return v
	}
	var ret bool
	switch s.Typ {
	case stmt.ST_Diff:
		ret = deletesOf(s.Op2) == m._tab || m.headMasked(s.Op1)
	case stmt.ST_Select, stmt.ST_Select2, stmt.ST_SelectN,
		stmt.ST_USelect, stmt.ST_USelect2, stmt.ST_USelectN,
		stmt.ST_Limit, stmt.ST_Order, stmt.ST_Alias, stmt.ST_Mark,
		stmt.ST_Mirror, stmt.ST_Join, stmt.ST_OuterJoin, stmt.ST_Unique,
		stmt.ST_Convert, stmt.ST_Unop:
		ret = m.headMasked(s.Op1)
	case stmt.ST_SemiJoin:
		ret = m.headMasked(s.Op1) || m.headMasked(s.Op2)
	case stmt.ST_Union:
		ret = m.headMasked(s.Op1) && m.headMasked(s.Op2)
	case stmt.ST_Reverse:
		ret = m.tailMasked(s.Op1)
	}
	m._head[s.Id] = ret
	return ret
}

func (m *masks) tailMasked(s *stmt.Stmt) bool {
	if s == nil {
		return false
	}
	if v, has := m._tail[s.Id]; has {
		return v
	}
	var ret bool
	switch s.Typ {
	case stmt.ST_Mirror, stmt.ST_Reverse:
		ret = m.headMasked(s.Op1)
	case stmt.ST_Join:
		ret = m.tailMasked(s.Op2)
	case stmt.ST_Select, stmt.ST_Select2, stmt.ST_SelectN, stmt.ST_SemiJoin,
		stmt.ST_Diff, stmt.ST_Limit, stmt.ST_Order, stmt.ST_Alias,
		stmt.ST_Unique:
		ret = m.tailMasked(s.Op1)
	case stmt.ST_Union:
		ret = m.tailMasked(s.Op1) && m.tailMasked(s.Op2)
	}
	m._tail[s.Id] = ret
	return ret
}
