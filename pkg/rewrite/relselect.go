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
	"github.com/daviszhen/binopt/pkg/common"
	"github.com/daviszhen/binopt/pkg/stmt"
)

// relSelect turns the conjunction of selections into a chain. The driver
// selection is evaluated first and every other selection runs over the
// rows it kept.
func (o *Optimizer) relSelect(s *stmt.Stmt) (*stmt.Stmt, error) {
	sels := s.Op1.List()
	if len(sels) == 0 {
		return nil, ErrNoOperands.New("relselect")
	}
	if len(sels) == 1 {
		return o.optimize(sels[0])
	}
	var err error
	if !o._opts.NoShrink {
		if sels, err = o.shrinkSelectRanges(sels); err != nil {
			return nil, err
		}
	}
	i := findUnique(sels)
	if i < 0 {
		i = 0
	}
	sel, err := o.optimize(sels[i])
	if err != nil {
		return nil, err
	}
	for j, other := range sels {
		if j == i {
			continue
		}
		if other, err = o.optimize(other); err != nil {
			return nil, err
		}
		if sel, err = o.pushSemijoin(other, sel); err != nil {
			return nil, err
		}
	}
	o.applied("relselect", s)
	return o.optimize(sel)
}

// findUnique returns the first selection over a unique column, or -1.
func findUnique(sels []*stmt.Stmt) int {
	for i, s := range sels {
		hc := stmt.HeadColumn(s)
		if hc != nil && hc.Typ == stmt.ST_Bat && hc.Column().Unique {
			return i
		}
	}
	return -1
}

// pushSemijoin restricts sel to the heads of s. The restriction is pushed
// down to the inputs of sel, so the selection itself runs on fewer rows.
func (o *Optimizer) pushSemijoin(sel, s *stmt.Stmt) (*stmt.Stmt, error) {
	a := o._arena
	switch sel.Typ {
	case stmt.ST_List:
		l := sel.List()
		nl := make([]*stmt.Stmt, len(l))
		changed := false
		for i, e := range l {
			nl[i] = e
			if e.NrCols > 0 {
				ne, err := o.pushSemijoin(e, s)
				if err != nil {
					return nil, err
				}
				nl[i] = ne
				changed = true
			}
		}
		if !changed {
			return sel, nil
		}
		return a.List(nl)
	case stmt.ST_Convert:
		op1, err := o.pushSemijoin(sel.Op1, s)
		if err != nil {
			return nil, err
		}
		return a.Rebuild(sel, op1, nil, nil)
	case stmt.ST_Unop:
		op1, err := o.pushSemijoin(sel.Op1, s)
		if err != nil {
			return nil, err
		}
		return a.Unop(op1, sel.Func())
	case stmt.ST_Binop:
		op1, op2 := sel.Op1, sel.Op2
		var err error
		if op1.NrCols > 0 {
			if op1, err = o.pushSemijoin(op1, s); err != nil {
				return nil, err
			}
		}
		if op2.NrCols > 0 {
			if op2, err = o.pushSemijoin(op2, s); err != nil {
				return nil, err
			}
		}
		return a.Binop(op1, op2, sel.Func())
	case stmt.ST_Nop:
		ops, err := o.pushSemijoin(sel.Op1, s)
		if err != nil {
			return nil, err
		}
		return a.Nop(ops, sel.Func())
	case stmt.ST_Diff:
		op1, err := o.pushSemijoin(sel.Op1, s)
		if err != nil {
			return nil, err
		}
		return a.Diff(op1, sel.Op2)
	case stmt.ST_Union:
		op1, err := o.pushSemijoin(sel.Op1, s)
		if err != nil {
			return nil, err
		}
		op2, err := o.pushSemijoin(sel.Op2, s)
		if err != nil {
			return nil, err
		}
		return a.Union(op1, op2)
	case stmt.ST_Reverse:
		//reverse(semijoin(reverse(x), y))
		if sj := sel.Op1; sj.Typ == stmt.ST_SemiJoin && sj.Op1.Typ == stmt.ST_Reverse {
			x, err := o.pushSemijoin(sj.Op1.Op1, s)
			if err != nil {
				return nil, err
			}
			rx, err := a.Reverse(x)
			if err != nil {
				return nil, err
			}
			nsj, err := a.SemiJoin(rx, sj.Op2)
			if err != nil {
				return nil, err
			}
			return a.Reverse(nsj)
		}
	case stmt.ST_Select, stmt.ST_Select2, stmt.ST_USelect, stmt.ST_USelect2:
		op1, err := o.pushSemijoin(sel.Op1, s)
		if err != nil {
			return nil, err
		}
		return a.Reselect(sel, op1, sel.Typ.IsUSelect())
	}
	return a.SemiJoin(sel, s)
}

// rangeKey groups the one column selections that can be merged.
func rangeKey(s *stmt.Stmt) int {
	switch s.Typ {
	case stmt.ST_Select, stmt.ST_Select2, stmt.ST_USelect, stmt.ST_USelect2:
	default:
		return -1
	}
	if s.Op2.NrCols != 0 || stmt.BaseColumn(s) == nil {
		return -1
	}
	return s.Op1.Id
}

// rangeBounds collects the bounds of the selections over one column per
// comparison.
type rangeBounds struct {
	col    *stmt.Stmt
	bounds [4][]*stmt.Stmt
	//kept as they are
	rest []*stmt.Stmt
}

func (rb *rangeBounds) add(ct stmt.CmpType, bound *stmt.Stmt) {
	for _, b := range rb.bounds[ct] {
		if b == bound {
			return
		}
	}
	rb.bounds[ct] = append(rb.bounds[ct], bound)
}

// shrinkSelectRanges merges the selections over one column into the
// narrowest range selections. Strict and inclusive bounds reduce apart:
// a > 1 and a > 3 and a < 9 becomes max(1, 3) < a < 9, while a > 1 and
// a >= 3 and a < 9 becomes 1 < a < 9 and a >= 3.
func (o *Optimizer) shrinkSelectRanges(sels []*stmt.Stmt) ([]*stmt.Stmt, error) {
	var keys []int
	groups := make(map[int][]*stmt.Stmt)
	var others []*stmt.Stmt
	for _, s := range sels {
		k := rangeKey(s)
		if k < 0 {
			others = append(others, s)
			continue
		}
		if _, has := groups[k]; !has {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], s)
	}
	var front, back []*stmt.Stmt
	for _, k := range keys {
		colsels := groups[k]
		if len(colsels) == 1 {
			s := colsels[0]
			if s.Typ == stmt.ST_Select2 || s.Typ == stmt.ST_USelect2 {
				front = append(front, s)
			} else {
				back = append(back, s)
			}
			continue
		}
		if !mergeable(colsels) {
			back = append(back, colsels...)
			continue
		}
		ranges, singles, err := o.mergeRanges(colsels)
		if err != nil {
			return nil, err
		}
		front = append(ranges, front...)
		back = append(back, singles...)
	}
	ret := make([]*stmt.Stmt, 0, len(sels))
	ret = append(ret, front...)
	ret = append(ret, back...)
	ret = append(ret, others...)
	if len(ret) < len(sels) {
		o.applied("shrink_ranges", sels[0])
	}
	return ret, nil
}

// mergeable reports whether the bounds share one type that min and max
// can combine.
func mergeable(colsels []*stmt.Stmt) bool {
	tt := stmt.TailType(colsels[0].Op2)
	if tt.Id == common.LTID_VARCHAR {
		return false
	}
	for _, s := range colsels[1:] {
		if !stmt.TailType(s.Op2).Equal(tt) {
			return false
		}
	}
	return true
}

func (o *Optimizer) mergeRanges(colsels []*stmt.Stmt) (ranges, singles []*stmt.Stmt, err error) {
	rb := &rangeBounds{col: colsels[0].Op1}
	for _, s := range colsels {
		switch s.Typ {
		case stmt.ST_Select2, stmt.ST_USelect2:
			if s.Flag&stmt.RANGE_Anti != 0 {
				rb.rest = append(rb.rest, s)
				continue
			}
			rb.add(stmt.RangeLeftCmp(s.Flag), s.Op2)
			rb.add(stmt.RangeRightCmp(s.Flag), s.Op3)
		default:
			switch ct := s.Cmp(); ct {
			case stmt.CMP_Gt, stmt.CMP_Gte, stmt.CMP_Lte, stmt.CMP_Lt:
				rb.add(ct, s.Op2)
			case stmt.CMP_Equal:
				rb.add(stmt.CMP_Gte, s.Op2)
				rb.add(stmt.CMP_Lte, s.Op2)
			default:
				rb.rest = append(rb.rest, s)
			}
		}
	}
	var bound [4]*stmt.Stmt
	for ct := stmt.CMP_Gt; ct <= stmt.CMP_Lt; ct++ {
		name := "sql_min"
		if ct == stmt.CMP_Gt || ct == stmt.CMP_Gte {
			name = "sql_max"
		}
		for _, b := range rb.bounds[ct] {
			if bound[ct] == nil {
				bound[ct] = b
				continue
			}
			if bound[ct], err = o.reduceBound(name, bound[ct], b); err != nil {
				return nil, nil, err
			}
		}
	}
	pairs := []struct {
		lo, hi stmt.CmpType
		flag   int
	}{
		{stmt.CMP_Gt, stmt.CMP_Lt, 0},
		{stmt.CMP_Gte, stmt.CMP_Lt, stmt.RANGE_IncLow},
		{stmt.CMP_Gt, stmt.CMP_Lte, stmt.RANGE_IncHigh},
		{stmt.CMP_Gte, stmt.CMP_Lte, stmt.RANGE_IncLow | stmt.RANGE_IncHigh},
	}
	for _, p := range pairs {
		if bound[p.lo] == nil || bound[p.hi] == nil {
			continue
		}
		r, err := o._arena.USelect2(rb.col, bound[p.lo], bound[p.hi], p.flag)
		if err != nil {
			return nil, nil, err
		}
		ranges = append(ranges, r)
		bound[p.lo], bound[p.hi] = nil, nil
	}
	for ct := stmt.CMP_Gt; ct <= stmt.CMP_Lt; ct++ {
		if bound[ct] == nil {
			continue
		}
		s, err := o._arena.USelect(rb.col, bound[ct], ct)
		if err != nil {
			return nil, nil, err
		}
		singles = append(singles, s)
	}
	singles = append(singles, rb.rest...)
	return ranges, singles, nil
}

func (o *Optimizer) reduceBound(name string, x, y *stmt.Stmt) (*stmt.Stmt, error) {
	fun, err := o.function(name)
	if err != nil {
		return nil, err
	}
	fun.Res = stmt.TailType(x)
	return o._arena.Binop(x, y, fun)
}
