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
	"github.com/daviszhen/binopt/pkg/stmt"
)

func (o *Optimizer) relJoin(s *stmt.Stmt) (*stmt.Stmt, error) {
	rj, err := o.optimize(s.Op1)
	if err != nil {
		return nil, err
	}
	joins, _, err := o.optimizeAll(s.Op2.List())
	if err != nil {
		return nil, err
	}
	o.applied("reljoin", s)
	return o.compileJoin(rj, joins)
}

// project joins v positionally with the candidates cand. Constants pass
// through.
func (o *Optimizer) project(cand, v *stmt.Stmt) (*stmt.Stmt, error) {
	if v.NrCols == 0 {
		return v, nil
	}
	return o._arena.Project(cand, v)
}

// compileJoin applies the join conditions one by one to a list of
// candidate pairs. The pairs are kept as two position aligned lists, l
// holding the left heads and r the right heads.
func (o *Optimizer) compileJoin(rj *stmt.Stmt, joins []*stmt.Stmt) (*stmt.Stmt, error) {
	a := o._arena
	if rj == nil && len(joins) == 0 {
		return nil, ErrNoOperands.New("reljoin")
	}
	if rj == nil && len(joins) == 1 {
		return joins[0], nil
	}
	base := int64(condBase)
	if rj == nil {
		rj, joins = joins[0], joins[1:]
		base = candBase
	}
	rrj, err := a.Reverse(rj)
	if err != nil {
		return nil, err
	}
	l, err := a.Mark(rrj, base)
	if err != nil {
		return nil, err
	}
	r, err := a.Mark(rj, base)
	if err != nil {
		return nil, err
	}
	yes, err := a.AtomBool(true)
	if err != nil {
		return nil, err
	}
	for _, j := range joins {
		reversed := j.Typ == stmt.ST_Reverse
		if reversed {
			j = j.Op1
			l, r = r, l
		}
		var cmp *stmt.Stmt
		switch j.Typ {
		case stmt.ST_JoinN:
			var nl []*stmt.Stmt
			for _, e := range j.Op1.List() {
				pe, err := o.project(l, e)
				if err != nil {
					return nil, err
				}
				nl = append(nl, pe)
			}
			for _, e := range j.Op2.List() {
				pe, err := o.project(r, e)
				if err != nil {
					return nil, err
				}
				nl = append(nl, pe)
			}
			args, err := a.List(nl)
			if err != nil {
				return nil, err
			}
			pred, err := a.Nop(args, j.Func())
			if err != nil {
				return nil, err
			}
			if cmp, err = a.USelect(pred, yes, stmt.CMP_Equal); err != nil {
				return nil, err
			}
		case stmt.ST_Join2:
			le, err := a.Project(l, j.Op1)
			if err != nil {
				return nil, err
			}
			re, err := a.Project(r, j.Op2)
			if err != nil {
				return nil, err
			}
			r2, err := a.Project(r, j.Op3)
			if err != nil {
				return nil, err
			}
			if j.Flag&stmt.RANGE_Anti != 0 {
				if cmp, err = a.USelect2(le, re, r2, j.Flag); err != nil {
					return nil, err
				}
				break
			}
			cmp1, err := a.USelect(le, re, stmt.RangeLeftCmp(j.Flag))
			if err != nil {
				return nil, err
			}
			cmp2, err := a.USelect(le, r2, stmt.RangeRightCmp(j.Flag))
			if err != nil {
				return nil, err
			}
			if cmp, err = a.SemiJoin(cmp1, cmp2); err != nil {
				return nil, err
			}
		case stmt.ST_Join:
			le, err := a.Project(l, j.Op1)
			if err != nil {
				return nil, err
			}
			rd, err := a.Reverse(j.Op2)
			if err != nil {
				return nil, err
			}
			re, err := a.Project(r, rd)
			if err != nil {
				return nil, err
			}
			if cmp, err = a.USelect(le, re, j.Cmp()); err != nil {
				return nil, err
			}
		default:
			panic("usp join condition " + j.Typ.String())
		}
		rc, err := a.Reverse(cmp)
		if err != nil {
			return nil, err
		}
		if cmp, err = a.Mark(rc, condBase); err != nil {
			return nil, err
		}
		if l, err = a.Project(cmp, l); err != nil {
			return nil, err
		}
		if r, err = a.Project(cmp, r); err != nil {
			return nil, err
		}
		if reversed {
			l, r = r, l
		}
	}
	rl, err := a.Reverse(l)
	if err != nil {
		return nil, err
	}
	return a.Join(rl, r, stmt.CMP_Equal)
}
