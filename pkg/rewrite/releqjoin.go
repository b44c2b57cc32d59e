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

// Position bases of the marked candidate lists.
const (
	hashKeyBase     = 40
	candBase        = 4
	condBase        = 50
	wordBits    int = 64
)

func (o *Optimizer) relEqJoin(s *stmt.Stmt) (*stmt.Stmt, error) {
	l1, _, err := o.optimizeAll(s.Op1.List())
	if err != nil {
		return nil, err
	}
	l2, _, err := o.optimizeAll(s.Op2.List())
	if err != nil {
		return nil, err
	}
	o.applied("releqjoin", s)
	return o.compileEqJoin(l1, l2)
}

// hashBits is the rotate width for a key of n columns.
func (o *Optimizer) hashBits(n int) int {
	if o._opts.HashBits > 0 {
		return o._opts.HashBits
	}
	return 1 + (wordBits-1)/(n+1)
}

// hashKey folds the columns of l into one hash column: the first column
// seeds the key and every next column is rotated in. The result maps the
// heads of the first column to their key.
func (o *Optimizer) hashKey(l []*stmt.Stmt) (*stmt.Stmt, error) {
	a := o._arena
	hf, err := o.function(catalog.FuncHash)
	if err != nil {
		return nil, err
	}
	xor, err := o.function(catalog.FuncRotateXorHash)
	if err != nil {
		return nil, err
	}
	bits, err := a.AtomInt(int64(o.hashBits(len(l))))
	if err != nil {
		return nil, err
	}
	var h, pos *stmt.Stmt
	for _, s := range l {
		if h == nil {
			rs, err := a.Reverse(s)
			if err != nil {
				return nil, err
			}
			if pos, err = a.Mark(rs, hashKeyBase); err != nil {
				return nil, err
			}
			ms, err := a.Mark(s, hashKeyBase)
			if err != nil {
				return nil, err
			}
			if h, err = a.Unop(ms, hf); err != nil {
				return nil, err
			}
			continue
		}
		ps, err := a.Project(pos, s)
		if err != nil {
			return nil, err
		}
		args, err := a.List([]*stmt.Stmt{h, bits, ps})
		if err != nil {
			return nil, err
		}
		if h, err = a.Nop(args, xor); err != nil {
			return nil, err
		}
	}
	rpos, err := a.Reverse(pos)
	if err != nil {
		return nil, err
	}
	return a.Join(rpos, h, stmt.CMP_Equal)
}

// compileEqJoin joins on l1[i] = l2[i] for all i. Several columns are
// joined on a combined hash key first, then the candidate pairs are
// verified column by column.
func (o *Optimizer) compileEqJoin(l1, l2 []*stmt.Stmt) (*stmt.Stmt, error) {
	a := o._arena
	if len(l1) == 0 {
		return nil, ErrNoOperands.New("releqjoin")
	}
	if len(l1) != len(l2) {
		return nil, ErrOperandMismatch.New("releqjoin", len(l1), len(l2))
	}
	if len(l1) == 1 {
		r, err := a.Reverse(l2[0])
		if err != nil {
			return nil, err
		}
		return a.Join(l1[0], r, stmt.CMP_Equal)
	}
	var res *stmt.Stmt
	var err error
	if o._opts.NoHash {
		r, err := a.Reverse(l2[0])
		if err != nil {
			return nil, err
		}
		if res, err = a.Join(l1[0], r, stmt.CMP_Equal); err != nil {
			return nil, err
		}
		l1, l2 = l1[1:], l2[1:]
	} else {
		lk, err := o.hashKey(l1)
		if err != nil {
			return nil, err
		}
		rk, err := o.hashKey(l2)
		if err != nil {
			return nil, err
		}
		rrk, err := a.Reverse(rk)
		if err != nil {
			return nil, err
		}
		if res, err = a.Join(lk, rrk, stmt.CMP_Equal); err != nil {
			return nil, err
		}
	}
	rres, err := a.Reverse(res)
	if err != nil {
		return nil, err
	}
	l, err := a.Mark(rres, candBase)
	if err != nil {
		return nil, err
	}
	r, err := a.Mark(res, candBase)
	if err != nil {
		return nil, err
	}
	eq, err := o.function(catalog.FuncEqual)
	if err != nil {
		return nil, err
	}
	yes, err := a.AtomBool(true)
	if err != nil {
		return nil, err
	}
	for i := range l1 {
		le, err := a.Project(l, l1[i])
		if err != nil {
			return nil, err
		}
		re, err := a.Project(r, l2[i])
		if err != nil {
			return nil, err
		}
		cmp, err := a.Binop(le, re, eq)
		if err != nil {
			return nil, err
		}
		if cmp, err = a.USelect(cmp, yes, stmt.CMP_Equal); err != nil {
			return nil, err
		}
		if l, err = a.SemiJoin(l, cmp); err != nil {
			return nil, err
		}
		if r, err = a.SemiJoin(r, cmp); err != nil {
			return nil, err
		}
	}
	rl, err := a.Reverse(l)
	if err != nil {
		return nil, err
	}
	return a.Join(rl, r, stmt.CMP_Equal)
}
