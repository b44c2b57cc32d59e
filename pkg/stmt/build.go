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
package stmt

import (
	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/common"
)

func (a *Arena) None() (*Stmt, error) {
	return a.alloc(ST_None)
}

func (a *Arena) Atom(val common.Value) (*Stmt, error) {
	s, err := a.alloc(ST_Atom)
	if err != nil {
		return nil, err
	}
	s.Op4 = AtomVal{Val: val}
	//values are unique
	s.Key = true
	return s, nil
}

func (a *Arena) AtomInt(i int64) (*Stmt, error) {
	return a.Atom(common.IntValue(i))
}

func (a *Arena) AtomLng(i int64) (*Stmt, error) {
	return a.Atom(common.BigintValue(i))
}

func (a *Arena) AtomWrd(h uint64) (*Stmt, error) {
	return a.Atom(common.HashValue(h))
}

func (a *Arena) AtomOid(i int64) (*Stmt, error) {
	return a.Atom(common.OidValue(i))
}

func (a *Arena) AtomString(str string) (*Stmt, error) {
	return a.Atom(common.StringValue(str))
}

func (a *Arena) AtomBool(b bool) (*Stmt, error) {
	return a.Atom(common.BoolValue(b))
}

func (a *Arena) AtomNull(typ common.LType) (*Stmt, error) {
	return a.Atom(common.NullValue(typ))
}

// Var references a named variable declared at level. typ may be invalid.
func (a *Arena) Var(name string, typ common.LType, declare bool, level int) (*Stmt, error) {
	nameS, err := a.AtomString(name)
	if err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Var)
	if err != nil {
		return nil, err
	}
	s.Op1 = nameS
	s.Op4 = TypeVal{Typ: typ}
	s.Flag = level << 1
	if declare {
		s.Flag |= 1
	}
	s.Key = true
	return s, nil
}

// VarNr references the nr-th argument.
func (a *Arena) VarNr(nr int, typ common.LType) (*Stmt, error) {
	s, err := a.alloc(ST_Var)
	if err != nil {
		return nil, err
	}
	s.Op4 = TypeVal{Typ: typ}
	s.Flag = nr
	s.Key = true
	return s, nil
}

func (a *Arena) Table(cols *Stmt, temp int) (*Stmt, error) {
	if err := need("table", cols); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Table)
	if err != nil {
		return nil, err
	}
	s.Op1 = cols
	s.Flag = temp
	return s, nil
}

func (a *Arena) BaseTable(t *catalog.Table, name string) (*Stmt, error) {
	nameS, err := a.AtomString(name)
	if err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_BaseTable)
	if err != nil {
		return nil, err
	}
	s.Op1 = nameS
	s.Op4 = TableVal{Tab: t}
	return s, nil
}

func (a *Arena) Temp(typ common.LType) (*Stmt, error) {
	s, err := a.alloc(ST_Temp)
	if err != nil {
		return nil, err
	}
	s.Op4 = TypeVal{Typ: typ}
	s.NrCols = 1
	return s, nil
}

// Bat reads column c. The heads are oids of basetable.
func (a *Arena) Bat(c *catalog.Column, basetable *Stmt, access int) (*Stmt, error) {
	s, err := a.alloc(ST_Bat)
	if err != nil {
		return nil, err
	}
	s.Op4 = ColumnVal{Col: c}
	s.NrCols = 1
	s.Flag = access
	s.H = basetable
	return s, nil
}

// TBat reads the deleted oids of t. Only the insert part exists.
func (a *Arena) TBat(t *catalog.Table, access int) (*Stmt, error) {
	if access != AC_RdIns {
		panic("usp dbat access " + AccessString(access))
	}
	s, err := a.alloc(ST_DBat)
	if err != nil {
		return nil, err
	}
	s.Flag = access
	s.Op4 = TableVal{Tab: t}
	return s, nil
}

func (a *Arena) IdxBat(i *catalog.Index, access int) (*Stmt, error) {
	s, err := a.alloc(ST_IdxBat)
	if err != nil {
		return nil, err
	}
	s.Op4 = IndexVal{Idx: i}
	s.NrCols = 1
	s.Flag = access
	return s, nil
}

// deltaParts merges the base, update and insert parts of a column and masks
// the deleted rows.
func (a *Arena) deltaParts(
	t *catalog.Table,
	access int,
	part func(access int) (*Stmt, error),
) (*Stmt, error) {
	s, err := part(access)
	if err != nil {
		return nil, err
	}
	if t.Readonly || access != AC_RdOnly || !t.IsTable() {
		return s, nil
	}
	if t.Persistence == catalog.Persistent {
		var base, ins, upd *Stmt
		if base, err = part(AC_RdBase); err != nil {
			return nil, err
		}
		if ins, err = part(AC_RdIns); err != nil {
			return nil, err
		}
		if upd, err = part(AC_RdUpd); err != nil {
			return nil, err
		}
		if s, err = a.Diff(base, upd); err != nil {
			return nil, err
		}
		if s, err = a.Union(s, upd); err != nil {
			return nil, err
		}
		if s, err = a.Union(s, ins); err != nil {
			return nil, err
		}
	}
	//temporary tables have deletes too
	d, err := a.TBat(t, AC_RdIns)
	if err != nil {
		return nil, err
	}
	rd, err := a.Reverse(d)
	if err != nil {
		return nil, err
	}
	return a.Diff(s, rd)
}

// DeltaTableBat reads column c as the merge of its delta parts.
func (a *Arena) DeltaTableBat(c *catalog.Column, basetable *Stmt, access int) (*Stmt, error) {
	return a.deltaParts(c.Table, access, func(access int) (*Stmt, error) {
		return a.Bat(c, basetable, access)
	})
}

func (a *Arena) DeltaTableIdxBat(i *catalog.Index, access int) (*Stmt, error) {
	return a.deltaParts(i.Table, access, func(access int) (*Stmt, error) {
		return a.IdxBat(i, access)
	})
}

func (a *Arena) modify(typ StType, payload Payload, b *Stmt) (*Stmt, error) {
	if err := need(typ.String(), b); err != nil {
		return nil, err
	}
	s, err := a.alloc(typ)
	if err != nil {
		return nil, err
	}
	s.Op1 = b
	s.Op4 = payload
	return s, nil
}

func (a *Arena) AppendCol(c *catalog.Column, b *Stmt) (*Stmt, error) {
	return a.modify(ST_AppendCol, ColumnVal{Col: c}, b)
}

func (a *Arena) AppendIdx(i *catalog.Index, b *Stmt) (*Stmt, error) {
	return a.modify(ST_AppendIdx, IndexVal{Idx: i}, b)
}

func (a *Arena) UpdateCol(c *catalog.Column, b *Stmt) (*Stmt, error) {
	return a.modify(ST_UpdateCol, ColumnVal{Col: c}, b)
}

func (a *Arena) UpdateIdx(i *catalog.Index, b *Stmt) (*Stmt, error) {
	return a.modify(ST_UpdateIdx, IndexVal{Idx: i}, b)
}

func (a *Arena) Delete(t *catalog.Table, b *Stmt) (*Stmt, error) {
	return a.modify(ST_Delete, TableVal{Tab: t}, b)
}

func (a *Arena) constInternal(rows, val *Stmt) (*Stmt, error) {
	if err := need("const", rows, val); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Const)
	if err != nil {
		return nil, err
	}
	s.Op1 = rows
	s.Op2 = val
	s.NrCols = rows.NrCols
	s.Key = rows.Key
	s.Aggr = rows.Aggr
	s.H = rows.H
	return s, nil
}

// Const broadcasts val over every row of rows. When val calls a side
// effecting function the broadcast is pushed below that call, so the call
// runs once per row.
func (a *Arena) Const(rows, val *Stmt) (*Stmt, error) {
	if err := need("const", rows, val); err != nil {
		return nil, err
	}
	if HasSideEffect(val) {
		return a.pushProject(rows, val)
	}
	return a.constInternal(rows, val)
}

// pushProject rebuilds val with the broadcast moved under its side
// effecting calls. val itself is never modified.
func (a *Arena) pushProject(rows, val *Stmt) (*Stmt, error) {
	var ns *Stmt
	var err error
	switch val.Typ {
	case ST_Convert:
		op1, err := a.pushProject(rows, val.Op1)
		if err != nil {
			return nil, err
		}
		if ns, err = a.clone(val); err != nil {
			return nil, err
		}
		ns.Op1 = op1
	case ST_Nop:
		args := val.Op1.List()
		fun := val.Func()
		if fun.Fun.SideEffect {
			if len(args) == 0 {
				//no arguments, turn into a unop over a broadcast zero
				zero, err := a.AtomInt(0)
				if err != nil {
					return nil, err
				}
				op1, err := a.constInternal(rows, zero)
				if err != nil {
					return nil, err
				}
				if ns, err = a.clone(val); err != nil {
					return nil, err
				}
				ns.Typ = ST_Unop
				ns.Op1 = op1
				break
			}
			first, err := a.constInternal(rows, args[0])
			if err != nil {
				return nil, err
			}
			nargs := append([]*Stmt{first}, args[1:]...)
			ops, err := a.List(nargs)
			if err != nil {
				return nil, err
			}
			if ns, err = a.clone(val); err != nil {
				return nil, err
			}
			ns.Op1 = ops
		} else {
			nargs := make([]*Stmt, 0, len(args))
			for _, arg := range args {
				narg, err := a.pushProject(rows, arg)
				if err != nil {
					return nil, err
				}
				nargs = append(nargs, narg)
			}
			ops, err := a.List(nargs)
			if err != nil {
				return nil, err
			}
			if ns, err = a.clone(val); err != nil {
				return nil, err
			}
			ns.Op1 = ops
		}
	case ST_Binop:
		var op1, op2 *Stmt
		if val.Func().Fun.SideEffect {
			if op1, err = a.constInternal(rows, val.Op1); err != nil {
				return nil, err
			}
			op2 = val.Op2
		} else {
			if op1, err = a.pushProject(rows, val.Op1); err != nil {
				return nil, err
			}
			if op2, err = a.pushProject(rows, val.Op2); err != nil {
				return nil, err
			}
		}
		if ns, err = a.clone(val); err != nil {
			return nil, err
		}
		ns.Op1, ns.Op2 = op1, op2
	case ST_Unop:
		var op1 *Stmt
		if val.Func().Fun.SideEffect {
			op1, err = a.constInternal(rows, val.Op1)
		} else {
			op1, err = a.pushProject(rows, val.Op1)
		}
		if err != nil {
			return nil, err
		}
		if ns, err = a.clone(val); err != nil {
			return nil, err
		}
		ns.Op1 = op1
	default:
		if val.NrCols == 0 {
			return a.constInternal(rows, val)
		}
		return val, nil
	}
	ns.NrCols = rows.NrCols
	return ns, nil
}

// Mark numbers the rows of s: the result is (id+i, tail_i).
func (a *Arena) Mark(s *Stmt, id int64) (*Stmt, error) {
	if err := need("mark", s); err != nil {
		return nil, err
	}
	rs, err := a.Reverse(s)
	if err != nil {
		return nil, err
	}
	ms, err := a.MarkTail(rs, id)
	if err != nil {
		return nil, err
	}
	return a.Reverse(ms)
}

// MarkTail replaces the tail of s by the dense sequence starting at id.
func (a *Arena) MarkTail(s *Stmt, id int64) (*Stmt, error) {
	if err := need("mark", s); err != nil {
		return nil, err
	}
	base, err := a.AtomOid(id)
	if err != nil {
		return nil, err
	}
	ns, err := a.alloc(ST_Mark)
	if err != nil {
		return nil, err
	}
	ns.Op1 = s
	ns.Op2 = base
	ns.NrCols = s.NrCols
	ns.Key = s.Key
	ns.Aggr = s.Aggr
	ns.H = s.H
	return ns, nil
}

func (a *Arena) GenGroup(s *Stmt) (*Stmt, error) {
	if err := need("gen_group", s); err != nil {
		return nil, err
	}
	ns, err := a.alloc(ST_GenGroup)
	if err != nil {
		return nil, err
	}
	ns.Op1 = s
	ns.NrCols = s.NrCols
	ns.H = s.H
	return ns, nil
}

func (a *Arena) Reverse(s *Stmt) (*Stmt, error) {
	if err := need("reverse", s); err != nil {
		return nil, err
	}
	ns, err := a.alloc(ST_Reverse)
	if err != nil {
		return nil, err
	}
	ns.Op1 = s
	ns.NrCols = s.NrCols
	ns.Key = s.Key
	ns.Aggr = s.Aggr
	ns.H = s.T
	ns.T = s.H
	return ns, nil
}

func (a *Arena) Mirror(s *Stmt) (*Stmt, error) {
	if err := need("mirror", s); err != nil {
		return nil, err
	}
	ns, err := a.alloc(ST_Mirror)
	if err != nil {
		return nil, err
	}
	ns.Op1 = s
	ns.NrCols = 2
	ns.Key = s.Key
	ns.Aggr = s.Aggr
	ns.H = s.H
	ns.T = s.H
	return ns, nil
}

// Limit keeps at most limit rows of s after skipping offset rows. offset
// and limit are atoms, a null limit keeps everything.
func (a *Arena) Limit(s, offset, limit *Stmt, direction int) (*Stmt, error) {
	if err := need("limit", s, offset, limit); err != nil {
		return nil, err
	}
	ns, err := a.alloc(ST_Limit)
	if err != nil {
		return nil, err
	}
	ns.Op1 = s
	ns.Op2 = offset
	ns.Op3 = limit
	ns.NrCols = s.NrCols
	ns.Key = s.Key
	ns.Aggr = s.Aggr
	ns.T = s.T
	ns.Flag = direction
	return ns, nil
}

func (a *Arena) Limit2(first, second, offset, limit *Stmt, direction int) (*Stmt, error) {
	if err := need("limit2", first, second, offset, limit); err != nil {
		return nil, err
	}
	l, err := a.List([]*Stmt{second, first})
	if err != nil {
		return nil, err
	}
	ns, err := a.alloc(ST_Limit2)
	if err != nil {
		return nil, err
	}
	ns.Op1 = l
	ns.Op2 = offset
	ns.Op3 = limit
	ns.NrCols = second.NrCols
	ns.Key = second.Key
	ns.Aggr = second.Aggr
	ns.T = second.T
	ns.Flag = direction
	return ns, nil
}

func (a *Arena) Order(s *Stmt, direction int) (*Stmt, error) {
	if err := need("order", s); err != nil {
		return nil, err
	}
	ns, err := a.alloc(ST_Order)
	if err != nil {
		return nil, err
	}
	ns.Op1 = s
	ns.Flag = direction
	ns.NrCols = s.NrCols
	ns.Key = s.Key
	ns.Aggr = s.Aggr
	ns.T = s.T
	return ns, nil
}

func (a *Arena) Reorder(s, t *Stmt, direction int) (*Stmt, error) {
	if err := need("reorder", s, t); err != nil {
		return nil, err
	}
	ns, err := a.alloc(ST_Reorder)
	if err != nil {
		return nil, err
	}
	ns.Op1 = s
	ns.Op2 = t
	ns.Flag = direction
	ns.NrCols = s.NrCols
	ns.Key = s.Key
	ns.Aggr = s.Aggr
	ns.T = s.T
	return ns, nil
}

func (a *Arena) Unique(s *Stmt, g *Group) (*Stmt, error) {
	if err := need("unique", s); err != nil {
		return nil, err
	}
	ns, err := a.alloc(ST_Unique)
	if err != nil {
		return nil, err
	}
	ns.Op1 = s
	if g != nil {
		ns.Op2 = g.Grp
	}
	ns.NrCols = s.NrCols
	ns.Key = true
	ns.Aggr = s.Aggr
	ns.T = s.T
	return ns, nil
}

func (a *Arena) selectLike(typ StType, op1, op2, op3 *Stmt, flag int) (*Stmt, error) {
	if err := need(typ.String(), op1, op2); err != nil {
		return nil, err
	}
	s, err := a.alloc(typ)
	if err != nil {
		return nil, err
	}
	s.Op1 = op1
	s.Op2 = op2
	s.Op3 = op3
	s.Flag = flag
	if op1.NrCols == 2 {
		s.NrCols = 2
	} else {
		s.NrCols = 1
	}
	s.H = op1.H
	if !typ.IsUSelect() {
		s.T = op1.T
	}
	return s, nil
}

// Select keeps the rows of op1 whose tail compares to op2.
func (a *Arena) Select(op1, op2 *Stmt, cmp CmpType) (*Stmt, error) {
	return a.selectLike(ST_Select, op1, op2, nil, int(cmp))
}

// LikeSelect is a pattern select, op3 holds the escape character.
func (a *Arena) LikeSelect(op1, op2, op3 *Stmt, cmp CmpType) (*Stmt, error) {
	if !cmp.IsPattern() {
		panic("usp like select " + cmp.String())
	}
	return a.selectLike(ST_Select, op1, op2, op3, int(cmp))
}

// Select2 keeps the rows of op1 whose tail lies between op2 and op3. flag
// combines the RANGE_ bits.
func (a *Arena) Select2(op1, op2, op3 *Stmt, flag int) (*Stmt, error) {
	if err := need("select2", op3); err != nil {
		return nil, err
	}
	return a.selectLike(ST_Select2, op1, op2, op3, flag)
}

// SelectN keeps the rows for which the predicate fun(tail, op2...) holds.
func (a *Arena) SelectN(op1, op2 *Stmt, fun FuncVal) (*Stmt, error) {
	s, err := a.selectLike(ST_SelectN, op1, op2, nil, 0)
	if err != nil {
		return nil, err
	}
	s.Op4 = fun
	return s, nil
}

func (a *Arena) USelect(op1, op2 *Stmt, cmp CmpType) (*Stmt, error) {
	if cmp.IsPattern() {
		panic("usp uselect " + cmp.String())
	}
	return a.selectLike(ST_USelect, op1, op2, nil, int(cmp))
}

func (a *Arena) USelect2(op1, op2, op3 *Stmt, flag int) (*Stmt, error) {
	if err := need("uselect2", op3); err != nil {
		return nil, err
	}
	return a.selectLike(ST_USelect2, op1, op2, op3, flag)
}

func (a *Arena) USelectN(op1, op2 *Stmt, fun FuncVal) (*Stmt, error) {
	s, err := a.selectLike(ST_USelectN, op1, op2, nil, 0)
	if err != nil {
		return nil, err
	}
	s.Op4 = fun
	return s, nil
}

// Reselect applies the comparison of sel to input. head selects the form
// that drops the tail.
func (a *Arena) Reselect(sel, input *Stmt, head bool) (*Stmt, error) {
	var typ StType
	switch sel.Typ {
	case ST_Select, ST_USelect:
		typ = ST_Select
		if head {
			typ = ST_USelect
		}
	case ST_Select2, ST_USelect2:
		typ = ST_Select2
		if head {
			typ = ST_USelect2
		}
	case ST_SelectN, ST_USelectN:
		typ = ST_SelectN
		if head {
			typ = ST_USelectN
		}
	default:
		panic("usp reselect of " + sel.Typ.String())
	}
	s, err := a.selectLike(typ, input, sel.Op2, sel.Op3, sel.Flag)
	if err != nil {
		return nil, err
	}
	s.Op4 = sel.Op4
	return s, nil
}

// SemiJoin keeps the rows of op1 whose head occurs in the head of op2.
func (a *Arena) SemiJoin(op1, op2 *Stmt) (*Stmt, error) {
	if err := need("semijoin", op1, op2); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_SemiJoin)
	if err != nil {
		return nil, err
	}
	s.Op1 = op1
	s.Op2 = op2
	s.NrCols = op1.NrCols
	s.Key = op1.Key
	s.Aggr = op1.Aggr
	s.H = op1.H
	s.T = op1.T
	return s, nil
}

// RelSelect is the conjunction of selections over one relation.
func (a *Arena) RelSelect(sels []*Stmt) (*Stmt, error) {
	rs, err := a.RelSelectInit()
	if err != nil {
		return nil, err
	}
	for _, sel := range sels {
		if err = a.RelSelectFill(rs, sel); err != nil {
			return nil, err
		}
	}
	return rs, nil
}

func (a *Arena) RelSelectInit() (*Stmt, error) {
	l, err := a.List(nil)
	if err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_RelSelect)
	if err != nil {
		return nil, err
	}
	s.Op1 = l
	return s, nil
}

// RelSelectFill adds sel to a relselect under construction.
func (a *Arena) RelSelectFill(rs, sel *Stmt) error {
	if err := need("relselect", rs, sel); err != nil {
		return err
	}
	a.listAppend(rs.Op1, sel)
	if sel.NrCols > rs.NrCols {
		rs.NrCols = sel.NrCols
	}
	if rs.H == nil {
		rs.H = rs.Op1.List()[0].H
	}
	return nil
}

// RelJoin is a non equi join. op1 is an optional join already computed,
// neqjoins the join conditions still to apply.
func (a *Arena) RelJoin(op1 *Stmt, neqjoins []*Stmt) (*Stmt, error) {
	if op1 == nil && len(neqjoins) == 0 {
		return nil, ErrNilOperand.New("reljoin", 1)
	}
	l, err := a.List(neqjoins)
	if err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_RelJoin)
	if err != nil {
		return nil, err
	}
	s.Op1 = op1
	s.Op2 = l
	s.NrCols = 2
	if op1 == nil {
		op1 = neqjoins[0]
	}
	s.H = op1.H
	s.T = op1.T
	return s, nil
}

func (a *Arena) RelEqJoinInit() (*Stmt, error) {
	l1, err := a.List(nil)
	if err != nil {
		return nil, err
	}
	l2, err := a.List(nil)
	if err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_RelEqJoin)
	if err != nil {
		return nil, err
	}
	s.Op1 = l1
	s.Op2 = l2
	s.NrCols = 2
	return s, nil
}

// RelEqJoinFill adds the column pair (lc, rc) to a releqjoin under
// construction.
func (a *Arena) RelEqJoinFill(rj, lc, rc *Stmt) error {
	if err := need("releqjoin", rj, lc, rc); err != nil {
		return err
	}
	a.listAppend(rj.Op1, lc)
	a.listAppend(rj.Op2, rc)
	if rj.H == nil {
		rj.H = rj.Op1.List()[0].H
	}
	if rj.T == nil {
		rj.T = rj.Op2.List()[0].H
	}
	return nil
}

// RelEqJoin2 joins on the conjunction l1[i] = l2[i].
func (a *Arena) RelEqJoin2(l1, l2 []*Stmt) (*Stmt, error) {
	if len(l1) == 0 || len(l1) != len(l2) {
		return nil, ErrNilOperand.New("releqjoin", 1)
	}
	ls1, err := a.List(l1)
	if err != nil {
		return nil, err
	}
	ls2, err := a.List(l2)
	if err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_RelEqJoin)
	if err != nil {
		return nil, err
	}
	s.Op1 = ls1
	s.Op2 = ls2
	s.NrCols = 2
	s.H = l1[0].H
	s.T = l2[0].H
	return s, nil
}

// RelEqJoin1 turns a list of binary equi joins into the two key lists of a
// releqjoin, orienting every pair like the first one.
func (a *Arena) RelEqJoin1(joins []*Stmt) (*Stmt, error) {
	var l1, l2 []*Stmt
	var first *Stmt
	var err error
	for _, j := range joins {
		if err = need("releqjoin", j, j.Op1, j.Op2); err != nil {
			return nil, err
		}
		l, r := j.Op1, j.Op2
		for l.Typ == ST_Reverse {
			l = l.Op1
		}
		for r.Typ == ST_Reverse {
			r = r.Op1
		}
		if l.T != r.T {
			if r, err = a.Reverse(r); err != nil {
				return nil, err
			}
		}
		if first == nil {
			first = l
		} else if first.H != l.H {
			l, r = r, l
		}
		l1 = append(l1, l)
		l2 = append(l2, r)
	}
	return a.RelEqJoin2(l1, l2)
}

// Join pairs the rows of op1 and op2 where the tail of op1 compares to the
// head of op2. The result is (op1.head, op2.tail).
func (a *Arena) Join(op1, op2 *Stmt, cmp CmpType) (*Stmt, error) {
	if err := need("join", op1, op2); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Join)
	if err != nil {
		return nil, err
	}
	s.Op1 = op1
	s.Op2 = op2
	s.Flag = int(cmp)
	s.Key = op1.Key
	s.NrCols = 2
	s.H = op1.H
	s.T = op2.T
	return s, nil
}

// Project is the positional join of op1 and op2.
func (a *Arena) Project(op1, op2 *Stmt) (*Stmt, error) {
	return a.Join(op1, op2, CMP_Project)
}

func (a *Arena) Join2(l, ra, rb *Stmt, flag int) (*Stmt, error) {
	if err := need("join2", l, ra, rb); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Join2)
	if err != nil {
		return nil, err
	}
	s.Op1 = l
	s.Op2 = ra
	s.Op3 = rb
	s.Flag = flag
	s.NrCols = 2
	s.H = l.H
	s.T = ra.H
	return s, nil
}

// JoinN joins on the predicate fun over the columns of the lists l and r.
func (a *Arena) JoinN(l, r *Stmt, fun FuncVal) (*Stmt, error) {
	if err := need("joinN", l, r); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_JoinN)
	if err != nil {
		return nil, err
	}
	s.Op1 = l
	s.Op2 = r
	s.Op4 = fun
	s.NrCols = 2
	s.H = l.H
	s.T = r.H
	return s, nil
}

func (a *Arena) OuterJoin(op1, op2 *Stmt, cmp CmpType) (*Stmt, error) {
	if err := need("outerjoin", op1, op2); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_OuterJoin)
	if err != nil {
		return nil, err
	}
	s.Op1 = op1
	s.Op2 = op2
	s.Flag = int(cmp)
	s.NrCols = 2
	s.H = op1.H
	s.T = op2.T
	return s, nil
}

// Diff keeps the rows of op1 whose head does not occur in op2.
func (a *Arena) Diff(op1, op2 *Stmt) (*Stmt, error) {
	if err := need("diff", op1, op2); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Diff)
	if err != nil {
		return nil, err
	}
	s.Op1 = op1
	s.Op2 = op2
	s.NrCols = op1.NrCols
	s.Key = op1.Key
	s.Aggr = op1.Aggr
	s.H = op1.H
	s.T = op1.T
	return s, nil
}

// Union appends the rows of op2 to the rows of op1.
func (a *Arena) Union(op1, op2 *Stmt) (*Stmt, error) {
	if err := need("union", op1, op2); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Union)
	if err != nil {
		return nil, err
	}
	s.Op1 = op1
	s.Op2 = op2
	s.NrCols = op1.NrCols
	s.H = op1.H
	s.T = op1.T
	return s, nil
}

func (a *Arena) RsColumn(rs, name *Stmt, typ common.LType) (*Stmt, error) {
	if err := need("rs_column", rs, name); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_RsColumn)
	if err != nil {
		return nil, err
	}
	s.Op1 = rs
	s.Op2 = name
	s.Op4 = TypeVal{Typ: typ}
	s.NrCols = 1
	return s, nil
}

func (a *Arena) Export(t *Stmt, exp ExportVal, file *Stmt) (*Stmt, error) {
	if err := need("export", t); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Export)
	if err != nil {
		return nil, err
	}
	s.Op1 = t
	s.Op2 = file
	s.Op4 = exp
	return s, nil
}

func (a *Arena) Trans(typ int, chain, name *Stmt) (*Stmt, error) {
	s, err := a.alloc(ST_Trans)
	if err != nil {
		return nil, err
	}
	s.Op1 = chain
	s.Op2 = name
	s.Flag = typ
	return s, nil
}

func (a *Arena) Catalog(typ int, args *Stmt) (*Stmt, error) {
	s, err := a.alloc(ST_Catalog)
	if err != nil {
		return nil, err
	}
	s.Op1 = args
	s.Flag = typ
	return s, nil
}

func setListCols(s *Stmt) {
	nrcols := 0
	key := true
	for _, f := range s.List() {
		if f == nil {
			continue
		}
		nrcols = max(nrcols, f.NrCols)
		key = key && f.Key
	}
	s.NrCols = nrcols
	s.Key = key
}

func (a *Arena) List(l []*Stmt) (*Stmt, error) {
	for _, e := range l {
		if e == nil {
			return nil, ErrNilOperand.New("list", 1)
		}
	}
	s, err := a.alloc(ST_List)
	if err != nil {
		return nil, err
	}
	s.Op4 = ListVal{List: l}
	setListCols(s)
	return s, nil
}

// listAppend grows a list that is still under construction.
func (a *Arena) listAppend(l *Stmt, e *Stmt) {
	lv := l.Op4.(ListVal)
	lv.List = append(lv.List, e)
	l.Op4 = lv
	setListCols(l)
}

func (a *Arena) Ordered(order, res *Stmt) (*Stmt, error) {
	if err := need("ordered", order, res); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Ordered)
	if err != nil {
		return nil, err
	}
	s.Op1 = order
	s.Op2 = res
	s.NrCols = res.NrCols
	s.Key = res.Key
	s.Aggr = res.Aggr
	s.T = res.T
	return s, nil
}

func (a *Arena) Output(l *Stmt) (*Stmt, error) {
	if err := need("output", l); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Output)
	if err != nil {
		return nil, err
	}
	s.Op1 = l
	return s, nil
}

func (a *Arena) AffectedRows(l *Stmt) (*Stmt, error) {
	if err := need("affected_rows", l); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_AffectedRows)
	if err != nil {
		return nil, err
	}
	s.Op1 = l
	return s, nil
}

func (a *Arena) Connection(conn ConnVal) (*Stmt, error) {
	s, err := a.alloc(ST_Connection)
	if err != nil {
		return nil, err
	}
	s.Op4 = conn
	return s, nil
}

// Append adds the rows of op2 to the column c.
func (a *Arena) Append(c, op2 *Stmt) (*Stmt, error) {
	if err := need("append", c, op2); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Append)
	if err != nil {
		return nil, err
	}
	s.Op1 = c
	s.Op2 = op2
	s.H = c.H
	s.T = c.T
	s.NrCols = c.NrCols
	s.Key = c.Key
	return s, nil
}

func (a *Arena) TableClear(t *catalog.Table) (*Stmt, error) {
	s, err := a.alloc(ST_TableClear)
	if err != nil {
		return nil, err
	}
	s.Op4 = TableVal{Tab: t}
	return s, nil
}

func (a *Arena) Exception(cond *Stmt, errStr string, errCode int64) (*Stmt, error) {
	if err := need("exception", cond); err != nil {
		return nil, err
	}
	msg, err := a.AtomString(errStr)
	if err != nil {
		return nil, err
	}
	code, err := a.AtomInt(errCode)
	if err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Exception)
	if err != nil {
		return nil, err
	}
	s.Op1 = cond
	s.Op2 = msg
	s.Op3 = code
	return s, nil
}

func (a *Arena) Convert(v *Stmt, from, to common.LType) (*Stmt, error) {
	if err := need("convert", v); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Convert)
	if err != nil {
		return nil, err
	}
	s.Op1 = v
	s.Op4 = ConvertVal{From: from, To: to}
	s.H = v.H
	s.Key = v.Key
	s.NrCols = v.NrCols
	s.Aggr = v.Aggr
	return s, nil
}

func (a *Arena) Unop(op1 *Stmt, fun FuncVal) (*Stmt, error) {
	if err := need("unop", op1); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Unop)
	if err != nil {
		return nil, err
	}
	s.Op1 = op1
	s.Op4 = fun
	s.H = op1.H
	s.NrCols = op1.NrCols
	s.Key = op1.Key
	s.Aggr = op1.Aggr
	return s, nil
}

// Binop takes its shape from the operand with more columns.
func (a *Arena) Binop(op1, op2 *Stmt, fun FuncVal) (*Stmt, error) {
	if err := need("binop", op1, op2); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Binop)
	if err != nil {
		return nil, err
	}
	s.Op1 = op1
	s.Op2 = op2
	s.Op4 = fun
	s.Aggr = op1.Aggr || op2.Aggr
	dom := op2
	if op1.NrCols > op2.NrCols {
		dom = op1
	}
	s.H = dom.H
	s.NrCols = dom.NrCols
	s.Key = dom.Key
	return s, nil
}

// Nop applies fun to the elements of the list ops.
func (a *Arena) Nop(ops *Stmt, fun FuncVal) (*Stmt, error) {
	if err := need("Nop", ops); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Nop)
	if err != nil {
		return nil, err
	}
	s.Op1 = ops
	s.Op4 = fun
	var dom *Stmt
	for _, c := range ops.List() {
		if dom == nil || dom.NrCols < c.NrCols {
			dom = c
		}
	}
	if dom != nil {
		s.H = dom.H
		s.NrCols = dom.NrCols
		s.Key = dom.Key
		s.Aggr = dom.Aggr
	} else {
		s.Key = true
	}
	return s, nil
}

// Aggr aggregates op1, per group when grp is set. Without a group a
// reducing aggregate yields a single value.
func (a *Arena) Aggr(op1 *Stmt, grp *Group, aggr AggrVal, reduce bool) (*Stmt, error) {
	if err := need("aggr", op1); err != nil {
		return nil, err
	}
	if grp != nil {
		if err := need("aggr", grp.Grp, grp.Ext); err != nil {
			return nil, err
		}
	}
	s, err := a.alloc(ST_Aggr)
	if err != nil {
		return nil, err
	}
	s.Op1 = op1
	if grp != nil {
		s.Op2 = grp.Grp
		s.Op3 = grp.Ext
		s.NrCols = 1
		s.H = grp.Grp.H
	} else {
		if !reduce {
			s.NrCols = 1
		}
		s.H = op1.H
	}
	s.Key = reduce
	s.Aggr = reduce
	s.Op4 = aggr
	return s, nil
}

// Aggr2 aggregates op1 grouped by the tail of op2 into a single value.
func (a *Arena) Aggr2(op1, op2 *Stmt, aggr AggrVal) (*Stmt, error) {
	if err := need("aggr", op1, op2); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Aggr)
	if err != nil {
		return nil, err
	}
	s.Op1 = op1
	s.Op2 = op2
	s.H = op1.H
	s.Key = true
	s.Aggr = true
	s.Op4 = aggr
	s.Flag = 1
	return s, nil
}

func (a *Arena) Alias(op1 *Stmt, tname, alias string) (*Stmt, error) {
	if err := need("alias", op1); err != nil {
		return nil, err
	}
	var tn *Stmt
	var err error
	if tname != "" {
		if tn, err = a.AtomString(tname); err != nil {
			return nil, err
		}
	}
	an, err := a.AtomString(alias)
	if err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Alias)
	if err != nil {
		return nil, err
	}
	s.Op1 = op1
	s.Op2 = tn
	s.Op3 = an
	s.H = op1.H
	s.T = op1.T
	s.NrCols = op1.NrCols
	s.Key = op1.Key
	s.Aggr = op1.Aggr
	return s, nil
}

// ConstColumn turns the single value val into a one row column.
func (a *Arena) ConstColumn(val *Stmt) (*Stmt, error) {
	if err := need("single", val); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Single)
	if err != nil {
		return nil, err
	}
	s.Op1 = val
	s.Op4 = TypeVal{Typ: TailType(val)}
	s.NrCols = 1
	return s, nil
}
