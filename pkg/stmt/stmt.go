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
	"fmt"

	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/common"
)

// Stmt is one node of the statement DAG. Nodes are created by an Arena and
// never change after they are shared. The same node may be the operand of
// many parents.
type Stmt struct {
	Id     int
	Typ    StType
	Op1    *Stmt
	Op2    *Stmt
	Op3    *Stmt
	Op4    Payload
	Flag   int
	NrCols int
	Key    bool
	Aggr   bool
	//provenance of the head and the tail
	H *Stmt
	T *Stmt
}

// Payload is the kind specific operand of a node.
type Payload interface {
	payload()
}

type AtomVal struct {
	Val common.Value
}

type ListVal struct {
	List []*Stmt
}

type ColumnVal struct {
	Col *catalog.Column
}

type IndexVal struct {
	Idx *catalog.Index
}

type TableVal struct {
	Tab *catalog.Table
}

// TypeVal carries the declared type of var, temp, single and rs_column.
// Typ is invalid for untyped variables.
type TypeVal struct {
	Typ common.LType
}

type ConvertVal struct {
	From common.LType
	To   common.LType
}

type FuncVal struct {
	Fun *catalog.Func
	Res common.LType
}

type AggrVal struct {
	Aggr *catalog.Func
	Res  common.LType
}

type ExportVal struct {
	Sep     string
	RSep    string
	SSep    string
	NullStr string
}

type ConnVal struct {
	Id      int
	Server  string
	Port    int
	Db      string
	DbAlias string
	User    string
	Passwd  string
	Lang    string
}

func (AtomVal) payload()    {}
func (ListVal) payload()    {}
func (ColumnVal) payload()  {}
func (IndexVal) payload()   {}
func (TableVal) payload()   {}
func (TypeVal) payload()    {}
func (ConvertVal) payload() {}
func (FuncVal) payload()    {}
func (AggrVal) payload()    {}
func (ExportVal) payload()  {}
func (ConnVal) payload()    {}

// Group pairs the group id per row with the extent, one row per group.
type Group struct {
	Grp *Stmt
	Ext *Stmt
}

func (s *Stmt) String() string {
	return fmt.Sprintf("s%d:%s", s.Id, s.Typ)
}

func (s *Stmt) List() []*Stmt {
	return s.Op4.(ListVal).List
}

func (s *Stmt) Atom() common.Value {
	return s.Op4.(AtomVal).Val
}

func (s *Stmt) Column() *catalog.Column {
	return s.Op4.(ColumnVal).Col
}

func (s *Stmt) Index() *catalog.Index {
	return s.Op4.(IndexVal).Idx
}

func (s *Stmt) Table() *catalog.Table {
	return s.Op4.(TableVal).Tab
}

func (s *Stmt) Func() FuncVal {
	return s.Op4.(FuncVal)
}

func (s *Stmt) AggrFunc() AggrVal {
	return s.Op4.(AggrVal)
}

func (s *Stmt) Cmp() CmpType {
	return CmpType(s.Flag)
}

// Children returns the operand nodes in slot order followed by the elements
// of a list payload.
func (s *Stmt) Children() []*Stmt {
	var ret []*Stmt
	for _, op := range []*Stmt{s.Op1, s.Op2, s.Op3} {
		if op != nil {
			ret = append(ret, op)
		}
	}
	if l, ok := s.Op4.(ListVal); ok {
		ret = append(ret, l.List...)
	}
	return ret
}

// HasSideEffect reports whether evaluating val calls a function that must
// run once per row.
func HasSideEffect(val *Stmt) bool {
	switch val.Typ {
	case ST_Convert:
		return HasSideEffect(val.Op1)
	case ST_Nop:
		if val.Func().Fun.SideEffect {
			return true
		}
		for _, arg := range val.Op1.List() {
			if HasSideEffect(arg) {
				return true
			}
		}
		return false
	case ST_Binop:
		if val.Func().Fun.SideEffect {
			return true
		}
		return HasSideEffect(val.Op1) || HasSideEffect(val.Op2)
	case ST_Unop:
		if val.Func().Fun.SideEffect {
			return true
		}
		return HasSideEffect(val.Op1)
	default:
		return false
	}
}
