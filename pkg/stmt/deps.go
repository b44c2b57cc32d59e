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

	"github.com/tidwall/btree"

	"github.com/daviszhen/binopt/pkg/catalog"
)

type DepType int

const (
	DEP_Column DepType = iota
	DEP_Trigger
	DEP_Func
)

func (dt DepType) String() string {
	switch dt {
	case DEP_Column:
		return "column"
	case DEP_Trigger:
		return "trigger"
	case DEP_Func:
		return "function"
	default:
		panic(fmt.Sprintf("usp %d", dt))
	}
}

func ParseDepType(s string) (DepType, bool) {
	for _, dt := range []DepType{DEP_Column, DEP_Trigger, DEP_Func} {
		if dt.String() == s {
			return dt, true
		}
	}
	return DEP_Column, false
}

// ListDependencies collects the ids of the catalog objects of kind depTyp
// that root reads. The result is sorted and free of duplicates. Every node
// is expanded once, no matter how many parents share it.
func ListDependencies(root *Stmt, depTyp DepType) []catalog.ObjectId {
	deps := btree.NewBTreeG[catalog.ObjectId](func(a, b catalog.ObjectId) bool {
		return a < b
	})
	visited := make(map[int]struct{})
	stack := []*Stmt{root}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s == nil {
			continue
		}
		if _, has := visited[s.Id]; has {
			continue
		}
		visited[s.Id] = struct{}{}

		switch s.Typ {
		case ST_BaseTable:
			if depTyp == DEP_Column {
				deps.Set(s.Table().Id)
			}
		case ST_TableClear:
			if depTyp == DEP_Trigger {
				deps.Set(s.Table().Id)
			}
		case ST_Bat, ST_AppendCol, ST_UpdateCol:
			if depTyp == DEP_Column {
				col := s.Column()
				if col.Table.IsTable() {
					deps.Set(col.Id)
				}
				deps.Set(col.Table.Id)
			}
		case ST_Aggr:
			if depTyp == DEP_Func {
				deps.Set(s.AggrFunc().Aggr.Id)
			}
		default:
			if fv, ok := s.Op4.(FuncVal); ok && depTyp == DEP_Func {
				deps.Set(fv.Fun.Id)
			}
		}
		stack = append(stack, s.Children()...)
	}

	ret := make([]catalog.ObjectId, 0, deps.Len())
	deps.Scan(func(id catalog.ObjectId) bool {
		ret = append(ret, id)
		return true
	})
	return ret
}
