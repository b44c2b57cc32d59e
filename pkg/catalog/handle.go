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
package catalog

import (
	"fmt"

	"github.com/daviszhen/binopt/pkg/common"
)

type ObjectId int64

type ObjType uint8

const (
	ObjInvalid ObjType = iota
	ObjSchema
	ObjTable
	ObjColumn
	ObjIndex
	ObjFunc
)

func (typ ObjType) String() string {
	switch typ {
	case ObjSchema:
		return "schema"
	case ObjTable:
		return "table"
	case ObjColumn:
		return "column"
	case ObjIndex:
		return "index"
	case ObjFunc:
		return "function"
	default:
		return "invalid"
	}
}

type TableKind uint8

const (
	TableKindTable TableKind = iota
	TableKindView
	TableKindStream
	TableKindMerge
	TableKindRemote
)

type Persistence uint8

const (
	Persistent Persistence = iota
	GlobalTemp
	LocalTemp
	Declared
)

type IndexType uint8

const (
	IndexHash IndexType = iota
	IndexJoin
	IndexOrdered
)

type FuncKind uint8

const (
	FuncScalar FuncKind = iota
	FuncAggr
)

type Schema struct {
	Id   ObjectId
	Name string
}

type Table struct {
	Id          ObjectId
	Name        string
	Schema      *Schema
	Kind        TableKind
	Persistence Persistence
	Readonly    bool
	Columns     []*Column
	Indexes     []*Index
}

// IsTable reports whether t is backed by storage of its own.
func (t *Table) IsTable() bool {
	return t.Kind == TableKindTable
}

func (t *Table) Column(name string) *Column {
	for _, col := range t.Columns {
		if col.Name == name {
			return col
		}
	}
	return nil
}

func (t *Table) Index(name string) *Index {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}

func (t *Table) String() string {
	return fmt.Sprintf("%s.%s", t.Schema.Name, t.Name)
}

type Column struct {
	Id     ObjectId
	Name   string
	Table  *Table
	Typ    common.LType
	Nr     int
	Null   bool
	Unique bool
}

func (col *Column) String() string {
	return fmt.Sprintf("%s.%s", col.Table, col.Name)
}

type Index struct {
	Id      ObjectId
	Name    string
	Table   *Table
	Typ     IndexType
	Columns []*Column
}

func (idx *Index) String() string {
	return fmt.Sprintf("%s.%s", idx.Table, idx.Name)
}

// Func describes a scalar or aggregate function. SideEffect marks functions
// that must run once per input row and never be folded into a single call.
type Func struct {
	Id         ObjectId
	Name       string
	Kind       FuncKind
	Params     []common.LType
	Res        common.LType
	SideEffect bool
}

func (fun *Func) IsAggr() bool {
	return fun.Kind == FuncAggr
}

func (fun *Func) String() string {
	return fun.Name
}
