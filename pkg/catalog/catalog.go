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
	"strings"
	"sync"

	"github.com/tidwall/btree"
	"gopkg.in/src-d/go-errors.v1"

	"github.com/daviszhen/binopt/pkg/common"
)

var (
	ErrDuplicateObject = errors.NewKind("%s %s already exists")
	ErrObjectNotFound  = errors.NewKind("%s %s not found")
)

const SysSchema = "sys"

type catalogEntry struct {
	_typ   ObjType
	_id    ObjectId
	_scope string
	_name  string
	_obj   any
}

func entryIdLess(a, b *catalogEntry) bool {
	return a._id < b._id
}

func entryNameLess(a, b *catalogEntry) bool {
	if a._typ != b._typ {
		return a._typ < b._typ
	}
	if ret := strings.Compare(a._scope, b._scope); ret != 0 {
		return ret < 0
	}
	return a._name < b._name
}

// Catalog hands out immutable object handles. It is safe for concurrent use.
type Catalog struct {
	_lock   sync.RWMutex
	_nextId ObjectId
	_byId   *btree.BTreeG[*catalogEntry]
	_byName *btree.BTreeG[*catalogEntry]
}

func NewCatalog() *Catalog {
	cat := &Catalog{
		_nextId: 1,
		_byId:   btree.NewBTreeG[*catalogEntry](entryIdLess),
		_byName: btree.NewBTreeG[*catalogEntry](entryNameLess),
	}
	_, err := cat.CreateSchema(SysSchema)
	if err != nil {
		panic(err)
	}
	registerBuiltins(cat)
	return cat
}

func (cat *Catalog) put(typ ObjType, scope, name string, fill func(id ObjectId) any) (any, error) {
	cat._lock.Lock()
	defer cat._lock.Unlock()
	key := &catalogEntry{_typ: typ, _scope: scope, _name: name}
	if _, has := cat._byName.Get(key); has {
		return nil, ErrDuplicateObject.New(typ, qualify(scope, name))
	}
	key._id = cat._nextId
	cat._nextId++
	key._obj = fill(key._id)
	cat._byId.Set(key)
	cat._byName.Set(key)
	return key._obj, nil
}

func (cat *Catalog) get(typ ObjType, scope, name string) (any, error) {
	cat._lock.RLock()
	defer cat._lock.RUnlock()
	ent, has := cat._byName.Get(&catalogEntry{_typ: typ, _scope: scope, _name: name})
	if !has {
		return nil, ErrObjectNotFound.New(typ, qualify(scope, name))
	}
	return ent._obj, nil
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

func (cat *Catalog) CreateSchema(name string) (*Schema, error) {
	obj, err := cat.put(ObjSchema, "", name, func(id ObjectId) any {
		return &Schema{Id: id, Name: name}
	})
	if err != nil {
		return nil, err
	}
	return obj.(*Schema), nil
}

func (cat *Catalog) Schema(name string) (*Schema, error) {
	obj, err := cat.get(ObjSchema, "", name)
	if err != nil {
		return nil, err
	}
	return obj.(*Schema), nil
}

type ColumnDef struct {
	Name   string
	Typ    common.LType
	Null   bool
	Unique bool
}

type TableDef struct {
	Name        string
	Kind        TableKind
	Persistence Persistence
	Readonly    bool
	Columns     []ColumnDef
}

// CreateTable registers the table and its columns. Column ids follow the
// table id in definition order.
func (cat *Catalog) CreateTable(schema string, def TableDef) (*Table, error) {
	sch, err := cat.Schema(schema)
	if err != nil {
		return nil, err
	}
	obj, err := cat.put(ObjTable, schema, def.Name, func(id ObjectId) any {
		return &Table{
			Id:          id,
			Name:        def.Name,
			Schema:      sch,
			Kind:        def.Kind,
			Persistence: def.Persistence,
			Readonly:    def.Readonly,
		}
	})
	if err != nil {
		return nil, err
	}
	tab := obj.(*Table)
	scope := qualify(schema, def.Name)
	for i, cdef := range def.Columns {
		cdef := cdef
		nr := i
		obj, err = cat.put(ObjColumn, scope, cdef.Name, func(id ObjectId) any {
			return &Column{
				Id:     id,
				Name:   cdef.Name,
				Table:  tab,
				Typ:    cdef.Typ,
				Nr:     nr,
				Null:   cdef.Null,
				Unique: cdef.Unique,
			}
		})
		if err != nil {
			return nil, err
		}
		tab.Columns = append(tab.Columns, obj.(*Column))
	}
	return tab, nil
}

func (cat *Catalog) Table(schema, name string) (*Table, error) {
	obj, err := cat.get(ObjTable, schema, name)
	if err != nil {
		return nil, err
	}
	return obj.(*Table), nil
}

func (cat *Catalog) CreateIndex(tab *Table, name string, typ IndexType, cols ...string) (*Index, error) {
	var idxCols []*Column
	for _, name := range cols {
		col := tab.Column(name)
		if col == nil {
			return nil, ErrObjectNotFound.New(ObjColumn, qualify(tab.String(), name))
		}
		idxCols = append(idxCols, col)
	}
	obj, err := cat.put(ObjIndex, tab.String(), name, func(id ObjectId) any {
		return &Index{
			Id:      id,
			Name:    name,
			Table:   tab,
			Typ:     typ,
			Columns: idxCols,
		}
	})
	if err != nil {
		return nil, err
	}
	idx := obj.(*Index)
	tab.Indexes = append(tab.Indexes, idx)
	return idx, nil
}

// DropTable removes the table with its columns and indexes and returns the
// ids of every removed object.
func (cat *Catalog) DropTable(schema, name string) ([]ObjectId, error) {
	tab, err := cat.Table(schema, name)
	if err != nil {
		return nil, err
	}
	cat._lock.Lock()
	defer cat._lock.Unlock()
	scope := tab.String()
	ids := []ObjectId{tab.Id}
	cat.remove(&catalogEntry{_typ: ObjTable, _id: tab.Id, _scope: schema, _name: name})
	for _, col := range tab.Columns {
		ids = append(ids, col.Id)
		cat.remove(&catalogEntry{_typ: ObjColumn, _id: col.Id, _scope: scope, _name: col.Name})
	}
	for _, idx := range tab.Indexes {
		ids = append(ids, idx.Id)
		cat.remove(&catalogEntry{_typ: ObjIndex, _id: idx.Id, _scope: scope, _name: idx.Name})
	}
	return ids, nil
}

func (cat *Catalog) remove(key *catalogEntry) {
	cat._byName.Delete(key)
	cat._byId.Delete(key)
}

func (cat *Catalog) CreateFunc(fun Func) (*Func, error) {
	obj, err := cat.put(ObjFunc, SysSchema, fun.Name, func(id ObjectId) any {
		ret := fun
		ret.Id = id
		return &ret
	})
	if err != nil {
		return nil, err
	}
	return obj.(*Func), nil
}

func (cat *Catalog) Func(name string) (*Func, error) {
	obj, err := cat.get(ObjFunc, SysSchema, name)
	if err != nil {
		return nil, err
	}
	return obj.(*Func), nil
}

// Aggr looks up an aggregate function by name.
func (cat *Catalog) Aggr(name string) (*Func, error) {
	fun, err := cat.Func(name)
	if err != nil {
		return nil, err
	}
	if !fun.IsAggr() {
		return nil, ErrObjectNotFound.New("aggregate", name)
	}
	return fun, nil
}

// Object returns the handle registered under id.
func (cat *Catalog) Object(id ObjectId) (ObjType, any, bool) {
	cat._lock.RLock()
	defer cat._lock.RUnlock()
	ent, has := cat._byId.Get(&catalogEntry{_id: id})
	if !has {
		return ObjInvalid, nil, false
	}
	return ent._typ, ent._obj, true
}

// ObjectName renders id for reports. Unknown ids print as their number.
func (cat *Catalog) ObjectName(id ObjectId) string {
	typ, obj, ok := cat.Object(id)
	if !ok {
		return fmt.Sprintf("#%d", id)
	}
	switch o := obj.(type) {
	case *Schema:
		return o.Name
	case *Table:
		return o.String()
	case *Column:
		return o.String()
	case *Index:
		return o.String()
	case *Func:
		return o.Name
	}
	return typ.String()
}

// Scan visits every object in id order until fun returns false.
func (cat *Catalog) Scan(fun func(id ObjectId, typ ObjType, obj any) bool) {
	cat._lock.RLock()
	defer cat._lock.RUnlock()
	cat._byId.Scan(func(ent *catalogEntry) bool {
		return fun(ent._id, ent._typ, ent._obj)
	})
}
