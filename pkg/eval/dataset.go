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
	"sort"
	"sync"

	"github.com/huandu/go-clone"

	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/common"
	"github.com/daviszhen/binopt/pkg/stmt"
	"github.com/daviszhen/binopt/pkg/util"
)

// ColumnData holds the stored parts of a column or an index. Base row i has
// oid i, inserted rows continue after the base.
type ColumnData struct {
	Base []common.Value
	Ins  []common.Value
	Upd  []Update
}

type Update struct {
	Oid int64
	Val common.Value
}

// Dataset is the stored state the evaluator reads bats from.
type Dataset struct {
	_lock    sync.RWMutex
	_cols    map[catalog.ObjectId]*ColumnData
	_deleted map[catalog.ObjectId][]int64
}

func NewDataset() *Dataset {
	return &Dataset{
		_cols:    make(map[catalog.ObjectId]*ColumnData),
		_deleted: make(map[catalog.ObjectId][]int64),
	}
}

func (ds *Dataset) data(id catalog.ObjectId) *ColumnData {
	cd := ds._cols[id]
	if cd == nil {
		cd = &ColumnData{}
		ds._cols[id] = cd
	}
	return cd
}

// SetColumn replaces the base part of col.
func (ds *Dataset) SetColumn(col *catalog.Column, base ...common.Value) {
	ds._lock.Lock()
	defer ds._lock.Unlock()
	ds.data(col.Id).Base = base
}

// SetIndex replaces the base part of idx.
func (ds *Dataset) SetIndex(idx *catalog.Index, base ...common.Value) {
	ds._lock.Lock()
	defer ds._lock.Unlock()
	ds.data(idx.Id).Base = base
}

func (ds *Dataset) Insert(col *catalog.Column, vals ...common.Value) {
	ds._lock.Lock()
	defer ds._lock.Unlock()
	cd := ds.data(col.Id)
	cd.Ins = append(cd.Ins, vals...)
}

func (ds *Dataset) Update(col *catalog.Column, oid int64, val common.Value) {
	ds._lock.Lock()
	defer ds._lock.Unlock()
	cd := ds.data(col.Id)
	cd.Upd = append(cd.Upd, Update{Oid: oid, Val: val})
}

// Delete marks rows of tab as deleted.
func (ds *Dataset) Delete(tab *catalog.Table, oids ...int64) {
	ds._lock.Lock()
	defer ds._lock.Unlock()
	ds._deleted[tab.Id] = append(ds._deleted[tab.Id], oids...)
}

// Rows counts the stored rows of col including inserts.
func (ds *Dataset) Rows(col *catalog.Column) int {
	ds._lock.RLock()
	defer ds._lock.RUnlock()
	cd := ds._cols[col.Id]
	if cd == nil {
		return 0
	}
	return len(cd.Base) + len(cd.Ins)
}

// part reads one access mode of a column or index. The returned bat never
// shares storage with the dataset.
func (ds *Dataset) part(id catalog.ObjectId, tab *catalog.Table, access int) (*Bat, error) {
	ds._lock.RLock()
	defer ds._lock.RUnlock()
	cd := ds._cols[id]
	if cd == nil {
		return nil, ErrMissingData.New(id)
	}
	base := clone.Clone(cd.Base).([]common.Value)
	ins := clone.Clone(cd.Ins).([]common.Value)
	upd := clone.Clone(cd.Upd).([]Update)
	nbase := int64(len(base))

	switch access {
	case stmt.AC_RdBase:
		b := NewBat(len(base))
		for i, v := range base {
			b.Append(common.OidValue(int64(i)), v)
		}
		return b, nil
	case stmt.AC_RdIns:
		b := NewBat(len(ins))
		for i, v := range ins {
			b.Append(common.OidValue(nbase+int64(i)), v)
		}
		return b, nil
	case stmt.AC_RdUpd:
		b := NewBat(len(upd))
		for _, u := range upd {
			b.Append(common.OidValue(u.Oid), u.Val)
		}
		return b, nil
	case stmt.AC_RdOnly:
		//latest value per oid, deleted rows hidden
		vals := append(base, ins...)
		for _, u := range upd {
			if u.Oid >= 0 && u.Oid < int64(len(vals)) {
				vals[u.Oid] = u.Val
			}
		}
		deleted := make(map[int64]bool)
		if tab != nil {
			for _, oid := range ds._deleted[tab.Id] {
				deleted[oid] = true
			}
		}
		b := NewBat(len(vals))
		for i, v := range vals {
			if !deleted[int64(i)] {
				b.Append(common.OidValue(int64(i)), v)
			}
		}
		return b, nil
	default:
		panic("usp access " + stmt.AccessString(access))
	}
}

// deletes returns (i, oid) for every deleted row of tab, sorted by oid.
func (ds *Dataset) deletes(tab *catalog.Table) *Bat {
	ds._lock.RLock()
	oids := util.CopyTo(ds._deleted[tab.Id])
	ds._lock.RUnlock()
	sort.Slice(oids, func(i, j int) bool {
		return oids[i] < oids[j]
	})
	b := NewBat(len(oids))
	for i, oid := range oids {
		b.Append(common.OidValue(int64(i)), common.OidValue(oid))
	}
	return b
}
