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
package depend

import (
	"strings"

	"github.com/tidwall/btree"
	"gopkg.in/src-d/go-errors.v1"

	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/stmt"
)

var (
	ErrEmptyName = errors.NewKind("depend: statement without a name")
)

// dependItem is one statement that depends on an object.
type dependItem struct {
	_depTyp stmt.DepType
	_name   string
}

func dependItemLess(a, b *dependItem) bool {
	if a._depTyp != b._depTyp {
		return a._depTyp < b._depTyp
	}
	return strings.Compare(a._name, b._name) < 0
}

// onMeItem lists the statements that depend on object _me.
type onMeItem struct {
	_me      catalog.ObjectId
	_onMeSet *btree.BTreeG[*dependItem]
}

func newOnMeItem(me catalog.ObjectId) *onMeItem {
	return &onMeItem{
		_me:      me,
		_onMeSet: btree.NewBTreeG[*dependItem](dependItemLess),
	}
}

type objectRef struct {
	_depTyp stmt.DepType
	_id     catalog.ObjectId
}

func objectRefLess(a, b objectRef) bool {
	if a._depTyp != b._depTyp {
		return a._depTyp < b._depTyp
	}
	return a._id < b._id
}

// dependToItem lists the objects statement _me depends on.
type dependToItem struct {
	_me    string
	_toSet *btree.BTreeG[objectRef]
}

// Tracker is the who-depends-on-whom registry between compiled statements
// and catalog objects. It is not safe for concurrent use.
type Tracker struct {
	_whoDependsOnMe *btree.BTreeG[*onMeItem]
	_whoIDependOn   *btree.BTreeG[*dependToItem]
}

func NewTracker() *Tracker {
	return &Tracker{
		_whoDependsOnMe: btree.NewBTreeG[*onMeItem](
			func(a, b *onMeItem) bool {
				return a._me < b._me
			}),
		_whoIDependOn: btree.NewBTreeG[*dependToItem](
			func(a, b *dependToItem) bool {
				return a._me < b._me
			}),
	}
}

// Add records that statement name depends on ids through depTyp. Repeated
// calls accumulate.
func (tr *Tracker) Add(name string, depTyp stmt.DepType, ids ...catalog.ObjectId) error {
	if name == "" {
		return ErrEmptyName.New()
	}
	to, has := tr._whoIDependOn.Get(&dependToItem{_me: name})
	if !has {
		to = &dependToItem{
			_me:    name,
			_toSet: btree.NewBTreeG[objectRef](objectRefLess),
		}
		tr._whoIDependOn.Set(to)
	}
	for _, id := range ids {
		onMe, has := tr._whoDependsOnMe.Get(&onMeItem{_me: id})
		if !has {
			onMe = newOnMeItem(id)
			tr._whoDependsOnMe.Set(onMe)
		}
		onMe._onMeSet.Set(&dependItem{_depTyp: depTyp, _name: name})
		to._toSet.Set(objectRef{_depTyp: depTyp, _id: id})
	}
	return nil
}

// Dependents returns the sorted names of the statements that depend on id
// through any dependency type.
func (tr *Tracker) Dependents(id catalog.ObjectId) []string {
	onMe, has := tr._whoDependsOnMe.Get(&onMeItem{_me: id})
	if !has {
		return nil
	}
	names := btree.NewBTreeG[string](func(a, b string) bool {
		return a < b
	})
	onMe._onMeSet.Scan(func(item *dependItem) bool {
		names.Set(item._name)
		return true
	})
	ret := make([]string, 0, names.Len())
	names.Scan(func(name string) bool {
		ret = append(ret, name)
		return true
	})
	return ret
}

// DependsOn returns the sorted ids statement name depends on through depTyp.
func (tr *Tracker) DependsOn(name string, depTyp stmt.DepType) []catalog.ObjectId {
	to, has := tr._whoIDependOn.Get(&dependToItem{_me: name})
	if !has {
		return nil
	}
	var ret []catalog.ObjectId
	to._toSet.Ascend(objectRef{_depTyp: depTyp}, func(ref objectRef) bool {
		if ref._depTyp != depTyp {
			return false
		}
		ret = append(ret, ref._id)
		return true
	})
	return ret
}

func (tr *Tracker) Has(name string) bool {
	_, has := tr._whoIDependOn.Get(&dependToItem{_me: name})
	return has
}

// Remove forgets statement name and every edge it owns.
func (tr *Tracker) Remove(name string) {
	to, has := tr._whoIDependOn.Get(&dependToItem{_me: name})
	if !has {
		return
	}
	to._toSet.Scan(func(ref objectRef) bool {
		onMe, has2 := tr._whoDependsOnMe.Get(&onMeItem{_me: ref._id})
		if has2 {
			onMe._onMeSet.Delete(&dependItem{_depTyp: ref._depTyp, _name: name})
			if onMe._onMeSet.Len() == 0 {
				tr._whoDependsOnMe.Delete(onMe)
			}
		}
		return true
	})
	tr._whoIDependOn.Delete(to)
}

// Len returns the number of tracked statements.
func (tr *Tracker) Len() int {
	return tr._whoIDependOn.Len()
}
