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
package prepare

import (
	"strings"
	"sync"

	treemap "github.com/liyue201/gostl/ds/map"
	"go.uber.org/zap"

	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/depend"
	"github.com/daviszhen/binopt/pkg/util"
)

// Cache holds compiled statements by name. A change to a catalog object
// evicts every statement depending on it. It is safe for concurrent use.
type Cache struct {
	_lock  sync.Mutex
	_plans *treemap.Map[string, *Prepared]
	_deps  *depend.Tracker
}

func NewCache() *Cache {
	return &Cache{
		_plans: treemap.New[string, *Prepared](strings.Compare),
		_deps:  depend.NewTracker(),
	}
}

// Put stores p, replacing the statement of the same name.
func (c *Cache) Put(p *Prepared) error {
	c._lock.Lock()
	defer c._lock.Unlock()
	c._deps.Remove(p.Name)
	for _, dt := range depTypes {
		if err := c._deps.Add(p.Name, dt, p.Deps[dt]...); err != nil {
			c._deps.Remove(p.Name)
			return err
		}
	}
	c._plans.Insert(p.Name, p)
	return nil
}

func (c *Cache) Get(name string) (*Prepared, bool) {
	c._lock.Lock()
	defer c._lock.Unlock()
	p, err := c._plans.Get(name)
	if err != nil {
		return nil, false
	}
	return p, true
}

// Names lists the cached statements in name order.
func (c *Cache) Names() []string {
	c._lock.Lock()
	defer c._lock.Unlock()
	ret := make([]string, 0, c._plans.Size())
	for iter := c._plans.Begin(); iter.IsValid(); iter.Next() {
		ret = append(ret, iter.Key())
	}
	return ret
}

func (c *Cache) Len() int {
	c._lock.Lock()
	defer c._lock.Unlock()
	return c._plans.Size()
}

func (c *Cache) Remove(name string) {
	c._lock.Lock()
	defer c._lock.Unlock()
	c.remove(name)
}

func (c *Cache) remove(name string) {
	c._deps.Remove(name)
	c._plans.Erase(name)
}

// Invalidate evicts the statements depending on any of ids and returns
// their sorted names.
func (c *Cache) Invalidate(ids ...catalog.ObjectId) []string {
	c._lock.Lock()
	defer c._lock.Unlock()
	evict := treemap.New[string, struct{}](strings.Compare)
	for _, id := range ids {
		for _, name := range c._deps.Dependents(id) {
			evict.Insert(name, struct{}{})
		}
	}
	ret := make([]string, 0, evict.Size())
	for iter := evict.Begin(); iter.IsValid(); iter.Next() {
		c.remove(iter.Key())
		ret = append(ret, iter.Key())
	}
	if len(ret) > 0 {
		util.Info("invalidated",
			zap.Int64s("objects", toInt64s(ids)),
			zap.Strings("statements", ret),
		)
	}
	return ret
}

func toInt64s(ids []catalog.ObjectId) []int64 {
	ret := make([]int64, len(ids))
	for i, id := range ids {
		ret[i] = int64(id)
	}
	return ret
}
