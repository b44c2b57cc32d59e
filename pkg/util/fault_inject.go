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
package util

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// FaultScope groups the failure points of one layer. A scope fires
// nothing until it is armed.
type FaultScope int

const (
	// FaultArena covers node allocation.
	FaultArena FaultScope = iota
	// FaultEval covers node evaluation.
	FaultEval
	// FaultCompile covers statement compilation.
	FaultCompile
	faultScopes
)

func (fs FaultScope) String() string {
	switch fs {
	case FaultArena:
		return "arena"
	case FaultEval:
		return "eval"
	case FaultCompile:
		return "compile"
	default:
		panic(fmt.Sprintf("usp fault scope %d", int(fs)))
	}
}

func (fs FaultScope) valid() bool {
	return fs >= 0 && fs < faultScopes
}

// Fault is an injected failure at a named point.
type Fault struct {
	Scope FaultScope
	Point string
	Args  []string
	Fail  func(args []string) error

	_lock sync.Mutex
	_hits int
}

// Fire runs the failure. A nil fault succeeds, so call sites can write
// Check(scope, point).Fire().
func (f *Fault) Fire() error {
	if f == nil || f.Fail == nil {
		return nil
	}
	f._lock.Lock()
	f._hits++
	f._lock.Unlock()
	err := f.Fail(f.Args)
	if err != nil {
		Debug("fault fired",
			zap.Stringer("scope", f.Scope),
			zap.String("point", f.Point),
			zap.Error(err))
	}
	return err
}

// Hits counts the calls of Fire.
func (f *Fault) Hits() int {
	if f == nil {
		return 0
	}
	f._lock.Lock()
	defer f._lock.Unlock()
	return f._hits
}

type faultSet struct {
	_lock   sync.RWMutex
	_armed  bool
	_points map[string]*Fault
}

var faultSets [faultScopes]faultSet

// Arm enables the failure points of scope.
func Arm(scope FaultScope) {
	if !scope.valid() {
		return
	}
	fs := &faultSets[scope]
	fs._lock.Lock()
	defer fs._lock.Unlock()
	fs._armed = true
}

// Disarm disables scope and forgets its failure points.
func Disarm(scope FaultScope) {
	if !scope.valid() {
		return
	}
	fs := &faultSets[scope]
	fs._lock.Lock()
	defer fs._lock.Unlock()
	fs._armed = false
	fs._points = nil
}

// Inject installs a failure at point. It is ignored while scope is
// disarmed.
func Inject(scope FaultScope, point string, args []string, fail func([]string) error) *Fault {
	if !scope.valid() {
		return nil
	}
	fs := &faultSets[scope]
	fs._lock.Lock()
	defer fs._lock.Unlock()
	if !fs._armed {
		return nil
	}
	if fs._points == nil {
		fs._points = make(map[string]*Fault)
	}
	f := &Fault{Scope: scope, Point: point, Args: args, Fail: fail}
	fs._points[point] = f
	return f
}

// Remove drops the failure at point.
func Remove(scope FaultScope, point string) {
	if !scope.valid() {
		return
	}
	fs := &faultSets[scope]
	fs._lock.Lock()
	defer fs._lock.Unlock()
	delete(fs._points, point)
}

// Check returns the failure installed at point, nil when there is none or
// the scope is disarmed.
func Check(scope FaultScope, point string) *Fault {
	if !scope.valid() {
		return nil
	}
	fs := &faultSets[scope]
	fs._lock.RLock()
	defer fs._lock.RUnlock()
	if !fs._armed {
		return nil
	}
	return fs._points[point]
}
