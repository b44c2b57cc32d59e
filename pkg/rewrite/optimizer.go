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
	"fmt"

	"go.uber.org/zap"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/stmt"
	"github.com/daviszhen/binopt/pkg/util"
)

var (
	ErrNoOperands      = errors.NewKind("%s: no operands")
	ErrOperandMismatch = errors.NewKind("%s: %d left operands, %d right")
)

// Optimization levels. Level 1 lowers the relational kinds
// (relselect, releqjoin, reljoin) into binary operators, level 2 also
// applies the algebraic rewrites.
const (
	LevelLower   = 1
	LevelRewrite = 2
)

type Options struct {
	Level int
	// NoHash compiles multi-column equi-joins without the combined hash
	// key.
	NoHash bool
	// HashBits overrides the rotate width of the combined key. 0 derives it
	// from the number of columns.
	HashBits int
	// ExpandDeltas lowers read-only bats into their delta parts.
	ExpandDeltas bool
	// NoShrink keeps the range selections of a relselect as they are.
	NoShrink bool
}

func DefaultOptions() Options {
	return Options{Level: util.DefaultOptimizeLevel}
}

// OptionsFromConfig maps the [optimizer] section of the config.
func OptionsFromConfig(cfg util.OptimizerOptions) Options {
	opts := Options{
		Level:        cfg.Level,
		NoHash:       cfg.NoHash,
		HashBits:     cfg.HashBits,
		ExpandDeltas: cfg.ExpandDeltas,
		NoShrink:     cfg.NoShrink,
	}
	if opts.Level <= 0 {
		opts.Level = util.DefaultOptimizeLevel
	}
	return opts
}

type memoEntry struct {
	level int
	res   *stmt.Stmt
}

// Optimizer rewrites a statement DAG into an equivalent cheaper one. New
// nodes come from the arena, the input nodes are never modified. The
// rewrite of every node is memoized by node id, so a shared
// sub-expression is rewritten once and stays shared.
type Optimizer struct {
	_arena   *stmt.Arena
	_cat     *catalog.Catalog
	_opts    Options
	_memo    map[int]memoEntry
	_applied map[string]int
}

func NewOptimizer(arena *stmt.Arena, cat *catalog.Catalog, opts Options) *Optimizer {
	if opts.Level <= 0 {
		opts.Level = util.DefaultOptimizeLevel
	}
	return &Optimizer{
		_arena:   arena,
		_cat:     cat,
		_opts:    opts,
		_memo:    make(map[int]memoEntry),
		_applied: make(map[string]int),
	}
}

// Optimize returns the rewritten form of root. Optimizing the result
// again returns it unchanged.
func (o *Optimizer) Optimize(root *stmt.Stmt) (*stmt.Stmt, error) {
	res, err := o.optimize(root)
	if err != nil {
		return nil, err
	}
	util.Debug("optimized",
		zap.Int("root", root.Id),
		zap.Int("result", res.Id),
		zap.Int("level", o._opts.Level),
		zap.Int("nodes", o._arena.Len()),
	)
	return res, nil
}

// Applied counts the applications per rule.
func (o *Optimizer) Applied() map[string]int {
	ret := make(map[string]int, len(o._applied))
	for k, v := range o._applied {
		ret[k] = v
	}
	return ret
}

func (o *Optimizer) applied(rule string, s *stmt.Stmt) {
	o._applied[rule]++
	util.Debug("rewrite", zap.String("rule", rule), zap.Int("node", s.Id))
}

func (o *Optimizer) optimize(s *stmt.Stmt) (*stmt.Stmt, error) {
	if s == nil {
		return nil, nil
	}
	if e, has := o._memo[s.Id]; has && e.level >= o._opts.Level {
		return e.res, nil
	}
	res, err := o.dispatch(s)
	if err != nil {
		return nil, err
	}
	o.remember(s, res)
	return res, nil
}

// remember records res as the rewrite of s. The result is a fixed point,
// so it is recorded as its own rewrite too.
func (o *Optimizer) remember(s, res *stmt.Stmt) {
	o.set(s, res)
	if res != s {
		o.set(res, res)
	}
}

func (o *Optimizer) set(s, res *stmt.Stmt) {
	if e, has := o._memo[s.Id]; has && e.level >= o._opts.Level && e.res != res {
		panic(fmt.Sprintf("usp rewrite of %s already set to %s at level %d", s, e.res, e.level))
	}
	o._memo[s.Id] = memoEntry{level: o._opts.Level, res: res}
}

func (o *Optimizer) rewriting() bool {
	return o._opts.Level >= LevelRewrite
}

func (o *Optimizer) dispatch(s *stmt.Stmt) (*stmt.Stmt, error) {
	switch s.Typ {
	case stmt.ST_None, stmt.ST_Connection, stmt.ST_RsColumn, stmt.ST_DBat,
		stmt.ST_BaseTable, stmt.ST_Atom, stmt.ST_Export, stmt.ST_Var,
		stmt.ST_TableClear:
		return s, nil
	case stmt.ST_Bat, stmt.ST_IdxBat:
		return o.expandDeltas(s)
	case stmt.ST_List:
		return o.optimizeList(s)
	case stmt.ST_RelSelect:
		return o.relSelect(s)
	case stmt.ST_RelEqJoin:
		return o.relEqJoin(s)
	case stmt.ST_RelJoin:
		return o.relJoin(s)
	case stmt.ST_Select, stmt.ST_Select2, stmt.ST_SelectN,
		stmt.ST_USelect, stmt.ST_USelect2, stmt.ST_USelectN:
		if o.rewriting() {
			return o.pushSelect(s)
		}
		return o.passThrough(s)
	case stmt.ST_Limit:
		if o.rewriting() {
			return o.pushLimit(s)
		}
		return o.passThrough(s)
	case stmt.ST_SemiJoin:
		if o.rewriting() {
			return o.semiJoin(s)
		}
		return o.passThrough(s)
	case stmt.ST_Reverse:
		if o.rewriting() {
			return o.reverse(s)
		}
		return o.passThrough(s)
	case stmt.ST_Join:
		if o.rewriting() {
			return o.join(s)
		}
		return o.passThrough(s)
	case stmt.ST_Temp, stmt.ST_Single, stmt.ST_Table, stmt.ST_Const,
		stmt.ST_Mark, stmt.ST_GenGroup, stmt.ST_Mirror, stmt.ST_Limit2,
		stmt.ST_Order, stmt.ST_Reorder, stmt.ST_Ordered, stmt.ST_Output,
		stmt.ST_AffectedRows, stmt.ST_Join2, stmt.ST_JoinN,
		stmt.ST_OuterJoin, stmt.ST_Diff, stmt.ST_Union, stmt.ST_Append,
		stmt.ST_Exception, stmt.ST_Trans, stmt.ST_Catalog,
		stmt.ST_AppendCol, stmt.ST_AppendIdx, stmt.ST_UpdateCol,
		stmt.ST_UpdateIdx, stmt.ST_Delete, stmt.ST_GroupExt, stmt.ST_Group,
		stmt.ST_Derive, stmt.ST_Unique, stmt.ST_Convert, stmt.ST_Unop,
		stmt.ST_Binop, stmt.ST_Nop, stmt.ST_Aggr, stmt.ST_Alias,
		stmt.ST_Cond, stmt.ST_ControlEnd, stmt.ST_Return, stmt.ST_Assign:
		return o.passThrough(s)
	default:
		panic(fmt.Sprintf("usp rewrite of kind %d", int(s.Typ)))
	}
}

// passThrough rewrites the operands of s and copies s when one of them
// changed.
func (o *Optimizer) passThrough(s *stmt.Stmt) (*stmt.Stmt, error) {
	op1, err := o.optimize(s.Op1)
	if err != nil {
		return nil, err
	}
	op2, err := o.optimize(s.Op2)
	if err != nil {
		return nil, err
	}
	op3, err := o.optimize(s.Op3)
	if err != nil {
		return nil, err
	}
	if op1 == s.Op1 && op2 == s.Op2 && op3 == s.Op3 {
		return s, nil
	}
	return o._arena.Rebuild(s, op1, op2, op3)
}

// optimizeList builds a new list only when an element changed.
func (o *Optimizer) optimizeList(s *stmt.Stmt) (*stmt.Stmt, error) {
	elems, changed, err := o.optimizeAll(s.List())
	if err != nil {
		return nil, err
	}
	if !changed {
		return s, nil
	}
	return o._arena.List(elems)
}

func (o *Optimizer) optimizeAll(l []*stmt.Stmt) ([]*stmt.Stmt, bool, error) {
	ret := make([]*stmt.Stmt, len(l))
	changed := false
	for i, e := range l {
		ne, err := o.optimize(e)
		if err != nil {
			return nil, false, err
		}
		ret[i] = ne
		changed = changed || ne != e
	}
	return ret, changed, nil
}

func (o *Optimizer) expandDeltas(s *stmt.Stmt) (*stmt.Stmt, error) {
	if !o._opts.ExpandDeltas || s.Flag != stmt.AC_RdOnly {
		return s, nil
	}
	var res *stmt.Stmt
	var err error
	if s.Typ == stmt.ST_Bat {
		res, err = o._arena.DeltaTableBat(s.Column(), s.H, s.Flag)
	} else {
		res, err = o._arena.DeltaTableIdxBat(s.Index(), s.Flag)
	}
	if err != nil {
		return nil, err
	}
	if res.Typ == s.Typ {
		//nothing to merge
		return s, nil
	}
	o.applied("expand_deltas", s)
	return res, nil
}

func (o *Optimizer) function(name string) (stmt.FuncVal, error) {
	fun, err := o._cat.Func(name)
	if err != nil {
		return stmt.FuncVal{}, err
	}
	return stmt.FuncVal{Fun: fun, Res: fun.Res}, nil
}
