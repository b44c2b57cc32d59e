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
package planfile

import (
	"fmt"
	"strings"

	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/common"
	"github.com/daviszhen/binopt/pkg/stmt"
)

type builder struct {
	_file  *File
	_spec  *StmtSpec
	_arena *stmt.Arena
	_cat   *catalog.Catalog
	_nodes map[string]*stmt.Stmt
	_grps  map[string]*stmt.Group
	// one basetable per table and statement
	_bases map[catalog.ObjectId]*stmt.Stmt
}

// Build constructs statement name in a. The tables must have been set up in
// cat.
func (f *File) Build(a *stmt.Arena, cat *catalog.Catalog, name string) (*stmt.Stmt, error) {
	spec, has := f.Statement(name)
	if !has {
		return nil, ErrUnknownNode.New(name, "statement")
	}
	b := &builder{
		_file:  f,
		_spec:  spec,
		_arena: a,
		_cat:   cat,
		_nodes: make(map[string]*stmt.Stmt),
		_grps:  make(map[string]*stmt.Group),
		_bases: make(map[catalog.ObjectId]*stmt.Stmt),
	}
	var last *stmt.Stmt
	for i := range spec.Nodes {
		ns := &spec.Nodes[i]
		if ns.Id == "" {
			return nil, b.bad(ns, "missing id")
		}
		if _, has := b._nodes[ns.Id]; has {
			return nil, b.bad(ns, "duplicate id")
		}
		s, err := b.node(ns)
		if err != nil {
			return nil, err
		}
		b._nodes[ns.Id] = s
		last = s
	}
	if spec.Root == "" {
		return last, nil
	}
	root, has := b._nodes[spec.Root]
	if !has {
		return nil, ErrUnknownNode.New(spec.Name, spec.Root)
	}
	return root, nil
}

func (b *builder) bad(ns *NodeSpec, format string, args ...any) error {
	return ErrBadNode.New(b._spec.Name, ns.Id, fmt.Sprintf(format, args...))
}

func (b *builder) ops(ns *NodeSpec, min, max int) ([]*stmt.Stmt, error) {
	if len(ns.Ops) < min || (max >= 0 && len(ns.Ops) > max) {
		if min == max {
			return nil, b.bad(ns, "%s wants %d operands, got %d", ns.Kind, min, len(ns.Ops))
		}
		return nil, b.bad(ns, "%s wants %d to %d operands, got %d", ns.Kind, min, max, len(ns.Ops))
	}
	ret := make([]*stmt.Stmt, 0, len(ns.Ops))
	for _, id := range ns.Ops {
		s, has := b._nodes[id]
		if !has {
			return nil, ErrUnknownNode.New(b._spec.Name, id)
		}
		ret = append(ret, s)
	}
	return ret, nil
}

func (b *builder) table(ns *NodeSpec) (*catalog.Table, error) {
	if ns.Table == "" {
		return nil, b.bad(ns, "missing table")
	}
	return b._cat.Table(b._file.schema(), ns.Table)
}

func (b *builder) basetable(tab *catalog.Table) (*stmt.Stmt, error) {
	if bt, has := b._bases[tab.Id]; has {
		return bt, nil
	}
	bt, err := b._arena.BaseTable(tab, tab.Name)
	if err != nil {
		return nil, err
	}
	b._bases[tab.Id] = bt
	return bt, nil
}

func (b *builder) access(ns *NodeSpec) (int, error) {
	switch ns.Access {
	case "", "rdonly":
		return stmt.AC_RdOnly, nil
	case "base":
		return stmt.AC_RdBase, nil
	case "ins":
		return stmt.AC_RdIns, nil
	case "upd":
		return stmt.AC_RdUpd, nil
	}
	return 0, b.bad(ns, "unknown access %s", ns.Access)
}

func (b *builder) cmp(ns *NodeSpec, def stmt.CmpType) (stmt.CmpType, error) {
	if ns.Cmp == "" {
		return def, nil
	}
	cmp, ok := stmt.ParseCmpType(ns.Cmp)
	if !ok {
		return def, b.bad(ns, "unknown comparison %s", ns.Cmp)
	}
	return cmp, nil
}

func (b *builder) rangeFlag(ns *NodeSpec) (int, error) {
	flag := 0
	for _, r := range ns.Range {
		switch r {
		case "low":
			flag |= stmt.RANGE_IncLow
		case "high":
			flag |= stmt.RANGE_IncHigh
		case "anti":
			flag |= stmt.RANGE_Anti
		default:
			return 0, b.bad(ns, "unknown range flag %s", r)
		}
	}
	return flag, nil
}

func (b *builder) dir(ns *NodeSpec) (int, error) {
	switch strings.ToLower(ns.Dir) {
	case "", "asc":
		return stmt.DIR_Asc, nil
	case "desc":
		return stmt.DIR_Desc, nil
	}
	return 0, b.bad(ns, "unknown direction %s", ns.Dir)
}

func (b *builder) typ(ns *NodeSpec) (common.LType, error) {
	if ns.Type == "" {
		return common.InvalidType(), b.bad(ns, "missing type")
	}
	typ, err := common.ParseLType(ns.Type)
	if err != nil {
		return typ, b.bad(ns, "%v", err)
	}
	return typ, nil
}

func (b *builder) fun(ns *NodeSpec) (stmt.FuncVal, error) {
	if ns.Func == "" {
		return stmt.FuncVal{}, b.bad(ns, "missing func")
	}
	fun, err := b._cat.Func(ns.Func)
	if err != nil {
		return stmt.FuncVal{}, err
	}
	res := fun.Res
	if ns.Type != "" {
		if res, err = b.typ(ns); err != nil {
			return stmt.FuncVal{}, err
		}
	}
	return stmt.FuncVal{Fun: fun, Res: res}, nil
}

func (b *builder) aggr(ns *NodeSpec) (stmt.AggrVal, error) {
	if ns.Func == "" {
		return stmt.AggrVal{}, b.bad(ns, "missing func")
	}
	fun, err := b._cat.Aggr(ns.Func)
	if err != nil {
		return stmt.AggrVal{}, err
	}
	return stmt.AggrVal{Aggr: fun, Res: fun.Res}, nil
}

func (b *builder) group(ns *NodeSpec) (*stmt.Group, error) {
	if ns.Group == "" {
		return nil, nil
	}
	g, has := b._grps[ns.Group]
	if !has {
		return nil, ErrUnknownNode.New(b._spec.Name, ns.Group)
	}
	return g, nil
}

func (b *builder) node(ns *NodeSpec) (*stmt.Stmt, error) {
	a := b._arena
	switch ns.Kind {
	case "atom":
		typ, err := b.typ(ns)
		if err != nil {
			return nil, err
		}
		val, err := common.ParseValue(typ, ns.Value)
		if err != nil {
			return nil, b.bad(ns, "%v", err)
		}
		return a.Atom(val)
	case "var":
		typ, err := b.typ(ns)
		if err != nil {
			return nil, err
		}
		return a.Var(ns.Name, typ, false, 0)
	case "basetable":
		tab, err := b.table(ns)
		if err != nil {
			return nil, err
		}
		return b.basetable(tab)
	case "bat":
		tab, err := b.table(ns)
		if err != nil {
			return nil, err
		}
		col := tab.Column(ns.Column)
		if col == nil {
			return nil, ErrUnknownNode.New(b._spec.Name, ns.Table+"."+ns.Column)
		}
		ac, err := b.access(ns)
		if err != nil {
			return nil, err
		}
		bt, err := b.basetable(tab)
		if err != nil {
			return nil, err
		}
		if ns.Delta {
			return a.DeltaTableBat(col, bt, ac)
		}
		return a.Bat(col, bt, ac)
	case "idxbat":
		tab, err := b.table(ns)
		if err != nil {
			return nil, err
		}
		idx := tab.Index(ns.Index)
		if idx == nil {
			return nil, ErrUnknownNode.New(b._spec.Name, ns.Table+"."+ns.Index)
		}
		ac, err := b.access(ns)
		if err != nil {
			return nil, err
		}
		if ns.Delta {
			return a.DeltaTableIdxBat(idx, ac)
		}
		return a.IdxBat(idx, ac)
	case "dbat":
		tab, err := b.table(ns)
		if err != nil {
			return nil, err
		}
		return a.TBat(tab, stmt.AC_RdIns)
	}

	ops, err := b.operands(ns)
	if err != nil {
		return nil, err
	}
	return b.compose(ns, ops)
}

// operands resolves the operand count each composite kind expects.
func (b *builder) operands(ns *NodeSpec) ([]*stmt.Stmt, error) {
	switch ns.Kind {
	case "reverse", "mirror", "mark", "marktail", "order", "unique", "convert",
		"unop", "aggr", "group", "alias", "single", "nop":
		return b.ops(ns, 1, 1)
	case "select", "uselect":
		return b.ops(ns, 2, 3)
	case "select2", "uselect2", "join2", "limit":
		return b.ops(ns, 3, 3)
	case "selectN", "uselectN", "semijoin", "join", "project", "joinN",
		"outerjoin", "diff", "union", "reorder", "binop", "const", "ordered":
		return b.ops(ns, 2, 2)
	case "list", "relselect", "reljoin":
		return b.ops(ns, 1, -1)
	case "releqjoin":
		ops, err := b.ops(ns, 2, -1)
		if err != nil {
			return nil, err
		}
		if len(ops)%2 != 0 {
			return nil, b.bad(ns, "releqjoin wants key pairs")
		}
		return ops, nil
	}
	return nil, b.bad(ns, "unknown kind %s", ns.Kind)
}

func (b *builder) compose(ns *NodeSpec, ops []*stmt.Stmt) (*stmt.Stmt, error) {
	a := b._arena
	switch ns.Kind {
	case "reverse":
		return a.Reverse(ops[0])
	case "mirror":
		return a.Mirror(ops[0])
	case "mark":
		return a.Mark(ops[0], ns.Base)
	case "marktail":
		return a.MarkTail(ops[0], ns.Base)
	case "order":
		dir, err := b.dir(ns)
		if err != nil {
			return nil, err
		}
		return a.Order(ops[0], dir)
	case "reorder":
		dir, err := b.dir(ns)
		if err != nil {
			return nil, err
		}
		return a.Reorder(ops[0], ops[1], dir)
	case "ordered":
		return a.Ordered(ops[0], ops[1])
	case "limit":
		dir, err := b.dir(ns)
		if err != nil {
			return nil, err
		}
		return a.Limit(ops[0], ops[1], ops[2], dir)
	case "unique":
		g, err := b.group(ns)
		if err != nil {
			return nil, err
		}
		return a.Unique(ops[0], g)
	case "group":
		og, err := b.group(ns)
		if err != nil {
			return nil, err
		}
		g, err := a.GroupCreate(ops[0], og)
		if err != nil {
			return nil, err
		}
		stmt.GroupDone(g)
		b._grps[ns.Id] = g
		return g.Grp, nil
	case "convert":
		to, err := b.typ(ns)
		if err != nil {
			return nil, err
		}
		return a.Convert(ops[0], stmt.TailType(ops[0]), to)
	case "alias":
		return a.Alias(ops[0], ns.Table, ns.Name)
	case "single":
		return a.ConstColumn(ops[0])
	case "const":
		return a.Const(ops[0], ops[1])
	case "select", "uselect":
		cmp, err := b.cmp(ns, stmt.CMP_Equal)
		if err != nil {
			return nil, err
		}
		if len(ops) == 3 || cmp.IsPattern() {
			if !cmp.IsPattern() || ns.Kind != "select" {
				return nil, b.bad(ns, "pattern matching needs a select with a pattern comparison")
			}
			var esc *stmt.Stmt
			if len(ops) == 3 {
				esc = ops[2]
			}
			return a.LikeSelect(ops[0], ops[1], esc, cmp)
		}
		if ns.Kind == "uselect" {
			return a.USelect(ops[0], ops[1], cmp)
		}
		return a.Select(ops[0], ops[1], cmp)
	case "select2", "uselect2":
		flag, err := b.rangeFlag(ns)
		if err != nil {
			return nil, err
		}
		if ns.Kind == "uselect2" {
			return a.USelect2(ops[0], ops[1], ops[2], flag)
		}
		return a.Select2(ops[0], ops[1], ops[2], flag)
	case "selectN", "uselectN":
		fun, err := b.fun(ns)
		if err != nil {
			return nil, err
		}
		if ns.Kind == "uselectN" {
			return a.USelectN(ops[0], ops[1], fun)
		}
		return a.SelectN(ops[0], ops[1], fun)
	case "semijoin":
		return a.SemiJoin(ops[0], ops[1])
	case "join", "outerjoin":
		cmp, err := b.cmp(ns, stmt.CMP_Equal)
		if err != nil {
			return nil, err
		}
		if ns.Kind == "outerjoin" {
			return a.OuterJoin(ops[0], ops[1], cmp)
		}
		return a.Join(ops[0], ops[1], cmp)
	case "project":
		return a.Project(ops[0], ops[1])
	case "join2":
		flag, err := b.rangeFlag(ns)
		if err != nil {
			return nil, err
		}
		return a.Join2(ops[0], ops[1], ops[2], flag)
	case "joinN":
		fun, err := b.fun(ns)
		if err != nil {
			return nil, err
		}
		return a.JoinN(ops[0], ops[1], fun)
	case "diff":
		return a.Diff(ops[0], ops[1])
	case "union":
		return a.Union(ops[0], ops[1])
	case "unop", "binop", "nop":
		fun, err := b.fun(ns)
		if err != nil {
			return nil, err
		}
		switch ns.Kind {
		case "unop":
			return a.Unop(ops[0], fun)
		case "binop":
			return a.Binop(ops[0], ops[1], fun)
		}
		if ops[0].Typ != stmt.ST_List {
			return nil, b.bad(ns, "nop wants a list operand")
		}
		return a.Nop(ops[0], fun)
	case "aggr":
		aggr, err := b.aggr(ns)
		if err != nil {
			return nil, err
		}
		g, err := b.group(ns)
		if err != nil {
			return nil, err
		}
		return a.Aggr(ops[0], g, aggr, g == nil)
	case "list":
		return a.List(ops)
	case "relselect":
		return a.RelSelect(ops)
	case "releqjoin":
		var l1, l2 []*stmt.Stmt
		for i := 0; i < len(ops); i += 2 {
			l1 = append(l1, ops[i])
			l2 = append(l2, ops[i+1])
		}
		return a.RelEqJoin2(l1, l2)
	case "reljoin":
		return a.RelJoin(nil, ops)
	}
	panic(fmt.Sprintf("usp plan kind %s", ns.Kind))
}
