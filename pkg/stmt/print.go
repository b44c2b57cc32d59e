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
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/xlab/treeprint"
)

func payloadArgs(s *Stmt) []string {
	switch s.Typ {
	case ST_Temp, ST_Single, ST_RsColumn:
		return []string{s.Op4.(TypeVal).Typ.String()}
	case ST_Bat, ST_AppendCol, ST_UpdateCol:
		col := s.Column()
		args := []string{col.String()}
		if s.Typ == ST_Bat {
			args = append(args, AccessString(s.Flag))
		}
		return args
	case ST_IdxBat, ST_AppendIdx, ST_UpdateIdx:
		args := []string{s.Index().String()}
		if s.Typ == ST_IdxBat {
			args = append(args, AccessString(s.Flag))
		}
		return args
	case ST_DBat, ST_Delete, ST_TableClear, ST_BaseTable:
		return []string{s.Table().String()}
	case ST_Convert:
		cv := s.Op4.(ConvertVal)
		return []string{cv.From.String(), cv.To.String()}
	case ST_Unop, ST_Binop, ST_Nop, ST_SelectN, ST_USelectN, ST_JoinN:
		return []string{s.Func().Fun.Name}
	case ST_Aggr:
		return []string{s.AggrFunc().Aggr.Name}
	}
	return nil
}

func flagArgs(s *Stmt) []string {
	switch s.Typ {
	case ST_Select, ST_USelect, ST_Join, ST_OuterJoin:
		return []string{"'" + s.Cmp().String() + "'"}
	case ST_Select2, ST_USelect2, ST_Join2:
		return []string{rangeString(s.Flag)}
	}
	return nil
}

func rangeString(flag int) string {
	var sb strings.Builder
	if flag&RANGE_Anti != 0 {
		sb.WriteString("anti ")
	}
	if flag&RANGE_IncLow != 0 {
		sb.WriteByte('[')
	} else {
		sb.WriteByte('(')
	}
	sb.WriteString("..")
	if flag&RANGE_IncHigh != 0 {
		sb.WriteByte(']')
	} else {
		sb.WriteByte(')')
	}
	return sb.String()
}

func refName(lin *Linear, s *Stmt) string {
	if pos := lin.Position(s); pos >= 0 {
		return fmt.Sprintf("s%d", pos)
	}
	return fmt.Sprintf("#%d", s.Id)
}

// StmtString renders s as one assignment. Operands are named by their
// position in lin.
func StmtString(lin *Linear, s *Stmt) string {
	name := refName(lin, s)
	switch s.Typ {
	case ST_Var:
		typ := s.Op4.(TypeVal).Typ
		if s.Op1 != nil {
			return fmt.Sprintf("%s := %s:%s", name, s.Op1.Atom().Str, typ)
		}
		return fmt.Sprintf("%s := A%d:%s", name, s.Flag, typ)
	case ST_Atom:
		v := s.Atom()
		return fmt.Sprintf("%s := '%s':%s", name, v, v.Typ)
	}
	args := payloadArgs(s)
	for _, op := range []*Stmt{s.Op1, s.Op2, s.Op3} {
		if op != nil {
			args = append(args, refName(lin, op))
		}
	}
	if l, ok := s.Op4.(ListVal); ok {
		for _, e := range l.List {
			args = append(args, refName(lin, e))
		}
	}
	args = append(args, flagArgs(s)...)
	return fmt.Sprintf("%s := %s(%s);", name, s.Typ, strings.Join(args, ", "))
}

// PrintStmts writes one line per node in the order of lin.
func PrintStmts(w io.Writer, lin *Linear) error {
	bw := bufio.NewWriter(w)
	for _, s := range lin.Stmts {
		if _, err := bw.WriteString(StmtString(lin, s)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Explain renders the DAG below root as a tree. A node shared by several
// parents is expanded once and referenced as "-> sN" afterwards.
func Explain(root *Stmt) string {
	lin := Array(root)
	tree := treeprint.NewWithRoot("Stmt:")
	seen := make(map[int]bool)
	explainNode(tree, lin, root, seen)
	return tree.String()
}

func nodeLabel(lin *Linear, s *Stmt) string {
	label := StmtString(lin, s)
	if idx := strings.Index(label, " := "); idx >= 0 {
		label = label[idx+4:]
	}
	label = strings.TrimSuffix(label, ";")
	meta := fmt.Sprintf("%s nrcols=%d", refName(lin, s), s.NrCols)
	if s.Key {
		meta += " key"
	}
	if s.Aggr {
		meta += " aggr"
	}
	return fmt.Sprintf("%s [%s]", label, meta)
}

func explainNode(tree treeprint.Tree, lin *Linear, s *Stmt, seen map[int]bool) {
	if s == nil {
		return
	}
	if seen[s.Id] {
		tree.AddNode("-> " + refName(lin, s))
		return
	}
	seen[s.Id] = true
	children := s.Children()
	if len(children) == 0 {
		tree.AddNode(nodeLabel(lin, s))
		return
	}
	branch := tree.AddBranch(nodeLabel(lin, s))
	for _, child := range children {
		explainNode(branch, lin, child, seen)
	}
}
