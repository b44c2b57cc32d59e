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

	"github.com/google/uuid"
	"github.com/petermattis/goid"
	"gopkg.in/src-d/go-errors.v1"

	"github.com/daviszhen/binopt/pkg/util"
)

var (
	ErrArenaExhausted = errors.NewKind("arena %s exhausted after %d nodes")
	ErrNilOperand     = errors.NewKind("%s: missing operand %d")
)

const FaultArenaAlloc = "arena.alloc"

// Arena owns every node of one compiled statement. Nodes are never freed
// one by one; the arena is dropped as a whole. An arena belongs to the
// goroutine that created it.
type Arena struct {
	_id       uuid.UUID
	_owner    int64
	_maxNodes int
	_nodes    []*Stmt
}

// NewArena creates an arena holding at most maxNodes nodes. maxNodes <= 0
// means unbounded.
func NewArena(maxNodes int) *Arena {
	return &Arena{
		_id:       uuid.New(),
		_owner:    goid.Get(),
		_maxNodes: maxNodes,
	}
}

func (a *Arena) Id() uuid.UUID {
	return a._id
}

func (a *Arena) Len() int {
	return len(a._nodes)
}

// Node returns the node with the given id.
func (a *Arena) Node(id int) *Stmt {
	if id < 0 || id >= len(a._nodes) {
		return nil
	}
	return a._nodes[id]
}

func (a *Arena) alloc(typ StType) (*Stmt, error) {
	if gid := goid.Get(); gid != a._owner {
		panic(fmt.Sprintf("arena %s owned by goroutine %d used from %d", a._id, a._owner, gid))
	}
	if err := util.Check(util.FaultArena, FaultArenaAlloc).Fire(); err != nil {
		return nil, ErrArenaExhausted.Wrap(err, a._id, len(a._nodes))
	}
	if a._maxNodes > 0 && len(a._nodes) >= a._maxNodes {
		return nil, ErrArenaExhausted.New(a._id, len(a._nodes))
	}
	s := &Stmt{
		Id:  len(a._nodes),
		Typ: typ,
	}
	a._nodes = append(a._nodes, s)
	return s, nil
}

// clone allocates a copy of s under a fresh id.
func (a *Arena) clone(s *Stmt) (*Stmt, error) {
	ns, err := a.alloc(s.Typ)
	if err != nil {
		return nil, err
	}
	id := ns.Id
	*ns = *s
	ns.Id = id
	if l, ok := s.Op4.(ListVal); ok {
		ns.Op4 = ListVal{List: util.CopyTo(l.List)}
	}
	return ns, nil
}

// Rebuild copies s under a fresh id with its operands replaced. The derived
// properties of s are kept.
func (a *Arena) Rebuild(s, op1, op2, op3 *Stmt) (*Stmt, error) {
	ns, err := a.clone(s)
	if err != nil {
		return nil, err
	}
	ns.Op1 = op1
	ns.Op2 = op2
	ns.Op3 = op3
	return ns, nil
}

// need fails when one of the required operands is missing, which happens
// when building a child already failed.
func need(who string, ops ...*Stmt) error {
	for i, op := range ops {
		if op == nil {
			return ErrNilOperand.New(who, i+1)
		}
	}
	return nil
}
