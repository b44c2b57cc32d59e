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

import "fmt"

// Linear is a DAG flattened so that every node follows its operands.
type Linear struct {
	Stmts []*Stmt
	//node id -> index in Stmts
	Pos map[int]int
}

func (lin *Linear) Len() int {
	return len(lin.Stmts)
}

// Position returns the index of s, or -1.
func (lin *Linear) Position(s *Stmt) int {
	if s == nil {
		return -1
	}
	if pos, has := lin.Pos[s.Id]; has {
		return pos
	}
	return -1
}

type placeState int

const (
	psUnseen placeState = iota
	psExpanding
	psPlaced
)

type stackEntry struct {
	s     *Stmt
	place bool
}

// Array orders the DAG below root children first. A node reached on several
// paths is placed once. Operands of a list are placed in list order. A
// cycle is a malformed plan and panics.
func Array(root *Stmt) *Linear {
	lin := &Linear{Pos: make(map[int]int)}
	if root == nil {
		return lin
	}
	state := make(map[int]placeState)
	stack := []stackEntry{{s: root}}
	push := func(parent, child *Stmt) {
		switch state[child.Id] {
		case psUnseen:
			stack = append(stack, stackEntry{s: child})
		case psExpanding:
			panic(fmt.Sprintf("cycle: %s reaches its ancestor %s", parent, child))
		}
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		s := top.s
		if top.place {
			state[s.Id] = psPlaced
			lin.Pos[s.Id] = len(lin.Stmts)
			lin.Stmts = append(lin.Stmts, s)
			continue
		}
		if state[s.Id] != psUnseen {
			continue
		}
		state[s.Id] = psExpanding
		stack = append(stack, stackEntry{s: s, place: true})
		if l, ok := s.Op4.(ListVal); ok {
			//reverse so the first element is placed first
			for i := len(l.List) - 1; i >= 0; i-- {
				push(s, l.List[i])
			}
		}
		for _, op := range []*Stmt{s.Op1, s.Op2, s.Op3} {
			if op != nil {
				push(s, op)
			}
		}
	}
	return lin
}
