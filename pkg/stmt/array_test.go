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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkTopological(t *testing.T, lin *Linear) {
	seen := make(map[int]bool)
	for i, s := range lin.Stmts {
		require.False(t, seen[s.Id], "%s placed twice", s)
		seen[s.Id] = true
		require.Equal(t, i, lin.Position(s))
		for _, c := range s.Children() {
			pos := lin.Position(c)
			require.GreaterOrEqual(t, pos, 0, "%s missing", c)
			require.Less(t, pos, i, "%s after its parent %s", c, s)
		}
	}
}

func TestArray(t *testing.T) {
	f := newFixture(t)
	m := must(t)
	a := f.a
	ca := f.bat(t, f.t, "a")
	cb := f.bat(t, f.t, "b")
	five := m(a.AtomInt(5))
	sel := m(a.Select(ca, five, CMP_Equal))
	mk := m(a.Mark(sel, 0))
	j := m(a.Join(m(a.Reverse(mk)), cb, CMP_Project))
	sum := m(a.Binop(j, m(a.Const(j, five)), f.eq))
	root := m(a.List([]*Stmt{sum, sel, j}))

	lin := Array(root)
	checkTopological(t, lin)
	assert.Same(t, root, lin.Stmts[lin.Len()-1])
	//mark adds two reverses, the mark itself and its base atom
	assert.Equal(t, 13, lin.Len())
	assert.Less(t, lin.Position(sum), lin.Position(root))

	assert.Equal(t, -1, lin.Position(nil))
	assert.Equal(t, -1, lin.Position(f.btT))
	assert.Equal(t, 0, Array(nil).Len())
}

func TestArrayListOrder(t *testing.T) {
	f := newFixture(t)
	m := must(t)
	a := f.a
	x := m(a.AtomInt(1))
	y := m(a.AtomInt(2))
	z := m(a.AtomInt(3))
	lin := Array(m(a.List([]*Stmt{y, z, x})))
	require.Equal(t, 4, lin.Len())
	assert.Same(t, y, lin.Stmts[0])
	assert.Same(t, z, lin.Stmts[1])
	assert.Same(t, x, lin.Stmts[2])
}

func TestArrayCycle(t *testing.T) {
	f := newFixture(t)
	m := must(t)
	a := f.a
	ca := f.bat(t, f.t, "a")
	sel := m(a.Select(ca, m(a.AtomInt(1)), CMP_Equal))
	rev := m(a.Reverse(sel))
	ca.Op1 = rev
	assert.Panics(t, func() {
		Array(rev)
	})
}
