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
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviszhen/binopt/pkg/common"
	"github.com/daviszhen/binopt/pkg/eval"
	"github.com/daviszhen/binopt/pkg/stmt"
)

var (
	lA = []int64{1, 1, 2, 2, 3}
	lB = []int64{1, 2, 1, 2, 3}
	rA = []int64{1, 2, 2, 3, 4}
	rB = []int64{2, 1, 2, 3, 4}
)

// nestedLoop joins the rows of l and r on pred.
func nestedLoop(pred func(i, j int) bool) []string {
	var ret []string
	for i := range lA {
		for j := range rA {
			if pred(i, j) {
				ret = append(ret, fmt.Sprintf("%d|%d", i, j))
			}
		}
	}
	sort.Strings(ret)
	return ret
}

func collide(common.Value) uint64 {
	return 42
}

func kinds(root *stmt.Stmt) map[stmt.StType]int {
	ret := make(map[stmt.StType]int)
	for _, s := range stmt.Array(root).Stmts {
		ret[s.Typ]++
	}
	return ret
}

func TestEqJoinSingleColumn(t *testing.T) {
	f := newFixture(t)
	m := f.m(t)
	ej := m(f.a.RelEqJoin2([]*stmt.Stmt{f.bat(t, f.l, "a")}, []*stmt.Stmt{f.bat(t, f.r, "a")}))
	res := f.optimize(t, ej, DefaultOptions())
	require.Equal(t, stmt.ST_Join, res.Typ)
	assert.Equal(t, stmt.CMP_Equal, res.Cmp())
	assert.Zero(t, kinds(res)[stmt.ST_Unop])

	want := nestedLoop(func(i, j int) bool { return lA[i] == rA[j] })
	assert.Len(t, want, 7)
	assert.Equal(t, want, f.eval(t, res).Pairs())
	f.requireSame(t, ej, res)
}

func TestEqJoinMultiColumn(t *testing.T) {
	want2 := nestedLoop(func(i, j int) bool { return lA[i] == rA[j] && lB[i] == rB[j] })
	require.Equal(t, []string{"1|0", "2|1", "3|2", "4|3"}, want2)

	cases := []struct {
		name   string
		opts   Options
		hasher eval.Hasher
	}{
		{"derived bits", DefaultOptions(), nil},
		{"one bit", Options{HashBits: 1}, nil},
		{"colliding hash", DefaultOptions(), collide},
		{"colliding hash one bit", Options{HashBits: 1}, collide},
		{"no hash", Options{NoHash: true}, collide},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)
			m := f.m(t)
			la, lb := f.bat(t, f.l, "a"), f.bat(t, f.l, "b")
			ra, rb := f.bat(t, f.r, "a"), f.bat(t, f.r, "b")
			var evalOpts []eval.Option
			if c.hasher != nil {
				evalOpts = append(evalOpts, eval.WithHasher(c.hasher))
			}

			ej := m(f.a.RelEqJoin2([]*stmt.Stmt{la, lb}, []*stmt.Stmt{ra, rb}))
			res := f.optimize(t, ej, c.opts)
			assert.Zero(t, kinds(res)[stmt.ST_RelEqJoin])
			if c.opts.NoHash {
				assert.Zero(t, kinds(res)[stmt.ST_Unop])
			} else {
				assert.Equal(t, 2, kinds(res)[stmt.ST_Unop])
			}
			assert.Equal(t, want2, f.eval(t, res, evalOpts...).Pairs())
			f.requireSame(t, ej, res, evalOpts...)

			//three columns, the last one repeats the first
			ej = m(f.a.RelEqJoin2([]*stmt.Stmt{la, lb, la}, []*stmt.Stmt{ra, rb, ra}))
			res = f.optimize(t, ej, c.opts)
			assert.Equal(t, want2, f.eval(t, res, evalOpts...).Pairs())
		})
	}
}

func TestHashBits(t *testing.T) {
	f := newFixture(t)
	o := f.optimizer(DefaultOptions())
	assert.Equal(t, 32, o.hashBits(1))
	assert.Equal(t, 22, o.hashBits(2))
	assert.Equal(t, 16, o.hashBits(3))
	o = f.optimizer(Options{HashBits: 5})
	assert.Equal(t, 5, o.hashBits(3))
}

func TestRelJoin(t *testing.T) {
	f := newFixture(t)
	m := f.m(t)
	a := f.a
	la, lb := f.bat(t, f.l, "a"), f.bat(t, f.l, "b")
	ra, rb := f.bat(t, f.r, "a"), f.bat(t, f.r, "b")
	join := func(l, r *stmt.Stmt, cmp stmt.CmpType) *stmt.Stmt {
		return m(a.Join(l, m(a.Reverse(r)), cmp))
	}
	eq := f.fun(t, "=")

	cases := []struct {
		name  string
		rj    *stmt.Stmt
		joins []*stmt.Stmt
		want  []string
	}{
		{
			name:  "two conditions",
			joins: []*stmt.Stmt{join(la, ra, stmt.CMP_Lt), join(lb, rb, stmt.CMP_Equal)},
			want:  nestedLoop(func(i, j int) bool { return lA[i] < rA[j] && lB[i] == rB[j] }),
		},
		{
			name:  "on a computed join",
			rj:    join(la, ra, stmt.CMP_Equal),
			joins: []*stmt.Stmt{join(lb, rb, stmt.CMP_Lte)},
			want:  nestedLoop(func(i, j int) bool { return lA[i] == rA[j] && lB[i] <= rB[j] }),
		},
		{
			name: "range",
			rj:   join(la, ra, stmt.CMP_Gte),
			joins: []*stmt.Stmt{
				m(a.Join2(lb, ra, rb, stmt.RANGE_IncLow|stmt.RANGE_IncHigh)),
			},
			want: nestedLoop(func(i, j int) bool {
				return lA[i] >= rA[j] && rA[j] <= lB[i] && lB[i] <= rB[j]
			}),
		},
		{
			name: "anti range",
			rj:   join(la, ra, stmt.CMP_Gte),
			joins: []*stmt.Stmt{
				m(a.Join2(lb, ra, rb, stmt.RANGE_IncLow|stmt.RANGE_Anti)),
			},
			want: nestedLoop(func(i, j int) bool {
				return lA[i] >= rA[j] && !(rA[j] <= lB[i] && lB[i] < rB[j])
			}),
		},
		{
			name: "predicate",
			rj:   join(lb, rb, stmt.CMP_Equal),
			joins: []*stmt.Stmt{
				m(a.JoinN(m(a.List([]*stmt.Stmt{la})), m(a.List([]*stmt.Stmt{ra})), eq)),
			},
			want: nestedLoop(func(i, j int) bool { return lB[i] == rB[j] && lA[i] == rA[j] }),
		},
		{
			name: "reversed",
			rj:   join(lb, rb, stmt.CMP_Lte),
			joins: []*stmt.Stmt{
				m(a.Reverse(join(ra, la, stmt.CMP_Gt))),
			},
			want: nestedLoop(func(i, j int) bool { return lB[i] <= rB[j] && rA[j] > lA[i] }),
		},
	}
	for _, c := range cases {
		//the arena belongs to this goroutine, subtests only evaluate
		require.NotEmpty(t, c.want, c.name)
		rj := m(a.RelJoin(c.rj, c.joins))
		res := f.optimize(t, rj, DefaultOptions())
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, f.eval(t, rj).Pairs())
			assert.Zero(t, kinds(res)[stmt.ST_RelJoin])
			assert.Equal(t, c.want, f.eval(t, res).Pairs())
		})
	}

	//a single condition is the join itself
	only := join(la, ra, stmt.CMP_Lt)
	assert.Same(t, only, f.optimize(t, m(a.RelJoin(nil, []*stmt.Stmt{only})), DefaultOptions()))
}
