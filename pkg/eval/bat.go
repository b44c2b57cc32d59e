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
package eval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/daviszhen/binopt/pkg/common"
)

// Bat is a two column table of (head, tail) pairs.
type Bat struct {
	Head []common.Value
	Tail []common.Value
}

func NewBat(capacity int) *Bat {
	return &Bat{
		Head: make([]common.Value, 0, capacity),
		Tail: make([]common.Value, 0, capacity),
	}
}

func (b *Bat) Len() int {
	return len(b.Head)
}

func (b *Bat) Append(h, t common.Value) {
	b.Head = append(b.Head, h)
	b.Tail = append(b.Tail, t)
}

// heads indexes the positions of every head value.
func (b *Bat) heads() map[any][]int {
	m := make(map[any][]int, b.Len())
	for i, h := range b.Head {
		if k := h.Key(); k != nil {
			m[k] = append(m[k], i)
		}
	}
	return m
}

// tailOf maps each head to its first tail.
func (b *Bat) tailOf() map[any]common.Value {
	m := make(map[any]common.Value, b.Len())
	for i, h := range b.Head {
		k := h.Key()
		if k == nil {
			continue
		}
		if _, has := m[k]; !has {
			m[k] = b.Tail[i]
		}
	}
	return m
}

// Pairs renders the rows as sorted "head|tail" strings. Two bats holding
// the same multiset of rows render identically.
func (b *Bat) Pairs() []string {
	ret := make([]string, 0, b.Len())
	for i := range b.Head {
		ret = append(ret, fmt.Sprintf("%s|%s", b.Head[i], b.Tail[i]))
	}
	sort.Strings(ret)
	return ret
}

// Heads renders the sorted head values.
func (b *Bat) Heads() []string {
	ret := make([]string, 0, b.Len())
	for _, h := range b.Head {
		ret = append(ret, h.String())
	}
	sort.Strings(ret)
	return ret
}

// Tails renders the sorted tail values.
func (b *Bat) Tails() []string {
	ret := make([]string, 0, b.Len())
	for _, t := range b.Tail {
		ret = append(ret, t.String())
	}
	sort.Strings(ret)
	return ret
}

func (b *Bat) String() string {
	var sb strings.Builder
	for i := range b.Head {
		sb.WriteString(fmt.Sprintf("[ %s, %s ]\n", b.Head[i], b.Tail[i]))
	}
	return sb.String()
}

type ResultKind int

const (
	RK_None ResultKind = iota
	RK_Scalar
	RK_Bat
	RK_List
)

func (rk ResultKind) String() string {
	switch rk {
	case RK_None:
		return "none"
	case RK_Scalar:
		return "scalar"
	case RK_Bat:
		return "bat"
	case RK_List:
		return "list"
	default:
		panic(fmt.Sprintf("usp %d", rk))
	}
}

// Result is the value of one evaluated node.
type Result struct {
	Kind ResultKind
	Val  common.Value
	Bat  *Bat
	List []*Result
}

func scalarResult(v common.Value) *Result {
	return &Result{Kind: RK_Scalar, Val: v}
}

func batResult(b *Bat) *Result {
	return &Result{Kind: RK_Bat, Bat: b}
}

var noneResult = &Result{Kind: RK_None}

func (r *Result) String() string {
	switch r.Kind {
	case RK_Scalar:
		return r.Val.String()
	case RK_Bat:
		return r.Bat.String()
	case RK_List:
		parts := make([]string, 0, len(r.List))
		for _, e := range r.List {
			parts = append(parts, e.String())
		}
		return "(" + strings.Join(parts, "; ") + ")"
	default:
		return r.Kind.String()
	}
}
