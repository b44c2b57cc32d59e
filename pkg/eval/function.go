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
	"strings"

	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/common"
	"github.com/daviszhen/binopt/pkg/util"
)

// ScalarFunc computes one output value. res is the declared result type.
type ScalarFunc func(in *Interpreter, args []common.Value, res common.LType) (common.Value, error)

// AggrFunc folds the values of one group.
type AggrFunc func(vals []common.Value, res common.LType) (common.Value, error)

type FunctionList map[string]ScalarFunc

func (fl FunctionList) Add(name string, fun ScalarFunc) {
	if _, has := fl[name]; has {
		panic(fmt.Sprintf("function %s registered twice", name))
	}
	fl[name] = fun
}

type AggrList map[string]AggrFunc

func (al AggrList) Add(name string, fun AggrFunc) {
	if _, has := al[name]; has {
		panic(fmt.Sprintf("aggregate %s registered twice", name))
	}
	al[name] = fun
}

var (
	builtinFuncs = FunctionList{}
	builtinAggrs = AggrList{}
)

func init() {
	registerCompare(builtinFuncs)
	registerArith(builtinFuncs)
	registerBoolean(builtinFuncs)
	registerMisc(builtinFuncs)
	registerAggrs(builtinAggrs)
}

func compareFunc(pred func(int) bool) ScalarFunc {
	return func(_ *Interpreter, args []common.Value, _ common.LType) (common.Value, error) {
		res, ok := args[0].Compare(args[1])
		if !ok {
			return common.NullValue(common.BooleanType()), nil
		}
		return common.BoolValue(pred(res)), nil
	}
}

func registerCompare(fl FunctionList) {
	fl.Add(catalog.FuncEqual, compareFunc(func(c int) bool { return c == 0 }))
	fl.Add(catalog.FuncNotEqual, compareFunc(func(c int) bool { return c != 0 }))
	fl.Add("<", compareFunc(func(c int) bool { return c < 0 }))
	fl.Add("<=", compareFunc(func(c int) bool { return c <= 0 }))
	fl.Add(">", compareFunc(func(c int) bool { return c > 0 }))
	fl.Add(">=", compareFunc(func(c int) bool { return c >= 0 }))
}

type arithOp struct {
	i func(a, b int64) int64
	f func(a, b float64) float64
	d func(a, b common.Decimal) (common.Decimal, error)
}

func arithFunc(op arithOp) ScalarFunc {
	return func(_ *Interpreter, args []common.Value, res common.LType) (common.Value, error) {
		a, b := args[0], args[1]
		if !res.Valid() || res.Id == common.LTID_ANY {
			res = a.Typ
		}
		if a.IsNull || b.IsNull {
			return common.NullValue(res), nil
		}
		switch {
		case a.Typ.IsIntegral() && b.Typ.IsIntegral():
			return common.BigintValue(op.i(a.I64, b.I64)).Cast(res)
		case a.Typ.Id == common.LTID_DOUBLE || b.Typ.Id == common.LTID_DOUBLE:
			fa, err := a.Cast(common.DoubleType())
			if err != nil {
				return common.Value{}, err
			}
			fb, err := b.Cast(common.DoubleType())
			if err != nil {
				return common.Value{}, err
			}
			return common.DoubleValue(op.f(fa.F64, fb.F64)).Cast(res)
		default:
			dt := common.DecimalType(18, 0)
			da, err := a.Cast(dt)
			if err != nil {
				return common.Value{}, err
			}
			db, err := b.Cast(dt)
			if err != nil {
				return common.Value{}, err
			}
			d, err := op.d(da.Dec, db.Dec)
			if err != nil {
				return common.Value{}, err
			}
			return common.DecimalValue(d, 18).Cast(res)
		}
	}
}

func registerArith(fl FunctionList) {
	fl.Add("+", arithFunc(arithOp{
		i: func(a, b int64) int64 { return a + b },
		f: func(a, b float64) float64 { return a + b },
		d: common.Decimal.Add,
	}))
	fl.Add("-", arithFunc(arithOp{
		i: func(a, b int64) int64 { return a - b },
		f: func(a, b float64) float64 { return a - b },
		d: common.Decimal.Sub,
	}))
	fl.Add("*", arithFunc(arithOp{
		i: func(a, b int64) int64 { return a * b },
		f: func(a, b float64) float64 { return a * b },
		d: common.Decimal.Mul,
	}))
}

func registerBoolean(fl FunctionList) {
	fl.Add(catalog.FuncNot, func(_ *Interpreter, args []common.Value, _ common.LType) (common.Value, error) {
		if args[0].IsNull {
			return args[0], nil
		}
		return common.BoolValue(!args[0].Bool), nil
	})
	fl.Add(catalog.FuncAnd, func(_ *Interpreter, args []common.Value, _ common.LType) (common.Value, error) {
		a, b := args[0], args[1]
		if (!a.IsNull && !a.Bool) || (!b.IsNull && !b.Bool) {
			return common.BoolValue(false), nil
		}
		if a.IsNull || b.IsNull {
			return common.NullValue(common.BooleanType()), nil
		}
		return common.BoolValue(true), nil
	})
	fl.Add(catalog.FuncOr, func(_ *Interpreter, args []common.Value, _ common.LType) (common.Value, error) {
		a, b := args[0], args[1]
		if (!a.IsNull && a.Bool) || (!b.IsNull && b.Bool) {
			return common.BoolValue(true), nil
		}
		if a.IsNull || b.IsNull {
			return common.NullValue(common.BooleanType()), nil
		}
		return common.BoolValue(false), nil
	})
}

func pick(less bool) ScalarFunc {
	return func(_ *Interpreter, args []common.Value, _ common.LType) (common.Value, error) {
		a, b := args[0], args[1]
		if a.IsNull {
			return b, nil
		}
		if b.IsNull {
			return a, nil
		}
		c, ok := a.Compare(b)
		if !ok {
			return common.Value{}, fmt.Errorf("can not compare %s and %s", a.Typ, b.Typ)
		}
		if (c <= 0) == less {
			return a, nil
		}
		return b, nil
	}
}

func registerMisc(fl FunctionList) {
	fl.Add(catalog.FuncIdentity, func(_ *Interpreter, args []common.Value, _ common.LType) (common.Value, error) {
		return args[0], nil
	})
	fl.Add(catalog.FuncHash, func(in *Interpreter, args []common.Value, _ common.LType) (common.Value, error) {
		return common.HashValue(in.hasher(args[0])), nil
	})
	fl.Add(catalog.FuncRotateXorHash, func(in *Interpreter, args []common.Value, _ common.LType) (common.Value, error) {
		h, bits, v := args[0], args[1], args[2]
		return common.HashValue(util.RotateLeft(uint64(h.I64), int(bits.I64)) ^ in.hasher(v)), nil
	})
	fl.Add("sql_min", pick(true))
	fl.Add("sql_max", pick(false))
	fl.Add("ifthenelse", func(_ *Interpreter, args []common.Value, _ common.LType) (common.Value, error) {
		if !args[0].IsNull && args[0].Bool {
			return args[1], nil
		}
		return args[2], nil
	})
	fl.Add(catalog.FuncNextValueFor, func(in *Interpreter, args []common.Value, res common.LType) (common.Value, error) {
		var parts []string
		for _, arg := range args {
			if arg.Typ.Id == common.LTID_VARCHAR && !arg.IsNull {
				parts = append(parts, arg.Str)
			}
		}
		return common.BigintValue(in.nextValue(strings.Join(parts, "."))), nil
	})
}

func nonNull(vals []common.Value) []common.Value {
	ret := make([]common.Value, 0, len(vals))
	for _, v := range vals {
		if !v.IsNull {
			ret = append(ret, v)
		}
	}
	return ret
}

func registerAggrs(al AggrList) {
	al.Add("count", func(vals []common.Value, _ common.LType) (common.Value, error) {
		return common.BigintValue(int64(len(nonNull(vals)))), nil
	})
	al.Add("sum", func(vals []common.Value, res common.LType) (common.Value, error) {
		vals = nonNull(vals)
		if len(vals) == 0 {
			return common.NullValue(res), nil
		}
		add := builtinFuncs["+"]
		acc := vals[0]
		var err error
		for _, v := range vals[1:] {
			if acc, err = add(nil, []common.Value{acc, v}, res); err != nil {
				return common.Value{}, err
			}
		}
		return acc.Cast(res)
	})
	fold := func(less bool) AggrFunc {
		return func(vals []common.Value, res common.LType) (common.Value, error) {
			vals = nonNull(vals)
			if len(vals) == 0 {
				return common.NullValue(res), nil
			}
			p := pick(less)
			acc := vals[0]
			var err error
			for _, v := range vals[1:] {
				if acc, err = p(nil, []common.Value{acc, v}, res); err != nil {
					return common.Value{}, err
				}
			}
			return acc, nil
		}
	}
	al.Add("min", fold(true))
	al.Add("max", fold(false))
}

// wildcardMatch matches target against a like pattern. escape, when not
// zero, makes the following pattern byte literal.
func wildcardMatch(pattern, target string, escape byte) bool {
	p, t := 0, 0
	star, mark := -1, -1
	plen, tlen := len(pattern), len(target)
	for t < tlen {
		if p < plen && pattern[p] == '%' {
			p++
			star = p
			if p >= plen {
				return true
			}
			mark = t
			continue
		}
		lit := p < plen && escape != 0 && pattern[p] == escape && p+1 < plen
		switch {
		case lit && pattern[p+1] == target[t]:
			p += 2
			t++
		case !lit && p < plen && (pattern[p] == '_' || pattern[p] == target[t]):
			p++
			t++
		default:
			if star == -1 {
				return false
			}
			//let the last % swallow one more byte
			p = star
			mark++
			t = mark
		}
	}
	for p < plen && pattern[p] == '%' {
		p++
	}
	return p >= plen
}
