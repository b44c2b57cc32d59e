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
package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/daviszhen/binopt/pkg/util"
)

// Value is a single typed datum. Integral kinds (including oid and hash)
// live in I64.
type Value struct {
	Typ    LType
	IsNull bool
	I64    int64
	F64    float64
	Str    string
	Bool   bool
	Dec    Decimal
}

func NullValue(typ LType) Value {
	return Value{Typ: typ, IsNull: true}
}

func IntValue(v int64) Value {
	return Value{Typ: IntegerType(), I64: v}
}

func BigintValue(v int64) Value {
	return Value{Typ: BigintType(), I64: v}
}

func OidValue(v int64) Value {
	return Value{Typ: OidType(), I64: v}
}

func HashValue(v uint64) Value {
	return Value{Typ: HashType(), I64: int64(v)}
}

func BoolValue(v bool) Value {
	return Value{Typ: BooleanType(), Bool: v}
}

func StringValue(v string) Value {
	return Value{Typ: VarcharType(), Str: v}
}

func DoubleValue(v float64) Value {
	return Value{Typ: DoubleType(), F64: v}
}

func DecimalValue(d Decimal, width int) Value {
	return Value{Typ: DecimalType(width, d.Scale()), Dec: d}
}

func (v Value) String() string {
	if v.IsNull {
		return "null"
	}
	switch {
	case v.Typ.IsIntegral():
		if v.Typ.Id == LTID_HASH {
			return strconv.FormatUint(uint64(v.I64), 16)
		}
		return strconv.FormatInt(v.I64, 10)
	}
	switch v.Typ.Id {
	case LTID_BOOLEAN:
		return strconv.FormatBool(v.Bool)
	case LTID_VARCHAR:
		return v.Str
	case LTID_DOUBLE:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case LTID_DECIMAL:
		return v.Dec.String()
	default:
		return fmt.Sprintf("<%s>", v.Typ)
	}
}

// Compare orders two values. ok is false when either side is null or the
// types are not comparable.
func (v Value) Compare(o Value) (res int, ok bool) {
	if v.IsNull || o.IsNull {
		return 0, false
	}
	lt, rt := v.Typ, o.Typ
	switch {
	case lt.IsIntegral() && rt.IsIntegral():
		return cmpOrdered(v.I64, o.I64), true
	case lt.Id == LTID_DECIMAL || rt.Id == LTID_DECIMAL:
		if lt.Id == LTID_DOUBLE || rt.Id == LTID_DOUBLE {
			return cmpOrdered(v.asFloat(), o.asFloat()), true
		}
		ld, lok := v.asDecimal()
		rd, rok := o.asDecimal()
		if !lok || !rok {
			return 0, false
		}
		return ld.Decimal.Cmp(rd.Decimal), true
	case lt.IsNumeric() && rt.IsNumeric():
		return cmpOrdered(v.asFloat(), o.asFloat()), true
	case lt.Id == LTID_VARCHAR && rt.Id == LTID_VARCHAR:
		return strings.Compare(v.Str, o.Str), true
	case lt.Id == LTID_BOOLEAN && rt.Id == LTID_BOOLEAN:
		if v.Bool == o.Bool {
			return 0, true
		}
		if !v.Bool {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func (v Value) Equal(o Value) bool {
	res, ok := v.Compare(o)
	return ok && res == 0
}

// Key returns a comparable representation so that values equal under
// Compare share a key. Null has no key.
func (v Value) Key() any {
	if v.IsNull {
		return nil
	}
	switch {
	case v.Typ.IsIntegral():
		return v.I64
	}
	switch v.Typ.Id {
	case LTID_DECIMAL:
		if i, ok := v.Dec.Integral(); ok {
			return i
		}
		return v.Dec.Float()
	case LTID_DOUBLE:
		if v.F64 == math.Trunc(v.F64) && math.Abs(v.F64) < 1<<62 {
			return int64(v.F64)
		}
		return v.F64
	case LTID_VARCHAR:
		return v.Str
	case LTID_BOOLEAN:
		return v.Bool
	}
	return nil
}

// Hash is the per value hash fed into multi-column keys. Integers hash to
// themselves.
func (v Value) Hash() uint64 {
	if v.IsNull {
		return 0
	}
	switch k := v.Key().(type) {
	case int64:
		return uint64(k)
	case float64:
		return util.HashU64(math.Float64bits(k))
	case string:
		return util.HashString(k)
	case bool:
		if k {
			return 1
		}
		return 0
	}
	return 0
}

func (v Value) asFloat() float64 {
	switch {
	case v.Typ.IsIntegral():
		return float64(v.I64)
	}
	switch v.Typ.Id {
	case LTID_DOUBLE:
		return v.F64
	case LTID_DECIMAL:
		return v.Dec.Float()
	}
	return math.NaN()
}

func (v Value) asDecimal() (Decimal, bool) {
	switch {
	case v.Typ.IsIntegral():
		return DecimalFromInt(v.I64), true
	}
	if v.Typ.Id == LTID_DECIMAL {
		return v.Dec, true
	}
	return Decimal{}, false
}

// Cast converts v to typ.
func (v Value) Cast(typ LType) (Value, error) {
	if v.IsNull {
		return NullValue(typ), nil
	}
	if v.Typ.Equal(typ) {
		return v, nil
	}
	switch {
	case typ.IsIntegral():
		switch {
		case v.Typ.IsIntegral():
			return Value{Typ: typ, I64: v.I64}, nil
		case v.Typ.Id == LTID_DOUBLE:
			return Value{Typ: typ, I64: int64(v.F64)}, nil
		case v.Typ.Id == LTID_DECIMAL:
			i, ok := v.Dec.Integral()
			if !ok {
				i = int64(v.Dec.Float())
			}
			return Value{Typ: typ, I64: i}, nil
		case v.Typ.Id == LTID_VARCHAR:
			i, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
			if err != nil {
				return Value{}, err
			}
			return Value{Typ: typ, I64: i}, nil
		case v.Typ.Id == LTID_BOOLEAN:
			if v.Bool {
				return Value{Typ: typ, I64: 1}, nil
			}
			return Value{Typ: typ}, nil
		}
	case typ.Id == LTID_DOUBLE:
		f := v.asFloat()
		if v.Typ.Id == LTID_VARCHAR {
			var err error
			f, err = strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
			if err != nil {
				return Value{}, err
			}
		}
		return DoubleValue(f), nil
	case typ.Id == LTID_DECIMAL:
		var d Decimal
		var err error
		switch {
		case v.Typ.Id == LTID_VARCHAR:
			d, err = ParseDecimal(strings.TrimSpace(v.Str))
		case v.Typ.Id == LTID_DOUBLE:
			d, err = ParseDecimal(strconv.FormatFloat(v.F64, 'f', -1, 64))
		default:
			var ok bool
			d, ok = v.asDecimal()
			if !ok {
				err = fmt.Errorf("can not cast %s to %s", v.Typ, typ)
			}
		}
		if err != nil {
			return Value{}, err
		}
		return Value{Typ: typ, Dec: d}, nil
	case typ.Id == LTID_VARCHAR:
		return StringValue(v.String()), nil
	case typ.Id == LTID_BOOLEAN:
		switch {
		case v.Typ.IsIntegral():
			return BoolValue(v.I64 != 0), nil
		case v.Typ.Id == LTID_VARCHAR:
			b, err := strconv.ParseBool(strings.TrimSpace(v.Str))
			if err != nil {
				return Value{}, err
			}
			return BoolValue(b), nil
		}
	}
	return Value{}, fmt.Errorf("can not cast %s to %s", v.Typ, typ)
}

// ParseValue reads a literal of type typ.
func ParseValue(typ LType, s string) (Value, error) {
	if strings.EqualFold(s, "null") {
		return NullValue(typ), nil
	}
	return StringValue(s).Cast(typ)
}

func cmpOrdered[T int64 | float64](a, b T) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
