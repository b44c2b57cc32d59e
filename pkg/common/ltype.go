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
	"strings"
)

// LType is the sql type of a statement's values.
type LType struct {
	Id    LTypeId
	Width int
	Scale int
}

func MakeLType(id LTypeId) LType {
	return LType{Id: id}
}

func Null() LType {
	return MakeLType(LTID_NULL)
}

func InvalidType() LType {
	return MakeLType(LTID_INVALID)
}

func AnyType() LType {
	return MakeLType(LTID_ANY)
}

func DecimalType(width, scale int) LType {
	ret := MakeLType(LTID_DECIMAL)
	ret.Width = width
	ret.Scale = scale
	return ret
}

func BigintType() LType {
	return MakeLType(LTID_BIGINT)
}

func IntegerType() LType {
	return MakeLType(LTID_INTEGER)
}

func TinyintType() LType {
	return MakeLType(LTID_TINYINT)
}

func DoubleType() LType {
	return MakeLType(LTID_DOUBLE)
}

func VarcharType() LType {
	return MakeLType(LTID_VARCHAR)
}

func VarcharType2(width int) LType {
	ret := MakeLType(LTID_VARCHAR)
	ret.Width = width
	return ret
}

func BooleanType() LType {
	return MakeLType(LTID_BOOLEAN)
}

func OidType() LType {
	return MakeLType(LTID_OID)
}

func HashType() LType {
	return MakeLType(LTID_HASH)
}

func TableType() LType {
	return MakeLType(LTID_TABLE)
}

func (lt LType) IsNumeric() bool {
	switch lt.Id {
	case LTID_TINYINT, LTID_INTEGER, LTID_BIGINT, LTID_DECIMAL, LTID_DOUBLE:
		return true
	default:
		return false
	}
}

// IsIntegral reports types stored in Value.I64.
func (lt LType) IsIntegral() bool {
	switch lt.Id {
	case LTID_TINYINT, LTID_INTEGER, LTID_BIGINT, LTID_OID, LTID_HASH:
		return true
	default:
		return false
	}
}

func (lt LType) Valid() bool {
	return lt.Id != LTID_INVALID
}

func (lt LType) Equal(o LType) bool {
	if lt.Id != o.Id {
		return false
	}
	if lt.Id == LTID_DECIMAL {
		return lt.Width == o.Width && lt.Scale == o.Scale
	}
	return true
}

func (lt LType) String() string {
	switch lt.Id {
	case LTID_DECIMAL:
		return fmt.Sprintf("decimal(%d,%d)", lt.Width, lt.Scale)
	case LTID_VARCHAR:
		if lt.Width > 0 {
			return fmt.Sprintf("varchar(%d)", lt.Width)
		}
		return "varchar"
	case LTID_BOOLEAN:
		return "boolean"
	case LTID_TINYINT:
		return "tinyint"
	case LTID_INTEGER:
		return "int"
	case LTID_BIGINT:
		return "bigint"
	case LTID_DOUBLE:
		return "double"
	case LTID_OID:
		return "oid"
	case LTID_HASH:
		return "wrd"
	case LTID_TABLE:
		return "bat"
	case LTID_NULL:
		return "null"
	case LTID_ANY:
		return "any"
	default:
		return "invalid"
	}
}

// ParseLType parses the names produced by String.
func ParseLType(s string) (LType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "boolean", "bool", "bit":
		return BooleanType(), nil
	case "tinyint":
		return TinyintType(), nil
	case "int", "integer":
		return IntegerType(), nil
	case "bigint", "lng":
		return BigintType(), nil
	case "double", "dbl":
		return DoubleType(), nil
	case "varchar", "string", "str", "clob":
		return VarcharType(), nil
	case "oid":
		return OidType(), nil
	case "wrd", "hash":
		return HashType(), nil
	case "bat", "table":
		return TableType(), nil
	case "any":
		return AnyType(), nil
	}
	var w, sc int
	if n, err := fmt.Sscanf(s, "decimal(%d,%d)", &w, &sc); err == nil && n == 2 {
		return DecimalType(w, sc), nil
	}
	if n, err := fmt.Sscanf(s, "varchar(%d)", &w); err == nil && n == 1 {
		return VarcharType2(w), nil
	}
	return InvalidType(), fmt.Errorf("unknown type %q", s)
}
