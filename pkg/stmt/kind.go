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

type StType int

const (
	ST_None StType = iota
	ST_Var
	ST_BaseTable
	ST_Table
	ST_Temp
	ST_Single
	ST_RsColumn
	ST_Bat
	ST_DBat
	ST_IdxBat
	ST_Const
	ST_Mark
	ST_GenGroup
	ST_Reverse
	ST_Mirror
	ST_Limit
	ST_Limit2
	ST_Order
	ST_Reorder
	ST_Ordered
	ST_Output
	ST_AffectedRows
	ST_Atom
	ST_Select
	ST_Select2
	ST_USelect
	ST_SelectN
	ST_USelect2
	ST_USelectN
	ST_SemiJoin
	ST_RelSelect
	ST_RelEqJoin
	ST_Join
	ST_Join2
	ST_JoinN
	ST_OuterJoin
	ST_Diff
	ST_Union
	ST_RelJoin
	ST_Export
	ST_Append
	ST_TableClear
	ST_Exception
	ST_Trans
	ST_Catalog
	ST_AppendCol
	ST_AppendIdx
	ST_UpdateCol
	ST_UpdateIdx
	ST_Delete
	ST_GroupExt
	ST_Group
	ST_Derive
	ST_Unique
	ST_Convert
	ST_Unop
	ST_Binop
	ST_Nop
	ST_Aggr
	ST_Alias
	ST_Connection
	ST_List
	ST_Cond
	ST_ControlEnd
	ST_Return
	ST_Assign
	stTypeCount
)

var stTypeNames = [stTypeCount]string{
	ST_None:         "none",
	ST_Var:          "var",
	ST_BaseTable:    "basetable",
	ST_Table:        "table",
	ST_Temp:         "temp",
	ST_Single:       "single",
	ST_RsColumn:     "rs_column",
	ST_Bat:          "bat",
	ST_DBat:         "dbat",
	ST_IdxBat:       "idxbat",
	ST_Const:        "const",
	ST_Mark:         "mark",
	ST_GenGroup:     "gen_group",
	ST_Reverse:      "reverse",
	ST_Mirror:       "mirror",
	ST_Limit:        "limit",
	ST_Limit2:       "limit2",
	ST_Order:        "order",
	ST_Reorder:      "reorder",
	ST_Ordered:      "ordered",
	ST_Output:       "output",
	ST_AffectedRows: "affected_rows",
	ST_Atom:         "atom",
	ST_Select:       "select",
	ST_Select2:      "select2",
	ST_USelect:      "uselect",
	ST_SelectN:      "selectN",
	ST_USelect2:     "uselect2",
	ST_USelectN:     "uselectN",
	ST_SemiJoin:     "semijoin",
	ST_RelSelect:    "relselect",
	ST_RelEqJoin:    "releqjoin",
	ST_Join:         "join",
	ST_Join2:        "join2",
	ST_JoinN:        "joinN",
	ST_OuterJoin:    "outerjoin",
	ST_Diff:         "diff",
	ST_Union:        "union",
	ST_RelJoin:      "reljoin",
	ST_Export:       "export",
	ST_Append:       "append",
	ST_TableClear:   "table_clear",
	ST_Exception:    "exception",
	ST_Trans:        "trans",
	ST_Catalog:      "catalog",
	ST_AppendCol:    "append_col",
	ST_AppendIdx:    "append_idx",
	ST_UpdateCol:    "update_col",
	ST_UpdateIdx:    "update_idx",
	ST_Delete:       "delete",
	ST_GroupExt:     "group_ext",
	ST_Group:        "group",
	ST_Derive:       "derive",
	ST_Unique:       "unique",
	ST_Convert:      "convert",
	ST_Unop:         "unop",
	ST_Binop:        "binop",
	ST_Nop:          "Nop",
	ST_Aggr:         "aggr",
	ST_Alias:        "alias",
	ST_Connection:   "connection",
	ST_List:         "list",
	ST_Cond:         "cond",
	ST_ControlEnd:   "control_end",
	ST_Return:       "return",
	ST_Assign:       "assign",
}

func (st StType) String() string {
	if st >= 0 && st < stTypeCount {
		return stTypeNames[st]
	}
	panic(fmt.Sprintf("usp %d", st))
}

// ParseStType is the inverse of String.
func ParseStType(name string) (StType, bool) {
	for i, n := range stTypeNames {
		if n == name {
			return StType(i), true
		}
	}
	return ST_None, false
}

// IsSelect reports the point and range selection kinds.
func (st StType) IsSelect() bool {
	switch st {
	case ST_Select, ST_Select2, ST_SelectN, ST_USelect, ST_USelect2, ST_USelectN:
		return true
	}
	return false
}

// IsUSelect reports the selection kinds that drop the tail.
func (st StType) IsUSelect() bool {
	switch st {
	case ST_USelect, ST_USelect2, ST_USelectN:
		return true
	}
	return false
}

type CmpType int

const (
	CMP_Gt CmpType = iota
	CMP_Gte
	CMP_Lte
	CMP_Lt
	CMP_Equal
	CMP_NotEqual
	CMP_Like
	CMP_NotLike
	CMP_ILike
	CMP_NotILike
	CMP_All
	CMP_Project
	CMP_ReorderProject
)

func (ct CmpType) String() string {
	switch ct {
	case CMP_Gt:
		return ">"
	case CMP_Gte:
		return ">="
	case CMP_Lte:
		return "<="
	case CMP_Lt:
		return "<"
	case CMP_Equal:
		return "="
	case CMP_NotEqual:
		return "<>"
	case CMP_Like:
		return "like"
	case CMP_NotLike:
		return "not like"
	case CMP_ILike:
		return "ilike"
	case CMP_NotILike:
		return "not ilike"
	case CMP_All:
		return "all"
	case CMP_Project:
		return "project"
	case CMP_ReorderProject:
		return "reorder_project"
	default:
		panic(fmt.Sprintf("usp %d", ct))
	}
}

func ParseCmpType(s string) (CmpType, bool) {
	for ct := CMP_Gt; ct <= CMP_ReorderProject; ct++ {
		if ct.String() == s {
			return ct, true
		}
	}
	switch s {
	case "==":
		return CMP_Equal, true
	case "!=":
		return CMP_NotEqual, true
	}
	return CMP_Gt, false
}

// IsPattern reports the like family.
func (ct CmpType) IsPattern() bool {
	switch ct {
	case CMP_Like, CMP_NotLike, CMP_ILike, CMP_NotILike:
		return true
	}
	return false
}

// Range flags of select2, uselect2 and join2.
const (
	RANGE_IncLow  = 1
	RANGE_IncHigh = 2
	RANGE_Anti    = 4
)

// RangeLeftCmp is the comparison of the value against the low bound.
func RangeLeftCmp(flag int) CmpType {
	if flag&RANGE_IncLow != 0 {
		return CMP_Gte
	}
	return CMP_Gt
}

// RangeRightCmp is the comparison of the value against the high bound.
func RangeRightCmp(flag int) CmpType {
	if flag&RANGE_IncHigh != 0 {
		return CMP_Lte
	}
	return CMP_Lt
}

// Access modes of bat, dbat and idxbat. AC_RdOnly reads the merged view of
// a column, the others read one delta part.
const (
	AC_RdOnly = 0
	AC_RdBase = 1
	AC_RdIns  = 2
	AC_RdUpd  = 3
)

func AccessString(ac int) string {
	switch ac {
	case AC_RdOnly:
		return "rdonly"
	case AC_RdBase:
		return "base"
	case AC_RdIns:
		return "ins"
	case AC_RdUpd:
		return "upd"
	default:
		panic(fmt.Sprintf("usp %d", ac))
	}
}

// Order direction flags.
const (
	DIR_Asc  = 1
	DIR_Desc = 0
)

// GRP_Done marks a group whose extent is complete.
const GRP_Done = 1
