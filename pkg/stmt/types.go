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

	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/common"
)

// TailType is the type of the tail values produced by st.
func TailType(st *Stmt) common.LType {
	switch st.Typ {
	case ST_Const, ST_Join, ST_OuterJoin:
		return TailType(st.Op2)
	case ST_Join2, ST_JoinN:
		//the tail of join2 is the head of the second operand
		return HeadType(st.Op2)
	case ST_RelEqJoin:
		return HeadType(st.Op2.List()[0])
	case ST_RelJoin:
		if st.Op1 != nil {
			return TailType(st.Op1)
		}
		return TailType(st.Op2.List()[0])
	case ST_Diff, ST_Select, ST_Select2, ST_SelectN,
		ST_USelect, ST_USelect2, ST_USelectN,
		ST_Limit, ST_Limit2, ST_SemiJoin, ST_Unique, ST_Union,
		ST_Append, ST_Alias, ST_GenGroup, ST_Order:
		return TailType(st.Op1)
	case ST_List:
		return TailType(st.List()[0])
	case ST_Bat:
		return st.Column().Typ
	case ST_IdxBat:
		switch st.Index().Typ {
		case catalog.IndexHash:
			return common.HashType()
		default:
			return common.OidType()
		}
	case ST_DBat, ST_Mark, ST_Reorder, ST_Group, ST_Derive, ST_GroupExt:
		return common.OidType()
	case ST_TableClear:
		return common.BigintType()
	case ST_Mirror, ST_Reverse:
		return HeadType(st.Op1)
	case ST_Aggr:
		return st.AggrFunc().Res
	case ST_Unop, ST_Binop, ST_Nop:
		return st.Func().Res
	case ST_Atom:
		return st.Atom().Typ
	case ST_Convert:
		return st.Op4.(ConvertVal).To
	case ST_Temp, ST_Single, ST_RsColumn, ST_Var:
		return st.Op4.(TypeVal).Typ
	case ST_Exception:
		return common.InvalidType()
	case ST_Table:
		return common.TableType()
	default:
		panic(fmt.Sprintf("usp tail type of %s", st.Typ))
	}
}

// HeadType is the type of the head values produced by st.
func HeadType(st *Stmt) common.LType {
	switch st.Typ {
	case ST_Aggr, ST_Convert, ST_Unop, ST_Binop, ST_Nop, ST_Unique,
		ST_Union, ST_Alias, ST_Diff, ST_Join, ST_Join2, ST_JoinN,
		ST_OuterJoin, ST_SemiJoin, ST_Mirror,
		ST_Select, ST_Select2, ST_SelectN, ST_USelect, ST_USelect2, ST_USelectN,
		ST_Append, ST_GenGroup, ST_Group, ST_GroupExt, ST_Order, ST_Mark,
		ST_RelSelect, ST_RelEqJoin:
		if st.Typ == ST_Nop && len(st.Op1.List()) == 0 {
			return common.OidType()
		}
		return HeadType(st.Op1)
	case ST_RelJoin:
		if st.Op1 != nil {
			return HeadType(st.Op1)
		}
		return HeadType(st.Op2)
	case ST_List:
		if len(st.List()) == 0 {
			return common.OidType()
		}
		return HeadType(st.List()[0])
	case ST_Temp, ST_Single, ST_Bat, ST_IdxBat, ST_Const, ST_RsColumn, ST_DBat:
		return common.OidType()
	case ST_Reverse:
		return TailType(st.Op1)
	case ST_Atom:
		return st.Atom().Typ
	case ST_Var:
		return st.Op4.(TypeVal).Typ
	default:
		panic(fmt.Sprintf("usp head type of %s", st.Typ))
	}
}

// TailColumn finds the stored column the tail of st comes from, if any.
func TailColumn(st *Stmt) *Stmt {
	switch st.Typ {
	case ST_Join, ST_OuterJoin, ST_Reorder, ST_Join2, ST_JoinN:
		return TailColumn(st.Op2)
	case ST_RelJoin:
		return TailColumn(st.Op2.List()[0])
	case ST_RelEqJoin:
		return TailColumn(st.Op1.List()[0])
	case ST_Select, ST_Select2, ST_SelectN, ST_USelect, ST_USelect2, ST_USelectN,
		ST_SemiJoin, ST_Limit, ST_Limit2, ST_Diff, ST_Union, ST_Append,
		ST_Unique, ST_Aggr, ST_Order, ST_Alias, ST_Convert:
		return TailColumn(st.Op1)
	case ST_TableClear, ST_Bat:
		return st
	case ST_Mirror, ST_Reverse:
		return HeadColumn(st.Op1)
	case ST_List:
		return TailColumn(st.List()[0])
	default:
		return nil
	}
}

// HeadColumn finds the stored column the head of st comes from, if any.
func HeadColumn(st *Stmt) *Stmt {
	switch st.Typ {
	case ST_Const, ST_Mark, ST_GenGroup, ST_Mirror,
		ST_Select, ST_Select2, ST_SelectN, ST_USelect, ST_USelect2, ST_USelectN,
		ST_SemiJoin, ST_Limit, ST_Limit2,
		ST_Join, ST_Join2, ST_JoinN, ST_OuterJoin, ST_Diff, ST_Union,
		ST_Append, ST_GroupExt, ST_Group, ST_Unique, ST_Unop, ST_Binop,
		ST_Aggr, ST_Order, ST_Alias, ST_Convert:
		return HeadColumn(st.Op1)
	case ST_Nop:
		if len(st.Op1.List()) == 0 {
			return nil
		}
		return HeadColumn(st.Op1)
	case ST_RelSelect, ST_RelEqJoin, ST_RelJoin:
		if st.Op2 != nil {
			return HeadColumn(st.Op2)
		}
		if st.Op1 != nil {
			return HeadColumn(st.Op1)
		}
		return nil
	case ST_TableClear, ST_Bat:
		return st
	case ST_Reverse:
		return TailColumn(st.Op1)
	case ST_Reorder, ST_Derive:
		return TailColumn(st.Op2)
	case ST_List:
		if len(st.List()) == 0 {
			return nil
		}
		return HeadColumn(st.List()[0])
	default:
		return nil
	}
}

// BaseColumn is the catalog column behind st. Selections over the same base
// column can be merged or reordered.
func BaseColumn(st *Stmt) *catalog.Column {
	for st != nil {
		switch st.Typ {
		case ST_Reverse:
			st = HeadColumn(st.Op1)
		case ST_Bat:
			return st.Column()
		default:
			next := TailColumn(st)
			if next == st {
				return nil
			}
			st = next
		}
	}
	return nil
}

// HasNull reports whether the tail of st may hold nulls.
func HasNull(st *Stmt) bool {
	switch st.Typ {
	case ST_Aggr, ST_Nop, ST_Select, ST_Select2, ST_SelectN,
		ST_USelect, ST_USelect2, ST_USelectN, ST_Atom:
		return false
	case ST_Unop, ST_Reverse, ST_Mark:
		return HasNull(st.Op1)
	case ST_Binop:
		return HasNull(st.Op1) || HasNull(st.Op2)
	case ST_Join:
		return HasNull(st.Op2)
	case ST_Bat:
		return st.Column().Null
	default:
		return true
	}
}

func funcName(n1, n2 string) string {
	if n2 == "" {
		return n1
	}
	if len(n2) > 16 {
		return n2
	}
	return n1 + "_" + n2
}

// ColumnName derives a display name for the tail of st.
func ColumnName(st *Stmt) string {
	switch st.Typ {
	case ST_Reverse, ST_Order, ST_Reorder:
		return ColumnName(st.Op1)
	case ST_Const, ST_Join, ST_Join2, ST_JoinN, ST_OuterJoin, ST_Derive, ST_RsColumn:
		return ColumnName(st.Op2)
	case ST_Mirror, ST_Group, ST_GroupExt, ST_Union, ST_Append, ST_Mark,
		ST_GenGroup, ST_Select, ST_Select2, ST_SelectN,
		ST_USelect, ST_USelect2, ST_USelectN, ST_Limit, ST_Limit2,
		ST_SemiJoin, ST_Diff, ST_Unique, ST_Convert,
		ST_RelSelect, ST_RelEqJoin, ST_RelJoin:
		if st.Op1 == nil {
			return ColumnName(st.Op2)
		}
		return ColumnName(st.Op1)
	case ST_Unop, ST_Binop, ST_Nop:
		return funcName(st.Func().Fun.Name, ColumnName(st.Op1))
	case ST_Aggr:
		return funcName(st.AggrFunc().Aggr.Name, ColumnName(st.Op1))
	case ST_Alias:
		return ColumnName(st.Op3)
	case ST_Bat:
		return st.Column().Name
	case ST_Atom:
		if v := st.Atom(); v.Typ.Id == common.LTID_VARCHAR && !v.IsNull {
			return v.Str
		}
		return "single_value"
	case ST_Var, ST_Temp, ST_Single:
		return "single_value"
	case ST_List:
		if len(st.List()) > 0 {
			return ColumnName(st.List()[0])
		}
		return ""
	default:
		return ""
	}
}

// TableName derives the table name of the tail of st.
func TableName(st *Stmt) string {
	if st == nil {
		return ""
	}
	switch st.Typ {
	case ST_Reverse:
		return TableName(st.Op1)
	case ST_Const, ST_Join, ST_Join2, ST_JoinN, ST_OuterJoin, ST_Derive:
		return TableName(st.Op2)
	case ST_Mirror, ST_Group, ST_GroupExt, ST_Union, ST_Append, ST_Mark,
		ST_GenGroup, ST_Select, ST_Select2, ST_SelectN,
		ST_USelect, ST_USelect2, ST_USelectN, ST_Limit, ST_Limit2,
		ST_SemiJoin, ST_Diff, ST_Aggr, ST_Unique:
		return TableName(st.Op1)
	case ST_BaseTable, ST_TableClear:
		return st.Table().Name
	case ST_Bat:
		if st.H != nil {
			return TableName(st.H)
		}
		return st.Column().Table.Name
	case ST_Alias:
		if st.Op2 != nil {
			return TableName(st.Op2)
		}
		//there are no table aliases, look into the base column
		return TableName(st.Op1)
	case ST_Atom:
		if v := st.Atom(); v.Typ.Id == common.LTID_VARCHAR && !v.IsNull {
			return v.Str
		}
		return ""
	default:
		return ""
	}
}

// SchemaName derives the schema of the tail of st.
func SchemaName(st *Stmt) string {
	switch st.Typ {
	case ST_Reverse:
		return SchemaName(st.Op1)
	case ST_Const, ST_Join, ST_Join2, ST_JoinN, ST_OuterJoin, ST_Derive:
		return SchemaName(st.Op2)
	case ST_Mirror, ST_Group, ST_GroupExt, ST_Union, ST_Append, ST_Mark,
		ST_GenGroup, ST_Select, ST_Select2, ST_SelectN,
		ST_USelect, ST_USelect2, ST_USelectN, ST_Limit, ST_Limit2,
		ST_SemiJoin, ST_Diff, ST_Unique, ST_Convert, ST_Unop, ST_Binop,
		ST_Nop, ST_Aggr, ST_Alias, ST_RelSelect, ST_RelEqJoin, ST_RelJoin:
		if st.Op1 == nil {
			return SchemaName(st.Op2)
		}
		return SchemaName(st.Op1)
	case ST_Bat:
		return st.Column().Table.Schema.Name
	case ST_List:
		if len(st.List()) > 0 {
			return SchemaName(st.List()[0])
		}
		return ""
	default:
		return ""
	}
}
