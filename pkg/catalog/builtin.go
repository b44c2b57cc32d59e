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
package catalog

import (
	"github.com/daviszhen/binopt/pkg/common"
)

// Names of builtins the statement layer emits on its own.
const (
	FuncEqual         = "="
	FuncNotEqual      = "<>"
	FuncHash          = "hash"
	FuncRotateXorHash = "rotate_xor_hash"
	FuncNextValueFor  = "next_value_for"
	FuncNot           = "not"
	FuncAnd           = "and"
	FuncOr            = "or"
	FuncIdentity      = "identity"
)

func registerBuiltins(cat *Catalog) {
	anyTyp := common.AnyType()
	boolean := common.BooleanType()
	funcs := []Func{
		{Name: FuncEqual, Params: []common.LType{anyTyp, anyTyp}, Res: boolean},
		{Name: FuncNotEqual, Params: []common.LType{anyTyp, anyTyp}, Res: boolean},
		{Name: "<", Params: []common.LType{anyTyp, anyTyp}, Res: boolean},
		{Name: "<=", Params: []common.LType{anyTyp, anyTyp}, Res: boolean},
		{Name: ">", Params: []common.LType{anyTyp, anyTyp}, Res: boolean},
		{Name: ">=", Params: []common.LType{anyTyp, anyTyp}, Res: boolean},
		{Name: "+", Params: []common.LType{anyTyp, anyTyp}, Res: anyTyp},
		{Name: "-", Params: []common.LType{anyTyp, anyTyp}, Res: anyTyp},
		{Name: "*", Params: []common.LType{anyTyp, anyTyp}, Res: anyTyp},
		{Name: FuncNot, Params: []common.LType{boolean}, Res: boolean},
		{Name: FuncAnd, Params: []common.LType{boolean, boolean}, Res: boolean},
		{Name: FuncOr, Params: []common.LType{boolean, boolean}, Res: boolean},
		{Name: FuncIdentity, Params: []common.LType{anyTyp}, Res: common.OidType()},
		{Name: FuncHash, Params: []common.LType{anyTyp}, Res: common.HashType()},
		{
			Name:   FuncRotateXorHash,
			Params: []common.LType{common.HashType(), common.IntegerType(), anyTyp},
			Res:    common.HashType(),
		},
		{Name: "sql_min", Params: []common.LType{anyTyp, anyTyp}, Res: anyTyp},
		{Name: "sql_max", Params: []common.LType{anyTyp, anyTyp}, Res: anyTyp},
		{Name: "ifthenelse", Params: []common.LType{boolean, anyTyp, anyTyp}, Res: anyTyp},
		{
			Name:       FuncNextValueFor,
			Params:     []common.LType{common.VarcharType(), common.VarcharType()},
			Res:        common.BigintType(),
			SideEffect: true,
		},
		{Name: "count", Kind: FuncAggr, Params: []common.LType{anyTyp}, Res: common.BigintType()},
		{Name: "sum", Kind: FuncAggr, Params: []common.LType{anyTyp}, Res: anyTyp},
		{Name: "min", Kind: FuncAggr, Params: []common.LType{anyTyp}, Res: anyTyp},
		{Name: "max", Kind: FuncAggr, Params: []common.LType{anyTyp}, Res: anyTyp},
	}
	for _, fun := range funcs {
		if _, err := cat.CreateFunc(fun); err != nil {
			panic(err)
		}
	}
}
