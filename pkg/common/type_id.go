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

import "fmt"

type LTypeId int

const (
	LTID_INVALID LTypeId = 0
	LTID_NULL    LTypeId = 1
	LTID_ANY     LTypeId = 3
	LTID_BOOLEAN LTypeId = 10
	LTID_TINYINT LTypeId = 11
	LTID_INTEGER LTypeId = 13
	LTID_BIGINT  LTypeId = 14
	LTID_DECIMAL LTypeId = 21
	LTID_DOUBLE  LTypeId = 23
	LTID_VARCHAR LTypeId = 25
	LTID_OID     LTypeId = 40 //row position
	LTID_HASH    LTypeId = 41 //machine word holding a hash
	LTID_TABLE   LTypeId = 103
)

var lTypeIdToStr = map[LTypeId]string{
	LTID_INVALID: "LTID_INVALID",
	LTID_NULL:    "LTID_NULL",
	LTID_ANY:     "LTID_ANY",
	LTID_BOOLEAN: "LTID_BOOLEAN",
	LTID_TINYINT: "LTID_TINYINT",
	LTID_INTEGER: "LTID_INTEGER",
	LTID_BIGINT:  "LTID_BIGINT",
	LTID_DECIMAL: "LTID_DECIMAL",
	LTID_DOUBLE:  "LTID_DOUBLE",
	LTID_VARCHAR: "LTID_VARCHAR",
	LTID_OID:     "LTID_OID",
	LTID_HASH:    "LTID_HASH",
	LTID_TABLE:   "LTID_TABLE",
}

func (id LTypeId) String() string {
	if s, has := lTypeIdToStr[id]; has {
		return s
	}
	panic(fmt.Sprintf("usp %d", id))
}
