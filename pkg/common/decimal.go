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
	"strconv"

	decimal2 "github.com/govalues/decimal"
)

type Decimal struct {
	decimal2.Decimal
}

func ParseDecimal(s string) (Decimal, error) {
	d, err := decimal2.Parse(s)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{Decimal: d}, nil
}

func DecimalFromInt(v int64) Decimal {
	d, err := decimal2.New(v, 0)
	if err != nil {
		panic(err)
	}
	return Decimal{Decimal: d}
}

func (dec Decimal) Equal(o Decimal) bool {
	return dec.Decimal.Cmp(o.Decimal) == 0
}

func (dec Decimal) String() string {
	return dec.Decimal.String()
}

func (dec Decimal) Add(o Decimal) (Decimal, error) {
	res, err := dec.Decimal.Add(o.Decimal)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{Decimal: res}, nil
}

func (dec Decimal) Sub(o Decimal) (Decimal, error) {
	res, err := dec.Decimal.Sub(o.Decimal)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{Decimal: res}, nil
}

func (dec Decimal) Mul(o Decimal) (Decimal, error) {
	res, err := dec.Decimal.Mul(o.Decimal)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{Decimal: res}, nil
}

func (dec Decimal) Less(o Decimal) bool {
	return dec.Decimal.Cmp(o.Decimal) < 0
}

func (dec Decimal) Greater(o Decimal) bool {
	return dec.Decimal.Cmp(o.Decimal) > 0
}

func (dec Decimal) Neg() Decimal {
	return Decimal{Decimal: dec.Decimal.Neg()}
}

// Integral returns the value when it has no fractional digits.
func (dec Decimal) Integral() (int64, bool) {
	trunc := dec.Decimal.Trunc(0)
	if trunc.Cmp(dec.Decimal) != 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(trunc.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (dec Decimal) Float() float64 {
	f, err := strconv.ParseFloat(dec.Decimal.String(), 64)
	if err != nil {
		return 0
	}
	return f
}
