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

// Cond opens a block executed when cond holds. loop marks a while block,
// outer the enclosing condition.
func (a *Arena) Cond(cond, outer *Stmt, loop bool) (*Stmt, error) {
	if err := need("cond", cond); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Cond)
	if err != nil {
		return nil, err
	}
	s.Op1 = cond
	s.Op2 = outer
	if loop {
		s.Flag = 1
	}
	return s, nil
}

func (a *Arena) ControlEnd(cond *Stmt) (*Stmt, error) {
	if err := need("control_end", cond); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_ControlEnd)
	if err != nil {
		return nil, err
	}
	s.Op1 = cond
	return s, nil
}

// While is an always true block holding the loop, so the condition is
// evaluated inside it.
func (a *Arena) While(cond, body *Stmt) (*Stmt, error) {
	if err := need("while", cond, body); err != nil {
		return nil, err
	}
	yes, err := a.AtomBool(true)
	if err != nil {
		return nil, err
	}
	cstmt, err := a.Cond(yes, nil, false)
	if err != nil {
		return nil, err
	}
	wstmt, err := a.Cond(cond, cstmt, true)
	if err != nil {
		return nil, err
	}
	wend, err := a.ControlEnd(wstmt)
	if err != nil {
		return nil, err
	}
	cend, err := a.ControlEnd(cstmt)
	if err != nil {
		return nil, err
	}
	return a.List([]*Stmt{cstmt, cond, wstmt, body, wend, cend})
}

// If runs ifStmts when cond holds, elseStmts otherwise. not negates cond
// and is only needed with an else branch.
func (a *Arena) If(cond, ifStmts, elseStmts *Stmt, not FuncVal) (*Stmt, error) {
	if err := need("if", cond, ifStmts); err != nil {
		return nil, err
	}
	cstmt, err := a.Cond(cond, nil, false)
	if err != nil {
		return nil, err
	}
	cend, err := a.ControlEnd(cstmt)
	if err != nil {
		return nil, err
	}
	l := []*Stmt{cstmt, ifStmts, cend}
	if elseStmts != nil {
		ncond, err := a.Unop(cond, not)
		if err != nil {
			return nil, err
		}
		estmt, err := a.Cond(ncond, nil, false)
		if err != nil {
			return nil, err
		}
		eend, err := a.ControlEnd(estmt)
		if err != nil {
			return nil, err
		}
		l = append(l, estmt, elseStmts, eend)
	}
	return a.List(l)
}

func (a *Arena) Return(val *Stmt, nrDeclaredTables int) (*Stmt, error) {
	if err := need("return", val); err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Return)
	if err != nil {
		return nil, err
	}
	s.Op1 = val
	s.Flag = nrDeclaredTables
	return s, nil
}

func (a *Arena) Assign(name string, val *Stmt, level int) (*Stmt, error) {
	if err := need("assign", val); err != nil {
		return nil, err
	}
	nameS, err := a.AtomString(name)
	if err != nil {
		return nil, err
	}
	s, err := a.alloc(ST_Assign)
	if err != nil {
		return nil, err
	}
	s.Op1 = nameS
	s.Op2 = val
	s.Flag = level << 1
	return s, nil
}
