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

func (a *Arena) ext(grp *Stmt) (*Stmt, error) {
	ns, err := a.alloc(ST_GroupExt)
	if err != nil {
		return nil, err
	}
	ns.Op1 = grp
	ns.NrCols = grp.NrCols
	ns.Key = true
	ns.H = grp.H
	ns.T = grp.T
	return ns, nil
}

// Group assigns a group id to every row of s by its tail value.
func (a *Arena) Group(s *Stmt) (*Stmt, error) {
	if err := need("group", s); err != nil {
		return nil, err
	}
	ns, err := a.alloc(ST_Group)
	if err != nil {
		return nil, err
	}
	ns.Op1 = s
	ns.NrCols = s.NrCols
	ns.H = s.H
	ns.T = s.T
	return ns, nil
}

// Derive refines the grouping s by the tail of t.
func (a *Arena) Derive(s, t *Stmt) (*Stmt, error) {
	if err := need("derive", s, t); err != nil {
		return nil, err
	}
	ns, err := a.alloc(ST_Derive)
	if err != nil {
		return nil, err
	}
	ns.Op1 = s
	ns.Op2 = t
	ns.NrCols = s.NrCols
	ns.H = s.H
	ns.T = s.T
	return ns, nil
}

// GroupCreate groups s, refining og when given.
func (a *Arena) GroupCreate(s *Stmt, og *Group) (*Group, error) {
	var grp *Stmt
	var err error
	if og != nil {
		grp, err = a.Derive(og.Grp, s)
	} else {
		grp, err = a.Group(s)
	}
	if err != nil {
		return nil, err
	}
	ext, err := a.ext(grp)
	if err != nil {
		return nil, err
	}
	return &Group{Grp: grp, Ext: ext}, nil
}

// GroupDone marks g as complete. It must be called before g is shared.
func GroupDone(g *Group) {
	if g != nil && g.Grp != nil {
		g.Grp.Flag = GRP_Done
	}
}
