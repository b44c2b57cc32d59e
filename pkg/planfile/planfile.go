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
package planfile

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/src-d/go-errors.v1"
	"gopkg.in/yaml.v3"

	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/common"
	"github.com/daviszhen/binopt/pkg/eval"
)

var (
	ErrUnknownNode = errors.NewKind("plan %s: unknown node %s")
	ErrBadNode     = errors.NewKind("plan %s: node %s: %s")
)

// File describes tables, their stored rows and named statements built from
// them.
type File struct {
	// Schema holds the tables. Empty means the system schema.
	Schema     string      `yaml:"schema,omitempty"`
	Tables     []TableSpec `yaml:"tables"`
	Statements []StmtSpec  `yaml:"statements"`
}

type TableSpec struct {
	Name     string       `yaml:"name"`
	Readonly bool         `yaml:"readonly,omitempty"`
	Columns  []ColumnSpec `yaml:"columns"`
	Indexes  []IndexSpec  `yaml:"indexes,omitempty"`
	// Deletes are the oids of deleted rows.
	Deletes []int64 `yaml:"deletes,omitempty"`
}

type ColumnSpec struct {
	Name    string           `yaml:"name"`
	Type    string           `yaml:"type"`
	Null    bool             `yaml:"null,omitempty"`
	Unique  bool             `yaml:"unique,omitempty"`
	Data    []string         `yaml:"data,omitempty"`
	Inserts []string         `yaml:"inserts,omitempty"`
	Updates map[int64]string `yaml:"updates,omitempty"`
}

type IndexSpec struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type,omitempty"`
	Columns []string `yaml:"columns"`
	Data    []string `yaml:"data,omitempty"`
}

// StmtSpec is one statement. Nodes may only reference nodes listed before
// them. Root defaults to the last node.
type StmtSpec struct {
	Name  string     `yaml:"name"`
	Root  string     `yaml:"root,omitempty"`
	Nodes []NodeSpec `yaml:"nodes"`
}

type NodeSpec struct {
	Id   string   `yaml:"id"`
	Kind string   `yaml:"kind"`
	Ops  []string `yaml:"ops,omitempty"`

	Table  string `yaml:"table,omitempty"`
	Column string `yaml:"column,omitempty"`
	Index  string `yaml:"index,omitempty"`
	Access string `yaml:"access,omitempty"`
	// Delta reads the column through its delta parts.
	Delta bool `yaml:"delta,omitempty"`

	Type  string   `yaml:"type,omitempty"`
	Value string   `yaml:"value,omitempty"`
	Cmp   string   `yaml:"cmp,omitempty"`
	Range []string `yaml:"range,omitempty"`
	Func  string   `yaml:"func,omitempty"`
	Dir   string   `yaml:"dir,omitempty"`
	Base  int64    `yaml:"base,omitempty"`
	Name  string   `yaml:"name,omitempty"`
	Group string   `yaml:"group,omitempty"`
}

// Load reads and parses the plan file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a plan description. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse plan file: %w", err)
	}
	seen := make(map[string]bool)
	for _, st := range f.Statements {
		if st.Name == "" {
			return nil, ErrBadNode.New("?", "", "statement without a name")
		}
		if seen[st.Name] {
			return nil, ErrBadNode.New(st.Name, "", "duplicate statement")
		}
		seen[st.Name] = true
		if len(st.Nodes) == 0 {
			return nil, ErrBadNode.New(st.Name, "", "no nodes")
		}
	}
	return &f, nil
}

func (f *File) schema() string {
	if f.Schema == "" {
		return catalog.SysSchema
	}
	return f.Schema
}

func (f *File) Statement(name string) (*StmtSpec, bool) {
	for i := range f.Statements {
		if f.Statements[i].Name == name {
			return &f.Statements[i], true
		}
	}
	return nil, false
}

func (f *File) Names() []string {
	names := make([]string, 0, len(f.Statements))
	for _, st := range f.Statements {
		names = append(names, st.Name)
	}
	return names
}

func parseValues(typ common.LType, strs []string) ([]common.Value, error) {
	vals := make([]common.Value, 0, len(strs))
	for _, str := range strs {
		val, err := common.ParseValue(typ, str)
		if err != nil {
			return nil, err
		}
		vals = append(vals, val)
	}
	return vals, nil
}

func parseIndexType(s string) (catalog.IndexType, error) {
	switch s {
	case "", "hash":
		return catalog.IndexHash, nil
	case "join":
		return catalog.IndexJoin, nil
	case "ordered":
		return catalog.IndexOrdered, nil
	}
	return catalog.IndexHash, fmt.Errorf("unknown index type %s", s)
}

// Setup registers the tables in cat and stores their rows in ds. ds may be
// nil when only the catalog is needed.
func (f *File) Setup(cat *catalog.Catalog, ds *eval.Dataset) error {
	if f.Schema != "" {
		if _, err := cat.Schema(f.Schema); err != nil {
			if _, err = cat.CreateSchema(f.Schema); err != nil {
				return err
			}
		}
	}
	for _, ts := range f.Tables {
		def := catalog.TableDef{
			Name:     ts.Name,
			Readonly: ts.Readonly,
		}
		for _, cs := range ts.Columns {
			typ, err := common.ParseLType(cs.Type)
			if err != nil {
				return fmt.Errorf("table %s column %s: %w", ts.Name, cs.Name, err)
			}
			def.Columns = append(def.Columns, catalog.ColumnDef{
				Name:   cs.Name,
				Typ:    typ,
				Null:   cs.Null,
				Unique: cs.Unique,
			})
		}
		tab, err := cat.CreateTable(f.schema(), def)
		if err != nil {
			return err
		}
		for _, is := range ts.Indexes {
			ityp, err := parseIndexType(is.Type)
			if err != nil {
				return fmt.Errorf("table %s index %s: %w", ts.Name, is.Name, err)
			}
			idx, err := cat.CreateIndex(tab, is.Name, ityp, is.Columns...)
			if err != nil {
				return err
			}
			if ds != nil {
				vals, err := parseValues(common.HashType(), is.Data)
				if err != nil {
					return fmt.Errorf("table %s index %s: %w", ts.Name, is.Name, err)
				}
				ds.SetIndex(idx, vals...)
			}
		}
		if ds == nil {
			continue
		}
		for i, cs := range ts.Columns {
			col := tab.Columns[i]
			base, err := parseValues(col.Typ, cs.Data)
			if err != nil {
				return fmt.Errorf("table %s column %s: %w", ts.Name, cs.Name, err)
			}
			ds.SetColumn(col, base...)
			ins, err := parseValues(col.Typ, cs.Inserts)
			if err != nil {
				return fmt.Errorf("table %s column %s: %w", ts.Name, cs.Name, err)
			}
			if len(ins) > 0 {
				ds.Insert(col, ins...)
			}
			oids := make([]int64, 0, len(cs.Updates))
			for oid := range cs.Updates {
				oids = append(oids, oid)
			}
			sort.Slice(oids, func(i, j int) bool {
				return oids[i] < oids[j]
			})
			for _, oid := range oids {
				val, err := common.ParseValue(col.Typ, cs.Updates[oid])
				if err != nil {
					return fmt.Errorf("table %s column %s: %w", ts.Name, cs.Name, err)
				}
				ds.Update(col, oid, val)
			}
		}
		if len(ts.Deletes) > 0 {
			ds.Delete(tab, ts.Deletes...)
		}
	}
	return nil
}
