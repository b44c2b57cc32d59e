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
package prepare

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/rewrite"
	"github.com/daviszhen/binopt/pkg/stmt"
	"github.com/daviszhen/binopt/pkg/util"
)

const FaultCompile = "compile"

// BuildFunc constructs the initial DAG of a statement in a.
type BuildFunc func(a *stmt.Arena) (*stmt.Stmt, error)

type Request struct {
	Name  string
	Build BuildFunc
}

var depTypes = []stmt.DepType{stmt.DEP_Column, stmt.DEP_Trigger, stmt.DEP_Func}

// Prepared is a compiled statement. Its arena belongs to the goroutine
// that compiled it; the nodes may be read from anywhere.
type Prepared struct {
	Name     string
	Id       uuid.UUID
	Arena    *stmt.Arena
	Original *stmt.Stmt
	Root     *stmt.Stmt
	Deps     map[stmt.DepType][]catalog.ObjectId
	Applied  map[string]int
}

// DependsOn reports whether p reads catalog object id.
func (p *Prepared) DependsOn(id catalog.ObjectId) bool {
	for _, ids := range p.Deps {
		for _, dep := range ids {
			if dep == id {
				return true
			}
		}
	}
	return false
}

type Compiler struct {
	_cat *catalog.Catalog
	_cfg *util.Config
}

func NewCompiler(cat *catalog.Catalog, cfg *util.Config) *Compiler {
	if cfg == nil {
		cfg = util.DefaultConfig()
	}
	return &Compiler{
		_cat: cat,
		_cfg: cfg,
	}
}

// Compile builds statement name in a fresh arena, optimizes it and
// collects its dependencies.
func (c *Compiler) Compile(ctx context.Context, name string, build BuildFunc) (*Prepared, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := util.Check(util.FaultCompile, FaultCompile).Fire(); err != nil {
		return nil, err
	}
	a := stmt.NewArena(c._cfg.Arena.MaxNodes)
	orig, err := build(a)
	if err != nil {
		return nil, err
	}
	opt := rewrite.NewOptimizer(a, c._cat, rewrite.OptionsFromConfig(c._cfg.Optimizer))
	root, err := opt.Optimize(orig)
	if err != nil {
		return nil, err
	}
	p := &Prepared{
		Name:     name,
		Id:       a.Id(),
		Arena:    a,
		Original: orig,
		Root:     root,
		Deps:     make(map[stmt.DepType][]catalog.ObjectId),
		Applied:  opt.Applied(),
	}
	for _, dt := range depTypes {
		p.Deps[dt] = stmt.ListDependencies(root, dt)
	}
	util.Info("compiled",
		zap.String("name", name),
		zap.String("arena", p.Id.String()),
		zap.Int("nodes", a.Len()),
		zap.Int("columns", len(p.Deps[stmt.DEP_Column])),
		zap.Int("triggers", len(p.Deps[stmt.DEP_Trigger])),
		zap.Int("functions", len(p.Deps[stmt.DEP_Func])),
	)
	return p, nil
}

// CompileAll compiles independent statements concurrently, one arena per
// statement. The results follow the order of reqs. The first failure
// cancels the statements not yet started.
func (c *Compiler) CompileAll(ctx context.Context, reqs []Request) ([]*Prepared, error) {
	ret := make([]*Prepared, len(reqs))
	grp, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		grp.Go(func() error {
			p, err := c.Compile(gctx, req.Name, req.Build)
			if err != nil {
				return err
			}
			ret[i] = p
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return ret, nil
}
