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

package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/eval"
	"github.com/daviszhen/binopt/pkg/planfile"
	"github.com/daviszhen/binopt/pkg/prepare"
	"github.com/daviszhen/binopt/pkg/stmt"
)

var ErrMismatch = fmt.Errorf("optimized plans differ from the originals")

type session struct {
	file *planfile.File
	cat  *catalog.Catalog
	data *eval.Dataset
}

// open loads the plan file and sets up its tables.
func (opts *options) open() (*session, error) {
	if opts.plan == "" {
		return nil, fmt.Errorf("missing plan file. use -f")
	}
	f, err := planfile.Load(opts.plan)
	if err != nil {
		return nil, err
	}
	sess := &session{
		file: f,
		cat:  catalog.NewCatalog(),
		data: eval.NewDataset(),
	}
	if err = f.Setup(sess.cat, sess.data); err != nil {
		return nil, err
	}
	return sess, nil
}

func (opts *options) compile(ctx context.Context, sess *session) ([]*prepare.Prepared, error) {
	names := opts.stmts
	if len(names) == 0 {
		names = sess.file.Names()
	}
	reqs := make([]prepare.Request, 0, len(names))
	for _, name := range names {
		name := name
		if _, has := sess.file.Statement(name); !has {
			return nil, planfile.ErrUnknownNode.New(name, "statement")
		}
		reqs = append(reqs, prepare.Request{
			Name: name,
			Build: func(a *stmt.Arena) (*stmt.Stmt, error) {
				return sess.file.Build(a, sess.cat, name)
			},
		})
	}
	return prepare.NewCompiler(sess.cat, opts.cfg).CompileAll(ctx, reqs)
}

func printLinear(w io.Writer, root *stmt.Stmt) error {
	return stmt.PrintStmts(w, stmt.Array(root))
}

func newExplainCmd(opts *options) *cobra.Command {
	info := "print the plans before and after optimization"
	return &cobra.Command{
		Use:   "explain",
		Short: info,
		Long:  info,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.open()
			if err != nil {
				return err
			}
			ps, err := opts.compile(cmd.Context(), sess)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, p := range ps {
				fmt.Fprintf(w, "== %s ==\n", p.Name)
				fmt.Fprintln(w, "-- original")
				fmt.Fprint(w, stmt.Explain(p.Original))
				fmt.Fprintln(w, "-- optimized")
				fmt.Fprint(w, stmt.Explain(p.Root))
				if opts.cfg.Debug.PrintLinear {
					fmt.Fprintln(w, "-- linear")
					if err = printLinear(w, p.Root); err != nil {
						return err
					}
				}
				for _, rule := range sortedRules(p.Applied) {
					fmt.Fprintf(w, "rule %s x%d\n", rule, p.Applied[rule])
				}
			}
			return nil
		},
	}
}

func sortedRules(applied map[string]int) []string {
	rules := make([]string, 0, len(applied))
	for rule := range applied {
		rules = append(rules, rule)
	}
	sort.Strings(rules)
	return rules
}

// sameResult compares the values of an original plan and its optimized
// form. A relselect is compared by its qualifying heads.
func sameResult(orig *stmt.Stmt, a, b *eval.Result) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind != eval.RK_Bat {
		return a.String() == b.String()
	}
	if orig.Typ == stmt.ST_RelSelect {
		return slices.Equal(a.Bat.Heads(), b.Bat.Heads())
	}
	return slices.Equal(a.Bat.Pairs(), b.Bat.Pairs())
}

func newRunCmd(opts *options) *cobra.Command {
	info := "evaluate the plans before and after optimization and compare"
	return &cobra.Command{
		Use:   "run",
		Short: info,
		Long:  info,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.open()
			if err != nil {
				return err
			}
			ps, err := opts.compile(cmd.Context(), sess)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			in := eval.NewInterpreter(sess.data)
			failed := 0
			for _, p := range ps {
				want, err := in.Eval(cmd.Context(), p.Original)
				if err != nil {
					return fmt.Errorf("%s original: %w", p.Name, err)
				}
				got, err := in.Eval(cmd.Context(), p.Root)
				if err != nil {
					return fmt.Errorf("%s optimized: %w", p.Name, err)
				}
				if opts.cfg.Debug.PrintPlan {
					fmt.Fprint(w, stmt.Explain(p.Root))
				}
				if opts.cfg.Debug.PrintResult {
					fmt.Fprint(w, got.String())
					if !strings.HasSuffix(got.String(), "\n") {
						fmt.Fprintln(w)
					}
				}
				if sameResult(p.Original, want, got) {
					fmt.Fprintf(w, "%s: ok\n", p.Name)
				} else {
					failed++
					fmt.Fprintf(w, "%s: mismatch\n", p.Name)
				}
			}
			if failed > 0 {
				return ErrMismatch
			}
			return nil
		},
	}
}

func newDepsCmd(opts *options) *cobra.Command {
	var kind string
	info := "list the catalog objects the optimized plans depend on"
	cmd := &cobra.Command{
		Use:   "deps",
		Short: info,
		Long:  info,
		RunE: func(cmd *cobra.Command, args []string) error {
			depTyp, ok := stmt.ParseDepType(kind)
			if !ok {
				return fmt.Errorf("unknown dependency kind %s. use column, trigger or function", kind)
			}
			sess, err := opts.open()
			if err != nil {
				return err
			}
			ps, err := opts.compile(cmd.Context(), sess)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, p := range ps {
				names := make([]string, 0, len(p.Deps[depTyp]))
				for _, id := range p.Deps[depTyp] {
					names = append(names, fmt.Sprintf("%d(%s)", id, sess.cat.ObjectName(id)))
				}
				fmt.Fprintf(w, "%s: %s\n", p.Name, strings.Join(names, " "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", stmt.DEP_Column.String(), "column, trigger or function")
	return cmd
}
