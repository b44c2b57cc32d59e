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
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/daviszhen/binopt/pkg/util"
)

var defCfgFilePaths = []string{".", "etc"}
var cfgFileName = "stmtopt.toml"

type options struct {
	v       *viper.Viper
	cfgPath string
	plan    string
	stmts   []string
	cfg     *util.Config
}

// loadConfig starts from the defaults, then applies either the explicit
// --config file or the first stmtopt.toml found, then the flags given on
// the command line.
func (opts *options) loadConfig() error {
	cfg := util.DefaultConfig()
	v := opts.v
	if opts.cfgPath != "" {
		if _, err := toml.DecodeFile(opts.cfgPath, cfg); err != nil {
			return fmt.Errorf("load config %s: %w", opts.cfgPath, err)
		}
	} else {
		for _, dirPath := range defCfgFilePaths {
			fpath := filepath.Join(dirPath, cfgFileName)
			if !util.FileIsValid(fpath) {
				continue
			}
			v.SetConfigFile(fpath)
			if err := v.ReadInConfig(); err != nil {
				util.Error("viper load config file failed",
					zap.String("fpath", fpath),
					zap.Error(err))
				continue
			}
			break
		}
	}
	if v.IsSet("optimizer.level") {
		cfg.Optimizer.Level = v.GetInt("optimizer.level")
	}
	if v.IsSet("optimizer.noHash") {
		cfg.Optimizer.NoHash = v.GetBool("optimizer.noHash")
	}
	if v.IsSet("optimizer.hashBits") {
		cfg.Optimizer.HashBits = v.GetInt("optimizer.hashBits")
	}
	if v.IsSet("optimizer.expandDeltas") {
		cfg.Optimizer.ExpandDeltas = v.GetBool("optimizer.expandDeltas")
	}
	if v.IsSet("optimizer.noShrink") {
		cfg.Optimizer.NoShrink = v.GetBool("optimizer.noShrink")
	}
	if v.IsSet("arena.maxNodes") {
		cfg.Arena.MaxNodes = v.GetInt("arena.maxNodes")
	}
	if v.IsSet("debug.printPlan") {
		cfg.Debug.PrintPlan = v.GetBool("debug.printPlan")
	}
	if v.IsSet("debug.printLinear") {
		cfg.Debug.PrintLinear = v.GetBool("debug.printLinear")
	}
	if v.IsSet("debug.printResult") {
		cfg.Debug.PrintResult = v.GetBool("debug.printResult")
	}
	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if err := util.InitLogger(cfg.Log.Level); err != nil {
		return err
	}
	opts.cfg = cfg
	return nil
}

func newRootCmd() *cobra.Command {
	opts := &options{v: viper.New()}
	info := "statement level plan optimizer"
	root := &cobra.Command{
		Use:          "stmtopt",
		Short:        info,
		Long:         info,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.loadConfig()
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("use stmtopt --help or -h")
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.cfgPath, "config", "", "toml config file")
	flags.StringVarP(&opts.plan, "file", "f", "", "plan description file")
	flags.StringSliceVarP(&opts.stmts, "stmt", "s", nil, "statements to process. all when empty")
	flags.Int("level", util.DefaultOptimizeLevel, "optimization level. 1 lowers only, 2 rewrites")
	flags.Bool("no-hash", false, "compile multi column equi joins without a hash key")
	flags.Int("hash-bits", 0, "rotate width of the multi column join key. 0 derives it")
	flags.Bool("expand-deltas", false, "expand read-only bats into their delta parts")
	flags.Bool("no-shrink", false, "keep the range selections of a relselect unmerged")
	flags.Int("max-nodes", 0, "node limit of one statement arena. 0 is unbounded")
	flags.Bool("print-plan", false, "print the plan trees")
	flags.Bool("print-linear", false, "print the linear statement listing")
	flags.Bool("print-result", false, "print evaluated results")
	flags.String("log-level", "info", "log level")

	bind := map[string]string{
		"optimizer.level":        "level",
		"optimizer.noHash":       "no-hash",
		"optimizer.hashBits":     "hash-bits",
		"optimizer.expandDeltas": "expand-deltas",
		"optimizer.noShrink":     "no-shrink",
		"arena.maxNodes":         "max-nodes",
		"debug.printPlan":        "print-plan",
		"debug.printLinear":      "print-linear",
		"debug.printResult":      "print-result",
		"log.level":              "log-level",
	}
	for key, flag := range bind {
		if err := opts.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(
		newExplainCmd(opts),
		newRunCmd(opts),
		newDepsCmd(opts),
	)
	return root
}

func main() {
	defer util.Sync()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
