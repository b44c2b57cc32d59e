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
package util

type OptimizerOptions struct {
	Level        int  `toml:"level"`
	NoHash       bool `toml:"noHash"`
	ExpandDeltas bool `toml:"expandDeltas"`
	// NoShrink keeps the range selections of a relselect unmerged.
	NoShrink bool `toml:"noShrink"`
	// HashBits overrides the rotate width of the multi-column join key. 0 means derived.
	HashBits int `toml:"hashBits"`
}

type ArenaOptions struct {
	MaxNodes int `toml:"maxNodes"`
}

type DebugOptions struct {
	PrintPlan   bool `toml:"printPlan"`
	PrintLinear bool `toml:"printLinear"`
	PrintResult bool `toml:"printResult"`
}

type LogOptions struct {
	Level string `toml:"level"`
}

type Config struct {
	Optimizer OptimizerOptions `toml:"optimizer"`
	Arena     ArenaOptions     `toml:"arena"`
	Debug     DebugOptions     `toml:"debug"`
	Log       LogOptions       `toml:"log"`
}

const DefaultOptimizeLevel = 2

func DefaultConfig() *Config {
	return &Config{
		Optimizer: OptimizerOptions{
			Level: DefaultOptimizeLevel,
		},
		Log: LogOptions{
			Level: "info",
		},
	}
}
