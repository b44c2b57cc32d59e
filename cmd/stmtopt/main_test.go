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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planPath = "../../pkg/planfile/testdata/plan.yaml"

func execute(t *testing.T, args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExplain(t *testing.T) {
	out, err := execute(t, "explain", "-f", planPath, "-s", "filter", "--print-linear")
	require.NoError(t, err)
	assert.Contains(t, out, "== filter ==")
	assert.Contains(t, out, "-- optimized")
	assert.Contains(t, out, "-- linear")
	assert.Contains(t, out, "relselect")
	assert.Contains(t, out, "rule relselect x1")
	assert.NotContains(t, out, "== eqjoin ==")
	assert.Contains(t, out, "rule shrink_ranges")

	out, err = execute(t, "explain", "-f", planPath, "-s", "filter", "--no-shrink")
	require.NoError(t, err)
	assert.NotContains(t, out, "shrink_ranges")

	path := filepath.Join(t.TempDir(), "stmtopt.toml")
	require.NoError(t, os.WriteFile(path, []byte("[optimizer]\nnoShrink = true\n"), 0o644))
	out, err = execute(t, "explain", "-f", planPath, "-s", "filter", "--config", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "shrink_ranges")
}

func TestRun(t *testing.T) {
	out, err := execute(t, "run", "-f", planPath)
	require.NoError(t, err)
	assert.Equal(t, "filter: ok\neqjoin: ok\ndelta: ok\n", out)

	out, err = execute(t, "run", "-f", planPath, "--no-hash", "--level", "1", "-s", "eqjoin")
	require.NoError(t, err)
	assert.Equal(t, "eqjoin: ok\n", out)
}

func TestDeps(t *testing.T) {
	out, err := execute(t, "deps", "-f", planPath, "--kind", "column", "-s", "filter")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "filter: "))
	for _, name := range []string{"sys.t", "sys.t.x", "sys.t.y", "sys.t.k"} {
		assert.Contains(t, out, "("+name+")")
	}

	_, err = execute(t, "deps", "-f", planPath, "--kind", "index")
	assert.Error(t, err)
}

func TestErrors(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)

	_, err = execute(t, "run", "-f", planPath, "-s", "nope")
	assert.Error(t, err)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stmtopt.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[optimizer]
level = 1
noHash = true

[arena]
maxNodes = 3

[log]
level = "warn"
`), 0o644))

	//the arena limit from the file applies
	_, err := execute(t, "run", "-f", planPath, "--config", path)
	require.Error(t, err)

	//flags override the file
	out, err := execute(t, "run", "-f", planPath, "--config", path, "--max-nodes", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "eqjoin: ok")
}
