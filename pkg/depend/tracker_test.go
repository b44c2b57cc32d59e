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
package depend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviszhen/binopt/pkg/catalog"
	"github.com/daviszhen/binopt/pkg/stmt"
)

func TestTracker(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Add("q1", stmt.DEP_Column, 3, 1, 2))
	require.NoError(t, tr.Add("q1", stmt.DEP_Func, 10))
	require.NoError(t, tr.Add("q2", stmt.DEP_Column, 2, 5))
	require.NoError(t, tr.Add("q3", stmt.DEP_Func, 10))
	//statements without dependencies are still tracked
	require.NoError(t, tr.Add("q4", stmt.DEP_Trigger))

	assert.Equal(t, 4, tr.Len())
	assert.True(t, tr.Has("q4"))
	assert.Equal(t, []string{"q1", "q2"}, tr.Dependents(2))
	assert.Equal(t, []string{"q1", "q3"}, tr.Dependents(10))
	assert.Empty(t, tr.Dependents(99))

	assert.Equal(t, []catalog.ObjectId{1, 2, 3}, tr.DependsOn("q1", stmt.DEP_Column))
	assert.Equal(t, []catalog.ObjectId{10}, tr.DependsOn("q1", stmt.DEP_Func))
	assert.Empty(t, tr.DependsOn("q1", stmt.DEP_Trigger))

	tr.Remove("q1")
	assert.False(t, tr.Has("q1"))
	assert.Equal(t, []string{"q2"}, tr.Dependents(2))
	assert.Equal(t, []string{"q3"}, tr.Dependents(10))
	assert.Empty(t, tr.Dependents(1))
	assert.Empty(t, tr.DependsOn("q1", stmt.DEP_Column))

	//unknown names are ignored
	tr.Remove("q1")
	assert.Equal(t, 3, tr.Len())
}

func TestTrackerSameObjectTwoTypes(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Add("q", stmt.DEP_Column, 7))
	require.NoError(t, tr.Add("q", stmt.DEP_Trigger, 7))
	assert.Equal(t, []string{"q"}, tr.Dependents(7))

	tr.Remove("q")
	assert.Empty(t, tr.Dependents(7))
	assert.Equal(t, 0, tr.Len())
}

func TestTrackerEmptyName(t *testing.T) {
	tr := NewTracker()
	err := tr.Add("", stmt.DEP_Column, 1)
	require.Error(t, err)
	assert.True(t, ErrEmptyName.Is(err))
}
