// pkg/registry/registry_test.go
package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin_CoversLoanTaskTypes(t *testing.T) {
	reg := Builtin()
	for _, taskType := range []string{TaskLoanCreate, TaskLoanUpdateStatus, TaskLoanUpdate, TaskLoanFetch, TaskLoanDelete} {
		a, ok := reg.Find(taskType)
		require.True(t, ok, taskType)
		assert.NotEmpty(t, a.InputSchema, taskType)
		assert.Equal(t, "loan", a.Category)
	}

	_, ok := reg.Find("unknown-task")
	assert.False(t, ok)
	assert.Nil(t, reg.InputSchema("unknown-task"))
}

func TestLoad_OverrideReplacesByTaskType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity-registry.json")
	content := `{
		"version": "2.0.0",
		"activities": [
			{"id": "loan.fetch", "taskType": "loan-fetch", "category": "loan", "inputSchema": {"type": "object"}},
			{"id": "loan.export", "taskType": "loan-export", "category": "loan"}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	reg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", reg.Version)
	assert.Len(t, reg.Activities, 6)

	fetch, ok := reg.Find(TaskLoanFetch)
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"type": "object"}, fetch.InputSchema)
}

func TestLoad_EmptyPathIsBuiltin(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)
	assert.Len(t, reg.Activities, 5)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestBuiltin_Validates(t *testing.T) {
	assert.NoError(t, Builtin().Validate())
}

func TestValidate_Rejections(t *testing.T) {
	valid := func() Activity {
		return Activity{ID: "loan.x", DisplayName: "X", TaskType: "loan-x", Category: "loan"}
	}

	tests := []struct {
		name   string
		mutate func(r *ActivityRegistry)
		want   string
	}{
		{"empty", func(r *ActivityRegistry) { r.Activities = nil }, "no activities"},
		{"missing task type", func(r *ActivityRegistry) { r.Activities[0].TaskType = "" }, "missing required field: TaskType"},
		{"duplicate id", func(r *ActivityRegistry) {
			dup := valid()
			dup.TaskType = "loan-y"
			r.Activities = append(r.Activities, dup)
		}, "duplicate activity ID"},
		{"duplicate task type", func(r *ActivityRegistry) {
			dup := valid()
			dup.ID = "loan.y"
			r.Activities = append(r.Activities, dup)
		}, "duplicate task type"},
		{"broken schema", func(r *ActivityRegistry) {
			r.Activities[0].InputSchema = map[string]interface{}{"type": 42}
		}, "invalid input schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &ActivityRegistry{Activities: []Activity{valid()}}
			tt.mutate(reg)
			err := reg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registry.json")
	require.NoError(t, Builtin().Save(path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Len(t, loaded.Activities, len(Builtin().Activities))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
