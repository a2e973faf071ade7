package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopWorkflow(ctx context.Context, input []byte) ([]byte, error) { return input, nil }
func noopActivity(ctx context.Context, input []byte) ([]byte, error) { return input, nil }

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterWorkflow("provision", []string{"fetch-archive"}, noopWorkflow))
	require.NoError(t, reg.RegisterActivity("fetch-archive", noopActivity))

	wf, err := reg.ResolveWorkflow("provision")
	require.NoError(t, err)
	assert.Equal(t, "provision", wf.Name)
	assert.Equal(t, []string{"fetch-archive"}, wf.Activities)

	_, err = reg.ResolveActivity("fetch-archive")
	require.NoError(t, err)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterWorkflow("provision", nil, noopWorkflow))
	require.NoError(t, reg.RegisterActivity("fetch-archive", noopActivity))

	assert.ErrorIs(t, reg.RegisterWorkflow("provision", nil, noopWorkflow), ErrAlreadyRegistered)
	assert.ErrorIs(t, reg.RegisterActivity("fetch-archive", noopActivity), ErrAlreadyRegistered)
}

func TestRegistryResolveUnknown(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.ResolveWorkflow("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reg.ResolveActivity("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workflows:
  - name: provision
    task_queue: provisioning
    activities: [fetch-archive, probe-endpoint]
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Workflows, 1)
	assert.Equal(t, "provision", cfg.Workflows[0].Name)
	assert.Equal(t, "provisioning", cfg.Workflows[0].TaskQueue)
	assert.Equal(t, []string{"fetch-archive", "probe-endpoint"}, cfg.Workflows[0].Activities)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workflows: [pro"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestBindResolvesEverything(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterWorkflow("provision", []string{"fetch-archive"}, noopWorkflow))
	require.NoError(t, reg.RegisterActivity("fetch-archive", noopActivity))
	require.NoError(t, reg.RegisterActivity("probe-endpoint", noopActivity))

	cfg := &Config{Workflows: []WorkflowConfig{{
		Name:       "provision",
		TaskQueue:  "provisioning",
		Activities: []string{"probe-endpoint"},
	}}}

	bindings, err := Bind(cfg, reg)
	require.NoError(t, err)
	require.Len(t, bindings, 1)

	assert.Equal(t, "provisioning", bindings[0].TaskQueue)
	assert.Contains(t, bindings[0].Activities, "fetch-archive")
	assert.Contains(t, bindings[0].Activities, "probe-endpoint")
}

func TestBindFailsOnDanglingReferences(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterWorkflow("provision", []string{"fetch-archive"}, noopWorkflow))

	t.Run("unknown workflow", func(t *testing.T) {
		_, err := Bind(&Config{Workflows: []WorkflowConfig{{Name: "missing", TaskQueue: "q"}}}, reg)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unregistered activity", func(t *testing.T) {
		_, err := Bind(&Config{Workflows: []WorkflowConfig{{Name: "provision", TaskQueue: "q"}}}, reg)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty task queue", func(t *testing.T) {
		_, err := Bind(&Config{Workflows: []WorkflowConfig{{Name: "provision"}}}, reg)
		assert.ErrorContains(t, err, "task queue")
	})

	t.Run("empty config", func(t *testing.T) {
		_, err := Bind(&Config{}, reg)
		assert.Error(t, err)
	})
}
