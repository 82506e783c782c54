package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validFlow = `id: greeting
nodes:
  - id: start
    type: start
  - id: hi
    type: message
    data:
      content: Hi there
  - id: end
    type: end
edges:
  - source: start
    target: hi
  - source: hi
    target: end
`

const headlessFlow = `id: headless
nodes:
  - id: hi
    type: message
    data:
      content: Hi there
  - id: end
    type: end
edges:
  - source: hi
    target: end
`

// resetFlags restores every flag, since cobra keeps parsed values between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	resetFlags(rootCmd)
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func writeFlow(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	valid := writeFlow(t, dir, "greeting.yaml", validFlow)

	broken := t.TempDir()
	writeFlow(t, broken, "greeting.yaml", validFlow)
	writeFlow(t, broken, "headless.yaml", headlessFlow)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"valid file", []string{"validate", valid}, ""},
		{"single flow of a directory", []string{"validate", broken, "--flow", "greeting"}, ""},
		{"directory with a broken flow", []string{"validate", broken}, "1 of 2 flows"},
		{"missing source", []string{"validate", filepath.Join(dir, "missing")}, "invalid path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := execute(t, tt.args...)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestGraphCommand(t *testing.T) {
	valid := writeFlow(t, t.TempDir(), "greeting.yaml", validFlow)

	assert.NoError(t, execute(t, "graph", valid, "--flow", "greeting"))
	assert.Error(t, execute(t, "graph", valid, "--flow", "other"))
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	err := execute(t, "version", "--store", "mongo")
	assert.ErrorContains(t, err, "invalid config")
}

func TestSourcePath(t *testing.T) {
	require.NoError(t, execute(t, "version", "--flows", "./flows"))
	assert.Equal(t, "./flows", sourcePath(nil))
	assert.Equal(t, "other.yaml", sourcePath([]string{"other.yaml"}))
}
