package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "hvroll", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
}

func TestRoot_HasSubcommands(t *testing.T) {
	cmd := Root()

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	for _, expected := range []string{"list", "rollout", "version", "completion"} {
		assert.True(t, subcommands[expected], "Expected subcommand %s not found", expected)
	}
}

func TestList_Flags(t *testing.T) {
	cmd := List()

	for _, name := range []string{"config", "datacenter", "log-level", "log-json", "json"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "c", cmd.Flags().Lookup("config").Shorthand)
	assert.Equal(t, "d", cmd.Flags().Lookup("datacenter").Shorthand)
}

func TestList_RejectsArgs(t *testing.T) {
	cmd := List()
	cmd.SetArgs([]string{"extra"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.Error(t, cmd.Execute())
}

func TestRollout_Flags(t *testing.T) {
	cmd := Rollout()

	tests := []struct {
		name string
		def  string
	}{
		{"dry-run", "false"},
		{"yes", "false"},
		{"failure-threshold", "2"},
		{"metrics-file", ""},
		{"report-file", ""},
		{"report-bucket", ""},
		{"datacenter", "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := cmd.Flags().Lookup(tt.name)
			require.NotNil(t, flag)
			assert.Equal(t, tt.def, flag.DefValue)
		})
	}
	assert.Equal(t, "y", cmd.Flags().Lookup("yes").Shorthand)
}

func TestRollout_DatacenterRepeatable(t *testing.T) {
	cmd := Rollout()
	require.NoError(t, cmd.Flags().Parse([]string{"-d", "dc1", "--datacenter", "dc2,dc3"}))

	got, err := cmd.Flags().GetStringSlice("datacenter")
	require.NoError(t, err)
	assert.Equal(t, []string{"dc1", "dc2", "dc3"}, got)
}

func TestVersion_Output(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	defer func() { version, commit, date = origVersion, origCommit, origDate }()

	SetVersionInfo("1.2.3", "abc123", "2026-01-01")

	var out bytes.Buffer
	cmd := Version()
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "hvroll 1.2.3")
	assert.Contains(t, out.String(), "commit: abc123")
	assert.Contains(t, out.String(), "built:  2026-01-01")
}

func TestCompletion(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			root := Root()
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetArgs([]string{"completion", shell})
			require.NoError(t, root.Execute())
			assert.NotEmpty(t, out.String())
		})
	}
}

func TestCompletion_InvalidShell(t *testing.T) {
	root := Root()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"completion", "tcsh"})
	require.Error(t, root.Execute())
}
