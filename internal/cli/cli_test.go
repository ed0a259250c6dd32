package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverrides(t *testing.T) {
	got, err := parseOverrides([]string{"userRemovalMode=delete", "ignoreMissingSessions=true"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"userRemovalMode":       "delete",
		"ignoreMissingSessions": "true",
	}, got)

	_, err = parseOverrides([]string{"notAnOverride"})
	assert.Error(t, err)

	got, err = parseOverrides(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "run failed")))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "bad config", errors.New("boom"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	root := NewRootCommand()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["sync"])
	assert.True(t, names["serve"])
	assert.True(t, names["status"])
}
