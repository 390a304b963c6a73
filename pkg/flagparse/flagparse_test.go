package flagparse

import (
	"bytes"
	"errors"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name            string
		args            []string
		expectedCommand Command
		expectedFlags   map[string]any
	}{
		{
			name:            "No arguments runs sync with defaults",
			args:            nil,
			expectedCommand: Sync,
			expectedFlags:   map[string]any{},
		},
		{
			name:            "Leading flag implies sync",
			args:            []string{"-dry-run", "-metrics"},
			expectedCommand: Sync,
			expectedFlags:   map[string]any{"dry-run": true, "metrics": true},
		},
		{
			name:            "Explicit sync with root and hooks",
			args:            []string{"sync", "-root", "/srv/docs", "-pre-sync-hooks", "make spec,'echo a,b'"},
			expectedCommand: Sync,
			expectedFlags: map[string]any{
				"root":           "/srv/docs",
				"pre-sync-hooks": []string{"make spec", "'echo a,b'"},
			},
		},
		{
			name:            "Prune and archive flags",
			args:            []string{"sync", "-no-prune=false", "-archive-pruned", "-archive-format", "tar.zst"},
			expectedCommand: Sync,
			expectedFlags:   map[string]any{"no-prune": false, "archive-pruned": true, "archive-format": "tar.zst"},
		},
		{
			name:            "Entries override",
			args:            []string{"-entries", "docs.json, v2 ,'my dir'"},
			expectedCommand: Sync,
			expectedFlags:   map[string]any{"entries": []string{"docs.json", "v2", "my dir"}},
		},
		{
			name:            "Init with force",
			args:            []string{"init", "-force", "-config", "custom.yaml"},
			expectedCommand: Init,
			expectedFlags:   map[string]any{"force": true, "config": "custom.yaml"},
		},
		{
			name:            "Command is case-insensitive",
			args:            []string{"SYNC"},
			expectedCommand: Sync,
			expectedFlags:   map[string]any{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			command, flags, err := parse(tc.args, &out)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedCommand, command)
			assert.Equal(t, tc.expectedFlags, flags)
		})
	}
}

func TestParseVersionAndHelp(t *testing.T) {
	var out bytes.Buffer

	command, flags, err := parse([]string{"version"}, &out)
	require.NoError(t, err)
	assert.Equal(t, Version, command)
	assert.Nil(t, flags)

	command, _, err = parse([]string{"help"}, &out)
	require.NoError(t, err)
	assert.Equal(t, None, command)
	assert.Contains(t, out.String(), "Commands:")
}

func TestParseErrors(t *testing.T) {
	t.Run("Unknown command", func(t *testing.T) {
		_, _, err := parse([]string{"deploy"}, &bytes.Buffer{})
		assert.ErrorContains(t, err, "invalid command")
	})

	t.Run("Unknown flag", func(t *testing.T) {
		_, _, err := parse([]string{"sync", "-mode", "x"}, &bytes.Buffer{})
		assert.Error(t, err)
	})

	t.Run("Sync-only flag on init", func(t *testing.T) {
		_, _, err := parse([]string{"init", "-dry-run"}, &bytes.Buffer{})
		assert.Error(t, err)
	})

	t.Run("Positional arguments", func(t *testing.T) {
		_, _, err := parse([]string{"sync", "extra"}, &bytes.Buffer{})
		assert.ErrorContains(t, err, "unexpected arguments")
	})

	t.Run("Subcommand help", func(t *testing.T) {
		var out bytes.Buffer
		command, _, err := parse([]string{"init", "-help"}, &out)
		assert.Equal(t, Init, command)
		assert.True(t, errors.Is(err, flag.ErrHelp))
		assert.Contains(t, out.String(), "Usage of the init command")
	})
}

func TestParseCommand(t *testing.T) {
	c, err := ParseCommand("init")
	require.NoError(t, err)
	assert.Equal(t, Init, c)
	assert.Equal(t, "init", c.String())

	_, err = ParseCommand("none")
	assert.Error(t, err, "'none' is internal and must not be accepted")
}

func TestParseEntryList(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{"Simple List", "a,b,c", []string{"a", "b", "c"}},
		{"List with Spaces", " a , b, c ", []string{"a", "b", "c"}},
		{"Empty String", "", nil},
		{"Quoted Item with Comma", "'a,b',c", []string{"a,b", "c"}},
		{"Nested Quotes", "\"it's a test\",d", []string{"it's a test", "d"}},
		{"Windows Path with Backslashes", `v2\spec,docs.json`, []string{`v2\spec`, "docs.json"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseEntryList(tc.input))
		})
	}
}

func TestParseCmdList(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{"Simple List", "cmd1,cmd2", []string{"cmd1", "cmd2"}},
		{"Quoted Item with Comma", "'echo a,b',c", []string{"'echo a,b'", "c"}},
		{"Unmatched Quote", "'a,b", []string{"'a,b"}},
		{"Mixed Single and Double Quotes", "'a b',\"c,d\",e", []string{"'a b'", "\"c,d\"", "e"}},
		{"Escaped Comma Outside Quotes", "a\\,b,c", []string{"a\\,b", "c"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseCmdList(tc.input))
		})
	}
}
