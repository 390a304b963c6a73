package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithUserWritePermission(t *testing.T) {
	testCases := []struct {
		name     string
		input    os.FileMode
		expected os.FileMode
	}{
		{name: "Read-only permission", input: 0444, expected: 0644},
		{name: "Already has write permission", input: 0755, expected: 0755},
		{name: "No permissions", input: 0000, expected: 0200},
		{name: "Execute-only permission", input: 0111, expected: 0311},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, WithUserWritePermission(tc.input))
		})
	}
}

func TestWithUserExecutePermission(t *testing.T) {
	assert.Equal(t, os.FileMode(0544), WithUserExecutePermission(0444))
	assert.Equal(t, os.FileMode(0755), WithUserExecutePermission(0755))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Run("No tilde", func(t *testing.T) {
		got, err := ExpandPath("/some/path")
		require.NoError(t, err)
		assert.Equal(t, "/some/path", got)
	})

	t.Run("Tilde prefix", func(t *testing.T) {
		got, err := ExpandPath("~/docs")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "docs"), got)
	})
}

func TestIsWithin(t *testing.T) {
	base := filepath.Join(string(filepath.Separator), "root", "site")

	testCases := []struct {
		name     string
		path     string
		expected bool
	}{
		{"Same path", base, true},
		{"Direct child", filepath.Join(base, "v2"), true},
		{"Nested child", filepath.Join(base, "v2", "spec", "a.yaml"), true},
		{"Parent", filepath.Dir(base), false},
		{"Sibling with common prefix", base + "-waas2", false},
		{"Dot-dot escape", filepath.Join(base, "..", "other"), false},
		{"Child named with dots", filepath.Join(base, "..hidden"), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsWithin(base, tc.path))
		})
	}
}

func TestInvertMap(t *testing.T) {
	inv := InvertMap(map[int]string{1: "one", 2: "two"})
	assert.Equal(t, map[string]int{"one": 1, "two": 2}, inv)
}

func TestByteCountIEC(t *testing.T) {
	assert.Equal(t, "0 B", ByteCountIEC(0))
	assert.Equal(t, "1023 B", ByteCountIEC(1023))
	assert.Equal(t, "1.0 KiB", ByteCountIEC(1024))
	assert.Equal(t, "1.5 KiB", ByteCountIEC(1536))
	assert.Equal(t, "1.0 MiB", ByteCountIEC(1024*1024))
}
