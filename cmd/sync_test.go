package cmd_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsite-tools/docsync/cmd"
	"github.com/docsite-tools/docsync/pkg/config"
)

func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "developer-site-waas2")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "v2", "cobo_waas2_openapi_spec"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "docs.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "v2", "cobo_waas2_openapi_spec", "dev_openapi.yaml"), []byte("dev"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "v2", "cobo_waas2_openapi_spec", "prod_openapi.yaml"), []byte("prod"), 0644))
	return root
}

func TestRunSync(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		root := setupProject(t)

		report, err := cmd.RunSync(context.Background(), map[string]any{"root": root})
		require.NoError(t, err)
		assert.Len(t, report.Copies, 12)
		assert.Equal(t, 2, report.Copied())
		assert.Equal(t, 0, report.Failed())

		specDir := filepath.Join(root, "developer-site", "v2", "cobo_waas2_openapi_spec")
		assert.FileExists(t, filepath.Join(specDir, "dev_openapi.yaml"))
		assert.NoFileExists(t, filepath.Join(specDir, "prod_openapi.yaml"))
	})

	t.Run("Config file in the project root", func(t *testing.T) {
		root := setupProject(t)
		content := "entries:\n  - docs.json\nprune:\n  enabled: false\n"
		require.NoError(t, os.WriteFile(filepath.Join(root, config.ConfigFileName), []byte(content), 0644))

		report, err := cmd.RunSync(context.Background(), map[string]any{"root": root})
		require.NoError(t, err)
		require.Len(t, report.Copies, 1)
		assert.Nil(t, report.Prune)
	})

	t.Run("Flags override the config file", func(t *testing.T) {
		root := setupProject(t)
		require.NoError(t, os.WriteFile(filepath.Join(root, config.ConfigFileName), []byte("entries: [logo]\n"), 0644))

		report, err := cmd.RunSync(context.Background(), map[string]any{
			"root":    root,
			"entries": []string{"docs.json", "v2"},
			"dry-run": true,
		})
		require.NoError(t, err)
		assert.Len(t, report.Copies, 2)
		assert.NoDirExists(t, filepath.Join(root, "developer-site"))
	})

	t.Run("Missing explicit config is an error", func(t *testing.T) {
		_, err := cmd.RunSync(context.Background(), map[string]any{
			"root":   t.TempDir(),
			"config": filepath.Join(t.TempDir(), "missing.yaml"),
		})
		assert.Error(t, err)
	})

	t.Run("Invalid config is an error", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, config.ConfigFileName), []byte("entries: [/etc]\n"), 0644))

		_, err := cmd.RunSync(context.Background(), map[string]any{"root": root})
		assert.Error(t, err)
	})
}
