package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsite-tools/docsync/pkg/flagparse"
	"github.com/docsite-tools/docsync/pkg/pathcompression"
	"github.com/docsite-tools/docsync/pkg/plog"
)

func TestMain(m *testing.M) {
	plog.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	assert.Equal(t, "developer-site-waas2", cfg.Paths.Source)
	assert.Equal(t, "developer-site", cfg.Paths.Target)
	assert.Equal(t, []string{
		"_snippets", "snippets", "docs.json", "logo", "v1", "v2", "v2_cn",
		"mint.json", "README.md", "script.js", "api_playground.js", "styles.css",
	}, cfg.Entries)
	assert.True(t, cfg.Prune.Enabled)
	assert.Equal(t, "v2/cobo_waas2_openapi_spec", cfg.Prune.Dir)
	assert.Equal(t, "dev_openapi.yaml", cfg.Prune.Keep)
	assert.False(t, cfg.Prune.Archive.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	testCases := map[string]func(c *Config){
		"Invalid log level":       func(c *Config) { c.LogLevel = "verbose" },
		"Empty source":            func(c *Config) { c.Paths.Source = "" },
		"Empty target":            func(c *Config) { c.Paths.Target = " " },
		"No entries":              func(c *Config) { c.Entries = nil },
		"Blank entry":             func(c *Config) { c.Entries = []string{"docs.json", ""} },
		"Negative buffer":         func(c *Config) { c.Engine.BufferSizeKB = -1 },
		"Empty prune dir":         func(c *Config) { c.Prune.Dir = "" },
		"Empty keep":              func(c *Config) { c.Prune.Keep = "" },
		"Unknown archive format":  func(c *Config) { c.Prune.Archive.Enabled = true; c.Prune.Archive.Format = "zip" },
		"Unknown archive level":   func(c *Config) { c.Prune.Archive.Enabled = true; c.Prune.Archive.Level = "max" },
		"Empty archive directory": func(c *Config) { c.Prune.Archive.Enabled = true; c.Prune.Archive.Dir = "" },
	}

	for name, mutate := range testCases {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefault()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("Prune settings are ignored when pruning is disabled", func(t *testing.T) {
		cfg := NewDefault()
		cfg.Prune.Enabled = false
		cfg.Prune.Dir = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoad(t *testing.T) {
	t.Run("Missing optional file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), ConfigFileName), false)
		require.NoError(t, err)
		assert.Equal(t, NewDefault().Entries, cfg.Entries)
		assert.Empty(t, cfg.Runtime.ConfigPath)
	})

	t.Run("Missing required file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "custom.yaml"), true)
		assert.Error(t, err)
	})

	t.Run("File overrides defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, ConfigFileName)
		content := `
root: sites
logLevel: debug
entries:
  - docs.json
  - v2
prune:
  keep: prod_openapi.yaml
  archive:
    enabled: true
    format: tar.zst
    level: best
hooks:
  preSync:
    - make openapi
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := Load(path, false)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "sites"), cfg.Root)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, []string{"docs.json", "v2"}, cfg.Entries)
		assert.Equal(t, "prod_openapi.yaml", cfg.Prune.Keep)
		assert.Equal(t, "v2/cobo_waas2_openapi_spec", cfg.Prune.Dir, "unset keys keep their defaults")
		assert.True(t, cfg.Prune.Archive.Enabled)
		assert.Equal(t, pathcompression.TarZst, cfg.Prune.Archive.Format)
		assert.Equal(t, pathcompression.Best, cfg.Prune.Archive.Level)
		assert.Equal(t, []string{"make openapi"}, cfg.Hooks.PreSync)
		assert.Equal(t, path, cfg.Runtime.ConfigPath)
	})

	t.Run("Empty file returns defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ConfigFileName)
		require.NoError(t, os.WriteFile(path, nil, 0644))

		cfg, err := Load(path, true)
		require.NoError(t, err)
		assert.Equal(t, NewDefault().Entries, cfg.Entries)
	})

	t.Run("Unknown key is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ConfigFileName)
		require.NoError(t, os.WriteFile(path, []byte("entriez: [a]\n"), 0644))

		_, err := Load(path, false)
		assert.Error(t, err)
	})

	t.Run("Invalid archive format is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ConfigFileName)
		require.NoError(t, os.WriteFile(path, []byte("prune:\n  archive:\n    format: rar\n"), 0644))

		_, err := Load(path, false)
		assert.Error(t, err)
	})
}

func TestGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)

	require.NoError(t, Generate(NewDefault(), path, false))

	loaded, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, NewDefault().Entries, loaded.Entries)
	assert.Equal(t, NewDefault().Prune, loaded.Prune)

	t.Run("Refuses to overwrite without force", func(t *testing.T) {
		assert.ErrorContains(t, Generate(NewDefault(), path, false), "already exists")
	})

	t.Run("Overwrites with force", func(t *testing.T) {
		cfg := NewDefault()
		cfg.Entries = []string{"docs.json"}
		require.NoError(t, Generate(cfg, path, true))

		loaded, err := Load(path, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"docs.json"}, loaded.Entries)
	})
}

func TestMergeConfigWithFlags(t *testing.T) {
	base := NewDefault()
	setFlags := map[string]any{
		"root":            "/srv/docs",
		"log-level":       "warn",
		"dry-run":         true,
		"metrics":         true,
		"no-prune":        true,
		"archive-pruned":  true,
		"archive-format":  "tar.zst",
		"entries":         []string{"docs.json"},
		"pre-sync-hooks":  []string{"make spec"},
		"post-sync-hooks": []string{"echo done"},
		"buffer-size-kb":  64,
		"skip-preflight":  true,
		"config":          "ignored.yaml",
	}

	merged := MergeConfigWithFlags(flagparse.Sync, base, setFlags)

	assert.Equal(t, "/srv/docs", merged.Root)
	assert.Equal(t, "warn", merged.LogLevel)
	assert.True(t, merged.Runtime.DryRun)
	assert.True(t, merged.Engine.Metrics)
	assert.False(t, merged.Prune.Enabled)
	assert.True(t, merged.Prune.Archive.Enabled)
	assert.Equal(t, pathcompression.TarZst, merged.Prune.Archive.Format)
	assert.Equal(t, []string{"docs.json"}, merged.Entries)
	assert.Equal(t, []string{"make spec"}, merged.Hooks.PreSync)
	assert.Equal(t, []string{"echo done"}, merged.Hooks.PostSync)
	assert.Equal(t, 64, merged.Engine.BufferSizeKB)
	assert.False(t, merged.Engine.Preflight)

	// The base must not be modified.
	assert.True(t, base.Prune.Enabled)
	assert.Len(t, base.Entries, 12)
}

func TestDefaultProjectRoot(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	root, err := DefaultProjectRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(filepath.Dir(cwd)), root)
}
