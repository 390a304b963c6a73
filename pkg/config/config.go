package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/docsite-tools/docsync/pkg/buildinfo"
	"github.com/docsite-tools/docsync/pkg/flagparse"
	"github.com/docsite-tools/docsync/pkg/pathcompression"
	"github.com/docsite-tools/docsync/pkg/plog"
	"github.com/docsite-tools/docsync/pkg/util"
)

// ConfigFileName is the config file looked up in the project root.
const ConfigFileName = "docsync.yaml"

// PathsConfig names the two documentation sites, relative to the project root.
type PathsConfig struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// ArchiveConfig controls archiving of pruned entries.
type ArchiveConfig struct {
	Enabled bool `yaml:"enabled"`
	// Dir is relative to the project root.
	Dir    string                 `yaml:"dir"`
	Format pathcompression.Format `yaml:"format"`
	Level  pathcompression.Level  `yaml:"level"`
}

// PruneConfig describes the spec directory that is reduced to one file.
type PruneConfig struct {
	Enabled bool `yaml:"enabled"`
	// Dir is relative to the target site.
	Dir string `yaml:"dir"`
	// Keep is relative to Dir.
	Keep    string        `yaml:"keep"`
	Archive ArchiveConfig `yaml:"archive"`
}

type HooksConfig struct {
	PreSync  []string `yaml:"preSync"`
	PostSync []string `yaml:"postSync"`
}

type EngineConfig struct {
	BufferSizeKB int  `yaml:"bufferSizeKB"`
	Metrics      bool `yaml:"metrics"`
	Preflight    bool `yaml:"preflight"`
}

type RuntimeConfig struct {
	DryRun bool
	// ConfigPath is the file the config was loaded from, empty when none was found.
	ConfigPath string
}

type Config struct {
	Version string `yaml:"version"`
	// Root is the project root. Empty means two levels above the working directory.
	Root     string        `yaml:"root,omitempty"`
	LogLevel string        `yaml:"logLevel"`
	Paths    PathsConfig   `yaml:"paths"`
	Entries  []string      `yaml:"entries"`
	Prune    PruneConfig   `yaml:"prune"`
	Hooks    HooksConfig   `yaml:"hooks"`
	Engine   EngineConfig  `yaml:"engine"`
	Runtime  RuntimeConfig `yaml:"-"` // Never added to config file
}

// NewDefault returns the configuration that reproduces the production
// deployment: twelve entries from developer-site-waas2 into developer-site,
// then the OpenAPI spec directory pruned down to dev_openapi.yaml.
func NewDefault() Config {
	return Config{
		Version:  buildinfo.Version,
		Root:     "", // Resolved from the working directory at run time.
		LogLevel: "info",
		Paths: PathsConfig{
			Source: "developer-site-waas2",
			Target: "developer-site",
		},
		Entries: []string{
			"_snippets",
			"snippets",
			"docs.json",
			"logo",
			"v1",
			"v2",
			"v2_cn",
			"mint.json",
			"README.md",
			"script.js",
			"api_playground.js",
			"styles.css",
		},
		Prune: PruneConfig{
			Enabled: true,
			Dir:     "v2/cobo_waas2_openapi_spec",
			Keep:    "dev_openapi.yaml",
			Archive: ArchiveConfig{
				Enabled: false,
				Dir:     ".docsync-archives",
				Format:  pathcompression.TarGz,
				Level:   pathcompression.Default,
			},
		},
		Hooks: HooksConfig{
			PreSync:  []string{},
			PostSync: []string{},
		},
		Engine: EngineConfig{
			BufferSizeKB: 256,
			Metrics:      false,
			Preflight:    true,
		},
	}
}

// DefaultProjectRoot returns the directory two levels above the working directory.
func DefaultProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("could not determine working directory: %w", err)
	}
	return filepath.Dir(filepath.Dir(cwd)), nil
}

// Load reads the YAML file at configPath on top of NewDefault. A missing file
// yields the defaults unless required is set. Unknown keys are rejected.
// A relative root in the file is resolved against the file's directory.
func Load(configPath string, required bool) (Config, error) {
	absConfigPath, err := filepath.Abs(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("could not determine absolute path for config file %s: %w", configPath, err)
	}

	data, err := os.ReadFile(absConfigPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			plog.Debug("No config file found, using defaults", "path", absConfigPath)
			return NewDefault(), nil
		}
		return Config{}, fmt.Errorf("error opening config file %s: %w", absConfigPath, err)
	}

	plog.Info("Loading configuration", "path", absConfigPath)
	config := NewDefault()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("error parsing config file %s: %w", absConfigPath, err)
	}

	if config.Root != "" {
		root, err := util.ExpandPath(config.Root)
		if err != nil {
			return Config{}, err
		}
		if !filepath.IsAbs(root) {
			root = filepath.Join(filepath.Dir(absConfigPath), root)
		}
		config.Root = filepath.Clean(root)
	}

	config.Version = buildinfo.Version
	config.Runtime.ConfigPath = absConfigPath
	return config, nil
}

// Generate writes cfg as YAML to configPath. An existing file is only
// replaced when force is set.
func Generate(cfg Config, configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file %s already exists, use -force to overwrite it", configPath)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s configuration. Paths are relative to the project root.\n", buildinfo.Name)
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, buf.Bytes(), util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	plog.Info("Successfully saved config file", "path", configPath)
	return nil
}

// Validate checks the configuration for values that can never work.
// Path containment rules are enforced by the planner once paths are absolute.
func (c *Config) Validate() error {
	if !plog.IsValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid logLevel %q: must be 'debug', 'notice', 'info', 'warn' or 'error'", c.LogLevel)
	}
	if strings.TrimSpace(c.Paths.Source) == "" {
		return fmt.Errorf("paths.source cannot be empty")
	}
	if strings.TrimSpace(c.Paths.Target) == "" {
		return fmt.Errorf("paths.target cannot be empty")
	}
	if len(c.Entries) == 0 {
		return fmt.Errorf("entries cannot be empty")
	}
	for i, entry := range c.Entries {
		if strings.TrimSpace(entry) == "" {
			return fmt.Errorf("entries[%d] cannot be empty", i)
		}
	}
	if c.Engine.BufferSizeKB < 0 {
		return fmt.Errorf("engine.bufferSizeKB cannot be negative, got %d", c.Engine.BufferSizeKB)
	}

	if !c.Prune.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Prune.Dir) == "" {
		return fmt.Errorf("prune.dir cannot be empty when pruning is enabled")
	}
	if strings.TrimSpace(c.Prune.Keep) == "" {
		return fmt.Errorf("prune.keep cannot be empty when pruning is enabled")
	}
	if c.Prune.Archive.Enabled {
		if strings.TrimSpace(c.Prune.Archive.Dir) == "" {
			return fmt.Errorf("prune.archive.dir cannot be empty when archiving is enabled")
		}
		if _, err := pathcompression.ParseFormat(string(c.Prune.Archive.Format)); err != nil {
			return fmt.Errorf("prune.archive.format: %w", err)
		}
		if _, err := pathcompression.ParseLevel(string(c.Prune.Archive.Level)); err != nil {
			return fmt.Errorf("prune.archive.level: %w", err)
		}
	}
	return nil
}

// LogSummary logs the effective configuration.
func (c *Config) LogSummary() {
	logArgs := []any{
		"root", c.Root,
		"source", c.Paths.Source,
		"target", c.Paths.Target,
		"entries", len(c.Entries),
		"log_level", c.LogLevel,
		"dry_run", c.Runtime.DryRun,
		"metrics", c.Engine.Metrics,
		"buffer_size_kb", c.Engine.BufferSizeKB,
	}
	if c.Runtime.ConfigPath != "" {
		logArgs = append(logArgs, "config", c.Runtime.ConfigPath)
	}
	if c.Prune.Enabled {
		logArgs = append(logArgs, "prune", fmt.Sprintf("enabled (d:%s k:%s)", c.Prune.Dir, c.Prune.Keep))
		if c.Prune.Archive.Enabled {
			logArgs = append(logArgs, "archive", fmt.Sprintf("enabled (f:%s l:%s d:%s)",
				c.Prune.Archive.Format, c.Prune.Archive.Level, c.Prune.Archive.Dir))
		}
	} else {
		logArgs = append(logArgs, "prune", "disabled")
	}
	if len(c.Hooks.PreSync) > 0 {
		logArgs = append(logArgs, "pre_sync_hooks", strings.Join(c.Hooks.PreSync, "; "))
	}
	if len(c.Hooks.PostSync) > 0 {
		logArgs = append(logArgs, "post_sync_hooks", strings.Join(c.Hooks.PostSync, "; "))
	}
	plog.Info("Configuration loaded", logArgs...)
}

// MergeConfigWithFlags overlays the configuration values from flags on top of a base
// configuration. setFlags contains only the flags explicitly provided by the user.
func MergeConfigWithFlags(command flagparse.Command, base Config, setFlags map[string]any) Config {
	merged := base

	for name, value := range setFlags {
		switch name {
		case "root":
			merged.Root = value.(string)
		case "log-level":
			merged.LogLevel = value.(string)
		case "dry-run":
			merged.Runtime.DryRun = value.(bool)
		case "metrics":
			merged.Engine.Metrics = value.(bool)
		case "no-prune":
			merged.Prune.Enabled = !value.(bool)
		case "archive-pruned":
			merged.Prune.Archive.Enabled = value.(bool)
		case "archive-dir":
			merged.Prune.Archive.Dir = value.(string)
		case "archive-format":
			merged.Prune.Archive.Format = pathcompression.Format(value.(string))
		case "entries":
			merged.Entries = value.([]string)
		case "pre-sync-hooks":
			merged.Hooks.PreSync = value.([]string)
		case "post-sync-hooks":
			merged.Hooks.PostSync = value.([]string)
		case "buffer-size-kb":
			merged.Engine.BufferSizeKB = value.(int)
		case "skip-preflight":
			merged.Engine.Preflight = !value.(bool)
		case "config", "force":
			// Handled by the command, not part of the config.
		default:
			plog.Debug("unhandled flag in MergeConfigWithFlags", "command", command, "flag", name)
		}
	}
	return merged
}
