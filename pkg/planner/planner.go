package planner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/docsite-tools/docsync/pkg/config"
	"github.com/docsite-tools/docsync/pkg/hook"
	"github.com/docsite-tools/docsync/pkg/pathcompression"
	"github.com/docsite-tools/docsync/pkg/pathcopy"
	"github.com/docsite-tools/docsync/pkg/pathprune"
	"github.com/docsite-tools/docsync/pkg/preflight"
	"github.com/docsite-tools/docsync/pkg/util"
)

// SyncPlan is the immutable description of one run. Every path in it is
// absolute and cleaned.
type SyncPlan struct {
	DryRun       bool
	Metrics      bool
	BufferSizeKB int

	ProjectRoot string
	SourceBase  string
	TargetBase  string

	// Tasks run in this order.
	Tasks []pathcopy.Task
	// Prune is nil when pruning is disabled.
	Prune *pathprune.Plan

	Preflight *preflight.Plan
	Hooks     *hook.Plan
}

// GenerateSyncPlan resolves cfg into a SyncPlan. It rejects entries that are
// empty, absolute or escape their base, a prune directory outside the target
// site, a keep path that is not a direct child of the prune directory, and an
// archive directory inside the prune directory.
func GenerateSyncPlan(cfg config.Config) (*SyncPlan, error) {
	root := cfg.Root
	if root == "" {
		var err error
		if root, err = config.DefaultProjectRoot(); err != nil {
			return nil, err
		}
	}
	root, err := util.ExpandPath(root)
	if err != nil {
		return nil, err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("could not determine absolute path for project root %s: %w", root, err)
	}

	p := &SyncPlan{
		DryRun:       cfg.Runtime.DryRun,
		Metrics:      cfg.Engine.Metrics,
		BufferSizeKB: cfg.Engine.BufferSizeKB,
		ProjectRoot:  absRoot,
		SourceBase:   resolveUnder(absRoot, cfg.Paths.Source),
		TargetBase:   resolveUnder(absRoot, cfg.Paths.Target),
		Preflight: &preflight.Plan{
			SourceAccessible: cfg.Engine.Preflight,
			TargetWritable:   cfg.Engine.Preflight,
			PathNesting:      cfg.Engine.Preflight,
		},
		Hooks: &hook.Plan{
			PreSyncCommands:  cfg.Hooks.PreSync,
			PostSyncCommands: cfg.Hooks.PostSync,
			WorkDir:          absRoot,
			DryRun:           cfg.Runtime.DryRun,
		},
	}

	for _, entry := range cfg.Entries {
		rel, err := cleanRelative("entry", entry)
		if err != nil {
			return nil, err
		}
		p.Tasks = append(p.Tasks, pathcopy.Task{
			Source:      filepath.Join(p.SourceBase, rel),
			Destination: filepath.Join(p.TargetBase, rel),
		})
	}

	if cfg.Prune.Enabled {
		if p.Prune, err = generatePrunePlan(cfg, absRoot, p.TargetBase); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func generatePrunePlan(cfg config.Config, absRoot, absTargetBase string) (*pathprune.Plan, error) {
	relDir, err := cleanRelative("prune dir", cfg.Prune.Dir)
	if err != nil {
		return nil, err
	}
	absDir := filepath.Join(absTargetBase, relDir)

	relKeep, err := cleanRelative("prune keep", cfg.Prune.Keep)
	if err != nil {
		return nil, err
	}
	absKeep := filepath.Join(absDir, relKeep)
	// Only immediate children are compared against the keep path.
	if filepath.Dir(absKeep) != absDir {
		return nil, fmt.Errorf("prune keep %q must name a direct child of the prune directory %s", cfg.Prune.Keep, absDir)
	}

	plan := &pathprune.Plan{
		Dir:     absDir,
		Keep:    absKeep,
		DryRun:  cfg.Runtime.DryRun,
		Metrics: cfg.Engine.Metrics,
	}

	if cfg.Prune.Archive.Enabled {
		format, err := pathcompression.ParseFormat(string(cfg.Prune.Archive.Format))
		if err != nil {
			return nil, err
		}
		level, err := pathcompression.ParseLevel(string(cfg.Prune.Archive.Level))
		if err != nil {
			return nil, err
		}
		absArchiveDir := resolveUnder(absRoot, cfg.Prune.Archive.Dir)
		if util.IsWithin(absDir, absArchiveDir) {
			return nil, fmt.Errorf("archive directory %s must not be inside the prune directory %s", absArchiveDir, absDir)
		}
		plan.Archive = pathprune.ArchivePlan{
			Enabled: true,
			Dir:     absArchiveDir,
			Format:  format,
			Level:   level,
		}
	}
	return plan, nil
}

// resolveUnder returns path unchanged when absolute, otherwise joined to absBase.
func resolveUnder(absBase, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(absBase, path)
}

// cleanRelative validates a path that must stay below its base and returns it cleaned.
// Forward slashes are accepted on every platform.
func cleanRelative(kind, path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("%s cannot be empty", kind)
	}
	native := filepath.FromSlash(trimmed)
	if filepath.IsAbs(native) || strings.HasPrefix(trimmed, "/") || filepath.VolumeName(native) != "" {
		return "", fmt.Errorf("%s %q must be relative", kind, path)
	}
	cleaned := filepath.Clean(native)
	if cleaned == "." {
		return "", fmt.Errorf("%s %q must name a path below its base", kind, path)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s %q escapes its base directory", kind, path)
	}
	return cleaned, nil
}
