package cmd

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/docsite-tools/docsync/pkg/config"
	"github.com/docsite-tools/docsync/pkg/engine"
	"github.com/docsite-tools/docsync/pkg/flagparse"
	"github.com/docsite-tools/docsync/pkg/hook"
	"github.com/docsite-tools/docsync/pkg/pathcompression"
	"github.com/docsite-tools/docsync/pkg/pathcopy"
	"github.com/docsite-tools/docsync/pkg/pathprune"
	"github.com/docsite-tools/docsync/pkg/planner"
	"github.com/docsite-tools/docsync/pkg/plog"
)

// RunSync handles the logic for the sync command. The returned error covers
// invocation problems only (config file, validation, plan). Copy and prune
// failures are part of the Report.
func RunSync(ctx context.Context, flagMap map[string]any) (*engine.Report, error) {
	configPath, required, err := resolveConfigPath(flagMap)
	if err != nil {
		return nil, err
	}

	loadedConfig, err := config.Load(configPath, required)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Merge the flag values over the loaded config to get the final run config.
	runConfig := config.MergeConfigWithFlags(flagparse.Sync, loadedConfig, flagMap)
	if err := runConfig.Validate(); err != nil {
		return nil, err
	}

	plog.SetLevel(plog.LevelFromString(runConfig.LogLevel))
	runConfig.LogSummary()

	syncPlan, err := planner.GenerateSyncPlan(runConfig)
	if err != nil {
		return nil, err
	}

	// Create the runner and feed it with our leaf workers
	runner := engine.NewRunner(
		pathcopy.NewPathCopier(syncPlan.BufferSizeKB),
		pathprune.NewPathPruner(pathcompression.NewPathCompressor(syncPlan.BufferSizeKB)),
		hook.NewHookExecutor(exec.CommandContext),
	)
	return runner.ExecuteSync(ctx, syncPlan), nil
}
