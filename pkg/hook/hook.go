// Package hook runs user supplied shell commands before and after a sync,
// e.g. regenerating the OpenAPI spec or rebuilding the site index.
//
// Hooks never stop a sync. A failing command is logged and the remaining
// commands of the same stage still run; the caller receives a summary error.
package hook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/docsite-tools/docsync/pkg/hints"
	"github.com/docsite-tools/docsync/pkg/plog"
)

var ErrNothingToExecute = hints.New("nothing to execute")

// Stage names the point in the run a hook belongs to. It is exported to the
// hook process as DOCSYNC_STAGE.
type Stage string

const (
	PreSync  Stage = "pre-sync"
	PostSync Stage = "post-sync"
)

type HookExecutor struct {
	// commandContext allows mocking os/exec for testing hooks.
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewHookExecutor creates a HookExecutor. Pass exec.CommandContext outside of tests.
func NewHookExecutor(commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd) *HookExecutor {
	return &HookExecutor{
		commandContext: commandContext,
	}
}

// RunPreSync runs p.PreSyncCommands in order.
func (e *HookExecutor) RunPreSync(ctx context.Context, p *Plan) error {
	return e.run(ctx, PreSync, p.PreSyncCommands, p)
}

// RunPostSync runs p.PostSyncCommands in order.
func (e *HookExecutor) RunPostSync(ctx context.Context, p *Plan) error {
	return e.run(ctx, PostSync, p.PostSyncCommands, p)
}

func (e *HookExecutor) run(ctx context.Context, stage Stage, commands []string, p *Plan) error {
	if len(commands) == 0 {
		return ErrNothingToExecute
	}

	plog.Info("Running hook commands", "stage", stage, "count", len(commands))

	var failed int
	var firstErr error
	for _, hookCommand := range commands {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if p.DryRun {
			plog.Info("[DRY RUN] Executing command", "stage", stage, "command", hookCommand)
			continue
		}
		plog.Info("Executing command", "stage", stage, "command", hookCommand)

		cmd := e.createCommand(ctx, hookCommand)
		cmd.Dir = p.WorkDir
		cmd.Env = append(cmd.Environ(),
			"DOCSYNC_STAGE="+string(stage),
			"DOCSYNC_ROOT="+p.WorkDir,
		)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			// A canceled context kills the process; report the cancellation, not the exit code.
			if errors.Is(ctx.Err(), context.Canceled) {
				return context.Canceled
			}
			plog.Warn("Hook command failed", "stage", stage, "command", hookCommand, "error", err)
			failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("command '%s' failed: %w", hookCommand, err)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d %s hook commands failed, first error: %w", failed, len(commands), stage, firstErr)
	}
	return nil
}
