// Package engine runs a SyncPlan: preflight, lock, hooks, the ordered copy
// tasks and the prune pass.
//
// A failure in one unit of work never stops the next one. Every outcome is
// captured in the returned Report and logged here, so the caller only has to
// look at the Report to decide what to print.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/docsite-tools/docsync/pkg/buildinfo"
	"github.com/docsite-tools/docsync/pkg/hints"
	"github.com/docsite-tools/docsync/pkg/hook"
	"github.com/docsite-tools/docsync/pkg/lockfile"
	"github.com/docsite-tools/docsync/pkg/pathcopy"
	"github.com/docsite-tools/docsync/pkg/pathprune"
	"github.com/docsite-tools/docsync/pkg/planner"
	"github.com/docsite-tools/docsync/pkg/plog"
	"github.com/docsite-tools/docsync/pkg/preflight"
)

// Copier copies one manifest entry.
type Copier interface {
	Copy(ctx context.Context, t pathcopy.Task, dryRun bool, m pathcopy.Metrics) pathcopy.Result
}

// Pruner reduces a directory to its keep entry.
type Pruner interface {
	Prune(ctx context.Context, p pathprune.Plan, m pathprune.Metrics) pathprune.Result
}

// HookRunner executes the pre- and post-sync commands.
type HookRunner interface {
	RunPreSync(ctx context.Context, p *hook.Plan) error
	RunPostSync(ctx context.Context, p *hook.Plan) error
}

// Runner wires the leaf workers together.
type Runner struct {
	copier Copier
	pruner Pruner
	hooks  HookRunner
}

// NewRunner creates a new Runner with the given leaf workers.
func NewRunner(c Copier, p Pruner, h HookRunner) *Runner {
	return &Runner{
		copier: c,
		pruner: p,
		hooks:  h,
	}
}

// ExecuteSync runs p and returns the outcome of every unit of work. It never
// returns an error: failures are recorded in the Report.
func (r *Runner) ExecuteSync(ctx context.Context, p *planner.SyncPlan) *Report {
	report := &Report{}
	startTime := time.Now()

	if p.Preflight != nil {
		for _, problem := range preflight.Run(ctx, p.SourceBase, p.TargetBase, p.Preflight) {
			plog.Warn("Preflight check failed, continuing", "error", problem)
		}
	}

	release, locked := r.acquireLock(ctx, p.ProjectRoot)
	if locked {
		report.Locked = true
		plog.Info(buildinfo.Name+" finished", "skipped_by_lock", true,
			"duration", time.Since(startTime).Round(time.Millisecond))
		return report
	}
	defer release()

	r.runHooks(ctx, hook.PreSync, p.Hooks)

	prefix := ""
	if p.DryRun {
		prefix = "[DRY RUN] "
	}
	plog.Info(prefix+"Starting sync", "source", p.SourceBase, "target", p.TargetBase, "tasks", len(p.Tasks))

	copyMetrics := pathcopy.NewMetrics(p.Metrics)
	for _, task := range p.Tasks {
		var res pathcopy.Result
		if err := ctx.Err(); err != nil {
			res = pathcopy.Result{Task: task, Err: err}
		} else {
			res = r.copier.Copy(ctx, task, p.DryRun, copyMetrics)
		}
		logCopyResult(res)
		report.Copies = append(report.Copies, res)
	}

	var pruneMetrics pathprune.Metrics = &pathprune.NoopMetrics{}
	if p.Prune != nil {
		pruneMetrics = pathprune.NewMetrics(p.Metrics)
		res := r.pruner.Prune(ctx, *p.Prune, pruneMetrics)
		logPruneResult(res)
		report.Prune = &res
	}

	r.runHooks(ctx, hook.PostSync, p.Hooks)

	copyMetrics.LogSummary("Copy summary")
	pruneMetrics.LogSummary("Prune summary")

	plog.Info(prefix+buildinfo.Name+" finished",
		"copied", report.Copied(),
		"skipped", report.Skipped(),
		"failed", report.Failed(),
		"duration", time.Since(startTime).Round(time.Millisecond),
	)
	return report
}

// acquireLock takes the run lock in the project root. It returns locked=true
// when another run holds the lock. Any other failure is logged and the run
// continues without a lock.
func (r *Runner) acquireLock(ctx context.Context, absProjectRoot string) (release func(), locked bool) {
	plog.Debug("Attempting to acquire lock", "path", absProjectRoot)
	lock, err := lockfile.Acquire(ctx, absProjectRoot, buildinfo.Name)
	if err != nil {
		var lockErr *lockfile.ErrLockActive
		if errors.As(err, &lockErr) {
			plog.Warn("A sync is already running for this project, skipping run.", "details", lockErr.Error())
			return nil, true
		}
		plog.Warn("Could not acquire lock, continuing without it", "path", absProjectRoot, "error", err)
		return func() {}, false
	}
	plog.Debug("Lock acquired successfully.", "path", lock.Path())
	return lock.Release, false
}

func (r *Runner) runHooks(ctx context.Context, stage hook.Stage, p *hook.Plan) {
	if p == nil {
		return
	}

	var err error
	switch stage {
	case hook.PreSync:
		err = r.hooks.RunPreSync(ctx, p)
	case hook.PostSync:
		err = r.hooks.RunPostSync(ctx, p)
	}

	switch {
	case err == nil:
	case hints.IsHint(err):
		plog.Debug("No hooks to run", "stage", stage, "reason", err)
	case errors.Is(err, context.Canceled):
		plog.Info("Hooks skipped due to cancellation", "stage", stage)
	default:
		plog.Warn("Hooks failed, continuing", "stage", stage, "error", err)
	}
}

func logCopyResult(res pathcopy.Result) {
	class := Classify(res.Err)
	switch {
	case res.Err == nil:
		plog.Info("Copied "+string(res.Kind), "source", res.Source, "destination", res.Destination,
			"files", res.FilesCopied, "bytes", res.BytesWritten)
	case class == ClassMissingSource:
		plog.Warn("Source does not exist, skipping", "source", res.Source)
	case class == ClassCanceled:
		plog.Warn("Copy canceled", "source", res.Source, "destination", res.Destination)
	default:
		plog.Error("Copy failed", "source", res.Source, "destination", res.Destination,
			"class", class, "failed_entries", res.FailedEntries, "error", res.Err)
	}
}

func logPruneResult(res pathprune.Result) {
	switch {
	case res.Err != nil:
		plog.Error("Prune failed", "dir", res.Dir, "keep", res.Keep, "class", Classify(res.Err),
			"deleted", len(res.Deleted), "error", res.Err)
	case res.DirMissing:
		plog.Debug("Prune skipped, directory missing", "dir", res.Dir)
	default:
		logArgs := []any{"dir", res.Dir, "keep", res.Keep, "deleted", len(res.Deleted)}
		if res.ArchivePath != "" {
			logArgs = append(logArgs, "archive", res.ArchivePath)
		}
		plog.Info("Pruned spec directory", logArgs...)
	}
}
