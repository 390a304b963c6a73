// Package pathprune reduces a directory to a single retained entry. Every
// other immediate child (files, symlinks and whole subtrees) is removed.
//
// The pass stops at the first failure and leaves the remaining children in
// place. When archiving is enabled, the children scheduled for deletion are
// first packed into one archive; if that fails, nothing is deleted.
package pathprune

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/docsite-tools/docsync/pkg/pathcompression"
	"github.com/docsite-tools/docsync/pkg/plog"
)

type PathPruner struct {
	compressor *pathcompression.PathCompressor
	// now is replaced in tests to get stable archive names.
	now func() time.Time
}

// NewPathPruner creates a PathPruner. The compressor is only used when a
// plan enables archiving and may be nil otherwise.
func NewPathPruner(compressor *pathcompression.PathCompressor) *PathPruner {
	return &PathPruner{
		compressor: compressor,
		now:        time.Now,
	}
}

// pruneItem is one child scheduled for deletion.
type pruneItem struct {
	name    string
	absPath string
	isDir   bool
}

// Prune deletes every immediate child of p.Dir except p.Keep.
func (pp *PathPruner) Prune(ctx context.Context, p Plan, m Metrics) Result {
	res := Result{Dir: p.Dir, Keep: p.Keep}
	if m == nil {
		m = &NoopMetrics{}
	}

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	info, err := os.Stat(p.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			res.DirMissing = true
			plog.Info("Prune directory does not exist, nothing to prune", "dir", p.Dir)
			return res
		}
		res.Err = fmt.Errorf("cannot stat prune directory %s: %w", p.Dir, err)
		return res
	}
	if !info.IsDir() {
		res.Err = fmt.Errorf("prune path %s is not a directory", p.Dir)
		return res
	}

	items, err := pp.collect(p, m)
	if err != nil {
		res.Err = err
		return res
	}
	if len(items) == 0 {
		plog.Info("Nothing to prune", "dir", p.Dir, "keep", p.Keep)
		return res
	}

	if p.Archive.Enabled {
		archivePath, err := pp.archive(ctx, p, items)
		if err != nil {
			res.Err = fmt.Errorf("failed to archive entries before pruning, nothing was deleted: %w", err)
			return res
		}
		res.ArchivePath = archivePath
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		if err := pp.remove(item, p.DryRun, m); err != nil {
			res.Err = err
			return res
		}
		res.Deleted = append(res.Deleted, item.absPath)
	}
	return res
}

// collect lists the children of p.Dir that are to be deleted, sorted by name.
func (pp *PathPruner) collect(p Plan, m Metrics) ([]pruneItem, error) {
	// ReadDir returns entries sorted by file name.
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read prune directory %s: %w", p.Dir, err)
	}

	absKeep := filepath.Clean(p.Keep)
	var items []pruneItem
	for _, entry := range entries {
		absPath := filepath.Join(p.Dir, entry.Name())
		if filepath.Clean(absPath) == absKeep {
			plog.Debug("Keeping entry", "path", absPath)
			m.AddEntriesKept(1)
			continue
		}

		switch mode := entry.Type(); {
		case mode.IsDir():
			items = append(items, pruneItem{name: entry.Name(), absPath: absPath, isDir: true})
		case mode.IsRegular(), mode&fs.ModeSymlink != 0:
			items = append(items, pruneItem{name: entry.Name(), absPath: absPath})
		default:
			plog.Warn("Skipping special file during prune", "path", absPath, "mode", mode.String())
			m.AddEntriesKept(1)
		}
	}
	return items, nil
}

func (pp *PathPruner) archive(ctx context.Context, p Plan, items []pruneItem) (string, error) {
	if pp.compressor == nil {
		return "", errors.New("archiving is enabled but no compressor is configured")
	}

	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.name
	}

	archiveName := pathcompression.ArchiveFileName(filepath.Base(p.Dir), pp.now(), p.Archive.Format)
	archivePath := filepath.Join(p.Archive.Dir, archiveName)

	err := pp.compressor.Compress(ctx, pathcompression.Plan{
		BaseDir:     p.Dir,
		Entries:     names,
		ArchivePath: archivePath,
		Format:      p.Archive.Format,
		Level:       p.Archive.Level,
		DryRun:      p.DryRun,
		Metrics:     p.Metrics,
	})
	if err != nil {
		return "", err
	}
	if !p.DryRun {
		plog.Info("Archived entries before pruning", "archive", archivePath, "entries", len(names))
	}
	return archivePath, nil
}

// remove deletes a single child. Symlinks are removed themselves, never their targets.
func (pp *PathPruner) remove(item pruneItem, dryRun bool, m Metrics) error {
	if item.isDir {
		if dryRun {
			plog.Notice("[DRY RUN] DELETE DIR", "path", item.absPath)
			return nil
		}
		if err := os.RemoveAll(item.absPath); err != nil {
			return fmt.Errorf("failed to delete directory %s: %w", item.absPath, err)
		}
		m.AddDirsDeleted(1)
		plog.Notice("DELETE DIR", "path", item.absPath)
		return nil
	}

	if dryRun {
		plog.Notice("[DRY RUN] DELETE", "path", item.absPath)
		return nil
	}
	if err := os.Remove(item.absPath); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", item.absPath, err)
	}
	m.AddFilesDeleted(1)
	plog.Notice("DELETE", "path", item.absPath)
	return nil
}
