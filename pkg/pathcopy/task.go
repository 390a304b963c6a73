package pathcopy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/docsite-tools/docsync/pkg/plog"
	"github.com/docsite-tools/docsync/pkg/util"
)

// copyTask holds the mutable state for a single Copy call.
type copyTask struct {
	*PathCopier

	ctx     context.Context
	dryRun  bool
	metrics Metrics
	result  *Result

	// firstErr is the first per-entry failure inside a directory tree.
	firstErr error
}

// copyFileEntry handles a task whose source is a regular file.
func (t *copyTask) copyFileEntry(absSrcPath, absTrgPath string, srcInfo os.FileInfo) error {
	if trgInfo, err := os.Stat(absTrgPath); err == nil && trgInfo.IsDir() {
		return fmt.Errorf("cannot copy file %s: destination %s is a directory", absSrcPath, absTrgPath)
	}

	if t.dryRun {
		plog.Notice("[DRY RUN] COPY", "source", absSrcPath, "target", absTrgPath)
		return nil
	}

	absTrgDir := filepath.Dir(absTrgPath)
	if err := os.MkdirAll(absTrgDir, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("failed to create parent directory %s: %w", absTrgDir, err)
	}

	return t.copyFileSafe(absSrcPath, absTrgPath, srcInfo)
}

// copyTreeEntry handles a task whose source is a directory.
func (t *copyTask) copyTreeEntry(absSrcPath, absTrgPath string, srcInfo os.FileInfo) error {
	if err := t.copyDir(absSrcPath, absTrgPath, srcInfo, nil); err != nil {
		return err
	}
	if t.result.FailedEntries > 0 {
		return fmt.Errorf("%d entries under %s failed to copy, first error: %w", t.result.FailedEntries, absSrcPath, t.firstErr)
	}
	return nil
}

// copyDir merges the directory absSrcPath into absTrgPath. Failures of single
// entries are recorded and the walk continues. The returned error is only set
// for conditions that stop the whole walk (cancellation, or the top directory
// itself cannot be created).
// ancestors holds the source directories above this one and is used to detect
// symlink loops.
func (t *copyTask) copyDir(absSrcPath, absTrgPath string, srcInfo os.FileInfo, ancestors []os.FileInfo) error {
	if err := t.ctx.Err(); err != nil {
		return err
	}

	if err := t.ensureDir(absTrgPath, srcInfo.Mode().Perm()); err != nil {
		if ancestors == nil {
			return err
		}
		t.recordFailure(absSrcPath, err)
		return nil
	}

	entries, err := os.ReadDir(absSrcPath)
	if err != nil {
		err = fmt.Errorf("failed to read directory %s: %w", absSrcPath, err)
		if ancestors == nil {
			return err
		}
		t.recordFailure(absSrcPath, err)
		return nil
	}

	ancestors = append(ancestors, srcInfo)

	for _, entry := range entries {
		if err := t.ctx.Err(); err != nil {
			return err
		}

		absChildSrc := filepath.Join(absSrcPath, entry.Name())
		absChildTrg := filepath.Join(absTrgPath, entry.Name())

		// Follow symlinks so the link target's content is copied.
		childInfo, err := os.Stat(absChildSrc)
		if err != nil {
			t.recordFailure(absChildSrc, fmt.Errorf("cannot stat %s: %w", absChildSrc, err))
			continue
		}

		switch mode := childInfo.Mode(); {
		case mode.IsDir():
			if isAncestor(ancestors, childInfo) {
				t.recordFailure(absChildSrc, fmt.Errorf("symlink loop detected at %s", absChildSrc))
				continue
			}
			if err := t.copyDir(absChildSrc, absChildTrg, childInfo, ancestors); err != nil {
				return err
			}

		case mode.IsRegular():
			if t.dryRun {
				plog.Notice("[DRY RUN] COPY", "source", absChildSrc, "target", absChildTrg)
				continue
			}
			if err := t.copyFileSafe(absChildSrc, absChildTrg, childInfo); err != nil {
				t.recordFailure(absChildSrc, err)
			}

		default:
			plog.Warn("Skipping special file", "path", absChildSrc, "mode", mode.String())
			t.metrics.AddEntriesSkipped(1)
		}
	}
	return nil
}

// ensureDir makes sure absTrgPath is a directory carrying perm plus the
// owner write and execute bits, so later runs can always write into it.
func (t *copyTask) ensureDir(absTrgPath string, perm os.FileMode) error {
	perm = util.WithUserWritePermission(util.WithUserExecutePermission(perm))

	trgInfo, err := os.Stat(absTrgPath)
	switch {
	case err == nil && !trgInfo.IsDir():
		return fmt.Errorf("cannot merge directory into %s: destination exists and is not a directory", absTrgPath)
	case err == nil:
		if t.dryRun || trgInfo.Mode().Perm() == perm {
			return nil
		}
		if err := os.Chmod(absTrgPath, perm); err != nil {
			return fmt.Errorf("failed to set permissions on directory %s: %w", absTrgPath, err)
		}
		return nil
	case !os.IsNotExist(err):
		return fmt.Errorf("cannot stat destination directory %s: %w", absTrgPath, err)
	}

	if t.dryRun {
		plog.Notice("[DRY RUN] MKDIR", "path", absTrgPath)
		return nil
	}
	if err := os.MkdirAll(absTrgPath, perm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", absTrgPath, err)
	}
	// MkdirAll is subject to the umask; apply the exact bits.
	if err := os.Chmod(absTrgPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions on directory %s: %w", absTrgPath, err)
	}
	t.metrics.AddDirsCreated(1)
	plog.Notice("MKDIR", "path", absTrgPath)
	return nil
}

// copyFileSafe copies a single file. It writes to a temporary file in the
// destination directory and renames it into place, so the destination is
// either the old or the new content, and a read-only destination file is
// still replaced. A destination symlink is written through: its target gets
// the new content and the link stays. Permission bits are copied from the
// source; timestamps are not.
func (t *copyTask) copyFileSafe(absSrcPath, absTrgPath string, srcInfo os.FileInfo) error {
	// 1. Open source file.
	in, err := os.Open(absSrcPath)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", absSrcPath, err)
	}
	defer in.Close()

	absWritePath, err := resolveWriteTarget(absTrgPath)
	if err != nil {
		return err
	}
	absTrgDir := filepath.Dir(absWritePath)

	// 2. Create a temporary file in the destination directory.
	out, err := os.CreateTemp(absTrgDir, ".docsync-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", absTrgDir, err)
	}
	defer out.Close() // Ensure closed on error.

	absTempPath := out.Name()
	// If the rename succeeds, absTempPath is cleared and this is a no-op.
	defer func() {
		if absTempPath != "" {
			os.Remove(absTempPath)
		}
	}()

	// 3. Copy content.
	bytesWritten, err := io.CopyBuffer(out, in, t.ioBuffer)
	if err != nil {
		return fmt.Errorf("failed to copy content from %s to %s: %w", absSrcPath, absTempPath, err)
	}

	// 4. Copy file permissions from the source.
	if err := out.Chmod(srcInfo.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set permissions on temporary file %s: %w", absTempPath, err)
	}

	// 5. Close explicitly to surface write-back errors.
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file %s: %w", absTempPath, err)
	}

	// 6. Atomically move the temporary file to the final destination.
	if err := os.Rename(absTempPath, absWritePath); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", absWritePath, err)
	}
	absTempPath = ""

	t.result.FilesCopied++
	t.result.BytesWritten += bytesWritten
	t.metrics.AddFilesCopied(1)
	t.metrics.AddBytesWritten(bytesWritten)
	plog.Notice("COPY", "source", absSrcPath, "target", absTrgPath)
	return nil
}

// resolveWriteTarget returns the file that receives the content for
// absTrgPath. For a symlink that is the file it points to, even when that
// file does not exist yet.
func resolveWriteTarget(absTrgPath string) (string, error) {
	info, err := os.Lstat(absTrgPath)
	if err != nil || info.Mode()&fs.ModeSymlink == 0 {
		return absTrgPath, nil
	}

	resolved, err := filepath.EvalSymlinks(absTrgPath)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to resolve destination symlink %s: %w", absTrgPath, err)
	}

	// Dangling link: create the file it names.
	linkTarget, err := os.Readlink(absTrgPath)
	if err != nil {
		return "", fmt.Errorf("failed to read destination symlink %s: %w", absTrgPath, err)
	}
	if !filepath.IsAbs(linkTarget) {
		linkTarget = filepath.Join(filepath.Dir(absTrgPath), linkTarget)
	}
	return filepath.Clean(linkTarget), nil
}

func (t *copyTask) recordFailure(absPath string, err error) {
	t.result.FailedEntries++
	if t.firstErr == nil {
		t.firstErr = err
	}
	plog.Debug("Entry failed to copy", "path", absPath, "error", err)
}

func isAncestor(ancestors []os.FileInfo, info os.FileInfo) bool {
	for _, a := range ancestors {
		if os.SameFile(a, info) {
			return true
		}
	}
	return false
}
