// Package pathcopy copies manifest entries from the source site to the
// target site. A file entry replaces the destination file; a directory entry
// is merged into the destination tree, overwriting same-named files and
// leaving destination-only files in place.
//
// Copy never aborts the caller: every outcome, including failures, is
// returned as a Result so the orchestrator can log it and move on to the
// next entry.
package pathcopy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/docsite-tools/docsync/pkg/hints"
)

// ErrSourceMissing marks a task whose source does not exist or is neither a
// regular file nor a directory. It is a hint: the task is skipped, not failed.
var ErrSourceMissing = hints.New("source path does not exist or is not a file or directory")

// defaultBufferSizeKB is used when the caller passes a non-positive buffer size.
const defaultBufferSizeKB = 256

// PathCopier copies files and directory trees. It owns a single I/O buffer
// and must not be used from more than one goroutine at a time.
type PathCopier struct {
	ioBuffer []byte
}

// NewPathCopier creates a PathCopier with an I/O buffer of bufferSizeKB kilobytes.
func NewPathCopier(bufferSizeKB int) *PathCopier {
	if bufferSizeKB <= 0 {
		bufferSizeKB = defaultBufferSizeKB
	}
	return &PathCopier{
		ioBuffer: make([]byte, bufferSizeKB*1024),
	}
}

// Copy copies t.Source to t.Destination. Symlinks are followed.
func (c *PathCopier) Copy(ctx context.Context, t Task, dryRun bool, m Metrics) Result {
	res := Result{Task: t}
	if m == nil {
		m = &NoopMetrics{}
	}

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	srcInfo, err := os.Stat(t.Source)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		// The source may exist but is not accessible (e.g. permission denied).
		res.Err = fmt.Errorf("cannot stat source %s: %w", t.Source, err)
		m.AddTasksFailed(1)
		return res
	}

	task := &copyTask{
		PathCopier: c,
		ctx:        ctx,
		dryRun:     dryRun,
		metrics:    m,
		result:     &res,
	}

	switch {
	case err == nil && srcInfo.Mode().IsRegular():
		res.Kind = KindFile
		res.Err = task.copyFileEntry(t.Source, t.Destination, srcInfo)
	case err == nil && srcInfo.IsDir():
		res.Kind = KindDirectory
		res.Err = task.copyTreeEntry(t.Source, t.Destination, srcInfo)
	default:
		res.Kind = KindMissing
		res.Err = fmt.Errorf("%s: %w", t.Source, ErrSourceMissing)
		m.AddEntriesSkipped(1)
		return res
	}

	if res.Err != nil {
		m.AddTasksFailed(1)
	}
	return res
}
