package pathcopy

import "github.com/docsite-tools/docsync/pkg/hints"

// Kind describes what a task's source turned out to be.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
	// KindMissing covers sources that do not exist or are neither a regular
	// file nor a directory.
	KindMissing Kind = "missing"
)

// Result is the outcome of a single Copy call.
type Result struct {
	Task
	Kind Kind

	FilesCopied  int64
	BytesWritten int64
	// FailedEntries counts files or directories inside a tree that could not
	// be copied. The rest of the tree is still copied.
	FailedEntries int

	// Err is nil on success. A missing source yields a hint (see ErrSourceMissing).
	Err error
}

// Failed reports whether the task hit a real error, as opposed to a skipped source.
func (r Result) Failed() bool {
	return r.Err != nil && !hints.IsHint(r.Err)
}

// Skipped reports whether the task was skipped because the source was missing.
func (r Result) Skipped() bool {
	return hints.Is(r.Err, ErrSourceMissing)
}
