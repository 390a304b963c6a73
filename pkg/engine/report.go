package engine

import (
	"context"
	"errors"
	"io/fs"

	"github.com/docsite-tools/docsync/pkg/hints"
	"github.com/docsite-tools/docsync/pkg/pathcopy"
	"github.com/docsite-tools/docsync/pkg/pathprune"
)

// ErrorClass is the coarse category an error is logged under.
type ErrorClass string

const (
	ClassNone          ErrorClass = ""
	ClassMissingSource ErrorClass = "missing-source"
	ClassNotFound      ErrorClass = "not-found"
	ClassPermission    ErrorClass = "permission-denied"
	ClassCanceled      ErrorClass = "canceled"
	ClassUnclassified  ErrorClass = "unclassified"
)

// Classify maps err onto an ErrorClass. The wrapped chain is inspected, so
// errors returned by the copier and the pruner classify correctly.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case hints.Is(err, pathcopy.ErrSourceMissing):
		return ClassMissingSource
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassCanceled
	case errors.Is(err, fs.ErrNotExist):
		return ClassNotFound
	case errors.Is(err, fs.ErrPermission):
		return ClassPermission
	default:
		return ClassUnclassified
	}
}

// Report collects the outcome of one sync run.
type Report struct {
	// Copies holds one result per copy task, in plan order.
	Copies []pathcopy.Result
	// Prune is nil when pruning was disabled or never reached.
	Prune *pathprune.Result
	// Locked is set when another run held the lock and nothing was done.
	Locked bool
}

// Copied returns the number of tasks that completed without error.
func (r *Report) Copied() int {
	var n int
	for _, res := range r.Copies {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Skipped returns the number of tasks whose source was missing.
func (r *Report) Skipped() int {
	var n int
	for _, res := range r.Copies {
		if res.Skipped() {
			n++
		}
	}
	return n
}

// Failed returns the number of failed units of work: copy tasks, including
// canceled ones, plus the prune pass.
func (r *Report) Failed() int {
	var n int
	for _, res := range r.Copies {
		if res.Failed() {
			n++
		}
	}
	if r.Prune != nil && r.Prune.Err != nil {
		n++
	}
	return n
}
