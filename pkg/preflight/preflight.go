// Package preflight provides advisory checks that run before a sync. None of
// them change the filesystem on Unix, and none of them stop the run: the
// caller logs every returned problem as a warning and carries on, because
// each copy task reports its own failure anyway.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/docsite-tools/docsync/pkg/util"
)

// Run executes the checks enabled in p and returns every problem found.
func Run(ctx context.Context, absSourceBase, absTargetBase string, p *Plan) []error {
	var problems []error

	if p.PathNesting {
		if err := CheckPathNesting(absSourceBase, absTargetBase); err != nil {
			problems = append(problems, err)
		}
	}
	if ctx.Err() != nil {
		return append(problems, ctx.Err())
	}
	if p.SourceAccessible {
		if err := CheckSourceAccessible(absSourceBase); err != nil {
			problems = append(problems, err)
		}
	}
	if ctx.Err() != nil {
		return append(problems, ctx.Err())
	}
	if p.TargetWritable {
		if err := CheckTargetWritable(absTargetBase); err != nil {
			problems = append(problems, err)
		}
	}
	return problems
}

// CheckSourceAccessible validates that the source base exists and is a directory.
func CheckSourceAccessible(srcPath string) error {
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("source directory %s does not exist: %w", srcPath, err)
		}
		return fmt.Errorf("cannot stat source directory %s: %w", srcPath, err)
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("source path %s is not a directory", srcPath)
	}
	return nil
}

// CheckTargetWritable verifies that the target base, or its deepest existing
// ancestor when it does not exist yet, is a writable directory.
func CheckTargetWritable(targetPath string) error {
	dir := targetPath
	for {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("target path %s exists but is not a directory", dir)
			}
			return checkDirWritable(dir)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("cannot access target path %s: %w", dir, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return fmt.Errorf("no existing ancestor found for target path %s", targetPath)
		}
		dir = parent
	}
}

// CheckPathNesting reports source and target bases that are the same or
// contain one another. Copying into such a layout recurses or overwrites the source.
func CheckPathNesting(absSourceBase, absTargetBase string) error {
	if util.IsWithin(absSourceBase, absTargetBase) {
		return fmt.Errorf("target %s is the same as or inside source %s", absTargetBase, absSourceBase)
	}
	if util.IsWithin(absTargetBase, absSourceBase) {
		return fmt.Errorf("source %s is inside target %s", absSourceBase, absTargetBase)
	}
	return nil
}
