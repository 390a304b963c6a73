package pathcompression

import (
	"archive/tar"
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/docsite-tools/docsync/pkg/plog"
	"github.com/docsite-tools/docsync/pkg/util"
)

// tarTask holds the state of a single Compress call.
type tarTask struct {
	*PathCompressor

	ctx     context.Context
	plan    Plan
	metrics Metrics

	tw *tar.Writer
}

func (t *tarTask) execute() (retErr error) {
	plog.Notice("COMPRESS", "base", t.plan.BaseDir, "archive", t.plan.ArchivePath, "entries", len(t.plan.Entries))

	if t.plan.DryRun {
		for _, rel := range t.plan.Entries {
			plog.Notice("[DRY RUN] ADD", "entry", filepath.ToSlash(rel))
		}
		return nil
	}

	absArchiveDir := filepath.Dir(t.plan.ArchivePath)
	if err := os.MkdirAll(absArchiveDir, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("failed to create archive directory %s: %w", absArchiveDir, err)
	}

	// 1. Create Temp File
	trgF, err := os.CreateTemp(absArchiveDir, ".docsync-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	tempTrgPath := trgF.Name()

	// Ensure cleanup on error
	defer func() {
		if retErr != nil {
			trgF.Close()
			os.Remove(tempTrgPath)
		}
	}()

	// 2. Write Archive Content
	if err := t.writeArchive(trgF); err != nil {
		return err
	}

	// 3. Close explicitly
	if err := trgF.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// 4. Atomic Rename
	if err := os.Rename(tempTrgPath, t.plan.ArchivePath); err != nil {
		return fmt.Errorf("failed to rename temp archive to final path: %w", err)
	}
	return nil
}

func (t *tarTask) writeArchive(trgF *os.File) (retErr error) {
	mw := &compressMetricWriter{w: trgF, metrics: t.metrics}
	bufWriter := bufio.NewWriterSize(mw, len(t.ioBuffer))

	compressedWriter, err := newCompressedWriter(bufWriter, t.plan.Format, t.plan.Level)
	if err != nil {
		return err
	}

	t.tw = tar.NewWriter(compressedWriter)

	defer func() {
		if err := t.tw.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("tar writer close failed: %w", err)
		}
		if err := compressedWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("compressed writer close failed: %w", err)
		}
		if err := bufWriter.Flush(); err != nil && retErr == nil {
			retErr = fmt.Errorf("buffer flush failed: %w", err)
		}
	}()

	for _, rel := range t.plan.Entries {
		if err := t.addEntry(rel); err != nil {
			return err
		}
	}
	return nil
}

func newCompressedWriter(w io.Writer, format Format, level Level) (io.WriteCloser, error) {
	switch format {
	case TarZst:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level.zstdLevel()))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return zw, nil
	case TarGz:
		gw, err := pgzip.NewWriterLevel(w, level.gzipLevel())
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		return gw, nil
	default:
		return nil, fmt.Errorf("unsupported compression format %q", string(format))
	}
}

// addEntry walks one top-level entry. Symlinks are stored as links, never followed.
func (t *tarTask) addEntry(relEntry string) error {
	absRoot := filepath.Join(t.plan.BaseDir, relEntry)
	return filepath.WalkDir(absRoot, func(absSrcPath string, d fs.DirEntry, walkErr error) error {
		if err := t.ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return walkErr
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info for %s: %w", absSrcPath, err)
		}

		relPathKey, err := filepath.Rel(t.plan.BaseDir, absSrcPath)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", absSrcPath, err)
		}
		relPathKey = filepath.ToSlash(relPathKey)

		switch mode := info.Mode(); {
		case mode.IsDir():
			err = t.writeDir(relPathKey, info)
		case mode&os.ModeSymlink != 0:
			err = t.writeSymlink(absSrcPath, relPathKey, info)
		case mode.IsRegular():
			err = t.writeFile(absSrcPath, relPathKey, info)
		default:
			plog.Warn("Skipping special file in archive", "path", absSrcPath, "mode", mode.String())
			return nil
		}
		if err != nil {
			return err
		}

		plog.Notice("ADD", "entry", relPathKey)
		t.metrics.AddEntriesProcessed(1)
		return nil
	})
}

func (t *tarTask) writeDir(relPathKey string, info os.FileInfo) error {
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to create tar header for %s: %w", relPathKey, err)
	}
	header.Name = relPathKey + "/"
	return t.tw.WriteHeader(header)
}

func (t *tarTask) writeSymlink(absSrcPath, relPathKey string, info os.FileInfo) error {
	linkTarget, err := os.Readlink(absSrcPath)
	if err != nil {
		return fmt.Errorf("failed to read link %s: %w", absSrcPath, err)
	}
	t.metrics.AddBytesRead(int64(len(linkTarget)))

	header, err := tar.FileInfoHeader(info, linkTarget)
	if err != nil {
		return fmt.Errorf("failed to create tar header for %s: %w", relPathKey, err)
	}
	header.Name = relPathKey
	return t.tw.WriteHeader(header)
}

func (t *tarTask) writeFile(absSrcPath, relPathKey string, info os.FileInfo) error {
	f, err := secureFileOpen(absSrcPath, info)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", absSrcPath, err)
	}
	defer f.Close()

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to create tar header for %s: %w", relPathKey, err)
	}
	header.Name = relPathKey

	if err := t.tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", relPathKey, err)
	}

	mr := &compressMetricReader{r: f, metrics: t.metrics}
	if _, err := io.CopyBuffer(t.tw, mr, t.ioBuffer); err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", relPathKey, err)
	}
	return nil
}

// compressMetricWriter wraps an io.Writer and updates metrics on every write.
type compressMetricWriter struct {
	w       io.Writer
	metrics Metrics
}

func (mw *compressMetricWriter) Write(p []byte) (n int, err error) {
	n, err = mw.w.Write(p)
	if n > 0 {
		mw.metrics.AddBytesWritten(int64(n))
	}
	return
}

// compressMetricReader wraps an io.Reader and updates metrics on every read.
type compressMetricReader struct {
	r       io.Reader
	metrics Metrics
}

func (mr *compressMetricReader) Read(p []byte) (n int, err error) {
	n, err = mr.r.Read(p)
	if n > 0 {
		mr.metrics.AddBytesRead(int64(n))
	}
	return
}

// secureFileOpen opens the file and verifies it is still the one described by
// expected. A size change would corrupt the tar stream, since the header has
// already been computed from expected.
func secureFileOpen(absFilePath string, expected os.FileInfo) (*os.File, error) {
	f, err := os.Open(absFilePath)
	if err != nil {
		return nil, err
	}

	openedInfo, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat opened file: %w", err)
	}

	if !os.SameFile(expected, openedInfo) {
		f.Close()
		return nil, fmt.Errorf("file changed while archiving: %s", absFilePath)
	}
	if openedInfo.Size() != expected.Size() {
		f.Close()
		return nil, fmt.Errorf("file size changed while archiving: %s", absFilePath)
	}
	return f, nil
}
