// Package pathcompression packs a set of files and directories into a single
// tar.gz or tar.zst archive. It is used to keep a copy of pruned spec files
// before they are deleted.
//
// Archives are written to a temporary file next to the final path and renamed
// into place once complete, so a failed run never leaves a partial archive
// under the final name.
package pathcompression

import (
	"context"
	"fmt"
	"time"

	"github.com/docsite-tools/docsync/pkg/plog"
)

// TimestampLayout is the UTC timestamp embedded in archive file names.
const TimestampLayout = "20060102T150405Z"

const defaultBufferSizeKB = 256

type PathCompressor struct {
	ioBuffer []byte
}

// NewPathCompressor creates a new PathCompressor with an I/O buffer of bufferSizeKB kilobytes.
func NewPathCompressor(bufferSizeKB int) *PathCompressor {
	if bufferSizeKB <= 0 {
		bufferSizeKB = defaultBufferSizeKB
	}
	return &PathCompressor{
		ioBuffer: make([]byte, bufferSizeKB*1024),
	}
}

// ArchiveFileName builds "<prefix>_<UTC timestamp><ext>", e.g.
// "cobo_waas2_openapi_spec_20260102T030405Z.tar.gz".
func ArchiveFileName(prefix string, timestampUTC time.Time, format Format) string {
	return fmt.Sprintf("%s_%s%s", prefix, timestampUTC.UTC().Format(TimestampLayout), format.Extension())
}

// Compress writes the archive described by p.
func (c *PathCompressor) Compress(ctx context.Context, p Plan) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if len(p.Entries) == 0 {
		plog.Debug("Nothing to compress", "base", p.BaseDir)
		return nil
	}

	if _, ok := formatToString[p.Format]; !ok {
		return fmt.Errorf("unsupported compression format %q", string(p.Format))
	}

	var m Metrics
	if p.Metrics {
		m = &CompressionMetrics{startTime: time.Now()}
	} else {
		m = &NoopMetrics{}
	}

	t := &tarTask{
		PathCompressor: c,
		ctx:            ctx,
		plan:           p,
		metrics:        m,
	}
	if err := t.execute(); err != nil {
		return err
	}
	if !p.DryRun {
		m.LogSummary("Compression summary")
	}
	return nil
}
