package pathcompression

import (
	"time"

	"github.com/docsite-tools/docsync/pkg/plog"
	"github.com/docsite-tools/docsync/pkg/util"
)

// Metrics collects counters for a compression run.
type Metrics interface {
	AddEntriesProcessed(n int64)
	AddBytesRead(n int64)
	AddBytesWritten(n int64)
	LogSummary(msg string)
}

// CompressionMetrics is the counting implementation of Metrics.
type CompressionMetrics struct {
	EntriesProcessed int64
	BytesRead        int64
	BytesWritten     int64

	startTime time.Time
}

func (m *CompressionMetrics) AddEntriesProcessed(n int64) { m.EntriesProcessed += n }
func (m *CompressionMetrics) AddBytesRead(n int64)        { m.BytesRead += n }
func (m *CompressionMetrics) AddBytesWritten(n int64)     { m.BytesWritten += n }

// LogSummary logs the counters and the achieved ratio.
func (m *CompressionMetrics) LogSummary(msg string) {
	ratio := 0.0
	if m.BytesRead > 0 {
		ratio = float64(m.BytesWritten) / float64(m.BytesRead)
	}
	duration := time.Duration(0)
	if !m.startTime.IsZero() {
		duration = time.Since(m.startTime)
	}
	plog.Info(msg,
		"entries", m.EntriesProcessed,
		"read", util.ByteCountIEC(m.BytesRead),
		"written", util.ByteCountIEC(m.BytesWritten),
		"ratio", ratio,
		"duration", duration.Round(time.Millisecond),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no operations.
type NoopMetrics struct{}

func (m *NoopMetrics) AddEntriesProcessed(n int64) {}
func (m *NoopMetrics) AddBytesRead(n int64)        {}
func (m *NoopMetrics) AddBytesWritten(n int64)     {}
func (m *NoopMetrics) LogSummary(msg string)       {}

var _ Metrics = (*CompressionMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)
