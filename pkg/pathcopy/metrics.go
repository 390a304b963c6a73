package pathcopy

import (
	"time"

	"github.com/docsite-tools/docsync/pkg/plog"
	"github.com/docsite-tools/docsync/pkg/util"
)

// Metrics collects counters for a copy run.
type Metrics interface {
	AddFilesCopied(n int64)
	AddDirsCreated(n int64)
	AddBytesWritten(n int64)
	AddEntriesSkipped(n int64)
	AddTasksFailed(n int64)
	LogSummary(msg string)
}

// CopyMetrics is the counting implementation of Metrics.
// It is not safe for concurrent use; the copier is strictly sequential.
type CopyMetrics struct {
	FilesCopied    int64
	DirsCreated    int64
	BytesWritten   int64
	EntriesSkipped int64
	TasksFailed    int64

	startTime time.Time
}

// NewMetrics returns counting metrics when enabled and NoopMetrics otherwise.
func NewMetrics(enabled bool) Metrics {
	if enabled {
		return &CopyMetrics{startTime: time.Now()}
	}
	return &NoopMetrics{}
}

func (m *CopyMetrics) AddFilesCopied(n int64)    { m.FilesCopied += n }
func (m *CopyMetrics) AddDirsCreated(n int64)    { m.DirsCreated += n }
func (m *CopyMetrics) AddBytesWritten(n int64)   { m.BytesWritten += n }
func (m *CopyMetrics) AddEntriesSkipped(n int64) { m.EntriesSkipped += n }
func (m *CopyMetrics) AddTasksFailed(n int64)    { m.TasksFailed += n }

// LogSummary prints the counters with a custom message.
func (m *CopyMetrics) LogSummary(msg string) {
	duration := time.Duration(0)
	if !m.startTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	plog.Info(msg,
		"files_copied", m.FilesCopied,
		"dirs_created", m.DirsCreated,
		"bytes_written", util.ByteCountIEC(m.BytesWritten),
		"entries_skipped", m.EntriesSkipped,
		"tasks_failed", m.TasksFailed,
		"duration", duration.Round(time.Millisecond),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no operations.
type NoopMetrics struct{}

func (m *NoopMetrics) AddFilesCopied(n int64)    {}
func (m *NoopMetrics) AddDirsCreated(n int64)    {}
func (m *NoopMetrics) AddBytesWritten(n int64)   {}
func (m *NoopMetrics) AddEntriesSkipped(n int64) {}
func (m *NoopMetrics) AddTasksFailed(n int64)    {}
func (m *NoopMetrics) LogSummary(msg string)     {}

// Statically assert that our types implement the interface.
var _ Metrics = (*CopyMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)
