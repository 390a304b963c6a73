package pathprune

import (
	"time"

	"github.com/docsite-tools/docsync/pkg/plog"
)

// Metrics collects counters for a prune pass.
type Metrics interface {
	AddFilesDeleted(n int64)
	AddDirsDeleted(n int64)
	AddEntriesKept(n int64)
	LogSummary(msg string)
}

// PruneMetrics is the counting implementation of Metrics.
type PruneMetrics struct {
	FilesDeleted int64
	DirsDeleted  int64
	EntriesKept  int64

	startTime time.Time
}

// NewMetrics returns counting metrics when enabled and NoopMetrics otherwise.
func NewMetrics(enabled bool) Metrics {
	if enabled {
		return &PruneMetrics{startTime: time.Now()}
	}
	return &NoopMetrics{}
}

func (m *PruneMetrics) AddFilesDeleted(n int64) { m.FilesDeleted += n }
func (m *PruneMetrics) AddDirsDeleted(n int64)  { m.DirsDeleted += n }
func (m *PruneMetrics) AddEntriesKept(n int64)  { m.EntriesKept += n }

func (m *PruneMetrics) LogSummary(msg string) {
	duration := time.Duration(0)
	if !m.startTime.IsZero() {
		duration = time.Since(m.startTime)
	}
	plog.Info(msg,
		"files_deleted", m.FilesDeleted,
		"dirs_deleted", m.DirsDeleted,
		"entries_kept", m.EntriesKept,
		"duration", duration.Round(time.Millisecond),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no operations.
type NoopMetrics struct{}

func (m *NoopMetrics) AddFilesDeleted(n int64) {}
func (m *NoopMetrics) AddDirsDeleted(n int64)  {}
func (m *NoopMetrics) AddEntriesKept(n int64)  {}
func (m *NoopMetrics) LogSummary(msg string)   {}

var _ Metrics = (*PruneMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)
