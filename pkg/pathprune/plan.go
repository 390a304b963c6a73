package pathprune

import "github.com/docsite-tools/docsync/pkg/pathcompression"

// Plan describes one prune pass over a single directory.
type Plan struct {
	// Dir is the absolute directory whose immediate children are pruned.
	Dir string
	// Keep is the absolute path of the one child that survives.
	Keep string

	Archive ArchivePlan

	// Global Flags
	DryRun  bool
	Metrics bool
}

// ArchivePlan controls whether pruned entries are packed into an archive
// before they are deleted.
type ArchivePlan struct {
	Enabled bool
	// Dir is the absolute directory the archive is written to. It must lie
	// outside Plan.Dir.
	Dir    string
	Format pathcompression.Format
	Level  pathcompression.Level
}
