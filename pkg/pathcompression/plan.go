package pathcompression

// Plan describes one archive to write.
type Plan struct {
	// BaseDir is the absolute directory the entries are relative to.
	BaseDir string
	// Entries are names relative to BaseDir. Directories are added recursively.
	Entries []string
	// ArchivePath is the absolute path of the archive file to create.
	ArchivePath string

	Format Format
	Level  Level

	// Global Flags
	DryRun  bool
	Metrics bool
}
