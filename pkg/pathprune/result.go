package pathprune

// Result is the outcome of a prune pass.
type Result struct {
	Dir  string
	Keep string

	// DirMissing is set when Dir did not exist. This is not an error.
	DirMissing bool
	// Deleted holds the absolute paths removed, in the order they were removed.
	// In dry-run mode it holds the paths that would have been removed.
	Deleted []string
	// ArchivePath is the archive written before deletion, if any.
	ArchivePath string

	Err error
}
