package hook

// Plan holds the shell commands run around a sync.
type Plan struct {
	PreSyncCommands  []string
	PostSyncCommands []string

	// WorkDir is the directory the commands run in, normally the project root.
	WorkDir string

	// Global Flags
	DryRun bool
}
