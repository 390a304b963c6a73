package flagparse

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docsite-tools/docsync/pkg/buildinfo"
)

// cliFlags holds pointers to all possible command-line flags.
// Fields are pointers so we can distinguish between "not registered for this command" (nil)
// and "registered but not set by user" (non-nil pointer to zero value).
type cliFlags struct {
	// Global
	Root     *string
	Config   *string
	LogLevel *string

	// Sync specific
	DryRun        *bool
	Metrics       *bool
	NoPrune       *bool
	ArchivePruned *bool
	ArchiveDir    *string
	ArchiveFormat *string
	Entries       *string
	PreSyncHooks  *string
	PostSyncHooks *string
	BufferSizeKB  *int
	SkipPreflight *bool

	// Init specific
	Force *bool
}

func registerGlobalFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Root = fs.String("root", "", "Project root containing both documentation sites. Defaults to two levels above the working directory.")
	f.Config = fs.String("config", "", "Path to the YAML config file. Defaults to 'docsync.yaml' in the project root.")
	f.LogLevel = fs.String("log-level", "info", "Set the logging level: 'debug', 'notice', 'info', 'warn', 'error'.")
}

func registerSyncFlags(fs *flag.FlagSet, f *cliFlags) {
	f.DryRun = fs.Bool("dry-run", false, "Show what would be done without making any changes.")
	f.Metrics = fs.Bool("metrics", false, "Log file and byte counters at the end of the run.")
	f.NoPrune = fs.Bool("no-prune", false, "Skip pruning the spec directory.")
	f.ArchivePruned = fs.Bool("archive-pruned", false, "Pack pruned spec entries into an archive before deleting them.")
	f.ArchiveDir = fs.String("archive-dir", "", "Directory for archives of pruned entries, relative to the project root.")
	f.ArchiveFormat = fs.String("archive-format", "", "Archive format: 'tar.gz' or 'tar.zst'.")
	f.Entries = fs.String("entries", "", "Comma-separated list of entries to copy, replacing the configured list.")
	f.PreSyncHooks = fs.String("pre-sync-hooks", "", "Comma-separated list of commands to run before the sync.")
	f.PostSyncHooks = fs.String("post-sync-hooks", "", "Comma-separated list of commands to run after the sync.")
	f.BufferSizeKB = fs.Int("buffer-size-kb", 0, "Size of the I/O buffer in kilobytes for file copies and archives.")
	f.SkipPreflight = fs.Bool("skip-preflight", false, "Skip the advisory checks on the source and target bases.")
}

func registerInitFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Force = fs.Bool("force", false, "Overwrite an existing config file.")
}

// Parse parses the provided arguments (usually os.Args[1:]) and returns the
// command and a map holding only the flags the user set explicitly.
// Without arguments, or when the first argument is a flag, the command is Sync.
func Parse(args []string) (Command, map[string]any, error) {
	return parse(args, os.Stderr)
}

func parse(args []string, out io.Writer) (Command, map[string]any, error) {
	if len(args) == 0 {
		return Sync, map[string]any{}, nil
	}

	cmdStr := strings.ToLower(args[0])
	if cmdStr == "help" || cmdStr == "-h" || cmdStr == "-help" || cmdStr == "--help" {
		printTopLevelUsage(out)
		return None, nil, nil
	}

	command := Sync
	rest := args
	if !strings.HasPrefix(cmdStr, "-") {
		var err error
		if command, err = ParseCommand(cmdStr); err != nil {
			return None, nil, err
		}
		rest = args[1:]
	}

	f := &cliFlags{}
	fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
	fs.SetOutput(out)

	switch command {
	case Sync:
		registerGlobalFlags(fs, f)
		registerSyncFlags(fs, f)
		fs.Usage = func() {
			printSubcommandUsage(command, "Copy the documentation entries and prune the spec directory.", fs)
		}
	case Init:
		registerGlobalFlags(fs, f)
		registerInitFlags(fs, f)
		fs.Usage = func() {
			printSubcommandUsage(command, "Write a default docsync.yaml into the project root.", fs)
		}
	case Version:
		return command, nil, nil
	}

	if err := fs.Parse(rest); err != nil {
		return command, nil, err
	}
	if fs.NArg() > 0 {
		return command, nil, fmt.Errorf("unexpected arguments for %s: %s", command, strings.Join(fs.Args(), " "))
	}
	return command, flagsToMap(fs, f), nil
}

func flagsToMap(fs *flag.FlagSet, f *cliFlags) map[string]any {
	usedFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { usedFlags[f.Name] = true })

	flagMap := make(map[string]any)

	addIfUsed(flagMap, usedFlags, "root", f.Root)
	addIfUsed(flagMap, usedFlags, "config", f.Config)
	addIfUsed(flagMap, usedFlags, "log-level", f.LogLevel)

	addIfUsed(flagMap, usedFlags, "dry-run", f.DryRun)
	addIfUsed(flagMap, usedFlags, "metrics", f.Metrics)
	addIfUsed(flagMap, usedFlags, "no-prune", f.NoPrune)
	addIfUsed(flagMap, usedFlags, "archive-pruned", f.ArchivePruned)
	addIfUsed(flagMap, usedFlags, "archive-dir", f.ArchiveDir)
	addIfUsed(flagMap, usedFlags, "archive-format", f.ArchiveFormat)
	addIfUsed(flagMap, usedFlags, "buffer-size-kb", f.BufferSizeKB)
	addIfUsed(flagMap, usedFlags, "skip-preflight", f.SkipPreflight)

	addIfUsed(flagMap, usedFlags, "force", f.Force)

	addParsedIfUsed(flagMap, usedFlags, "entries", f.Entries, ParseEntryList)
	addParsedIfUsed(flagMap, usedFlags, "pre-sync-hooks", f.PreSyncHooks, ParseCmdList)
	addParsedIfUsed(flagMap, usedFlags, "post-sync-hooks", f.PostSyncHooks, ParseCmdList)

	return flagMap
}

// addIfUsed adds the value of ptr to flagMap if ptr is not nil and the flag was set.
func addIfUsed[T any](flagMap map[string]any, usedFlags map[string]bool, name string, ptr *T) {
	if ptr != nil && usedFlags[name] {
		flagMap[name] = *ptr
	}
}

// addParsedIfUsed adds the parsed value of ptr to flagMap if ptr is not nil and the flag was set.
func addParsedIfUsed(flagMap map[string]any, usedFlags map[string]bool, name string, ptr *string, parser func(string) []string) {
	if ptr != nil && usedFlags[name] {
		flagMap[name] = parser(*ptr)
	}
}

func printTopLevelUsage(w io.Writer) {
	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(w, "%s(%s) ", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(w, "Copies documentation sources into the production site.\n\n")
	fmt.Fprintf(w, "Usage: %s [command] [flags]\n\n", execName)
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  sync        Copy entries and prune the spec directory (default)\n")
	fmt.Fprintf(w, "  init        Write a default config file\n")
	fmt.Fprintf(w, "  version     Print the application version\n")
	fmt.Fprintf(w, "\nRun '%s <command> -help' for more information on a command.\n", execName)
}

func printSubcommandUsage(command Command, desc string, fs *flag.FlagSet) {
	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(fs.Output(), "%s(%s)\n\n", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(fs.Output(), "Usage of the %s command: %s %s [flags]\n\n", command, execName, command)
	fmt.Fprintf(fs.Output(), "%s\n\n", desc)
	fmt.Fprintf(fs.Output(), "Flags:\n")
	fs.PrintDefaults()
}

// ParseCmdList parses a comma-separated list of shell-like commands.
// It preserves quotes and handles backslash escapes so they can be interpreted by the shell.
func ParseCmdList(s string) []string {
	return parseListInternal(s, true, true)
}

// ParseEntryList parses a comma-separated list of relative entry paths.
// It removes quotes, as they are only used for grouping items with spaces.
// It treats backslashes as literal characters for Windows path compatibility.
func ParseEntryList(s string) []string {
	return parseListInternal(s, false, false)
}

// parseListInternal splits on commas outside of single or double quotes.
// keepQuotes preserves the quote characters; handleEscapes treats a
// backslash as escaping the next character.
func parseListInternal(s string, keepQuotes, handleEscapes bool) []string {
	var list []string
	var current strings.Builder
	var quoteChar rune

	appendItem := func() {
		trimmed := strings.TrimSpace(current.String())
		if trimmed != "" {
			list = append(list, trimmed)
		}
		current.Reset()
	}

	var isEscaped bool
	for _, r := range s {
		if isEscaped {
			current.WriteRune(r)
			isEscaped = false
			continue
		}

		switch {
		case r == '\\' && handleEscapes:
			isEscaped = true
			// Keep the backslash for the shell to interpret.
			current.WriteRune(r)
		case r == '\'' || r == '"':
			switch quoteChar {
			case 0:
				quoteChar = r
				if keepQuotes {
					current.WriteRune(r)
				}
			case r:
				quoteChar = 0
				if keepQuotes {
					current.WriteRune(r)
				}
			default:
				current.WriteRune(r)
			}
		case r == ',' && quoteChar == 0:
			appendItem()
		default:
			current.WriteRune(r)
		}
	}
	appendItem()
	return list
}
