package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/docsite-tools/docsync/cmd"
	"github.com/docsite-tools/docsync/pkg/buildinfo"
	"github.com/docsite-tools/docsync/pkg/flagparse"
	"github.com/docsite-tools/docsync/pkg/plog"
)

// run encapsulates the main application logic and returns an error if the
// invocation itself is invalid. A sync run that completes, even with failed
// tasks, returns nil.
func run(ctx context.Context, args []string) error {
	command, flagMap, err := flagparse.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	switch command {
	case flagparse.None:
		// Help was printed.
		return nil
	case flagparse.Version:
		return cmd.RunVersion(os.Stdout, buildinfo.Name, buildinfo.Version)
	case flagparse.Init:
		return cmd.RunInit(flagMap)
	case flagparse.Sync:
		plog.Info("Starting "+buildinfo.Name, "version", buildinfo.Version, "pid", os.Getpid())
		_, err := cmd.RunSync(ctx, flagMap)
		return err
	default:
		return fmt.Errorf("internal error: unknown command %d", command)
	}
}

func main() {
	// Set up a context that is canceled when an interrupt signal is received.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		plog.Error(buildinfo.Name+" exited with error", "error", err)
		os.Exit(1)
	}
}
