package flagparse

import (
	"fmt"

	"github.com/docsite-tools/docsync/pkg/util"
)

// Command is the subcommand to execute.
type Command int

const (
	// None means nothing is left to do, e.g. after printing help.
	None Command = iota
	Sync
	Init
	Version
)

var commandToString = map[Command]string{
	None:    "none",
	Sync:    "sync",
	Init:    "init",
	Version: "version",
}

var stringToCommand map[string]Command

func init() {
	stringToCommand = util.InvertMap(commandToString)
}

func (c Command) String() string {
	if str, ok := commandToString[c]; ok {
		return str
	}
	return fmt.Sprintf("unknown_command(%d)", c)
}

func ParseCommand(s string) (Command, error) {
	if command, ok := stringToCommand[s]; ok && command != None {
		return command, nil
	}
	return None, fmt.Errorf("invalid command: %q. Must be 'sync', 'init', 'version' or 'help'", s)
}
