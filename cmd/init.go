package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docsite-tools/docsync/pkg/buildinfo"
	"github.com/docsite-tools/docsync/pkg/config"
	"github.com/docsite-tools/docsync/pkg/flagparse"
	"github.com/docsite-tools/docsync/pkg/plog"
)

// RunInit handles the logic for the 'init' command. It writes the default
// configuration, with any -log-level override, to docsync.yaml in the project
// root or to the -config path. An existing file is only replaced with -force
// or after the user confirms.
func RunInit(flagMap map[string]any) error {
	configPath, _, err := resolveConfigPath(flagMap)
	if err != nil {
		return err
	}
	absConfigPath, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("could not determine absolute path for config file %s: %w", configPath, err)
	}

	force, _ := flagMap["force"].(bool)
	if !force {
		if _, err := os.Stat(absConfigPath); err == nil {
			fmt.Printf("WARNING: Configuration file already exists at %s.\n", absConfigPath)
			fmt.Printf("It will be overwritten with default values. All custom settings will be lost.\n")
			if !PromptForConfirmation("Are you sure you want to continue?", false) {
				plog.Info(buildinfo.Name + " init canceled.")
				return nil
			}
			force = true
		}
	}

	// The root is not persisted: it is given by where the file lives or by -root.
	runConfig := config.MergeConfigWithFlags(flagparse.Init, config.NewDefault(), flagMap)
	runConfig.Root = ""
	if err := runConfig.Validate(); err != nil {
		return err
	}

	if err := config.Generate(runConfig, absConfigPath, force); err != nil {
		return fmt.Errorf("failed to generate config file: %w", err)
	}
	plog.Info(buildinfo.Name+" config initialized.", "path", absConfigPath)
	return nil
}

// PromptForConfirmation prompts the user for a yes/no response.
func PromptForConfirmation(prompt string, defaultYes bool) bool {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}
	fmt.Printf("%s %s: ", prompt, suffix)

	var response string
	_, _ = fmt.Scanln(&response)
	response = strings.ToLower(strings.TrimSpace(response))

	if response == "" {
		return defaultYes
	}
	return response == "y" || response == "yes"
}
