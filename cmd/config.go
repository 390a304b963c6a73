package cmd

import (
	"path/filepath"

	"github.com/docsite-tools/docsync/pkg/config"
	"github.com/docsite-tools/docsync/pkg/util"
)

// resolveConfigPath returns the config file to load and whether it must exist.
// An explicit -config is required to exist; otherwise docsync.yaml in the
// project root is optional.
func resolveConfigPath(flagMap map[string]any) (string, bool, error) {
	if path, ok := flagMap["config"].(string); ok && path != "" {
		expanded, err := util.ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		return expanded, true, nil
	}

	root, err := resolveRoot(flagMap)
	if err != nil {
		return "", false, err
	}
	return filepath.Join(root, config.ConfigFileName), false, nil
}

// resolveRoot returns the -root flag, or the default project root when unset.
func resolveRoot(flagMap map[string]any) (string, error) {
	if root, ok := flagMap["root"].(string); ok && root != "" {
		expanded, err := util.ExpandPath(root)
		if err != nil {
			return "", err
		}
		return filepath.Abs(expanded)
	}
	return config.DefaultProjectRoot()
}
