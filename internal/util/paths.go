// Package util holds small helpers shared by the config layer and the CLI.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome resolves a leading ~ to the user's home directory and cleans
// the result. Paths without a tilde are only cleaned; "" stays "".
func ExpandHome(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return filepath.Clean(path), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory for %q: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// IsStdStream reports whether a log output names a standard stream rather
// than a file.
func IsStdStream(output string) bool {
	switch strings.ToLower(output) {
	case "stdout", "stderr":
		return true
	}
	return false
}
