package config

import (
	"os"
	"path/filepath"
)

// GetRuntimePath resolves TUSKMAIL_RUNTIME_PATH, relative paths being
// anchored at the user's home directory.
func GetRuntimePath() string {
	path := os.Getenv("TUSKMAIL_RUNTIME_PATH")
	if path == "" {
		path = ".tuskmail"
	}

	if !filepath.IsAbs(path) {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path)
	}
	return path
}
