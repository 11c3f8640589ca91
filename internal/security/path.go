package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateStorePath validates that a storage path is safe to open. Unlike
// relative config includes, the local database commonly lives at an absolute
// path, so absolute paths are allowed; traversal components are not.
func ValidateStorePath(path string) error {
	if path == "" {
		return fmt.Errorf("store path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal: %s", path)
	}

	return nil
}

// ValidateFilePath validates a file path supplied through flags or
// configuration. Traversal components are rejected after cleaning.
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal: %s", path)
	}

	return nil
}
