package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilePath validates that a file path is safe to open. Absolute
// paths are allowed; the caller decides where files live. Paths that
// still contain traversal segments after cleaning are rejected.
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

// ValidateFilePathStrict additionally forbids absolute paths. Used for
// paths that must stay relative to the working directory.
func ValidateFilePathStrict(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal: %s", path)
	}

	if filepath.IsAbs(cleanPath) {
		return fmt.Errorf("absolute paths not allowed in production: %s", path)
	}

	return nil
}

// ValidateFilePathWithBase validates a file path against a base directory.
// Relative paths are resolved under the base; absolute paths must already
// be within it.
func ValidateFilePathWithBase(path, baseDir string) error {
	if err := ValidateFilePath(path); err != nil {
		return err
	}

	cleanBase := filepath.Clean(baseDir)
	var cleanPath string
	if filepath.IsAbs(path) {
		cleanPath = filepath.Clean(path)
	} else {
		cleanPath = filepath.Clean(filepath.Join(cleanBase, path))
	}

	// Ensure the resolved path is still within the base directory.
	if cleanPath != cleanBase && !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", path)
	}

	return nil
}
