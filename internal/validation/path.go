package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

var pathDangerous = []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}

// ValidatePath rejects empty paths, paths that climb above their base
// directory and paths with shell metacharacters.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s", path)
	}

	for _, char := range pathDangerous {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}
	return nil
}
