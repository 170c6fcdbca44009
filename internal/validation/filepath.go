package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MediaFile validates a local media path before it is queued for upload
// and returns the cleaned absolute path. The file:// prefix some callers
// pass is accepted and stripped.
func MediaFile(path string) (string, error) {
	path = strings.TrimSpace(strings.TrimPrefix(path, "file://"))
	if path == "" {
		return "", fmt.Errorf("media path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving media path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("media file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("media path %s is a directory", abs)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("media file %s is empty", abs)
	}
	return abs, nil
}
