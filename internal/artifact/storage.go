package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CreateRunRoot makes a fresh timestamped run root under baseDir and
// points the "latest" symlink at it. Canonical artifacts live under the
// run root for longer than any one pipeline invocation; rerunning against
// the same root reuses them.
func CreateRunRoot(baseDir string) (string, error) {
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	runRoot := filepath.Join(baseDir, "runs", stamp)
	runRoot, err := filepath.Abs(runRoot)
	if err != nil {
		return "", fmt.Errorf("resolving run root: %w", err)
	}
	if err := os.MkdirAll(runRoot, 0o755); err != nil {
		return "", fmt.Errorf("creating run root: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(runRoot, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return runRoot, nil
}

// LatestRunRoot resolves the "latest" symlink under baseDir.
func LatestRunRoot(baseDir string) (string, error) {
	resolved, err := filepath.EvalSymlinks(filepath.Join(baseDir, "latest"))
	if err != nil {
		return "", fmt.Errorf("resolving latest run root: %w", err)
	}
	return resolved, nil
}
