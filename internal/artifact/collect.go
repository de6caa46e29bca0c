package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentlab/gauntlet/internal/matrix"
)

type CollectReason string

const (
	// ReasonPatternNotFound means no file in the runner output directory
	// matched the expected naming convention. This usually signals a
	// naming-contract mismatch with the runner and silently produces
	// incomplete statistics, so callers must surface it prominently.
	ReasonPatternNotFound CollectReason = "pattern_not_found"
)

type CollectionError struct {
	Reason  CollectReason
	Pattern string
	Dir     string
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collecting artifact: %s (pattern %q in %s)", e.Reason, e.Pattern, e.Dir)
}

// ModelSafe sanitizes a model identifier for use in a file name, matching
// the runner's own convention.
func ModelSafe(model string) string {
	r := strings.NewReplacer(":", "_", "/", "_", ".", "_")
	return r.Replace(model)
}

// SuiteSuffix is empty for the default suite and _{suite} otherwise.
func SuiteSuffix(suite string) string {
	if suite == "" || suite == "simple" {
		return ""
	}
	return "_" + suite
}

// ExpectedName is the exact artifact name the runner produces when the
// model identifier is known ahead of time.
func ExpectedName(architecture, model, suite string) string {
	return fmt.Sprintf("benchmark_%s_%s%s.json", architecture, ModelSafe(model), SuiteSuffix(suite))
}

// pattern matches the runner's naming convention with the model component
// wildcarded. The runner may resolve the model name itself (provider
// autodetection), so the exact identifier is not always known up front.
func pattern(architecture, suite string) string {
	return fmt.Sprintf("benchmark_%s_*%s.json", architecture, SuiteSuffix(suite))
}

// Collect locates the artifact the runner produced for req in outputDir
// and moves it into canonical storage under runRoot, overwriting any stale
// file from a previous failed attempt. The exact expected name is
// preferred; otherwise the most recently modified match of the wildcard
// pattern wins. Because the source file is moved, a second Collect for the
// same request returns pattern_not_found rather than touching the
// canonical file again.
func Collect(outputDir, runRoot string, req matrix.RunRequest, model string) (string, error) {
	glob := pattern(req.Architecture, req.TaskSuite)

	src := ""
	if model != "" {
		exact := filepath.Join(outputDir, ExpectedName(req.Architecture, model, req.TaskSuite))
		if _, err := os.Stat(exact); err == nil {
			src = exact
		}
	}
	if src == "" {
		matches, err := filepath.Glob(filepath.Join(outputDir, glob))
		if err != nil {
			return "", fmt.Errorf("globbing %q: %w", glob, err)
		}
		src = newest(matches)
	}
	if src == "" {
		return "", &CollectionError{Reason: ReasonPatternNotFound, Pattern: glob, Dir: outputDir}
	}

	dst := CanonicalPath(runRoot, req)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("creating condition dir: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("moving artifact to canonical path: %w", err)
	}
	return dst, nil
}

func newest(paths []string) string {
	best := ""
	var bestMod int64
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		if best == "" || info.ModTime().UnixNano() > bestMod {
			best = p
			bestMod = info.ModTime().UnixNano()
		}
	}
	return best
}
