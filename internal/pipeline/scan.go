package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/agentlab/gauntlet/internal/artifact"
	"github.com/agentlab/gauntlet/internal/config"
	"github.com/agentlab/gauntlet/internal/matrix"
	"github.com/agentlab/gauntlet/internal/metrics"
)

// Skipped describes a canonical artifact that could not be turned into a
// metric record.
type Skipped struct {
	Path   string
	Reason string
}

// ScanRunRoot re-derives metric records from the canonical artifacts under
// a run root, without touching them. Used by report and verify, and safe
// to run repeatedly.
func ScanRunRoot(runRoot string) ([]metrics.MetricRecord, []Skipped, error) {
	var records []metrics.MetricRecord
	var skipped []Skipped

	for _, cond := range config.KnownConditions {
		dir := filepath.Join(runRoot, cond)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, nil, fmt.Errorf("reading %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			arch, seed, ok := parseCanonicalName(e.Name())
			if !ok {
				skipped = append(skipped, Skipped{Path: path, Reason: "name does not match {architecture}_context{seed}.json"})
				continue
			}
			req := matrix.RunRequest{
				Architecture: arch,
				Condition:    matrix.Condition(cond),
				ContextSeed:  seed,
			}
			a, err := artifact.Read(path)
			if err != nil {
				skipped = append(skipped, Skipped{Path: path, Reason: err.Error()})
				continue
			}
			rec, err := metrics.Extract(a, req)
			if err != nil {
				skipped = append(skipped, Skipped{Path: path, Reason: err.Error()})
				continue
			}
			records = append(records, *rec)
		}
	}
	return records, skipped, nil
}

// parseCanonicalName splits {architecture}_context{seed}.json.
func parseCanonicalName(name string) (arch string, seed int, ok bool) {
	base, found := strings.CutSuffix(name, ".json")
	if !found {
		return "", 0, false
	}
	idx := strings.LastIndex(base, "_context")
	if idx < 1 {
		return "", 0, false
	}
	arch = base[:idx]
	seed, err := strconv.Atoi(base[idx+len("_context"):])
	if err != nil || seed < 1 {
		return "", 0, false
	}
	return arch, seed, true
}
