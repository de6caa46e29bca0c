package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/agentlab/gauntlet/internal/config"
)

// Manifest records the identity and configuration echo of one pipeline
// invocation at the run root, so a CSV consumer can trace which settings
// produced it.
type Manifest struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at,omitzero"`
	Architectures []string  `json:"architectures"`
	Conditions    []string  `json:"conditions"`
	Contexts      int       `json:"contexts"`
	Model         string    `json:"model"`
	Provider      string    `json:"provider"`
	TaskSuite     string    `json:"task_suite"`
	Requests      int       `json:"requests"`
	Counts        *Counts   `json:"counts,omitempty"`
}

type Counts struct {
	OK              int `json:"ok"`
	Reused          int `json:"reused"`
	Timeout         int `json:"timeout"`
	ArtifactMissing int `json:"artifact_missing"`
	ProcessError    int `json:"process_error"`
	ExtractSkipped  int `json:"extract_skipped"`
	Skipped         int `json:"skipped"`
}

func manifestPath(runRoot string) string {
	return filepath.Join(runRoot, "manifest.json")
}

func WriteManifest(runRoot string, cfg *config.Config, requests int) (*Manifest, error) {
	m := &Manifest{
		ID:            uuid.NewString(),
		StartedAt:     time.Now().UTC(),
		Architectures: cfg.Architectures,
		Conditions:    cfg.Conditions,
		Contexts:      cfg.Contexts,
		Model:         cfg.Model,
		Provider:      cfg.Provider,
		TaskSuite:     cfg.TaskSuite,
		Requests:      requests,
	}
	if err := writeManifest(runRoot, m); err != nil {
		return nil, err
	}
	return m, nil
}

func FinishManifest(runRoot string, m *Manifest, s *Summary) error {
	m.FinishedAt = time.Now().UTC()
	m.Counts = &Counts{
		OK:              s.OK,
		Reused:          s.Reused,
		Timeout:         s.Timeout,
		ArtifactMissing: s.ArtifactMissing,
		ProcessError:    s.ProcessError,
		ExtractSkipped:  s.ExtractSkipped,
		Skipped:         s.Skipped,
	}
	return writeManifest(runRoot, m)
}

func writeManifest(runRoot string, m *Manifest) error {
	if err := os.MkdirAll(runRoot, 0o755); err != nil {
		return fmt.Errorf("creating run root: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	return os.WriteFile(manifestPath(runRoot), data, 0o644)
}

// WriteFailureSummary persists the batch accounting next to the datasets.
func WriteFailureSummary(runRoot string, s *Summary) error {
	if err := os.MkdirAll(runRoot, 0o755); err != nil {
		return fmt.Errorf("creating run root: %w", err)
	}
	return os.WriteFile(filepath.Join(runRoot, "failures.log"), []byte(FormatSummary(s)), 0o644)
}
