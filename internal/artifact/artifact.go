// Package artifact owns the runner's result artifact: its JSON schema, the
// naming convention it is discovered under, and its canonical storage slot.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentlab/gauntlet/internal/matrix"
)

// Metadata mirrors the "metadata" block the runner writes into every
// result artifact.
type Metadata struct {
	Architecture  string  `json:"architecture"`
	Model         string  `json:"model"`
	Provider      string  `json:"provider"`
	TaskSuite     string  `json:"task_suite"`
	NumTasks      int     `json:"num_tasks"`
	NumContexts   int     `json:"num_contexts"`
	MaxIterations int     `json:"max_iterations"`
	Temperature   float64 `json:"temperature"`
}

// TaskMetrics is the optional per-task metrics block. Older runner
// versions omit it entirely.
type TaskMetrics struct {
	TotalTokens *int `json:"total_tokens"`
	LLMCalls    *int `json:"llm_calls"`
}

// TaskResult is one per-task entry. Fields that upstream versions may
// omit are pointers so presence can be checked explicitly.
type TaskResult struct {
	TaskID        string       `json:"task_id"`
	Success       *bool        `json:"success"`
	ExecutionTime *float64     `json:"execution_time"`
	Steps         *int         `json:"steps"`
	Metrics       *TaskMetrics `json:"metrics"`
}

// ResultArtifact is the structured record produced by one benchmark run.
// Once collected into canonical storage it is treated as immutable.
type ResultArtifact struct {
	Metadata Metadata     `json:"metadata"`
	Results  []TaskResult `json:"results"`
}

func Read(path string) (*ResultArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	var a ResultArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing artifact %s: %w", path, err)
	}
	return &a, nil
}

// CanonicalPath is the durable storage slot for a request's artifact:
// {runRoot}/{condition}/{architecture}_context{seed}.json
func CanonicalPath(runRoot string, req matrix.RunRequest) string {
	return filepath.Join(runRoot, string(req.Condition),
		fmt.Sprintf("%s_context%d.json", req.Architecture, req.ContextSeed))
}

// LogPath is the co-located per-run log transcript.
func LogPath(runRoot string, req matrix.RunRequest) string {
	return filepath.Join(runRoot, string(req.Condition),
		fmt.Sprintf("%s_context%d.log", req.Architecture, req.ContextSeed))
}
