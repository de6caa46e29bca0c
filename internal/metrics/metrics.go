// Package metrics reduces a collected result artifact to one normalized
// per-run metric record.
package metrics

import (
	"fmt"

	"github.com/agentlab/gauntlet/internal/artifact"
	"github.com/agentlab/gauntlet/internal/matrix"
)

// MetricRecord is the per-run row fed into aggregation. Derived from a
// ResultArtifact, never hand-edited.
type MetricRecord struct {
	Architecture string
	Condition    matrix.Condition
	ContextSeed  int
	SuccessRate  float64
	AvgTime      float64
	AvgSteps     float64
	AvgTokens    float64
}

// MissingFieldError reports a per-task entry lacking a required field.
// A single broken entry disqualifies the whole artifact: partial records
// would manufacture false robustness signals.
type MissingFieldError struct {
	TaskID string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("task %q: required field %q missing", e.TaskID, e.Field)
}

// Extract computes the four aggregate metrics from a's per-task entries.
// The success flag and execution time are required on every task; absent
// step or token counts are treated as 0 for that task. An artifact with
// zero tasks yields an error, not a zero-filled record.
func Extract(a *artifact.ResultArtifact, req matrix.RunRequest) (*MetricRecord, error) {
	total := len(a.Results)
	if total == 0 {
		return nil, fmt.Errorf("artifact has no task results")
	}

	var successes int
	var timeSum, stepSum, tokenSum float64
	for i, task := range a.Results {
		id := task.TaskID
		if id == "" {
			id = fmt.Sprintf("#%d", i)
		}
		if task.Success == nil {
			return nil, &MissingFieldError{TaskID: id, Field: "success"}
		}
		if task.ExecutionTime == nil {
			return nil, &MissingFieldError{TaskID: id, Field: "execution_time"}
		}
		if *task.Success {
			successes++
		}
		timeSum += *task.ExecutionTime
		if task.Steps != nil {
			stepSum += float64(*task.Steps)
		}
		if task.Metrics != nil && task.Metrics.TotalTokens != nil {
			tokenSum += float64(*task.Metrics.TotalTokens)
		}
	}

	n := float64(total)
	return &MetricRecord{
		Architecture: req.Architecture,
		Condition:    req.Condition,
		ContextSeed:  req.ContextSeed,
		SuccessRate:  100 * float64(successes) / n,
		AvgTime:      timeSum / n,
		AvgSteps:     stepSum / n,
		AvgTokens:    tokenSum / n,
	}, nil
}
