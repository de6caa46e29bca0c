package metrics_test

import (
	"errors"
	"testing"

	"github.com/agentlab/gauntlet/internal/artifact"
	"github.com/agentlab/gauntlet/internal/matrix"
	"github.com/agentlab/gauntlet/internal/metrics"
)

func ptr[T any](v T) *T { return &v }

func task(success bool, execTime float64, steps, tokens int) artifact.TaskResult {
	return artifact.TaskResult{
		Success:       ptr(success),
		ExecutionTime: ptr(execTime),
		Steps:         ptr(steps),
		Metrics:       &artifact.TaskMetrics{TotalTokens: ptr(tokens)},
	}
}

func testRequest() matrix.RunRequest {
	return matrix.RunRequest{Architecture: "react", Condition: matrix.Baseline, ContextSeed: 2}
}

func TestExtract(t *testing.T) {
	a := &artifact.ResultArtifact{
		Results: []artifact.TaskResult{
			task(true, 4.0, 6, 1000),
			task(true, 8.0, 10, 3000),
			task(false, 12.0, 14, 2000),
			task(false, 16.0, 18, 2000),
		},
	}
	rec, err := metrics.Extract(a, testRequest())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.Architecture != "react" || rec.Condition != matrix.Baseline || rec.ContextSeed != 2 {
		t.Errorf("identity not carried: %+v", rec)
	}
	if rec.SuccessRate != 50 {
		t.Errorf("success_rate: got %f, want 50", rec.SuccessRate)
	}
	if rec.AvgTime != 10 {
		t.Errorf("avg_time: got %f, want 10", rec.AvgTime)
	}
	if rec.AvgSteps != 12 {
		t.Errorf("avg_steps: got %f, want 12", rec.AvgSteps)
	}
	if rec.AvgTokens != 2000 {
		t.Errorf("avg_tokens: got %f, want 2000", rec.AvgTokens)
	}
}

func TestExtractAbsentOptionalFieldsCountZero(t *testing.T) {
	a := &artifact.ResultArtifact{
		Results: []artifact.TaskResult{
			{Success: ptr(true), ExecutionTime: ptr(2.0)},
			task(true, 4.0, 8, 500),
		},
	}
	rec, err := metrics.Extract(a, testRequest())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.AvgSteps != 4 {
		t.Errorf("avg_steps: got %f, want 4", rec.AvgSteps)
	}
	if rec.AvgTokens != 250 {
		t.Errorf("avg_tokens: got %f, want 250", rec.AvgTokens)
	}
}

func TestExtractMissingSuccessSkipsWholeArtifact(t *testing.T) {
	a := &artifact.ResultArtifact{
		Results: []artifact.TaskResult{
			task(true, 4.0, 6, 1000),
			{TaskID: "broken", ExecutionTime: ptr(2.0)},
		},
	}
	_, err := metrics.Extract(a, testRequest())
	var mferr *metrics.MissingFieldError
	if !errors.As(err, &mferr) {
		t.Fatalf("expected MissingFieldError, got %v", err)
	}
	if mferr.TaskID != "broken" || mferr.Field != "success" {
		t.Errorf("got %+v", mferr)
	}
}

func TestExtractMissingExecutionTime(t *testing.T) {
	a := &artifact.ResultArtifact{
		Results: []artifact.TaskResult{
			{TaskID: "t1", Success: ptr(true)},
		},
	}
	_, err := metrics.Extract(a, testRequest())
	var mferr *metrics.MissingFieldError
	if !errors.As(err, &mferr) {
		t.Fatalf("expected MissingFieldError, got %v", err)
	}
	if mferr.Field != "execution_time" {
		t.Errorf("field: got %q", mferr.Field)
	}
}

func TestExtractEmptyArtifact(t *testing.T) {
	if _, err := metrics.Extract(&artifact.ResultArtifact{}, testRequest()); err == nil {
		t.Error("expected error for artifact with zero tasks, not a zero-filled record")
	}
}
