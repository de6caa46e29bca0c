package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentlab/gauntlet/internal/artifact"
	"github.com/agentlab/gauntlet/internal/config"
	"github.com/agentlab/gauntlet/internal/matrix"
	"github.com/agentlab/gauntlet/internal/pipeline"
	"github.com/agentlab/gauntlet/internal/runner"
)

const goodArtifact = `{
	"metadata": {"architecture": "react", "model": "gpt-4o-mini", "task_suite": "simple", "num_tasks": 2},
	"results": [
		{"task_id": "t1", "success": true, "execution_time": 2.0, "steps": 3, "metrics": {"total_tokens": 100}},
		{"task_id": "t2", "success": false, "execution_time": 4.0, "steps": 5, "metrics": {"total_tokens": 300}}
	]
}`

// fakeExecutor scripts per-run outcomes and optionally drops an artifact
// into the runner output directory, standing in for the real subprocess.
type fakeExecutor struct {
	outputDir string
	model     string
	statuses  map[string]runner.Status
	calls     []string
}

func (f *fakeExecutor) Execute(ctx context.Context, req matrix.RunRequest) (*runner.RunOutcome, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.calls = append(f.calls, req.ID())
	status, ok := f.statuses[req.ID()]
	if !ok {
		status = runner.StatusOK
	}
	if status == runner.StatusOK {
		name := artifact.ExpectedName(req.Architecture, f.model, req.TaskSuite)
		if err := os.WriteFile(filepath.Join(f.outputDir, name), []byte(goodArtifact), 0o644); err != nil {
			return nil, err
		}
	}
	if status == runner.StatusArtifactMissing {
		// Runner claims success but never writes its artifact.
		status = runner.StatusOK
	}
	return &runner.RunOutcome{Status: status}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Architectures: []string{"react"},
		Conditions:    []string{"baseline"},
		Contexts:      2,
		Model:         "gpt-4o-mini",
		TaskSuite:     "simple",
		MaxIterations: 15,
		Runner: config.Runner{
			Command:   []string{"fake-runner"},
			OutputDir: t.TempDir(),
		},
		Results: config.Results{Dir: t.TempDir()},
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	cfg.PacingSeconds = 0
	return cfg
}

func newPipeline(t *testing.T, cfg *config.Config, exec pipeline.Executor) (*pipeline.Pipeline, string) {
	t.Helper()
	runRoot := t.TempDir()
	return &pipeline.Pipeline{Config: cfg, Exec: exec, RunRoot: runRoot}, runRoot
}

func TestRunHappyPath(t *testing.T) {
	cfg := testConfig(t)
	exec := &fakeExecutor{outputDir: cfg.Runner.OutputDir, model: cfg.Model}
	p, runRoot := newPipeline(t, cfg, exec)

	summary, records, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.OK != 2 || summary.Total != 2 {
		t.Errorf("summary: %+v", summary)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].SuccessRate != 50 {
		t.Errorf("success_rate: got %f, want 50", records[0].SuccessRate)
	}
	for seed := 1; seed <= 2; seed++ {
		p := filepath.Join(runRoot, "baseline", fmt.Sprintf("react_context%d.json", seed))
		if _, err := os.Stat(p); err != nil {
			t.Errorf("canonical artifact missing: %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(runRoot, "manifest.json")); err != nil {
		t.Errorf("manifest missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(runRoot, "failures.log")); err != nil {
		t.Errorf("failure summary missing: %v", err)
	}
}

func TestRunFailuresDoNotAbortBatch(t *testing.T) {
	cfg := testConfig(t)
	exec := &fakeExecutor{
		outputDir: cfg.Runner.OutputDir,
		model:     cfg.Model,
		statuses: map[string]runner.Status{
			"baseline/react_context1": runner.StatusTimeout,
		},
	}
	p, _ := newPipeline(t, cfg, exec)

	summary, records, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Timeout != 1 || summary.OK != 1 {
		t.Errorf("summary: %+v", summary)
	}
	if len(records) != 1 {
		t.Errorf("a timed-out run must reduce the record count, not add a zero record; got %d records", len(records))
	}
	if summary.Failed() {
		t.Error("timeouts alone must not fail the batch")
	}
}

func TestRunArtifactMissing(t *testing.T) {
	cfg := testConfig(t)
	exec := &fakeExecutor{
		outputDir: cfg.Runner.OutputDir,
		model:     cfg.Model,
		statuses: map[string]runner.Status{
			"baseline/react_context2": runner.StatusArtifactMissing,
		},
	}
	p, _ := newPipeline(t, cfg, exec)

	summary, records, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.ArtifactMissing != 1 {
		t.Errorf("summary: %+v", summary)
	}
	if len(records) != 1 {
		t.Errorf("expected exactly one record, got %d", len(records))
	}
	if len(summary.Failures) != 1 || summary.Failures[0].Status != runner.StatusArtifactMissing {
		t.Errorf("failures: %+v", summary.Failures)
	}
}

func TestRunProcessErrorFailsBatch(t *testing.T) {
	cfg := testConfig(t)
	exec := &fakeExecutor{
		outputDir: cfg.Runner.OutputDir,
		model:     cfg.Model,
		statuses: map[string]runner.Status{
			"baseline/react_context1": runner.StatusProcessError,
		},
	}
	p, _ := newPipeline(t, cfg, exec)

	summary, _, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.Failed() {
		t.Error("process_error must fail the batch")
	}
}

func TestRunReusesCollectedArtifacts(t *testing.T) {
	cfg := testConfig(t)
	exec := &fakeExecutor{outputDir: cfg.Runner.OutputDir, model: cfg.Model}
	p, runRoot := newPipeline(t, cfg, exec)

	// Pre-collect seed 1 as a previous invocation would have.
	pre := filepath.Join(runRoot, "baseline", "react_context1.json")
	if err := os.MkdirAll(filepath.Dir(pre), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pre, []byte(goodArtifact), 0o644); err != nil {
		t.Fatal(err)
	}

	summary, records, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Reused != 1 || summary.OK != 1 {
		t.Errorf("summary: %+v", summary)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
	if len(exec.calls) != 1 || exec.calls[0] != "baseline/react_context2" {
		t.Errorf("only the missing request should execute, got %v", exec.calls)
	}
}

func TestRunForceReexecutes(t *testing.T) {
	cfg := testConfig(t)
	exec := &fakeExecutor{outputDir: cfg.Runner.OutputDir, model: cfg.Model}
	p, runRoot := newPipeline(t, cfg, exec)
	p.Force = true

	pre := filepath.Join(runRoot, "baseline", "react_context1.json")
	os.MkdirAll(filepath.Dir(pre), 0o755)
	os.WriteFile(pre, []byte(goodArtifact), 0o644)

	summary, _, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Reused != 0 {
		t.Errorf("force must not reuse artifacts: %+v", summary)
	}
	if len(exec.calls) != 2 {
		t.Errorf("expected both requests to execute, got %v", exec.calls)
	}
}

func TestRunCancellationSkipsRemaining(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	exec := &cancellingExecutor{cancel: cancel}
	p, _ := newPipeline(t, cfg, exec)

	summary, _, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exec.executed != 1 {
		t.Errorf("expected exactly one execution before cancellation, got %d", exec.executed)
	}
	if summary.Skipped != 2 {
		t.Errorf("expected in-flight and queued requests skipped, got %+v", summary)
	}
}

// cancellingExecutor cancels the batch during its first execution, as a
// signal handler would.
type cancellingExecutor struct {
	cancel   context.CancelFunc
	executed int
}

func (c *cancellingExecutor) Execute(ctx context.Context, req matrix.RunRequest) (*runner.RunOutcome, error) {
	c.executed++
	c.cancel()
	return nil, ctx.Err()
}
