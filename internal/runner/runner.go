// Package runner executes one benchmark run request against the external
// runner process, under a hard wall-clock timeout, capturing a per-run log
// transcript.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agentlab/gauntlet/internal/artifact"
	"github.com/agentlab/gauntlet/internal/matrix"
)

// Status is a run request's position in its lifecycle:
// queued -> running -> {ok, timeout, artifact_missing, process_error}.
type Status string

const (
	StatusQueued          Status = "queued"
	StatusRunning         Status = "running"
	StatusOK              Status = "ok"
	StatusTimeout         Status = "timeout"
	StatusArtifactMissing Status = "artifact_missing"
	StatusProcessError    Status = "process_error"
)

// Terminal reports whether s is an end state.
func (s Status) Terminal() bool {
	switch s {
	case StatusOK, StatusTimeout, StatusArtifactMissing, StatusProcessError:
		return true
	}
	return false
}

// RunOutcome is the transient result of executing one request. It is
// consumed by the collector and then discarded; only the canonical
// artifact persists.
type RunOutcome struct {
	Status       Status
	ExitCode     int
	LogPath      string
	ArtifactPath string
	Duration     time.Duration
}

// Opts carries the per-invocation parameters shared by every request in a
// batch: how to reach the runner and which model/provider it should use.
type Opts struct {
	Command     []string
	OutputDir   string
	RunRoot     string
	Provider    string
	Model       string
	MaxAttempts int
	Temperature float64
	Env         map[string]string
}

// BuildArgs assembles the runner's command-line arguments for one request.
func BuildArgs(opts *Opts, req matrix.RunRequest) []string {
	args := []string{
		"-a", req.Architecture,
		"--task-suite", req.TaskSuite,
		"--context-seed", strconv.Itoa(req.ContextSeed),
		"--max-iterations", strconv.Itoa(req.MaxIterations),
		"--output-dir", opts.OutputDir,
	}
	if opts.Provider != "" {
		args = append(args, "-p", opts.Provider)
	}
	if opts.Model != "" {
		args = append(args, "-m", opts.Model)
	}
	if opts.Temperature != 0 {
		args = append(args, "--temperature", strconv.FormatFloat(opts.Temperature, 'g', -1, 64))
	}
	// Reflexion retries whole attempts rather than iterating a single loop.
	if req.Architecture == "reflexion" && opts.MaxAttempts > 0 {
		args = append(args, "--max-attempts", strconv.Itoa(opts.MaxAttempts))
	}
	if req.Condition == matrix.Perturbed {
		args = append(args, "--perturbations", "--perturbation-types")
		args = append(args, req.Perturbations...)
	}
	return args
}

// Executor invokes the runner as a local subprocess.
type Executor struct {
	Opts *Opts
}

// Execute runs req to completion or timeout. The subprocess transcript is
// written to the run's log file regardless of outcome. A timed-out process
// is killed and reported, never retried: silently re-running a
// nondeterministic LLM-backed run would corrupt the robustness statistics.
// A non-nil error is returned only for infrastructure failures (log file,
// spawn) or parent-context cancellation; runner failures come back as a
// terminal outcome.
func (e *Executor) Execute(ctx context.Context, req matrix.RunRequest) (*RunOutcome, error) {
	logPath := artifact.LogPath(e.Opts.RunRoot, req)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating run dir: %w", err)
	}
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("creating run log: %w", err)
	}
	defer logFile.Close()

	if err := os.MkdirAll(e.Opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating runner output dir: %w", err)
	}

	args := append(append([]string{}, e.Opts.Command[1:]...), BuildArgs(e.Opts, req)...)

	tctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	cmd := exec.CommandContext(tctx, e.Opts.Command[0], args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = os.Environ()
	for k, v := range e.Opts.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	fmt.Fprintf(logFile, "=== %s | %s %v\n", req.ID(), e.Opts.Command[0], args)

	start := time.Now()
	runErr := cmd.Run()
	outcome := &RunOutcome{LogPath: logPath, Duration: time.Since(start)}

	switch {
	case ctx.Err() != nil:
		// Global cancellation: the subprocess has already been killed via
		// the command context. Propagate so the batch stops.
		return nil, ctx.Err()
	case tctx.Err() == context.DeadlineExceeded:
		outcome.Status = StatusTimeout
		outcome.ExitCode = 124
		fmt.Fprintf(logFile, "=== killed after %s (timeout %s)\n", outcome.Duration.Round(time.Second), req.Timeout)
	case runErr == nil:
		outcome.Status = StatusOK
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			outcome.Status = StatusProcessError
			outcome.ExitCode = exitErr.ExitCode()
			fmt.Fprintf(logFile, "=== runner exited %d\n", outcome.ExitCode)
		} else {
			// Spawn failure: the runner never started.
			log.Error().Err(runErr).Str("run", req.ID()).Msg("could not start runner")
			return nil, fmt.Errorf("starting runner: %w", runErr)
		}
	}
	return outcome, nil
}
