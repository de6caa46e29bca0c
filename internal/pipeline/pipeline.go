// Package pipeline sequences benchmark executions with isolation, pacing,
// timeout and artifact-collection guarantees, and accumulates the per-run
// metric records for aggregation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agentlab/gauntlet/internal/artifact"
	"github.com/agentlab/gauntlet/internal/config"
	"github.com/agentlab/gauntlet/internal/matrix"
	"github.com/agentlab/gauntlet/internal/metrics"
	"github.com/agentlab/gauntlet/internal/runner"
)

// Executor abstracts how one run request is executed; satisfied by both
// runner.Executor and runner.DockerExecutor.
type Executor interface {
	Execute(ctx context.Context, req matrix.RunRequest) (*runner.RunOutcome, error)
}

// RunState tracks one request through the state machine
// queued -> running -> terminal.
type RunState struct {
	Request matrix.RunRequest
	Status  runner.Status
	Detail  string
}

// Summary is the batch-level accounting reported alongside the datasets so
// consumers can judge completeness.
type Summary struct {
	Total           int
	OK              int
	Reused          int
	Timeout         int
	ArtifactMissing int
	ProcessError    int
	ExtractSkipped  int
	Skipped         int
	Failures        []RunState
}

// Failed reports whether any run ended in process_error, the only per-run
// outcome that makes the batch exit nonzero.
func (s *Summary) Failed() bool {
	return s.ProcessError > 0
}

type Pipeline struct {
	Config  *config.Config
	Exec    Executor
	RunRoot string
	// Force re-executes requests whose canonical artifact already exists.
	Force bool
}

// Run executes every request in the deterministic matrix order. Per-run
// failures never abort the batch; only cancellation stops it early,
// leaving already-collected artifacts valid for a later rerun.
func (p *Pipeline) Run(ctx context.Context) (*Summary, []metrics.MetricRecord, error) {
	requests, err := matrix.Build(p.Config)
	if err != nil {
		return nil, nil, err
	}

	manifest, err := WriteManifest(p.RunRoot, p.Config, len(requests))
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("run_id", manifest.ID).Str("run_root", p.RunRoot).
		Int("requests", len(requests)).Msg("starting benchmark batch")

	summary := &Summary{Total: len(requests)}
	var records []metrics.MetricRecord
	executed := false

	for _, req := range requests {
		if ctx.Err() != nil {
			summary.Skipped++
			continue
		}

		state := RunState{Request: req, Status: runner.StatusQueued}

		// Restart safety: a canonical artifact from a previous invocation
		// is reused as-is unless the caller forces re-execution.
		canonical := artifact.CanonicalPath(p.RunRoot, req)
		if !p.Force {
			if _, statErr := os.Stat(canonical); statErr == nil {
				if rec := p.extract(canonical, req, summary); rec != nil {
					records = append(records, *rec)
				}
				summary.Reused++
				log.Info().Str("run", req.ID()).Msg("reusing collected artifact")
				continue
			}
		}

		// Fixed inter-run delay so the upstream LLM endpoint is not
		// hammered. Scheduler policy, not correctness: zero disables it.
		if executed && p.Config.Pacing() > 0 {
			select {
			case <-time.After(p.Config.Pacing()):
			case <-ctx.Done():
				summary.Skipped++
				continue
			}
		}

		state.Status = runner.StatusRunning
		log.Info().Str("run", req.ID()).Dur("timeout", req.Timeout).Msg("executing run")
		executed = true

		outcome, execErr := p.Exec.Execute(ctx, req)
		if execErr != nil {
			if errors.Is(execErr, context.Canceled) || ctx.Err() != nil {
				summary.Skipped++
				log.Warn().Str("run", req.ID()).Msg("run aborted by cancellation")
				continue
			}
			state.Status = runner.StatusProcessError
			state.Detail = execErr.Error()
			summary.ProcessError++
			summary.Failures = append(summary.Failures, state)
			log.Error().Err(execErr).Str("run", req.ID()).Msg("run failed")
			continue
		}

		state.Status = outcome.Status
		switch outcome.Status {
		case runner.StatusTimeout:
			state.Detail = fmt.Sprintf("killed after %s", outcome.Duration.Round(time.Second))
			summary.Timeout++
			summary.Failures = append(summary.Failures, state)
			log.Warn().Str("run", req.ID()).Msg("run timed out")
			continue
		case runner.StatusProcessError:
			state.Detail = fmt.Sprintf("runner exited %d", outcome.ExitCode)
			summary.ProcessError++
			summary.Failures = append(summary.Failures, state)
			log.Error().Str("run", req.ID()).Int("exit_code", outcome.ExitCode).Msg("runner failed")
			continue
		}

		collected, collectErr := artifact.Collect(p.Config.Runner.OutputDir, p.RunRoot, req, p.Config.Model)
		if collectErr != nil {
			var cerr *artifact.CollectionError
			if errors.As(collectErr, &cerr) {
				state.Status = runner.StatusArtifactMissing
				state.Detail = collectErr.Error()
				summary.ArtifactMissing++
				summary.Failures = append(summary.Failures, state)
				// Loud on purpose: a naming-contract mismatch silently
				// shrinks the record set.
				log.Error().Str("run", req.ID()).Str("pattern", cerr.Pattern).
					Msg("no artifact matched the runner naming contract")
				continue
			}
			return nil, nil, collectErr
		}
		outcome.ArtifactPath = collected

		if rec := p.extract(collected, req, summary); rec != nil {
			records = append(records, *rec)
			summary.OK++
			log.Info().Str("run", req.ID()).
				Dur("duration", outcome.Duration).
				Float64("success_rate", rec.SuccessRate).
				Msg("run complete")
		}
	}

	if err := WriteFailureSummary(p.RunRoot, summary); err != nil {
		log.Warn().Err(err).Msg("could not write failure summary")
	}
	if err := FinishManifest(p.RunRoot, manifest, summary); err != nil {
		log.Warn().Err(err).Msg("could not update manifest")
	}
	return summary, records, nil
}

// extract parses a canonical artifact into a metric record. Broken
// artifacts are skipped with the reason logged, never zero-filled.
func (p *Pipeline) extract(path string, req matrix.RunRequest, summary *Summary) *metrics.MetricRecord {
	a, err := artifact.Read(path)
	if err != nil {
		summary.ExtractSkipped++
		log.Warn().Err(err).Str("run", req.ID()).Msg("skipping unreadable artifact")
		return nil
	}
	rec, err := metrics.Extract(a, req)
	if err != nil {
		summary.ExtractSkipped++
		log.Warn().Err(err).Str("run", req.ID()).Msg("skipping artifact with incomplete task entries")
		return nil
	}
	return rec
}

// FormatSummary renders the batch accounting for the console and the
// failure summary file.
func FormatSummary(s *Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "requests: %d  ok: %d  reused: %d  timeout: %d  artifact_missing: %d  process_error: %d  extract_skipped: %d  skipped: %d\n",
		s.Total, s.OK, s.Reused, s.Timeout, s.ArtifactMissing, s.ProcessError, s.ExtractSkipped, s.Skipped)
	for _, f := range s.Failures {
		fmt.Fprintf(&b, "  %s: %s", f.Request.ID(), f.Status)
		if f.Detail != "" {
			fmt.Fprintf(&b, " (%s)", f.Detail)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
