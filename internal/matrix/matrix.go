// Package matrix turns the evaluation matrix configuration into the
// deterministic, order-stable list of run requests the pipeline executes.
package matrix

import (
	"fmt"
	"time"

	"github.com/agentlab/gauntlet/internal/config"
)

type Condition string

const (
	Baseline  Condition = "baseline"
	Perturbed Condition = "perturbed"
)

// RunRequest describes exactly one benchmark execution. It is immutable:
// built once by Build and consumed once by the executor.
type RunRequest struct {
	Architecture  string
	Condition     Condition
	ContextSeed   int
	TaskSuite     string
	MaxIterations int
	Timeout       time.Duration
	Perturbations []string
}

// ID is the canonical identity of a request within one run root, used for
// log lines and failure summaries.
func (r RunRequest) ID() string {
	return fmt.Sprintf("%s/%s_context%d", r.Condition, r.Architecture, r.ContextSeed)
}

// Build produces requests in architecture-major order, then condition,
// then ascending context seed. The order is part of the contract: repeated
// invocations over identical configuration yield the identical sequence.
func Build(cfg *config.Config) ([]RunRequest, error) {
	if len(cfg.Architectures) == 0 {
		return nil, fmt.Errorf("evaluation matrix: no architectures")
	}
	if cfg.Contexts < 1 {
		return nil, fmt.Errorf("evaluation matrix: contexts must be positive, got %d", cfg.Contexts)
	}
	if len(cfg.Conditions) == 0 {
		return nil, fmt.Errorf("evaluation matrix: no conditions")
	}

	requests := make([]RunRequest, 0, len(cfg.Architectures)*len(cfg.Conditions)*cfg.Contexts)
	for _, arch := range cfg.Architectures {
		for _, cond := range cfg.Conditions {
			var perts []string
			if Condition(cond) == Perturbed {
				if len(cfg.PerturbationTypes) == 0 {
					return nil, fmt.Errorf("evaluation matrix: perturbed condition requires at least one perturbation type")
				}
				perts = append([]string{}, cfg.PerturbationTypes...)
			}
			for seed := 1; seed <= cfg.Contexts; seed++ {
				requests = append(requests, RunRequest{
					Architecture:  arch,
					Condition:     Condition(cond),
					ContextSeed:   seed,
					TaskSuite:     cfg.TaskSuite,
					MaxIterations: cfg.MaxIterations,
					Timeout:       cfg.Timeout(),
					Perturbations: perts,
				})
			}
		}
	}
	return requests, nil
}
