package config_test

import (
	"testing"

	"github.com/agentlab/gauntlet/internal/config"
)

func TestLoadMinimal(t *testing.T) {
	cfg, err := config.Load("../../testdata/minimal.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Architectures) != 1 || cfg.Architectures[0] != "react" {
		t.Errorf("architectures: got %v", cfg.Architectures)
	}
	if len(cfg.Conditions) != 2 {
		t.Errorf("expected both conditions by default, got %v", cfg.Conditions)
	}
	if cfg.TaskSuite != "simple" {
		t.Errorf("expected default task suite simple, got %q", cfg.TaskSuite)
	}
	if cfg.MaxIterations != 15 {
		t.Errorf("expected default max_iterations 15, got %d", cfg.MaxIterations)
	}
	if cfg.Thresholds.Excellent != 10 || cfg.Thresholds.Good != 20 || cfg.Thresholds.Moderate != 35 {
		t.Errorf("expected default thresholds 10/20/35, got %+v", cfg.Thresholds)
	}
	if len(cfg.PerturbationTypes) != len(config.KnownPerturbations) {
		t.Errorf("expected all perturbation types by default, got %v", cfg.PerturbationTypes)
	}
}

func TestLoadFull(t *testing.T) {
	cfg, err := config.Load("../../testdata/full.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Architectures) != 4 {
		t.Errorf("expected 4 architectures, got %d", len(cfg.Architectures))
	}
	if cfg.Contexts != 5 {
		t.Errorf("expected 5 contexts, got %d", cfg.Contexts)
	}
	if cfg.Thresholds.Moderate != 40 {
		t.Errorf("expected threshold override 40, got %f", cfg.Thresholds.Moderate)
	}
	if len(cfg.PerturbationTypes) != 2 {
		t.Errorf("expected 2 perturbation types, got %v", cfg.PerturbationTypes)
	}
	if cfg.Runner.Env["AZURE_OPENAI_API_KEY"] == "" {
		t.Error("expected runner env to carry secrets")
	}
}

func TestValidateExpandsAllPerturbations(t *testing.T) {
	cfg := &config.Config{
		Architectures:     []string{"react"},
		Conditions:        []string{"perturbed"},
		Contexts:          1,
		PerturbationTypes: []string{"all"},
		Runner:            config.Runner{Command: []string{"runner"}},
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(cfg.PerturbationTypes) != len(config.KnownPerturbations) {
		t.Errorf("expected \"all\" to expand to every perturbation, got %v", cfg.PerturbationTypes)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := config.Load("nonexistent.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := config.Load("../../testdata/invalid.yaml"); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidateRejects(t *testing.T) {
	base := func() *config.Config {
		return &config.Config{
			Architectures: []string{"react"},
			Contexts:      3,
			Runner:        config.Runner{Command: []string{"runner"}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"no architectures", func(c *config.Config) { c.Architectures = nil }},
		{"unknown architecture", func(c *config.Config) { c.Architectures = []string{"chain-of-thought"} }},
		{"unknown condition", func(c *config.Config) { c.Conditions = []string{"degraded"} }},
		{"zero contexts", func(c *config.Config) { c.Contexts = 0 }},
		{"negative pacing", func(c *config.Config) { c.PacingSeconds = -1 }},
		{"unknown perturbation", func(c *config.Config) { c.PerturbationTypes = []string{"earthquake"} }},
		{"no runner", func(c *config.Config) { c.Runner = config.Runner{} }},
		{"non-increasing thresholds", func(c *config.Config) {
			c.Thresholds = config.Thresholds{Excellent: 20, Good: 20, Moderate: 35}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := config.Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
