package config

import (
	"fmt"
	"os"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// KnownArchitectures is the fixed set of agent decision strategies the
// external runner understands.
var KnownArchitectures = []string{"react", "plan-then-act", "reflexion", "reference"}

// KnownConditions are the two environmental conditions a run executes under.
var KnownConditions = []string{"baseline", "perturbed"}

// KnownPerturbations are the perturbation generators the runner can apply
// when a run executes under the perturbed condition.
var KnownPerturbations = []string{"distractors", "noise", "ambiguity", "incomplete"}

type Config struct {
	Architectures     []string   `yaml:"architectures"`
	Conditions        []string   `yaml:"conditions"`
	Contexts          int        `yaml:"contexts"`
	Provider          string     `yaml:"provider"`
	Model             string     `yaml:"model"`
	TaskSuite         string     `yaml:"task_suite"`
	MaxIterations     int        `yaml:"max_iterations"`
	MaxAttempts       int        `yaml:"max_attempts"`
	Temperature       float64    `yaml:"temperature"`
	TimeoutMinutes    int        `yaml:"timeout_minutes"`
	PacingSeconds     int        `yaml:"pacing_seconds"`
	PerturbationTypes []string   `yaml:"perturbation_types"`
	Runner            Runner     `yaml:"runner"`
	Results           Results    `yaml:"results"`
	Thresholds        Thresholds `yaml:"thresholds"`
}

// Runner describes how to invoke the external benchmark runner. Command is
// the argv prefix for subprocess execution; if Image is set the runner
// executes inside a container instead, with OutputDir bind-mounted.
type Runner struct {
	Command   []string          `yaml:"command"`
	OutputDir string            `yaml:"output_dir"`
	Image     string            `yaml:"image"`
	WorkDir   string            `yaml:"workdir"`
	Env       map[string]string `yaml:"env"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

// Thresholds are the CV percentage cut-offs for robustness tiers. The
// defaults (10/20/35) come from the original evaluation protocol but are a
// policy knob, not a physical constant.
type Thresholds struct {
	Excellent float64 `yaml:"excellent"`
	Good      float64 `yaml:"good"`
	Moderate  float64 `yaml:"moderate"`
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

func (c *Config) Pacing() time.Duration {
	return time.Duration(c.PacingSeconds) * time.Second
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the evaluation matrix and fills defaults. It also runs
// after CLI flag overrides, so it must be safe to call more than once.
func Validate(cfg *Config) error {
	if len(cfg.Architectures) == 0 {
		return fmt.Errorf("no architectures defined")
	}
	for _, a := range cfg.Architectures {
		if !lo.Contains(KnownArchitectures, a) {
			return fmt.Errorf("unknown architecture %q (known: %v)", a, KnownArchitectures)
		}
	}
	if len(cfg.Conditions) == 0 {
		cfg.Conditions = append([]string{}, KnownConditions...)
	}
	for _, c := range cfg.Conditions {
		if !lo.Contains(KnownConditions, c) {
			return fmt.Errorf("unknown condition %q (known: %v)", c, KnownConditions)
		}
	}
	if cfg.Contexts < 1 {
		return fmt.Errorf("contexts must be at least 1")
	}
	if cfg.TaskSuite == "" {
		cfg.TaskSuite = "simple"
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 15
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.TimeoutMinutes < 1 {
		cfg.TimeoutMinutes = 30
	}
	if cfg.PacingSeconds < 0 {
		return fmt.Errorf("pacing_seconds must not be negative")
	}
	if lo.Contains(cfg.Conditions, "perturbed") {
		// "all" and an empty list both mean every known perturbation.
		if len(cfg.PerturbationTypes) == 0 || lo.Contains(cfg.PerturbationTypes, "all") {
			cfg.PerturbationTypes = append([]string{}, KnownPerturbations...)
		}
		for _, p := range cfg.PerturbationTypes {
			if !lo.Contains(KnownPerturbations, p) {
				return fmt.Errorf("unknown perturbation type %q (known: %v)", p, KnownPerturbations)
			}
		}
	}
	if len(cfg.Runner.Command) == 0 && cfg.Runner.Image == "" {
		return fmt.Errorf("runner: either command or image is required")
	}
	if cfg.Runner.OutputDir == "" {
		cfg.Runner.OutputDir = "./benchmark_results"
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "./results"
	}
	if cfg.Thresholds.Excellent == 0 && cfg.Thresholds.Good == 0 && cfg.Thresholds.Moderate == 0 {
		cfg.Thresholds = Thresholds{Excellent: 10, Good: 20, Moderate: 35}
	}
	if !(cfg.Thresholds.Excellent < cfg.Thresholds.Good && cfg.Thresholds.Good < cfg.Thresholds.Moderate) {
		return fmt.Errorf("thresholds must be strictly increasing: excellent < good < moderate")
	}
	return nil
}
