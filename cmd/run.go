package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentlab/gauntlet/internal/artifact"
	"github.com/agentlab/gauntlet/internal/config"
	"github.com/agentlab/gauntlet/internal/pipeline"
	"github.com/agentlab/gauntlet/internal/report"
	"github.com/agentlab/gauntlet/internal/runner"
	"github.com/agentlab/gauntlet/internal/stats"
)

var (
	flagArchitectures []string
	flagConditions    []string
	flagContexts      int
	flagModel         string
	flagProvider      string
	flagTaskSuite     string
	flagMaxIterations int
	flagTimeoutMin    int
	flagPacingSec     int
	flagPerturbations []string
	flagRunRoot       string
	flagForce         bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the full evaluation matrix",
		RunE:  runMatrix,
	}
	cmd.Flags().StringSliceVar(&flagArchitectures, "architectures", nil, "override architecture list")
	cmd.Flags().StringSliceVar(&flagConditions, "conditions", nil, "override condition list")
	cmd.Flags().IntVar(&flagContexts, "contexts", 0, "override context seed count")
	cmd.Flags().StringVar(&flagModel, "model", "", "override model identifier")
	cmd.Flags().StringVar(&flagProvider, "provider", "", "override LLM provider")
	cmd.Flags().StringVar(&flagTaskSuite, "task-suite", "", "override task suite")
	cmd.Flags().IntVar(&flagMaxIterations, "max-iterations", 0, "override iteration cap")
	cmd.Flags().IntVar(&flagTimeoutMin, "timeout", 0, "override per-run timeout in minutes")
	cmd.Flags().IntVar(&flagPacingSec, "pacing", -1, "override inter-run delay in seconds (0 disables)")
	cmd.Flags().StringSliceVar(&flagPerturbations, "perturbation-types", nil, "override perturbation tag set")
	cmd.Flags().StringVar(&flagRunRoot, "run-root", "", "reuse an existing run root instead of creating a new one")
	cmd.Flags().BoolVar(&flagForce, "force", false, "re-execute requests whose canonical artifact already exists")
	return cmd
}

func applyOverrides(cfg *config.Config) error {
	if len(flagArchitectures) > 0 {
		cfg.Architectures = flagArchitectures
	}
	if len(flagConditions) > 0 {
		cfg.Conditions = flagConditions
	}
	if flagContexts > 0 {
		cfg.Contexts = flagContexts
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	if flagProvider != "" {
		cfg.Provider = flagProvider
	}
	if flagTaskSuite != "" {
		cfg.TaskSuite = flagTaskSuite
	}
	if flagMaxIterations > 0 {
		cfg.MaxIterations = flagMaxIterations
	}
	if flagTimeoutMin > 0 {
		cfg.TimeoutMinutes = flagTimeoutMin
	}
	if flagPacingSec >= 0 {
		cfg.PacingSeconds = flagPacingSec
	}
	if len(flagPerturbations) > 0 {
		cfg.PerturbationTypes = flagPerturbations
	}
	return config.Validate(cfg)
}

func newExecutor(cfg *config.Config, runRoot string) pipeline.Executor {
	opts := &runner.Opts{
		Command:     cfg.Runner.Command,
		OutputDir:   cfg.Runner.OutputDir,
		RunRoot:     runRoot,
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		MaxAttempts: cfg.MaxAttempts,
		Temperature: cfg.Temperature,
		Env:         cfg.Runner.Env,
	}
	if cfg.Runner.Image != "" {
		return &runner.DockerExecutor{
			Opts:    opts,
			Image:   cfg.Runner.Image,
			Command: cfg.Runner.Command,
			WorkDir: cfg.Runner.WorkDir,
		}
	}
	return &runner.Executor{Opts: opts}
}

func runMatrix(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := applyOverrides(cfg); err != nil {
		return err
	}

	runRoot := flagRunRoot
	if runRoot == "" {
		runRoot, err = artifact.CreateRunRoot(cfg.Results.Dir)
		if err != nil {
			return err
		}
	}
	fmt.Printf("Run root: %s\n", runRoot)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := &pipeline.Pipeline{
		Config:  cfg,
		Exec:    newExecutor(cfg, runRoot),
		RunRoot: runRoot,
		Force:   flagForce,
	}
	summary, records, err := p.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println("\n--- Batch summary ---")
	fmt.Print(pipeline.FormatSummary(summary))

	if len(records) == 0 {
		fmt.Println("no metric records collected; datasets not emitted")
	} else {
		aggs, err := stats.Aggregate(records, cfg.Thresholds)
		if err != nil {
			return err
		}
		longPath, widePath, err := report.EmitDatasets(runRoot, records, aggs)
		if err != nil {
			return err
		}
		fmt.Printf("\nDatasets: %s, %s\n\n", longPath, widePath)
		if err := report.WriteSummary(os.Stdout, "table", aggs); err != nil {
			return err
		}
	}

	if summary.Failed() {
		return fmt.Errorf("%d run(s) ended in process_error", summary.ProcessError)
	}
	return nil
}
