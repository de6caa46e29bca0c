package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentlab/gauntlet/internal/artifact"
	"github.com/agentlab/gauntlet/internal/config"
	"github.com/agentlab/gauntlet/internal/pipeline"
	"github.com/agentlab/gauntlet/internal/report"
	"github.com/agentlab/gauntlet/internal/stats"
)

var flagFormat string

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [run-root]",
		Short: "Re-aggregate collected artifacts and emit the datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			runRoot, err := resolveRunRoot(cfg, args)
			if err != nil {
				return err
			}

			records, skipped, err := pipeline.ScanRunRoot(runRoot)
			if err != nil {
				return err
			}
			for _, s := range skipped {
				fmt.Fprintf(os.Stderr, "skipping %s: %s\n", s.Path, s.Reason)
			}
			if len(records) == 0 {
				return fmt.Errorf("no usable artifacts under %s", runRoot)
			}

			aggs, err := stats.Aggregate(records, cfg.Thresholds)
			if err != nil {
				return err
			}
			longPath, widePath, err := report.EmitDatasets(runRoot, records, aggs)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "datasets: %s, %s\n", longPath, widePath)
			return report.WriteSummary(os.Stdout, flagFormat, aggs)
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	return cmd
}

func resolveRunRoot(cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return artifact.LatestRunRoot(cfg.Results.Dir)
}
