package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentlab/gauntlet/internal/config"
	"github.com/agentlab/gauntlet/internal/matrix"
)

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the deterministic run request list without executing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			requests, err := matrix.Build(cfg)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tARCHITECTURE\tCONDITION\tSEED\tSUITE\tTIMEOUT\tPERTURBATIONS")
			for i, r := range requests {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
					i+1, r.Architecture, r.Condition, r.ContextSeed, r.TaskSuite,
					r.Timeout, strings.Join(r.Perturbations, ","))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Printf("\n%d requests\n", len(requests))
			return nil
		},
	}
}
