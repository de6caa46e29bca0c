package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/agentlab/gauntlet/internal/config"
	"github.com/agentlab/gauntlet/internal/pipeline"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [run-root]",
		Short: "Check collected artifacts without modifying anything",
		Long:  "Re-parse every canonical artifact under a run root, reporting extraction failures and per-group record counts so gaps in the dataset are visible before analysis.",
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

			counts := map[string]int{}
			for _, r := range records {
				counts[r.Architecture+"/"+string(r.Condition)]++
			}
			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			fmt.Printf("%d usable artifact(s), %d skipped\n\n", len(records), len(skipped))
			for _, k := range keys {
				want := cfg.Contexts
				mark := "ok"
				if counts[k] < want {
					mark = fmt.Sprintf("INCOMPLETE (want %d)", want)
				}
				fmt.Printf("  %-28s %d record(s)  %s\n", k, counts[k], mark)
			}
			if len(skipped) > 0 {
				fmt.Println("\nskipped artifacts:")
				for _, s := range skipped {
					fmt.Printf("  %s: %s\n", s.Path, s.Reason)
				}
			}
			return nil
		},
	}
}
