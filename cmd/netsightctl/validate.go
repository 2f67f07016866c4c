package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Run the data validation suite against the warehouse",
		Long: `Runs every validation check (row counts, referential integrity, value
ranges, freshness, view consistency) and prints the results. Exits
nonzero when any check fails, so it can gate demo environments in CI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, cleanup, err := newEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			scopedCtx, done, err := eng.adminScope(ctx)
			if err != nil {
				return err
			}
			defer done()

			run, err := eng.validation.Run(scopedCtx)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Check", "Result", "Observed", "Expected"})
			table.SetAutoWrapText(false)
			for _, res := range run.Results {
				outcome := "PASS"
				if !res.Passed {
					outcome = "FAIL"
				}
				table.Append([]string{res.Check, outcome, res.Observed, res.Expected})
			}
			table.Render()

			fmt.Printf("%d/%d checks passed\n", run.Passed, run.TotalChecks)
			if run.Failed > 0 {
				return fmt.Errorf("%d validation check(s) failed", run.Failed)
			}
			return nil
		},
	}
}
