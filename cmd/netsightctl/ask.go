package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/services"
)

func newAskCmd() *cobra.Command {
	var limit int
	var showSQL bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the analyst agent a question about the fleet",
		Example: `  netsightctl ask "which networks are missing their SLA target?"
  netsightctl ask --sql "worst access points today"`,
		Args: cobra.MinimumNArgs(1),
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

			resp, err := eng.analyst.Ask(scopedCtx, services.AskRequest{
				Question: strings.Join(args, " "),
				Limit:    limit,
			})
			if err != nil {
				return err
			}

			fmt.Println(resp.Answer)
			if showSQL && resp.SQL != "" {
				fmt.Printf("\n-- source: %s\n%s\n", resp.Source, resp.SQL)
			}
			if resp.Result != nil && len(resp.Result.Rows) > 0 {
				fmt.Println()
				renderResult(resp.Result)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "row limit (0 uses the warehouse default)")
	cmd.Flags().BoolVar(&showSQL, "sql", false, "print the SQL the agent executed")

	return cmd
}

func renderResult(result *models.QueryResult) {
	headers := make([]string, len(result.Columns))
	for i, col := range result.Columns {
		headers[i] = col.Name
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprintf("%v", v)
		}
		table.Append(cells)
	}
	table.Render()

	if result.Truncated {
		fmt.Printf("(truncated to %d rows)\n", result.RowCount)
	}
	if len(result.MaskedCols) > 0 {
		fmt.Printf("masked columns: %s\n", strings.Join(result.MaskedCols, ", "))
	}
}
