package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newMaskingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "masking",
		Short: "Inspect column masking governance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newMaskingScanCmd(), newMaskingListCmd())
	return cmd
}

func newMaskingScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the warehouse for sensitive-looking unmasked columns",
		Args:  cobra.NoArgs,
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

			suggestions, err := eng.masking.Scan(scopedCtx)
			if err != nil {
				return err
			}
			if len(suggestions) == 0 {
				fmt.Println("No uncovered sensitive columns found.")
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Column", "Category", "Confidence", "Suggested Type", "Reason"})
			table.SetAutoWrapText(false)
			for _, s := range suggestions {
				table.Append([]string{
					fmt.Sprintf("%s.%s.%s", s.SchemaName, s.TableName, s.ColumnName),
					s.Category,
					fmt.Sprintf("%.2f", s.Confidence),
					s.SuggestedType,
					s.Reason,
				})
			}
			table.Render()
			return nil
		},
	}
}

func newMaskingListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active masking policies",
		Args:  cobra.NoArgs,
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

			policies, err := eng.masking.ListPolicies(scopedCtx)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Column", "Type", "Exempt Roles", "Created By"})
			for _, p := range policies {
				table.Append([]string{
					fmt.Sprintf("%s.%s.%s", p.SchemaName, p.TableName, p.ColumnName),
					p.MaskingType,
					fmt.Sprintf("%v", p.ExemptRoles),
					p.CreatedBy,
				})
			}
			table.Render()
			return nil
		},
	}
}
