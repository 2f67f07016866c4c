package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/netsight-ai/netsight-engine/pkg/services"
)

func newSeedCmd() *cobra.Command {
	var req services.SeedRequest

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate and load a synthetic demo fleet",
		Long: `Generates a deterministic synthetic WiFi fleet (networks, access points,
status and QoS facts, raw JSON events) and loads it into the warehouse.
Refuses to run against a database that already holds networks.`,
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

			summary, err := eng.seed.Seed(scopedCtx, req)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Seed", "Networks", "APs", "Status Rows", "QoS Rows", "Raw Events", "Window", "Took"})
			table.Append([]string{
				strconv.FormatInt(summary.Seed, 10),
				strconv.Itoa(summary.Networks),
				strconv.Itoa(summary.AccessPoints),
				strconv.Itoa(summary.StatusRows),
				strconv.Itoa(summary.QoSRows),
				strconv.Itoa(summary.RawEvents),
				fmt.Sprintf("%s .. %s",
					summary.From.Format(time.DateOnly),
					summary.To.Format(time.DateOnly)),
				fmt.Sprintf("%dms", summary.DurationMs),
			})
			table.Render()
			return nil
		},
	}

	cmd.Flags().Int64Var(&req.Seed, "seed", 0, "RNG seed (0 uses the configured default)")
	cmd.Flags().IntVar(&req.Days, "days", 0, "days of history to generate")
	cmd.Flags().IntVar(&req.IntervalMinutes, "interval-minutes", 0, "sampling interval in minutes")
	cmd.Flags().IntVar(&req.Networks, "networks", 0, "number of customer networks")
	cmd.Flags().IntVar(&req.APsPerNetwork, "aps-per-network", 0, "access points per network")

	return cmd
}
