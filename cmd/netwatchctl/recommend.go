package main

import (
	"fmt"
	"strconv"

	"github.com/NordCoder/netwatch/internal/services/prober"
	"github.com/spf13/cobra"
)

func newRecommendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recommend <endpoint-count>",
		Short: "Print recommended concurrency and batch size for an inventory size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return fmt.Errorf("endpoint count must be a non-negative integer, got %q", args[0])
			}
			rec := prober.Recommend(n)
			fmt.Fprintf(cmd.OutOrStdout(), "endpoints:       %d\nmax_concurrency: %d\nbatch_size:      %d\n",
				n, rec.MaxConcurrency, rec.BatchSize)
			return nil
		},
	}
}
