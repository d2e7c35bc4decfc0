// Command netwatchctl runs ad-hoc ICMP campaigns and sizing advice from a
// terminal, without the monitor's database.
//
//	netwatchctl probe 10.0.0.1 gw.example.net --timeout 2
//	netwatchctl recommend 750
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "netwatchctl",
		Short:        "Ad-hoc ICMP probing and settings advice",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(newProbeCmd(), newRecommendCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
