package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	config "github.com/NordCoder/netwatch/internal/config/monitor"
	"github.com/NordCoder/netwatch/internal/domain/probe"
	"github.com/NordCoder/netwatch/internal/obs"
	"github.com/NordCoder/netwatch/internal/services/prober"
	"github.com/spf13/cobra"
)

type probeOpts struct {
	timeoutSec  int
	concurrency int
	batchSize   int
	privileged  bool
	asJSON      bool
	verbose     bool
}

func newProbeCmd() *cobra.Command {
	o := probeOpts{}
	def := probe.DefaultSettings()

	cmd := &cobra.Command{
		Use:   "probe <address>...",
		Short: "Send one ICMP echo to each address and print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, a := range args {
				if !prober.ValidAddress(a) {
					return fmt.Errorf("invalid address %q", a)
				}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runProbe(ctx, cmd, args, o)
		},
	}
	f := cmd.Flags()
	f.IntVar(&o.timeoutSec, "timeout", def.TimeoutSec, "per-probe timeout in seconds")
	f.IntVar(&o.concurrency, "concurrency", def.MaxConcurrency, "probes in flight per batch")
	f.IntVar(&o.batchSize, "batch-size", def.BatchSize, "addresses per batch")
	f.BoolVar(&o.privileged, "privileged", false, "use raw ICMP sockets (root or CAP_NET_RAW)")
	f.BoolVar(&o.asJSON, "json", false, "print results as JSON")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "log progress to stderr")
	return cmd
}

func runProbe(ctx context.Context, cmd *cobra.Command, addrs []string, o probeOpts) error {
	level := "warn"
	if o.verbose {
		level = "debug"
	}
	l, err := obs.NewLogger(obs.LogConfig{Level: level, Pretty: true, App: "netwatchctl"})
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	settings := probe.Settings{
		TimeoutSec:     o.timeoutSec,
		MaxConcurrency: o.concurrency,
		BatchSize:      o.batchSize,
	}.Normalize()

	client := prober.NewICMPClient(config.ICMP{Privileged: o.privileged, Timeout: settings.Timeout()})
	exec := prober.NewExecutor(client, settings.Timeout(), l)
	campaign := prober.NewCampaign(prober.NewBatchProber(exec, prober.DefaultBatchBudget, l), prober.DefaultPacing, l)

	errOut := cmd.ErrOrStderr()
	results := campaign.Run(ctx, addrs, settings, func(pct float64, chunk, total int) {
		if total > 1 {
			fmt.Fprintf(errOut, "batch %d/%d (%.0f%%)\n", chunk, total, pct)
		}
	})
	if o.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return printResults(cmd.OutOrStdout(), results)
}

func printResults(w io.Writer, results []probe.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tSTATUS\tLATENCY\tDETAIL")
	var up int
	for _, r := range results {
		lat := "-"
		if r.LatencyMS != nil {
			lat = fmt.Sprintf("%.2fms", *r.LatencyMS)
		}
		if r.Status == probe.StatusUp {
			up++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Address, r.Status, lat, r.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d/%d up at %s\n", up, len(results), time.Now().Format(time.TimeOnly))
	return err
}
