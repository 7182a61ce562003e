package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/agent-research-cli/internal/enrichment"
)

var (
	enrichLimit   int
	enrichDryRun  bool
	enrichBatches int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich pending agents",
	Long:  "Claims batches of pending agents, researches their profiles and writes validated results back. --batches 0 runs until no agents are pending.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		results, err := runEnrichment(ctx, env.Enrichment, enrichment.Input{Limit: enrichLimit, DryRun: enrichDryRun}, enrichBatches)
		formatEnrichmentResults(os.Stdout, results)
		return err
	},
}

type enricher interface {
	Run(ctx context.Context, in enrichment.Input) *enrichment.Result
}

// runEnrichment runs up to batches batches (0 = unbounded). It stops early
// when a batch claims nothing, fails, or ctx is cancelled. A dry run is a
// single batch.
func runEnrichment(ctx context.Context, e enricher, in enrichment.Input, batches int) ([]*enrichment.Result, error) {
	var results []*enrichment.Result
	for n := 0; batches <= 0 || n < batches; n++ {
		if err := ctx.Err(); err != nil {
			return results, eris.Wrap(err, "enrich: interrupted")
		}
		res := e.Run(ctx, in)
		results = append(results, res)

		switch {
		case res.Status == enrichment.StatusFailed:
			return results, eris.Errorf("enrich: batch %s failed: %s", res.RunID, res.Error)
		case res.Status == enrichment.StatusDryRun, res.Processed == 0:
			return results, nil
		}
		zap.L().Info("enrich: batch done", zap.Int("batch", n+1), zap.Int("completed", res.Completed), zap.Int("failed", res.Failed))
	}
	return results, nil
}

func formatEnrichmentResults(w io.Writer, results []*enrichment.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATUS\tPROCESSED\tCOMPLETED\tFAILED\tCALLS\tCOST\tERROR")
	var processed, completed, failed int
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.RunID, r.Status, r.Processed, r.Completed, r.Failed, r.Cost.Calls, formatUSD(r.Cost.EstimatedUSD), r.Error)
		processed += r.Processed
		completed += r.Completed
		failed += r.Failed
	}
	fmt.Fprintf(tw, "TOTAL\t\t%d\t%d\t%d\t\t\t\n", processed, completed, failed)
	tw.Flush() //nolint:errcheck
}

func init() {
	f := enrichCmd.Flags()
	f.IntVar(&enrichLimit, "limit", 0, "agents per batch (0 = enrichment.default_limit)")
	f.BoolVar(&enrichDryRun, "dry-run", false, "report the batch size without claiming agents")
	f.IntVar(&enrichBatches, "batches", 1, "number of batches to run (0 = until none pending)")
	rootCmd.AddCommand(enrichCmd)
}
