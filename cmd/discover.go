package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/agent-research-cli/internal/discovery"
	"github.com/sells-group/agent-research-cli/internal/model"
	"github.com/sells-group/agent-research-cli/internal/store"
)

var (
	discoverSuburb      string
	discoverState       string
	discoverDryRun      bool
	discoverAll         bool
	discoverTier        int
	discoverLimit       int
	discoverConcurrency int
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover agencies and agents for suburbs",
	Long:  "Runs discovery for one suburb (--suburb/--state) or for every pending catalog suburb (--all), in priority order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if discoverAll == (discoverSuburb != "") {
			return eris.New("discover: pass either --suburb with --state, or --all")
		}
		if discoverSuburb != "" && discoverState == "" {
			return eris.New("discover: --state is required with --suburb")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "discover")
		if err != nil {
			return err
		}
		defer env.Close()

		var inputs []discovery.Input
		if discoverAll {
			suburbs, err := env.Store.ListSuburbs(ctx, store.SuburbFilter{
				Status: model.ScrapeStatusPending,
				Tier:   discoverTier,
				Limit:  discoverLimit,
			})
			if err != nil {
				return eris.Wrap(err, "discover: list pending suburbs")
			}
			for _, sb := range suburbs {
				inputs = append(inputs, discovery.Input{Suburb: sb.Name, State: sb.State, DryRun: discoverDryRun})
			}
			zap.L().Info("discover: pending suburbs", zap.Int("count", len(inputs)), zap.Int("tier", discoverTier))
		} else {
			inputs = []discovery.Input{{Suburb: discoverSuburb, State: discoverState, DryRun: discoverDryRun}}
		}

		results, err := runDiscoveries(ctx, env.Discovery, inputs, discoverConcurrency)
		formatDiscoveryResults(os.Stdout, results)
		return err
	},
}

type discoverer interface {
	Run(ctx context.Context, in discovery.Input) (*discovery.Result, error)
}

// runDiscoveries runs inputs with at most concurrency in flight. A suburb
// that fails its preconditions is skipped in --all runs and fatal when it
// is the only input. Results keep input order.
func runDiscoveries(ctx context.Context, d discoverer, inputs []discovery.Input, concurrency int) ([]*discovery.Result, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]*discovery.Result, len(inputs))

	var (
		mu      sync.Mutex
		skipped []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, in := range inputs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := d.Run(gctx, in)
			if err != nil {
				zap.L().Warn("discover: skipped suburb", zap.String("suburb", in.Suburb), zap.String("state", in.State), zap.Error(err))
				mu.Lock()
				skipped = append(skipped, err)
				mu.Unlock()
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return compact(results), err
	}
	if len(inputs) == 1 && len(skipped) == 1 {
		return nil, skipped[0]
	}
	if err := ctx.Err(); err != nil {
		return compact(results), eris.Wrap(err, "discover: interrupted")
	}
	return compact(results), nil
}

func compact(results []*discovery.Result) []*discovery.Result {
	out := results[:0]
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func formatDiscoveryResults(w io.Writer, results []*discovery.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No suburbs discovered.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBURB\tSTATUS\tAGENCIES\tAGENTS\tCALLS\tCOST\tERROR")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.SuburbSlug, r.Status, r.AgenciesFound, r.AgentsFound, r.Cost.Calls, formatUSD(r.Cost.EstimatedUSD), r.Error)
	}
	tw.Flush() //nolint:errcheck
}

func formatUSD(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.4f", *v)
}

func init() {
	f := discoverCmd.Flags()
	f.StringVar(&discoverSuburb, "suburb", "", "suburb name")
	f.StringVar(&discoverState, "state", "", "state abbreviation, e.g. NSW")
	f.BoolVar(&discoverDryRun, "dry-run", false, "resolve suburbs without researching or writing")
	f.BoolVar(&discoverAll, "all", false, "discover every pending suburb")
	f.IntVar(&discoverTier, "tier", 0, "with --all, only this priority tier (1-3)")
	f.IntVar(&discoverLimit, "limit", 0, "with --all, maximum suburbs to run (0 = store default)")
	f.IntVar(&discoverConcurrency, "concurrency", 1, "suburbs discovered in parallel")
	rootCmd.AddCommand(discoverCmd)
}
