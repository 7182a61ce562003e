package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/agent-research-cli/internal/model"
	"github.com/sells-group/agent-research-cli/internal/store"
)

var (
	statusSuburbs bool
	statusFilter  string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline progress",
	Long:  "Prints row totals, suburbs by discovery status and agents by enrichment status and quality. --suburbs lists suburb progress rows.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if statusSuburbs {
			filter := store.SuburbFilter{Status: model.ScrapeStatus(statusFilter), Limit: 500}
			if statusFilter != "" && !filter.Status.Valid() {
				return eris.Errorf("status: unknown suburb status %q", statusFilter)
			}
			suburbs, err := st.ListSuburbs(ctx, filter)
			if err != nil {
				return eris.Wrap(err, "status: list suburbs")
			}
			formatSuburbs(os.Stdout, suburbs)
			return nil
		}

		summary, err := loadSummary(ctx, st)
		if err != nil {
			return err
		}
		formatSummary(os.Stdout, summary)
		return nil
	},
}

type pipelineSummary struct {
	Totals              *store.Totals
	SuburbsByStatus     map[string]int
	EnrichmentByStatus  map[string]int
	EnrichmentByQuality map[string]int
}

func loadSummary(ctx context.Context, st store.Store) (*pipelineSummary, error) {
	var (
		s   pipelineSummary
		err error
	)
	if s.Totals, err = st.Totals(ctx); err != nil {
		return nil, eris.Wrap(err, "status: totals")
	}
	if s.SuburbsByStatus, err = st.CountSuburbsByStatus(ctx); err != nil {
		return nil, eris.Wrap(err, "status: suburbs by status")
	}
	if s.EnrichmentByStatus, err = st.CountAgentsByStatus(ctx); err != nil {
		return nil, eris.Wrap(err, "status: agents by status")
	}
	if s.EnrichmentByQuality, err = st.CountAgentsByQuality(ctx); err != nil {
		return nil, eris.Wrap(err, "status: agents by quality")
	}
	return &s, nil
}

func formatSummary(w io.Writer, s *pipelineSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Suburbs:\t%d\n", s.Totals.Suburbs)
	fmt.Fprintf(tw, "Agencies:\t%d\n", s.Totals.Agencies)
	fmt.Fprintf(tw, "Agents:\t%d\n", s.Totals.Agents)
	writeCounts(tw, "Suburbs by status", s.SuburbsByStatus)
	writeCounts(tw, "Enrichment by status", s.EnrichmentByStatus)
	writeCounts(tw, "Enrichment by quality", s.EnrichmentByQuality)
	tw.Flush() //nolint:errcheck
}

func writeCounts(w io.Writer, title string, counts map[string]int) {
	fmt.Fprintf(w, "\n%s:\n", title)
	if len(counts) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s\t%d\n", k, counts[k])
	}
}

func formatSuburbs(w io.Writer, suburbs []model.Suburb) {
	if len(suburbs) == 0 {
		fmt.Fprintln(w, "No suburbs found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tTIER\tSTATUS\tAGENCIES\tAGENTS\tRETRIES\tERROR")
	for _, sb := range suburbs {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\t%d\t%s\n",
			sb.Slug, sb.PriorityTier, sb.Status, sb.AgenciesFound, sb.AgentsFound, sb.RetryCount, sb.ErrorMessage)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	statusCmd.Flags().BoolVar(&statusSuburbs, "suburbs", false, "list suburb progress rows")
	statusCmd.Flags().StringVar(&statusFilter, "filter", "", "with --suburbs, only this status")
	rootCmd.AddCommand(statusCmd)
}
