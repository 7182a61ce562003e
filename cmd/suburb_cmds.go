package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/agent-research-cli/internal/model"
	"github.com/sells-group/agent-research-cli/internal/progress"
)

var retryCmd = &cobra.Command{
	Use:   "retry <suburb-slug>",
	Short: "Reset a failed suburb to pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transitionSuburb(cmd.Context(), args[0], (*progress.Tracker).Retry)
	},
}

var abandonCmd = &cobra.Command{
	Use:   "abandon <suburb-slug>",
	Short: "Mark a suburb as permanently skipped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transitionSuburb(cmd.Context(), args[0], (*progress.Tracker).Abandon)
	},
}

func transitionSuburb(ctx context.Context, slug string, apply func(*progress.Tracker, context.Context, string) (*model.Suburb, error)) error {
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	sb, err := apply(progress.New(st), ctx, slug)
	if err != nil {
		return err
	}
	zap.L().Info("suburb updated",
		zap.String("suburb", sb.Slug),
		zap.String("status", string(sb.Status)),
		zap.Int("retry_count", sb.RetryCount),
	)
	return nil
}

func init() {
	rootCmd.AddCommand(retryCmd, abandonCmd)
}
