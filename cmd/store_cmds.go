package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/agent-research-cli/internal/catalog"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("schema up to date", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the suburb catalog into scrape_progress",
	Long:  "Upserts every catalog suburb as a pending scrape_progress row. Existing rows keep their progress. Without --file the embedded Sydney catalog is used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		path := seedFile
		if path == "" {
			path = cfg.Catalog.Path
		}
		entries, err := catalog.Load(path)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.SeedSuburbs(ctx, catalog.Seeds(entries))
		if err != nil {
			return eris.Wrap(err, "seed suburbs")
		}
		zap.L().Info("catalog seeded", zap.Int("suburbs", n), zap.String("source", sourceName(path)))
		return nil
	},
}

func sourceName(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "catalog file (.yaml, .csv or .xlsx)")
	rootCmd.AddCommand(migrateCmd, seedCmd)
}
