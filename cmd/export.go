package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/agent-research-cli/internal/export"
	"github.com/sells-group/agent-research-cli/internal/model"
)

var (
	exportOut    string
	exportState  string
	exportStatus string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write suburbs, agencies and agents to an Excel workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		opts := export.Options{State: exportState, Status: model.ScrapeStatus(exportStatus)}
		if exportStatus != "" && !opts.Status.Valid() {
			return eris.Errorf("export: unknown suburb status %q", exportStatus)
		}
		out := exportOut
		if out == "" {
			out = "agent-research-" + time.Now().UTC().Format("20060102") + ".xlsx"
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := export.WriteFile(ctx, st, opts, out); err != nil {
			return err
		}
		zap.L().Info("export written", zap.String("path", out))
		return nil
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportOut, "out", "o", "", "output path (default agent-research-YYYYMMDD.xlsx)")
	f.StringVar(&exportState, "state", "", "only suburbs in this state")
	f.StringVar(&exportStatus, "status", "", "only suburbs with this discovery status")
	rootCmd.AddCommand(exportCmd)
}
