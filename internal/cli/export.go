package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cv-autofill/internal/export"
	"github.com/joseph-ayodele/cv-autofill/internal/feedback"
	"github.com/joseph-ayodele/cv-autofill/internal/repository"
)

func newExportCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored data",
	}

	var tenant string
	fbCmd := &cobra.Command{
		Use:   "feedback <out.xlsx>",
		Short: "Write corrections, assignments and field accuracy to an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := e.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			db, err := openDB(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()

			if tenant == "" {
				tenant = cfg.Tenant.Default
			}
			repo := repository.NewFeedbackRepository(db)
			fb := feedback.NewService(repo, feedback.ConfigFrom(cfg), log)
			xlsx, err := export.NewService(repo, fb, log).ExportFeedbackXLSX(cmd.Context(), tenant)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], xlsx, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", args[0], len(xlsx))
			return nil
		},
	}
	fbCmd.Flags().StringVarP(&tenant, "tenant", "t", "", "tenant id (default tenant.default)")

	cmd.AddCommand(fbCmd)
	return cmd
}
