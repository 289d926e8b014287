package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/feedback"
	"github.com/joseph-ayodele/cv-autofill/internal/repository"
)

func newDictionaryCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dictionary",
		Short: "Manage tenant field synonyms, skill aliases and canonical skills",
	}

	var user, tenant string
	importCmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Load synonyms, aliases and skills from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := e.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			db, err := openDB(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := feedback.NewService(repository.NewFeedbackRepository(db), feedback.ConfigFrom(cfg), log,
				feedback.WithSkillRepository(repository.NewSkillRepository(db)))
			res, err := svc.ImportDictionary(cmd.Context(), common.Operator{UserID: user, TenantID: tenant}, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d synonyms, %d aliases, %d skills\n", res.Synonyms, res.Aliases, res.Skills)
			return nil
		},
	}
	importCmd.Flags().StringVarP(&user, "user", "u", "cli", "operator id recorded on the entries")
	importCmd.Flags().StringVarP(&tenant, "tenant", "t", "", "tenant id (default tenant.default)")

	cmd.AddCommand(importCmd)
	return cmd
}
