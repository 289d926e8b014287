package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/internal/repository"
)

func newDBHealthCommand(e *env) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "dbhealth",
		Short: "Ping the database and list the canonical skill dictionary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := e.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			db, err := repository.Open(ctx, cfg.Database, log)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.HealthCheck(ctx, timeout); err != nil {
				log.Error("dbhealth.fail", zap.Error(err))
				return err
			}
			if err := db.Migrate(ctx); err != nil {
				return err
			}

			skills, err := repository.NewSkillRepository(db).ListCanonical(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "DB health: OK (%s)\n", db.Dialect)
			fmt.Fprintf(out, "canonical skills: %d\n", len(skills))
			for _, s := range skills {
				fmt.Fprintf(out, "- %s\n", s)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Second, "health check timeout")
	return cmd
}
