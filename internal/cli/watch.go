package cli

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/ingest"
)

func newWatchCommand(e *env) *cobra.Command {
	var (
		user        string
		tenant      string
		initialScan bool
		debounce    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Submit CVs dropped into the given directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := e.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			a, err := buildApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close(shutdownTimeout)

			if tenant == "" {
				tenant = cfg.Tenant.Default
			}
			op := common.Operator{UserID: user, TenantID: tenant}
			ing := ingest.NewFSIngestor(a.Jobs, op, cfg.Server.MaxUploadMB, log)
			log.Info("watch.starting", zap.Strings("roots", args), zap.String("user_id", user))
			return ing.Watch(cmd.Context(), ingest.WatchConfig{
				Roots:       args,
				InitialScan: initialScan,
				SkipHidden:  true,
				Debounce:    debounce,
				Logger:      log,
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "watch-folder", "operator id submissions are made as")
	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "tenant id (default tenant.default)")
	cmd.Flags().BoolVar(&initialScan, "initial-scan", true, "submit files already present")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "coalesce write bursts")
	return cmd
}
