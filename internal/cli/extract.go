package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/entity"
	"github.com/joseph-ayodele/cv-autofill/internal/jobs"
)

func newExtractCommand(e *env) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Run one file through the pipeline locally and print the draft as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := e.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			path := args[0]
			buf, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			ext := constants.NormalizeExt(filepath.Ext(path))
			if _, ok := constants.MIMEForExt(ext); !ok {
				return fmt.Errorf("unsupported extension %q", ext)
			}

			a, err := buildApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close(5 * time.Second)

			if tenant == "" {
				tenant = cfg.Tenant.Default
			}
			job := &entity.ExtractionJob{
				OwnerID:  "cli",
				TenantID: tenant,
				Status:   constants.JobStatusProcessing,
				FileName: jobs.SanitizeFileName(filepath.Base(path)),
				FileType: ext,
				FileSize: int64(len(buf)),
			}
			d, ae := a.Processor.Run(cmd.Context(), job, buf)
			if ae != nil {
				log.Error("extract.failed", zap.String("code", ae.Code), zap.Error(ae))
				return ae
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		},
	}
	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "tenant whose dictionaries apply (default tenant.default)")
	return cmd
}
