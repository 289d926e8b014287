// Package cli holds the cv-autofill cobra commands.
package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/logger"
)

const app = "cv-autofill"

// env is the runtime shared by the subcommands.
type env struct {
	v       *viper.Viper
	cfgFile string
}

func (e *env) load() (*common.Config, *zap.Logger, error) {
	cfg, err := common.LoadConfig(e.v, e.cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ValidateError(); err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func NewRootCommand() *cobra.Command {
	e := &env{v: viper.New()}
	if p := os.Getenv("CVA_CONFIG"); p != "" {
		e.cfgFile = p
	}

	rootCmd := &cobra.Command{
		Use:           app,
		Short:         "cv-autofill turns uploaded CVs into reviewable profile drafts",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVar(&e.cfgFile, "config", e.cfgFile, "a YAML config file (env CVA_CONFIG)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	// flags win over CVA_LOG_* and the config file
	_ = e.v.BindPFlag("log.debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = e.v.BindPFlag("log.json", rootCmd.PersistentFlags().Lookup("json"))

	rootCmd.AddCommand(
		newServeCommand(e),
		newExtractCommand(e),
		newWatchCommand(e),
		newMigrateCommand(e),
		newDBHealthCommand(e),
		newDictionaryCommand(e),
		newExportCommand(e),
	)
	return rootCmd
}
