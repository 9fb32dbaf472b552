// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/presage/internal/config"
	"github.com/xkilldash9x/presage/internal/observability"
)

var (
	cfgFile string
	// appConfig holds the resolved configuration for the running command.
	// Populated by the root command's PersistentPreRunE.
	appConfig *config.Config
)

// NewRootCommand builds a fresh root command with all subcommands
// attached. Each invocation gets its own instance so flag state never
// leaks between runs.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "presage",
		Short: "Presage watches a page and predicts the user's next interaction.",
		Long: `Presage attaches to a live page, follows pointer, keyboard, and scroll
activity, and fires prediction callbacks just before the user commits to
an interactive element. Sessions can be traced to disk and replayed.`,
		// Version is dynamically set at build time. See cmd/version.go.
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// This runs before any command, setting up config and logging.
			if err := initializeConfig(); err != nil {
				return err
			}

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				// Initialize a fallback logger so the failure is visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "presage"})
				return fmt.Errorf("failed to load config: %w", err)
			}
			appConfig = cfg

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting presage.", zap.String("version", Version))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml or ~/.presage/config.yaml)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-file", "", "also write JSON logs to this file")
	_ = viper.BindPFlag("logger.level", root.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logger.log_file", root.PersistentFlags().Lookup("log-file"))
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(newWatchCmd())
	root.AddCommand(newReplayCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the CLI under the given signal-aware context.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		// The logger only exists once config loading succeeded.
		if appConfig != nil {
			observability.GetLogger().Error("Command execution failed.", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	return err
}

// initializeConfig reads in the config file and environment variables.
func initializeConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".presage"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PRESAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the run.
	}
	return nil
}
