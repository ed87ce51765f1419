// Package cli holds the hirepal cobra commands. Every command shares the
// config loading and service wiring in this package.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hirepal/internal/config"
	"hirepal/internal/logger"
)

const app = "hirepal"

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "hirepal answers recruiter questions over a collection of CVs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command with os.Args.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteArgs runs the root command with explicit arguments.
func ExecuteArgs(args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hirepal.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	rootCmd.AddCommand(serveCmd, lambdaCmd, mcpCmd, chatCmd)
}

// setup loads the configuration and builds the logger. Flags win over the
// config file.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Log.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("json") {
		cfg.Log.JSON, _ = flags.GetBool("json")
	}

	log := logger.New(logger.Options{JSON: cfg.Log.JSON, Debug: cfg.Log.Debug, File: cfg.Log.File})
	log.Debug("configuration loaded",
		zap.String("retrieval_backend", cfg.Retrieval.Backend),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("session_backend", cfg.Session.Backend),
	)
	return cfg, log, nil
}

func wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
