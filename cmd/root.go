// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tripwire-cli/internal/config"
	"github.com/xkilldash9x/tripwire-cli/internal/observability"
	"github.com/xkilldash9x/tripwire-cli/internal/runner"
)

type contextKey string

const configKey contextKey = "config"

const defaultEnvFile = ".env"

// ErrRunFailed is returned when a run completed but its verdict is failure.
var ErrRunFailed = errors.New("run failed")

// Exit codes of the tripwire binary.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfigError = 2
)

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cfgErr *runner.ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	return ExitFailure
}

// NewRootCommand builds the command tree with production dependencies.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultDependencies())
}

func newRootCommand(deps *dependencies) *cobra.Command {
	var cfgFile, envFile string

	cmd := &cobra.Command{
		Use:           "tripwire",
		Short:         "Tripwire runs scripted browser user flows and fails on unexpected runtime errors.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadDotEnv(envFile, cmd.Flags().Changed("env-file")); err != nil {
				return &runner.ConfigError{Err: err}
			}

			v := viper.New()
			config.SetDefaults(v)
			if err := initializeConfig(v, cfgFile); err != nil {
				return &runner.ConfigError{Err: fmt.Errorf("failed to initialize configuration: %w", err)}
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "tripwire"})
				return &runner.ConfigError{Err: fmt.Errorf("failed to load or validate config: %w", err)}
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting tripwire", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}
	cmd.SetVersionTemplate(`{{printf "tripwire version %s\n" .Version}}`)

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./tripwire.yaml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file loaded before the environment is read")

	cmd.AddCommand(newRunCmd(deps))
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newHistoryCmd(deps))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the root command and logs the failure, if any.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrRunFailed):
		observability.GetLogger().Warn("Flow failed", zap.Error(err))
	default:
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
	}
	observability.Sync()
	return err
}

// loadDotEnv reads path into the process environment without overriding
// variables that are already set. A missing default file is not an error.
func loadDotEnv(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// initializeConfig points v at the config file and the environment.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("tripwire")
		v.SetConfigType("yaml")
	}

	config.BindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}
	return nil
}

// getConfigFromContext returns the configuration stored by PersistentPreRunE.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is nil")
	}
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not found in context")
	}
	return cfg, nil
}
