// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/webactions/internal/config"
	"github.com/xkilldash9x/webactions/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

var (
	cfgFile string
	envFile = ".env"
	osExit  = os.Exit
)

// rootFlags maps persistent flags onto configuration keys.
var rootFlags = map[string]string{
	"headless":    "browser.headless",
	"exec-path":   "browser.exec_path",
	"timeout":     "wait.default_timeout",
	"cookie-file": "network.cookie_file",
	"log-level":   "logger.level",
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(viper.New())
}

// buildRootCmd assembles the command tree around v, which receives defaults,
// bound flags, the config file and the environment.
func buildRootCmd(v *viper.Viper) *cobra.Command {
	config.SetDefaults(v)

	cmd := &cobra.Command{
		Use:           "webactions",
		Short:         "Drive a real browser from the command line.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(cmd, v); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "webactions"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			// Logs go to stderr so JSON on stdout stays parseable.
			observability.Initialize(cfg.Logger, zapcore.Lock(os.Stderr))
			observability.GetLogger().Debug("Starting webactions.", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	flags.Bool("headless", false, "run the browser without a window")
	flags.String("exec-path", "", "path to the Chrome or Chromium binary")
	flags.Duration("timeout", 0, "default explicit wait for element lookups")
	flags.String("cookie-file", "", "load and save cookies from this file")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	for flag, key := range rootFlags {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newSnapshotCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the CLI with a context cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	observability.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		osExit(1)
	}
}

// initializeConfig layers .env, the config file and WEBACTIONS_* variables
// under the flags already bound to v. Flags only override when set.
func initializeConfig(cmd *cobra.Command, v *viper.Viper) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading %s: %w", envFile, err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("WEBACTIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// getConfigFromContext returns the configuration stored by the root command.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration missing from command context")
	}
	return cfg, nil
}
