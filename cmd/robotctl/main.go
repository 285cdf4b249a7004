package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/danmuck/robolink/internal/config"
	logs "github.com/danmuck/robolink/internal/logging"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	var flags globalFlags
	var cfg config.ClientConfig

	rootCmd := &cobra.Command{
		Use:   "robotctl",
		Short: "Terminal client for the robot websocket service",
		Long: `robotctl logs in over HTTP, loads the session's binary protocol
schema and keeps a websocket connection to the robot service open,
reconnecting on a fixed delay until told to stop.

Examples:
  robotctl login -u ada
  robotctl connect --config client.toml
  robotctl schema testdata/robot.sproto`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logs.ConfigureRuntime()
			gin.SetMode(gin.ReleaseMode)
			loaded, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			level := cfg.LogLevel
			if flags.logLevel != "" {
				level = flags.logLevel
			}
			if level != "" && !logs.SetLevel(level) {
				return fmt.Errorf("unknown log level %q", level)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (.toml, .yaml or .yml)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level override (trace|debug|info|warn|error)")

	rootCmd.AddCommand(
		loginCmd(&cfg),
		registerCmd(&cfg),
		connectCmd(&cfg),
		schemaCmd(),
		configCmd(),
		versionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "robotctl: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.ClientConfig, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := config.Default()
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, cfg.Validate()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "robotctl %s (%s)\n", version, commit)
		},
	}
}
