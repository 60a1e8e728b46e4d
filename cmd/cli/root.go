package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/flowbaker/runreel/internal/config"
	"github.com/flowbaker/runreel/internal/initialization"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "runreel",
		Short: "Run timeline GIF service",
		Long: `Runreel turns the screenshots recorded in a flow run's message log into an animated GIF,
publishes it to object storage and tracks its status on the run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Path to a config file")
	rootCmd.PersistentFlags().String("env-file", "", "Path to an env file (defaults to .env)")

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewWorkerCommand())
	rootCmd.AddCommand(NewGenerateCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(config.LoadParams{
		ConfigFile: configFile,
		EnvFile:    envFile,
	})
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = zerolog.DebugLevel
	}

	zerolog.SetGlobalLevel(level)

	log.Debug().Str("level", level.String()).Msg("Configuration loaded")

	return cfg, nil
}

func buildContainer(ctx context.Context, cmd *cobra.Command) (*initialization.Container, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	container, err := initialization.NewContainer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependencies: %w", err)
	}

	return container, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
