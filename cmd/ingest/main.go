package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/timmy/pokedex/internal/app"
	"github.com/timmy/pokedex/internal/config"
	"github.com/timmy/pokedex/internal/logger"
)

var (
	configPath string
	components *app.Components
)

var rootCmd = &cobra.Command{
	Use:           "pokedex-ingest",
	Short:         "Push documents into the Pokedex index",
	Long:          `Submit profiles, push the static catalog, or remove documents without running the API server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		components, err = app.Build(cmd.Context(), cfg)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if components == nil {
			return nil
		}
		defer components.Close()
		return components.Publisher.Wait(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "Path to config file")
}

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "pokedex-ingest",
	})
	logger.SetDefaultLogger(appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		appLogger.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}
