package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gamevault/internal/server/app"
	"gamevault/internal/server/config"
	"gamevault/internal/shared/logging"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "gamevault-server",
		Short:         "Game collection API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("GAMEVAULT_CONFIG"), "Path to a TOML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := logging.New(cmd.ErrOrStderr(), cfg.Log.Level)
			store, err := app.OpenStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			return store.Close()
		},
	})

	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the example configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "gamevault.toml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteExample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	})
	root.AddCommand(cfgCmd)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gamevault-server %s (%s)\n", version, buildDate)
		},
	})
	return root
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(os.Stderr, cfg.Log.Level)
	if ctx == nil {
		ctx = context.Background()
	}
	application, err := app.New(ctx, cfg, version, buildDate, logger)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}
