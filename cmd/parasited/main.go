package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"parasited/internal/di"
	"parasited/internal/models"
	"parasited/internal/providers"
	"parasited/internal/structures"
)

const defaultConfigPath = "config/config.yaml"

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func bindFlags(flags *pflag.FlagSet, cli *structures.CliFlags) {
	flags.StringVarP(&cli.ConfigPath, "config", "c", defaultConfigPath, "path to the YAML config file")
	flags.BoolVar(&cli.DebugMode, "debug", false, "also log to stderr")
}

func newServeCommand(cli *structures.CliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the state authority HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := di.InitApp(cli)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := app.Logger()
			defer logger.Close()
			if err := providers.WatchConfig(cli, logger, app.Reload); err != nil {
				logger.Warnf(providers.TypeApp, "Config hot reload disabled: %s", err)
			}
			return app.Run(ctx)
		},
	}
}

func newMigrateCommand(cli *structures.CliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade the stored layout to the current schema version and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			tb, err := di.InitToolbox(cli)
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}
			err = tb.Authority.MigrateSchema(cmd.Context())
			if closeErr := tb.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema is at version %d\n", models.SchemaVersion)
			return nil
		},
	}
}

func newCleanupCommand(cli *structures.CliFlags) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove daily records older than --days and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			tb, err := di.InitToolbox(cli)
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			removed, err := tb.Authority.CleanupOldData(ctx, days)
			if closeErr := tb.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d daily records older than %d days\n", removed, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", models.DefaultRetentionDays, "days of daily records to keep")
	return cmd
}

func newRootCommand() *cobra.Command {
	cli := &structures.CliFlags{}
	root := &cobra.Command{
		Use:           "parasited",
		Short:         "State authority for the short-form video usage parasite",
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	bindFlags(root.PersistentFlags(), cli)

	serve := newServeCommand(cli)
	root.RunE = serve.RunE
	root.AddCommand(serve, newMigrateCommand(cli), newCleanupCommand(cli))
	return root
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "parasited:", err)
		os.Exit(1)
	}
}
