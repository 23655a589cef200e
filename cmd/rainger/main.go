package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/m25mathews/rainger-poc/internal/config"
	"github.com/m25mathews/rainger-poc/internal/logging"
)

var (
	// Loaded by the root command before any subcommand runs.
	cfg *config.Config

	configFile string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "rainger",
		Short: "Customer location resolution pipeline",
		Long: `Normalizes customer addresses from several source systems into canonical
locations, groups nearby locations into sites and links every source record
to its location.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			var searchPaths []string
			if configFile != "" {
				searchPaths = append(searchPaths, configFile)
			}
			var err error
			if cfg, err = config.Load(searchPaths...); err != nil {
				return err
			}
			logging.Setup(cfg.Env.Log.Level, cfg.Env.Log.Format)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: config/config.yaml)")

	rootCmd.AddCommand(createInitializeCmd())
	rootCmd.AddCommand(createInitializeKindCmd("initialize-firmographic", "firmographic"))
	rootCmd.AddCommand(createInitializeKindCmd("initialize-keepstock", "keepstock"))
	rootCmd.AddCommand(createGenerateCmd())
	rootCmd.AddCommand(createGenerateSoldToCmd())
	rootCmd.AddCommand(createClusterCmd())
	rootCmd.AddCommand(createAssociateCmd())
	rootCmd.AddCommand(createAssociateSoldToCmd())
	rootCmd.AddCommand(createAssociateFirmographicCmd())
	rootCmd.AddCommand(createAssociateKeepstockCmd())
	rootCmd.AddCommand(createCommitCmd())
	rootCmd.AddCommand(createBridgeCmd())
	rootCmd.AddCommand(createFlagResidentialCmd())
	rootCmd.AddCommand(createStatsCmd())
	rootCmd.AddCommand(createNormalizeCmd())
	rootCmd.AddCommand(createServeCmd())
	rootCmd.AddCommand(createPingCmd())
	rootCmd.AddCommand(createEnsureSchemaCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
