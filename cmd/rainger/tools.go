package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/m25mathews/rainger-poc/internal/db"
	"github.com/m25mathews/rainger-poc/internal/logging"
	"github.com/m25mathews/rainger-poc/internal/normalize"
	"github.com/m25mathews/rainger-poc/internal/postal"
	"github.com/m25mathews/rainger-poc/internal/store"
	"github.com/m25mathews/rainger-poc/internal/web"
)

// createNormalizeCmd parses and normalizes one address without a database.
func createNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize [address]",
		Short: "Parse and normalize a one-line address",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			got := postal.Normalize(postal.Default(), normalize.DefaultTables(), strings.Join(args, " "))
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(got)
		},
	}
}

func createServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				server, err := web.NewServer(cfg, web.Deps{
					Stats:   a.store,
					Runner:  a.workflows,
					Metrics: a.metrics,
				})
				if err != nil {
					return err
				}
				return server.Start(cmd.Context())
			})
		},
	}
}

// createPingCmd creates a command to test database connectivity
func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.NewConnection(cmd.Context(), cfg.Postgres)
			if err != nil {
				return err
			}
			defer conn.Close()

			var version string
			if err := conn.DB.QueryRowContext(cmd.Context(), "SELECT version()").Scan(&version); err != nil {
				return err
			}
			fmt.Println("Database connection successful!")
			fmt.Println(version)
			return nil
		},
	}
}

func createEnsureSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-schema",
		Short: "Create the schemas and tables the pipeline needs",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.NewConnection(cmd.Context(), cfg.Postgres)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := store.New(conn.DB, cfg.Schemas).EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			logging.WithComponent("cli").Info("schema ready", "core", cfg.Schemas.Core)
			return nil
		},
	}
}
