package main

import (
	"fmt"

	"todotree/internal/config"
	"todotree/internal/logger"
	"todotree/internal/migrations"
	"todotree/internal/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "todotree",
	Short:         "Nested to-do list API with subtask suggestions",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		l := logger.New(cfg.LogLevel)

		s, err := server.Init(cfg, l)
		if err != nil {
			l.Error("Server initialization failed", "err", err)
			return err
		}
		return s.Run()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := migrations.Up(cfg.MigrateURL()); err != nil {
			return err
		}
		logger.New(cfg.LogLevel).Info("Schema is up to date")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return migrations.Down(cfg.MigrateURL())
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		version, dirty, err := migrations.Version(cfg.MigrateURL())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd)
}
