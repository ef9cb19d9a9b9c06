package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/syncplane/internal/config"
	"github.com/hyperengineering/syncplane/internal/store"
)

var dbPathOverride string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations without running the server",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <path>",
	Short: "Write a consistent copy of the database to path",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshot,
}

func init() {
	for _, cmd := range []*cobra.Command{migrateCmd, snapshotCmd} {
		cmd.Flags().StringVar(&dbPathOverride, "db", "",
			"Database path (overrides config and SYNCPLANE_DB_PATH)")
	}
}

// openStore opens the configured database, running pending migrations.
func openStore() (*store.SQLiteStore, error) {
	path := dbPathOverride
	if path == "" {
		cfg, err := config.LoadDatabaseConfig()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		path = cfg.Path
	}
	return store.NewSQLiteStore(path)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := store.MigrationVersion(db.DB())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Database at schema version %d\n", version)
	return nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.GenerateSnapshot(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Snapshot written to %s\n", args[0])
	return nil
}
