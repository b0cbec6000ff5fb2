package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-accounts/persistence"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd(configFile *string) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending account migrations, or roll all of them back with --down.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, *configFile, down)
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back every migration")

	return cmd
}

func runMigrate(cmd *cobra.Command, configFile string, down bool) error {
	d, err := loadDeps(cmd.Context(), configFile)
	if err != nil {
		return err
	}
	defer d.Close()

	m, err := persistence.NewMigrator(d.db)
	if err != nil {
		return err
	}
	defer m.Close()

	if down {
		cmd.Println("Rolling back migrations...")
		if err := m.Down(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
		}
		cmd.Println("Migrations rolled back")
		return nil
	}

	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	version, _, err := m.Version()
	if err != nil {
		return err
	}

	cmd.Printf("Migrations completed successfully, schema version %d\n", version)
	return nil
}
