package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command of the accounts CLI.
func NewRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "User accounts service",
		Long: `Serves the signup, login, email verification and password reset
pages, and manages the accounts database.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default ./accounts.yaml)")

	cmd.AddCommand(NewServeCmd(&configFile))
	cmd.AddCommand(NewMigrateCmd(&configFile))
	cmd.AddCommand(NewCreateSuperuserCmd(&configFile))

	return cmd
}
