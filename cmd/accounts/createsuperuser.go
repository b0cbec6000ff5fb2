package main

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-accounts"
)

// NewCreateSuperuserCmd creates the createsuperuser subcommand.
func NewCreateSuperuserCmd(configFile *string) *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create a verified owner account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := validation.Errors{
				"email":    validation.Validate(email, validation.Required, is.Email),
				"password": validation.Validate(password, validation.Required, validation.Length(accounts.MinPasswordLength, accounts.MaxPasswordLength)),
			}.Filter()
			if err != nil {
				return oops.Code("INVALID_ARGUMENTS").Wrap(err)
			}

			d, err := loadDeps(cmd.Context(), *configFile)
			if err != nil {
				return err
			}
			defer d.Close()

			user, err := accounts.CreateSuperuser(
				cmd.Context(),
				accounts.NewUsersRepository(d.db),
				email,
				password,
				accounts.WithFullName(name),
			)
			if err != nil {
				return oops.Code("CREATE_SUPERUSER_FAILED").With("email", email).Wrap(err)
			}

			cmd.Printf("Superuser %s created with id %s\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&name, "name", "", "full name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
