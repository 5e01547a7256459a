package cli

import (
	"errors"
	"fmt"

	"sensorhub/internal/model"
	"sensorhub/internal/server"

	"github.com/spf13/cobra"
)

var adminFlags struct {
	email     string
	password  string
	firstName string
	lastName  string
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an application admin",
	Long:  `Create a user with the application Admin role in the configured store.`,
	RunE:  runCreateAdmin,
}

func init() {
	f := createAdminCmd.Flags()
	f.StringVar(&adminFlags.email, "email", "", "admin email (required)")
	f.StringVar(&adminFlags.password, "password", "", "admin password, at least 8 characters (required)")
	f.StringVar(&adminFlags.firstName, "first-name", "App", "first name")
	f.StringVar(&adminFlags.lastName, "last-name", "Admin", "last name")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(createAdminCmd)
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	if len(adminFlags.password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, log)
	if err != nil {
		return err
	}
	defer srv.Close()

	user, err := srv.Services().Users.CreateAdmin(commandContext(cmd), model.RegisterRequest{
		FirstName: adminFlags.firstName,
		LastName:  adminFlags.lastName,
		Email:     adminFlags.email,
		Password:  adminFlags.password,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", user.Email, user.ID.Hex())
	return nil
}
