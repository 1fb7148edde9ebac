package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/specimenhub-backend/internal/data/session"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Create users and manage their access",
}

var userCreateFlags struct {
	generatePassword bool
	roles            []string
	comment          string
}

var userCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a new database user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserCreate,
}

var userResetPasswordCmd = &cobra.Command{
	Use:   "reset-password <username>",
	Short: "Reset a user's password",
	Long: `Reset a user's password.

The newly generated random password is displayed on stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runUserResetPassword,
}

func init() {
	f := userCreateCmd.Flags()
	f.BoolVar(&userCreateFlags.generatePassword, "generate-password", false,
		"Assign a randomly generated password to the new user; it is displayed on stdout after creation")
	f.StringArrayVar(&userCreateFlags.roles, "role", nil, "Grant the named role to the new user")
	f.StringVar(&userCreateFlags.comment, "comment", "", "Description of the new user")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userResetPasswordCmd)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	name := args[0]

	cli, cleanup, err := openWarehouse()
	if err != nil {
		return err
	}
	defer cleanup()

	return cli.sess.Transaction(cmd.Context(), func(tx session.Session) error {
		if err := cli.wh.CreateUser(cmd.Context(), tx, name, userCreateFlags.comment); err != nil {
			return err
		}
		if err := cli.wh.GrantRoles(cmd.Context(), tx, name, userCreateFlags.roles); err != nil {
			return err
		}
		if userCreateFlags.generatePassword {
			password, err := cli.wh.ResetPassword(cmd.Context(), tx, name)
			if err != nil {
				return err
			}
			fmt.Printf("Password is %s\n", password)
		}
		return nil
	})
}

func runUserResetPassword(cmd *cobra.Command, args []string) error {
	cli, cleanup, err := openWarehouse()
	if err != nil {
		return err
	}
	defer cleanup()

	return cli.sess.Transaction(cmd.Context(), func(tx session.Session) error {
		password, err := cli.wh.ResetPassword(cmd.Context(), tx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("New password is %s\n", password)
		return nil
	})
}
