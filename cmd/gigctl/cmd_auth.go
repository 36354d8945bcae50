package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/profiles"
)

var loginCmd = &cobra.Command{
	Use:   "login <email> <password>",
	Short: "Sign in and save the session token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		a, err := c.Login(cmd.Context(), args[0], args[1])
		if err != nil {
			return explain(err)
		}
		if err := saveToken(a.Token); err != nil {
			return err
		}
		fmt.Printf("signed in as %s (%s)\n", a.Profile.Username, a.Profile.Role)
		return nil
	},
}

var signupFlags profiles.SignupInput

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and save the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newClient().Signup(cmd.Context(), signupFlags)
		if err != nil {
			return explain(err)
		}
		if err := saveToken(a.Token); err != nil {
			return err
		}
		fmt.Printf("welcome, %s\n", a.Profile.Username)
		return nil
	},
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the signed-in profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newClient().Me(cmd.Context())
		if err != nil {
			return explain(err)
		}
		return printJSON(p)
	},
}

func init() {
	f := signupCmd.Flags()
	f.StringVar(&signupFlags.Email, "email", "", "email address")
	f.StringVar(&signupFlags.Password, "password", "", "password, at least 8 characters")
	f.StringVar(&signupFlags.PasswordConfirmation, "password-confirmation", "", "the password again")
	f.StringVar(&signupFlags.FullName, "name", "", "full name")
	f.StringVar(&signupFlags.Username, "username", "", "public username")
	f.StringVar(&signupFlags.Role, "role", "buyer", "buyer or seller")
	f.BoolVar(&signupFlags.AcceptTerms, "accept-terms", false, "accept the terms of service")
	_ = signupCmd.MarkFlagRequired("email")
	_ = signupCmd.MarkFlagRequired("password")
	_ = signupCmd.MarkFlagRequired("password-confirmation")
	_ = signupCmd.MarkFlagRequired("username")
}
