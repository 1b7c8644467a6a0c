package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamfaces/teamfaces/internal/guard"
	"github.com/teamfaces/teamfaces/internal/session"
	"github.com/teamfaces/teamfaces/pkg/client"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the team board",
		Long:  "Sign in and store the session token in the system keychain.",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.guarded(at(guard.LoginPath), func(cmd *cobra.Command, args []string) error {
		var err error
		if email, err = a.valueOrPrompt(cmd, email, "Email: ", false); err != nil {
			return err
		}
		if password, err = a.valueOrPrompt(cmd, password, "Password: ", true); err != nil {
			return err
		}
		store := a.session(cmd.Context())
		if err := store.SignIn(cmd.Context(), email, password); err != nil {
			return fmt.Errorf("login failed: %s", client.Message(err))
		}
		ident := store.State().Identity
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s). Token stored securely.\n", ident.Name, ident.Role)
		return nil
	})
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (will prompt if not provided)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.session(cmd.Context())
			if err := store.Wait(cmd.Context()); err != nil {
				return err
			}
			if store.State().Identity == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			if err := store.SignOut(cmd.Context()); err != nil {
				return fmt.Errorf("logout failed: %s", client.Message(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out. Stored credentials removed.")
			return nil
		},
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account on a team that allows self-registration",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.guarded(at("/register"), func(cmd *cobra.Command, args []string) error {
		var err error
		if name, err = a.valueOrPrompt(cmd, name, "Name: ", false); err != nil {
			return err
		}
		if email, err = a.valueOrPrompt(cmd, email, "Email: ", false); err != nil {
			return err
		}
		if password, err = a.valueOrPrompt(cmd, password, "Password: ", true); err != nil {
			return err
		}
		store := a.session(cmd.Context())
		if err := store.SignUp(cmd.Context(), email, password, session.Profile{Name: name}); err != nil {
			return fmt.Errorf("registration failed: %s", client.Message(err))
		}
		ident := store.State().Identity
		fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s! You joined as %s.\n", ident.Name, ident.Role)
		return nil
	})
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (will prompt if not provided)")
	return cmd
}

func newResetPasswordCmd(a *app) *cobra.Command {
	var email, code, password string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Request a password reset email, or set a new password with --code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if code == "" {
				var err error
				if email, err = a.valueOrPrompt(cmd, email, "Email: ", false); err != nil {
					return err
				}
				if err := a.session(ctx).RequestPasswordReset(ctx, email); err != nil {
					return fmt.Errorf("reset request failed: %s", client.Message(err))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "If that address has an account, a reset code is on its way.")
				return nil
			}
			var err error
			if password, err = a.valueOrPrompt(cmd, password, "New password: ", true); err != nil {
				return err
			}
			if err := a.api.ConfirmPasswordReset(ctx, code, password); err != nil {
				return fmt.Errorf("password reset failed: %s", client.Message(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated. Sign in with `teamfaces login`.")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email address")
	cmd.Flags().StringVar(&code, "code", "", "Reset code from the email")
	cmd.Flags().StringVar(&password, "password", "", "New password (will prompt if not provided)")
	return cmd
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.session(cmd.Context())
			if err := store.Wait(cmd.Context()); err != nil {
				return err
			}
			ident := store.State().Identity
			if ident == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Not signed in to %s.\n", a.cfg.Server.URL)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\nrole:   %s\nserver: %s\n", ident.Name, ident.Email, ident.Role, a.cfg.Server.URL)
			return nil
		},
	}
}
