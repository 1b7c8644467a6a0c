package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamfaces/teamfaces/internal/guard"
	"github.com/teamfaces/teamfaces/pkg/client"
)

func newSetupCmd(a *app) *cobra.Command {
	var req client.SetupRequest
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the team and its first admin",
		Long:  "Run once on a fresh server: names the team and creates the admin account you are signed in as.",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.guarded(at(guard.SetupPath), func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		required, err := a.api.SetupRequired(ctx)
		if err != nil {
			return fmt.Errorf("check setup status: %s", client.Message(err))
		}
		if !required {
			return errors.New("this server already has a team; ask an admin for an invite code and run `teamfaces join`")
		}
		if req.TeamName, err = a.valueOrPrompt(cmd, req.TeamName, "Team name: ", false); err != nil {
			return err
		}
		if err := a.promptAccount(cmd, &req.Admin); err != nil {
			return err
		}
		res, err := a.api.Setup(ctx, req)
		if err != nil {
			return fmt.Errorf("setup failed: %s", client.Message(err))
		}
		if err := a.session(ctx).Adopt(ctx, res.Session); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Team %q is ready. You are signed in as %s (admin).\n", res.Team.Name, res.Session.User.Name)
		fmt.Fprintln(cmd.OutOrStdout(), "Invite teammates with `teamfaces invite`.")
		return nil
	})
	cmd.Flags().StringVar(&req.TeamName, "team", "", "Team name")
	cmd.Flags().StringVar(&req.Description, "description", "", "Team description")
	cmd.Flags().StringVar(&req.LogoPath, "logo", "", "Path to a team logo image")
	accountFlags(cmd, &req.Admin)
	return cmd
}

func newJoinCmd(a *app) *cobra.Command {
	var acct client.Account
	cmd := &cobra.Command{
		Use:   "join CODE",
		Short: "Join the team with an invite code",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = a.guarded(func(args []string) string { return "/join/" + args[0] }, func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		preview, err := a.api.PreviewInvite(ctx, args[0])
		if err != nil {
			return fmt.Errorf("invite code %s: %s", args[0], client.Message(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Joining %s.\n", preview.TeamName)
		if err := a.promptAccount(cmd, &acct); err != nil {
			return err
		}
		res, err := a.api.Join(ctx, args[0], acct)
		if err != nil {
			return fmt.Errorf("join failed: %s", client.Message(err))
		}
		if err := a.session(ctx).Adopt(ctx, res.Session); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Welcome to %s, %s! Set your status with `teamfaces status`.\n", res.Team.Name, res.Session.User.Name)
		return nil
	})
	accountFlags(cmd, &acct)
	return cmd
}

func accountFlags(cmd *cobra.Command, acct *client.Account) {
	cmd.Flags().StringVar(&acct.Name, "name", "", "Your display name")
	cmd.Flags().StringVar(&acct.Email, "email", "", "Your email address")
	cmd.Flags().StringVar(&acct.Password, "password", "", "Password (will prompt if not provided)")
}

func (a *app) promptAccount(cmd *cobra.Command, acct *client.Account) error {
	var err error
	if acct.Name, err = a.valueOrPrompt(cmd, acct.Name, "Your name: ", false); err != nil {
		return err
	}
	if acct.Email, err = a.valueOrPrompt(cmd, acct.Email, "Email: ", false); err != nil {
		return err
	}
	acct.Password, err = a.valueOrPrompt(cmd, acct.Password, "Password: ", true)
	return err
}
