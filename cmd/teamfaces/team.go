package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/teamfaces/teamfaces/internal/guard"
	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/internal/roster"
	"github.com/teamfaces/teamfaces/internal/tui"
	"github.com/teamfaces/teamfaces/pkg/client"
)

func newTeamCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "List the team and everyone's status",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.guarded(at(guard.HomePath), func(cmd *cobra.Command, args []string) error {
		return a.printHome(cmd)
	})
	return cmd
}

// printHome prints the team header and the member table.
func (a *app) printHome(cmd *cobra.Command) error {
	ctx := cmd.Context()
	t, err := a.api.GetTeam(ctx)
	if err != nil {
		if client.IsStatus(err, http.StatusNotFound) {
			return errors.New("no team yet: run `teamfaces setup`")
		}
		return fmt.Errorf("load team: %s", client.Message(err))
	}
	members, err := a.api.ListMembers(ctx)
	if err != nil {
		return fmt.Errorf("load members: %s", client.Message(err))
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, t.Name)
	if t.Description != "" {
		fmt.Fprintln(out, t.Description)
	}
	fmt.Fprintln(out)
	writeMembers(out, members, time.Now())
	return nil
}

func writeMembers(out io.Writer, members []models.Member, now time.Time) {
	if len(members) == 0 {
		fmt.Fprintln(out, "No members yet.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS\tMESSAGE\tSCHEDULE\tLAST ACTIVE")
	for _, m := range members {
		last := "-"
		if m.LastActive != nil {
			last = tui.RelativeTime(*m.LastActive, now)
		}
		name := m.Name
		if m.Role == models.RoleAdmin {
			name += " (admin)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", name, m.Status.OrDefault(), dash(m.StatusMessage), dash(m.Schedule), last)
	}
	tw.Flush()
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func newBoardCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the live team board full screen",
		Long:  "Projection view: every member's card, updated live as statuses change. Press q to quit.",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.guarded(at(guard.ProjectionPath), func(cmd *cobra.Command, args []string) error {
		p := roster.NewProjector(roster.FromClient(a.api))
		if err := p.Mount(cmd.Context()); err != nil {
			if errors.Is(err, roster.ErrSetupRequired) {
				return errors.New("no team yet: run `teamfaces setup`")
			}
			return fmt.Errorf("open board: %s", client.Message(err))
		}
		return tui.Run(p, a.store.State().Identity.ID)
	})
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	var u client.CardUpdate
	var status string
	cmd := &cobra.Command{
		Use:   "status [STATUS]",
		Short: "Update your status card",
		Long: "Set your status (" + statusNames() + ") and optionally a message, schedule or photo.\n" +
			"With no arguments or flags, prints your current card.",
		Args: cobra.MaximumNArgs(1),
	}
	cmd.RunE = a.guarded(at("/status"), func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store := a.session(ctx)
		self := store.State().Identity
		if len(args) == 1 {
			status = args[0]
		}
		if status == "" && !cmd.Flags().Changed("message") && !cmd.Flags().Changed("schedule") &&
			!cmd.Flags().Changed("name") && u.PhotoPath == "" {
			m, err := a.api.GetMember(ctx, self.ID)
			if err != nil {
				return fmt.Errorf("load card: %s", client.Message(err))
			}
			writeMembers(cmd.OutOrStdout(), []models.Member{*m}, time.Now())
			return nil
		}

		current, err := a.api.GetMember(ctx, self.ID)
		if err != nil && !client.IsStatus(err, http.StatusNotFound) {
			return fmt.Errorf("load card: %s", client.Message(err))
		}
		if current != nil {
			u = mergeCard(u, current, cmd)
		}
		if status != "" {
			st, ok := models.ParseStatus(strings.ToLower(status))
			if !ok {
				return fmt.Errorf("unknown status %q: use one of %s", status, statusNames())
			}
			u.Status = st
		}
		if u.Name == "" {
			u.Name = self.Name
		}
		res, err := a.api.UpdateMyCard(ctx, u)
		if err != nil {
			return fmt.Errorf("update status: %s", client.Message(err))
		}
		store.Refresh(ctx, res.User)
		fmt.Fprintf(cmd.OutOrStdout(), "You are now %s", res.Member.Status)
		if res.Member.StatusMessage != "" {
			fmt.Fprintf(cmd.OutOrStdout(), ": %s", res.Member.StatusMessage)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	})
	cmd.Flags().StringVar(&status, "set", "", "Status to set")
	cmd.Flags().StringVarP(&u.StatusMessage, "message", "m", "", "Status message")
	cmd.Flags().StringVar(&u.Schedule, "schedule", "", "Working hours or schedule note")
	cmd.Flags().StringVar(&u.Name, "name", "", "Display name on your card")
	cmd.Flags().StringVar(&u.PhotoPath, "photo", "", "Path to a profile photo")
	return cmd
}

// mergeCard fills the fields the user did not pass from the stored card, since the
// card update replaces the whole card.
func mergeCard(u client.CardUpdate, m *models.Member, cmd *cobra.Command) client.CardUpdate {
	if !cmd.Flags().Changed("name") {
		u.Name = m.Name
	}
	if !cmd.Flags().Changed("message") {
		u.StatusMessage = m.StatusMessage
	}
	if !cmd.Flags().Changed("schedule") {
		u.Schedule = m.Schedule
	}
	u.Status = m.Status.OrDefault()
	return u
}

func statusNames() string {
	names := make([]string, len(models.Statuses))
	for i, s := range models.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func newProfileCmd(a *app) *cobra.Command {
	var name, email string
	var changePassword bool
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your account",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.guarded(at("/profile"), func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store := a.session(ctx)
		var u client.ProfileUpdate
		if cmd.Flags().Changed("name") {
			u.Name = &name
		}
		if cmd.Flags().Changed("email") {
			u.Email = &email
		}
		if changePassword {
			pw, err := a.promptSecret(cmd, "New password: ")
			if err != nil {
				return err
			}
			u.Password = &pw
		}
		if u.Name != nil || u.Email != nil || u.Password != nil {
			if err := store.UpdateProfile(ctx, u); err != nil {
				return fmt.Errorf("update profile: %s", client.Message(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Profile updated.")
		}
		ident := store.State().Identity
		fmt.Fprintf(cmd.OutOrStdout(), "name:  %s\nemail: %s\nrole:  %s\n", ident.Name, ident.Email, ident.Role)
		if ident.PhotoURL != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "photo: %s\n", ident.PhotoURL)
		}
		return nil
	})
	cmd.Flags().StringVar(&name, "name", "", "New display name")
	cmd.Flags().StringVar(&email, "email", "", "New email address")
	cmd.Flags().BoolVar(&changePassword, "password", false, "Prompt for a new password")
	return cmd
}
