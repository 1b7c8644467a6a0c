package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/internal/guard"
	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/pkg/client"
)

// copyToClipboard is swapped in tests.
var copyToClipboard = clipboard.WriteAll

func newInviteCmd(a *app) *cobra.Command {
	var list, copyCode bool
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Create a single-use invite code, or list codes with --list",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.guarded(at("/admin/invites"), func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		if list {
			codes, err := a.api.ListInvites(ctx)
			if err != nil {
				return fmt.Errorf("list invites: %s", client.Message(err))
			}
			writeInvites(out, codes, time.Now())
			return nil
		}
		code, err := a.api.CreateInvite(ctx)
		if err != nil {
			return fmt.Errorf("create invite: %s", client.Message(err))
		}
		fmt.Fprintf(out, "Invite code: %s (expires %s)\n", code.Code, code.ExpiresAt.Local().Format("Jan 2 15:04"))
		fmt.Fprintf(out, "Teammates join with: teamfaces join %s\n", code.Code)
		if copyCode {
			if err := copyToClipboard(code.Code); err != nil {
				a.logger.Warn("clipboard unavailable", zap.Error(err))
				fmt.Fprintln(cmd.ErrOrStderr(), "Could not copy to the clipboard.")
			} else {
				fmt.Fprintln(out, "Copied to clipboard.")
			}
		}
		return nil
	})
	cmd.Flags().BoolVar(&list, "list", false, "List invite codes instead of creating one")
	cmd.Flags().BoolVarP(&copyCode, "copy", "c", false, "Copy the new code to the clipboard")
	return cmd
}

func writeInvites(out io.Writer, codes []models.InviteCode, now time.Time) {
	if len(codes) == 0 {
		fmt.Fprintln(out, "No invite codes.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tSTATE\tEXPIRES")
	for _, c := range codes {
		state := "active"
		switch {
		case c.Used:
			state = "used"
		case !c.Usable(now):
			state = "expired"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Code, state, c.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()
}

func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin dashboard and team management",
		Long:  "With no subcommand, shows the dashboard: member counts, statuses and recent activity.",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.guarded(at(guard.AdminPath), func(cmd *cobra.Command, args []string) error {
		d, err := a.api.Dashboard(cmd.Context())
		if err != nil {
			return fmt.Errorf("load dashboard: %s", client.Message(err))
		}
		writeDashboard(cmd.OutOrStdout(), d)
		return nil
	})
	cmd.AddCommand(newAdminEmailsCmd(a), newAdminMemberCmd(a), newAdminTeamCmd(a))
	return cmd
}

func writeDashboard(out io.Writer, d *client.Dashboard) {
	fmt.Fprintf(out, "%s\n\n", d.TeamName)
	fmt.Fprintf(out, "Members:         %d\n", d.TotalMembers)
	fmt.Fprintf(out, "Active today:    %d\n", d.ActiveToday)
	fmt.Fprintf(out, "Pending invites: %d\n", d.PendingInvites)
	fmt.Fprintf(out, "Boards online:   %d\n\n", d.BoardsOnline)
	for _, s := range models.Statuses {
		fmt.Fprintf(out, "  %-10s %d\n", s, d.StatusCounts[s])
	}
	if len(d.RecentActivity) == 0 {
		return
	}
	fmt.Fprintln(out, "\nRecent activity")
	for _, act := range d.RecentActivity {
		fmt.Fprintf(out, "  %s  %s\n", act.Timestamp.Local().Format("Jan 2 15:04"), act.Message)
	}
}

func newAdminEmailsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "emails",
		Short: "Show recent outgoing email deliveries",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.guarded(at(guard.AdminPath), func(cmd *cobra.Command, args []string) error {
		logs, err := a.api.EmailLogs(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("load email log: %s", client.Message(err))
		}
		out := cmd.OutOrStdout()
		if len(logs) == 0 {
			fmt.Fprintln(out, "No emails sent yet.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "WHEN\tTYPE\tTO\tSTATUS\tERROR")
		for _, l := range logs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.CreatedAt.Local().Format("Jan 2 15:04"), l.EmailType, l.RecipientEmail, l.Status, dash(l.ErrorMessage))
		}
		return tw.Flush()
	})
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries")
	return cmd
}

func newAdminMemberCmd(a *app) *cobra.Command {
	var role, status, message, schedule string
	cmd := &cobra.Command{
		Use:   "member ID",
		Short: "Edit another member's role or card",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = a.guarded(at(guard.AdminPath), func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid member id %q", args[0])
		}
		var u client.MemberUpdate
		if cmd.Flags().Changed("role") {
			r, ok := models.ParseRole(strings.ToLower(role))
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			u.Role = &r
		}
		if cmd.Flags().Changed("status") {
			st, ok := models.ParseStatus(strings.ToLower(status))
			if !ok {
				return fmt.Errorf("unknown status %q: use one of %s", status, statusNames())
			}
			u.Status = &st
		}
		if cmd.Flags().Changed("message") {
			u.StatusMessage = &message
		}
		if cmd.Flags().Changed("schedule") {
			u.Schedule = &schedule
		}
		m, err := a.api.UpdateMember(cmd.Context(), id, u)
		if err != nil {
			return fmt.Errorf("update member: %s", client.Message(err))
		}
		writeMembers(cmd.OutOrStdout(), []models.Member{*m}, time.Now())
		return nil
	})
	cmd.Flags().StringVar(&role, "role", "", "admin, member or viewer")
	cmd.Flags().StringVar(&status, "status", "", "Status to set")
	cmd.Flags().StringVar(&message, "message", "", "Status message")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Schedule note")
	return cmd
}

func newAdminTeamCmd(a *app) *cobra.Command {
	var name, description, theme string
	var selfRegister, approval bool
	var u client.TeamUpdate
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Change the team name, description, logo or settings",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.guarded(at(guard.AdminPath), func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("name") {
			u.Name = &name
		}
		if cmd.Flags().Changed("description") {
			u.Description = &description
		}
		if cmd.Flags().Changed("self-register") {
			u.AllowSelfRegister = &selfRegister
		}
		if cmd.Flags().Changed("approval") {
			u.RequireApproval = &approval
		}
		if cmd.Flags().Changed("theme") {
			u.Theme = &theme
		}
		t, err := a.api.UpdateTeam(cmd.Context(), u)
		if err != nil {
			return fmt.Errorf("update team: %s", client.Message(err))
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Team updated: %s\n", t.Name)
		fmt.Fprintf(out, "self-register: %t\napproval:      %t\ntheme:         %s\n",
			t.Settings.AllowSelfRegister, t.Settings.RequireApproval, t.Settings.Theme)
		return nil
	})
	cmd.Flags().StringVar(&name, "name", "", "Team name")
	cmd.Flags().StringVar(&description, "description", "", "Team description")
	cmd.Flags().StringVar(&u.LogoPath, "logo", "", "Path to a team logo image")
	cmd.Flags().BoolVar(&selfRegister, "self-register", false, "Let people register without an invite code")
	cmd.Flags().BoolVar(&approval, "approval", false, "Self-registered users join as viewers until promoted")
	cmd.Flags().StringVar(&theme, "theme", "", "Board theme: dark or light")
	return cmd
}
