package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teamfaces/teamfaces/internal/cliconfig"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the CLI configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintf(cmd.OutOrStdout(), "config file:       %s\n", cliconfig.GetConfigPath())
				fmt.Fprintf(cmd.OutOrStdout(), "server.url:        %s\n", a.cfg.Server.URL)
				fmt.Fprintf(cmd.OutOrStdout(), "session.error_ttl: %s\n", a.cfg.Session.ErrorTTL)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Set server.url or session.error_ttl",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := cliconfig.Load()
				if err != nil {
					return err
				}
				switch args[0] {
				case "server.url":
					cfg.Server.URL = args[1]
					if err := cfg.Validate(); err != nil {
						return err
					}
				case "session.error_ttl":
					d, err := time.ParseDuration(args[1])
					if err != nil || d <= 0 {
						return fmt.Errorf("session.error_ttl must be a positive duration such as 5s, got %q", args[1])
					}
					cfg.Session.ErrorTTL = d
				default:
					return fmt.Errorf("unknown key %q: use server.url or session.error_ttl", args[0])
				}
				if err := cfg.Save(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
				return nil
			},
		},
	)
	return cmd
}
