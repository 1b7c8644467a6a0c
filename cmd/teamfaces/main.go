// Package main is the teamfaces command line client: sign in, update your card and watch the board.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/teamfaces/teamfaces/internal/cliconfig"
	"github.com/teamfaces/teamfaces/internal/guard"
	"github.com/teamfaces/teamfaces/internal/keychain"
	"github.com/teamfaces/teamfaces/internal/session"
	"github.com/teamfaces/teamfaces/pkg/client"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// keychainFactory allows injecting a mock keychain in tests
var keychainFactory func() keychain.Keychain = func() keychain.Keychain {
	return keychain.NewSystemKeychain()
}

// stdinIsTerminal reports whether prompts can read a hidden password.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// errNotSignedIn is returned when a command needs a session and none can be prompted for.
var errNotSignedIn = errors.New("not signed in: run `teamfaces login` first")

func main() {
	if err := execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// execute runs one invocation and releases the session store however it ends.
func execute(args []string, in io.Reader, out, errOut io.Writer) error {
	a := &app{}
	defer a.close()
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.Execute()
}

// app is the state shared by every command of one invocation.
type app struct {
	serverFlag string
	verbose    bool

	cfg    *cliconfig.Config
	api    *client.Client
	store  *session.Store
	logger *zap.Logger
	reader *bufio.Reader
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "teamfaces",
		Short:         "Team presence board",
		Long:          "See who is available, update your status card and run the team board.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.serverFlag, "server", "", "API server URL (overrides config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newRegisterCmd(a),
		newResetPasswordCmd(a),
		newWhoamiCmd(a),
		newSetupCmd(a),
		newJoinCmd(a),
		newTeamCmd(a),
		newBoardCmd(a),
		newStatusCmd(a),
		newProfileCmd(a),
		newInviteCmd(a),
		newAdminCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := cliconfig.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.serverFlag != "" {
		cfg.Server.URL = a.serverFlag
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), a.verbose)
	a.api = client.New(cfg.Server.URL, "")
	a.reader = bufio.NewReader(cmd.InOrStdin())
	return nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// session returns the started session store, creating it on first use.
func (a *app) session(ctx context.Context) *session.Store {
	if a.store == nil {
		a.store = session.New(a.api, keychainFactory(), session.Config{
			TokenKey: keychain.TokenKey(a.cfg.Server.URL),
			ErrorTTL: a.cfg.Session.ErrorTTL,
		}, a.logger)
		a.store.Start(ctx)
	}
	return a.store
}

type runFunc func(cmd *cobra.Command, args []string) error

// guarded runs fn only when the route guard lets the signed-in identity see route.
// A missing session prompts for credentials on a terminal and then resumes route.
func (a *app) guarded(route func(args []string) string, fn runFunc) runFunc {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store := a.session(ctx)
		location := route(args)
		prompted := false
		for {
			out := guard.Navigate(store.State().Guard(), location)
			a.logger.Debug("navigate", zap.String("location", location), zap.Stringer("decision", out.Decision))
			switch out.Decision {
			case guard.Render:
				return fn(cmd, args)
			case guard.Loading:
				fmt.Fprintln(cmd.ErrOrStderr(), "loading…")
				if err := store.Wait(ctx); err != nil {
					return err
				}
			case guard.RedirectLogin:
				if prompted || !stdinIsTerminal() {
					return errNotSignedIn
				}
				prompted = true
				fmt.Fprintln(cmd.OutOrStdout(), "Sign in to continue.")
				if err := a.promptSignIn(cmd, ""); err != nil {
					return err
				}
				if from := guard.ReturnTo(out.Location); from != "" {
					location = from
				}
			case guard.RedirectHome:
				ident := store.State().Identity
				fmt.Fprintf(cmd.OutOrStdout(), "Already signed in as %s.\n", ident.Name)
				return a.printHome(cmd)
			case guard.RedirectUnauthorized:
				ident := store.State().Identity
				return fmt.Errorf("%s is not available to the %s role", strings.TrimPrefix(location, "/"), ident.Role)
			default:
				return fmt.Errorf("unexpected navigation outcome %s", out.Decision)
			}
		}
	}
}

// at returns a fixed route for guarded.
func at(path string) func([]string) string {
	return func([]string) string { return path }
}

// promptSignIn signs in with email (prompted when empty) and a prompted password.
func (a *app) promptSignIn(cmd *cobra.Command, email string) error {
	var err error
	if email == "" {
		if email, err = a.prompt(cmd, "Email: "); err != nil {
			return err
		}
	}
	password, err := a.promptSecret(cmd, "Password: ")
	if err != nil {
		return err
	}
	if err := a.session(cmd.Context()).SignIn(cmd.Context(), email, password); err != nil {
		return fmt.Errorf("login failed: %s", client.Message(err))
	}
	return nil
}

// prompt reads one line of input.
func (a *app) prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), label)
	line, err := a.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(strings.TrimSuffix(label, ": ")), err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads a password without echo on a terminal, or a plain line otherwise.
func (a *app) promptSecret(cmd *cobra.Command, label string) (string, error) {
	if !stdinIsTerminal() {
		return a.prompt(cmd, label)
	}
	fmt.Fprint(cmd.OutOrStdout(), label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// valueOrPrompt returns v, or asks for it when empty.
func (a *app) valueOrPrompt(cmd *cobra.Command, v, label string, secret bool) (string, error) {
	if v != "" {
		return v, nil
	}
	if secret {
		return a.promptSecret(cmd, label)
	}
	return a.prompt(cmd, label)
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core)
}
