package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/five82/bookshare/internal/app"
	"github.com/five82/bookshare/internal/lending"
	"github.com/five82/bookshare/internal/session"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "bookshare: %v\n", err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	var opts app.Options

	root := &cobra.Command{
		Use:           "bookshare",
		Short:         "Lend and borrow books with the people around you",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "override config path (optional)")
	root.PersistentFlags().StringVar(&opts.PrefsPath, "prefs", "", "override preferences path (optional)")
	root.Flags().IntVar(&opts.PollEvery, "poll", 0, "dashboard refresh interval in seconds (optional, defaults to 15s)")
	root.Flags().StringVar(&opts.StartRoute, "open", "", "route to open on start, e.g. /mybooks (optional)")

	root.AddCommand(
		newLoginCommand(&opts),
		newLogoutCommand(&opts),
		newSignupCommand(&opts),
		newWhoamiCommand(&opts),
	)
	return root
}

func newLoginCommand(opts *app.Options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := app.Setup(*opts)
			if err != nil {
				return err
			}
			defer env.Close()

			in := bufio.NewReader(cmd.InOrStdin())
			if email == "" {
				if email, err = prompt(cmd.OutOrStdout(), in, "Email: "); err != nil {
					return err
				}
			}
			password, err := readPassword(cmd.OutOrStdout(), in, "Password: ")
			if err != nil {
				return err
			}

			user, err := login(cmd.Context(), env, lending.Credentials{Email: email, Password: password})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", userLabel(user))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (prompted when empty)")
	return cmd
}

func newLogoutCommand(opts *app.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := app.Setup(*opts)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.Session.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newSignupCommand(opts *app.Options) *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := app.Setup(*opts)
			if err != nil {
				return err
			}
			defer env.Close()

			out := cmd.OutOrStdout()
			in := bufio.NewReader(cmd.InOrStdin())
			if name == "" {
				if name, err = prompt(out, in, "Name: "); err != nil {
					return err
				}
			}
			if email == "" {
				if email, err = prompt(out, in, "Email: "); err != nil {
					return err
				}
			}
			password, err := readPassword(out, in, "Password: ")
			if err != nil {
				return err
			}

			req := lending.Signup{Name: name, Email: email, Password: password}
			if err := env.Client.Signup(cmd.Context(), req); err != nil {
				return errors.New(lending.Message(err))
			}
			user, err := login(cmd.Context(), env, lending.Credentials{Email: email, Password: password})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Welcome, %s\n", userLabel(user))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (prompted when empty)")
	cmd.Flags().StringVar(&email, "email", "", "account email (prompted when empty)")
	return cmd
}

func newWhoamiCommand(opts *app.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := app.Setup(*opts)
			if err != nil {
				return err
			}
			defer env.Close()

			if env.Session.Initialize(cmd.Context(), env.Client) != session.StatusAuthenticated {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			snap := env.Session.Snapshot()
			if snap.User == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Signed in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", userLabel(*snap.User), snap.User.Email)
			return nil
		},
	}
}

// login exchanges credentials for a bearer token, persists it and confirms it
// with the verify endpoint.
func login(ctx context.Context, env *app.Env, creds lending.Credentials) (lending.User, error) {
	token, err := env.Client.Login(ctx, creds)
	if err != nil {
		if lending.Classify(err) == lending.KindAuthExpired {
			return lending.User{}, errors.New("invalid email or password")
		}
		return lending.User{}, errors.New(lending.Message(err))
	}
	if err := env.Session.PersistCredential(token); err != nil {
		return lending.User{}, err
	}
	user, err := env.Client.Verify(ctx)
	if err != nil {
		_ = env.Session.Logout()
		return lending.User{}, fmt.Errorf("verify credential: %w", err)
	}
	env.Session.Login(user)
	return user, nil
}

func prompt(out io.Writer, in *bufio.Reader, label string) (string, error) {
	line, err := readLine(out, in, label)
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", fmt.Errorf("%s is required", fieldName(label))
	}
	return value, nil
}

// readLine prints label and returns the next line without its terminator.
func readLine(out io.Writer, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

// readPassword masks input on a terminal and falls back to a plain line
// when stdin is piped. Surrounding spaces are part of the password.
func readPassword(out io.Writer, in *bufio.Reader, label string) (string, error) {
	var password string
	if stdinIsTerminal() {
		fmt.Fprint(out, label)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	} else {
		line, err := readLine(out, in, label)
		if err != nil {
			return "", err
		}
		password = line
	}
	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}

func fieldName(label string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(label), ":"))
}

func userLabel(u lending.User) string {
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return u.Email
}
