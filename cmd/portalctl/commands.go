package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hiprotech/portal/application/port/inbound"
	"github.com/hiprotech/portal/application/port/outbound"
	"github.com/hiprotech/portal/application/usecase"
	"github.com/hiprotech/portal/domain/entity"
)

var errNotSignedIn = errors.New("not signed in, run: portalctl login")

func loginCmd(opts *options) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = readSecret(cmd, "Password: "); err != nil {
					return err
				}
			}
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				user, err := a.auth.Login(ctx, inbound.LoginRequest{Email: email, Password: password})
				if err != nil {
					return authFailure(a, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", user.Email, user.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", os.Getenv("PORTAL_PASSWORD"), "Account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func registerCmd(opts *options) *cobra.Command {
	var req inbound.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				var err error
				if req.Password, err = readSecret(cmd, "Password: "); err != nil {
					return err
				}
			}
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				user, err := a.auth.Register(ctx, req)
				if err != nil {
					return authFailure(a, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registered and signed in as %s (%s)\n", user.Email, user.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&req.Password, "password", os.Getenv("PORTAL_PASSWORD"), "Account password (prompted when empty)")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "Last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("last-name")
	return cmd
}

func logoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				a.auth.Resume(ctx)
				if err := a.auth.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "signed out")
				return nil
			})
		},
	}
}

func whoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user from the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				if !a.auth.Resume(ctx) {
					return errNotSignedIn
				}
				snap := a.state.Snapshot()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %s (%s)\n", snap.User.ID, snap.User.Email, snap.User.Role)
				if exp, ok := a.codec.Expiry(snap.AccessToken()); ok {
					fmt.Fprintf(out, "access token expires %s (in %s)\n",
						exp.Local().Format(time.RFC1123), exp.Sub(a.clock.Now()).Round(time.Second))
				}
				return nil
			})
		},
	}
}

func profileCmd(opts *options) *cobra.Command {
	var patch entity.UserPatch

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the profile, or update it with the flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				if !a.auth.Resume(ctx) {
					return errNotSignedIn
				}

				var user *entity.User
				var err error
				if patch == (entity.UserPatch{}) {
					user, err = a.auth.Profile(ctx)
				} else {
					user, err = a.auth.UpdateProfile(ctx, patch)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), user)
			})
		},
	}
	cmd.Flags().StringVar(&patch.FirstName, "first-name", "", "New first name")
	cmd.Flags().StringVar(&patch.LastName, "last-name", "", "New last name")
	cmd.Flags().StringVar(&patch.Avatar, "avatar", "", "New avatar URL")
	return cmd
}

func getCmd(opts *options) *cobra.Command {
	var query []string

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Send an authenticated GET to the backend and print the body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseQuery(query)
			if err != nil {
				return err
			}
			path := args[0]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				resp, err := a.gateway.Do(ctx, &outbound.Request{Method: http.MethodGet, Path: path, Query: q})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if _, err := out.Write(resp.Body); err != nil {
					return err
				}
				if len(resp.Body) > 0 && resp.Body[len(resp.Body)-1] != '\n' {
					fmt.Fprintln(out)
				}
				if !resp.OK() {
					return fmt.Errorf("request failed with status %d", resp.StatusCode)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "Query parameter as key=value (repeatable)")
	return cmd
}

func prefsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "prefs [value]",
		Short: "Show or set the stored user preferences",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				if len(args) == 1 {
					return a.store.SavePreferences(ctx, args[0])
				}
				prefs, ok := a.store.Preferences(ctx)
				if !ok {
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), prefs)
				return nil
			})
		},
	}
}

// watchCmd keeps a session monitor running until the session ends or the
// process is interrupted.
func watchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the stored session and report when it ends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				if !a.auth.Resume(ctx) {
					return errNotSignedIn
				}

				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				ctx, cancel := context.WithCancel(ctx)
				defer cancel()

				out := cmd.OutOrStdout()
				unsubscribe := a.state.Subscribe(func(s entity.Session) {
					if !s.Authenticated {
						fmt.Fprintln(out, sessionEndedNotice)
						cancel()
					}
				})
				defer unsubscribe()

				snap := a.state.Snapshot()
				fmt.Fprintf(out, "watching session for %s, press Ctrl+C to stop\n", snap.User.Email)
				usecase.NewSessionMonitor(a.state, a.store, a.codec, a.clock, opts.checkInterval, a.logger).
					WithRenewal(a.auth).
					Run(ctx)
				return nil
			})
		},
	}
}

// authFailure prefers the message recorded on the session, which carries
// the backend's wording.
func authFailure(a *app, err error) error {
	if msg := a.state.Snapshot().Error; msg != "" {
		return errors.New(msg)
	}
	return err
}

func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}

func parseQuery(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	q := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid query parameter %q, want key=value", p)
		}
		q[k] = v
	}
	return q, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
