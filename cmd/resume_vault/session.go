package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/resume-vault/internal/config"
	"github.com/jonathan/resume-vault/internal/server"
	"github.com/jonathan/resume-vault/internal/types"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var (
		token    string
		role     string
		id       string
		username string
		password string
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the artifact store",
		Long: `Sign in with a username and password, or install a token issued elsewhere
with --token, --role and --id. The session is persisted for later commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token != "" {
				return a.loginWithToken(token, role, id, username)
			}
			if username == "" {
				var err error
				if username, err = a.readLine("Username: "); err != nil {
					return err
				}
			}
			if password == "" {
				var err error
				if password, err = a.readLine("Password: "); err != nil {
					return err
				}
			}
			tok, p, err := a.client.SignIn(cmd.Context(), username, password)
			if err != nil {
				return report(err)
			}
			s, err := a.sessions.SignIn(tok, p)
			if err != nil {
				return err
			}
			a.printer.PrintPrincipal(s.Principal, expiry(s.ExpiresAt))
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Bearer token to install instead of signing in")
	cmd.Flags().StringVar(&role, "role", "", "Role carried by --token: bidder, developer or admin")
	cmd.Flags().StringVar(&id, "id", "", "User id carried by --token")
	cmd.Flags().StringVar(&username, "username", "", "Username")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	return cmd
}

func (a *app) loginWithToken(token, role, id, username string) error {
	r, err := types.ParseRole(role)
	if err != nil {
		return fmt.Errorf("--token needs --role: %w", err)
	}
	if id == "" {
		return errors.New("--token needs --id")
	}
	if username == "" {
		username = id
	}
	p, err := types.NewPrincipal(r, id, username)
	if err != nil {
		return err
	}
	s, err := a.sessions.SignIn(token, p)
	if err != nil {
		return err
	}
	a.printer.PrintPrincipal(s.Principal, expiry(s.ExpiresAt))
	return nil
}

func expiry(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(time.RFC3339)
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.sessions.SignOut(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and what they can do",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, ok := a.sessions.Current()
			if !ok {
				a.printer.PrintPrincipal(nil, "")
				return nil
			}
			a.printer.PrintPrincipal(s.Principal, expiry(s.ExpiresAt))
			return nil
		},
	}
}

// newTokenCmd mints a token the way the reference store does. It needs the
// store's JWT_SECRET and is meant for development.
func newTokenCmd(_ *app) *cobra.Command {
	var role, id, username string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := types.ParseRole(role)
			if err != nil {
				return err
			}
			if username == "" {
				username = id
			}
			p, err := types.NewPrincipal(r, id, username)
			if err != nil {
				return err
			}
			jwtConfig, err := config.NewJWTConfig()
			if err != nil {
				return err
			}
			token, err := server.NewJWTService(jwtConfig).GenerateToken(p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "Role: bidder, developer or admin")
	cmd.Flags().StringVar(&id, "id", "", "User id")
	cmd.Flags().StringVar(&username, "username", "", "Username (defaults to --id)")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
