package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/pricecast/internal/session"
)

func newSignInCmd(opts *rootOptions) *cobra.Command {
	var (
		creds  session.Credentials
		google bool
	)
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in locally",
		Long: `Record a signed-in user in the local session store.

No credentials are verified: the password is accepted and discarded. The user
is named after --name, else --email, else "Guest".

Examples:
  pcx signin --email ada@example.com --password secret
  pcx signin --google`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			var provider session.IdentityProvider = session.MockPasswordProvider{}
			if google {
				provider = session.MockGoogleProvider{}
			}
			rec, err := a.store.SignInWith(cmd.Context(), provider, creds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", rec.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Name, "name", "", "display name")
	cmd.Flags().StringVar(&creds.Email, "email", "", "email address")
	cmd.Flags().StringVar(&creds.Password, "password", "", "password (not checked)")
	cmd.Flags().BoolVar(&google, "google", false, "use the placeholder Google identity")
	return cmd
}

func newSignUpCmd(opts *rootOptions) *cobra.Command {
	var creds session.Credentials
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a local account and sign in",
		Long: `Sign up and sign in immediately. A blank --name becomes "User".

Examples:
  pcx signup --name Ada --email ada@example.com --password secret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			rec, err := a.store.SignUp(cmd.Context(), session.SignUpPayload(creds))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s\n", rec.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Name, "name", "", "display name")
	cmd.Flags().StringVar(&creds.Email, "email", "", "email address")
	cmd.Flags().StringVar(&creds.Password, "password", "", "password (not checked)")
	return cmd
}

func newSignOutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Clear the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			if err := a.store.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			rec, ok := a.store.Load(cmd.Context())
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}
}

func newProfileCmd(opts *rootOptions) *cobra.Command {
	var name, email, avatar string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Edit the signed-in user's profile",
		Long: `Update fields of the signed-in record. Only flags that are given change;
an empty --name resets the name to "User".

Examples:
  pcx profile --name "Ada L."
  pcx profile --avatar https://example.com/ada.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}

			var p session.Profile
			if cmd.Flags().Changed("name") {
				p.Name = session.String(name)
			}
			if cmd.Flags().Changed("email") {
				p.Email = session.String(email)
			}
			if cmd.Flags().Changed("avatar") {
				p.Avatar = session.String(avatar)
			}

			rec, err := a.store.UpdateProfile(cmd.Context(), p)
			if errors.Is(err, session.ErrNoSession) {
				return fmt.Errorf("not signed in: run pcx signin first")
			}
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&avatar, "avatar", "", "avatar URL")
	return cmd
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print session changes made by other processes",
		Long: `Follow the local session record and print a line whenever another pcx or
pricecastd process signs in, edits the profile, or signs out. Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return session.Watch(cmd.Context(), a.storage.Dir(), a.cfg.Session.Key,
				func(rec *session.Record, ok bool) {
					if !ok {
						fmt.Fprintln(out, "signed out")
						return
					}
					fmt.Fprintf(out, "signed in as %s via %s\n", rec.DisplayName(), rec.Provider)
				},
				a.logger.Named("watch"),
			)
		},
	}
}

func printRecord(w io.Writer, rec *session.Record) {
	var b strings.Builder
	fmt.Fprintf(&b, "Name:      %s\n", rec.Name)
	if rec.Email != "" {
		fmt.Fprintf(&b, "Email:     %s\n", rec.Email)
	}
	if rec.Avatar != "" {
		fmt.Fprintf(&b, "Avatar:    %s\n", rec.Avatar)
	}
	fmt.Fprintf(&b, "Provider:  %s\n", rec.Provider)
	if rec.TS > 0 {
		fmt.Fprintf(&b, "Signed in: %s\n", humanize.Time(rec.SignedInAt()))
	}
	_, _ = io.WriteString(w, b.String())
}
