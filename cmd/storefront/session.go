package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vango-dev/storefront/internal/errors"
	"github.com/vango-dev/storefront/pkg/session"
)

func sessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and change the signed-in session",
		Long: `Inspect and change the signed-in session.

The session is a bearer token and the customer profile it belongs to.
Both are mirrored to the configured storage and restored by every command.`,
	}

	cmd.AddCommand(
		sessionShowCmd(a),
		sessionLoginCmd(a),
		sessionSetCmd(a),
		sessionLogoutCmd(a),
	)
	return cmd
}

func sessionShowCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStorage, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStorage()

			if err := store.Hydrate(cmd.Context()); err != nil {
				return err
			}

			current := store.Read()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), current)
			}
			printSession(cmd.OutOrStdout(), current)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the session as JSON")
	return cmd
}

func sessionLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in against the catalog API and store the session",
		Example: `  storefront session login --email grace@example.com --password secret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeStorage, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStorage()

			token, user, err := a.catalogClient(nil).SignIn(ctx, email, password)
			if err != nil {
				return err
			}
			if err := store.Set(ctx, token, user); err != nil {
				return err
			}

			success(cmd.OutOrStdout(), "Signed in as %s", describeUser(user))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func sessionSetCmd(a *app) *cobra.Command {
	var token, userJSON string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a token and user obtained elsewhere",
		Example: `  storefront session set --token eyJhbGciOi... \
    --user-json '{"id":3,"email":"grace@example.com","firstName":"Grace"}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var user *session.User
			if userJSON != "" {
				decoded, err := session.DecodeUser(userJSON)
				if err != nil {
					return errors.New("S501").
						WithDetail("--user-json must be a JSON object describing the user.").
						Wrap(err)
				}
				user = decoded
			}

			ctx := cmd.Context()
			store, closeStorage, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStorage()

			if err := store.Set(ctx, token, user); err != nil {
				return err
			}

			success(cmd.OutOrStdout(), "Session stored for %s", describeUser(user))
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Bearer token")
	cmd.Flags().StringVar(&userJSON, "user-json", "", "User profile as a JSON object")
	return cmd
}

func sessionLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeStorage, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStorage()

			// A stored entry that cannot be restored is still removed.
			if err := store.Clear(ctx); err != nil {
				return err
			}

			success(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func printSession(w io.Writer, s session.Session) {
	if !s.LoggedIn() {
		fmt.Fprintln(w, "Not signed in")
		return
	}
	fmt.Fprintf(w, "Signed in as %s\n", describeUser(s.User))
	info(w, "User ID: %d", s.User.ID)
	if s.User.Role != "" {
		info(w, "Role:    %s", s.User.Role)
	}
	info(w, "Token:   %s", maskToken(s.Token))
}

func describeUser(u *session.User) string {
	if u == nil {
		return "unknown user"
	}
	name := u.FullName()
	switch {
	case name == "":
		return u.Email
	case u.Email == "":
		return name
	default:
		return fmt.Sprintf("%s <%s>", name, u.Email)
	}
}

// maskToken keeps the first characters of a token.
func maskToken(token string) string {
	const visible = 8
	if len(token) <= visible {
		return token
	}
	return token[:visible] + "…"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
