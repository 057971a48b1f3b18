package main

import (
	"fmt"

	"github.com/medistore/backend/internal/domain/session"
	"github.com/spf13/cobra"
)

func (c *cli) signupCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account with email and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()
			user, err := c.app.Provider.SignUp(ctx, email, password)
			if err != nil {
				return err
			}
			printSignedIn(cmd, user)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (8+ characters)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password, provider, credential string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password or a federated credential",
		Long: `Sign in and remember the session in the local store.

  shopctl login --email jane@example.com --password ...
  shopctl login --provider google --credential <id-token>
  shopctl login phone +15551234567     (then: shopctl login confirm <id> <code>)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()
			var (
				user *session.User
				err  error
			)
			switch {
			case provider != "":
				user, err = c.app.Provider.SignInWithOAuth(ctx, provider, credential)
			case email != "":
				user, err = c.app.Provider.SignIn(ctx, email, password)
			default:
				return fmt.Errorf("either --email or --provider is required")
			}
			if err != nil {
				return err
			}
			printSignedIn(cmd, user)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	cmd.Flags().StringVar(&provider, "provider", "", "Federated provider, e.g. google")
	cmd.Flags().StringVar(&credential, "credential", "", "Provider credential (ID token)")

	var challenge string
	phoneCmd := &cobra.Command{
		Use:   "phone <number>",
		Short: "Send a sign-in code to a phone number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()
			verifier, err := c.app.Provider.PhoneVerifier(ctx, args[0], challenge)
			if err != nil {
				return err
			}
			id, err := c.app.Provider.StartPhoneSignIn(ctx, args[0], verifier)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Code sent. Confirm with: shopctl login confirm %s <code>\n", id)
			return nil
		},
	}
	phoneCmd.Flags().StringVar(&challenge, "challenge", "", "Solved reCAPTCHA or hCaptcha response token")

	cmd.AddCommand(phoneCmd, &cobra.Command{
		Use:   "confirm <confirmation-id> <code>",
		Short: "Finish a phone sign-in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()
			user, err := c.app.Provider.ConfirmPhoneSignIn(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			printSignedIn(cmd, user)
			return nil
		},
	})
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	var everywhere bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()
			if everywhere {
				if err := c.app.Provider.SignOutEverywhere(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out of all sessions")
				return nil
			}
			// sign-out failures are logged by the session store, never fatal
			c.app.Session.SignOut(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
	cmd.Flags().BoolVar(&everywhere, "everywhere", false, "End every session of this account, on all devices")
	return cmd
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()
			user, err := c.app.Provider.CurrentUser(ctx)
			if err != nil {
				return err
			}
			printUser(cmd, user)
			return nil
		},
	}
}

func printSignedIn(cmd *cobra.Command, user *session.User) {
	fmt.Fprint(cmd.OutOrStdout(), "Signed in as ")
	printUser(cmd, user)
}

func printUser(cmd *cobra.Command, user *session.User) {
	name := user.Email
	if name == "" {
		name = user.PhoneNumber
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", name, user.ID)
}
