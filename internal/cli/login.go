package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/opsdeck/opsdeck/internal/session"
)

// newLoginCmd creates and returns a new login command
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the opsdeck server",
		Long: `Login to the opsdeck server to obtain a session token.
The token and user record are stored locally so the session survives across
invocations, unless --no-persist is given.

Example:
  opsdeck login --identity admin@example.com
  opsdeck login --identity admin@example.com --passwd=secret --no-persist`,
		RunE: runLogin,
	}

	cmd.Flags().String("identity", "", "Identity (email or username) to authenticate as")
	cmd.Flags().String("passwd", "", "Password for authentication (prompted when omitted)")
	cmd.Flags().Bool("no-persist", false, "Keep the session in memory only")
	return cmd
}

// runLogin handles the login command execution
func runLogin(cmd *cobra.Command, args []string) error {
	identity, _ := cmd.Flags().GetString("identity")
	if identity == "" {
		return fmt.Errorf("no identity provided. Use the --identity flag")
	}

	passwd, _ := cmd.Flags().GetString("passwd")
	if passwd == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		passwd = string(raw)
	}
	if passwd == "" {
		return fmt.Errorf("no password provided")
	}

	noPersist, _ := cmd.Flags().GetBool("no-persist")

	rt, err := requireRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.ctrl.Login(cmd.Context(), identity, passwd, !noPersist); err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}

	var expiresAt string
	if token, ok := rt.ctrl.Token(); ok {
		if expiry, err := session.TokenExpiry(token); err == nil {
			expiresAt = expiry.Format(time.RFC3339)
		}
	}

	if jsonOutput {
		kv := map[string]interface{}{
			"status":     "success",
			"message":    "Login successful",
			"expires_at": expiresAt,
		}
		printJSON(kv)
	} else {
		okLabel.Println("✓ Login successful")
		if expiresAt != "" {
			fmt.Printf("Token expires at: %s\n", expiresAt)
		}
	}

	return nil
}

// newLogoutCmd creates and returns a new logout command
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Long: `Logout revokes the session on the server on a best-effort basis and clears
local session state. It always succeeds locally even when the server cannot
be reached.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := requireRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			rt.ctrl.Logout(cmd.Context())

			if jsonOutput {
				printJSON(map[string]string{"status": "success"})
			} else {
				okLabel.Println("✓ Logged out")
			}
			return nil
		},
	}
}

// newWhoamiCmd creates and returns a new whoami command
func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated user",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := requireRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			user, ok := rt.ctrl.CurrentUser()
			if !ok {
				return fmt.Errorf("not logged in. Authenticate with \"opsdeck login\" first")
			}

			if jsonOutput {
				printJSON(user)
			} else {
				fmt.Printf("User: %s\n", user.Username)
				fmt.Printf("Email: %s\n", user.Email)
				fmt.Printf("Role: %s\n", user.Role)
				if user.DirectoryName != "" {
					fmt.Printf("Directory: %s\n", user.DirectoryName)
				}
			}
			return nil
		},
	}
}
