package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pkordes/geopulse-companion/internal/domain"
	"github.com/pkordes/geopulse-companion/internal/style"
)

var loginCmd = &cobra.Command{
	Use:     "login",
	GroupID: GroupSession,
	Short:   "Sign in with email and password",
	Long: `Sign in to the GeoPulse server with a password.

The session cookies and a snapshot of your profile are saved in the
configured storage, so later commands run without signing in again.
Prefer --password-stdin over --password to keep the password out of your
shell history.

Examples:
  geopulse login --email ada@example.com --password-stdin < pw.txt
  echo "$PW" | geopulse login --email ada@example.com --password-stdin`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: GroupSession,
	Short:   "Sign out and forget the saved session",
	Long: `Sign out of the GeoPulse server.

The local session is cleared even when the server cannot be reached.`,
	Args: cobra.NoArgs,
	RunE: runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	GroupID: GroupSession,
	Short:   "Show the signed-in user",
	Long: `Show the signed-in user.

A saved profile snapshot is trusted while the session is live; otherwise
the profile is fetched from the server.`,
	Args: cobra.NoArgs,
	RunE: runWhoami,
}

var (
	loginEmail         string // --email
	loginPassword      string // --password
	loginPasswordStdin bool   // --password-stdin
)

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (required)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from stdin")
	_ = loginCmd.MarkFlagRequired("email")
	loginCmd.MarkFlagsMutuallyExclusive("password", "password-stdin")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	password := loginPassword
	if loginPasswordStdin {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(string(b), "\r\n")
	}
	if password == "" {
		return fmt.Errorf("a password is required: use --password or --password-stdin")
	}

	u, err := current.Session.Login(cmd.Context(), strings.TrimSpace(loginEmail), password)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd, u)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Logged in as %s\n", style.SuccessPrefix, describeUser(u))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if err := current.Session.Logout(cmd.Context()); err != nil {
		fmt.Fprintf(out, "%s Server sign-out failed: %v\n", style.WarningPrefix, err)
		fmt.Fprintf(out, "%s Local session cleared\n", style.SuccessPrefix)
		return nil
	}
	fmt.Fprintf(out, "%s Logged out\n", style.SuccessPrefix)
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	u, ok := current.Session.CheckAuth(cmd.Context())
	if jsonOutput {
		if !ok {
			return printJSON(cmd, nil)
		}
		return printJSON(cmd, u)
	}
	if !ok {
		fmt.Fprintln(out, style.Dim.Render("Not logged in."))
		fmt.Fprintln(out, "Run 'geopulse login --email <email>' to sign in.")
		return nil
	}

	fmt.Fprintf(out, "%s %s\n", style.Bold.Render("Current user:"), describeUser(u))
	fmt.Fprintf(out, "  Timezone: %s\n", u.Timezone)
	fmt.Fprintf(out, "  Units:    %s\n", u.MeasureUnit)
	if u.Role == domain.RoleAdmin {
		fmt.Fprintf(out, "  Role:     %s\n", style.Info.Render(u.Role))
	}
	fmt.Fprintf(out, "  %s %s\n", style.Dim.Render("Session:"), style.Dim.Render(current.Session.State().String()))
	return nil
}

func describeUser(u domain.User) string {
	display := u.Email
	if u.FullName != "" {
		display = fmt.Sprintf("%s <%s>", u.FullName, u.Email)
	}
	if display == "" {
		display = "user " + u.ID
	}
	return display
}
