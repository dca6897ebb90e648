package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pkordes/geopulse-companion/internal/style"
	"github.com/pkordes/geopulse-companion/internal/theme"
)

var themeCmd = &cobra.Command{
	Use:     "theme [light|dark|system]",
	GroupID: GroupLocal,
	Short:   "Show or set the theme preference",
	Long: `Show or set the light/dark theme preference.

The preference is stored alongside the session and shared with the web
companion server when both use the same storage. "system" follows the
operating system, which the CLI reports as light.

Examples:
  geopulse theme
  geopulse theme dark`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(theme.Light), string(theme.Dark), string(theme.System)},
	RunE:      runTheme,
}

func init() {
	rootCmd.AddCommand(themeCmd)
}

type themeOutput struct {
	Mode theme.Mode `json:"mode"`
	Dark bool       `json:"dark"`
}

func runTheme(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 1 {
		requested := strings.ToLower(strings.TrimSpace(args[0]))
		if string(theme.Normalize(requested)) != requested {
			return fmt.Errorf("unknown theme %q: use light, dark or system", args[0])
		}
		mode := current.Theme.Set(cmd.Context(), requested)
		if jsonOutput {
			return printJSON(cmd, themeOutput{Mode: mode, Dark: current.Theme.IsDark()})
		}
		fmt.Fprintf(out, "%s Theme set to %s\n", style.SuccessPrefix, mode)
		return nil
	}

	mode, dark := current.Theme.Mode(), current.Theme.IsDark()
	if jsonOutput {
		return printJSON(cmd, themeOutput{Mode: mode, Dark: dark})
	}
	shade := "light"
	if dark {
		shade = "dark"
	}
	fmt.Fprintf(out, "%s %s %s\n", style.Bold.Render("Theme:"), mode, style.Dim.Render("("+shade+")"))
	return nil
}
