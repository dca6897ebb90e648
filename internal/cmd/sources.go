package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkordes/geopulse-companion/internal/locationsource"
	"github.com/pkordes/geopulse-companion/internal/style"
)

var sourcesCmd = &cobra.Command{
	Use:         "sources",
	GroupID:     GroupLocal,
	Short:       "List the location apps GeoPulse can receive points from",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{noAppAnnotation: "true"},
	RunE:        runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	all := locationsource.All()
	if jsonOutput {
		return printJSON(cmd, all)
	}
	out := cmd.OutOrStdout()
	for _, m := range all {
		fmt.Fprintf(out, "  %s %s\n", style.Bold.Render(fmt.Sprintf("%-15s", m.Label)), style.Dim.Render(string(m.Type)))
		fmt.Fprintf(out, "  %-15s %s\n", "", m.Description)
	}
	return nil
}
