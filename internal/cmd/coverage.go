package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkordes/geopulse-companion/internal/coverage"
	"github.com/pkordes/geopulse-companion/internal/domain"
	"github.com/pkordes/geopulse-companion/internal/style"
)

var coverageCmd = &cobra.Command{
	Use:     "coverage",
	GroupID: GroupData,
	Short:   "Inspect explored-area coverage",
	RunE:    requireSubcommand,
}

var coverageStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether coverage is enabled and processed",
	Args:  cobra.NoArgs,
	RunE:  runCoverageStatus,
}

var coverageSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the explored area for one grid size",
	Long: `Show how many grid cells you have visited and the area they cover.

Grid sizes are in metres: 20, 50, 250, 1000, 5000, 20000 or 40000.

Examples:
  geopulse coverage summary
  geopulse coverage summary --grid 1000`,
	Args: cobra.NoArgs,
	RunE: runCoverageSummary,
}

var coverageCellsCmd = &cobra.Command{
	Use:   "cells",
	Short: "List visited cells inside a bounding box",
	Long: `List the visited grid cells inside a bounding box.

Examples:
  geopulse coverage cells --bbox 13.3,52.4,13.5,52.6
  geopulse coverage cells --bbox 13.3,52.4,13.5,52.6 --grid 250 --json`,
	Args: cobra.NoArgs,
	RunE: runCoverageCells,
}

var coverageEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Turn coverage processing on",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCoverageSettings(cmd, true)
	},
}

var coverageDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Turn coverage processing off",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCoverageSettings(cmd, false)
	},
}

var (
	coverageGrid int    // --grid
	coverageBBox string // --bbox
)

func init() {
	for _, c := range []*cobra.Command{coverageSummaryCmd, coverageCellsCmd} {
		c.Flags().IntVar(&coverageGrid, "grid", domain.DefaultCoverageGrid, "Grid size in metres")
	}
	coverageCellsCmd.Flags().StringVar(&coverageBBox, "bbox", "", "minLon,minLat,maxLon,maxLat (required)")
	_ = coverageCellsCmd.MarkFlagRequired("bbox")

	coverageCmd.AddCommand(coverageStatusCmd)
	coverageCmd.AddCommand(coverageSummaryCmd)
	coverageCmd.AddCommand(coverageCellsCmd)
	coverageCmd.AddCommand(coverageEnableCmd)
	coverageCmd.AddCommand(coverageDisableCmd)
	rootCmd.AddCommand(coverageCmd)
}

func runCoverageStatus(cmd *cobra.Command, args []string) error {
	if _, err := requireUser(cmd); err != nil {
		return err
	}
	st, err := current.Coverage.FetchStatus(cmd.Context(), coverage.FetchOptions{})
	if err != nil {
		return fmt.Errorf("fetching coverage status: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd, st)
	}
	printCoverageStatus(cmd, st)
	return nil
}

func runCoverageSettings(cmd *cobra.Command, enabled bool) error {
	if _, err := requireUser(cmd); err != nil {
		return err
	}
	st, err := current.Coverage.UpdateSettings(cmd.Context(), enabled)
	if err != nil {
		return fmt.Errorf("updating coverage settings: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd, st)
	}
	word := "disabled"
	if enabled {
		word = "enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Coverage %s\n", style.SuccessPrefix, word)
	return nil
}

func printCoverageStatus(cmd *cobra.Command, st domain.CoverageStatus) {
	out := cmd.OutOrStdout()
	loc := current.Timezone.Location()
	state := style.Warning.Render("disabled")
	if st.UserEnabled {
		state = style.Success.Render("enabled")
	}
	fmt.Fprintf(out, "%s %s\n", style.Bold.Render("Coverage:"), state)
	if st.Processing {
		fmt.Fprintf(out, "  %s processing since %s\n", style.ArrowPrefix, formatInstant(st.ProcessingStartedAt, loc))
	}
	fmt.Fprintf(out, "  Last processed: %s\n", formatInstant(st.LastProcessed, loc))
	if !st.HasCells {
		fmt.Fprintln(out, style.Dim.Render("  No cells yet."))
	}
}

func runCoverageSummary(cmd *cobra.Command, args []string) error {
	if !domain.ValidCoverageGrid(coverageGrid) {
		return fmt.Errorf("--grid %d: use one of %v", coverageGrid, domain.CoverageGridSizes)
	}
	if _, err := requireUser(cmd); err != nil {
		return err
	}
	sum, err := current.Coverage.FetchSummary(cmd.Context(), coverageGrid, coverage.FetchOptions{})
	if err != nil {
		return fmt.Errorf("fetching coverage summary: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd, sum)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d cells of %d m, %.2f km²\n",
		style.Bold.Render("Explored:"), sum.TotalCells, sum.GridMeters, sum.AreaSquareKm)
	return nil
}

func runCoverageCells(cmd *cobra.Command, args []string) error {
	if !domain.ValidCoverageGrid(coverageGrid) {
		return fmt.Errorf("--grid %d: use one of %v", coverageGrid, domain.CoverageGridSizes)
	}
	bbox, err := domain.ParseBBox(coverageBBox)
	if err != nil {
		return fmt.Errorf("--bbox: %w", err)
	}
	if _, err := requireUser(cmd); err != nil {
		return err
	}
	cells, err := current.Coverage.FetchCells(cmd.Context(), bbox, coverageGrid, coverage.FetchOptions{})
	if err != nil {
		return fmt.Errorf("fetching coverage cells: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd, cells)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %d cells in %s\n", style.Bold.Render("Visited:"), len(cells), bbox)
	for _, c := range cells {
		fmt.Fprintf(out, "  %.5f, %.5f  %s\n", c.Latitude, c.Longitude, style.Dim.Render(fmt.Sprintf("seen %d×", c.SeenCount)))
	}
	return nil
}
