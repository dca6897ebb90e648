package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkordes/geopulse-companion/internal/domain"
	"github.com/pkordes/geopulse-companion/internal/periodtag"
	"github.com/pkordes/geopulse-companion/internal/style"
)

var tagsCmd = &cobra.Command{
	Use:     "tags",
	GroupID: GroupData,
	Short:   "Work with period tags",
	RunE:    requireSubcommand,
}

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your period tags",
	Args:  cobra.NoArgs,
	RunE:  runTagsList,
}

var tagsMatchCmd = &cobra.Command{
	Use:   "match",
	Short: "Find the period tag covering an interval or visit",
	Long: `Find the period tag that overlaps an interval.

When several tags overlap, the one that started most recently wins. A tag
without an end is still running. Instants are RFC 3339, a date, or epoch
milliseconds; a missing --end makes the interval a single instant.

With --stay the interval is a visit: it starts at --start and lasts the
given number of seconds.

Examples:
  geopulse tags match --start 2025-06-01T10:00:00Z --end 2025-06-01T18:00:00Z
  geopulse tags match --start 1748772000000 --stay 3600`,
	Args: cobra.NoArgs,
	RunE: runTagsMatch,
}

var (
	tagsMatchStart string  // --start
	tagsMatchEnd   string  // --end
	tagsMatchStay  float64 // --stay: visit duration in seconds
)

func init() {
	tagsMatchCmd.Flags().StringVar(&tagsMatchStart, "start", "", "Interval start (required)")
	tagsMatchCmd.Flags().StringVar(&tagsMatchEnd, "end", "", "Interval end")
	tagsMatchCmd.Flags().Float64Var(&tagsMatchStay, "stay", 0, "Treat the interval as a visit lasting this many seconds")
	_ = tagsMatchCmd.MarkFlagRequired("start")
	tagsMatchCmd.MarkFlagsMutuallyExclusive("end", "stay")

	tagsCmd.AddCommand(tagsListCmd)
	tagsCmd.AddCommand(tagsMatchCmd)
	rootCmd.AddCommand(tagsCmd)
}

func requireSubcommand(cmd *cobra.Command, args []string) error {
	return fmt.Errorf("%s needs a subcommand; see '%s --help'", cmd.Name(), cmd.CommandPath())
}

func runTagsList(cmd *cobra.Command, args []string) error {
	if _, err := requireUser(cmd); err != nil {
		return err
	}
	tags, err := current.Client.PeriodTags(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing period tags: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd, tags)
	}
	out := cmd.OutOrStdout()
	if len(tags) == 0 {
		fmt.Fprintln(out, style.Dim.Render("No period tags."))
		return nil
	}
	for _, tag := range tags {
		fmt.Fprintf(out, "  %s\n", describeTag(tag))
	}
	return nil
}

type tagMatchOutput struct {
	Matched       bool                     `json:"matched"`
	Tag           *domain.PeriodTag        `json:"tag,omitempty"`
	Color         string                   `json:"color,omitempty"`
	TimelineQuery *periodtag.TimelineQuery `json:"timelineQuery,omitempty"`
}

func runTagsMatch(cmd *cobra.Command, args []string) error {
	start, err := parseInstantFlag("start", tagsMatchStart)
	if err != nil {
		return err
	}
	var end domain.Timestamp
	if tagsMatchEnd != "" {
		if end, err = parseInstantFlag("end", tagsMatchEnd); err != nil {
			return err
		}
	}
	if tagsMatchStay < 0 {
		return fmt.Errorf("--stay must not be negative")
	}

	if _, err := requireUser(cmd); err != nil {
		return err
	}
	tags, err := current.Client.PeriodTags(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing period tags: %w", err)
	}

	var tag domain.PeriodTag
	var ok bool
	if tagsMatchStay > 0 {
		tag, ok = periodtag.FindForVisit(domain.TimelineItem{Timestamp: start, StayDuration: domain.Seconds(tagsMatchStay)}, tags)
	} else {
		tag, ok = periodtag.FindForInterval(start, end, tags)
	}

	res := tagMatchOutput{Matched: ok}
	if ok {
		res.Tag = &tag
		res.Color = periodtag.NormalizeColor(tag.Color)
		if q, ok := periodtag.TimelineQueryFor(tag, time.Now(), current.Timezone.Location()); ok {
			res.TimelineQuery = &q
		}
	}
	if jsonOutput {
		return printJSON(cmd, res)
	}

	out := cmd.OutOrStdout()
	if !ok {
		fmt.Fprintln(out, style.Dim.Render("No period tag covers that interval."))
		return nil
	}
	fmt.Fprintf(out, "%s %s\n", style.ArrowPrefix, describeTag(tag))
	if res.TimelineQuery != nil {
		fmt.Fprintf(out, "  Timeline: %s to %s\n", res.TimelineQuery.Start, res.TimelineQuery.End)
	}
	return nil
}

func describeTag(tag domain.PeriodTag) string {
	loc := current.Timezone.Location()
	end := formatInstant(tag.EndTime, loc)
	if tag.EndTime.IsZero() {
		end = style.Info.Render("ongoing")
	}
	return fmt.Sprintf("%s %s  %s",
		style.Swatch(periodtag.NormalizeColor(tag.Color)),
		style.Bold.Render(tag.TagName),
		style.Dim.Render(formatInstant(tag.StartTime, loc)+" to ")+end)
}

// parseInstantFlag reads epoch milliseconds or any accepted timestamp string.
func parseInstantFlag(name, v string) (domain.Timestamp, error) {
	v = strings.TrimSpace(v)
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return domain.TimestampFromMillis(ms), nil
	}
	ts := domain.ParseTimestamp(v)
	if !ts.Valid() {
		return domain.Timestamp{}, fmt.Errorf("--%s %q is not a timestamp", name, v)
	}
	return ts, nil
}
