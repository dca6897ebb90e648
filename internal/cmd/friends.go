package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkordes/geopulse-companion/internal/style"
	"github.com/pkordes/geopulse-companion/internal/timezone"
)

var friendsCmd = &cobra.Command{
	Use:     "friends",
	GroupID: GroupData,
	Short:   "Manage what you share with friends",
	RunE:    requireSubcommand,
}

var friendsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the sharing settings for every friend",
	Args:  cobra.NoArgs,
	RunE:  runFriendsList,
}

var friendsShareCmd = &cobra.Command{
	Use:   "share <friend-id>",
	Short: "Change what you share with one friend",
	Long: `Change whether a friend sees your timeline or live location.

Only the flags you pass are changed.

Examples:
  geopulse friends share 12 --timeline=true
  geopulse friends share 12 --live=false`,
	Args: cobra.ExactArgs(1),
	RunE: runFriendsShare,
}

var timelineCmd = &cobra.Command{
	Use:     "timeline",
	GroupID: GroupData,
	Short:   "Fetch your and your friends' timelines",
	Long: `Fetch the timelines of you and your friends between two days.

Days are read in your time zone; the range runs from the start of --start
to the end of --end. The server's JSON is printed as is.

Examples:
  geopulse timeline --start 2025-06-01 --end 2025-06-07
  geopulse timeline --start 2025-06-01 --end 2025-06-01 --users 12,15`,
	Args: cobra.NoArgs,
	RunE: runTimeline,
}

var (
	friendsShareTimeline bool   // --timeline
	friendsShareLive     bool   // --live
	timelineStart        string // --start
	timelineEnd          string // --end
	timelineUsers        string // --users: comma-separated ids
)

func init() {
	friendsShareCmd.Flags().BoolVar(&friendsShareTimeline, "timeline", false, "Share your timeline")
	friendsShareCmd.Flags().BoolVar(&friendsShareLive, "live", false, "Share your live location")
	friendsShareCmd.MarkFlagsOneRequired("timeline", "live")

	timelineCmd.Flags().StringVar(&timelineStart, "start", "", "First day (required)")
	timelineCmd.Flags().StringVar(&timelineEnd, "end", "", "Last day (defaults to --start)")
	timelineCmd.Flags().StringVar(&timelineUsers, "users", "", "Only these user ids, comma-separated")
	_ = timelineCmd.MarkFlagRequired("start")

	friendsCmd.AddCommand(friendsListCmd)
	friendsCmd.AddCommand(friendsShareCmd)
	rootCmd.AddCommand(friendsCmd)
	rootCmd.AddCommand(timelineCmd)
}

func runFriendsList(cmd *cobra.Command, args []string) error {
	if _, err := requireUser(cmd); err != nil {
		return err
	}
	perms, err := current.Client.AllFriendPermissions(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing friend permissions: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd, perms)
	}
	out := cmd.OutOrStdout()
	if len(perms) == 0 {
		fmt.Fprintln(out, style.Dim.Render("No friends yet."))
		return nil
	}
	for _, p := range perms {
		fmt.Fprintf(out, "  %s  timeline %s  live %s\n", style.Bold.Render(p.FriendID), onOff(p.ShareTimeline), onOff(p.ShareLiveLocation))
	}
	return nil
}

func runFriendsShare(cmd *cobra.Command, args []string) error {
	friendID := strings.TrimSpace(args[0])
	if friendID == "" {
		return fmt.Errorf("friend id cannot be empty")
	}
	if _, err := requireUser(cmd); err != nil {
		return err
	}

	ctx := cmd.Context()
	flags := cmd.Flags()
	if flags.Changed("timeline") {
		if err := current.Client.UpdateFriendPermissions(ctx, friendID, friendsShareTimeline); err != nil {
			return fmt.Errorf("updating timeline sharing: %w", err)
		}
	}
	if flags.Changed("live") {
		if err := current.Client.UpdateLiveLocationPermission(ctx, friendID, friendsShareLive); err != nil {
			return fmt.Errorf("updating live location sharing: %w", err)
		}
	}

	perms, err := current.Client.FriendPermissions(ctx, friendID)
	if err != nil {
		return fmt.Errorf("reading friend permissions: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd, perms)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Friend %s: timeline %s, live %s\n",
		style.SuccessPrefix, friendID, onOff(perms.ShareTimeline), onOff(perms.ShareLiveLocation))
	return nil
}

func runTimeline(cmd *cobra.Command, args []string) error {
	if _, err := requireUser(cmd); err != nil {
		return err
	}
	loc := current.Timezone.Location()
	startDay, ok := timezone.ParseDay(timelineStart, loc)
	if !ok {
		return fmt.Errorf("--start %q is not a date", timelineStart)
	}
	endDay := startDay
	if timelineEnd != "" {
		if endDay, ok = timezone.ParseDay(timelineEnd, loc); !ok {
			return fmt.Errorf("--end %q is not a date", timelineEnd)
		}
	}
	start, end := timezone.StartOfDay(startDay, loc), timezone.EndOfDay(endDay, loc)
	if end.Before(start) {
		return fmt.Errorf("--end is before --start")
	}

	var users []string
	for _, id := range strings.Split(timelineUsers, ",") {
		if id = strings.TrimSpace(id); id != "" {
			users = append(users, id)
		}
	}

	raw, err := current.Client.MultiUserTimeline(cmd.Context(), start, end, users)
	if err != nil {
		return fmt.Errorf("fetching timeline %s to %s: %w", start.Format(time.DateOnly), end.Format(time.DateOnly), err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	return err
}

func onOff(v bool) string {
	if v {
		return style.Success.Render("on")
	}
	return style.Dim.Render("off")
}
