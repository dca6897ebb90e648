package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkordes/geopulse-companion/internal/domain"
	"github.com/pkordes/geopulse-companion/internal/photomap"
	"github.com/pkordes/geopulse-companion/internal/photomatch"
	"github.com/pkordes/geopulse-companion/internal/style"
	"github.com/pkordes/geopulse-companion/internal/timezone"
)

var photosCmd = &cobra.Command{
	Use:         "photos",
	GroupID:     GroupLocal,
	Short:       "Group and match photo exports offline",
	Annotations: map[string]string{noAppAnnotation: "true"},
	RunE:        requireSubcommand,
}

var photosGroupCmd = &cobra.Command{
	Use:   "group <photos.json>",
	Short: "Group photos into map markers",
	Long: `Group photos into map markers by position rounded to four decimals.

The file holds a JSON array of photos as the GeoPulse API returns them; use
"-" to read stdin. Photos without coordinates are left out.

--open prints what the photo viewer would show when the given marker is
clicked. --focus moves a map to the photo with that id.

Examples:
  geopulse photos group photos.json
  geopulse photos group photos.json --open 0
  geopulse photos group photos.json --focus 42 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runPhotosGroup,
}

var photosMatchCmd = &cobra.Command{
	Use:   "match",
	Short: "Select the photos taken during a timeline item",
	Long: `Select the photos taken during a stay, trip or data gap.

The window starts at the item's timestamp and lasts the duration named by
--field. With --day the window is clipped to that calendar day in --tz.

Examples:
  geopulse photos match --item stay.json --photos photos.json
  geopulse photos match --item trip.json --photos photos.json --field tripDuration
  geopulse photos match --item stay.json --photos photos.json --day 2025-06-01 --tz Europe/Berlin`,
	Args: cobra.NoArgs,
	RunE: runPhotosMatch,
}

var (
	photosOpen  int    // --open: marker index to click
	photosFocus string // --focus: photo id to focus
	photosItem  string // --item
	photosFile  string // --photos
	photosField string // --field
	photosDay   string // --day
	photosTZ    string // --tz
)

func init() {
	photosGroupCmd.Flags().IntVar(&photosOpen, "open", -1, "Click the marker at this index")
	photosGroupCmd.Flags().StringVar(&photosFocus, "focus", "", "Focus the map on the photo with this id")

	photosMatchCmd.Flags().StringVar(&photosItem, "item", "", "Timeline item JSON file (required)")
	photosMatchCmd.Flags().StringVar(&photosFile, "photos", "", "Photos JSON file (required)")
	photosMatchCmd.Flags().StringVar(&photosField, "field", string(domain.StayDuration), "Duration field: stayDuration, tripDuration, durationSeconds")
	photosMatchCmd.Flags().StringVar(&photosDay, "day", "", "Clip the window to this day (YYYY-MM-DD)")
	photosMatchCmd.Flags().StringVar(&photosTZ, "tz", domain.DefaultTimezone, "Time zone of --day")
	_ = photosMatchCmd.MarkFlagRequired("item")
	_ = photosMatchCmd.MarkFlagRequired("photos")

	photosCmd.AddCommand(photosGroupCmd)
	photosCmd.AddCommand(photosMatchCmd)
	rootCmd.AddCommand(photosCmd)
}

// viewerLog records what the photo viewer was asked to open.
type viewerLog struct {
	opened *photomap.ClickEvent
}

func (v *viewerLog) OpenPhotoViewer(photos []domain.Photo, initialIndex int) {
	v.opened = &photomap.ClickEvent{Photos: photos, InitialIndex: initialIndex}
}

type photosGroupOutput struct {
	Groups []photomap.MarkerGroup `json:"groups"`
	Opened *photomap.ClickEvent   `json:"opened,omitempty"`
	View   *photomap.View         `json:"view,omitempty"`
}

func runPhotosGroup(cmd *cobra.Command, args []string) error {
	var photos []domain.Photo
	if err := readJSONFile(cmd, args[0], &photos); err != nil {
		return err
	}

	layer := photomap.NewLayer()
	view := &photomap.View{}
	viewer := &viewerLog{}
	bridge, stop := photomap.NewBridge(layer, view, viewer, photomap.DefaultFocusZoom)
	defer stop()
	bridge.HandlePhotosChange(photos)

	res := photosGroupOutput{Groups: layer.Groups()}
	if photosOpen >= 0 {
		if err := layer.ClickGroup(photosOpen); err != nil {
			return fmt.Errorf("--open %d: only %d markers", photosOpen, len(res.Groups))
		}
		res.Opened = viewer.opened
	}
	if photosFocus != "" {
		p, ok := findPhoto(bridge.PhotosForMap(), photosFocus)
		if !ok {
			return fmt.Errorf("--focus: no photo with id %q", photosFocus)
		}
		if !bridge.ShowOnMap(p) {
			return fmt.Errorf("--focus: photo %q has no coordinates", photosFocus)
		}
		res.View = view
	}

	if jsonOutput {
		return printJSON(cmd, res)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %d photos in %d markers\n", style.Bold.Render("Markers:"), len(photos), len(res.Groups))
	for i, g := range res.Groups {
		fmt.Fprintf(out, "  %s %.4f, %.4f  %d photo(s)\n", style.Dim.Render(fmt.Sprintf("[%d]", i)), g.Latitude, g.Longitude, len(g.Photos))
	}
	if res.Opened != nil {
		fmt.Fprintf(out, "%s Viewer opens at %s\n", style.ArrowPrefix, photoLabel(res.Opened.Photos[res.Opened.InitialIndex]))
		printPhotos(out, res.Opened.Photos, time.UTC)
	}
	if res.View != nil {
		fmt.Fprintf(out, "%s Map centred on %.4f, %.4f at zoom %g\n", style.ArrowPrefix, view.Latitude, view.Longitude, view.ZoomLevel)
	}
	return nil
}

type photosMatchOutput struct {
	Photos []domain.Photo `json:"photos"`
	Start  *time.Time     `json:"start,omitempty"`
	End    *time.Time     `json:"end,omitempty"`
}

func runPhotosMatch(cmd *cobra.Command, args []string) error {
	field := domain.DurationField(photosField)
	switch field {
	case domain.StayDuration, domain.TripDuration, domain.GapDuration:
	default:
		return fmt.Errorf("--field %q: use stayDuration, tripDuration or durationSeconds", photosField)
	}
	loc, err := time.LoadLocation(timezone.Normalize(photosTZ))
	if err != nil {
		return fmt.Errorf("--tz %q: %w", photosTZ, err)
	}
	opts := photomatch.Options{Field: field, Location: loc}
	if photosDay != "" {
		day, ok := timezone.ParseDay(photosDay, loc)
		if !ok {
			return fmt.Errorf("--day %q is not a date", photosDay)
		}
		opts.ClampToDay, opts.Day = true, day
	}

	var item domain.TimelineItem
	if err := readJSONFile(cmd, photosItem, &item); err != nil {
		return err
	}
	var photos []domain.Photo
	if err := readJSONFile(cmd, photosFile, &photos); err != nil {
		return err
	}

	res := photosMatchOutput{Photos: photomatch.Match(item, photos, opts)}
	start, end, ok := photomatch.Window(item, opts)
	if ok {
		res.Start, res.End = &start, &end
	}
	if jsonOutput {
		return printJSON(cmd, res)
	}

	out := cmd.OutOrStdout()
	if !ok {
		fmt.Fprintln(out, style.Dim.Render("The item has no window on that day."))
		return nil
	}
	fmt.Fprintf(out, "%s %s to %s: %d of %d photos\n", style.Bold.Render("Window:"),
		start.Format("2006-01-02 15:04:05 MST"), end.Format("2006-01-02 15:04:05 MST"), len(res.Photos), len(photos))
	printPhotos(out, res.Photos, loc)
	return nil
}

func findPhoto(photos []domain.Photo, id string) (domain.Photo, bool) {
	for _, p := range photos {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Photo{}, false
}

func photoLabel(p domain.Photo) string {
	if p.OriginalFileName != "" {
		return p.OriginalFileName
	}
	return "photo " + p.ID
}

func printPhotos(out io.Writer, photos []domain.Photo, loc *time.Location) {
	for _, p := range photos {
		fmt.Fprintf(out, "  %s  %s\n", photoLabel(p), style.Dim.Render(formatInstant(p.Instant(), loc)))
	}
}

var _ photomap.Viewer = (*viewerLog)(nil)
