package periodtag

import (
	"strings"
	"time"

	"github.com/pkordes/geopulse-companion/internal/domain"
)

// FallbackColor is used for tags without a colour.
const FallbackColor = "#0ea5e9"

// NormalizeColor returns color as a CSS hex colour, adding the leading '#'
// when the API omitted it.
func NormalizeColor(color string) string {
	if color == "" {
		return FallbackColor
	}
	if strings.HasPrefix(color, "#") {
		return color
	}
	return "#" + color
}

// TimelineQuery is the date range the timeline page is opened with.
// Dates are formatted MM/DD/YYYY.
type TimelineQuery struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TimelineQueryFor builds the timeline range covering tag, as calendar dates
// in loc. An active tag runs until now.
func TimelineQueryFor(tag domain.PeriodTag, now time.Time, loc *time.Location) (TimelineQuery, bool) {
	if loc == nil {
		loc = time.UTC
	}
	if !tag.StartTime.Valid() {
		return TimelineQuery{}, false
	}
	end := tag.EndTime
	if end.IsZero() {
		end = domain.TimestampFromTime(now)
	}
	if !end.Valid() {
		return TimelineQuery{}, false
	}
	return TimelineQuery{
		Start: tag.StartTime.Time().In(loc).Format("01/02/2006"),
		End:   end.Time().In(loc).Format("01/02/2006"),
	}, true
}
