package handler

import (
	"net/http"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/geopulse-companion/internal/domain"
	"github.com/pkordes/geopulse-companion/internal/photomap"
	"github.com/pkordes/geopulse-companion/internal/photomatch"
)

// PhotoGroupsRequest is the body of POST /photos/groups.
type PhotoGroupsRequest struct {
	Photos []domain.Photo `json:"photos"`
}

// PhotoGroupsResponse lists one marker group per rounded coordinate.
type PhotoGroupsResponse struct {
	Groups []photomap.MarkerGroup `json:"groups"`
}

// PhotoMatchRequest is the body of POST /photos/match. Day is a calendar
// date read in the user's time zone and is required with ClampToDay.
type PhotoMatchRequest struct {
	Item       domain.TimelineItem  `json:"item"`
	Photos     []domain.Photo       `json:"photos"`
	Field      domain.DurationField `json:"field"`
	ClampToDay bool                 `json:"clampToDay"`
	Day        *openapi_types.Date  `json:"day,omitempty"`
}

// TimeWindow is an inclusive instant range.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PhotoMatchResponse lists the photos inside Window. Window is null when the
// item has no usable range.
type PhotoMatchResponse struct {
	Photos []domain.Photo `json:"photos"`
	Window *TimeWindow    `json:"window"`
}

// PhotoFocusRequest is the body of POST /photos/focus. Photo wins over the
// bare coordinates when it has a position of its own.
type PhotoFocusRequest struct {
	View      photomap.View        `json:"view"`
	Photo     *domain.Photo        `json:"photo,omitempty"`
	Latitude  domain.OptionalFloat `json:"latitude"`
	Longitude domain.OptionalFloat `json:"longitude"`
	MinZoom   domain.OptionalFloat `json:"minZoom"`
}

// PhotoFocusResponse is the highlight and the view the map should move to.
type PhotoFocusResponse struct {
	Focus photomap.Focus `json:"focus"`
	View  photomap.View  `json:"view"`
}

// GroupPhotos handles POST /photos/groups.
func (s *Server) GroupPhotos(w http.ResponseWriter, r *http.Request) {
	var req PhotoGroupsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, PhotoGroupsResponse{Groups: photomap.GroupByLocation(req.Photos)})
}

// MatchPhotos handles POST /photos/match.
func (s *Server) MatchPhotos(w http.ResponseWriter, r *http.Request) {
	var req PhotoMatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	switch req.Field {
	case "", domain.StayDuration, domain.TripDuration, domain.GapDuration:
	default:
		requestError(w, "unknown duration field: "+string(req.Field))
		return
	}

	loc := s.location()
	opts := photomatch.Options{Field: req.Field, ClampToDay: req.ClampToDay, Location: loc}
	if req.Day != nil {
		opts.Day = time.Date(req.Day.Year(), req.Day.Month(), req.Day.Day(), 0, 0, 0, 0, loc)
	}

	resp := PhotoMatchResponse{Photos: photomatch.Match(req.Item, req.Photos, opts)}
	if start, end, ok := photomatch.Window(req.Item, opts); ok {
		resp.Window = &TimeWindow{Start: start, End: end}
	}
	writeJSON(w, http.StatusOK, resp)
}

// FocusPhoto handles POST /photos/focus. The view never zooms out below its
// current level and is moved to at least minZoom (default 16).
func (s *Server) FocusPhoto(w http.ResponseWriter, r *http.Request) {
	var req PhotoFocusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	minZoom, ok := req.MinZoom.Get()
	if !ok {
		minZoom = photomap.DefaultFocusZoom
	}

	layer := photomap.NewLayer()
	view := req.View
	var focus photomap.Focus
	focused := false
	if req.Photo != nil {
		focus, focused = layer.FocusOnPhoto(&view, *req.Photo, minZoom)
	}
	if !focused {
		lat, latOK := req.Latitude.Get()
		lng, lngOK := req.Longitude.Get()
		if latOK && lngOK {
			focus, focused = layer.FocusOnCoordinates(&view, lat, lng, minZoom)
		}
	}
	if !focused {
		requestError(w, "a photo with coordinates or a latitude and longitude is required")
		return
	}
	writeJSON(w, http.StatusOK, PhotoFocusResponse{Focus: focus, View: view})
}
