package handler

import (
	"net/http"

	"github.com/pkordes/geopulse-companion/internal/domain"
	"github.com/pkordes/geopulse-companion/internal/periodtag"
)

// PeriodTagMatchRequest is the body of POST /period-tags/match. When Visit is
// set the visit's stay is matched; otherwise [Start, End].
type PeriodTagMatchRequest struct {
	Tags  []domain.PeriodTag   `json:"tags"`
	Start domain.Timestamp     `json:"start"`
	End   domain.Timestamp     `json:"end"`
	Visit *domain.TimelineItem `json:"visit,omitempty"`
}

// PeriodTagMatchResponse carries the best matching tag, if any.
// TimelineQuery is the date range that opens the tag on the timeline page.
type PeriodTagMatchResponse struct {
	Matched       bool                     `json:"matched"`
	Tag           *domain.PeriodTag        `json:"tag"`
	Color         string                   `json:"color,omitempty"`
	TimelineQuery *periodtag.TimelineQuery `json:"timelineQuery,omitempty"`
}

// MatchPeriodTag handles POST /period-tags/match.
// No match is a normal outcome and answers 200 with matched=false.
func (s *Server) MatchPeriodTag(w http.ResponseWriter, r *http.Request) {
	var req PeriodTagMatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var (
		tag domain.PeriodTag
		ok  bool
	)
	if req.Visit != nil {
		tag, ok = periodtag.FindForVisit(*req.Visit, req.Tags)
	} else {
		tag, ok = periodtag.FindForInterval(req.Start, req.End, req.Tags)
	}
	if !ok {
		writeJSON(w, http.StatusOK, PeriodTagMatchResponse{})
		return
	}

	resp := PeriodTagMatchResponse{
		Matched: true,
		Tag:     &tag,
		Color:   periodtag.NormalizeColor(tag.Color),
	}
	if q, ok := periodtag.TimelineQueryFor(tag, s.now(), s.location()); ok {
		resp.TimelineQuery = &q
	}
	writeJSON(w, http.StatusOK, resp)
}
