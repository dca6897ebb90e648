package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkordes/geopulse-companion/internal/domain"
)

// FriendPermissions returns what the current user shares with one friend.
func (c *Client) FriendPermissions(ctx context.Context, friendID string) (domain.FriendPermissions, error) {
	var out domain.FriendPermissions
	if err := c.do(ctx, http.MethodGet, "/friends/"+url.PathEscape(friendID)+"/permissions", nil, nil, &out); err != nil {
		return domain.FriendPermissions{}, fmt.Errorf("apiclient.Client.FriendPermissions: %w", err)
	}
	return out, nil
}

// AllFriendPermissions returns the sharing settings for every friend.
func (c *Client) AllFriendPermissions(ctx context.Context) ([]domain.FriendPermissions, error) {
	out := []domain.FriendPermissions{}
	if err := c.do(ctx, http.MethodGet, "/friends/permissions", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("apiclient.Client.AllFriendPermissions: %w", err)
	}
	return out, nil
}

// UpdateFriendPermissions sets whether the timeline is shared with a friend.
func (c *Client) UpdateFriendPermissions(ctx context.Context, friendID string, shareTimeline bool) error {
	body := map[string]bool{"shareTimeline": shareTimeline}
	if err := c.do(ctx, http.MethodPut, "/friends/"+url.PathEscape(friendID)+"/permissions", nil, body, nil); err != nil {
		return fmt.Errorf("apiclient.Client.UpdateFriendPermissions: %w", err)
	}
	return nil
}

// UpdateLiveLocationPermission sets whether live location is shared with a
// friend.
func (c *Client) UpdateLiveLocationPermission(ctx context.Context, friendID string, shareLiveLocation bool) error {
	body := map[string]bool{"shareLiveLocation": shareLiveLocation}
	if err := c.do(ctx, http.MethodPut, "/friends/"+url.PathEscape(friendID)+"/permissions/live", nil, body, nil); err != nil {
		return fmt.Errorf("apiclient.Client.UpdateLiveLocationPermission: %w", err)
	}
	return nil
}

// MultiUserTimeline fetches the timelines of the current user and friends
// between start and end. An empty userIDs asks for every visible user. The
// payload is returned undecoded.
func (c *Client) MultiUserTimeline(ctx context.Context, start, end time.Time, userIDs []string) (json.RawMessage, error) {
	q, err := queryParams(
		param("startTime", start.UTC().Format(time.RFC3339)),
		param("endTime", end.UTC().Format(time.RFC3339)),
		listParam("userIds", userIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("apiclient.Client.MultiUserTimeline: %w", err)
	}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/streaming-timeline/multi-user", q, nil, &out); err != nil {
		return nil, fmt.Errorf("apiclient.Client.MultiUserTimeline: %w", err)
	}
	return out, nil
}

// PeriodTags lists the user's period tags.
func (c *Client) PeriodTags(ctx context.Context) ([]domain.PeriodTag, error) {
	out := []domain.PeriodTag{}
	if err := c.do(ctx, http.MethodGet, "/period-tags", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("apiclient.Client.PeriodTags: %w", err)
	}
	return out, nil
}
