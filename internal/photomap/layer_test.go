package photomap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/geopulse-companion/internal/domain"
	"github.com/pkordes/geopulse-companion/internal/photomap"
)

// recordingViewer is a photomap.Viewer that remembers the last call.
type recordingViewer struct {
	photos []domain.Photo
	index  int
	calls  int
}

func (v *recordingViewer) OpenPhotoViewer(photos []domain.Photo, initialIndex int) {
	v.photos, v.index = photos, initialIndex
	v.calls++
}

var _ photomap.Viewer = (*recordingViewer)(nil)

func TestLayer_ClickGroupReportsGroup(t *testing.T) {
	layer := photomap.NewLayer()
	layer.Render([]domain.Photo{geo("a", 1, 1), geo("b", 2, 2), geo("c", 1, 1)})

	var got []photomap.ClickEvent
	layer.OnPhotoClick(func(ev photomap.ClickEvent) { got = append(got, ev) })

	require.NoError(t, layer.ClickGroup(0))

	require.Len(t, got, 1)
	assert.Equal(t, []int{0, 2}, got[0].Indices)
	assert.Len(t, got[0].Photos, 2)
	assert.Equal(t, 0, got[0].InitialIndex)
}

func TestLayer_ClickGroupOutOfRange(t *testing.T) {
	layer := photomap.NewLayer()

	err := layer.ClickGroup(3)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLayer_UnsubscribeStopsEvents(t *testing.T) {
	layer := photomap.NewLayer()
	layer.Render([]domain.Photo{geo("a", 1, 1)})

	calls := 0
	stop := layer.OnPhotoClick(func(photomap.ClickEvent) { calls++ })
	require.NoError(t, layer.ClickGroup(0))
	stop()
	stop()
	require.NoError(t, layer.ClickGroup(0))

	assert.Equal(t, 1, calls)
}

func TestLayer_ListenersFollowRegistrationOrder(t *testing.T) {
	layer := photomap.NewLayer()
	layer.Render([]domain.Photo{geo("a", 1, 1)})

	var got []int
	for i := range 6 {
		layer.OnPhotoClick(func(photomap.ClickEvent) { got = append(got, i) })
	}
	require.NoError(t, layer.ClickGroup(0))

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, got)
}

func TestLayer_FocusNeverZoomsOut(t *testing.T) {
	layer := photomap.NewLayer()

	view := &photomap.View{ZoomLevel: 18}
	f, ok := layer.FocusOnCoordinates(view, 48.85, 2.35, 16)
	require.True(t, ok)
	assert.Equal(t, 18.0, f.Zoom)
	assert.Equal(t, 18.0, view.ZoomLevel)

	view = &photomap.View{ZoomLevel: 5}
	f, ok = layer.FocusOnCoordinates(view, 48.85, 2.35, 16)
	require.True(t, ok)
	assert.Equal(t, 16.0, f.Zoom)
	assert.Equal(t, 48.85, view.Latitude)
}

func TestLayer_FocusReplacesPreviousHighlight(t *testing.T) {
	layer := photomap.NewLayer()
	view := &photomap.View{}

	_, ok := layer.FocusOnPhoto(view, geo("first", 1, 1), photomap.DefaultFocusZoom)
	require.True(t, ok)
	_, ok = layer.FocusOnCoordinates(view, 2, 2, photomap.DefaultFocusZoom)
	require.True(t, ok)

	f, ok := layer.CurrentFocus()
	require.True(t, ok)
	assert.Nil(t, f.Photo)
	assert.Equal(t, 2.0, f.Latitude)
	assert.False(t, layer.ClickFocus(), "a coordinate focus is not clickable")
}

func TestLayer_ClickFocusReportsSinglePhoto(t *testing.T) {
	layer := photomap.NewLayer()
	var got photomap.ClickEvent
	layer.OnPhotoClick(func(ev photomap.ClickEvent) { got = ev })

	_, ok := layer.FocusOnPhoto(&photomap.View{}, geo("solo", 3, 3), 12)
	require.True(t, ok)
	require.True(t, layer.ClickFocus())

	require.Len(t, got.Photos, 1)
	assert.Equal(t, "solo", got.Photos[0].ID)
	assert.Equal(t, []int{0}, got.Indices)
	assert.Equal(t, 0, got.InitialIndex)
}

func TestLayer_FocusOnPhotoWithoutCoordinates(t *testing.T) {
	layer := photomap.NewLayer()

	_, ok := layer.FocusOnPhoto(&photomap.View{}, domain.Photo{ID: "nowhere"}, 16)

	assert.False(t, ok)
	_, has := layer.CurrentFocus()
	assert.False(t, has)
}

func TestBridge_OpensViewerOnClick(t *testing.T) {
	layer := photomap.NewLayer()
	viewer := &recordingViewer{}
	bridge, stop := photomap.NewBridge(layer, &photomap.View{}, viewer, 0)
	defer stop()

	bridge.HandlePhotosChange([]domain.Photo{geo("a", 1, 1), geo("b", 1, 1)})
	require.NoError(t, layer.ClickGroup(0))

	assert.Equal(t, 1, viewer.calls)
	assert.Len(t, viewer.photos, 2)
	assert.Equal(t, 0, viewer.index)

	bridge.HandleMapPhotoClick(photomap.ClickEvent{})
	assert.Equal(t, 1, viewer.calls, "empty events are ignored")

	bridge.HandleMapPhotoClick(photomap.ClickEvent{Photos: viewer.photos, InitialIndex: -3})
	assert.Equal(t, 0, viewer.index, "negative indices clamp to zero")
}

func TestBridge_ShowOnMapUsesFocusZoom(t *testing.T) {
	layer := photomap.NewLayer()
	view := &photomap.View{ZoomLevel: 3}
	bridge, stop := photomap.NewBridge(layer, view, nil, 0)
	defer stop()

	assert.True(t, bridge.ShowOnMap(geo("a", 10, 20)))
	assert.Equal(t, float64(photomap.DefaultFocusZoom), view.ZoomLevel)
	assert.False(t, bridge.ShowOnMap(domain.Photo{ID: "nowhere"}))

	bridge.Reset()
	assert.Empty(t, bridge.PhotosForMap())
	assert.Empty(t, layer.Groups())
}

// positionOnlyMap is a map that can only move to coordinates.
type positionOnlyMap struct {
	layer *photomap.Layer
}

func (m positionOnlyMap) Render(photos []domain.Photo) []photomap.MarkerGroup {
	return m.layer.Render(photos)
}
func (m positionOnlyMap) OnPhotoClick(fn func(photomap.ClickEvent)) func() {
	return m.layer.OnPhotoClick(fn)
}
func (m positionOnlyMap) FocusOnCoordinates(view photomap.Viewport, lat, lng, minZoom float64) (photomap.Focus, bool) {
	return m.layer.FocusOnCoordinates(view, lat, lng, minZoom)
}

func TestBridge_ShowOnMapFallsBackToCoordinates(t *testing.T) {
	layer := photomap.NewLayer()
	view := &photomap.View{ZoomLevel: 18}
	bridge, stop := photomap.NewBridge(positionOnlyMap{layer: layer}, view, nil, 0)
	defer stop()

	require.True(t, bridge.ShowOnMap(geo("a", 52.52, 13.405)))

	assert.Equal(t, photomap.View{Latitude: 52.52, Longitude: 13.405, ZoomLevel: 18}, *view)
	f, ok := layer.CurrentFocus()
	require.True(t, ok)
	assert.Nil(t, f.Photo, "a coordinate focus carries no photo")
	assert.False(t, bridge.ShowOnMap(domain.Photo{ID: "nowhere"}))
}
