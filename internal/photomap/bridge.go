package photomap

import "github.com/pkordes/geopulse-companion/internal/domain"

// Viewer opens the full-screen photo viewer.
type Viewer interface {
	OpenPhotoViewer(photos []domain.Photo, initialIndex int)
}

// Map is the marker layer a Bridge drives. *Layer satisfies it.
type Map interface {
	Render(photos []domain.Photo) []MarkerGroup
	OnPhotoClick(fn func(ClickEvent)) (unsubscribe func())
	FocusOnCoordinates(view Viewport, lat, lng, minZoom float64) (Focus, bool)
}

// PhotoFocuser is implemented by maps that can highlight a photo itself
// rather than only its position.
type PhotoFocuser interface {
	FocusOnPhoto(view Viewport, photo domain.Photo, minZoom float64) (Focus, bool)
}

// Bridge connects a photo list, the map layer and the photo viewer on one page.
type Bridge struct {
	layer     Map
	view      Viewport
	viewer    Viewer
	focusZoom float64
	photos    []domain.Photo
}

// NewBridge wires layer clicks to viewer. focusZoom <= 0 means DefaultFocusZoom.
// Call the returned stop function when the page goes away.
func NewBridge(layer Map, view Viewport, viewer Viewer, focusZoom float64) (*Bridge, func()) {
	if focusZoom <= 0 {
		focusZoom = DefaultFocusZoom
	}
	b := &Bridge{layer: layer, view: view, viewer: viewer, focusZoom: focusZoom}
	stop := layer.OnPhotoClick(b.HandleMapPhotoClick)
	return b, stop
}

// PhotosForMap returns the photos last handed to HandlePhotosChange.
func (b *Bridge) PhotosForMap() []domain.Photo { return b.photos }

// HandlePhotosChange replaces the photos shown on the map and re-renders the layer.
func (b *Bridge) HandlePhotosChange(photos []domain.Photo) {
	if photos == nil {
		photos = []domain.Photo{}
	}
	b.photos = photos
	b.layer.Render(photos)
}

// Reset empties the map photos.
func (b *Bridge) Reset() {
	b.HandlePhotosChange(nil)
}

// HandleMapPhotoClick opens the viewer for a marker click. Empty events are ignored.
func (b *Bridge) HandleMapPhotoClick(ev ClickEvent) {
	if len(ev.Photos) == 0 || b.viewer == nil {
		return
	}
	idx := ev.InitialIndex
	if idx < 0 {
		idx = 0
	}
	b.viewer.OpenPhotoViewer(ev.Photos, idx)
}

// ShowOnMap focuses the map on photo, falling back to its coordinates when
// the map cannot highlight photos. It reports false when the photo has no
// coordinates.
func (b *Bridge) ShowOnMap(photo domain.Photo) bool {
	lat, lng, ok := photo.Coordinates()
	if !ok {
		return false
	}
	if pf, ok := b.layer.(PhotoFocuser); ok {
		_, ok := pf.FocusOnPhoto(b.view, photo, b.focusZoom)
		return ok
	}
	_, ok = b.layer.FocusOnCoordinates(b.view, lat, lng, b.focusZoom)
	return ok
}

var (
	_ Map          = (*Layer)(nil)
	_ PhotoFocuser = (*Layer)(nil)
)
