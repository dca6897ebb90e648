package photomap

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/pkordes/geopulse-companion/internal/domain"
)

// DefaultFocusZoom is the minimum zoom used when focusing a photo.
const DefaultFocusZoom = 16

// Viewport is the map the layer draws on.
type Viewport interface {
	Zoom() float64
	SetView(lat, lng, zoom float64)
}

// View is a plain Viewport for callers without a live map, such as the HTTP
// API reporting where the UI should move.
type View struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	ZoomLevel float64 `json:"zoom"`
}

// Zoom implements Viewport.
func (v *View) Zoom() float64 { return v.ZoomLevel }

// SetView implements Viewport.
func (v *View) SetView(lat, lng, zoom float64) {
	v.Latitude, v.Longitude, v.ZoomLevel = lat, lng, zoom
}

// ClickEvent is reported when the user clicks a marker. InitialIndex is the
// position in Photos the viewer should open at.
type ClickEvent struct {
	Photos       []domain.Photo `json:"photos"`
	Indices      []int          `json:"indices"`
	InitialIndex int            `json:"initialIndex"`
}

// Focus is the highlight drawn over a single position. Photo is nil for a
// bare coordinate focus.
type Focus struct {
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Zoom      float64       `json:"zoom"`
	Photo     *domain.Photo `json:"photo,omitempty"`
}

// Layer is the photo marker layer of one map. It is safe for concurrent use.
// Listeners are called in registration order without the layer lock held.
type Layer struct {
	mu        sync.Mutex
	groups    []MarkerGroup
	focus     *Focus
	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn func(ClickEvent)
}

// NewLayer returns an empty layer.
func NewLayer() *Layer {
	return &Layer{}
}

// OnPhotoClick registers fn for click events and returns a function that
// removes it.
func (l *Layer) OnPhotoClick(fn func(ClickEvent)) (unsubscribe func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.listeners = append(l.listeners, listener{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.listeners = slices.DeleteFunc(l.listeners, func(ln listener) bool { return ln.id == id })
		})
	}
}

// Render replaces the markers with the groups built from photos.
func (l *Layer) Render(photos []domain.Photo) []MarkerGroup {
	groups := GroupByLocation(photos)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.groups = groups
	return groups
}

// Groups returns the markers currently rendered.
func (l *Layer) Groups() []MarkerGroup {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.groups
}

// Clear removes all markers. The focus highlight is kept.
func (l *Layer) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.groups = nil
}

// ClickGroup reports a click on the i-th rendered group.
func (l *Layer) ClickGroup(i int) error {
	l.mu.Lock()
	if i < 0 || i >= len(l.groups) {
		n := len(l.groups)
		l.mu.Unlock()
		return fmt.Errorf("photomap.Layer.ClickGroup: %w: group %d of %d", domain.ErrNotFound, i, n)
	}
	g := l.groups[i]
	l.mu.Unlock()

	l.emit(ClickEvent{Photos: g.Photos, Indices: g.Indices, InitialIndex: 0})
	return nil
}

// FocusOnCoordinates highlights a bare position and moves view there.
// It reports false, changing nothing, when the coordinates are not finite.
func (l *Layer) FocusOnCoordinates(view Viewport, lat, lng, minZoom float64) (Focus, bool) {
	if view == nil || !finite(lat) || !finite(lng) {
		return Focus{}, false
	}
	return l.setFocus(view, Focus{Latitude: lat, Longitude: lng}, minZoom), true
}

// FocusOnPhoto highlights photo and moves view to it. Clicking the highlight
// reports that single photo. Photos without coordinates are ignored.
func (l *Layer) FocusOnPhoto(view Viewport, photo domain.Photo, minZoom float64) (Focus, bool) {
	lat, lng, ok := photo.Coordinates()
	if view == nil || !ok {
		return Focus{}, false
	}
	p := photo
	return l.setFocus(view, Focus{Latitude: lat, Longitude: lng, Photo: &p}, minZoom), true
}

// setFocus replaces any previous highlight. The view never zooms out.
func (l *Layer) setFocus(view Viewport, f Focus, minZoom float64) Focus {
	f.Zoom = math.Max(view.Zoom(), minZoom)

	l.mu.Lock()
	l.focus = &f
	l.mu.Unlock()

	view.SetView(f.Latitude, f.Longitude, f.Zoom)
	return f
}

// CurrentFocus returns the active highlight, if any.
func (l *Layer) CurrentFocus() (Focus, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.focus == nil {
		return Focus{}, false
	}
	return *l.focus, true
}

// ClickFocus reports a click on the focus highlight. Only a photo focus is
// clickable; it returns false otherwise.
func (l *Layer) ClickFocus() bool {
	l.mu.Lock()
	f := l.focus
	l.mu.Unlock()
	if f == nil || f.Photo == nil {
		return false
	}
	l.emit(ClickEvent{Photos: []domain.Photo{*f.Photo}, Indices: []int{0}, InitialIndex: 0})
	return true
}

// ClearFocus removes the highlight.
func (l *Layer) ClearFocus() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.focus = nil
}

func (l *Layer) emit(ev ClickEvent) {
	l.mu.Lock()
	listeners := slices.Clone(l.listeners)
	l.mu.Unlock()

	for _, ln := range listeners {
		ln.fn(ev)
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
