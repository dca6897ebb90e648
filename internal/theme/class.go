package theme

import (
	"slices"
	"sort"
	"sync"
)

// ClassSet is an in-memory set of root classes. The zero value is empty and
// ready to use.
type ClassSet struct {
	mu      sync.RWMutex
	classes map[string]struct{}
}

// Toggle implements ClassToggler.
func (c *ClassSet) Toggle(class string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !on {
		delete(c.classes, class)
		return
	}
	if c.classes == nil {
		c.classes = make(map[string]struct{})
	}
	c.classes[class] = struct{}{}
}

// Has reports whether class is set.
func (c *ClassSet) Has(class string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.classes[class]
	return ok
}

// Classes returns the set classes in sorted order.
func (c *ClassSet) Classes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.classes))
	for class := range c.classes {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}

// Broadcast is a SystemPreference fed by whoever observes the OS, such as a
// UI reporting its media query. The zero value reports light.
type Broadcast struct {
	mu   sync.Mutex
	dark bool
	next int
	subs []subscriber
}

type subscriber struct {
	id int
	fn func(bool)
}

// IsDark implements SystemPreference.
func (b *Broadcast) IsDark() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dark
}

// SetDark records the OS preference and notifies subscribers, in
// subscription order, when it changes.
func (b *Broadcast) SetDark(dark bool) {
	b.mu.Lock()
	if b.dark == dark {
		b.mu.Unlock()
		return
	}
	b.dark = dark
	subs := slices.Clone(b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		s.fn(dark)
	}
}

// Subscribe implements SystemPreference.
func (b *Broadcast) Subscribe(fn func(dark bool)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.subs = slices.DeleteFunc(b.subs, func(s subscriber) bool { return s.id == id })
		})
	}
}

var (
	_ ClassToggler     = (*ClassSet)(nil)
	_ SystemPreference = (*Broadcast)(nil)
)
