// Package resize tracks column resize drags. A gesture subscribes to pointer
// events when it starts and unsubscribes when the pointer is released or the
// tracker is closed, whichever happens first.
package resize

import (
	"errors"
	"sync"
)

// MinWidth is the smallest width a drag can produce.
const MinWidth = 80

// ErrGestureActive is returned when a drag starts while another is live.
var ErrGestureActive = errors.New("resize gesture already active")

// ErrClosed is returned when a drag starts on a closed tracker.
var ErrClosed = errors.New("resize tracker closed")

// PointerKind distinguishes pointer events.
type PointerKind int

const (
	PointerMove PointerKind = iota
	PointerUp
)

// PointerEvent is a pointer motion or release at horizontal position X.
type PointerEvent struct {
	Kind PointerKind
	X    int
}

// Gesture is the state captured at pointer-down.
type Gesture struct {
	Key        string
	StartX     int
	StartWidth int
}

// Width returns the column width for pointer position x.
func (g Gesture) Width(x int) int {
	return max(MinWidth, g.StartWidth+(x-g.StartX))
}

// WidthFunc receives every width a live gesture produces.
type WidthFunc func(key string, width int)

// Tracker runs at most one gesture at a time.
type Tracker struct {
	bus      *Bus
	setWidth WidthFunc

	mu      sync.Mutex
	active  *Gesture
	release func()
	closed  bool
}

// NewTracker creates a tracker that listens on bus and reports widths to setWidth.
func NewTracker(bus *Bus, setWidth WidthFunc) *Tracker {
	if setWidth == nil {
		setWidth = func(string, int) {}
	}
	return &Tracker{bus: bus, setWidth: setWidth}
}

// Begin starts a gesture on column key. The returned release ends it and is
// safe to call more than once; it also runs on pointer-up and on Close.
func (t *Tracker) Begin(key string, startX, startWidth int) (release func(), err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	if t.active != nil {
		return nil, ErrGestureActive
	}

	g := &Gesture{Key: key, StartX: startX, StartWidth: startWidth}
	t.active = g

	var once sync.Once
	var unsubscribe func()
	release = func() {
		once.Do(func() {
			if unsubscribe != nil {
				unsubscribe()
			}
			t.mu.Lock()
			if t.active == g {
				t.active = nil
				t.release = nil
			}
			t.mu.Unlock()
		})
	}

	unsubscribe = t.bus.Subscribe(func(ev PointerEvent) {
		switch ev.Kind {
		case PointerMove:
			t.setWidth(g.Key, g.Width(ev.X))
		case PointerUp:
			release()
		}
	})
	t.release = release
	return release, nil
}

// Active returns the live gesture, if any.
func (t *Tracker) Active() (Gesture, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return Gesture{}, false
	}
	return *t.active, true
}

// Close releases any live gesture and refuses new ones.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	release := t.release
	t.mu.Unlock()

	if release != nil {
		release()
	}
}

// Bus fans pointer events out to subscribers.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(PointerEvent)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(PointerEvent))}
}

// Subscribe registers fn and returns its unsubscribe function.
func (b *Bus) Subscribe(fn func(PointerEvent)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers ev to the current subscribers. Handlers may unsubscribe
// from within the callback.
func (b *Bus) Publish(ev PointerEvent) {
	b.mu.Lock()
	fns := make([]func(PointerEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
