package dispatch

import (
	"slices"
	"sync"

	"voicekey/listener"
	"voicekey/log"
	"voicekey/trigger"
)

// Chord is a set of keys that count as one trigger while all are held.
type Chord struct {
	Name    string
	Members []string
	active  bool
}

// ChordListener sits on top of a listener that only reports single keys. It
// forwards every raw event unchanged and adds a synthetic down for a chord on
// the edge where all its members become held, and a synthetic up on the edge
// where any of them is released.
type ChordListener struct {
	inner listener.Listener

	mu      sync.Mutex
	filter  listener.Filter
	// pressed maps a held key name to the physical codes holding it.
	pressed map[string]map[uint32]bool
	chords  []*Chord
}

// NewChordListener tracks the chord definitions among defs. Single-key
// definitions are left to the raw stream.
func NewChordListener(inner listener.Listener, defs []trigger.Definition) *ChordListener {
	c := &ChordListener{
		inner:   inner,
		pressed: make(map[string]map[uint32]bool),
	}
	for _, d := range defs {
		if d.IsChord() {
			c.chords = append(c.chords, &Chord{Name: d.Key, Members: slices.Clone(d.Members)})
		}
	}
	return c
}

func (c *ChordListener) SetFilter(fn listener.Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = fn
}

func (c *ChordListener) Start() error {
	c.reset()
	c.inner.SetFilter(c.handle)
	return c.inner.Start()
}

func (c *ChordListener) Stop() {
	c.inner.Stop()
	c.reset()
}

// Active reports whether the named chord is currently fully held.
func (c *ChordListener) Active(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.chords {
		if ch.Name == name {
			return ch.active
		}
	}
	return false
}

func (c *ChordListener) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.pressed)
	for _, ch := range c.chords {
		ch.active = false
	}
}

// handle returns the raw event's verdict. Chord verdicts are not applied
// because the member events have already gone by.
func (c *ChordListener) handle(ev listener.Event) bool {
	c.mu.Lock()
	c.track(ev)
	var edges []listener.Event
	for _, ch := range c.chords {
		held := c.allHeld(ch.Members)
		if held == ch.active {
			continue
		}
		ch.active = held
		edges = append(edges, listener.Event{Name: ch.Name, Down: held})
	}
	fn := c.filter
	c.mu.Unlock()

	if fn == nil {
		return false
	}
	suppress := fn(ev)
	for _, e := range edges {
		log.Chord(e.Name, e.Down)
		fn(e)
	}
	return suppress
}

// track records ev against its physical code, so releasing one of two held
// ctrl keys leaves ctrl held. Auto-repeat downs are idempotent.
func (c *ChordListener) track(ev listener.Event) {
	codes := c.pressed[ev.Name]
	if ev.Down {
		if codes == nil {
			codes = make(map[uint32]bool)
			c.pressed[ev.Name] = codes
		}
		codes[ev.Code] = true
		return
	}
	delete(codes, ev.Code)
	// An unknown code cannot be matched to one side, so it releases the name.
	if len(codes) == 0 || ev.Code == 0 {
		delete(c.pressed, ev.Name)
	}
}

func (c *ChordListener) allHeld(members []string) bool {
	for _, m := range members {
		if len(c.pressed[m]) == 0 {
			return false
		}
	}
	return true
}
