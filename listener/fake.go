package listener

import (
	"sync"

	"voicekey/trigger"
)

// Fake is a listener driven by hand, for tests and the stdin test mode.
type Fake struct {
	mu       sync.Mutex
	filter   Filter
	running  bool
	starts   int
	stops    int
	StartErr error
}

func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	f.running = true
	f.starts++
	return nil
}

func (f *Fake) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		f.stops++
	}
	f.running = false
}

func (f *Fake) SetFilter(fn Filter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = fn
}

func (f *Fake) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Starts and Stops count lifecycle transitions.
func (f *Fake) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *Fake) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// Send delivers an event as the hook thread would and returns the filter's
// suppression verdict. Events sent while stopped are dropped.
func (f *Fake) Send(ev Event) bool {
	f.mu.Lock()
	fn, running := f.filter, f.running
	f.mu.Unlock()
	if !running || fn == nil {
		return false
	}
	return fn(ev)
}

func (f *Fake) SimKeydown(name string) bool { return f.Send(Event{Name: name, Down: true}) }
func (f *Fake) SimKeyup(name string) bool   { return f.Send(Event{Name: name, Down: false}) }

// FakeBackend hands out the given fakes from its factories. A nil fake makes
// that class fail to build.
func FakeBackend(keyboard, mouse *Fake, toggles trigger.ToggleReader, policy trigger.Policy) Backend {
	mk := func(f *Fake, class string) Factory {
		if f == nil {
			return unsupportedFactory(class)
		}
		return func([]trigger.Definition) (Listener, error) { return f, nil }
	}
	if toggles == nil {
		toggles = noToggles{}
	}
	return Backend{
		Name:      "fake",
		Policy:    policy,
		SingleKey: true,
		CanSuppress: func(trigger.Definition) (bool, string) {
			return true, ""
		},
		Keyboard: mk(keyboard, "keyboard"),
		Mouse:    mk(mouse, "mouse"),
		Toggles:  toggles,
	}
}
