package trigger

import (
	"errors"
	"sync"
)

// RecordSink keeps every action and capture cancellation in order.
type RecordSink struct {
	mu      sync.Mutex
	events  []string
	actions []Action
}

type recordCapture struct {
	s   *RecordSink
	key string
}

func (c recordCapture) Cancel() {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.events = append(c.s.events, "cancel:"+c.key)
}

func (s *RecordSink) Begin(a Action) Capture {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "begin:"+a.Key)
	s.actions = append(s.actions, a)
	return recordCapture{s: s, key: a.Key}
}

func (s *RecordSink) Finish(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "finish:"+a.Key)
	s.actions = append(s.actions, a)
}

// Events returns "begin:key", "finish:key" and "cancel:key" entries.
func (s *RecordSink) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func (s *RecordSink) Actions() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Action(nil), s.actions...)
}

// ErrToggleUnknown is returned by FakeToggles for keys it has no state for.
var ErrToggleUnknown = errors.New("toggle state unknown")

// FakeToggles is an in-memory ToggleReader.
type FakeToggles struct {
	mu    sync.Mutex
	state map[string]bool
}

func NewFakeToggles() *FakeToggles {
	return &FakeToggles{state: make(map[string]bool)}
}

func (f *FakeToggles) Set(name string, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[name] = on
}

func (f *FakeToggles) Flip(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[name] = !f.state[name]
}

func (f *FakeToggles) Forget(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.state, name)
}

func (f *FakeToggles) Toggled(name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	on, ok := f.state[name]
	if !ok {
		return false, ErrToggleUnknown
	}
	return on, nil
}
