//go:build windows || darwin

package listener

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"

	"voicekey/keymap"
	"voicekey/trigger"
)

// hotkeySet registers one OS-level hotkey per definition. The OS assembles
// modifier chords itself and always consumes the registered combination.
type hotkeySet struct {
	defs []trigger.Definition

	fmu    sync.Mutex
	filter Filter

	mu      sync.Mutex
	hks     []*hotkey.Hotkey
	stop    chan struct{}
	running bool
}

func newHotkeySet(defs []trigger.Definition) (Listener, error) {
	for _, d := range defs {
		if _, _, err := hotkeyFor(d); err != nil {
			return nil, err
		}
	}
	return &hotkeySet{defs: defs}, nil
}

// hotkeyFor splits a definition into modifiers and the single main key.
func hotkeyFor(d trigger.Definition) ([]hotkey.Modifier, hotkey.Key, error) {
	var mods []hotkey.Modifier
	var main string
	for _, m := range d.Members {
		if mod, ok := modifierFor(m); ok && len(d.Members) > 1 {
			mods = append(mods, mod)
			continue
		}
		if main != "" {
			return nil, 0, fmt.Errorf("%s: hotkey backend needs exactly one non-modifier key: %w", d.Key, ErrUnsupported)
		}
		main = m
	}
	if main == "" {
		return nil, 0, fmt.Errorf("%s: modifier-only chord: %w", d.Key, ErrUnsupported)
	}
	code, ok := keymap.Code(hotkeySource, main)
	if !ok {
		return nil, 0, fmt.Errorf("%s: no key code for %q: %w", d.Key, main, ErrUnsupported)
	}
	return mods, hotkey.Key(code), nil
}

func (s *hotkeySet) SetFilter(fn Filter) {
	s.fmu.Lock()
	defer s.fmu.Unlock()
	s.filter = fn
}

func (s *hotkeySet) deliver(ev Event) {
	s.fmu.Lock()
	fn := s.filter
	s.fmu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (s *hotkeySet) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	s.stop = make(chan struct{})
	for _, d := range s.defs {
		mods, key, err := hotkeyFor(d)
		if err != nil {
			s.unregisterLocked()
			return err
		}
		hk := hotkey.New(mods, key)
		if err := hk.Register(); err != nil {
			s.unregisterLocked()
			return fmt.Errorf("registering %s: %w", d.Key, err)
		}
		s.hks = append(s.hks, hk)
		go s.forward(d.Key, hk.Keydown(), true, s.stop)
		go s.forward(d.Key, hk.Keyup(), false, s.stop)
	}
	s.running = true
	return nil
}

func (s *hotkeySet) forward(name string, ch <-chan hotkey.Event, down bool, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			s.deliver(Event{Name: name, Down: down})
		}
	}
}

func (s *hotkeySet) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unregisterLocked()
	s.running = false
}

func (s *hotkeySet) unregisterLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	for _, hk := range s.hks {
		hk.Unregister()
	}
	s.hks = nil
}

func hotkeyBackend(toggles trigger.ToggleReader) Backend {
	return Backend{
		Name:     "hotkey",
		Policy:   trigger.Reliable,
		Consumes: true,
		CanSuppress: func(trigger.Definition) (bool, string) {
			return true, ""
		},
		Keyboard: newHotkeySet,
		Mouse:    unsupportedFactory("mouse"),
		Toggles:  toggles,
	}
}
