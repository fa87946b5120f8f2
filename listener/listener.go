// Package listener delivers raw key and mouse-button events from the
// platform input hook as canonical (name, down/up) pairs.
package listener

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"voicekey/trigger"
)

// ErrUnsupported marks a capability the backend does not have.
var ErrUnsupported = errors.New("not supported by this input backend")

// Event is one normalized input event. Code is the backend's physical key
// code, or 0 when unknown; left and right modifiers share a Name but not a
// Code.
type Event struct {
	Name string
	Down bool
	Code uint32
}

func (e Event) String() string {
	if e.Down {
		return e.Name + " down"
	}
	return e.Name + " up"
}

// Filter is called on the hook's own thread for every event. It must not
// block. Returning true asks the backend to swallow the event.
type Filter func(Event) (suppress bool)

// Listener is one input class (keyboard or mouse) on one backend.
type Listener interface {
	Start() error
	Stop()
	SetFilter(Filter)
}

// Factory builds a listener for the given enabled definitions of one class.
type Factory func(defs []trigger.Definition) (Listener, error)

// Backend describes a platform input backend.
type Backend struct {
	Name string
	// Policy is how much toggle-key suppression can be trusted.
	Policy trigger.Policy
	// SingleKey is true when the keyboard listener only reports individual
	// keys, so chords have to be tracked on top of it.
	SingleKey bool
	// Consumes is true when the backend swallows every event it reports,
	// whatever the definition asks for.
	Consumes bool
	// CanSuppress reports whether a definition's events can be swallowed.
	CanSuppress func(def trigger.Definition) (bool, string)
	Keyboard    Factory
	Mouse       Factory
	Toggles     trigger.ToggleReader
}

// Detect returns the named backend, or the platform default for "" and
// "auto".
func Detect(name string) (Backend, error) {
	backends := platformBackends()
	if name == "" || name == "auto" {
		return backends[0], nil
	}
	for _, b := range backends {
		if b.Name == name {
			return b, nil
		}
	}
	var names []string
	for _, b := range backends {
		names = append(names, b.Name)
	}
	sort.Strings(names)
	return Backend{}, fmt.Errorf("unknown input backend %q (available: %s)", name, strings.Join(names, ", "))
}

// Names lists the backends available on this platform, default first.
func Names() []string {
	var names []string
	for _, b := range platformBackends() {
		names = append(names, b.Name)
	}
	return names
}

// noToggles is used where the platform exposes no lock-key state.
type noToggles struct{}

func (noToggles) Toggled(name string) (bool, error) {
	return false, fmt.Errorf("%s: %w", name, ErrUnsupported)
}

func neverSuppress(reason string) func(trigger.Definition) (bool, string) {
	return func(trigger.Definition) (bool, string) {
		return false, reason
	}
}

func unsupportedFactory(class string) Factory {
	return func([]trigger.Definition) (Listener, error) {
		return nil, fmt.Errorf("%s listener: %w", class, ErrUnsupported)
	}
}
