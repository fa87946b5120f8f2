// Package trigger holds trigger definitions and the per-trigger state machine
// that turns down/up events into begin/finish capture actions.
package trigger

import (
	"fmt"
	"strings"
	"time"

	"voicekey/keymap"
)

type Kind int

const (
	// Hold starts on press and finishes on release; releases before the
	// threshold cancel the capture.
	Hold Kind = iota
	// Click starts on one press and finishes on the next.
	Click
)

func (k Kind) String() string {
	if k == Click {
		return "click"
	}
	return "hold"
}

type Device int

const (
	Keyboard Device = iota
	Mouse
)

func (d Device) String() string {
	if d == Mouse {
		return "mouse"
	}
	return "keyboard"
}

// DefaultThreshold is the minimum hold used when a definition leaves it unset.
const DefaultThreshold = 300 * time.Millisecond

// Definition is an immutable trigger configuration.
type Definition struct {
	Key       string
	Members   []string
	Device    Device
	Kind      Kind
	Suppress  bool
	Threshold time.Duration
	Enabled   bool
}

// NewDefinition normalizes key, fills in chord members and the device class,
// and validates the result.
func NewDefinition(key string, kind Kind, suppress bool, threshold time.Duration) (Definition, error) {
	members, err := keymap.ParseChord(key)
	if err != nil {
		return Definition{}, err
	}
	d := Definition{
		Key:       strings.Join(members, "+"),
		Members:   members,
		Kind:      kind,
		Suppress:  suppress,
		Threshold: threshold,
		Enabled:   true,
	}
	if d.Threshold <= 0 {
		d.Threshold = DefaultThreshold
	}

	mouse := 0
	for _, m := range members {
		if keymap.IsMouse(m) {
			mouse++
		}
	}
	switch {
	case mouse == 0:
		d.Device = Keyboard
	case mouse == len(members) && len(members) == 1:
		d.Device = Mouse
	default:
		return Definition{}, fmt.Errorf("%s: mouse buttons cannot be part of a chord", key)
	}
	return d, nil
}

func (d Definition) IsChord() bool {
	return len(d.Members) > 1
}

// IsToggle reports whether the trigger is a single lock key whose state has
// to be snapshotted and restored.
func (d Definition) IsToggle() bool {
	return !d.IsChord() && keymap.IsToggle(d.Key)
}

func (d Definition) String() string {
	return fmt.Sprintf("[%s] %s, suppress=%v, toggle=%v", d.Key, d.Kind, d.Suppress, d.IsToggle())
}
