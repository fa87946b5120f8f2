// Package emulate synthesizes key and mouse-button presses and remembers which
// names it is currently synthesizing, so the dispatcher can tell its own
// events apart from the user's.
package emulate

import (
	"errors"

	"voicekey/log"
)

// ErrUnsupported is returned by a Synthesizer that cannot produce the
// requested key or button on this platform.
var ErrUnsupported = errors.New("synthesis not supported by backend")

// Synthesizer emits a full press-and-release for a canonical name.
type Synthesizer interface {
	PressRelease(name string) error
	ClickButton(name string) error
}

type Emulator struct {
	synth Synthesizer
	flags *Set
}

func New(synth Synthesizer) *Emulator {
	return &Emulator{synth: synth, flags: NewSet()}
}

// EmulateKey marks name as emulating and then synthesizes it. On failure the
// mark is left in place; whoever scheduled the emulation owns clearing it if
// no release is ever observed.
func (e *Emulator) EmulateKey(name string) error {
	e.flags.Mark(name)
	err := e.synth.PressRelease(name)
	log.Emulation(name, err)
	return err
}

// EmulateMouseButton is EmulateKey for mouse buttons. When the backend cannot
// synthesize the button no event will ever arrive, so the mark is dropped
// straight away instead of swallowing the user's next real click.
func (e *Emulator) EmulateMouseButton(name string) error {
	e.flags.Mark(name)
	err := e.synth.ClickButton(name)
	if errors.Is(err, ErrUnsupported) {
		e.flags.Clear(name)
		log.Warnf("[%s] mouse button synthesis unsupported, skipping replay", name)
		return err
	}
	log.Emulation(name, err)
	return err
}

// Mark flags name without synthesizing anything.
func (e *Emulator) Mark(name string) bool {
	return e.flags.Mark(name)
}

func (e *Emulator) IsEmulating(name string) bool {
	return e.flags.Has(name)
}

func (e *Emulator) ClearEmulating(name string) bool {
	return e.flags.Clear(name)
}

// Consume is the dispatcher's atomic check: it reports whether name is being
// emulated and clears the mark on the release.
func (e *Emulator) Consume(name string, up bool) bool {
	return e.flags.Consume(name, up)
}

// Pending returns the number of names currently marked.
func (e *Emulator) Pending() int {
	return e.flags.Len()
}
