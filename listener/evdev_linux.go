//go:build linux

package listener

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/holoplot/go-evdev"

	"voicekey/keymap"
	"voicekey/log"
	"voicekey/trigger"
)

const (
	keyRelease = 0
	keyPress   = 1
)

type deviceKind int

const (
	kindKeyboard deviceKind = iota
	kindMouse
)

// evdevListener reads every matching /dev/input device. It only sees a copy
// of the event stream, so nothing can be suppressed.
type evdevListener struct {
	kind deviceKind

	// leds borrows a keyboard device for lock-state reads while running.
	leds *ledToggles

	fmu    sync.Mutex
	filter Filter

	mu      sync.Mutex
	devices []*evdev.InputDevice
	wg      sync.WaitGroup
}

func newEvdevListener(kind deviceKind, leds *ledToggles) *evdevListener {
	return &evdevListener{kind: kind, leds: leds}
}

func (l *evdevListener) SetFilter(fn Filter) {
	l.fmu.Lock()
	defer l.fmu.Unlock()
	l.filter = fn
}

func (l *evdevListener) deliver(ev Event) {
	l.fmu.Lock()
	fn := l.filter
	l.fmu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (l *evdevListener) Start() error {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return fmt.Errorf("listing input devices: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.devices) > 0 {
		return nil
	}

	found := 0
	for _, p := range paths {
		dev, err := evdev.Open(p.Path)
		if err != nil {
			continue
		}
		if !matches(dev, l.kind) {
			dev.Close()
			continue
		}
		found++
		if l.leds != nil && slices.Contains(dev.CapableTypes(), evdev.EV_LED) {
			l.leds.attach(dev)
		}
		l.devices = append(l.devices, dev)
		l.wg.Add(1)
		go l.read(dev)
	}

	if found == 0 {
		if l.kind == kindMouse {
			return errors.New("no mouse with side buttons found (is user in 'input' group?)")
		}
		return errors.New("no keyboard devices found (run: sudo usermod -aG input $USER, then re-login)")
	}
	return nil
}

func matches(dev *evdev.InputDevice, kind deviceKind) bool {
	types := dev.CapableTypes()
	if !slices.Contains(types, evdev.EV_KEY) {
		return false
	}
	if kind == kindKeyboard {
		// Power buttons and the like report EV_KEY too; only real keyboards
		// auto-repeat.
		return slices.Contains(types, evdev.EV_REP)
	}
	keys := dev.CapableEvents(evdev.EV_KEY)
	return slices.Contains(keys, evdev.BTN_SIDE) || slices.Contains(keys, evdev.BTN_EXTRA) || slices.Contains(keys, evdev.BTN_MIDDLE)
}

func (l *evdevListener) read(dev *evdev.InputDevice) {
	defer l.wg.Done()
	for {
		ev, err := dev.ReadOne()
		if err != nil {
			return
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}
		if ev.Value != keyPress && ev.Value != keyRelease {
			continue
		}

		var name string
		var ok bool
		if l.kind == kindMouse {
			name, ok = keymap.EvdevButton(uint16(ev.Code))
		} else {
			name, ok = keymap.ToCanonical(keymap.Evdev, uint32(ev.Code))
		}
		if !ok {
			continue
		}
		l.deliver(Event{Name: name, Down: ev.Value == keyPress, Code: uint32(ev.Code)})
	}
}

// Stop closes every device, which unblocks the readers.
func (l *evdevListener) Stop() {
	l.mu.Lock()
	devices := l.devices
	l.devices = nil
	l.mu.Unlock()

	if l.leds != nil {
		l.leds.detach()
	}
	for _, d := range devices {
		d.Close()
	}
	l.wg.Wait()
}

// ledToggles reads lock state from a keyboard's LEDs, which the kernel keeps
// in sync across keyboards. It uses a device owned by the running keyboard
// listener and never opens one of its own.
type ledToggles struct {
	mu  sync.Mutex
	dev *evdev.InputDevice
}

var ledCodes = map[string]evdev.EvCode{
	"caps_lock":   evdev.LED_CAPSL,
	"num_lock":    evdev.LED_NUML,
	"scroll_lock": evdev.LED_SCROLLL,
}

// attach keeps the first LED keyboard offered.
func (t *ledToggles) attach(dev *evdev.InputDevice) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev == nil {
		t.dev = dev
	}
}

func (t *ledToggles) detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dev = nil
}

func (t *ledToggles) Toggled(name string) (bool, error) {
	code, ok := ledCodes[name]
	if !ok {
		return false, fmt.Errorf("%s has no LED", name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev == nil {
		return false, errors.New("no keyboard with lock LEDs is being read")
	}
	state, err := t.dev.State(evdev.EV_LED)
	if err != nil {
		return false, fmt.Errorf("reading LED state: %w", err)
	}
	return state[code], nil
}

func evdevBackend() Backend {
	leds := &ledToggles{}
	return Backend{
		Name:        "evdev",
		Policy:      trigger.Unreliable,
		SingleKey:   true,
		CanSuppress: neverSuppress("evdev only observes a copy of the input stream"),
		Keyboard: func([]trigger.Definition) (Listener, error) {
			return newEvdevListener(kindKeyboard, leds), nil
		},
		Mouse: func([]trigger.Definition) (Listener, error) {
			return newEvdevListener(kindMouse, nil), nil
		},
		Toggles: leds,
	}
}

// Diagnose reports whether keyboard devices can be opened.
func Diagnose() (string, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	keyboards, opened := 0, ""
	for _, p := range paths {
		dev, err := evdev.Open(p.Path)
		if err != nil {
			continue
		}
		if matches(dev, kindKeyboard) {
			keyboards++
			if opened == "" {
				opened = p.Path
			}
		}
		dev.Close()
	}
	if keyboards == 0 {
		log.Warn("evdev diagnose: no readable keyboard")
		return "", fmt.Errorf("no readable keyboard devices (run: sudo usermod -aG input $USER)")
	}
	return fmt.Sprintf("%d keyboard(s) found, opened %s", keyboards, opened), nil
}
