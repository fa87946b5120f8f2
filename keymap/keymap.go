// Package keymap translates between raw platform key/button codes and the
// canonical names used everywhere else.
package keymap

import (
	"fmt"
	"strings"
)

// Source identifies which raw code space a code comes from.
type Source int

const (
	// Windows virtual-key codes (WH_KEYBOARD_LL vkCode).
	Windows Source = iota
	// Evdev key codes from linux/input-event-codes.h.
	Evdev
	// Darwin virtual key codes as delivered by libuiohook.
	Darwin
)

func (s Source) String() string {
	switch s {
	case Windows:
		return "windows"
	case Evdev:
		return "evdev"
	case Darwin:
		return "darwin"
	default:
		return "unknown"
	}
}

var aliases = map[string]string{
	"control":     "ctrl",
	"lctrl":       "ctrl",
	"rctrl":       "ctrl",
	"ctrl_l":      "ctrl",
	"ctrl_r":      "ctrl",
	"option":      "alt",
	"lalt":        "alt",
	"ralt":        "alt",
	"alt_l":       "alt",
	"alt_r":       "alt",
	"alt_gr":      "alt",
	"lshift":      "shift",
	"rshift":      "shift",
	"shift_l":     "shift",
	"shift_r":     "shift",
	"cmd":         "super",
	"command":     "super",
	"win":         "super",
	"windows":     "super",
	"meta":        "super",
	"capslock":    "caps_lock",
	"caps":        "caps_lock",
	"numlock":     "num_lock",
	"scrolllock":  "scroll_lock",
	"return":      "enter",
	"escape":      "esc",
	"del":         "delete",
	"ins":         "insert",
	"pageup":      "page_up",
	"pgup":        "page_up",
	"pagedown":    "page_down",
	"pgdn":        "page_down",
	"printscreen": "print_screen",
	"prtsc":       "print_screen",
	"apps":        "menu",
	"xbutton1":    "x1",
	"xbutton2":    "x2",
	"mouse4":      "x1",
	"mouse5":      "x2",
}

var toggles = map[string]bool{
	"caps_lock":   true,
	"num_lock":    true,
	"scroll_lock": true,
}

var mouseButtons = map[string]bool{
	"x1":     true,
	"x2":     true,
	"middle": true,
}

// Normalize lowercases name, strips angle brackets and spaces,
// and resolves aliases. It does not check that the result is known.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.Trim(n, "<>")
	n = strings.ReplaceAll(n, " ", "")
	n = strings.ReplaceAll(n, "-", "_")
	if a, ok := aliases[n]; ok {
		return a
	}
	return n
}

// Known reports whether name is a canonical key or mouse button name.
func Known(name string) bool {
	if mouseButtons[name] {
		return true
	}
	_, ok := windowsByName[name]
	return ok
}

// IsToggle reports whether pressing name flips a persistent lock state.
func IsToggle(name string) bool {
	return toggles[name]
}

// IsMouse reports whether name is a mouse button.
func IsMouse(name string) bool {
	return mouseButtons[name]
}

// IsChord reports whether key is written as a combination ("ctrl+alt+h").
func IsChord(key string) bool {
	return strings.Contains(key, "+")
}

// ParseChord splits "ctrl+alt+h" into normalized member names. A single key
// yields a one-element slice.
func ParseChord(key string) ([]string, error) {
	parts := strings.Split(key, "+")
	seen := make(map[string]bool, len(parts))
	var out []string
	for _, p := range parts {
		n := Normalize(p)
		if n == "" {
			continue
		}
		if !Known(n) {
			return nil, fmt.Errorf("unknown key %q in %q", p, key)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty key %q", key)
	}
	return out, nil
}

// Canonical returns the canonical spelling of key, normalizing every chord
// member and joining them with "+" in their written order.
func Canonical(key string) (string, error) {
	members, err := ParseChord(key)
	if err != nil {
		return "", err
	}
	return strings.Join(members, "+"), nil
}

// ToCanonical maps a raw key code from src to its canonical name.
func ToCanonical(src Source, code uint32) (string, bool) {
	var name string
	var ok bool
	switch src {
	case Windows:
		name, ok = windowsByCode[code]
	case Evdev:
		name, ok = evdevByCode[code]
	case Darwin:
		name, ok = darwinByCode[code]
	}
	return name, ok
}

// Code maps a canonical name back to a raw code in src.
func Code(src Source, name string) (uint32, bool) {
	var code uint32
	var ok bool
	switch src {
	case Windows:
		code, ok = windowsByName[name]
	case Evdev:
		code, ok = evdevByName[name]
	case Darwin:
		code, ok = darwinByName[name]
	}
	return code, ok
}

// MouseButton maps a libuiohook button number (4 and 5 are the side buttons)
// to its canonical name.
func MouseButton(n uint16) (string, bool) {
	switch n {
	case 3:
		return "middle", true
	case 4:
		return "x1", true
	case 5:
		return "x2", true
	}
	return "", false
}

// WindowsXButton maps the high word of MSLLHOOKSTRUCT.mouseData.
func WindowsXButton(hi uint16) (string, bool) {
	switch hi {
	case 1:
		return "x1", true
	case 2:
		return "x2", true
	}
	return "", false
}

// EvdevButton maps BTN_MIDDLE, BTN_SIDE and BTN_EXTRA.
func EvdevButton(code uint16) (string, bool) {
	switch code {
	case 0x112:
		return "middle", true
	case 0x113:
		return "x1", true
	case 0x114:
		return "x2", true
	}
	return "", false
}
