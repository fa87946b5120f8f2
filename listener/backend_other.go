//go:build !windows && !linux && !darwin

package listener

import (
	"voicekey/trigger"
)

func platformBackends() []Backend {
	return []Backend{{
		Name:        "none",
		Policy:      trigger.Unreliable,
		SingleKey:   true,
		CanSuppress: neverSuppress("no input backend on this platform"),
		Keyboard:    unsupportedFactory("keyboard"),
		Mouse:       unsupportedFactory("mouse"),
		Toggles:     noToggles{},
	}}
}

func Diagnose() (string, error) {
	return "", ErrUnsupported
}
