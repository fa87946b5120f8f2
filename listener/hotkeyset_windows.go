//go:build windows

package listener

import (
	"golang.design/x/hotkey"

	"voicekey/keymap"
)

const hotkeySource = keymap.Windows

func modifierFor(name string) (hotkey.Modifier, bool) {
	switch name {
	case "ctrl":
		return hotkey.ModCtrl, true
	case "shift":
		return hotkey.ModShift, true
	case "alt":
		return hotkey.ModAlt, true
	case "super":
		return hotkey.ModWin, true
	}
	return 0, false
}
