//go:build windows

package keymap

// keybd_event treats codes below 0xFFF as scan codes and subtracts 0xFFF
// from anything above to get a virtual key.
const vkOffset = 0xFFF

// SynthCode returns the keybd_event code for name. Main-block keys are sent as
// set 1 scan codes, which match evdev numbering; the rest as virtual keys.
func SynthCode(name string) (int, bool) {
	if code, ok := evdevByName[name]; ok && code < 89 {
		return int(code), true
	}
	vk, ok := windowsByName[name]
	if !ok {
		return 0, false
	}
	return int(vk) + vkOffset, true
}
