//go:build linux

package keymap

// SynthCode returns the keybd_event code for name. On Linux keybd_event
// writes evdev codes straight into uinput.
func SynthCode(name string) (int, bool) {
	code, ok := evdevByName[name]
	return int(code), ok
}
