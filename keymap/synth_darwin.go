//go:build darwin

package keymap

// SynthCode returns the keybd_event code for name (a CGKeyCode on macOS).
func SynthCode(name string) (int, bool) {
	code, ok := darwinByName[name]
	return int(code), ok
}
