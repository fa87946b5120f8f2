//go:build !linux && !windows && !darwin

package keymap

func SynthCode(name string) (int, bool) {
	return 0, false
}
