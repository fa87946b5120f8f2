//go:build !windows

package emulate

import "fmt"

func clickButton(name string) error {
	return fmt.Errorf("%s: %w", name, ErrUnsupported)
}
