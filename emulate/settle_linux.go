//go:build linux

package emulate

import "time"

// uinput devices are not seen by the compositor until it rescans.
const settleDelay = 200 * time.Millisecond
