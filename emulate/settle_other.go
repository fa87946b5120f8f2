//go:build !linux

package emulate

const settleDelay = 0
