//go:build windows

package emulate

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32        = windows.NewLazySystemDLL("user32.dll")
	procSendInput = user32.NewProc("SendInput")
)

const (
	inputMouse = 0

	mouseeventfMiddleDown = 0x0020
	mouseeventfMiddleUp   = 0x0040
	mouseeventfXDown      = 0x0080
	mouseeventfXUp        = 0x0100

	xbutton1 = 0x0001
	xbutton2 = 0x0002
)

type mouseInput struct {
	Dx          int32
	Dy          int32
	MouseData   uint32
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

type input struct {
	Type uint32
	_    uint32
	Mi   mouseInput
}

func clickButton(name string) error {
	var data, down, up uint32
	switch name {
	case "x1":
		data, down, up = xbutton1, mouseeventfXDown, mouseeventfXUp
	case "x2":
		data, down, up = xbutton2, mouseeventfXDown, mouseeventfXUp
	case "middle":
		down, up = mouseeventfMiddleDown, mouseeventfMiddleUp
	default:
		return fmt.Errorf("%s: %w", name, ErrUnsupported)
	}

	inputs := []input{
		{Type: inputMouse, Mi: mouseInput{MouseData: data, DwFlags: down}},
		{Type: inputMouse, Mi: mouseInput{MouseData: data, DwFlags: up}},
	}
	n, _, err := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if int(n) != len(inputs) {
		return fmt.Errorf("SendInput %s: %v", name, err)
	}
	return nil
}
