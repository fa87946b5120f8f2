//go:build windows

package listener

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"voicekey/keymap"
	"voicekey/trigger"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
	procGetKeyState         = user32.NewProc("GetKeyState")
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14

	wmQuit        = 0x0012
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	wmMButtonDown = 0x0207
	wmMButtonUp   = 0x0208
	wmXButtonDown = 0x020B
	wmXButtonUp   = 0x020C

	hookTimeout = 2 * time.Second
)

type kbdllhookstruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msllhookstruct struct {
	X           int32
	Y           int32
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	PtX     int32
	PtY     int32
}

type hookClass int

const (
	hookKeyboard hookClass = iota
	hookMouse
)

// Windows keeps every NewCallback alive for the life of the process, so each
// class gets one callback that forwards to whichever listener is active.
var (
	activeHook [2]atomic.Pointer[hookListener]
	callbacks  [2]uintptr
	cbOnce     sync.Once
)

func hookCallback(class hookClass) uintptr {
	cbOnce.Do(func() {
		callbacks[hookKeyboard] = windows.NewCallback(keyboardProc)
		callbacks[hookMouse] = windows.NewCallback(mouseProc)
	})
	return callbacks[class]
}

func callNext(nCode, wParam, lParam uintptr) uintptr {
	ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
	return ret
}

func keyboardProc(nCode, wParam, lParam uintptr) uintptr {
	l := activeHook[hookKeyboard].Load()
	if int32(nCode) < 0 || l == nil {
		return callNext(nCode, wParam, lParam)
	}

	var down bool
	switch uint32(wParam) {
	case wmKeyDown, wmSysKeyDown:
		down = true
	case wmKeyUp, wmSysKeyUp:
	default:
		return callNext(nCode, wParam, lParam)
	}

	k := (*kbdllhookstruct)(unsafe.Pointer(lParam))
	name, ok := keymap.ToCanonical(keymap.Windows, k.VkCode)
	if !ok {
		return callNext(nCode, wParam, lParam)
	}
	if l.deliver(Event{Name: name, Down: down, Code: k.VkCode}) {
		return 1
	}
	return callNext(nCode, wParam, lParam)
}

func mouseProc(nCode, wParam, lParam uintptr) uintptr {
	l := activeHook[hookMouse].Load()
	if int32(nCode) < 0 || l == nil {
		return callNext(nCode, wParam, lParam)
	}

	m := (*msllhookstruct)(unsafe.Pointer(lParam))
	var name string
	var down, ok bool
	switch uint32(wParam) {
	case wmXButtonDown, wmXButtonUp:
		name, ok = keymap.WindowsXButton(uint16(m.MouseData >> 16))
		down = uint32(wParam) == wmXButtonDown
	case wmMButtonDown, wmMButtonUp:
		name, ok = "middle", true
		down = uint32(wParam) == wmMButtonDown
	}
	if !ok {
		return callNext(nCode, wParam, lParam)
	}
	if l.deliver(Event{Name: name, Down: down}) {
		return 1
	}
	return callNext(nCode, wParam, lParam)
}

// hookListener installs a WH_KEYBOARD_LL or WH_MOUSE_LL hook on a dedicated
// locked OS thread that pumps messages until Stop.
type hookListener struct {
	class hookClass

	mu       sync.Mutex
	filter   Filter
	threadID uint32
	done     chan struct{}
}

func newHookListener(class hookClass) *hookListener {
	return &hookListener{class: class}
}

func (l *hookListener) SetFilter(fn Filter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filter = fn
}

func (l *hookListener) deliver(ev Event) bool {
	l.mu.Lock()
	fn := l.filter
	l.mu.Unlock()
	if fn == nil {
		return false
	}
	return fn(ev)
}

func (l *hookListener) Start() error {
	if !activeHook[l.class].CompareAndSwap(nil, l) {
		return fmt.Errorf("low-level hook already installed for this input class")
	}

	errCh := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(done)

		hookType := uintptr(whKeyboardLL)
		if l.class == hookMouse {
			hookType = whMouseLL
		}
		hook, _, err := procSetWindowsHookExW.Call(hookType, hookCallback(l.class), 0, 0)
		if hook == 0 {
			errCh <- fmt.Errorf("SetWindowsHookExW: %v", err)
			return
		}

		l.mu.Lock()
		l.threadID = windows.GetCurrentThreadId()
		l.mu.Unlock()
		errCh <- nil

		var m msg
		for {
			ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
			if int32(ret) <= 0 {
				break
			}
		}
		procUnhookWindowsHookEx.Call(hook)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			activeHook[l.class].CompareAndSwap(l, nil)
			return err
		}
		l.mu.Lock()
		l.done = done
		l.mu.Unlock()
		return nil
	case <-time.After(hookTimeout):
		activeHook[l.class].CompareAndSwap(l, nil)
		return fmt.Errorf("timeout installing low-level hook")
	}
}

// Stop posts WM_QUIT to the hook thread and waits for the unhook.
func (l *hookListener) Stop() {
	activeHook[l.class].CompareAndSwap(l, nil)

	l.mu.Lock()
	tid, done := l.threadID, l.done
	l.threadID, l.done = 0, nil
	l.mu.Unlock()
	if done == nil {
		return
	}

	procPostThreadMessageW.Call(uintptr(tid), wmQuit, 0, 0)
	select {
	case <-done:
	case <-time.After(hookTimeout):
	}
}

type keyStateToggles struct{}

// Toggled reads the low bit of GetKeyState, which is the lock state.
func (keyStateToggles) Toggled(name string) (bool, error) {
	vk, ok := keymap.Code(keymap.Windows, name)
	if !ok {
		return false, fmt.Errorf("%s: no virtual key", name)
	}
	st, _, _ := procGetKeyState.Call(uintptr(vk))
	return st&1 != 0, nil
}

func hookBackend() Backend {
	return Backend{
		Name:      "hook",
		Policy:    trigger.Reliable,
		SingleKey: true,
		CanSuppress: func(def trigger.Definition) (bool, string) {
			if def.IsChord() {
				return false, "chords are assembled from single keys after the fact"
			}
			return true, ""
		},
		Keyboard: func([]trigger.Definition) (Listener, error) {
			return newHookListener(hookKeyboard), nil
		},
		Mouse: func([]trigger.Definition) (Listener, error) {
			return newHookListener(hookMouse), nil
		},
		Toggles: keyStateToggles{},
	}
}
