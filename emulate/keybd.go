package emulate

import (
	"fmt"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"

	"voicekey/keymap"
)

// Keybd synthesizes keys through keybd_event. The underlying device is
// created on first use.
type Keybd struct {
	mu      sync.Mutex
	kb      keybd_event.KeyBonding
	once    sync.Once
	initErr error
}

func NewKeybd() *Keybd {
	return &Keybd{}
}

// Init creates the virtual keyboard. On Linux this registers a uinput device
// and waits for the compositor to pick it up.
func (k *Keybd) Init() error {
	k.once.Do(func() {
		k.kb, k.initErr = keybd_event.NewKeyBonding()
		if k.initErr == nil {
			time.Sleep(settleDelay)
		}
	})
	return k.initErr
}

// PressRelease presses every member of name in order and then releases them,
// so "ctrl+alt+h" is replayed as the chord it names.
func (k *Keybd) PressRelease(name string) error {
	members, err := keymap.ParseChord(name)
	if err != nil {
		return err
	}
	codes := make([]int, 0, len(members))
	for _, m := range members {
		code, ok := keymap.SynthCode(m)
		if !ok {
			return fmt.Errorf("%s: %w", m, ErrUnsupported)
		}
		codes = append(codes, code)
	}
	if err := k.Init(); err != nil {
		return fmt.Errorf("keybd_event init: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.kb.Clear()
	k.kb.SetKeys(codes...)
	return k.kb.Launching()
}

func (k *Keybd) ClickButton(name string) error {
	return clickButton(name)
}
