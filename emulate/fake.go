package emulate

import "sync"

// FakeSynth records synthesized names. If Echo is set it is called for the
// down and up of every synthesized key, standing in for the OS feeding the
// event back to the hook.
type FakeSynth struct {
	mu        sync.Mutex
	keys      []string
	buttons   []string
	Err       error
	ButtonErr error
	Echo      func(name string, down bool)
}

func (f *FakeSynth) PressRelease(name string) error {
	f.mu.Lock()
	f.keys = append(f.keys, name)
	err, echo := f.Err, f.Echo
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if echo != nil {
		echo(name, true)
		echo(name, false)
	}
	return nil
}

func (f *FakeSynth) ClickButton(name string) error {
	f.mu.Lock()
	f.buttons = append(f.buttons, name)
	err, echo := f.ButtonErr, f.Echo
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if echo != nil {
		echo(name, true)
		echo(name, false)
	}
	return nil
}

func (f *FakeSynth) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

func (f *FakeSynth) Buttons() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.buttons...)
}
