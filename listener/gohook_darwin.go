//go:build darwin

package listener

import (
	"sync"

	hook "github.com/robotn/gohook"

	"voicekey/keymap"
	"voicekey/trigger"
)

// gohook exposes a single process-wide event stream, so the keyboard and
// mouse listeners share one hub that runs while either is started.
type gohookHub struct {
	mu   sync.Mutex
	subs map[*gohookListener]struct{}
	done chan struct{}
	evCh chan hook.Event
}

var hub = &gohookHub{subs: make(map[*gohookListener]struct{})}

func (h *gohookHub) acquire(l *gohookListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[l] = struct{}{}
	if h.evCh != nil {
		return
	}
	h.evCh = hook.Start()
	h.done = make(chan struct{})
	go h.run(h.evCh, h.done)
}

func (h *gohookHub) release(l *gohookListener) {
	h.mu.Lock()
	delete(h.subs, l)
	if len(h.subs) > 0 || h.evCh == nil {
		h.mu.Unlock()
		return
	}
	done := h.done
	h.evCh, h.done = nil, nil
	h.mu.Unlock()

	hook.End()
	<-done
}

func (h *gohookHub) run(evCh chan hook.Event, done chan struct{}) {
	defer close(done)
	for ev := range evCh {
		var e Event
		var mouse bool
		var ok bool
		switch ev.Kind {
		// libuiohook numbering: a physical press is KeyHold, KeyDown is the
		// typed character.
		case hook.KeyHold, hook.KeyUp:
			e.Name, ok = keymap.ToCanonical(keymap.Darwin, uint32(ev.Rawcode))
			e.Down = ev.Kind == hook.KeyHold
			e.Code = uint32(ev.Rawcode)
		// Likewise MouseHold is pressed and MouseDown is released.
		case hook.MouseHold, hook.MouseDown:
			e.Name, ok = keymap.MouseButton(ev.Button)
			e.Down = ev.Kind == hook.MouseHold
			mouse = true
		}
		if !ok {
			continue
		}

		h.mu.Lock()
		var targets []*gohookListener
		for l := range h.subs {
			if l.mouse == mouse {
				targets = append(targets, l)
			}
		}
		h.mu.Unlock()
		for _, l := range targets {
			l.deliver(e)
		}
	}
}

type gohookListener struct {
	mouse bool

	mu      sync.Mutex
	filter  Filter
	running bool
}

func (l *gohookListener) SetFilter(fn Filter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filter = fn
}

func (l *gohookListener) deliver(ev Event) {
	l.mu.Lock()
	fn := l.filter
	l.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (l *gohookListener) Start() error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = true
	l.mu.Unlock()
	hub.acquire(l)
	return nil
}

func (l *gohookListener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.mu.Unlock()
	hub.release(l)
}

func gohookBackend() Backend {
	return Backend{
		Name:        "gohook",
		Policy:      trigger.Unreliable,
		SingleKey:   true,
		CanSuppress: neverSuppress("gohook cannot consume events"),
		Keyboard: func([]trigger.Definition) (Listener, error) {
			return &gohookListener{}, nil
		},
		Mouse: func([]trigger.Definition) (Listener, error) {
			return &gohookListener{mouse: true}, nil
		},
		Toggles: noToggles{},
	}
}
