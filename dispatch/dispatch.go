// Package dispatch classifies raw input events and routes the genuine ones to
// the trigger task registered for their key.
package dispatch

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"voicekey/emulate"
	"voicekey/listener"
	"voicekey/log"
	"voicekey/trigger"
)

// Stats counts how events were classified since the dispatcher was built.
type Stats struct {
	Routed    int64
	Synthetic int64
	Restoring int64
	Ignored   int64
	Panics    int64
}

// Dispatcher is installed as the filter of every listener. It is called on
// hook threads and never blocks beyond the task and set locks.
type Dispatcher struct {
	emu       *emulate.Emulator
	restoring *emulate.Set

	mu    sync.RWMutex
	tasks map[string]*trigger.Task

	routed    atomic.Int64
	synthetic atomic.Int64
	restored  atomic.Int64
	ignored   atomic.Int64
	panics    atomic.Int64
}

func New(emu *emulate.Emulator, restoring *emulate.Set) *Dispatcher {
	return &Dispatcher{
		emu:       emu,
		restoring: restoring,
		tasks:     make(map[string]*trigger.Task),
	}
}

// Register adds a task under its definition's key. A second task for the same
// key is rejected.
func (d *Dispatcher) Register(t *trigger.Task) error {
	key := t.Definition().Key
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tasks[key]; ok {
		return fmt.Errorf("trigger %s already registered", key)
	}
	d.tasks[key] = t
	return nil
}

// Unregister removes and returns the task for key, or nil.
func (d *Dispatcher) Unregister(key string) *trigger.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.tasks[key]
	delete(d.tasks, key)
	return t
}

func (d *Dispatcher) Task(key string) *trigger.Task {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tasks[key]
}

// Dispatch handles one event and reports whether the backend should swallow
// it. Our own synthetic presses and restores always pass through so they
// reach the OS.
func (d *Dispatcher) Dispatch(ev listener.Event) (suppress bool) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			log.Errorf("dispatch %s: panic: %v\n%s", ev, r, debug.Stack())
			suppress = false
		}
	}()

	if d.emu.Consume(ev.Name, !ev.Down) {
		d.synthetic.Add(1)
		log.Debugf("[%s] synthetic event skipped", ev)
		return false
	}
	if d.restoring.Consume(ev.Name, !ev.Down) {
		d.restored.Add(1)
		log.Debugf("[%s] restore event skipped", ev)
		return false
	}

	t := d.Task(ev.Name)
	if t == nil {
		d.ignored.Add(1)
		return false
	}

	d.routed.Add(1)
	if ev.Down {
		t.Down()
	} else {
		t.Up()
	}
	return t.Definition().Suppress
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Routed:    d.routed.Load(),
		Synthetic: d.synthetic.Load(),
		Restoring: d.restored.Load(),
		Ignored:   d.ignored.Load(),
		Panics:    d.panics.Load(),
	}
}
