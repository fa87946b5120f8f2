// Package shortcut owns the configured triggers: it builds their tasks, runs
// the platform listeners that feed them, and performs the replays and
// toggle-key restores they ask for.
package shortcut

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"voicekey/dispatch"
	"voicekey/emulate"
	"voicekey/keymap"
	"voicekey/listener"
	"voicekey/log"
	"voicekey/trigger"
)

const (
	DefaultWorkers        = 4
	DefaultRestoreDelay   = 50 * time.Millisecond
	DefaultEmulateTimeout = time.Second
	queueDepth            = 64
)

// ErrStopped is returned by operations on a manager that has been stopped.
var ErrStopped = errors.New("shortcut manager stopped")

// StartError reports which input classes failed to start. The classes that
// did start keep running.
type StartError struct {
	Keyboard error
	Mouse    error
}

func (e *StartError) Error() string {
	var parts []string
	if e.Keyboard != nil {
		parts = append(parts, "keyboard: "+e.Keyboard.Error())
	}
	if e.Mouse != nil {
		parts = append(parts, "mouse: "+e.Mouse.Error())
	}
	return "listener start failed: " + strings.Join(parts, "; ")
}

func (e *StartError) Unwrap() []error {
	var errs []error
	if e.Keyboard != nil {
		errs = append(errs, e.Keyboard)
	}
	if e.Mouse != nil {
		errs = append(errs, e.Mouse)
	}
	return errs
}

func (e *StartError) set(dev trigger.Device, err error) {
	if dev == trigger.Mouse {
		e.Mouse = err
	} else {
		e.Keyboard = err
	}
}

func (e *StartError) orNil() error {
	if e.Keyboard == nil && e.Mouse == nil {
		return nil
	}
	return e
}

type Options struct {
	Backend listener.Backend
	Sink    trigger.Sink
	Synth   emulate.Synthesizer
	// Workers bounds the pool used for replays and restores.
	Workers int
	// RestoreDelay is how long a toggle restore waits for the original event
	// to finish its trip through the OS.
	RestoreDelay time.Duration
	// EmulateTimeout clears an emulation mark whose release never showed up.
	EmulateTimeout time.Duration
	Now            func() time.Time
}

// Manager is the explicitly constructed owner of all trigger state.
type Manager struct {
	backend        listener.Backend
	sink           trigger.Sink
	now            func() time.Time
	restoreDelay   time.Duration
	emulateTimeout time.Duration

	emu       *emulate.Emulator
	restoring *emulate.Set
	pool      *Pool
	disp      *dispatch.Dispatcher

	mu        sync.Mutex
	defs      []trigger.Definition
	tasks     map[string]*trigger.Task
	listeners [2]listener.Listener
	running   bool
	stopped   bool
}

// New builds one task per enabled definition. Disabled definitions are
// skipped; two definitions for the same key or chord are an error.
func New(defs []trigger.Definition, opts Options) (*Manager, error) {
	if opts.Sink == nil {
		return nil, errors.New("shortcut: action sink is required")
	}
	if opts.Synth == nil {
		return nil, errors.New("shortcut: synthesizer is required")
	}
	if opts.Backend.Keyboard == nil || opts.Backend.Mouse == nil {
		return nil, errors.New("shortcut: input backend is incomplete")
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.RestoreDelay <= 0 {
		opts.RestoreDelay = DefaultRestoreDelay
	}
	if opts.EmulateTimeout <= 0 {
		opts.EmulateTimeout = DefaultEmulateTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	emu := emulate.New(opts.Synth)
	restoring := emulate.NewSet()
	m := &Manager{
		backend:        opts.Backend,
		sink:           opts.Sink,
		now:            opts.Now,
		restoreDelay:   opts.RestoreDelay,
		emulateTimeout: opts.EmulateTimeout,
		emu:            emu,
		restoring:      restoring,
		pool:           NewPool(opts.Workers, queueDepth),
		disp:           dispatch.New(emu, restoring),
		tasks:          make(map[string]*trigger.Task),
	}

	for _, def := range defs {
		if !def.Enabled {
			log.Infof("[%s] disabled, skipping", def.Key)
			continue
		}
		if err := m.addTask(def); err != nil {
			m.pool.Shutdown()
			return nil, err
		}
	}
	return m, nil
}

// identity is the order-independent key of a definition, so "alt+ctrl+h" and
// "ctrl+alt+h" count as the same trigger.
func identity(members []string) string {
	s := slices.Clone(members)
	sort.Strings(s)
	return strings.Join(s, "+")
}

func (m *Manager) findLocked(members []string) int {
	id := identity(members)
	for i, d := range m.defs {
		if identity(d.Members) == id {
			return i
		}
	}
	return -1
}

func (m *Manager) addTask(def trigger.Definition) error {
	if m.findLocked(def.Members) >= 0 {
		return fmt.Errorf("duplicate trigger %s", def.Key)
	}
	if m.backend.Consumes && !def.Suppress {
		log.Warnf("[%s] %s backend always consumes the key, treating as suppress=true", def.Key, m.backend.Name)
		def.Suppress = true
	}
	var passthrough bool
	if def.Suppress && m.backend.CanSuppress != nil {
		ok, _ := m.backend.CanSuppress(def)
		passthrough = !ok
	}
	t := trigger.NewTask(def, trigger.Options{
		Sink:        m.sink,
		Host:        m,
		Toggles:     m.backend.Toggles,
		Policy:      m.backend.Policy,
		Now:         m.now,
		Passthrough: passthrough,
	})
	if err := m.disp.Register(t); err != nil {
		return err
	}
	m.defs = append(m.defs, def)
	m.tasks[def.Key] = t
	log.Debugf("registered %s", def)
	return nil
}

func (m *Manager) classDefs(dev trigger.Device) []trigger.Definition {
	var out []trigger.Definition
	for _, d := range m.defs {
		if d.Device == dev {
			out = append(out, d)
		}
	}
	return out
}

// Start brings up a listener for each input class that has triggers. A class
// that fails is reported in a *StartError while the other keeps running.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrStopped
	}
	if m.running {
		return nil
	}

	m.warnSuppression(m.defs)
	serr := &StartError{}
	for _, dev := range []trigger.Device{trigger.Keyboard, trigger.Mouse} {
		if err := m.startClass(dev); err != nil {
			serr.set(dev, err)
		}
	}
	m.running = true
	log.SessionStart(m.backend.Name, len(m.defs))
	return serr.orNil()
}

func (m *Manager) warnSuppression(defs []trigger.Definition) {
	for _, d := range defs {
		if !d.Suppress || m.backend.CanSuppress == nil {
			continue
		}
		if ok, reason := m.backend.CanSuppress(d); !ok {
			log.Suppression(d.Key, m.backend.Name, reason)
		}
	}
}

func (m *Manager) startClass(dev trigger.Device) error {
	defs := m.classDefs(dev)
	if len(defs) == 0 {
		return nil
	}

	factory := m.backend.Keyboard
	if dev == trigger.Mouse {
		factory = m.backend.Mouse
	}
	l, err := factory(defs)
	if err == nil {
		if dev == trigger.Keyboard && m.backend.SingleKey && slices.ContainsFunc(defs, trigger.Definition.IsChord) {
			l = dispatch.NewChordListener(l, defs)
		}
		l.SetFilter(m.disp.Dispatch)
		err = l.Start()
	}
	log.ListenerStart(dev.String(), m.backend.Name, err)
	if err != nil {
		return err
	}
	m.listeners[dev] = l
	return nil
}

func (m *Manager) stopClass(dev trigger.Device) {
	if l := m.listeners[dev]; l != nil {
		l.Stop()
		m.listeners[dev] = nil
	}
}

// restartClass rebuilds only the listener serving dev.
func (m *Manager) restartClass(dev trigger.Device) error {
	m.stopClass(dev)
	if err := m.startClass(dev); err != nil {
		serr := &StartError{}
		serr.set(dev, err)
		return serr
	}
	return nil
}

// Stop releases every listener before returning, cancels captures still in
// progress and shuts the pool down without waiting for queued work. A stopped
// manager cannot be restarted.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true

	m.stopClass(trigger.Keyboard)
	m.stopClass(trigger.Mouse)
	total := 0
	for _, t := range m.tasks {
		t.Cancel()
		total += t.Activations()
	}
	m.pool.Shutdown()
	if m.running {
		log.SessionEnd(total)
	}
	m.running = false
}

// Add registers a new trigger at runtime, restarting only its input class.
func (m *Manager) Add(def trigger.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrStopped
	}
	if !def.Enabled {
		return fmt.Errorf("trigger %s is disabled", def.Key)
	}
	if err := m.addTask(def); err != nil {
		return err
	}
	if !m.running {
		return nil
	}
	m.warnSuppression([]trigger.Definition{def})
	return m.restartClass(def.Device)
}

// Remove drops the trigger for key, cancelling any capture it has in
// progress, and restarts only its input class.
func (m *Manager) Remove(key string) error {
	members, err := keymap.ParseChord(key)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrStopped
	}
	i := m.findLocked(members)
	if i < 0 {
		return fmt.Errorf("no trigger for %s", key)
	}
	def := m.defs[i]
	m.defs = slices.Delete(m.defs, i, i+1)
	delete(m.tasks, def.Key)
	if t := m.disp.Unregister(def.Key); t != nil {
		t.Cancel()
	}
	log.Debugf("removed %s", def)
	if !m.running {
		return nil
	}
	return m.restartClass(def.Device)
}

// ScheduleRestore presses a toggle key once after RestoreDelay. The key stays
// in the restoring set until its release is observed or the press has been
// sent, so the restore never reaches the trigger as a new activation.
func (m *Manager) ScheduleRestore(name string) {
	if !m.restoring.Mark(name) {
		log.Debugf("[%s] restore already pending", name)
		return
	}
	ok := m.pool.Submit(func() {
		defer m.restoring.Clear(name)
		select {
		case <-time.After(m.restoreDelay):
		case <-m.pool.Done():
			return
		}
		m.emu.EmulateKey(name)
		m.expireEmulation(name)
	})
	if !ok {
		m.restoring.Clear(name)
		log.Warnf("[%s] restore dropped: worker pool unavailable", name)
	}
}

// ScheduleReplay re-emits a suppressed press that turned out too short to
// start a capture.
func (m *Manager) ScheduleReplay(name string, mouse bool) {
	ok := m.pool.Submit(func() {
		if mouse {
			m.emu.EmulateMouseButton(name)
		} else {
			m.emu.EmulateKey(name)
		}
		m.expireEmulation(name)
	})
	if !ok {
		log.Warnf("[%s] replay dropped: worker pool unavailable", name)
	}
}

// expireEmulation clears a mark whose synthetic release the listener never
// delivered, so the user's next real press is not mistaken for ours.
func (m *Manager) expireEmulation(name string) {
	if !m.emu.IsEmulating(name) {
		return
	}
	time.AfterFunc(m.emulateTimeout, func() {
		if m.emu.ClearEmulating(name) {
			log.Debugf("[%s] synthetic release never observed, mark expired", name)
		}
	})
}

// Tasks returns the current tasks ordered by key.
func (m *Manager) Tasks() []*trigger.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*trigger.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Definition().Key < out[j].Definition().Key
	})
	return out
}

// Stats returns the dispatcher's event counters.
func (m *Manager) Stats() dispatch.Stats {
	return m.disp.Stats()
}

// Pending reports how many names are currently marked as emulating or
// restoring.
func (m *Manager) Pending() (emulating, restoring int) {
	return m.emu.Pending(), m.restoring.Len()
}
