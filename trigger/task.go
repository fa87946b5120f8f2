package trigger

import (
	"sync"
	"time"

	"voicekey/log"
)

// Host is the narrow set of manager capabilities a task may call back into.
// Both methods hand work to the manager's pool and return immediately.
type Host interface {
	// ScheduleRestore presses a toggle key once, off the hook thread.
	ScheduleRestore(name string)
	// ScheduleReplay re-emits a suppressed key or button press.
	ScheduleReplay(name string, mouse bool)
}

// ToggleReader reads the live on/off state of a lock key.
type ToggleReader interface {
	Toggled(name string) (bool, error)
}

// Policy says how far the input backend's suppression can be trusted for
// toggle keys.
type Policy int

const (
	// Reliable backends swallow suppressed events, so the lock state only
	// changes when suppression is off.
	Reliable Policy = iota
	// Unreliable backends may let a suppressed press through; the live state
	// is read back after every activation.
	Unreliable
)

func (p Policy) String() string {
	if p == Unreliable {
		return "unreliable"
	}
	return "reliable"
}

type State int

const (
	Idle State = iota
	Armed
)

func (s State) String() string {
	if s == Armed {
		return "armed"
	}
	return "idle"
}

// Outcome is how an armed activation resolved.
type Outcome int

const (
	Finished Outcome = iota
	Cancelled
)

func (o Outcome) String() string {
	if o == Cancelled {
		return "cancelled"
	}
	return "finished"
}

// Options wires a task to the rest of the system.
type Options struct {
	Sink    Sink
	Host    Host
	Toggles ToggleReader
	Policy  Policy
	Now     func() time.Time

	// Passthrough is set when the backend cannot swallow this trigger's
	// events, so a suppressed press still reached the OS.
	Passthrough bool
}

// Task is the runtime state machine of one trigger definition.
type Task struct {
	def     Definition
	sink    Sink
	host    Host
	toggles ToggleReader
	policy  Policy
	now     func() time.Time

	// passthrough: events reach the OS whatever def.Suppress says.
	passthrough bool

	mu        sync.Mutex
	recording bool
	startedAt time.Time
	pressed   bool
	released  bool
	capture   Capture
	snapshot  *bool
	count     int
}

func NewTask(def Definition, opts Options) *Task {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Task{
		def:         def,
		sink:        opts.Sink,
		host:        opts.Host,
		toggles:     opts.Toggles,
		policy:      opts.Policy,
		now:         now,
		passthrough: opts.Passthrough,
		released:    true,
	}
}

func (t *Task) Definition() Definition {
	return t.def
}

// Recording reports whether a capture is outstanding.
func (t *Task) Recording() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recording
}

func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.recording {
		return Armed
	}
	return Idle
}

// Activations returns how many captures this task has begun.
func (t *Task) Activations() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Down handles a genuine press.
func (t *Task) Down() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.recording {
		t.launch()
		if t.def.Kind == Click {
			t.pressed = true
			t.released = false
		}
		return
	}

	// Auto-repeat while held, or a click-mode press before the first
	// release was seen.
	if t.def.Kind == Hold || !t.released {
		return
	}

	// Second click ends the capture.
	t.pressed = true
	t.released = false
	t.finish()
}

// Up handles a genuine release.
func (t *Task) Up() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.def.Kind == Click {
		if t.pressed {
			t.pressed = false
			t.released = true
		}
		return
	}

	if !t.recording {
		return
	}

	held := t.now().Sub(t.startedAt)
	log.Debugf("[%s] released after %.3fs", t.def.Key, held.Seconds())
	if held < t.def.Threshold {
		t.cancel()
		return
	}
	t.finish()
}

// Cancel aborts an outstanding capture without emitting finish. It is a no-op
// when idle.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.recording {
		t.abort()
		t.pressed = false
		t.released = true
	}
}

func (t *Task) launch() {
	if t.def.IsToggle() && t.policy == Unreliable && t.toggles != nil {
		if on, err := t.toggles.Toggled(t.def.Key); err == nil {
			t.snapshot = &on
		} else {
			t.snapshot = nil
			log.Debugf("[%s] toggle state unreadable at press: %v", t.def.Key, err)
		}
	}

	t.startedAt = t.now()
	t.recording = true
	t.count++
	log.Action(string(Begin), t.def.Key, t.startedAt, 0)
	t.capture = t.sink.Begin(Action{Type: Begin, Key: t.def.Key, Time: t.startedAt})
}

func (t *Task) finish() {
	at := t.now()
	t.recording = false
	log.Action(string(Finish), t.def.Key, at, at.Sub(t.startedAt))
	t.sink.Finish(Action{Type: Finish, Key: t.def.Key, Time: at})
	t.capture = nil
	t.resolve(Finished)
}

// cancel resolves a too-short hold: the capture is dropped and, if the press
// was suppressed, the press is replayed so the key still does what the user
// pressed it for.
func (t *Task) cancel() {
	t.abort()
	if t.def.IsToggle() {
		t.resolve(Cancelled)
		return
	}
	if t.suppressed() && t.host != nil {
		log.Debugf("[%s] short press, replaying suppressed key", t.def.Key)
		t.host.ScheduleReplay(t.def.Key, t.def.Device == Mouse)
	}
}

func (t *Task) abort() {
	t.recording = false
	log.Action("cancel", t.def.Key, t.now(), 0)
	if t.capture != nil {
		t.capture.Cancel()
		t.capture = nil
	}
}

// resolve decides whether a toggle key needs one synthetic press to leave the
// lock where the user expects it. A suppressed short press should still
// toggle once; every other activation should leave the lock untouched.
func (t *Task) resolve(outcome Outcome) {
	if !t.def.IsToggle() || t.host == nil {
		return
	}
	want := t.wantChanged(outcome)
	restore, reason := t.decide(want)
	log.Restore(t.def.Key, restore, reason)
	t.snapshot = nil
	if restore {
		t.host.ScheduleRestore(t.def.Key)
	}
}

// suppressed reports whether the press was actually kept from the OS.
func (t *Task) suppressed() bool {
	return t.def.Suppress && !t.passthrough
}

func (t *Task) wantChanged(outcome Outcome) bool {
	return outcome == Cancelled && t.def.Suppress
}

func (t *Task) decide(wantChanged bool) (bool, string) {
	if t.policy == Reliable {
		changed := !t.suppressed()
		if changed == wantChanged {
			return false, "state as expected"
		}
		if wantChanged {
			return true, "replay suppressed press"
		}
		return true, "unsuppressed press toggled lock"
	}

	if t.snapshot == nil || t.toggles == nil {
		return true, "press-time state unknown"
	}
	now, err := t.toggles.Toggled(t.def.Key)
	if err != nil {
		return true, "live state unreadable"
	}
	changed := now != *t.snapshot
	if changed == wantChanged {
		return false, "state as expected"
	}
	return true, "live state differs"
}
