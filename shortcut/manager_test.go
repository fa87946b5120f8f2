package shortcut

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"voicekey/emulate"
	"voicekey/listener"
	"voicekey/trigger"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type rig struct {
	clock   *clock
	kb      *listener.Fake
	mouse   *listener.Fake
	toggles *trigger.FakeToggles
	synth   *emulate.FakeSynth
	sink    *trigger.RecordSink
	mgr     *Manager
}

func def(t *testing.T, key string, kind trigger.Kind, suppress bool, threshold time.Duration) trigger.Definition {
	t.Helper()
	d, err := trigger.NewDefinition(key, kind, suppress, threshold)
	if err != nil {
		t.Fatalf("NewDefinition(%q): %v", key, err)
	}
	return d
}

// newRig builds a started manager on fake listeners. The synthesizer echoes
// its presses back through the keyboard or mouse fake like a real OS would.
func newRig(t *testing.T, policy trigger.Policy, defs ...trigger.Definition) *rig {
	t.Helper()
	return newRigWith(t, policy, nil, defs...)
}

// newRigWith is newRig with a hook to adjust the options before New.
func newRigWith(t *testing.T, policy trigger.Policy, tweak func(*Options), defs ...trigger.Definition) *rig {
	t.Helper()
	r := &rig{
		clock:   &clock{t: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)},
		kb:      listener.NewFake(),
		mouse:   listener.NewFake(),
		toggles: trigger.NewFakeToggles(),
		synth:   &emulate.FakeSynth{},
		sink:    &trigger.RecordSink{},
	}
	r.synth.Echo = func(name string, down bool) {
		ev := listener.Event{Name: name, Down: down}
		if name == "x1" || name == "x2" || name == "middle" {
			r.mouse.Send(ev)
			return
		}
		r.kb.Send(ev)
	}

	opts := Options{
		Backend:        listener.FakeBackend(r.kb, r.mouse, r.toggles, policy),
		Sink:           r.sink,
		Synth:          r.synth,
		RestoreDelay:   5 * time.Millisecond,
		EmulateTimeout: 20 * time.Millisecond,
		Now:            r.clock.Now,
	}
	if tweak != nil {
		tweak(&opts)
	}
	mgr, err := New(defs, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := mgr.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)
	r.mgr = mgr
	return r
}

func (r *rig) hold(key string, d time.Duration) {
	r.kb.SimKeydown(key)
	r.clock.Advance(d)
	r.kb.SimKeyup(key)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func waitIdle(t *testing.T, m *Manager) {
	t.Helper()
	waitFor(t, "emulation and restoring sets to drain", func() bool {
		e, r := m.Pending()
		return e == 0 && r == 0
	})
}

// settle gives the pool a chance to run anything that was (wrongly) queued.
func settle() {
	time.Sleep(30 * time.Millisecond)
}

func TestShortSuppressedTogglePressRestoresOnce(t *testing.T) {
	r := newRig(t, trigger.Reliable, def(t, "caps_lock", trigger.Hold, true, 500*time.Millisecond))

	r.hold("caps_lock", 200*time.Millisecond)
	waitFor(t, "restore", func() bool { return len(r.synth.Keys()) == 1 })
	waitIdle(t, r.mgr)
	settle()

	if got := r.sink.Events(); !reflect.DeepEqual(got, []string{"begin:caps_lock", "cancel:caps_lock"}) {
		t.Errorf("events = %v", got)
	}
	if got := r.synth.Keys(); !reflect.DeepEqual(got, []string{"caps_lock"}) {
		t.Errorf("synthesized = %v, want exactly one caps_lock", got)
	}
	// The echoed restore must not have started a new activation.
	if n := r.mgr.Tasks()[0].Activations(); n != 1 {
		t.Errorf("activations = %d", n)
	}
}

func TestLongSuppressedTogglePressFinishesWithoutRestore(t *testing.T) {
	r := newRig(t, trigger.Reliable, def(t, "caps_lock", trigger.Hold, true, 500*time.Millisecond))

	r.hold("caps_lock", time.Second)
	settle()

	actions := r.sink.Actions()
	if len(actions) != 2 || actions[0].Type != trigger.Begin || actions[1].Type != trigger.Finish {
		t.Fatalf("actions = %v", r.sink.Events())
	}
	if held := actions[1].Time.Sub(actions[0].Time); held != time.Second {
		t.Errorf("finish after %v, want 1s", held)
	}
	if got := r.synth.Keys(); len(got) != 0 {
		t.Errorf("unexpected restore: %v", got)
	}
}

func TestUnreliableRestoresOnlyWhenStateChanged(t *testing.T) {
	r := newRig(t, trigger.Unreliable, def(t, "num_lock", trigger.Hold, true, 500*time.Millisecond))
	r.toggles.Set("num_lock", true)

	// Suppression held: lock unchanged after a long hold.
	r.hold("num_lock", time.Second)
	settle()
	if got := r.synth.Keys(); len(got) != 0 {
		t.Fatalf("restored unchanged lock: %v", got)
	}

	// The press leaked through and flipped the lock.
	r.kb.SimKeydown("num_lock")
	r.toggles.Flip("num_lock")
	r.clock.Advance(time.Second)
	r.kb.SimKeyup("num_lock")
	waitFor(t, "restore", func() bool { return len(r.synth.Keys()) == 1 })
	waitIdle(t, r.mgr)
}

func TestUnreliableUnknownStateRestores(t *testing.T) {
	r := newRig(t, trigger.Unreliable, def(t, "scroll_lock", trigger.Hold, false, 500*time.Millisecond))

	r.hold("scroll_lock", time.Second)
	waitFor(t, "fail-safe restore", func() bool { return len(r.synth.Keys()) == 1 })
}

func TestShortSuppressedPressIsReplayed(t *testing.T) {
	r := newRig(t, trigger.Reliable, def(t, "f9", trigger.Hold, true, 300*time.Millisecond))

	r.hold("f9", 100*time.Millisecond)
	waitFor(t, "replay", func() bool { return len(r.synth.Keys()) == 1 })
	waitIdle(t, r.mgr)

	if got := r.sink.Events(); !reflect.DeepEqual(got, []string{"begin:f9", "cancel:f9"}) {
		t.Errorf("events = %v", got)
	}
	if s := r.mgr.Stats(); s.Synthetic != 2 {
		t.Errorf("echoed replay not recognized: %+v", s)
	}

	// A later real press still works.
	r.hold("f9", time.Second)
	if got := r.sink.Events(); len(got) != 4 || got[3] != "finish:f9" {
		t.Errorf("events = %v", got)
	}
}

func TestUnsuppressedShortPressIsNotReplayed(t *testing.T) {
	r := newRig(t, trigger.Reliable, def(t, "f9", trigger.Hold, false, 300*time.Millisecond))
	r.hold("f9", 100*time.Millisecond)
	settle()
	if got := r.synth.Keys(); len(got) != 0 {
		t.Errorf("unexpected replay: %v", got)
	}
}

func TestNoReplayWhenBackendCannotSuppress(t *testing.T) {
	r := newRigWith(t, trigger.Unreliable, func(o *Options) {
		o.Backend.CanSuppress = func(trigger.Definition) (bool, string) {
			return false, "events are only observed"
		}
	}, def(t, "f12", trigger.Hold, true, 300*time.Millisecond))

	r.hold("f12", 100*time.Millisecond)
	settle()

	if got := r.sink.Events(); !reflect.DeepEqual(got, []string{"begin:f12", "cancel:f12"}) {
		t.Errorf("events = %v", got)
	}
	if got := r.synth.Keys(); len(got) != 0 {
		t.Errorf("synthesized = %v, the press was never swallowed", got)
	}
}

func TestRestoreCompletesAcrossRealPress(t *testing.T) {
	r := newRigWith(t, trigger.Reliable, func(o *Options) {
		o.RestoreDelay = 150 * time.Millisecond
	}, def(t, "caps_lock", trigger.Hold, true, 500*time.Millisecond))

	r.hold("caps_lock", 100*time.Millisecond)
	if _, restoring := r.mgr.Pending(); restoring != 1 {
		t.Fatalf("restoring = %d, want a pending restore", restoring)
	}

	// A real press inside the delay window.
	r.kb.SimKeydown("caps_lock")
	r.kb.SimKeyup("caps_lock")

	waitFor(t, "restore", func() bool { return len(r.synth.Keys()) == 1 })
	waitIdle(t, r.mgr)
	settle()

	if got := r.synth.Keys(); !reflect.DeepEqual(got, []string{"caps_lock"}) {
		t.Errorf("synthesized = %v, want exactly one caps_lock", got)
	}
	if n := r.mgr.Tasks()[0].Activations(); n != 1 {
		t.Errorf("activations = %d, want 1", n)
	}
	if got := r.sink.Events(); !reflect.DeepEqual(got, []string{"begin:caps_lock", "cancel:caps_lock"}) {
		t.Errorf("events = %v", got)
	}
}

func TestMouseReplay(t *testing.T) {
	r := newRig(t, trigger.Reliable, def(t, "x1", trigger.Hold, true, 300*time.Millisecond))

	r.mouse.SimKeydown("x1")
	r.clock.Advance(50 * time.Millisecond)
	r.mouse.SimKeyup("x1")
	waitFor(t, "button replay", func() bool { return len(r.synth.Buttons()) == 1 })
	waitIdle(t, r.mgr)
}

func TestUnsupportedMouseReplayLeavesNoMark(t *testing.T) {
	r := newRig(t, trigger.Reliable, def(t, "x2", trigger.Hold, true, 300*time.Millisecond))
	r.synth.ButtonErr = emulate.ErrUnsupported

	r.mouse.SimKeydown("x2")
	r.mouse.SimKeyup("x2")
	waitFor(t, "button replay attempt", func() bool { return len(r.synth.Buttons()) == 1 })
	waitIdle(t, r.mgr)

	// The next real click is a real activation.
	r.mouse.SimKeydown("x2")
	if got := r.sink.Events(); len(got) != 3 || got[2] != "begin:x2" {
		t.Errorf("events = %v", got)
	}
}

func TestFailedReplayMarkExpires(t *testing.T) {
	r := newRig(t, trigger.Reliable, def(t, "f9", trigger.Hold, true, 300*time.Millisecond))
	r.synth.Err = errors.New("uinput gone")

	r.hold("f9", 10*time.Millisecond)
	waitFor(t, "replay attempt", func() bool { return len(r.synth.Keys()) == 1 })
	waitIdle(t, r.mgr)
}

func TestClickTriggerBeginsOnDown(t *testing.T) {
	r := newRig(t, trigger.Reliable, def(t, "f8", trigger.Click, false, 0))

	r.kb.SimKeydown("f8")
	r.kb.SimKeyup("f8")
	if got := r.sink.Events(); !reflect.DeepEqual(got, []string{"begin:f8"}) {
		t.Fatalf("events = %v", got)
	}
	r.kb.SimKeydown("f8")
	r.kb.SimKeyup("f8")
	if got := r.sink.Events(); !reflect.DeepEqual(got, []string{"begin:f8", "finish:f8"}) {
		t.Errorf("events = %v", got)
	}
}

func TestIndependentTriggers(t *testing.T) {
	r := newRig(t, trigger.Reliable,
		def(t, "f9", trigger.Hold, false, 300*time.Millisecond),
		def(t, "f10", trigger.Hold, false, 300*time.Millisecond),
	)

	var wg sync.WaitGroup
	for _, k := range []string{"f9", "f10"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.kb.SimKeydown(k)
		}()
	}
	wg.Wait()
	r.clock.Advance(100 * time.Millisecond)
	r.kb.SimKeyup("f9")
	r.clock.Advance(time.Second)
	r.kb.SimKeyup("f10")

	var f9, f10 []string
	for _, e := range r.sink.Events() {
		switch e {
		case "begin:f9", "cancel:f9", "finish:f9":
			f9 = append(f9, e)
		default:
			f10 = append(f10, e)
		}
	}
	if !reflect.DeepEqual(f9, []string{"begin:f9", "cancel:f9"}) {
		t.Errorf("f9 = %v", f9)
	}
	if !reflect.DeepEqual(f10, []string{"begin:f10", "finish:f10"}) {
		t.Errorf("f10 = %v", f10)
	}
}

func TestChordThroughSingleKeyBackend(t *testing.T) {
	r := newRig(t, trigger.Reliable, def(t, "ctrl+alt+h", trigger.Hold, false, 300*time.Millisecond))

	r.kb.SimKeydown("ctrl")
	r.kb.SimKeydown("alt")
	r.kb.SimKeydown("h")
	if got := r.sink.Events(); !reflect.DeepEqual(got, []string{"begin:ctrl+alt+h"}) {
		t.Fatalf("events = %v", got)
	}
	r.clock.Advance(time.Second)
	r.kb.SimKeyup("alt")
	r.kb.SimKeyup("h")
	r.kb.SimKeyup("ctrl")
	if got := r.sink.Events(); !reflect.DeepEqual(got, []string{"begin:ctrl+alt+h", "finish:ctrl+alt+h"}) {
		t.Errorf("events = %v", got)
	}
}

func TestDuplicateTriggerRejected(t *testing.T) {
	defs := []trigger.Definition{
		def(t, "ctrl+alt+h", trigger.Hold, false, 0),
		def(t, "alt+ctrl+h", trigger.Click, false, 0),
	}
	_, err := New(defs, Options{
		Backend: listener.FakeBackend(listener.NewFake(), nil, nil, trigger.Reliable),
		Sink:    &trigger.RecordSink{},
		Synth:   &emulate.FakeSynth{},
	})
	if err == nil {
		t.Error("expected duplicate error")
	}
}

func TestDisabledTriggerSkipped(t *testing.T) {
	off := def(t, "f7", trigger.Hold, false, 0)
	off.Enabled = false
	r := newRig(t, trigger.Reliable, off, def(t, "f8", trigger.Click, false, 0))

	if n := len(r.mgr.Tasks()); n != 1 {
		t.Fatalf("tasks = %d", n)
	}
	r.kb.SimKeydown("f7")
	if got := r.sink.Events(); len(got) != 0 {
		t.Errorf("disabled trigger fired: %v", got)
	}
}

func TestPartialStart(t *testing.T) {
	kb := listener.NewFake()
	mouse := listener.NewFake()
	mouse.StartErr = errors.New("no mouse")
	mgr, err := New(
		[]trigger.Definition{def(t, "f9", trigger.Click, false, 0), def(t, "x1", trigger.Click, false, 0)},
		Options{
			Backend: listener.FakeBackend(kb, mouse, nil, trigger.Reliable),
			Sink:    &trigger.RecordSink{},
			Synth:   &emulate.FakeSynth{},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Stop()

	err = mgr.Start()
	var serr *StartError
	if !errors.As(err, &serr) {
		t.Fatalf("Start() = %v, want *StartError", err)
	}
	if serr.Keyboard != nil || serr.Mouse == nil {
		t.Errorf("StartError = %+v", serr)
	}
	if !kb.Running() {
		t.Error("keyboard listener should keep running")
	}
}

func TestMissingClassReported(t *testing.T) {
	mgr, err := New(
		[]trigger.Definition{def(t, "middle", trigger.Click, false, 0)},
		Options{
			Backend: listener.FakeBackend(listener.NewFake(), nil, nil, trigger.Reliable),
			Sink:    &trigger.RecordSink{},
			Synth:   &emulate.FakeSynth{},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Stop()

	err = mgr.Start()
	if !errors.Is(err, listener.ErrUnsupported) {
		t.Errorf("Start() = %v, want ErrUnsupported", err)
	}
}

func TestAddRemoveRestartsOnlyAffectedClass(t *testing.T) {
	r := newRig(t, trigger.Reliable,
		def(t, "f9", trigger.Click, false, 0),
		def(t, "x1", trigger.Click, false, 0),
	)

	if err := r.mgr.Add(def(t, "f10", trigger.Click, false, 0)); err != nil {
		t.Fatal(err)
	}
	if r.kb.Starts() != 2 || r.mouse.Starts() != 1 {
		t.Errorf("kb starts=%d mouse starts=%d", r.kb.Starts(), r.mouse.Starts())
	}
	r.kb.SimKeydown("f10")
	if got := r.sink.Events(); !reflect.DeepEqual(got, []string{"begin:f10"}) {
		t.Errorf("events = %v", got)
	}

	if err := r.mgr.Remove("X1"); err != nil {
		t.Fatal(err)
	}
	if r.kb.Starts() != 2 || r.mouse.Starts() != 1 || r.mouse.Running() {
		t.Errorf("kb starts=%d mouse starts=%d running=%v", r.kb.Starts(), r.mouse.Starts(), r.mouse.Running())
	}
	if err := r.mgr.Remove("x1"); err == nil {
		t.Error("removing twice should fail")
	}
	if err := r.mgr.Add(def(t, "f9", trigger.Hold, false, 0)); err == nil {
		t.Error("adding a duplicate should fail")
	}
}

func TestRemoveCancelsCapture(t *testing.T) {
	r := newRig(t, trigger.Reliable, def(t, "f9", trigger.Click, false, 0))
	r.kb.SimKeydown("f9")
	if err := r.mgr.Remove("f9"); err != nil {
		t.Fatal(err)
	}
	if got := r.sink.Events(); !reflect.DeepEqual(got, []string{"begin:f9", "cancel:f9"}) {
		t.Errorf("events = %v", got)
	}
}

func TestStopCancelsArmedAndReleasesListeners(t *testing.T) {
	r := newRig(t, trigger.Reliable,
		def(t, "f9", trigger.Hold, false, 0),
		def(t, "x1", trigger.Hold, false, 0),
	)
	r.kb.SimKeydown("f9")

	r.mgr.Stop()
	if r.kb.Running() || r.mouse.Running() {
		t.Error("listeners still running after Stop")
	}
	if got := r.sink.Events(); !reflect.DeepEqual(got, []string{"begin:f9", "cancel:f9"}) {
		t.Errorf("events = %v", got)
	}
	if err := r.mgr.Start(); !errors.Is(err, ErrStopped) {
		t.Errorf("Start after Stop = %v", err)
	}
	if err := r.mgr.Add(def(t, "f1", trigger.Hold, false, 0)); !errors.Is(err, ErrStopped) {
		t.Errorf("Add after Stop = %v", err)
	}

	// Work scheduled after shutdown is dropped, and its mark with it.
	r.mgr.ScheduleRestore("caps_lock")
	if _, restoring := r.mgr.Pending(); restoring != 0 {
		t.Error("restore mark left behind after shutdown")
	}
}

func TestStopReturnsWhileWorkQueued(t *testing.T) {
	r := newRig(t, trigger.Reliable, def(t, "caps_lock", trigger.Hold, true, time.Second))
	r.mgr.restoreDelay = time.Hour
	r.hold("caps_lock", time.Millisecond)

	done := make(chan struct{})
	go func() {
		r.mgr.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on pending restore")
	}
}
