package dispatch

import (
	"reflect"
	"testing"
	"time"

	"voicekey/listener"
	"voicekey/trigger"
)

func chordDefs(t *testing.T, keys ...string) []trigger.Definition {
	t.Helper()
	var defs []trigger.Definition
	for _, k := range keys {
		def, err := trigger.NewDefinition(k, trigger.Click, false, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		defs = append(defs, def)
	}
	return defs
}

type recorder struct {
	events []string
}

func (r *recorder) filter(ev listener.Event) bool {
	r.events = append(r.events, ev.String())
	return ev.Name == "h"
}

func startChords(t *testing.T, keys ...string) (*listener.Fake, *ChordListener, *recorder) {
	t.Helper()
	fake := listener.NewFake()
	c := NewChordListener(fake, chordDefs(t, keys...))
	r := &recorder{}
	c.SetFilter(r.filter)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Stop)
	return fake, c, r
}

func chordDowns(events []string, name string) int {
	n := 0
	for _, e := range events {
		if e == name+" down" {
			n++
		}
	}
	return n
}

func TestChordFiresOnceWhenAllHeld(t *testing.T) {
	fake, c, r := startChords(t, "ctrl+alt+h")

	fake.SimKeydown("ctrl")
	fake.SimKeydown("alt")
	if c.Active("ctrl+alt+h") {
		t.Fatal("chord active before all members held")
	}
	if !fake.SimKeydown("h") {
		t.Error("raw verdict lost")
	}
	// Auto-repeat of a member does not refire.
	fake.SimKeydown("h")
	fake.SimKeydown("ctrl")

	want := []string{"ctrl down", "alt down", "h down", "ctrl+alt+h down", "h down", "ctrl down"}
	if !reflect.DeepEqual(r.events, want) {
		t.Errorf("events = %v\nwant %v", r.events, want)
	}

	fake.SimKeyup("alt")
	if c.Active("ctrl+alt+h") {
		t.Error("chord still active after release")
	}
	want = append(want, "alt up", "ctrl+alt+h up")
	if !reflect.DeepEqual(r.events, want) {
		t.Errorf("events = %v\nwant %v", r.events, want)
	}

	// Releasing the rest does not emit a second up.
	fake.SimKeyup("h")
	fake.SimKeyup("ctrl")
	if got := len(r.events); got != len(want)+2 {
		t.Errorf("extra events: %v", r.events[len(want):])
	}
}

func TestChordOrderIndependent(t *testing.T) {
	orders := [][]string{
		{"ctrl", "alt", "h"},
		{"h", "ctrl", "alt"},
		{"alt", "h", "ctrl"},
	}
	for _, order := range orders {
		fake, _, r := startChords(t, "ctrl+alt+h")
		for _, k := range order {
			fake.SimKeydown(k)
		}
		if n := chordDowns(r.events, "ctrl+alt+h"); n != 1 {
			t.Errorf("order %v: %d chord downs", order, n)
		}
		if last := r.events[len(r.events)-1]; last != "ctrl+alt+h down" {
			t.Errorf("order %v: chord fired early, last event %q", order, last)
		}
	}
}

func TestChordRefiresAfterRelease(t *testing.T) {
	fake, _, r := startChords(t, "ctrl+shift")
	for range 3 {
		fake.SimKeydown("ctrl")
		fake.SimKeydown("shift")
		fake.SimKeyup("shift")
		fake.SimKeyup("ctrl")
	}
	if n := chordDowns(r.events, "ctrl+shift"); n != 3 {
		t.Errorf("chord downs = %d, want 3", n)
	}
}

func TestChordSurvivesReleaseOfOtherSide(t *testing.T) {
	fake, c, r := startChords(t, "ctrl+h")
	const lctrl, rctrl = 0xA2, 0xA3

	fake.Send(listener.Event{Name: "ctrl", Down: true, Code: lctrl})
	fake.Send(listener.Event{Name: "ctrl", Down: true, Code: rctrl})
	fake.Send(listener.Event{Name: "h", Down: true, Code: 0x48})
	if !c.Active("ctrl+h") {
		t.Fatalf("chord not active: %v", r.events)
	}

	// Right ctrl goes up while left ctrl is still held.
	fake.Send(listener.Event{Name: "ctrl", Down: false, Code: rctrl})
	if !c.Active("ctrl+h") {
		t.Errorf("chord dropped while left ctrl held: %v", r.events)
	}

	fake.Send(listener.Event{Name: "ctrl", Down: false, Code: lctrl})
	if c.Active("ctrl+h") {
		t.Error("chord still active after both ctrl keys released")
	}
	if n := chordDowns(r.events, "ctrl+h"); n != 1 {
		t.Errorf("chord downs = %d, want 1", n)
	}
}

func TestChordStopResets(t *testing.T) {
	fake, c, r := startChords(t, "ctrl+h")
	fake.SimKeydown("ctrl")
	c.Stop()
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	fake.SimKeydown("h")
	if n := chordDowns(r.events, "ctrl+h"); n != 0 {
		t.Errorf("stale pressed state fired chord: %v", r.events)
	}
}

func TestChordThroughDispatcher(t *testing.T) {
	d, emu, _, sink := newDispatcher(t)
	defs := chordDefs(t, "ctrl+alt+h")
	d.Register(trigger.NewTask(defs[0], trigger.Options{Sink: sink, Host: nopHost{}}))

	fake := listener.NewFake()
	c := NewChordListener(fake, defs)
	c.SetFilter(d.Dispatch)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	press := func() {
		fake.SimKeydown("ctrl")
		fake.SimKeydown("alt")
		fake.SimKeydown("h")
		fake.SimKeyup("h")
		fake.SimKeyup("alt")
		fake.SimKeyup("ctrl")
	}
	press()
	press()
	if got := sink.Events(); !reflect.DeepEqual(got, []string{"begin:ctrl+alt+h", "finish:ctrl+alt+h"}) {
		t.Errorf("events = %v", got)
	}

	// A replayed chord is recognized as our own.
	emu.Mark("ctrl+alt+h")
	fake.SimKeydown("ctrl")
	fake.SimKeydown("alt")
	fake.SimKeydown("h")
	fake.SimKeyup("ctrl")
	if emu.IsEmulating("ctrl+alt+h") {
		t.Error("chord up did not clear the emulating flag")
	}
	if n := len(sink.Events()); n != 2 {
		t.Errorf("replay reached the task: %v", sink.Events())
	}
}
