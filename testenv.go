package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"voicekey/emulate"
	"voicekey/keymap"
	"voicekey/listener"
	"voicekey/log"
	"voicekey/shortcut"
	"voicekey/trigger"
)

// runTestMode drives the real manager from stdin through fake listeners:
//
//	KEYDOWN <name> | KEYUP <name>   deliver an input event
//	TOGGLE <name> on|off           set a lock key's state
//	SLEEP <ms>                      pause the driver
//	WAIT                            block until the next action is printed
//	QUIT                            stop and exit
//
// Actions are printed one per line as "<type> <key>", synthesized presses as
// "emulate <key>".
func runTestMode(defs []trigger.Definition) {
	kb, mouse := listener.NewFake(), listener.NewFake()
	toggles := trigger.NewFakeToggles()
	synth := &emulate.FakeSynth{}
	synth.Echo = func(name string, down bool) {
		if down {
			fmt.Printf("emulate %s\n", name)
		}
		ev := listener.Event{Name: name, Down: down}
		if keymap.IsMouse(name) {
			mouse.Send(ev)
			return
		}
		kb.Send(ev)
	}

	sink := trigger.NewChanSink()
	mgr, err := shortcut.New(defs, shortcut.Options{
		Backend: listener.FakeBackend(kb, mouse, toggles, trigger.Reliable),
		Sink:    sink,
		Synth:   synth,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := mgr.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printed := make(chan struct{}, 16)
	go func() {
		for a := range sink.Actions() {
			fmt.Printf("%s %s\n", a.Type, a.Key)
			select {
			case printed <- struct{}{}:
			default:
			}
		}
	}()

	quit := func() {
		mgr.Stop()
		sink.Close()
		log.Close()
		os.Exit(0)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		arg := ""
		if len(fields) > 1 {
			arg = keymap.Normalize(fields[1])
		}
		switch strings.ToUpper(fields[0]) {
		case "KEYDOWN", "KEYUP":
			ev := listener.Event{Name: arg, Down: strings.EqualFold(fields[0], "KEYDOWN")}
			if keymap.IsMouse(arg) {
				mouse.Send(ev)
			} else {
				kb.Send(ev)
			}
		case "TOGGLE":
			toggles.Set(arg, len(fields) > 2 && fields[2] == "on")
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "WAIT":
			select {
			case <-printed:
			case <-time.After(5 * time.Second):
				fmt.Fprintln(os.Stderr, "WAIT timed out")
			}
		case "QUIT":
			quit()
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", fields[0])
		}
	}
	quit()
}
