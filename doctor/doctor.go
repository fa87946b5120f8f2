package doctor

import (
	"fmt"
	"os"
	"time"

	"voicekey/emulate"
	"voicekey/listener"
	"voicekey/shortcut"
	"voicekey/shutdown"
	"voicekey/trigger"
)

const pressTimeout = 10 * time.Second

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted")
		os.Exit(1)
	}()
}

// Run executes interactive diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(backend listener.Backend, defs []trigger.Definition) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("voicekey doctor - interactive input diagnostics")
	fmt.Println("===============================================")

	allPass := checkBackend(backend)
	if allPass && !checkTrigger(backend, defs) {
		allPass = false
	}
	if !checkSynthesis() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkBackend(backend listener.Backend) bool {
	fmt.Println()
	fmt.Printf("[1/3] Input backend (%s)\n", backend.Name)

	info, err := listener.Diagnose()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: %s\n", info)
	fmt.Printf("  toggle keys: %s policy\n", backend.Policy)
	return true
}

func firstEnabled(defs []trigger.Definition) (trigger.Definition, bool) {
	for _, d := range defs {
		if d.Enabled {
			return d, true
		}
	}
	return trigger.Definition{}, false
}

// checkTrigger runs a real manager with only the first trigger and waits for
// the user to press it.
func checkTrigger(backend listener.Backend, defs []trigger.Definition) bool {
	fmt.Println()
	fmt.Println("[2/3] Trigger detection")

	def, ok := firstEnabled(defs)
	if !ok {
		fmt.Println("  FAIL: no enabled trigger configured")
		return false
	}
	// Suppression off so the check never eats the user's key.
	def.Suppress = false
	fmt.Printf("Press %s...\n", def.Key)

	sink := trigger.NewChanSink()
	defer sink.Close()
	mgr, err := shortcut.New([]trigger.Definition{def}, shortcut.Options{
		Backend: backend,
		Sink:    sink,
		Synth:   &emulate.FakeSynth{},
	})
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	defer mgr.Stop()
	if err := mgr.Start(); err != nil {
		fmt.Printf("  FAIL: could not start listener: %v\n", err)
		return false
	}

	select {
	case a := <-sink.Actions():
		fmt.Printf("  PASS: %s detected\n", a.Key)
		resetTerminal()
		return true
	case <-time.After(pressTimeout):
		fmt.Println("  FAIL: timeout waiting for trigger")
		return false
	}
}

func checkSynthesis() bool {
	fmt.Println()
	fmt.Println("[3/3] Key synthesis (replay and lock restore)")

	if err := emulate.NewKeybd().Init(); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		fmt.Println("  Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		return false
	}
	fmt.Println("  PASS: virtual keyboard ready")
	return true
}
