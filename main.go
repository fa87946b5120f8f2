package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"voicekey/config"
	"voicekey/doctor"
	"voicekey/emulate"
	"voicekey/listener"
	"voicekey/log"
	"voicekey/shortcut"
	"voicekey/shutdown"
	"voicekey/trigger"
)

var version = "dev"

func run() {
	configFlag := flag.String("config", "", "TOML file with [[shortcut]] definitions (default: hold caps_lock)")
	backendFlag := flag.String("backend", "", "input backend (default: platform default, see -backends)")
	backendsFlag := flag.Bool("backends", false, "List input backends for this platform and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	debugFlag := flag.Bool("debug", false, "Write debug-level diagnostics (emulation, restores, chords)")
	doctorFlag := flag.Bool("doctor", false, "Run input diagnostics and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("voicekey %s\n", version)
		os.Exit(0)
	}
	if *backendsFlag {
		for _, name := range listener.Names() {
			fmt.Println(name)
		}
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()
	log.SetDebug(*debugFlag)

	cfg := config.Default()
	if *configFlag != "" {
		if cfg, err = config.Load(*configFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	backendName := cfg.Backend
	if *backendFlag != "" {
		backendName = *backendFlag
	}

	if *testFlag {
		runTestMode(cfg.Triggers)
		return
	}

	backend, err := listener.Detect(backendName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *doctorFlag {
		os.Exit(doctor.Run(backend, cfg.Triggers))
	}

	sink := trigger.NewChanSink()
	mgr, err := shortcut.New(cfg.Triggers, shortcut.Options{
		Backend: backend,
		Sink:    sink,
		Synth:   emulate.NewKeybd(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out := newPrinter(os.Stdout)
	out.banner(backend.Name, mgr.Tasks())
	if err := mgr.Start(); err != nil {
		var serr *shortcut.StartError
		if !errors.As(err, &serr) || !partial(serr, cfg.Triggers) {
			log.Errorf("start: %v", err)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			mgr.Stop()
			os.Exit(1)
		}
		out.warn("Warning: %v", err)
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	loop(ctx, sink, out)

	mgr.Stop()
	sink.Close()
}

// partial reports whether at least one class with triggers came up.
func partial(serr *shortcut.StartError, defs []trigger.Definition) bool {
	for _, d := range defs {
		if !d.Enabled {
			continue
		}
		if d.Device == trigger.Keyboard && serr.Keyboard == nil {
			return true
		}
		if d.Device == trigger.Mouse && serr.Mouse == nil {
			return true
		}
	}
	return false
}

// loop is the single-threaded consumer of actions. Cancellations arrive as
// the begin action's context finishing, relayed through the watches.
func loop(ctx context.Context, sink *trigger.ChanSink, out *printer) {
	ws := newWatches()
	for {
		select {
		case a, ok := <-sink.Actions():
			if !ok {
				return
			}
			switch a.Type {
			case trigger.Begin:
				ws.begin(a)
			case trigger.Finish:
				ws.finish(a.Key)
			}
			out.action(a)
		case w := <-ws.cancelled:
			ws.drop(w)
			out.cancelled(w.key)
		case <-ctx.Done():
			return
		}
	}
}

// watch follows one begin action until it finishes or is cancelled.
type watch struct {
	key  string
	stop func() bool
}

type watches struct {
	byKey     map[string]*watch
	cancelled chan *watch
}

func newWatches() *watches {
	return &watches{
		byKey:     make(map[string]*watch),
		cancelled: make(chan *watch, 16),
	}
}

func (ws *watches) begin(a trigger.Action) {
	w := &watch{key: a.Key}
	w.stop = context.AfterFunc(a.Context(), func() {
		select {
		case ws.cancelled <- w:
		case <-time.After(time.Second):
		}
	})
	ws.byKey[a.Key] = w
}

func (ws *watches) finish(key string) {
	if w := ws.byKey[key]; w != nil {
		w.stop()
		delete(ws.byKey, key)
	}
}

// drop forgets a cancelled watch unless a later activation of the same key
// has already replaced it.
func (ws *watches) drop(w *watch) {
	if ws.byKey[w.key] == w {
		delete(ws.byKey, w.key)
	}
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}
