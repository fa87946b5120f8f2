package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog    zerolog.Logger
	diagFile   *os.File
	actionFile *os.File
	logMu      sync.RWMutex
	logReady   bool
	pid        int
	dir        string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: VOICEKEY_LOG_PATH environment variable
	envPath := os.Getenv("VOICEKEY_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	actionPath := filepath.Join(dir, "actions_log.txt")
	actionFile, err = os.OpenFile(actionPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05.000",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

// SetOutput routes diagnostics to w as JSON lines without touching the log
// directory. Passing nil disables logging again.
func SetOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	if w == nil {
		logReady = false
		return
	}
	diagLog = zerolog.New(w).With().Timestamp().Logger()
	logReady = true
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if actionFile != nil {
		actionFile.Close()
		actionFile = nil
	}
	logReady = false
}

func logger() (*zerolog.Logger, bool) {
	logMu.RLock()
	defer logMu.RUnlock()
	if !logReady {
		return nil, false
	}
	l := diagLog
	return &l, true
}

func Debugf(format string, args ...any) {
	if l, ok := logger(); ok {
		l.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func Info(msg string) {
	if l, ok := logger(); ok {
		l.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if l, ok := logger(); ok {
		l.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if l, ok := logger(); ok {
		l.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if l, ok := logger(); ok {
		l.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if l, ok := logger(); ok {
		l.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if l, ok := logger(); ok {
		l.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// Suppression reports that a backend could not swallow an event for key.
func Suppression(key, backend, reason string) {
	l, ok := logger()
	if !ok {
		return
	}
	l.Warn().
		Str("key", key).
		Str("backend", backend).
		Str("reason", reason).
		Msg("suppress_unsupported")
}

// Emulation records a synthesized press. err is nil on success.
func Emulation(key string, err error) {
	l, ok := logger()
	if !ok {
		return
	}
	if err != nil {
		l.Warn().Str("key", key).Err(err).Msg("emulate_failed")
		return
	}
	l.Debug().Str("key", key).Msg("emulate")
}

// Restore records a toggle-key restore decision.
func Restore(key string, restore bool, reason string) {
	l, ok := logger()
	if !ok {
		return
	}
	l.Debug().
		Str("key", key).
		Bool("restore", restore).
		Str("reason", reason).
		Msg("restore_decision")
}

// Chord records a chord activation edge.
func Chord(key string, active bool) {
	l, ok := logger()
	if !ok {
		return
	}
	state := "released"
	if active {
		state = "held"
	}
	l.Debug().Str("key", key).Str("state", state).Msg("chord")
}

func ListenerStart(class, backend string, err error) {
	l, ok := logger()
	if !ok {
		return
	}
	if err != nil {
		l.Error().Str("class", class).Str("backend", backend).Err(err).Msg("listener_failed")
		return
	}
	l.Info().Str("class", class).Str("backend", backend).Msg("listener_started")
}

// Action appends one begin/finish/cancel line to actions_log.txt and mirrors
// it to the diagnostics log.
func Action(kind, key string, at time.Time, held time.Duration) {
	l, ok := logger()
	if !ok {
		return
	}
	ev := l.Info().Str("action", kind).Str("key", key)
	if held > 0 {
		ev = ev.Float64("held_s", held.Seconds())
	}
	ev.Msg("action")

	logMu.Lock()
	defer logMu.Unlock()
	if actionFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\n", at.Format("2006-01-02 15:04:05.000"), pid, kind, key)
	actionFile.WriteString(line)
}

func SessionStart(backend string, triggers int) {
	l, ok := logger()
	if !ok {
		return
	}
	l.Info().
		Str("backend", backend).
		Int("triggers", triggers).
		Msg("session_start")
}

func SessionEnd(activations int) {
	l, ok := logger()
	if !ok {
		return
	}
	l.Info().
		Int("activations", activations).
		Msg("session_end")
}

// SetDebug toggles debug-level diagnostics (emulation and restore decisions).
func SetDebug(on bool) {
	if on {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
