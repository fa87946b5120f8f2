// Package config loads trigger definitions from a TOML file.
//
//	threshold = 0.3
//
//	[[shortcut]]
//	key = "caps_lock"
//	hold_mode = true
//	suppress = true
//
//	[[shortcut]]
//	key = "x2"
//	type = "mouse"
//	hold_mode = false
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"voicekey/trigger"
)

// Shortcut is one [[shortcut]] table. Pointer fields distinguish unset from
// false.
type Shortcut struct {
	Key       string   `toml:"key"`
	Type      string   `toml:"type"`
	HoldMode  *bool    `toml:"hold_mode"`
	Suppress  bool     `toml:"suppress"`
	Threshold *float64 `toml:"threshold"`
	Enabled   *bool    `toml:"enabled"`
}

type File struct {
	// Threshold is the default minimum hold in seconds.
	Threshold float64    `toml:"threshold"`
	Backend   string     `toml:"backend"`
	Shortcut  []Shortcut `toml:"shortcut"`
}

// Config is the validated result.
type Config struct {
	Backend  string
	Triggers []trigger.Definition
}

// Default is used when no file is given: hold caps lock to talk.
func Default() *Config {
	d, _ := trigger.NewDefinition("caps_lock", trigger.Hold, true, trigger.DefaultThreshold)
	return &Config{Triggers: []trigger.Definition{d}}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Parse(data string) (*Config, error) {
	var f File
	md, err := toml.Decode(data, &f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("unknown config field %q", undec[0].String())
	}
	return f.Resolve()
}

// Resolve validates every shortcut and fills in defaults.
func (f *File) Resolve() (*Config, error) {
	if f.Threshold < 0 {
		return nil, fmt.Errorf("threshold must not be negative")
	}
	global := seconds(f.Threshold)
	if global == 0 {
		global = trigger.DefaultThreshold
	}
	if len(f.Shortcut) == 0 {
		return nil, errors.New("no [[shortcut]] defined")
	}

	cfg := &Config{Backend: f.Backend}
	var errs []error
	for i, s := range f.Shortcut {
		d, err := s.definition(global)
		if err != nil {
			errs = append(errs, fmt.Errorf("shortcut %d: %w", i+1, err))
			continue
		}
		cfg.Triggers = append(cfg.Triggers, d)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s Shortcut) definition(global time.Duration) (trigger.Definition, error) {
	if s.Key == "" {
		return trigger.Definition{}, errors.New("key is required")
	}
	kind := trigger.Hold
	if s.HoldMode != nil && !*s.HoldMode {
		kind = trigger.Click
	}
	threshold := global
	if s.Threshold != nil {
		if *s.Threshold <= 0 {
			return trigger.Definition{}, fmt.Errorf("%s: threshold must be positive", s.Key)
		}
		threshold = seconds(*s.Threshold)
	}

	d, err := trigger.NewDefinition(s.Key, kind, s.Suppress, threshold)
	if err != nil {
		return trigger.Definition{}, err
	}
	switch s.Type {
	case "":
	case "keyboard", "mouse":
		if s.Type != d.Device.String() {
			return trigger.Definition{}, fmt.Errorf("%s is not a %s trigger", d.Key, s.Type)
		}
	default:
		return trigger.Definition{}, fmt.Errorf("%s: unknown type %q", s.Key, s.Type)
	}
	if s.Enabled != nil {
		d.Enabled = *s.Enabled
	}
	return d, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
