// Package config loads engine settings from a TOML file and the
// environment.
package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"scriptvm/env"
	"scriptvm/errors"
	"scriptvm/protocol/vm"
)

// ErrBadConfig is returned for a configuration that cannot be used.
var ErrBadConfig = errors.New("bad config")

// Config is the settings of a vmrun process.
type Config struct {
	Limits      Limits      `toml:"limits"`
	Counter     string      `toml:"counter"`
	ScriptTable ScriptTable `toml:"scripttable"`
	Log         Log         `toml:"log"`
}

type Limits struct {
	MaxShift               int `toml:"max_shift"`
	MaxStackSize           int `toml:"max_stack_size"`
	MaxItemSize            int `toml:"max_item_size"`
	MaxIntegerSize         int `toml:"max_integer_size"`
	MaxArraySize           int `toml:"max_array_size"`
	MaxInvocationStackSize int `toml:"max_invocation_stack_size"`
	MaxTryNestingDepth     int `toml:"max_try_nesting_depth"`
	MaxComparableSize      int `toml:"max_comparable_size"`
}

// ScriptTable names the database external calls load scripts from.
// An empty Driver means scripts are held in memory.
type ScriptTable struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type Log struct {
	Prefix string `toml:"prefix"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	l := vm.DefaultLimits()
	return &Config{
		Limits: Limits{
			MaxShift:               l.MaxShift,
			MaxStackSize:           l.MaxStackSize,
			MaxItemSize:            l.MaxItemSize,
			MaxIntegerSize:         l.MaxIntegerSize,
			MaxArraySize:           l.MaxArraySize,
			MaxInvocationStackSize: l.MaxInvocationStackSize,
			MaxTryNestingDepth:     l.MaxTryNestingDepth,
			MaxComparableSize:      l.MaxComparableSize,
		},
		Counter: vm.TarjanCounter.String(),
	}
}

// Load reads the TOML file at path over the defaults. Keys absent
// from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, errors.Sub(ErrBadConfig, errors.Wrapf(err, "parsing %s", path))
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, errors.WithDetailf(ErrBadConfig, "%s: unknown key %s", path, undec[0])
	}
	return c, c.Validate()
}

// ApplyEnv overrides settings from SCRIPTVM_* environment variables.
func (c *Config) ApplyEnv() error {
	s := env.NewSet("SCRIPTVM_")
	s.IntVar(&c.Limits.MaxShift, "MAX_SHIFT", c.Limits.MaxShift)
	s.IntVar(&c.Limits.MaxStackSize, "MAX_STACK_SIZE", c.Limits.MaxStackSize)
	s.IntVar(&c.Limits.MaxItemSize, "MAX_ITEM_SIZE", c.Limits.MaxItemSize)
	s.IntVar(&c.Limits.MaxIntegerSize, "MAX_INTEGER_SIZE", c.Limits.MaxIntegerSize)
	s.IntVar(&c.Limits.MaxArraySize, "MAX_ARRAY_SIZE", c.Limits.MaxArraySize)
	s.IntVar(&c.Limits.MaxInvocationStackSize, "MAX_INVOCATION_STACK_SIZE", c.Limits.MaxInvocationStackSize)
	s.IntVar(&c.Limits.MaxTryNestingDepth, "MAX_TRY_NESTING_DEPTH", c.Limits.MaxTryNestingDepth)
	s.IntVar(&c.Limits.MaxComparableSize, "MAX_COMPARABLE_SIZE", c.Limits.MaxComparableSize)
	s.StringVar(&c.Counter, "COUNTER", c.Counter)
	s.StringVar(&c.ScriptTable.Driver, "DB_DRIVER", c.ScriptTable.Driver)
	s.StringVar(&c.ScriptTable.DSN, "DB_DSN", c.ScriptTable.DSN)
	s.StringVar(&c.Log.Prefix, "LOG_PREFIX", c.Log.Prefix)
	if err := s.Parse(); err != nil {
		return err
	}
	return c.Validate()
}

// Validate reports whether every limit is positive and the counter
// kind is known.
func (c *Config) Validate() error {
	l := c.Limits
	for _, f := range []struct {
		name string
		v    int
	}{
		{"max_shift", l.MaxShift},
		{"max_stack_size", l.MaxStackSize},
		{"max_item_size", l.MaxItemSize},
		{"max_integer_size", l.MaxIntegerSize},
		{"max_array_size", l.MaxArraySize},
		{"max_invocation_stack_size", l.MaxInvocationStackSize},
		{"max_try_nesting_depth", l.MaxTryNestingDepth},
		{"max_comparable_size", l.MaxComparableSize},
	} {
		if f.v <= 0 {
			return errors.WithDetailf(ErrBadConfig, "%s must be positive, got %d", f.name, f.v)
		}
	}
	if _, err := vm.ParseCounterKind(c.Counter); err != nil {
		return errors.Sub(ErrBadConfig, err)
	}
	return nil
}

// VMLimits returns the engine limits c describes.
func (c *Config) VMLimits() vm.Limits {
	l := c.Limits
	return vm.Limits{
		MaxShift:               l.MaxShift,
		MaxStackSize:           l.MaxStackSize,
		MaxItemSize:            l.MaxItemSize,
		MaxIntegerSize:         l.MaxIntegerSize,
		MaxArraySize:           l.MaxArraySize,
		MaxInvocationStackSize: l.MaxInvocationStackSize,
		MaxTryNestingDepth:     l.MaxTryNestingDepth,
		MaxComparableSize:      l.MaxComparableSize,
	}
}

// CounterKind returns the reference counter c selects.
func (c *Config) CounterKind() vm.CounterKind {
	k, _ := vm.ParseCounterKind(c.Counter)
	return k
}

// Options returns the engine options c describes.
func (c *Config) Options() []vm.Option {
	return []vm.Option{
		vm.WithLimits(c.VMLimits()),
		vm.WithReferenceCounter(c.CounterKind()),
	}
}
