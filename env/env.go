// Package env converts environment variables into Go values.
// It is similar in design to package flag: variables are
// declared with a name and default, then assigned by Parse.
package env

import (
	"os"
	"strconv"
	"strings"
	"time"

	"scriptvm/errors"
)

// ErrBadValue is the root of every parse failure reported by Set.Parse.
var ErrBadValue = errors.New("bad environment value")

// Set is a named group of environment variables sharing a
// common name prefix.
type Set struct {
	prefix string
	vars   []func() error

	// lookup defaults to os.LookupEnv.
	lookup func(string) (string, bool)
}

// NewSet returns an empty Set. Every variable name declared on
// the set is prefixed with prefix when looked up.
func NewSet(prefix string) *Set {
	return &Set{prefix: prefix, lookup: os.LookupEnv}
}

func (s *Set) define(name string, parse func(string) error) {
	full := s.prefix + name
	s.vars = append(s.vars, func() error {
		v, ok := s.lookup(full)
		if !ok || v == "" {
			return nil
		}
		if err := parse(v); err != nil {
			return errors.WithDetailf(ErrBadValue, "%s=%q: %s", full, v, err)
		}
		return nil
	})
}

// IntVar defines an int variable with the specified name and
// default value, stored in p.
func (s *Set) IntVar(p *int, name string, value int) {
	*p = value
	s.define(name, func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			*p = n
		}
		return err
	})
}

// BoolVar defines a bool variable parsed with strconv.ParseBool.
func (s *Set) BoolVar(p *bool, name string, value bool) {
	*p = value
	s.define(name, func(v string) error {
		b, err := strconv.ParseBool(v)
		if err == nil {
			*p = b
		}
		return err
	})
}

// StringVar defines a string variable.
func (s *Set) StringVar(p *string, name string, value string) {
	*p = value
	s.define(name, func(v string) error {
		*p = v
		return nil
	})
}

// DurationVar defines a time.Duration variable parsed with
// time.ParseDuration.
func (s *Set) DurationVar(p *time.Duration, name string, value time.Duration) {
	*p = value
	s.define(name, func(v string) error {
		d, err := time.ParseDuration(v)
		if err == nil {
			*p = d
		}
		return err
	})
}

// StringSliceVar defines a comma-separated list variable.
func (s *Set) StringSliceVar(p *[]string, name string, value ...string) {
	*p = value
	s.define(name, func(v string) error {
		*p = strings.Split(v, ",")
		return nil
	})
}

// Parse assigns every declared variable present in the
// environment. Unset and empty variables keep their current
// value. All variables are attempted; the first failure is
// returned.
func (s *Set) Parse() error {
	var first error
	for _, f := range s.vars {
		if err := f(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// CommandLine is the default set used by the package-level functions.
var CommandLine = NewSet("")

// Int returns a new int pointer.
// When Parse is called,
// env var name will be parsed
// and the resulting value
// will be assigned to the returned location.
func Int(name string, value int) *int {
	p := new(int)
	CommandLine.IntVar(p, name, value)
	return p
}

// Bool returns a new bool pointer, assigned by Parse.
func Bool(name string, value bool) *bool {
	p := new(bool)
	CommandLine.BoolVar(p, name, value)
	return p
}

// String returns a new string pointer, assigned by Parse.
func String(name string, value string) *string {
	p := new(string)
	CommandLine.StringVar(p, name, value)
	return p
}

// Duration returns a new time.Duration pointer, assigned by Parse.
func Duration(name string, value time.Duration) *time.Duration {
	p := new(time.Duration)
	CommandLine.DurationVar(p, name, value)
	return p
}

// StringSlice returns a pointer to a slice of strings,
// assigned by Parse from a comma-separated list.
func StringSlice(name string, value ...string) *[]string {
	p := new([]string)
	CommandLine.StringSliceVar(p, name, value...)
	return p
}

// Parse parses the variables declared with the package-level
// functions.
func Parse() error {
	return CommandLine.Parse()
}
