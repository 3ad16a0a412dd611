package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"scriptvm/env"
	"scriptvm/errors"
	"scriptvm/protocol/vm"
	"scriptvm/testutil"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vmrun.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		testutil.FatalErr(t, err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		testutil.FatalErr(t, err)
	}
	testutil.ExpectEqual(t, c.VMLimits(), vm.DefaultLimits(), "VMLimits")
	testutil.ExpectEqual(t, c.CounterKind(), vm.TarjanCounter, "CounterKind")
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
counter = "marksweep"

[limits]
max_stack_size = 64
max_comparable_size = 100

[scripttable]
driver = "sqlite"
dsn = ":memory:"

[log]
prefix = "vmrun"
`)
	c, err := Load(path)
	if err != nil {
		testutil.FatalErr(t, err)
	}
	want := vm.DefaultLimits()
	want.MaxStackSize = 64
	want.MaxComparableSize = 100
	testutil.ExpectEqual(t, c.VMLimits(), want, "VMLimits")
	testutil.ExpectEqual(t, c.CounterKind(), vm.MarkSweepCounter, "CounterKind")
	testutil.ExpectEqual(t, c.ScriptTable, ScriptTable{Driver: "sqlite", DSN: ":memory:"}, "ScriptTable")
	testutil.ExpectEqual(t, c.Log.Prefix, "vmrun", "Log.Prefix")
	if t.Failed() {
		t.Logf("loaded config:\n%s", spew.Sdump(c))
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"syntax", "[limits"},
		{"unknown key", "[limits]\nmax_stack = 3\n"},
		{"zero limit", "[limits]\nmax_array_size = 0\n"},
		{"negative limit", "[limits]\nmax_shift = -1\n"},
		{"bad counter", `counter = "refcount"`},
	}
	for _, c := range cases {
		_, err := Load(writeConfig(t, c.body))
		if errors.Root(err) != ErrBadConfig {
			t.Errorf("%s: error %v want %v", c.name, err, ErrBadConfig)
		}
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("loading a missing file: got nil error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SCRIPTVM_MAX_ITEM_SIZE", "4096")
	t.Setenv("SCRIPTVM_COUNTER", "mark-sweep")
	t.Setenv("SCRIPTVM_DB_DRIVER", "postgres")
	t.Setenv("SCRIPTVM_DB_DSN", "postgres://localhost/vm")

	c := Default()
	if err := c.ApplyEnv(); err != nil {
		testutil.FatalErr(t, err)
	}
	testutil.ExpectEqual(t, c.Limits.MaxItemSize, 4096, "MaxItemSize")
	testutil.ExpectEqual(t, c.Limits.MaxStackSize, vm.DefaultLimits().MaxStackSize, "MaxStackSize")
	testutil.ExpectEqual(t, c.CounterKind(), vm.MarkSweepCounter, "CounterKind")
	testutil.ExpectEqual(t, c.ScriptTable.Driver, "postgres", "Driver")
	testutil.ExpectEqual(t, c.ScriptTable.DSN, "postgres://localhost/vm", "DSN")
}

func TestApplyEnvErrors(t *testing.T) {
	t.Setenv("SCRIPTVM_MAX_SHIFT", "many")
	err := Default().ApplyEnv()
	if errors.Root(err) != env.ErrBadValue {
		t.Errorf("non-numeric limit: error %v want %v", err, env.ErrBadValue)
	}

	t.Setenv("SCRIPTVM_MAX_SHIFT", "0")
	err = Default().ApplyEnv()
	if errors.Root(err) != ErrBadConfig {
		t.Errorf("zero limit: error %v want %v", err, ErrBadConfig)
	}
}

func TestOptions(t *testing.T) {
	c := Default()
	c.Limits.MaxStackSize = 4
	c.Counter = "marksweep"
	e := vm.New(c.Options()...)
	testutil.ExpectEqual(t, e.Limits().MaxStackSize, 4, "engine MaxStackSize")
	prog, err := vm.Assemble("1 1 1 1 1")
	if err != nil {
		testutil.FatalErr(t, err)
	}
	e.LoadScript(prog, -1)
	if e.Execute() != vm.FaultState {
		t.Errorf("five pushes with MaxStackSize 4: state %s", e.State())
	}
	if errors.Root(e.FaultErr()) != vm.ErrStackOverflow {
		t.Errorf("fault %v want %v", e.FaultErr(), vm.ErrStackOverflow)
	}
}
