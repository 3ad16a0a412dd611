// Command vmrun executes scripts on the virtual machine.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"scriptvm/config"
	"scriptvm/errors"
	"scriptvm/log"
	"scriptvm/metrics"
	"scriptvm/protocol/interop"
	"scriptvm/protocol/scripttable"
	"scriptvm/protocol/vm"
)

const help = `Usage: vmrun [flags] script...

Command vmrun assembles and executes each script and prints
the final state and result stack of each run, in argument order.
A script named - is read from stdin.

Scripts listed with -lib are stored in the script table first,
so the run scripts can reach them with APPCALL and the CALL_E
family. Their hashes are printed to stderr.

Exit code 0 indicates every run halted.
Exit code 1 indicates a run faulted.
Exit code 2 indicates a usage, configuration or I/O error.

Flags:
`

type flags struct {
	config  string
	counter string
	format  string
	lib     string
	db      string
	raw     bool
	hash    bool
	trace   bool
	stats   bool
	verbose bool
	jobs    int
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var f flags
	fs := flag.NewFlagSet("vmrun", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.config, "config", "", "TOML configuration `file`")
	fs.StringVar(&f.counter, "counter", "", "reference counter: tarjan or marksweep")
	fs.StringVar(&f.format, "format", "text", "result format: text, json or cbor")
	fs.StringVar(&f.lib, "lib", "", "comma-separated scripts to store in the script table")
	fs.StringVar(&f.db, "db", "", "script table `driver:dsn`, e.g. sqlite:scripts.db")
	fs.BoolVar(&f.raw, "raw", false, "scripts are hex bytecode, not assembly")
	fs.BoolVar(&f.hash, "hash", false, "print each script's hash before its result")
	fs.BoolVar(&f.trace, "trace", false, "print execution trace to stderr")
	fs.BoolVar(&f.stats, "stats", false, "print run statistics to stderr")
	fs.BoolVar(&f.verbose, "v", false, "log engine activity to stderr")
	fs.IntVar(&f.jobs, "j", 4, "number of scripts to run concurrently")
	fs.Usage = func() {
		fmt.Fprint(stderr, help)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	if f.format != "text" && f.format != "json" && f.format != "cbor" {
		fmt.Fprintf(stderr, "vmrun: unknown format %q\n", f.format)
		return 2
	}
	if f.jobs < 1 {
		fmt.Fprintf(stderr, "vmrun: -j must be at least 1, got %d\n", f.jobs)
		return 2
	}
	if f.trace {
		// Trace output of concurrent runs would interleave.
		f.jobs = 1
	}

	if f.verbose {
		log.SetOutput(stderr)
	} else {
		log.SetOutput(ioutil.Discard)
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintln(stderr, "vmrun:", err)
		return 2
	}
	if cfg.Log.Prefix != "" {
		log.SetPrefix("app", cfg.Log.Prefix)
	}

	table, closeTable, err := openTable(ctx, cfg)
	if err != nil {
		fmt.Fprintln(stderr, "vmrun:", err)
		return 2
	}
	defer closeTable()

	if f.lib != "" {
		for _, path := range strings.Split(f.lib, ",") {
			prog, err := readScript(path, f.raw, stdin)
			if err != nil {
				fmt.Fprintln(stderr, "vmrun:", err)
				return 2
			}
			h, err := table.Put(ctx, prog)
			if err != nil {
				fmt.Fprintln(stderr, "vmrun:", err)
				return 2
			}
			fmt.Fprintf(stderr, "%s %s\n", h, path)
		}
	}

	progs := make([][]byte, fs.NArg())
	for i, path := range fs.Args() {
		progs[i], err = readScript(path, f.raw, stdin)
		if err != nil {
			fmt.Fprintln(stderr, "vmrun:", err)
			return 2
		}
	}

	latency := metrics.NewLatency(10 * time.Second)
	results := make([]result, len(progs))
	var g errgroup.Group
	g.SetLimit(f.jobs)
	for i := range progs {
		i := i
		g.Go(func() error {
			rctx := log.AddFields(ctx, "script", fs.Arg(i))
			start := time.Now()
			results[i] = execute(rctx, cfg, table, progs[i], f.trace, stderr)
			latency.RecordSince(start)
			if n, ok := table.(invocationRecorder); ok {
				for h, count := range results[i].calls {
					if err := n.IncrementInvocations(rctx, h, count); err != nil {
						log.Error(rctx, err)
					}
				}
			}
			return nil
		})
	}
	g.Wait()

	code := 0
	for i, r := range results {
		if r.state != vm.HaltState {
			code = 1
		}
		if f.hash {
			fmt.Fprintf(stdout, "%s ", vm.NewScript(progs[i]).Hash())
		}
		if err := r.write(stdout, fs.Arg(i), f.format, cfg.VMLimits()); err != nil {
			fmt.Fprintln(stderr, "vmrun:", err)
			return 2
		}
	}

	if f.stats {
		snap := metrics.Snapshot()
		names := make([]string, 0, len(snap))
		for name := range snap {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(stderr, "%s %d\n", name, snap[name])
		}
		fmt.Fprintln(stderr, "latency", latency)
	}
	return code
}

func loadConfig(f flags) (*config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		cfg, err = config.Load(f.config)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if f.counter != "" {
		cfg.Counter = f.counter
	}
	if f.db != "" {
		driver, dsn, ok := strings.Cut(f.db, ":")
		if !ok {
			return nil, errors.WithDetailf(config.ErrBadConfig, "-db %q is not driver:dsn", f.db)
		}
		cfg.ScriptTable = config.ScriptTable{Driver: driver, DSN: dsn}
	}
	return cfg, cfg.Validate()
}

// store is a script table vmrun can also store scripts in.
type store interface {
	vm.ScriptTable
	Put(context.Context, []byte) (vm.Hash160, error)
}

type invocationRecorder interface {
	IncrementInvocations(context.Context, vm.Hash160, int) error
}

type memTable struct{ *scripttable.Memory }

func (m memTable) Put(_ context.Context, prog []byte) (vm.Hash160, error) {
	return m.Memory.Put(prog), nil
}

func openTable(ctx context.Context, cfg *config.Config) (store, func(), error) {
	if cfg.ScriptTable.Driver == "" {
		return memTable{scripttable.NewMemory()}, func() {}, nil
	}
	s, err := scripttable.Open(ctx, cfg.ScriptTable.Driver, cfg.ScriptTable.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, func() { s.Close() }, nil
}

func readScript(path string, raw bool, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = ioutil.ReadAll(stdin)
	} else {
		data, err = ioutil.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	if raw {
		prog, err := hex.DecodeString(strings.TrimSpace(string(data)))
		return prog, errors.Wrapf(err, "decoding %s", path)
	}
	prog, err := vm.Assemble(string(data))
	return prog, errors.Wrapf(err, "assembling %s", path)
}

type result struct {
	state    vm.State
	err      error
	items    []vm.StackItem
	uncaught vm.StackItem
	steps    int
	calls    map[vm.Hash160]int
}

func execute(ctx context.Context, cfg *config.Config, scripts vm.ScriptTable, prog []byte, trace bool, stderr io.Writer) result {
	opts := append(cfg.Options(),
		vm.WithContext(ctx),
		vm.WithScriptTable(scripts),
		vm.WithInterop(interop.Default(ctx)),
	)
	if trace {
		opts = append(opts, vm.TraceOp(func(op vm.Op, data []byte, e *vm.ExecutionEngine) {
			traceOp(stderr, op, data, e)
		}))
	}
	e := vm.New(opts...)
	entry := e.LoadScript(prog, -1)
	e.Execute()

	r := result{
		state:    e.State(),
		err:      e.FaultErr(),
		items:    e.ResultStack().Items(),
		uncaught: e.UncaughtException(),
		steps:    e.Steps(),
		calls:    make(map[vm.Hash160]int),
	}
	self := entry.Script.Hash()
	for _, h := range calledScripts(prog) {
		if h != self {
			if n := e.InvocationCount(h); n > 0 {
				r.calls[h] = n
			}
		}
	}
	return r
}

// calledScripts returns the hashes named by the call instructions
// of prog with an immediate operand.
func calledScripts(prog []byte) []vm.Hash160 {
	insts, err := vm.ParseProgram(prog)
	if err != nil {
		return nil
	}
	var hashes []vm.Hash160
	for _, inst := range insts {
		var h vm.Hash160
		switch inst.Op {
		case vm.OP_APPCALL, vm.OP_TAILCALL:
			copy(h[:], inst.Data)
		case vm.OP_CALL_E, vm.OP_CALL_ET:
			copy(h[:], inst.Data[2:])
		default:
			continue
		}
		if !h.IsZero() {
			hashes = append(hashes, h)
		}
	}
	return hashes
}

func (r result) write(w io.Writer, name, format string, limits vm.Limits) error {
	switch format {
	case "json":
		out := struct {
			Script   string        `json:"script"`
			State    string        `json:"state"`
			Error    string        `json:"error,omitempty"`
			Steps    int           `json:"steps"`
			Results  []interface{} `json:"results"`
			Uncaught interface{}   `json:"uncaught,omitempty"`
		}{Script: name, State: r.state.String(), Steps: r.steps, Results: []interface{}{}}
		if r.err != nil {
			out.Error = r.err.Error()
		}
		for _, item := range r.items {
			out.Results = append(out.Results, jsonValue(item, make(map[vm.StackItem]bool)))
		}
		if r.uncaught != nil {
			out.Uncaught = jsonValue(r.uncaught, make(map[vm.StackItem]bool))
		}
		b, err := json.Marshal(out)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	case "cbor":
		fields := []string{name, r.state.String()}
		for _, item := range r.items {
			b, err := interop.Serialize(item, limits)
			if err != nil {
				return errors.Wrapf(err, "%s", name)
			}
			fields = append(fields, hex.EncodeToString(b))
		}
		_, err := fmt.Fprintln(w, strings.Join(fields, " "))
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", name, r.state)
	for _, item := range r.items {
		fmt.Fprintf(&b, " %s", item)
	}
	if r.err != nil {
		fmt.Fprintf(&b, " (%s)", r.err)
	}
	if r.uncaught != nil {
		fmt.Fprintf(&b, " uncaught %s", r.uncaught)
	}
	_, err := fmt.Fprintln(w, b.String())
	return err
}

// jsonValue renders item for encoding/json. Byte strings are hex.
// A container already on the path from the root renders as "<cycle>".
func jsonValue(item vm.StackItem, path map[vm.StackItem]bool) interface{} {
	switch x := item.(type) {
	case vm.Null:
		return nil
	case vm.Boolean:
		return bool(x)
	case *vm.Integer:
		i, _ := x.Int()
		return json.Number(i.String())
	case vm.ByteString:
		return hex.EncodeToString(x)
	case *vm.Buffer:
		b, _ := x.Bytes()
		return map[string]interface{}{"buffer": hex.EncodeToString(b)}
	case *vm.Array, *vm.Struct, *vm.Map:
		if path[item] {
			return "<cycle>"
		}
		path[item] = true
		defer delete(path, item)
	}

	switch x := item.(type) {
	case *vm.Array:
		return jsonItems(x.Items(), path)
	case *vm.Struct:
		return map[string]interface{}{"struct": jsonItems(x.Items(), path)}
	case *vm.Map:
		var entries [][2]interface{}
		for i, k := range x.Keys() {
			entries = append(entries, [2]interface{}{jsonValue(k, path), jsonValue(x.Values()[i], path)})
		}
		return map[string]interface{}{"map": entries}
	}
	return item.String()
}

func jsonItems(items []vm.StackItem, path map[vm.StackItem]bool) []interface{} {
	out := []interface{}{}
	for _, it := range items {
		out = append(out, jsonValue(it, path))
	}
	return out
}

func traceOp(w io.Writer, op vm.Op, data []byte, e *vm.ExecutionEngine) {
	ctx := e.CurrentContext()
	fmt.Fprintf(w, "%s:%d %s", ctx.Script.Hash().String()[:8], ctx.IP, ctx.EvaluationStack)
	fmt.Fprintf(w, " . %s", op)
	if len(data) > 0 {
		fmt.Fprintf(w, " %x", data)
	}
	fmt.Fprintln(w)
}
