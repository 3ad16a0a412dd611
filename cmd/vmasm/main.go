package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"

	"scriptvm/errors"
	"scriptvm/protocol/vm"
)

var errInput = errors.New("bad input")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vmasm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	disasm := fs.Bool("d", false, "disassemble hex bytecode")
	withHash := fs.Bool("x", false, "print the script hash")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return 2
	}

	in, err := ioutil.ReadAll(stdin)
	if err != nil {
		fmt.Fprintln(stderr, "vmasm:", err)
		return 2
	}

	out, prog, err := convert(string(in), *disasm)
	if err != nil {
		fmt.Fprintln(stderr, "vmasm:", err)
		if errors.Root(err) == errInput {
			return 1
		}
		return 2
	}
	fmt.Fprintln(stdout, out)
	if *withHash {
		fmt.Fprintln(stdout, vm.NewScript(prog).Hash())
	}
	return 0
}

// convert returns the text to print for in, along with the
// bytecode it describes.
func convert(in string, disasm bool) (string, []byte, error) {
	if !disasm {
		prog, err := vm.Assemble(in)
		if err != nil {
			return "", nil, errors.Sub(errInput, errors.Wrap(err, "assembling"))
		}
		return hex.EncodeToString(prog), prog, nil
	}
	prog, err := hex.DecodeString(strings.TrimSpace(in))
	if err != nil {
		return "", nil, errors.Sub(errInput, errors.Wrap(err, "decoding hex"))
	}
	text, err := vm.Disassemble(prog)
	if err != nil {
		return "", nil, errors.Sub(errInput, errors.Wrap(err, "disassembling"))
	}
	return text, prog, nil
}
