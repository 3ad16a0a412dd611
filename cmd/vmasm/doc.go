/*
Command vmasm converts between script assembly and bytecode.

Usage:

	vmasm [-d] [-x]

Without flags, vmasm reads assembly source from stdin
and writes the bytecode, hex-encoded, to stdout.

Flag -d disassembles.
In this mode, vmasm reads hex-encoded bytecode from stdin,
ignoring surrounding white space,
and writes one mnemonic per instruction,
each followed by its operand in hex if it has one.

Flag -x prints the script hash on a second line.

Exit code 0 indicates success.
Exit code 1 indicates input that does not assemble or decode.
Exit code 2 indicates a usage or I/O error.
*/
package main
