package vm

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"strings"
	"unicode"
	"unicode/utf8"

	"scriptvm/errors"
)

// ErrToken is returned by Assemble for malformed source.
var ErrToken = errors.New("invalid token")

const (
	invalidTok = iota
	mnemonicTok
	numberTok
	hexTok
	stringTok
	eofTok = -1
)

type token struct {
	typ int
	lit string
}

// Assemble translates a textual program into bytecode.
//
// Notation:
//
//	ADD         mnemonic
//	-12345      integer, pushed with the shortest encoding
//	0xaabb      hex data, pushed
//	'foo'       string data, pushed
//
// A mnemonic whose opcode takes operands is followed by them: a
// single hex token with the whole operand, or one integer per field
// (JMP 5, TRY 3 0, CALL_I 1 2 -7, INITSLOT 1 2). PUSHBYTESn and
// PUSHDATAn take hex or string data; SYSCALL takes a method name
// string or a 4-byte hex id.
func Assemble(src string) ([]byte, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	var prog []byte
	for r := 0; r < len(tokens); {
		b, n, err := parseStatement(tokens[r:])
		if err != nil {
			return nil, err
		}
		prog = append(prog, b...)
		r += n
	}
	return prog, nil
}

// operandFields lists the widths in bytes of the fixed operand
// fields of op.
func operandFields(op Op) []int {
	switch op {
	case OP_JMP, OP_JMPIF, OP_JMPIFNOT, OP_CALL, OP_ENDTRY:
		return []int{2}
	case OP_TRY:
		return []int{2, 2}
	case OP_PUSHA:
		return []int{4}
	case OP_INITSLOT, OP_CALL_ED, OP_CALL_EDT:
		return []int{1, 1}
	case OP_CALL_I:
		return []int{1, 1, 2}
	case OP_CALL_E, OP_CALL_ET:
		return []int{1, 1, 20}
	case OP_APPCALL, OP_TAILCALL:
		return []int{20}
	}
	if n := operandSize[op]; n > 0 {
		return []int{int(n)}
	}
	return nil
}

func parseStatement(tokens []token) ([]byte, int, error) {
	tok := tokens[0]
	switch tok.typ {
	case numberTok:
		x, ok := new(big.Int).SetString(tok.lit, 10)
		if !ok {
			return nil, 0, errors.WithDetailf(ErrToken, "bad number %s", tok.lit)
		}
		return pushInt(x), 1, nil
	case hexTok, stringTok:
		data, err := tokenData(tok)
		if err != nil {
			return nil, 0, err
		}
		return pushData(data), 1, nil
	case mnemonicTok:
		op, ok := OpByName(tok.lit)
		if !ok {
			return nil, 0, errors.WithDetailf(ErrToken, "bad mnemonic %s", tok.lit)
		}
		operand, n, err := parseOperand(op, tokens[1:])
		if err != nil {
			return nil, 0, errors.Wrapf(err, "%s", op)
		}
		return append([]byte{byte(op)}, operand...), n + 1, nil
	}
	return nil, 0, errors.WithDetailf(ErrToken, "unexpected %s", tok.lit)
}

func parseOperand(op Op, tokens []token) ([]byte, int, error) {
	if n := prefixSize[op]; n > 0 {
		if len(tokens) == 0 {
			return nil, 0, errors.WithDetail(ErrToken, "missing data")
		}
		data, err := tokenData(tokens[0])
		if err != nil {
			return nil, 0, err
		}
		if n < 4 && len(data) >= 1<<(8*n) {
			return nil, 0, errors.WithDetailf(ErrToken, "%d bytes exceed the length prefix", len(data))
		}
		var prefix [4]byte
		binary.LittleEndian.PutUint32(prefix[:], uint32(len(data)))
		return append(prefix[:n:n], data...), 1, nil
	}

	fields := operandFields(op)
	if len(fields) == 0 {
		return nil, 0, nil
	}
	total := 0
	for _, w := range fields {
		total += w
	}
	if len(tokens) > 0 && tokens[0].typ == hexTok {
		data, err := tokenData(tokens[0])
		if err != nil {
			return nil, 0, err
		}
		if len(data) == total {
			return data, 1, nil
		}
		if len(fields) == 1 {
			return nil, 0, errors.WithDetailf(ErrToken, "operand of %d bytes, want %d", len(data), total)
		}
	}

	var out []byte
	for i, w := range fields {
		if i >= len(tokens) {
			return nil, 0, errors.WithDetail(ErrToken, "missing operand")
		}
		tok := tokens[i]
		if tok.typ == hexTok || tok.typ == stringTok {
			data, err := tokenData(tok)
			if err != nil {
				return nil, 0, err
			}
			if len(data) != w {
				return nil, 0, errors.WithDetailf(ErrToken, "operand field of %d bytes, want %d", len(data), w)
			}
			out = append(out, data...)
			continue
		}
		if tok.typ != numberTok || w > 4 {
			return nil, 0, errors.WithDetailf(ErrToken, "bad operand %s", tok.lit)
		}
		x, ok := new(big.Int).SetString(tok.lit, 10)
		if !ok || !x.IsInt64() {
			return nil, 0, errors.WithDetailf(ErrToken, "bad operand %s", tok.lit)
		}
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(x.Int64()))
		out = append(out, buf[:w]...)
	}
	return out, len(fields), nil
}

func tokenData(tok token) ([]byte, error) {
	switch tok.typ {
	case hexTok:
		b, err := hex.DecodeString(tok.lit[2:])
		if err != nil {
			return nil, errors.WithDetailf(ErrToken, "bad hex literal %s", tok.lit)
		}
		return b, nil
	case stringTok:
		if len(tok.lit) < 2 || tok.lit[len(tok.lit)-1] != '\'' {
			return nil, errors.WithDetailf(ErrToken, "bad text literal %s", tok.lit)
		}
		return []byte(tok.lit[1 : len(tok.lit)-1]), nil
	}
	return nil, errors.WithDetailf(ErrToken, "expected data, got %s", tok.lit)
}

func pushInt(x *big.Int) []byte {
	if x.IsInt64() {
		switch n := x.Int64(); {
		case n == 0:
			return []byte{byte(OP_PUSH0)}
		case n == -1:
			return []byte{byte(OP_PUSHM1)}
		case n >= 1 && n <= 16:
			return []byte{byte(OP_PUSH1) + byte(n-1)}
		}
	}
	return pushData(BigIntBytes(x))
}

func pushData(data []byte) []byte {
	n := len(data)
	var prog []byte
	switch {
	case n == 0:
		prog = []byte{byte(OP_PUSHDATA1), 0}
	case n <= 75:
		prog = []byte{byte(n)}
	case n < 1<<8:
		prog = []byte{byte(OP_PUSHDATA1), byte(n)}
	case n < 1<<16:
		prog = []byte{byte(OP_PUSHDATA2), 0, 0}
		binary.LittleEndian.PutUint16(prog[1:], uint16(n))
	default:
		prog = []byte{byte(OP_PUSHDATA4), 0, 0, 0, 0}
		binary.LittleEndian.PutUint32(prog[1:], uint32(n))
	}
	return append(prog, data...)
}

func tokenize(src string) ([]token, error) {
	var tokens []token
	for r := 0; r < len(src); {
		typ, lit, n := scan(src[r:])
		r += n
		switch typ {
		case eofTok:
			return tokens, nil
		case invalidTok:
			return nil, errors.WithDetailf(ErrToken, "unexpected %q", lit)
		}
		tokens = append(tokens, token{typ: typ, lit: lit})
	}
	return tokens, nil
}

func scan(src string) (typ int, lit string, n int) {
	n = skipWS(src)
	if n >= len(src) {
		return eofTok, "", n
	}
	r := 0
	switch c := src[n]; {
	case strings.HasPrefix(src[n:], "0x"):
		typ = hexTok
		r = 2 + scanFunc(src[n+2:], isHex)
	case c == '\'':
		typ = stringTok
		r = scanString(src[n:])
	case c == '-' || isDigit(rune(c)):
		typ = numberTok
		r = scanNumber(src[n:])
	case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z':
		typ = mnemonicTok
		r = scanFunc(src[n:], isWordChar)
	default:
		typ = invalidTok
		r = 1
	}
	lit = src[n : n+r]
	n += r
	return typ, lit, n
}

func skipWS(s string) (i int) {
	for i < len(s) && strings.IndexByte(" \n\t\r", s[i]) >= 0 {
		i++
	}
	return i
}

func scanString(s string) int {
	for n := 1; n < len(s); n++ {
		if s[n] == '\'' {
			return n + 1
		}
	}
	return len(s)
}

func scanNumber(s string) (n int) {
	if s[0] == '-' {
		n++
		s = s[1:]
	}
	return n + scanFunc(s, isDigit)
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func isHex(r rune) bool {
	return isDigit(r) ||
		'a' <= r && r <= 'f' ||
		'A' <= r && r <= 'F'
}

func isWordChar(r rune) bool {
	return r == '_' || isDigit(r) || unicode.IsLetter(r)
}

func scanFunc(s string, f func(rune) bool) (n int) {
	for n < len(s) {
		c, r := utf8.DecodeRuneInString(s[n:])
		if !f(c) {
			break
		}
		n += r
	}
	return n
}
