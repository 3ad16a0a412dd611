package vm

import (
	"strings"
	"testing"
)

func limitsWith(f func(*Limits)) []Option {
	l := DefaultLimits()
	f(&l)
	return []Option{WithLimits(l)}
}

func TestNumericOps(t *testing.T) {
	maxInt := "0x7f" + strings.Repeat("ff", 31)
	runCases(t, []opCase{
		{src: "2 3 ADD", want: ints(5)},
		{src: "1 2 SUB", want: ints(-1)},
		{src: "-4 5 MUL", want: ints(-20)},
		{src: "-7 2 DIV", want: ints(-3)},
		{src: "-7 2 MOD", want: ints(-1)},
		{src: "7 -2 MOD", want: ints(1)},
		{src: "1 0 DIV", err: ErrDivZero},
		{src: "1 0 MOD", err: ErrDivZero},
		{src: "256 4 SHR", want: ints(16)},
		{src: "1 8 SHL", want: ints(256)},
		{src: "1 257 SHL", err: ErrBadValue},
		{src: "1 -1 SHR", err: ErrBadValue},
		{src: "1 256 SHL", err: ErrIntegerTooLarge},
		{src: "-1 INVERT", want: ints(0)},
		{src: "5 INC DEC NEGATE ABS SIGN", want: ints(1)},
		{src: "0 NOT", want: list(Boolean(true))},
		{src: "3 NZ", want: list(Boolean(true))},
		{src: "1 2 LT 2 2 LTE 3 1 GT 1 3 GTE", want: list(Boolean(true), Boolean(true), Boolean(true), Boolean(false))},
		{src: "2 2 NUMEQUAL 2 3 NUMNOTEQUAL", want: list(Boolean(true), Boolean(true))},
		{src: "5 2 MIN 5 2 MAX", want: ints(2, 5)},
		{src: "2 1 5 WITHIN 5 1 5 WITHIN", want: list(Boolean(true), Boolean(false))},
		{src: "1 0 BOOLAND 1 0 BOOLOR", want: list(Boolean(false), Boolean(true))},
		{src: "6 3 AND 6 3 OR 6 3 XOR", want: ints(2, 7, 5)},
		{src: "'a' 1 ADD", want: ints(98)},
		{src: maxInt + " DEC", want: list(mustInt(maxInt[2:], -1))},
		{src: maxInt + " INC", err: ErrIntegerTooLarge},
		{src: "0x" + strings.Repeat("01", 33) + " 1 ADD", err: ErrIntegerTooLarge},
		{src: "NEWMAP 1 ADD", err: ErrInvalidType},
		{src: "ADD", err: ErrStackUnderflow},
	})
}

// mustInt decodes a big-endian hex integer and adds delta.
func mustInt(h string, delta int64) StackItem {
	x := AsBigInt(mustDecodeHex(h))
	x.Add(x, bigInt(int(delta)))
	return NewInteger(x)
}

func TestEqualOp(t *testing.T) {
	runCases(t, []opCase{
		{src: "1 1 EQUAL", want: list(Boolean(true))},
		{src: "'a' 'a' EQUAL", want: list(Boolean(true))},
		{src: "1 0x01 EQUAL", want: list(Boolean(true))},
		{src: "1 0x0001 EQUAL", want: list(Boolean(false))},
		{src: "0 NEWSTRUCT 0 NEWSTRUCT EQUAL", want: list(Boolean(true))},
		{src: "0 NEWARRAY 0 NEWARRAY EQUAL", want: list(Boolean(false))},
		{src: "0 NEWARRAY DUP EQUAL", want: list(Boolean(true))},
		{src: "PUSHNULL PUSHNULL EQUAL", want: list(Boolean(true))},
		{
			src:  "3 NEWSTRUCT 3 NEWSTRUCT EQUAL",
			opts: limitsWith(func(l *Limits) { l.MaxComparableSize = 3 }),
			err:  ErrItemTooLarge,
		},
	})
}

func TestSpliceOps(t *testing.T) {
	runCases(t, []opCase{
		{src: "'ab' 'cd' CAT", want: list(ByteString("abcd"))},
		{src: "'abcdef' 1 3 SUBSTR", want: list(ByteString("bcd"))},
		{src: "'abc' 3 0 SUBSTR", want: list(ByteString{})},
		{src: "'abc' 2 2 SUBSTR", err: ErrBadIndex},
		{src: "'abc' 2 LEFT", want: list(ByteString("ab"))},
		{src: "'abc' 4 LEFT", err: ErrBadIndex},
		{src: "'abc' -1 LEFT", err: ErrBadIndex},
		{src: "'abc' 2 RIGHT", want: list(ByteString("bc"))},
		{src: "'abc' 4 RIGHT", err: ErrBadIndex},
		{src: "'abc' SIZE", want: ints(3)},
		{src: "1 2 2 PACK SIZE", err: ErrInvalidType},
		{
			src:  "'abc' 'de' CAT",
			opts: limitsWith(func(l *Limits) { l.MaxItemSize = 4 }),
			err:  ErrItemTooLarge,
		},
	})
}

func TestStackOps(t *testing.T) {
	runCases(t, []opCase{
		{src: "1 2 3 ROT", want: ints(2, 3, 1)},
		{src: "1 2 SWAP", want: ints(2, 1)},
		{src: "1 2 TUCK", want: ints(2, 1, 2)},
		{src: "1 TUCK", err: ErrStackUnderflow},
		{src: "1 2 OVER", want: ints(1, 2, 1)},
		{src: "1 2 NIP", want: ints(2)},
		{src: "1 DUP", want: ints(1, 1)},
		{src: "1 2 3 2 PICK", want: ints(1, 2, 3, 1)},
		{src: "1 2 3 2 ROLL", want: ints(2, 3, 1)},
		{src: "1 2 3 0 ROLL", want: ints(1, 2, 3)},
		{src: "1 2 3 2 XDROP", want: ints(2, 3)},
		{src: "1 2 3 2 XSWAP", want: ints(3, 2, 1)},
		{src: "1 2 3 2 XTUCK", want: ints(1, 3, 2, 3)},
		{src: "1 2 0 XTUCK", err: ErrBadIndex},
		{src: "1 2 DEPTH", want: ints(1, 2, 2)},
		{src: "DROP", err: ErrStackUnderflow},
		{src: "1 5 PICK", err: ErrStackUnderflow},
		{src: "1 -1 PICK", err: ErrBadIndex},
		{src: "1 TOALTSTACK 2 DUPFROMALTSTACK FROMALTSTACK", want: ints(2, 1, 1)},
		{src: "FROMALTSTACK", err: ErrAltStackUnderflow},
		{src: "DUPFROMALTSTACK", err: ErrAltStackUnderflow},
	})
}

func TestContainerOps(t *testing.T) {
	runCases(t, []opCase{
		{src: "3 NEWARRAY", want: list(NewArray(nil, list(Null{}, Null{}, Null{})))},
		{src: "2 NEWSTRUCT", want: list(NewStruct(nil, list(Null{}, Null{})))},
		{src: "1 2 3 3 PACK", want: list(NewArray(nil, ints(3, 2, 1)))},
		{src: "1 2 3 3 PACK UNPACK", want: ints(1, 2, 3, 3)},
		{src: "1 2 PACK", err: ErrStackUnderflow},
		{src: "NEWMAP DUP 'k' 5 SETITEM 'k' PICKITEM", want: ints(5)},
		{src: "NEWMAP DUP 'k' 5 SETITEM KEYS", want: list(NewArray(nil, list(ByteString("k"))))},
		{src: "NEWMAP DUP 'k' 5 SETITEM VALUES", want: list(NewArray(nil, ints(5)))},
		{src: "NEWMAP DUP 'k' 5 SETITEM 'k' HASKEY", want: list(Boolean(true))},
		{src: "NEWMAP DUP 'k' 5 SETITEM DUP 'k' REMOVE 'k' HASKEY", want: list(Boolean(false))},
		{src: "NEWMAP 'k' PICKITEM", err: ErrBadIndex},
		{src: "NEWMAP 0 NEWARRAY 1 SETITEM", err: ErrBadMapKey},
		{src: "NEWMAP DUP 'a' 1 SETITEM DUP 'b' 2 SETITEM UNPACK", want: list(NewInt64(2), ByteString("b"), NewInt64(1), ByteString("a"), NewInt64(2))},
		{src: "0 NEWARRAY DUP 7 APPEND", want: list(NewArray(nil, ints(7)))},
		{src: "2 NEWARRAY DUP 1 9 SETITEM", want: list(NewArray(nil, list(Null{}, NewInt64(9))))},
		{src: "2 NEWARRAY 2 PICKITEM", err: ErrBadIndex},
		{src: "'abc' 1 PICKITEM", want: ints(98)},
		{src: "'abc' 3 PICKITEM", err: ErrBadIndex},
		{src: "1 2 2 PACK DUP REVERSE", want: list(NewArray(nil, ints(1, 2)))},
		{src: "1 2 2 PACK DUP 0 REMOVE", want: list(NewArray(nil, ints(1)))},
		{src: "1 2 2 PACK 1 HASKEY 1 2 2 PACK 2 HASKEY", want: list(Boolean(true), Boolean(false))},
		{src: "1 2 2 PACK ARRAYSIZE 'abc' ARRAYSIZE", want: ints(2, 3)},
		{src: "1 2 2 PACK VALUES", want: list(NewArray(nil, ints(2, 1)))},
		{src: "1 2 2 PACK DUP CLEARITEMS", want: list(NewArray(nil, nil))},
		{src: "3 NEWBUFFER DUP 0 255 SETITEM", want: list(NewBuffer(nil, []byte{0xff, 0, 0}))},
		{src: "2 NEWBUFFER DUP 1 -1 SETITEM DUP REVERSE", want: list(NewBuffer(nil, []byte{0xff, 0}))},
		{src: "1 NEWBUFFER 0 256 SETITEM", err: ErrBadValue},
		{src: "1 NEWBUFFER 1 0 SETITEM", err: ErrBadIndex},
		{src: "1 KEYS", err: ErrInvalidType},
		{src: "1 2 APPEND", err: ErrInvalidType},
		{
			// the struct stored in the array is a copy
			src:  "0 NEWSTRUCT DUP 1 APPEND 0 NEWARRAY DUP 2 PICK APPEND SWAP 2 APPEND",
			want: list(NewArray(nil, list(NewStruct(nil, ints(1))))),
		},
		{
			src:  "0 NEWARRAY DUP 1 APPEND DUP 2 APPEND",
			opts: limitsWith(func(l *Limits) { l.MaxArraySize = 1 }),
			err:  ErrArrayTooLarge,
		},
		{
			src:  "NEWMAP DUP 'a' 1 SETITEM DUP 'a' 2 SETITEM DUP 'b' 3 SETITEM",
			opts: limitsWith(func(l *Limits) { l.MaxArraySize = 1 }),
			err:  ErrArrayTooLarge,
		},
		{
			src:  "1 2 3 3 PACK",
			opts: limitsWith(func(l *Limits) { l.MaxArraySize = 2 }),
			err:  ErrArrayTooLarge,
		},
	})
}

func TestTypeOps(t *testing.T) {
	runCases(t, []opCase{
		{src: "PUSHNULL ISNULL 1 ISNULL", want: list(Boolean(true), Boolean(false))},
		{src: "1 ISTYPE 0x21 'a' ISTYPE 0x21", want: list(Boolean(true), Boolean(false))},
		{src: "1 ISTYPE 0x00", err: ErrBadValue},
		{src: "1 ISTYPE 0x99", err: ErrBadValue},
		{src: "1 CONVERT 0x28", want: list(ByteString{1})},
		{src: "0x0001 CONVERT 0x21", want: ints(1)},
		{src: "1 CONVERT 0x20", want: list(Boolean(true))},
		{src: "'ab' CONVERT 0x30", want: list(NewBuffer(nil, []byte("ab")))},
		{src: "'ab' CONVERT 0x30 CONVERT 0x28", want: list(ByteString("ab"))},
		{src: "1 2 2 PACK CONVERT 0x41", want: list(NewStruct(nil, ints(2, 1)))},
		{src: "PUSHNULL CONVERT 0x21", err: ErrInvalidType},
		{src: "NEWMAP CONVERT 0x40", err: ErrInvalidType},
		{src: "0x" + strings.Repeat("01", 33) + " CONVERT 0x21", err: ErrIntegerTooLarge},
	})
}

func TestSlotOps(t *testing.T) {
	runCases(t, []opCase{
		{src: "7 INITSLOT 1 1 LDARG 0 STLOC 0 LDLOC 0 LDLOC 0 ADD", want: ints(14)},
		{src: "1 2 INITSLOT 0 2 LDARG 0 LDARG 1", want: ints(2, 1)},
		{src: "INITSLOT 1 0 LDLOC 0", want: list(Null{})},
		{src: "INITSSLOT 1 5 STSFLD 0 CALL 4 RET LDSFLD 0 RET", want: ints(5)},
		{src: "LDLOC 0", err: ErrBadSlot},
		{src: "INITSLOT 1 0 LDLOC 1", err: ErrBadSlot},
		{src: "INITSLOT 0 0", err: ErrBadSlot},
		{src: "INITSSLOT 1 INITSSLOT 1", err: ErrBadSlot},
		{src: "INITSLOT 0 1", err: ErrStackUnderflow},
	})
}

func TestCryptoOps(t *testing.T) {
	withMsg := []Option{WithCrypto(echoCrypto{}), WithCheckedMessage([]byte("m"))}
	runCases(t, []opCase{
		{src: "'k' 'k' CHECKSIG", opts: withMsg, want: list(Boolean(true))},
		{src: "'s' 'k' CHECKSIG", opts: withMsg, want: list(Boolean(false))},
		{src: "'k' 'k' CHECKSIG", opts: []Option{WithCrypto(echoCrypto{})}, err: ErrNoCheckedMessage},
		{src: "'m' 'k' 'k' VERIFY", opts: withMsg, want: list(Boolean(true))},
		{src: "'a' 'b' 2 'a' 'b' 'c' 3 CHECKMULTISIG", opts: withMsg, want: list(Boolean(true))},
		{src: "'b' 'a' 2 'a' 'b' 'c' 3 CHECKMULTISIG", opts: withMsg, want: list(Boolean(false))},
		{src: "'a' 'b' 2 PACK 'a' 'b' 2 PACK CHECKMULTISIG", opts: withMsg, want: list(Boolean(true))},
		{src: "'a' 'b' 'c' 3 'a' 'b' 2 CHECKMULTISIG", opts: withMsg, err: ErrBadValue},
		{src: "'ab' HASH160 SIZE 'ab' HASH256 SIZE", want: ints(20, 32)},
	})
}
