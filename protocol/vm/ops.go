package vm

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"scriptvm/errors"
	"scriptvm/math/checked"
)

type Op uint8

func (op Op) String() string {
	return ops[op].name
}

type Instruction struct {
	Op   Op
	Len  uint32
	Data []byte
}

func (inst Instruction) int16Operand(i int) int {
	return int(int16(binary.LittleEndian.Uint16(inst.Data[i:])))
}

const (
	OP_PUSH0       Op = 0x00
	OP_PUSHBYTES1  Op = 0x01
	OP_PUSHBYTES75 Op = 0x4b
	OP_PUSHDATA1   Op = 0x4c
	OP_PUSHDATA2   Op = 0x4d
	OP_PUSHDATA4   Op = 0x4e
	OP_PUSHM1      Op = 0x4f
	OP_PUSHNULL    Op = 0x50
	OP_PUSH1       Op = 0x51
	OP_PUSH2       Op = 0x52
	OP_PUSH3       Op = 0x53
	OP_PUSH4       Op = 0x54
	OP_PUSH5       Op = 0x55
	OP_PUSH6       Op = 0x56
	OP_PUSH7       Op = 0x57
	OP_PUSH8       Op = 0x58
	OP_PUSH9       Op = 0x59
	OP_PUSH10      Op = 0x5a
	OP_PUSH11      Op = 0x5b
	OP_PUSH12      Op = 0x5c
	OP_PUSH13      Op = 0x5d
	OP_PUSH14      Op = 0x5e
	OP_PUSH15      Op = 0x5f
	OP_PUSH16      Op = 0x60

	OP_NOP      Op = 0x61
	OP_JMP      Op = 0x62
	OP_JMPIF    Op = 0x63
	OP_JMPIFNOT Op = 0x64
	OP_CALL     Op = 0x65
	OP_RET      Op = 0x66
	OP_APPCALL  Op = 0x67
	OP_SYSCALL  Op = 0x68
	OP_TAILCALL Op = 0x69

	OP_DUPFROMALTSTACK Op = 0x6a
	OP_TOALTSTACK      Op = 0x6b
	OP_FROMALTSTACK    Op = 0x6c
	OP_XDROP           Op = 0x6d
	OP_XSWAP           Op = 0x72
	OP_XTUCK           Op = 0x73
	OP_DEPTH           Op = 0x74
	OP_DROP            Op = 0x75
	OP_DUP             Op = 0x76
	OP_NIP             Op = 0x77
	OP_OVER            Op = 0x78
	OP_PICK            Op = 0x79
	OP_ROLL            Op = 0x7a
	OP_ROT             Op = 0x7b
	OP_SWAP            Op = 0x7c
	OP_TUCK            Op = 0x7d

	OP_CAT    Op = 0x7e
	OP_SUBSTR Op = 0x7f
	OP_LEFT   Op = 0x80
	OP_RIGHT  Op = 0x81
	OP_SIZE   Op = 0x82

	OP_INVERT Op = 0x83
	OP_AND    Op = 0x84
	OP_OR     Op = 0x85
	OP_XOR    Op = 0x86
	OP_EQUAL  Op = 0x87

	OP_INC         Op = 0x8b
	OP_DEC         Op = 0x8c
	OP_SIGN        Op = 0x8d
	OP_NEGATE      Op = 0x8f
	OP_ABS         Op = 0x90
	OP_NOT         Op = 0x91
	OP_NZ          Op = 0x92
	OP_ADD         Op = 0x93
	OP_SUB         Op = 0x94
	OP_MUL         Op = 0x95
	OP_DIV         Op = 0x96
	OP_MOD         Op = 0x97
	OP_SHL         Op = 0x98
	OP_SHR         Op = 0x99
	OP_BOOLAND     Op = 0x9a
	OP_BOOLOR      Op = 0x9b
	OP_NUMEQUAL    Op = 0x9c
	OP_NUMNOTEQUAL Op = 0x9e
	OP_LT          Op = 0x9f
	OP_GT          Op = 0xa0
	OP_LTE         Op = 0xa1
	OP_GTE         Op = 0xa2
	OP_MIN         Op = 0xa3
	OP_MAX         Op = 0xa4
	OP_WITHIN      Op = 0xa5

	OP_HASH160       Op = 0xa9
	OP_HASH256       Op = 0xaa
	OP_CHECKSIG      Op = 0xac
	OP_VERIFY        Op = 0xad
	OP_CHECKMULTISIG Op = 0xae

	OP_ARRAYSIZE  Op = 0xc0
	OP_PACK       Op = 0xc1
	OP_UNPACK     Op = 0xc2
	OP_PICKITEM   Op = 0xc3
	OP_SETITEM    Op = 0xc4
	OP_NEWARRAY   Op = 0xc5
	OP_NEWSTRUCT  Op = 0xc6
	OP_NEWMAP     Op = 0xc7
	OP_APPEND     Op = 0xc8
	OP_REVERSE    Op = 0xc9
	OP_REMOVE     Op = 0xca
	OP_HASKEY     Op = 0xcb
	OP_KEYS       Op = 0xcc
	OP_VALUES     Op = 0xcd
	OP_CLEARITEMS Op = 0xce
	OP_NEWBUFFER  Op = 0xcf

	OP_INITSSLOT Op = 0xd0
	OP_INITSLOT  Op = 0xd1
	OP_LDSFLD    Op = 0xd2
	OP_STSFLD    Op = 0xd3
	OP_LDLOC     Op = 0xd4
	OP_STLOC     Op = 0xd5
	OP_LDARG     Op = 0xd6
	OP_STARG     Op = 0xd7

	OP_ISNULL  Op = 0xd8
	OP_ISTYPE  Op = 0xd9
	OP_CONVERT Op = 0xda

	OP_CALL_I   Op = 0xe0
	OP_CALL_E   Op = 0xe1
	OP_CALL_ED  Op = 0xe2
	OP_CALL_ET  Op = 0xe3
	OP_CALL_EDT Op = 0xe4
	OP_PUSHA    Op = 0xe5
	OP_CALLA    Op = 0xe6

	OP_THROW      Op = 0xf0
	OP_THROWIFNOT Op = 0xf1
	OP_TRY        Op = 0xf2
	OP_ENDTRY     Op = 0xf3
	OP_ENDFINALLY Op = 0xf4
)

type opInfo struct {
	op   Op
	name string
	fn   func(*ExecutionEngine) error
}

var (
	ops = [256]opInfo{
		// data pushing
		OP_PUSH0: {OP_PUSH0, "PUSH0", opPushSmallInt},

		// sic: the PUSHDATA ops all share an implementation
		OP_PUSHDATA1: {OP_PUSHDATA1, "PUSHDATA1", opPushdata},
		OP_PUSHDATA2: {OP_PUSHDATA2, "PUSHDATA2", opPushdata},
		OP_PUSHDATA4: {OP_PUSHDATA4, "PUSHDATA4", opPushdata},

		OP_PUSHM1:   {OP_PUSHM1, "PUSHM1", opPushSmallInt},
		OP_PUSHNULL: {OP_PUSHNULL, "PUSHNULL", opPushNull},
		OP_PUSHA:    {OP_PUSHA, "PUSHA", opPushA},

		// control flow
		OP_NOP:      {OP_NOP, "NOP", opNop},
		OP_JMP:      {OP_JMP, "JMP", opJmp},
		OP_JMPIF:    {OP_JMPIF, "JMPIF", opJmpIf},
		OP_JMPIFNOT: {OP_JMPIFNOT, "JMPIFNOT", opJmpIfNot},
		OP_CALL:     {OP_CALL, "CALL", opCall},
		OP_RET:      {OP_RET, "RET", opRet},
		OP_APPCALL:  {OP_APPCALL, "APPCALL", opAppCall},
		OP_SYSCALL:  {OP_SYSCALL, "SYSCALL", opSyscall},
		OP_TAILCALL: {OP_TAILCALL, "TAILCALL", opTailCall},
		OP_CALL_I:   {OP_CALL_I, "CALL_I", opCallI},
		OP_CALL_E:   {OP_CALL_E, "CALL_E", opCallE},
		OP_CALL_ED:  {OP_CALL_ED, "CALL_ED", opCallED},
		OP_CALL_ET:  {OP_CALL_ET, "CALL_ET", opCallET},
		OP_CALL_EDT: {OP_CALL_EDT, "CALL_EDT", opCallEDT},
		OP_CALLA:    {OP_CALLA, "CALLA", opCallA},

		OP_THROW:      {OP_THROW, "THROW", opThrow},
		OP_THROWIFNOT: {OP_THROWIFNOT, "THROWIFNOT", opThrowIfNot},
		OP_TRY:        {OP_TRY, "TRY", opTry},
		OP_ENDTRY:     {OP_ENDTRY, "ENDTRY", opEndTry},
		OP_ENDFINALLY: {OP_ENDFINALLY, "ENDFINALLY", opEndFinally},

		OP_DUPFROMALTSTACK: {OP_DUPFROMALTSTACK, "DUPFROMALTSTACK", opDupFromAltStack},
		OP_TOALTSTACK:      {OP_TOALTSTACK, "TOALTSTACK", opToAltStack},
		OP_FROMALTSTACK:    {OP_FROMALTSTACK, "FROMALTSTACK", opFromAltStack},
		OP_XDROP:           {OP_XDROP, "XDROP", opXDrop},
		OP_XSWAP:           {OP_XSWAP, "XSWAP", opXSwap},
		OP_XTUCK:           {OP_XTUCK, "XTUCK", opXTuck},
		OP_DEPTH:           {OP_DEPTH, "DEPTH", opDepth},
		OP_DROP:            {OP_DROP, "DROP", opDrop},
		OP_DUP:             {OP_DUP, "DUP", opDup},
		OP_NIP:             {OP_NIP, "NIP", opNip},
		OP_OVER:            {OP_OVER, "OVER", opOver},
		OP_PICK:            {OP_PICK, "PICK", opPick},
		OP_ROLL:            {OP_ROLL, "ROLL", opRoll},
		OP_ROT:             {OP_ROT, "ROT", opRot},
		OP_SWAP:            {OP_SWAP, "SWAP", opSwap},
		OP_TUCK:            {OP_TUCK, "TUCK", opTuck},

		OP_CAT:    {OP_CAT, "CAT", opCat},
		OP_SUBSTR: {OP_SUBSTR, "SUBSTR", opSubstr},
		OP_LEFT:   {OP_LEFT, "LEFT", opLeft},
		OP_RIGHT:  {OP_RIGHT, "RIGHT", opRight},
		OP_SIZE:   {OP_SIZE, "SIZE", opSize},

		OP_INVERT: {OP_INVERT, "INVERT", opInvert},
		OP_AND:    {OP_AND, "AND", opAnd},
		OP_OR:     {OP_OR, "OR", opOr},
		OP_XOR:    {OP_XOR, "XOR", opXor},
		OP_EQUAL:  {OP_EQUAL, "EQUAL", opEqual},

		OP_INC:         {OP_INC, "INC", opInc},
		OP_DEC:         {OP_DEC, "DEC", opDec},
		OP_SIGN:        {OP_SIGN, "SIGN", opSign},
		OP_NEGATE:      {OP_NEGATE, "NEGATE", opNegate},
		OP_ABS:         {OP_ABS, "ABS", opAbs},
		OP_NOT:         {OP_NOT, "NOT", opNot},
		OP_NZ:          {OP_NZ, "NZ", opNz},
		OP_ADD:         {OP_ADD, "ADD", opAdd},
		OP_SUB:         {OP_SUB, "SUB", opSub},
		OP_MUL:         {OP_MUL, "MUL", opMul},
		OP_DIV:         {OP_DIV, "DIV", opDiv},
		OP_MOD:         {OP_MOD, "MOD", opMod},
		OP_SHL:         {OP_SHL, "SHL", opShl},
		OP_SHR:         {OP_SHR, "SHR", opShr},
		OP_BOOLAND:     {OP_BOOLAND, "BOOLAND", opBoolAnd},
		OP_BOOLOR:      {OP_BOOLOR, "BOOLOR", opBoolOr},
		OP_NUMEQUAL:    {OP_NUMEQUAL, "NUMEQUAL", opNumEqual},
		OP_NUMNOTEQUAL: {OP_NUMNOTEQUAL, "NUMNOTEQUAL", opNumNotEqual},
		OP_LT:          {OP_LT, "LT", opLessThan},
		OP_GT:          {OP_GT, "GT", opGreaterThan},
		OP_LTE:         {OP_LTE, "LTE", opLessThanOrEqual},
		OP_GTE:         {OP_GTE, "GTE", opGreaterThanOrEqual},
		OP_MIN:         {OP_MIN, "MIN", opMin},
		OP_MAX:         {OP_MAX, "MAX", opMax},
		OP_WITHIN:      {OP_WITHIN, "WITHIN", opWithin},

		OP_HASH160:       {OP_HASH160, "HASH160", opHash160},
		OP_HASH256:       {OP_HASH256, "HASH256", opHash256},
		OP_CHECKSIG:      {OP_CHECKSIG, "CHECKSIG", opCheckSig},
		OP_VERIFY:        {OP_VERIFY, "VERIFY", opVerify},
		OP_CHECKMULTISIG: {OP_CHECKMULTISIG, "CHECKMULTISIG", opCheckMultiSig},

		OP_ARRAYSIZE:  {OP_ARRAYSIZE, "ARRAYSIZE", opArraySize},
		OP_PACK:       {OP_PACK, "PACK", opPack},
		OP_UNPACK:     {OP_UNPACK, "UNPACK", opUnpack},
		OP_PICKITEM:   {OP_PICKITEM, "PICKITEM", opPickItem},
		OP_SETITEM:    {OP_SETITEM, "SETITEM", opSetItem},
		OP_NEWARRAY:   {OP_NEWARRAY, "NEWARRAY", opNewArray},
		OP_NEWSTRUCT:  {OP_NEWSTRUCT, "NEWSTRUCT", opNewStruct},
		OP_NEWMAP:     {OP_NEWMAP, "NEWMAP", opNewMap},
		OP_APPEND:     {OP_APPEND, "APPEND", opAppend},
		OP_REVERSE:    {OP_REVERSE, "REVERSE", opReverse},
		OP_REMOVE:     {OP_REMOVE, "REMOVE", opRemove},
		OP_HASKEY:     {OP_HASKEY, "HASKEY", opHasKey},
		OP_KEYS:       {OP_KEYS, "KEYS", opKeys},
		OP_VALUES:     {OP_VALUES, "VALUES", opValues},
		OP_CLEARITEMS: {OP_CLEARITEMS, "CLEARITEMS", opClearItems},
		OP_NEWBUFFER:  {OP_NEWBUFFER, "NEWBUFFER", opNewBuffer},

		OP_INITSSLOT: {OP_INITSSLOT, "INITSSLOT", opInitSSlot},
		OP_INITSLOT:  {OP_INITSLOT, "INITSLOT", opInitSlot},
		OP_LDSFLD:    {OP_LDSFLD, "LDSFLD", opLdSFld},
		OP_STSFLD:    {OP_STSFLD, "STSFLD", opStSFld},
		OP_LDLOC:     {OP_LDLOC, "LDLOC", opLdLoc},
		OP_STLOC:     {OP_STLOC, "STLOC", opStLoc},
		OP_LDARG:     {OP_LDARG, "LDARG", opLdArg},
		OP_STARG:     {OP_STARG, "STARG", opStArg},

		OP_ISNULL:  {OP_ISNULL, "ISNULL", opIsNull},
		OP_ISTYPE:  {OP_ISTYPE, "ISTYPE", opIsType},
		OP_CONVERT: {OP_CONVERT, "CONVERT", opConvert},
	}

	opsByName map[string]opInfo

	// operandSize is the number of operand bytes following each
	// opcode. PUSHBYTES sizes are filled in by init.
	operandSize = [256]uint8{
		OP_PUSHA:    4,
		OP_JMP:      2,
		OP_JMPIF:    2,
		OP_JMPIFNOT: 2,
		OP_CALL:     2,
		OP_APPCALL:  20,
		OP_TAILCALL: 20,
		OP_CALL_I:   4,
		OP_CALL_E:   22,
		OP_CALL_ED:  2,
		OP_CALL_ET:  22,
		OP_CALL_EDT: 2,

		OP_TRY:    4,
		OP_ENDTRY: 2,

		OP_INITSSLOT: 1,
		OP_INITSLOT:  2,
		OP_LDSFLD:    1,
		OP_STSFLD:    1,
		OP_LDLOC:     1,
		OP_STLOC:     1,
		OP_LDARG:     1,
		OP_STARG:     1,

		OP_ISTYPE:  1,
		OP_CONVERT: 1,
	}

	// prefixSize is the width of the little-endian length prefix
	// that precedes a variable-length operand.
	prefixSize = [256]uint8{
		OP_PUSHDATA1: 1,
		OP_PUSHDATA2: 2,
		OP_PUSHDATA4: 4,
		OP_SYSCALL:   1,
	}
)

// ParseOp parses the op at position pc in prog, returning the parsed
// instruction (opcode plus any associated data). Positions at or past
// the end of prog decode as RET.
func ParseOp(prog []byte, pc uint32) (inst Instruction, err error) {
	if uint64(len(prog)) > math.MaxUint32 {
		return Instruction{}, errors.WithDetail(ErrBadScript, "script exceeds max size")
	}
	l := uint32(len(prog))
	if pc >= l {
		return Instruction{Op: OP_RET, Len: 1}, nil
	}
	op := Op(prog[pc])
	inst.Op = op
	inst.Len = 1

	if n := prefixSize[op]; n > 0 {
		start, ok := checked.AddUint32(pc, 1+uint32(n))
		if !ok || start > l {
			return Instruction{}, errors.WithDetailf(ErrBadScript, "%s at %d: length prefix runs past end of script", op, pc)
		}
		var size uint32
		switch n {
		case 1:
			size = uint32(prog[pc+1])
		case 2:
			size = uint32(binary.LittleEndian.Uint16(prog[pc+1:]))
		case 4:
			size = binary.LittleEndian.Uint32(prog[pc+1:])
		}
		end, ok := checked.AddUint32(start, size)
		if !ok || end > l {
			return Instruction{}, errors.WithDetailf(ErrBadScript, "%s at %d: %d data bytes run past end of script", op, pc, size)
		}
		inst.Len = end - pc
		inst.Data = prog[start:end]
		return inst, nil
	}

	if n := operandSize[op]; n > 0 {
		end, ok := checked.AddUint32(pc, 1+uint32(n))
		if !ok || end > l {
			return Instruction{}, errors.WithDetailf(ErrBadScript, "%s at %d: operand runs past end of script", op, pc)
		}
		inst.Len += uint32(n)
		inst.Data = prog[pc+1 : end]
	}
	return inst, nil
}

// ParseProgram decodes every instruction in prog, stopping at
// the end of the script rather than producing the implicit RET.
func ParseProgram(prog []byte) ([]Instruction, error) {
	var result []Instruction
	for pc := uint32(0); pc < uint32(len(prog)); {
		inst, err := ParseOp(prog, pc)
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
		pc += inst.Len
	}
	return result, nil
}

// Disassemble renders prog as space-separated mnemonics, each
// followed by its operand in hex if it has one.
func Disassemble(prog []byte) (string, error) {
	insts, err := ParseProgram(prog)
	if err != nil {
		return "", err
	}
	var words []string
	for _, inst := range insts {
		words = append(words, inst.Op.String())
		if len(inst.Data) > 0 {
			words = append(words, "0x"+hex.EncodeToString(inst.Data))
		}
	}
	return strings.Join(words, " "), nil
}

func init() {
	for i := 1; i <= 75; i++ {
		ops[i] = opInfo{Op(i), fmt.Sprintf("PUSHBYTES%d", i), opPushdata}
		operandSize[i] = uint8(i)
	}
	for i := uint8(0); i < 16; i++ {
		op := OP_PUSH1 + Op(i)
		ops[op] = opInfo{op, fmt.Sprintf("PUSH%d", i+1), opPushSmallInt}
	}

	opsByName = make(map[string]opInfo)
	for _, info := range ops {
		if info.name != "" {
			opsByName[info.name] = info
		}
	}

	for i := 0; i <= 255; i++ {
		if ops[i].name == "" {
			ops[i] = opInfo{Op(i), fmt.Sprintf("UNKNOWN(0x%02x)", i), opUnknown}
		}
	}
}

func opUnknown(vm *ExecutionEngine) error {
	return errors.WithDetailf(ErrUnknownOpcode, "opcode 0x%02x", byte(vm.inst.Op))
}

// OpByName returns the opcode with the given mnemonic.
func OpByName(name string) (Op, bool) {
	info, ok := opsByName[strings.ToUpper(name)]
	return info.op, ok
}
