package vm

import (
	"scriptvm/errors"
)

func opHash160(vm *ExecutionEngine) error {
	b, err := vm.popBytes()
	if err != nil {
		return err
	}
	h := vm.crypto.Hash160(b)
	return vm.pushBytes(h[:])
}

func opHash256(vm *ExecutionEngine) error {
	b, err := vm.popBytes()
	if err != nil {
		return err
	}
	h := vm.crypto.Hash256(b)
	return vm.pushBytes(h[:])
}

// CHECKSIG pops a public key and a signature and verifies the
// signature over the engine's checked message.
func opCheckSig(vm *ExecutionEngine) error {
	if vm.checkedMessage == nil {
		return ErrNoCheckedMessage
	}
	pubkey, err := vm.popBytes()
	if err != nil {
		return err
	}
	sig, err := vm.popBytes()
	if err != nil {
		return err
	}
	vm.push(Boolean(vm.crypto.VerifySignature(vm.checkedMessage, sig, pubkey)))
	return nil
}

// VERIFY pops a public key, a signature and a message.
func opVerify(vm *ExecutionEngine) error {
	pubkey, err := vm.popBytes()
	if err != nil {
		return err
	}
	sig, err := vm.popBytes()
	if err != nil {
		return err
	}
	msg, err := vm.popBytes()
	if err != nil {
		return err
	}
	vm.push(Boolean(vm.crypto.VerifySignature(msg, sig, pubkey)))
	return nil
}

// CHECKMULTISIG pops n public keys then m signatures, each given
// either as an array or as a count followed by that many items, and
// checks that every signature matches a distinct key, in order.
func opCheckMultiSig(vm *ExecutionEngine) error {
	if vm.checkedMessage == nil {
		return ErrNoCheckedMessage
	}
	pubkeys, err := vm.popByteList()
	if err != nil {
		return err
	}
	sigs, err := vm.popByteList()
	if err != nil {
		return err
	}
	m, n := len(sigs), len(pubkeys)
	if m == 0 || n == 0 || m > n {
		return errors.WithDetailf(ErrBadValue, "%d of %d multisig", m, n)
	}
	ok := true
	for i, j := 0, 0; ok && i < m && j < n; {
		if vm.crypto.VerifySignature(vm.checkedMessage, sigs[i], pubkeys[j]) {
			i++
		}
		j++
		if m-i > n-j {
			ok = false
		}
	}
	vm.push(Boolean(ok))
	return nil
}

func (vm *ExecutionEngine) popByteList() ([][]byte, error) {
	item, err := vm.pop()
	if err != nil {
		return nil, err
	}
	var items []StackItem
	switch a := item.(type) {
	case *Array:
		items = a.Items()
	case *Struct:
		items = a.Items()
	default:
		x, err := vm.toInt(item)
		if err != nil {
			return nil, err
		}
		if x.Sign() <= 0 || x.Cmp(bigInt(vm.limits.MaxArraySize)) > 0 {
			return nil, errors.WithDetailf(ErrBadValue, "count %s", x)
		}
		for i := int64(0); i < x.Int64(); i++ {
			item, err := vm.pop()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
	}
	list := make([][]byte, 0, len(items))
	for _, item := range items {
		b, err := item.Bytes()
		if err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, nil
}
