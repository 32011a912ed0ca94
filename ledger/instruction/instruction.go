package instruction

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Kind is the instruction discriminant, the first byte of the instruction data
type Kind byte

const (
	KindInitializeAccount = Kind(iota)
	KindTransfer
)

const amountLength = 8

var ErrMalformed = errors.New("malformed instruction")

// Instruction is one of {InitializeAccount, Transfer{Amount}}.
// Amount is meaningful only for KindTransfer
type Instruction struct {
	Kind   Kind
	Amount uint64
}

func InitializeAccount() Instruction {
	return Instruction{Kind: KindInitializeAccount}
}

func Transfer(amount uint64) Instruction {
	return Instruction{Kind: KindTransfer, Amount: amount}
}

// FromBytes decodes instruction data. Unknown tag, short payload or trailing bytes are errors
func FromBytes(data []byte) (ret Instruction, err error) {
	if len(data) == 0 {
		err = fmt.Errorf("%w: empty data", ErrMalformed)
		return
	}
	ret.Kind = Kind(data[0])
	payload := data[1:]
	switch ret.Kind {
	case KindInitializeAccount:
		if len(payload) != 0 {
			err = fmt.Errorf("%w: unexpected %d payload bytes for %s", ErrMalformed, len(payload), ret.Kind)
		}
	case KindTransfer:
		if len(payload) != amountLength {
			err = fmt.Errorf("%w: %s expects %d payload bytes, got %d", ErrMalformed, ret.Kind, amountLength, len(payload))
			return
		}
		ret.Amount = binary.LittleEndian.Uint64(payload)
	default:
		err = fmt.Errorf("%w: unknown tag %d", ErrMalformed, data[0])
	}
	return
}

func (ins Instruction) Bytes() []byte {
	switch ins.Kind {
	case KindInitializeAccount:
		return []byte{byte(KindInitializeAccount)}
	case KindTransfer:
		ret := make([]byte, 1+amountLength)
		ret[0] = byte(KindTransfer)
		binary.LittleEndian.PutUint64(ret[1:], ins.Amount)
		return ret
	}
	panic(fmt.Sprintf("Instruction.Bytes: unknown kind %d", ins.Kind))
}

func (ins Instruction) String() string {
	if ins.Kind == KindTransfer {
		return fmt.Sprintf("%s{amount: %d}", ins.Kind, ins.Amount)
	}
	return ins.Kind.String()
}

func (k Kind) String() string {
	switch k {
	case KindInitializeAccount:
		return "InitializeAccount"
	case KindTransfer:
		return "Transfer"
	}
	return fmt.Sprintf("Kind(%d)", byte(k))
}
