package account

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lunfardo314/baldcoin/ledger"
)

// RecordLength is the size of the serialized record: is_initialized + owner + balance
const RecordLength = 1 + ledger.IdentityLength + 8

const (
	flagFalse = byte(0x00)
	flagTrue  = byte(0x01)

	ownerOffset   = 1
	balanceOffset = ownerOffset + ledger.IdentityLength
)

var ErrDecode = errors.New("record decode error")

// Account is the decoded state of one ledger account.
// Owner is meaningful only when IsInitialized is true
type Account struct {
	IsInitialized bool
	Owner         ledger.Identity
	Balance       uint64
}

// FromBytes decodes a record. The buffer must be exactly RecordLength bytes long
func FromBytes(data []byte) (*Account, error) {
	if len(data) != RecordLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrDecode, RecordLength, len(data))
	}
	ret := &Account{}
	switch data[0] {
	case flagFalse:
	case flagTrue:
		ret.IsInitialized = true
	default:
		return nil, fmt.Errorf("%w: invalid is_initialized byte 0x%02x", ErrDecode, data[0])
	}
	copy(ret.Owner[:], data[ownerOffset:balanceOffset])
	ret.Balance = binary.LittleEndian.Uint64(data[balanceOffset:])
	return ret, nil
}

func (a *Account) Bytes() []byte {
	ret := make([]byte, RecordLength)
	a.Write(ret)
	return ret
}

// Write encodes the record into buf, which must hold at least RecordLength bytes
func (a *Account) Write(buf []byte) {
	_ = buf[RecordLength-1]
	if a.IsInitialized {
		buf[0] = flagTrue
	} else {
		buf[0] = flagFalse
	}
	copy(buf[ownerOffset:balanceOffset], a.Owner[:])
	binary.LittleEndian.PutUint64(buf[balanceOffset:RecordLength], a.Balance)
}

func (a *Account) Clone() *Account {
	ret := *a
	return &ret
}

func (a *Account) String() string {
	if !a.IsInitialized {
		return "account(uninitialized)"
	}
	return fmt.Sprintf("account(owner: %s, balance: %d)", a.Owner.Short(), a.Balance)
}
