package txbuilder

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/lunfardo314/baldcoin/ledger"
	"github.com/lunfardo314/baldcoin/ledger/instruction"
	"github.com/lunfardo314/easyfl"
	"golang.org/x/crypto/blake2b"
)

type (
	// Transaction invokes one instruction of the program with the ordered list of accounts.
	// Signatures are over blake2b-256 of the essence bytes
	Transaction struct {
		ProgramID  ledger.Identity
		Accounts   []ledger.Identity
		Data       []byte
		Signatures []Signature
	}

	Signature struct {
		Signer    ledger.Identity
		Signature [ed25519.SignatureSize]byte
	}
)

const (
	MaxAccounts   = math.MaxUint8
	MaxSignatures = math.MaxUint8
	MaxDataLength = math.MaxUint16

	signatureEntryLength = ledger.IdentityLength + ed25519.SignatureSize
)

var (
	ErrWrongSignature = errors.New("signature verification failed")
	ErrMalformed      = errors.New("malformed transaction")
)

func New(programID ledger.Identity, data []byte, accounts ...ledger.Identity) *Transaction {
	return &Transaction{
		ProgramID:  programID,
		Accounts:   accounts,
		Data:       data,
		Signatures: make([]Signature, 0),
	}
}

// NewInitializeAccount builds unsigned InitializeAccount with slots [account, owner]
func NewInitializeAccount(programID, acc, owner ledger.Identity) *Transaction {
	return New(programID, instruction.InitializeAccount().Bytes(), acc, owner)
}

// NewTransfer builds unsigned Transfer with slots [from, to, owner]
func NewTransfer(programID, from, to, owner ledger.Identity, amount uint64) *Transaction {
	return New(programID, instruction.Transfer(amount).Bytes(), from, to, owner)
}

func (tx *Transaction) EssenceBytes() []byte {
	easyfl.Assert(len(tx.Accounts) <= MaxAccounts, "too many accounts")
	easyfl.Assert(len(tx.Data) <= MaxDataLength, "instruction data too long")

	var buf bytes.Buffer
	buf.Write(tx.ProgramID[:])
	buf.WriteByte(byte(len(tx.Accounts)))
	for i := range tx.Accounts {
		buf.Write(tx.Accounts[i][:])
	}
	var dataLen [2]byte
	binary.BigEndian.PutUint16(dataLen[:], uint16(len(tx.Data)))
	buf.Write(dataLen[:])
	buf.Write(tx.Data)
	return buf.Bytes()
}

// Message is the hash signed by the signers
func (tx *Transaction) Message() [32]byte {
	return blake2b.Sum256(tx.EssenceBytes())
}

// Sign adds signature of the key. Returns the transaction for chaining
func (tx *Transaction) Sign(privateKey ed25519.PrivateKey) *Transaction {
	msg := tx.Message()
	sig := Signature{
		Signer: ledger.IdentityFromPublicKey(privateKey.Public().(ed25519.PublicKey)),
	}
	copy(sig.Signature[:], ed25519.Sign(privateKey, msg[:]))
	tx.Signatures = append(tx.Signatures, sig)
	return tx
}

func (tx *Transaction) Bytes() []byte {
	easyfl.Assert(len(tx.Signatures) <= MaxSignatures, "too many signatures")

	var buf bytes.Buffer
	buf.Write(tx.EssenceBytes())
	buf.WriteByte(byte(len(tx.Signatures)))
	for i := range tx.Signatures {
		buf.Write(tx.Signatures[i].Signer[:])
		buf.Write(tx.Signatures[i].Signature[:])
	}
	return buf.Bytes()
}

func FromBytes(data []byte) (*Transaction, error) {
	rdr := bytes.NewReader(data)
	ret := &Transaction{}

	if err := readFull(rdr, ret.ProgramID[:]); err != nil {
		return nil, fmt.Errorf("%w: program ID: %w", ErrMalformed, err)
	}
	numAccounts, err := rdr.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: number of accounts: %w", ErrMalformed, err)
	}
	ret.Accounts = make([]ledger.Identity, numAccounts)
	for i := range ret.Accounts {
		if err = readFull(rdr, ret.Accounts[i][:]); err != nil {
			return nil, fmt.Errorf("%w: account #%d: %w", ErrMalformed, i, err)
		}
	}
	var dataLen [2]byte
	if err = readFull(rdr, dataLen[:]); err != nil {
		return nil, fmt.Errorf("%w: data length: %w", ErrMalformed, err)
	}
	ret.Data = make([]byte, binary.BigEndian.Uint16(dataLen[:]))
	if err = readFull(rdr, ret.Data); err != nil {
		return nil, fmt.Errorf("%w: data: %w", ErrMalformed, err)
	}
	numSigs, err := rdr.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: number of signatures: %w", ErrMalformed, err)
	}
	ret.Signatures = make([]Signature, numSigs)
	for i := range ret.Signatures {
		var entry [signatureEntryLength]byte
		if err = readFull(rdr, entry[:]); err != nil {
			return nil, fmt.Errorf("%w: signature #%d: %w", ErrMalformed, i, err)
		}
		copy(ret.Signatures[i].Signer[:], entry[:ledger.IdentityLength])
		copy(ret.Signatures[i].Signature[:], entry[ledger.IdentityLength:])
	}
	if rdr.Len() != 0 {
		return nil, fmt.Errorf("%w: %d unexpected trailing bytes", ErrMalformed, rdr.Len())
	}
	return ret, nil
}

// VerifySignatures checks every signature and returns the set of attested signers.
// Any invalid signature invalidates the whole transaction
func (tx *Transaction) VerifySignatures() (map[ledger.Identity]struct{}, error) {
	msg := tx.Message()
	ret := make(map[ledger.Identity]struct{})
	for i := range tx.Signatures {
		sig := &tx.Signatures[i]
		if !ed25519.Verify(sig.Signer.PublicKey(), msg[:], sig.Signature[:]) {
			return nil, fmt.Errorf("%w: signer %s", ErrWrongSignature, sig.Signer.Short())
		}
		ret[sig.Signer] = struct{}{}
	}
	return ret, nil
}

// ID is the hash of the full transaction bytes
func (tx *Transaction) ID() [32]byte {
	return blake2b.Sum256(tx.Bytes())
}

func (tx *Transaction) String() string {
	ins, err := instruction.FromBytes(tx.Data)
	insStr := ins.String()
	if err != nil {
		insStr = fmt.Sprintf("invalid(%s)", easyfl.Fmt(tx.Data))
	}
	id := tx.ID()
	return fmt.Sprintf("tx %s: %s, %d accounts, %d signatures",
		easyfl.Fmt(id[:4]), insStr, len(tx.Accounts), len(tx.Signatures))
}

func readFull(rdr *bytes.Reader, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	n, err := rdr.Read(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("expected %d bytes, got %d", len(buf), n)
	}
	return nil
}
