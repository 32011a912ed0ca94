package processor

import (
	"fmt"
	"math"

	"github.com/lunfardo314/baldcoin/ledger"
	"github.com/lunfardo314/baldcoin/ledger/account"
	"github.com/lunfardo314/baldcoin/ledger/instruction"
	"go.uber.org/zap"
)

type (
	// Slot is one account supplied by the runtime for the invocation.
	// Data is the mutable record buffer, Namespace is the program controlling the buffer,
	// IsSigner is true if the runtime verified the signature of Key
	Slot struct {
		Key       ledger.Identity
		Namespace ledger.Identity
		IsSigner  bool
		Data      []byte
	}

	// Processor executes instructions of one program against the slots.
	// It holds no ledger state and performs no I/O
	Processor struct {
		programID                     ledger.Identity
		log                           *zap.SugaredLogger
		initializeRequiresSignature   bool
		allowUninitializedDestination bool
	}

	Option func(p *Processor)
)

const (
	NumAccountsInitialize = 2
	NumAccountsTransfer   = 3
)

// positions of slots
const (
	slotInitAccount = 0
	slotInitOwner   = 1

	slotTransferFrom  = 0
	slotTransferTo    = 1
	slotTransferOwner = 2
)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(p *Processor) {
		p.log = log
	}
}

// WithInitializeRequiresSignature makes InitializeAccount require the signature of the owner slot
func WithInitializeRequiresSignature() Option {
	return func(p *Processor) {
		p.initializeRequiresSignature = true
	}
}

// WithUninitializedDestination allows Transfer to credit records which were never initialized
func WithUninitializedDestination() Option {
	return func(p *Processor) {
		p.allowUninitializedDestination = true
	}
}

func New(programID ledger.Identity, opts ...Option) *Processor {
	ret := &Processor{
		programID: programID,
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (p *Processor) ProgramID() ledger.Identity {
	return p.programID
}

// Process decodes instruction data and executes it. No slot is touched when decoding fails
func (p *Processor) Process(data []byte, slots []*Slot) error {
	ins, err := instruction.FromBytes(data)
	if err != nil {
		return err
	}
	return p.Execute(ins, slots)
}

// Execute runs the instruction. On error none of the slot buffers is modified
func (p *Processor) Execute(ins instruction.Instruction, slots []*Slot) error {
	p.log.Debugf("instruction: %s", ins)

	switch ins.Kind {
	case instruction.KindInitializeAccount:
		return p.initializeAccount(slots)
	case instruction.KindTransfer:
		return p.transfer(slots, ins.Amount)
	}
	return fmt.Errorf("%w: unknown tag %d", ErrMalformedInstruction, ins.Kind)
}

func (p *Processor) initializeAccount(slots []*Slot) error {
	if err := checkSlots("InitializeAccount", slots, NumAccountsInitialize); err != nil {
		return err
	}
	acc, owner := slots[slotInitAccount], slots[slotInitOwner]

	if acc.Namespace != p.programID {
		return fmt.Errorf("%w: account %s", ErrIncorrectNamespace, acc.Key.Short())
	}
	if p.initializeRequiresSignature && !owner.IsSigner {
		return fmt.Errorf("%w: owner %s", ErrMissingSignature, owner.Key.Short())
	}
	accData, err := account.FromBytes(acc.Data)
	if err != nil {
		return err
	}
	updated, err := p.ApplyInitialize(accData, owner.Key)
	if err != nil {
		return fmt.Errorf("%w: account %s", err, acc.Key.Short())
	}
	updated.Write(acc.Data)

	p.log.Debugf("initialized %s: %s", acc.Key.Short(), updated)
	return nil
}

func (p *Processor) transfer(slots []*Slot, amount uint64) error {
	if err := checkSlots("Transfer", slots, NumAccountsTransfer); err != nil {
		return err
	}
	from, to, owner := slots[slotTransferFrom], slots[slotTransferTo], slots[slotTransferOwner]

	if from.Namespace != p.programID {
		return fmt.Errorf("%w: source %s", ErrIncorrectNamespace, from.Key.Short())
	}
	if to.Namespace != p.programID {
		return fmt.Errorf("%w: destination %s", ErrIncorrectNamespace, to.Key.Short())
	}
	if !owner.IsSigner {
		return fmt.Errorf("%w: owner %s", ErrMissingSignature, owner.Key.Short())
	}
	fromData, err := account.FromBytes(from.Data)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	toData, err := account.FromBytes(to.Data)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	if sameAccount(from, to) {
		// debit and credit cancel out, nothing to write
		if err = p.checkDebit(fromData, owner.Key, amount); err != nil {
			return err
		}
		p.log.Debugf("transfer of %d from %s to itself", amount, from.Key.Short())
		return nil
	}

	fromUpdated, toUpdated, err := p.ApplyTransfer(fromData, toData, owner.Key, amount)
	if err != nil {
		return err
	}
	// both records are valid, write them together
	fromUpdated.Write(from.Data)
	toUpdated.Write(to.Data)

	p.log.Debugf("transferred %d from %s to %s", amount, from.Key.Short(), to.Key.Short())
	return nil
}

// ApplyInitialize returns the state of acc after being initialized with owner.
// acc itself is not modified
func (p *Processor) ApplyInitialize(acc *account.Account, owner ledger.Identity) (*account.Account, error) {
	if acc.IsInitialized {
		return nil, ErrAlreadyInitialized
	}
	return &account.Account{
		IsInitialized: true,
		Owner:         owner,
		Balance:       0,
	}, nil
}

// ApplyTransfer returns the states of from and to after moving amount between them,
// authorized by owner. The arguments are not modified. from and to must be distinct accounts
func (p *Processor) ApplyTransfer(from, to *account.Account, owner ledger.Identity, amount uint64) (*account.Account, *account.Account, error) {
	if err := p.checkDebit(from, owner, amount); err != nil {
		return nil, nil, err
	}
	if !to.IsInitialized && !p.allowUninitializedDestination {
		return nil, nil, ErrUninitializedDestination
	}
	if to.Balance > math.MaxUint64-amount {
		return nil, nil, fmt.Errorf("%w: %d + %d", ErrBalanceOverflow, to.Balance, amount)
	}
	fromRet, toRet := from.Clone(), to.Clone()
	fromRet.Balance -= amount
	toRet.Balance += amount
	return fromRet, toRet, nil
}

func (p *Processor) checkDebit(from *account.Account, owner ledger.Identity, amount uint64) error {
	if from.Owner != owner {
		return fmt.Errorf("%w: %s is not the owner", ErrIllegalOwner, owner.Short())
	}
	if !from.IsInitialized {
		return ErrUninitializedAccount
	}
	if from.Balance < amount {
		return fmt.Errorf("%w: balance %d, amount %d", ErrInsufficientFunds, from.Balance, amount)
	}
	return nil
}

// checkSlots requires at least n non-nil slots
func checkSlots(name string, slots []*Slot, n int) error {
	if len(slots) < n {
		return fmt.Errorf("%w: %s expects %d, got %d", ErrMissingAccount, name, n, len(slots))
	}
	for i := 0; i < n; i++ {
		if slots[i] == nil {
			return fmt.Errorf("%w: %s slot #%d is nil", ErrMissingAccount, name, i)
		}
	}
	return nil
}

// sameAccount is true when both slots name the same record or share the buffer
func sameAccount(s1, s2 *Slot) bool {
	if s1.Key == s2.Key {
		return true
	}
	return len(s1.Data) > 0 && len(s2.Data) > 0 && &s1.Data[0] == &s2.Data[0]
}
