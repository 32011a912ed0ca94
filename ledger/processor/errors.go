package processor

import (
	"errors"

	"github.com/lunfardo314/baldcoin/ledger/account"
	"github.com/lunfardo314/baldcoin/ledger/instruction"
)

// Every error returned by the processor wraps exactly one of these
var (
	ErrMalformedInstruction     = instruction.ErrMalformed
	ErrRecordDecode             = account.ErrDecode
	ErrMissingAccount           = errors.New("not enough accounts")
	ErrIncorrectNamespace       = errors.New("account is not controlled by the program")
	ErrAlreadyInitialized       = errors.New("account already initialized")
	ErrMissingSignature         = errors.New("missing required signature")
	ErrIllegalOwner             = errors.New("illegal owner")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrUninitializedAccount     = errors.New("source account is not initialized")
	ErrUninitializedDestination = errors.New("destination account is not initialized")
	ErrBalanceOverflow          = errors.New("destination balance overflow")
)
