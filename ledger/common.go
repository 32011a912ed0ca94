package ledger

import (
	"crypto/ed25519"
	"errors"

	"github.com/lunfardo314/easyfl"
)

const IdentityLength = 32

// Identity is an opaque fixed-size identifier. It names account owners,
// signers, storage keys and namespaces (programs). Signer identities are
// ed25519 public keys
type Identity [IdentityLength]byte

// SystemNamespace controls storage not claimed by any program. All-0
var SystemNamespace Identity

func IdentityFromBytes(data []byte) (ret Identity, err error) {
	if len(data) != IdentityLength {
		err = errors.New("IdentityFromBytes: wrong data length")
		return
	}
	copy(ret[:], data)
	return
}

func IdentityFromPublicKey(pubKey ed25519.PublicKey) Identity {
	ret, err := IdentityFromBytes(pubKey)
	easyfl.AssertNoError(err)
	return ret
}

func (id *Identity) Bytes() []byte {
	return id[:]
}

func (id *Identity) PublicKey() ed25519.PublicKey {
	return id[:]
}

func (id *Identity) IsZero() bool {
	return *id == Identity{}
}

func (id Identity) String() string {
	return easyfl.Fmt(id[:])
}

func (id Identity) Short() string {
	s := id.String()
	if len(s) <= 8 {
		return s
	}
	return s[:8] + ".."
}
