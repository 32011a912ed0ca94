package txbuilder_test

import (
	"crypto/ed25519"
	"io"
	"testing"

	"github.com/lunfardo314/baldcoin/ledger"
	"github.com/lunfardo314/baldcoin/ledger/instruction"
	"github.com/lunfardo314/baldcoin/ledger/txbuilder"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func keyPair(seed string) (ed25519.PrivateKey, ledger.Identity) {
	s := blake2b.Sum256([]byte(seed))
	priv := ed25519.NewKeyFromSeed(s[:])
	return priv, ledger.IdentityFromPublicKey(priv.Public().(ed25519.PublicKey))
}

func TestTransaction(t *testing.T) {
	var programID ledger.Identity
	programID[0] = 0xee
	ownerPriv, owner := keyPair("owner")
	_, from := keyPair("from")
	_, to := keyPair("to")

	t.Run("bytes", func(t *testing.T) {
		tx := txbuilder.NewTransfer(programID, from, to, owner, 1337).Sign(ownerPriv)
		back, err := txbuilder.FromBytes(tx.Bytes())
		require.NoError(t, err)
		require.EqualValues(t, tx.Bytes(), back.Bytes())
		require.EqualValues(t, []ledger.Identity{from, to, owner}, back.Accounts)
		require.EqualValues(t, programID, back.ProgramID)
		ins, err := instruction.FromBytes(back.Data)
		require.NoError(t, err)
		require.EqualValues(t, instruction.Transfer(1337), ins)
		t.Logf("%s", back)
	})
	t.Run("truncated", func(t *testing.T) {
		data := txbuilder.NewInitializeAccount(programID, from, owner).Sign(ownerPriv).Bytes()
		for _, l := range []int{0, 10, 32, 33, 60, len(data) - 1} {
			_, err := txbuilder.FromBytes(data[:l])
			require.ErrorIs(t, err, txbuilder.ErrMalformed, "length %d", l)
		}
		_, err := txbuilder.FromBytes(data[:32])
		require.ErrorIs(t, err, io.EOF)
		_, err = txbuilder.FromBytes(append(data, 0))
		require.ErrorIs(t, err, txbuilder.ErrMalformed)
	})
	t.Run("signatures", func(t *testing.T) {
		tx := txbuilder.NewTransfer(programID, from, to, owner, 10).Sign(ownerPriv)
		signers, err := tx.VerifySignatures()
		require.NoError(t, err)
		require.EqualValues(t, 1, len(signers))
		_, ok := signers[owner]
		require.True(t, ok)
	})
	t.Run("unsigned", func(t *testing.T) {
		signers, err := txbuilder.NewTransfer(programID, from, to, owner, 10).VerifySignatures()
		require.NoError(t, err)
		require.EqualValues(t, 0, len(signers))
	})
	t.Run("tampered", func(t *testing.T) {
		tx := txbuilder.NewTransfer(programID, from, to, owner, 10).Sign(ownerPriv)
		tx.Data = instruction.Transfer(10_000).Bytes()
		_, err := tx.VerifySignatures()
		require.ErrorIs(t, err, txbuilder.ErrWrongSignature)
	})
	t.Run("forged signer", func(t *testing.T) {
		tx := txbuilder.NewTransfer(programID, from, to, owner, 10).Sign(ownerPriv)
		tx.Signatures[0].Signer = from
		back, err := txbuilder.FromBytes(tx.Bytes())
		require.NoError(t, err)
		_, err = back.VerifySignatures()
		require.ErrorIs(t, err, txbuilder.ErrWrongSignature)
	})
}
