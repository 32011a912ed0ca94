package kvstore_test

import (
	"path/filepath"
	"testing"

	"github.com/lunfardo314/baldcoin/ledger/kvstore"
	"github.com/stretchr/testify/require"
)

func TestSQLite(t *testing.T) {
	t.Run("set get", func(t *testing.T) {
		s, err := kvstore.OpenSQLite(":memory:")
		require.NoError(t, err)
		defer s.Close()

		require.Nil(t, s.Get([]byte("a")))
		require.False(t, s.Has([]byte("a")))
		s.Set([]byte("a"), []byte("1"))
		require.EqualValues(t, []byte("1"), s.Get([]byte("a")))
		require.True(t, s.Has([]byte("a")))
		s.Set([]byte("a"), []byte("2"))
		require.EqualValues(t, []byte("2"), s.Get([]byte("a")))
		s.Set([]byte("a"), nil)
		require.False(t, s.Has([]byte("a")))
	})
	t.Run("batch", func(t *testing.T) {
		s, err := kvstore.OpenSQLite(":memory:")
		require.NoError(t, err)
		defer s.Close()

		b := s.BatchedWriter()
		b.Set([]byte("a"), []byte("1"))
		b.Set([]byte("b"), []byte("2"))
		require.False(t, s.Has([]byte("a")))
		require.NoError(t, b.Commit())
		require.EqualValues(t, []byte("1"), s.Get([]byte("a")))
		require.EqualValues(t, []byte("2"), s.Get([]byte("b")))
	})
	t.Run("durable", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "db", "kv.db")
		s, err := kvstore.OpenSQLite(path)
		require.NoError(t, err)
		s.Set([]byte{0x01, 0x02}, []byte{0xff})
		require.NoError(t, s.Close())

		s, err = kvstore.OpenSQLite(path)
		require.NoError(t, err)
		defer s.Close()
		require.EqualValues(t, []byte{0xff}, s.Get([]byte{0x01, 0x02}))
		require.EqualValues(t, path, s.Path())
	})
}
