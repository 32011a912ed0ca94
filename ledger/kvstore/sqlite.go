package kvstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lunfardo314/easyfl"
	"github.com/lunfardo314/unitrie/common"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLite is a durable key/value store in a single table.
// Setting an empty value deletes the key
type SQLite struct {
	db   *sql.DB
	path string
}

type sqliteBatch struct {
	s         *SQLite
	mutations []mutation
}

type mutation struct {
	key   []byte
	value []byte
}

var (
	_ common.KVReader         = &SQLite{}
	_ common.KVWriter         = &SQLite{}
	_ common.BatchedUpdatable = &SQLite{}
)

// OpenSQLite opens or creates the database file. ":memory:" opens a private in-memory database
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		k BLOB PRIMARY KEY,
		v BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(key []byte) []byte {
	var ret []byte
	err := s.db.QueryRow(`SELECT v FROM kv WHERE k = ?`, key).Scan(&ret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	easyfl.AssertNoError(err)
	return ret
}

func (s *SQLite) Has(key []byte) bool {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM kv WHERE k = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	easyfl.AssertNoError(err)
	return true
}

func (s *SQLite) Set(key, value []byte) {
	easyfl.AssertNoError(s.apply([]mutation{{key: key, value: value}}))
}

// BatchedWriter collects mutations and applies them in one database transaction on Commit
func (s *SQLite) BatchedWriter() common.KVBatchedWriter {
	return &sqliteBatch{s: s}
}

func (b *sqliteBatch) Set(key, value []byte) {
	b.mutations = append(b.mutations, mutation{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
}

func (b *sqliteBatch) Commit() error {
	err := b.s.apply(b.mutations)
	b.mutations = nil
	return err
}

func (s *SQLite) apply(mutations []mutation) error {
	if len(mutations) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, m := range mutations {
		if len(m.value) == 0 {
			_, err = tx.Exec(`DELETE FROM kv WHERE k = ?`, m.key)
		} else {
			_, err = tx.Exec(`INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`, m.key, m.value)
		}
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("write key %s: %w", easyfl.Fmt(m.key), err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
