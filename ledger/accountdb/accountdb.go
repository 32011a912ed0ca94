package accountdb

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/lunfardo314/baldcoin/ledger"
	"github.com/lunfardo314/baldcoin/ledger/account"
	"github.com/lunfardo314/baldcoin/ledger/processor"
	"github.com/lunfardo314/baldcoin/ledger/txbuilder"
	"github.com/lunfardo314/easyfl"
	"github.com/lunfardo314/unitrie/common"
	"github.com/lunfardo314/unitrie/immutable"
	"github.com/lunfardo314/unitrie/models/trie_blake2b"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// AccountDB is the execution environment of the program: it allocates account storage,
// attests signatures, feeds the processor with slots and commits the modified
// records atomically to the state trie
type (
	AccountDB struct {
		mutex             sync.RWMutex
		store             Store
		root              common.VCommitment
		processor         *processor.Processor
		programID         ledger.Identity
		log               *zap.SugaredLogger
		supply            uint64
		genesisPrivateKey ed25519.PrivateKey
		genesisOwner      ledger.Identity
		treasury          ledger.Identity
	}

	Store interface {
		common.KVReader
		common.KVWriter
		common.BatchedUpdatable
	}

	Option func(o *options)

	options struct {
		store            Store
		log              *zap.SugaredLogger
		supply           uint64
		programID        ledger.Identity
		processorOptions []processor.Option
	}

	// loadedAccount is the working copy of one account during a transaction.
	// All slots naming the same key share data
	loadedAccount struct {
		namespace ledger.Identity
		data      []byte
		original  []byte
	}
)

const (
	// for determinism
	genesisSeed             = "baldcoin genesis"
	programSeed             = "baldcoin program"
	deterministicSeed       = "1234567890987654321"
	SupplyDefault           = uint64(1_000_000_000_000)
	TokensFromFaucetDefault = uint64(1_000_000)
)

var (
	ErrAccountExists    = errors.New("account already exists")
	ErrAccountNotFound  = errors.New("account not found")
	ErrWrongProgram     = errors.New("transaction is for another program")
	ErrUnexpectedSigner = errors.New("signer is not among the transaction accounts")
	ErrForeignWrite     = errors.New("program modified an account it does not control")
)

var commitmentModel = trie_blake2b.New(common.PathArity16, trie_blake2b.HashSize256)

// rootKey is outside the key space of the trie partitions
var rootKey = []byte{0xff, 'r', 'o', 'o', 't'}

func WithStore(store Store) Option {
	return func(o *options) {
		o.store = store
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

func WithSupply(supply uint64) Option {
	return func(o *options) {
		o.supply = supply
	}
}

func WithProgramID(programID ledger.Identity) Option {
	return func(o *options) {
		o.programID = programID
	}
}

func WithProcessorOptions(opts ...processor.Option) Option {
	return func(o *options) {
		o.processorOptions = append(o.processorOptions, opts...)
	}
}

// DefaultProgramID is the deterministic identity of the program
func DefaultProgramID() ledger.Identity {
	return blake2b.Sum256([]byte(programSeed))
}

// New opens the account database. An empty store is initialized with the genesis
// treasury account holding the whole supply. A store committed before is reopened at its last root
func New(opts ...Option) (*AccountDB, error) {
	o := &options{
		supply:    SupplyDefault,
		programID: DefaultProgramID(),
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		o.store = common.NewInMemoryKVStore()
	}
	genesisSeedHash := blake2b.Sum256([]byte(genesisSeed))
	genesisPrivateKey := ed25519.NewKeyFromSeed(genesisSeedHash[:])
	genesisOwner := ledger.IdentityFromPublicKey(genesisPrivateKey.Public().(ed25519.PublicKey))

	log := o.log.Named("accountdb")
	ret := &AccountDB{
		store:             o.store,
		processor:         processor.New(o.programID, append([]processor.Option{processor.WithLogger(log.Named("processor"))}, o.processorOptions...)...),
		programID:         o.programID,
		log:               log,
		supply:            o.supply,
		genesisPrivateKey: genesisPrivateKey,
		genesisOwner:      genesisOwner,
		treasury:          blake2b.Sum256(common.Concat(genesisOwner[:], []byte("treasury"))),
	}

	if rootBin := o.store.Get(rootKey); len(rootBin) > 0 {
		root := commitmentModel.NewVectorCommitment()
		if err := root.Read(bytes.NewReader(rootBin)); err != nil {
			return nil, fmt.Errorf("accountdb: can't read state root: %w", err)
		}
		ret.root = root
		ret.log.Infof("reopened state. Root: %s", root.String())
		return ret, nil
	}
	if err := ret.initGenesis(); err != nil {
		return nil, err
	}
	return ret, nil
}

// NewInMemory mostly for testing
func NewInMemory(opts ...Option) *AccountDB {
	ret, err := New(opts...)
	easyfl.AssertNoError(err)
	return ret
}

func (db *AccountDB) initGenesis() error {
	easyfl.Assert(db.supply > 0, "supply > 0")

	db.root = immutable.MustInitRoot(db.store, commitmentModel, common.Concat([]byte(programSeed), db.programID[:]))
	treasury := &account.Account{
		IsInitialized: true,
		Owner:         db.genesisOwner,
		Balance:       db.supply,
	}
	err := db.commit(map[ledger.Identity][]byte{
		db.treasury: storedValue(db.programID, treasury.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("accountdb: genesis: %w", err)
	}
	db.log.Infof("genesis: supply %d in treasury %s owned by %s. Root: %s",
		db.supply, db.treasury.Short(), db.genesisOwner.Short(), db.root.String())
	return nil
}

func (db *AccountDB) ProgramID() ledger.Identity {
	return db.programID
}

func (db *AccountDB) Supply() uint64 {
	return db.supply
}

func (db *AccountDB) Treasury() ledger.Identity {
	return db.treasury
}

func (db *AccountDB) GenesisKeys() (ed25519.PrivateKey, ledger.Identity) {
	return db.genesisPrivateKey, db.genesisOwner
}

// Root is the commitment to the current state
func (db *AccountDB) Root() common.VCommitment {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	return db.root.Clone()
}

// CreateAccount allocates zeroed storage for a record controlled by the program
func (db *AccountDB) CreateAccount(key ledger.Identity) error {
	return db.AllocateAccount(key, db.programID, account.RecordLength)
}

// AllocateAccount allocates zeroed storage of the given size controlled by namespace
func (db *AccountDB) AllocateAccount(key, namespace ledger.Identity, size int) error {
	easyfl.Assert(size > 0, "size > 0")

	db.mutex.Lock()
	defer db.mutex.Unlock()

	if _, found := db.get(key); found {
		return fmt.Errorf("%w: %s", ErrAccountExists, key.Short())
	}
	if err := db.commit(map[ledger.Identity][]byte{key: storedValue(namespace, make([]byte, size))}); err != nil {
		return err
	}
	db.log.Debugf("allocated %d bytes for %s, namespace %s", size, key.Short(), namespace.Short())
	return nil
}

// Account returns the decoded record stored under the key
func (db *AccountDB) Account(key ledger.Identity) (*account.Account, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	la, found := db.get(key)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, key.Short())
	}
	return account.FromBytes(la.data)
}

// Balance returns 0 for absent or invalid accounts
func (db *AccountDB) Balance(key ledger.Identity) uint64 {
	acc, err := db.Account(key)
	if err != nil {
		return 0
	}
	return acc.Balance
}

// AddTransaction validates the transaction, runs the instruction and commits all modified
// accounts in one trie commit. Nothing is written when any step fails
func (db *AccountDB) AddTransaction(txBytes []byte) error {
	tx, err := txbuilder.FromBytes(txBytes)
	if err != nil {
		return err
	}
	if tx.ProgramID != db.programID {
		return fmt.Errorf("%w: %s", ErrWrongProgram, tx.ProgramID.Short())
	}
	signers, err := tx.VerifySignatures()
	if err != nil {
		return err
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	loaded := make(map[ledger.Identity]*loadedAccount)
	order := make([]ledger.Identity, 0, len(tx.Accounts))
	slots := make([]*processor.Slot, len(tx.Accounts))
	for i, key := range tx.Accounts {
		la, ok := loaded[key]
		if !ok {
			la, _ = db.get(key)
			loaded[key] = la
			order = append(order, key)
		}
		_, signed := signers[key]
		slots[i] = &processor.Slot{
			Key:       key,
			Namespace: la.namespace,
			IsSigner:  signed,
			Data:      la.data,
		}
	}
	for signer := range signers {
		if _, ok := loaded[signer]; !ok {
			return fmt.Errorf("%w: %s", ErrUnexpectedSigner, signer.Short())
		}
	}

	if err = db.processor.Process(tx.Data, slots); err != nil {
		db.log.Debugf("%s rejected: %v", tx, err)
		return err
	}

	updates := make(map[ledger.Identity][]byte)
	for _, key := range order {
		la := loaded[key]
		if bytes.Equal(la.data, la.original) {
			continue
		}
		if la.namespace != db.programID {
			return fmt.Errorf("%w: %s", ErrForeignWrite, key.Short())
		}
		updates[key] = storedValue(la.namespace, la.data)
	}
	if err = db.commit(updates); err != nil {
		return err
	}
	db.log.Debugf("%s committed, %d accounts modified", tx, len(updates))
	return nil
}

// InitializeAccount runs InitializeAccount signed by the owner
func (db *AccountDB) InitializeAccount(key ledger.Identity, ownerKey ed25519.PrivateKey) error {
	owner := ledger.IdentityFromPublicKey(ownerKey.Public().(ed25519.PublicKey))
	tx := txbuilder.NewInitializeAccount(db.programID, key, owner).Sign(ownerKey)
	return db.AddTransaction(tx.Bytes())
}

// Transfer runs Transfer signed by the owner of the source account
func (db *AccountDB) Transfer(ownerKey ed25519.PrivateKey, from, to ledger.Identity, amount uint64) error {
	owner := ledger.IdentityFromPublicKey(ownerKey.Public().(ed25519.PublicKey))
	tx := txbuilder.NewTransfer(db.programID, from, to, owner, amount).Sign(ownerKey)
	return db.AddTransaction(tx.Bytes())
}

// TokensFromFaucet transfers tokens from the treasury
func (db *AccountDB) TokensFromFaucet(to ledger.Identity, howMany ...uint64) error {
	amount := TokensFromFaucetDefault
	if len(howMany) > 0 && howMany[0] > 0 {
		amount = howMany[0]
	}
	if err := db.Transfer(db.genesisPrivateKey, db.treasury, to, amount); err != nil {
		return fmt.Errorf("faucet: %w", err)
	}
	return nil
}

// GenerateKeys derives a deterministic key pair from the index
func (db *AccountDB) GenerateKeys(n uint16) (ed25519.PrivateKey, ledger.Identity) {
	return GenerateKeys(n)
}

func GenerateKeys(n uint16) (ed25519.PrivateKey, ledger.Identity) {
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], n)
	seed := blake2b.Sum256(common.Concat([]byte(deterministicSeed), u16[:]))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return priv, ledger.IdentityFromPublicKey(priv.Public().(ed25519.PublicKey))
}

// get returns a working copy of the account. Absent keys are empty storage of the system namespace
func (db *AccountDB) get(key ledger.Identity) (*loadedAccount, bool) {
	trie, err := immutable.NewTrieReader(commitmentModel, db.store, db.root)
	easyfl.AssertNoError(err)

	ret := &loadedAccount{namespace: ledger.SystemNamespace}
	v := trie.Get(key[:])
	if len(v) == 0 {
		return ret, false
	}
	easyfl.Assert(len(v) >= ledger.IdentityLength, "corrupted account value")
	copy(ret.namespace[:], v[:ledger.IdentityLength])
	ret.data = bytes.Clone(v[ledger.IdentityLength:])
	ret.original = bytes.Clone(ret.data)
	return ret, true
}

// commit writes all updates and the new root in one batch
func (db *AccountDB) commit(updates map[ledger.Identity][]byte) error {
	if len(updates) == 0 {
		return nil
	}
	trie, err := immutable.NewTrieUpdatable(commitmentModel, db.store, db.root)
	if err != nil {
		return err
	}
	for key, value := range updates {
		trie.Update(common.Concat(key[:]), value)
	}
	batch := db.store.BatchedWriter()
	root := trie.Commit(batch)
	batch.Set(rootKey, root.Bytes())
	if err = batch.Commit(); err != nil {
		return fmt.Errorf("accountdb: commit: %w", err)
	}
	db.root = root
	return nil
}

func storedValue(namespace ledger.Identity, data []byte) []byte {
	return common.Concat(namespace[:], data)
}
