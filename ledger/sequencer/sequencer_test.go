package sequencer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lunfardo314/baldcoin/ledger"
	"github.com/lunfardo314/baldcoin/ledger/accountdb"
	"github.com/lunfardo314/baldcoin/ledger/processor"
	"github.com/lunfardo314/baldcoin/ledger/sequencer"
	"github.com/lunfardo314/baldcoin/ledger/txbuilder"
	"github.com/lunfardo314/baldcoin/util/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSequencer(t *testing.T) {
	log := testutil.NewSimpleLogger(false)
	db := accountdb.NewInMemory(accountdb.WithLogger(log))

	const numAccounts = 5
	const initialBalance = 1000
	accounts := make([]ledger.Identity, numAccounts)
	for i := range accounts {
		ownerKey, _ := db.GenerateKeys(uint16(i))
		_, key := db.GenerateKeys(uint16(100 + i))
		require.NoError(t, db.CreateAccount(key))
		require.NoError(t, db.InitializeAccount(key, ownerKey))
		require.NoError(t, db.TokensFromFaucet(key, initialBalance))
		accounts[i] = key
	}

	reg := prometheus.NewRegistry()
	metrics := sequencer.NewMetrics(reg)
	seq := sequencer.New(db, log, metrics)
	seq.Start()

	const numTx = 200
	var wg sync.WaitGroup
	results := make([]<-chan error, numTx)
	for i := 0; i < numTx; i++ {
		from, to := i%numAccounts, (i+1)%numAccounts
		ownerKey, owner := db.GenerateKeys(uint16(from))
		tx := txbuilder.NewTransfer(db.ProgramID(), accounts[from], accounts[to], owner, 7).Sign(ownerKey)
		results[i] = seq.Submit(tx.Bytes())
	}
	wg.Add(numTx)
	for i := range results {
		go func(ch <-chan error) {
			defer wg.Done()
			if err := <-ch; err != nil {
				t.Errorf("transaction failed: %v", err)
			}
		}(results[i])
	}
	wg.Wait()

	// a bad one
	ownerKey, _ := db.GenerateKeys(0)
	_, wrongOwner := db.GenerateKeys(1)
	bad := txbuilder.NewTransfer(db.ProgramID(), accounts[0], accounts[1], wrongOwner, 1).Sign(ownerKey)
	err := seq.SubmitAndWait(context.Background(), bad.Bytes())
	require.Error(t, err)

	seq.Stop()
	seq.Wait()

	total := uint64(0)
	for _, key := range accounts {
		total += db.Balance(key)
	}
	require.EqualValues(t, numAccounts*initialBalance, total)
	require.EqualValues(t, numTx, seq.Committed())
	require.EqualValues(t, 1, seq.Rejected())
	require.EqualValues(t, 0, seq.QueueLength())

	require.ErrorIs(t, <-seq.Submit(bad.Bytes()), sequencer.ErrStopped)

	count, err := promtestutil.GatherAndCount(reg, "baldcoin_transactions_total")
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestSequencerIllegalOwner(t *testing.T) {
	log := testutil.NewSimpleLogger(false)
	db := accountdb.NewInMemory(accountdb.WithLogger(log))
	seq := sequencer.New(db, log, nil)
	seq.Start()
	defer seq.Stop()

	ownerKey, _ := db.GenerateKeys(1)
	_, key := db.GenerateKeys(100)
	require.NoError(t, db.CreateAccount(key))
	require.NoError(t, db.InitializeAccount(key, ownerKey))

	wrongKey, wrongOwner := db.GenerateKeys(2)
	tx := txbuilder.NewTransfer(db.ProgramID(), db.Treasury(), key, wrongOwner, 10).Sign(wrongKey)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.ErrorIs(t, seq.SubmitAndWait(ctx, tx.Bytes()), processor.ErrIllegalOwner)
	require.EqualValues(t, 0, db.Balance(key))
}

func TestSequencerStopBeforeStart(t *testing.T) {
	log := testutil.NewSimpleLogger(false)
	db := accountdb.NewInMemory(accountdb.WithLogger(log))
	seq := sequencer.New(db, log, nil)
	seq.Stop()

	waited := make(chan struct{})
	go func() {
		seq.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatalf("Wait blocked on a sequencer which was never started")
	}

	seq.Start()
	seq.Wait()
	require.ErrorIs(t, <-seq.Submit([]byte{1}), sequencer.ErrStopped)
}
