package sequencer

import (
	"context"
	"errors"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Ledger applies one transaction atomically
type Ledger interface {
	AddTransaction(txBytes []byte) error
}

// Sequencer applies submitted transactions strictly one at a time in submission order,
// so no two transactions touch overlapping accounts concurrently
type Sequencer struct {
	log       *zap.SugaredLogger
	ledger    Ledger
	queue     *requestQueue
	metrics   *Metrics
	started   atomic.Bool
	stopped   atomic.Bool
	committed atomic.Uint64
	rejected  atomic.Uint64
	done      chan struct{}
}

var ErrStopped = errors.New("sequencer is stopped")

// New creates the sequencer. metrics may be nil
func New(ledger Ledger, log *zap.SugaredLogger, metrics *Metrics) *Sequencer {
	return &Sequencer{
		log:     log.Named("sequencer"),
		ledger:  ledger,
		queue:   newRequestQueue(),
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

func (s *Sequencer) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		s.log.Infof("STARTED")
		s.queue.consume(s.apply)
		s.log.Infof("STOPPED. Committed: %d, rejected: %d", s.committed.Load(), s.rejected.Load())
		close(s.done)
	}()
}

// Stop stops accepting transactions. Already submitted ones are applied before the loop exits.
// Stop before Start prevents the loop from ever starting
func (s *Sequencer) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.queue.close()
	if s.started.CompareAndSwap(false, true) {
		close(s.done)
	}
}

// Wait blocks until the loop exits after Stop. Returns immediately if the loop was never started
func (s *Sequencer) Wait() {
	<-s.done
}

// Submit enqueues the transaction. The channel receives the outcome once applied
func (s *Sequencer) Submit(txBytes []byte) <-chan error {
	req := &request{
		txBytes: txBytes,
		result:  make(chan error, 1),
	}
	if s.stopped.Load() || !s.queue.write(req) {
		req.result <- ErrStopped
	}
	return req.result
}

// SubmitAndWait submits the transaction and waits for the outcome or cancellation.
// A transaction already submitted is applied even if the context is cancelled
func (s *Sequencer) SubmitAndWait(ctx context.Context, txBytes []byte) error {
	select {
	case err := <-s.Submit(txBytes):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sequencer) Committed() uint64 {
	return s.committed.Load()
}

func (s *Sequencer) Rejected() uint64 {
	return s.rejected.Load()
}

func (s *Sequencer) QueueLength() int {
	return s.queue.len()
}

func (s *Sequencer) apply(req *request) {
	err := s.ledger.AddTransaction(req.txBytes)
	if err != nil {
		s.rejected.Inc()
		s.log.Debugf("transaction rejected: %v", err)
	} else {
		s.committed.Inc()
	}
	if s.metrics != nil {
		s.metrics.observe(err, s.queue.len())
	}
	req.result <- err
}
