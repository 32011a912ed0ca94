// Command baldcoind runs the account program against a local state.
// Commands are read from stdin, see commandLoop
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lunfardo314/baldcoin/ledger/accountdb"
	"github.com/lunfardo314/baldcoin/ledger/kvstore"
	"github.com/lunfardo314/baldcoin/ledger/processor"
	"github.com/lunfardo314/baldcoin/ledger/sequencer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := parseConfig()
	if err != nil {
		panic(err)
	}
	log, err := newLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err = run(cfg, log); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(cfg *config, log *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []accountdb.Option{
		accountdb.WithLogger(log),
		accountdb.WithSupply(cfg.Supply),
	}
	if cfg.InitRequiresSignature {
		opts = append(opts, accountdb.WithProcessorOptions(processor.WithInitializeRequiresSignature()))
	}
	if cfg.DBPath != "" {
		store, err := kvstore.OpenSQLite(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		opts = append(opts, accountdb.WithStore(store))
		log.Infof("state database: %s", cfg.DBPath)
	}
	db, err := accountdb.New(opts...)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	seq := sequencer.New(db, log, sequencer.NewMetrics(reg))
	seq.Start()

	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("metrics on %s", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server: %v", err)
		}
	}()

	loopErr := commandLoop(ctx, os.Stdin, os.Stdout, db, seq)

	seq.Stop()
	seq.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	log.Infof("final root: %s", db.Root().String())
	if loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		return loopErr
	}
	return nil
}
