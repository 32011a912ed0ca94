package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type config struct {
	// DBPath is the SQLite state file. Empty keeps the state in memory
	DBPath                string `env:"BALDCOIN_DB_PATH"`
	Supply                uint64 `env:"BALDCOIN_SUPPLY" envDefault:"1000000000000"`
	MetricsAddr           string `env:"BALDCOIN_METRICS_ADDR" envDefault:":9464"`
	Debug                 bool   `env:"BALDCOIN_DEBUG"`
	InitRequiresSignature bool   `env:"BALDCOIN_INIT_REQUIRES_SIGNATURE"`
}

func parseConfig() (*config, error) {
	cfg := &config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return log.Named("baldcoind").Sugar(), nil
}
