// Command indexer runs the indexer role: it drains the broker's
// rollups-inputs and rollups-outputs streams into the relational schema
// applied by internal/platform/migrations.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cartesi/rollups-sub002/internal/broker"
	"github.com/cartesi/rollups-sub002/internal/config"
	"github.com/cartesi/rollups-sub002/internal/indexer"
	"github.com/cartesi/rollups-sub002/internal/platform/database"
	"github.com/cartesi/rollups-sub002/internal/platform/migrations"
	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
	"github.com/cartesi/rollups-sub002/pkg/logger"
	"github.com/cartesi/rollups-sub002/pkg/metrics"
)

func main() {
	cfg, err := config.LoadIndexer()
	if err != nil {
		panic(err)
	}
	log := logger.New(logger.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: "stdout"})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithTraceID(ctx)

	go func() {
		if err := http.ListenAndServe(":9093", metrics.Handler()); err != nil {
			log.WithField("error", err).Warn("metrics server stopped")
		}
	}()

	db, err := database.Open(ctx, cfg.Database.DSN)
	if err != nil {
		log.WithContext(ctx).WithField("error", err).Fatal("open database")
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetConnMaxIdleTime(cfg.Database.IdleTimeout)

	if err := migrations.Apply(ctx, db); err != nil {
		log.WithContext(ctx).WithField("error", err).Fatal("apply migrations")
	}

	b, err := broker.New(ctx, cfg.Broker.RedisAddr, cfg.Broker.RedisPassword, cfg.Broker.RedisDB)
	if err != nil {
		log.WithContext(ctx).WithField("error", err).Fatal("connect to broker")
	}
	defer b.Close()

	dappAddress, err := rollupstypes.ParseAddress20(cfg.Chain.DAppAddress)
	if err != nil {
		log.WithContext(ctx).WithField("error", err).Fatal("parse dapp address")
	}
	meta := broker.DAppMetadata{ChainID: cfg.Chain.ChainID, DAppAddress: dappAddress}

	idx := indexer.New(b, meta, db, indexer.Config{BlockTimeout: 5 * time.Second})
	if err := idx.Run(ctx); err != nil && ctx.Err() == nil {
		log.WithContext(ctx).WithField("error", err).Fatal("indexer stopped")
	}
}
