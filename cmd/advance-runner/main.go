// Command advance-runner runs the advance runner role: it drains the
// broker's rollups-inputs stream, drives a Cartesi machine session through
// each input, and republishes outputs, proofs, and claims.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cartesi/rollups-sub002/internal/advance"
	"github.com/cartesi/rollups-sub002/internal/broker"
	"github.com/cartesi/rollups-sub002/internal/config"
	"github.com/cartesi/rollups-sub002/internal/machine"
	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
	"github.com/cartesi/rollups-sub002/internal/snapshot"
	"github.com/cartesi/rollups-sub002/pkg/logger"
	"github.com/cartesi/rollups-sub002/pkg/metrics"
)

func main() {
	cfg, err := config.LoadAdvanceRunner()
	if err != nil {
		panic(err)
	}
	log := logger.New(logger.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: "stdout"})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithTraceID(ctx)

	go func() {
		if err := http.ListenAndServe(":9092", metrics.Handler()); err != nil {
			log.WithField("error", err).Warn("metrics server stopped")
		}
	}()

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

	deadlines := machine.Deadlines{
		Checkin:               cfg.Machine.CheckInTimeout,
		AdvanceState:          cfg.Machine.AdvanceTimeout,
		AdvanceStateIncrement: time.Minute,
		InspectState:          cfg.Machine.InspectTimeout,
		InspectStateIncrement: time.Minute,
		Machine:               time.Minute,
		Store:                 cfg.Machine.StoreTimeout,
		Fast:                  cfg.Machine.FastTimeout,
	}
	m := machine.New(machine.Config{BaseURL: cfg.Machine.Endpoint, Deadlines: deadlines})

	var snapshots snapshot.Manager
	if cfg.Snapshot.Enabled {
		fsManager, err := snapshot.NewFSSnapshotManager(cfg.Snapshot.Directory)
		if err != nil {
			log.WithContext(ctx).WithField("error", err).Fatal("build snapshot manager")
		}
		snapshots = fsManager
	} else {
		snapshots = snapshot.NewDisabledManager()
	}

	runner := advance.New(advance.Config{BlockTimeout: 5 * time.Second}, m, b, meta, snapshots, broker.InitialID, log)

	if err := runner.ReconcileOnStartup(ctx); err != nil {
		log.WithContext(ctx).WithField("error", err).Fatal("reconcile snapshot against machine session")
	}
	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		log.WithContext(ctx).WithField("error", err).Fatal("advance runner stopped")
	}
}
