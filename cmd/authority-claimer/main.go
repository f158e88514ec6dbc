// Command authority-claimer runs the authority claimer role: it listens on
// the broker's rollups-claims stream and submits each finished epoch's claim
// to the authority contract on L1.
package main

import (
	"context"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cartesi/rollups-sub002/internal/broker"
	"github.com/cartesi/rollups-sub002/internal/chain"
	"github.com/cartesi/rollups-sub002/internal/claimer"
	"github.com/cartesi/rollups-sub002/internal/config"
	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
	"github.com/cartesi/rollups-sub002/internal/signer"
	"github.com/cartesi/rollups-sub002/pkg/logger"
	"github.com/cartesi/rollups-sub002/pkg/metrics"
)

func main() {
	cfg, err := config.LoadClaimer()
	if err != nil {
		panic(err)
	}
	log := logger.New(logger.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: "stdout"})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithTraceID(ctx)

	go func() {
		if err := http.ListenAndServe(":9091", metrics.Handler()); err != nil {
			log.WithField("error", err).Warn("metrics server stopped")
		}
	}()

	client, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		log.WithContext(ctx).WithField("error", err).Fatal("dial chain RPC")
	}
	defer client.Close()

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

	var s signer.Signer
	switch cfg.Signer.Kind {
	case "kms":
		s, err = signer.NewKMSSigner(ctx, cfg.Signer.KMSKeyID, cfg.Signer.KMSRegion)
	default:
		s, err = signer.NewMnemonicSigner(cfg.Signer.MnemonicPath, cfg.Signer.MnemonicAccountIdx)
	}
	if err != nil {
		log.WithContext(ctx).WithField("error", err).Fatal("build signer")
	}

	authorityAddress, err := rollupstypes.ParseAddress20(cfg.Chain.AuthorityAddress)
	if err != nil {
		log.WithContext(ctx).WithField("error", err).Fatal("parse authority address")
	}
	sender := *claimer.NewClaimSender(client, s, authorityAddress, new(big.Int).SetUint64(cfg.Chain.ChainID), cfg.Chain.ConfirmationDepth, log)
	listener := claimer.NewBrokerListener(b, meta, 5*time.Second)
	c := claimer.New(listener, sender, log)

	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		log.WithContext(ctx).WithField("error", err).Fatal("claimer stopped")
	}
}
