// Command dispatcher runs the rollups-node dispatcher role: it follows
// confirmed L1 blocks, enqueues inputs and finish-epoch markers onto the
// broker, and relays finished-epoch claims toward the authority contract.
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
	"github.com/cartesi/rollups-sub002/internal/dispatcher"
	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
	"github.com/cartesi/rollups-sub002/internal/signer"
	"github.com/cartesi/rollups-sub002/pkg/logger"
	"github.com/cartesi/rollups-sub002/pkg/metrics"
)

func main() {
	cfg, err := config.LoadDispatcher()
	if err != nil {
		panic(err)
	}
	log := logger.New(logger.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: "stdout"})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithTraceID(ctx)

	go serveMetrics(log)

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

	s, err := buildSigner(ctx, cfg)
	if err != nil {
		log.WithContext(ctx).WithField("error", err).Fatal("build signer")
	}

	authorityAddress, err := rollupstypes.ParseAddress20(cfg.Chain.AuthorityAddress)
	if err != nil {
		log.WithContext(ctx).WithField("error", err).Fatal("parse authority address")
	}
	sender := *claimer.NewClaimSender(client, s, authorityAddress, new(big.Int).SetUint64(cfg.Chain.ChainID), cfg.Chain.ConfirmationDepth, log)

	d := dispatcher.New(dispatcher.Config{
		DAppAddress:       dappAddress,
		InputBoxAddress:   mustParseAddress(log, ctx, cfg.Chain.InputBoxAddress),
		HistoryAddress:    mustParseAddress(log, ctx, cfg.Chain.HistoryAddress),
		ConfirmationDepth: cfg.Chain.ConfirmationDepth,
		SafetyMargin:      cfg.Chain.SafetyMarginBlocks,
		LogFanout:         cfg.Chain.LogFetchFanout,
		EpochDuration:     uint64(cfg.Epoch.Duration.Seconds()),
		GenesisTimestamp:  uint64(time.Now().Unix()),
	}, client, b, meta, sender, log)

	if err := d.Run(ctx); err != nil && ctx.Err() == nil {
		log.WithContext(ctx).WithField("error", err).Fatal("dispatcher stopped")
	}
}

func buildSigner(ctx context.Context, cfg *config.Config) (signer.Signer, error) {
	switch cfg.Signer.Kind {
	case "kms":
		return signer.NewKMSSigner(ctx, cfg.Signer.KMSKeyID, cfg.Signer.KMSRegion)
	default:
		return signer.NewMnemonicSigner(cfg.Signer.MnemonicPath, cfg.Signer.MnemonicAccountIdx)
	}
}

func mustParseAddress(log *logger.Logger, ctx context.Context, raw string) rollupstypes.Address20 {
	addr, err := rollupstypes.ParseAddress20(raw)
	if err != nil {
		log.WithContext(ctx).WithField("error", err).Fatal("parse address")
	}
	return addr
}

func serveMetrics(log *logger.Logger) {
	if err := http.ListenAndServe(":9090", metrics.Handler()); err != nil {
		log.WithField("error", err).Warn("metrics server stopped")
	}
}
