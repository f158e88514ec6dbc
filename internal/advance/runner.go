// Package advance implements the advance runner: it drains the
// dispatcher's rollups-inputs stream, drives the Cartesi machine through
// each input, and republishes vouchers/notices/reports/proofs and
// finished-epoch claims to the broker. Grounded on
// original_source/offchain/advance-runner/src/lib.rs's
// start_advance_runner wiring (server-manager facade + broker facade +
// snapshot manager, run by a Runner) — runner.rs itself was not present in
// the retrieved sources, so Runner's shape follows that wiring contract.
package advance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cartesi/rollups-sub002/infrastructure/resilience"
	"github.com/cartesi/rollups-sub002/internal/broker"
	"github.com/cartesi/rollups-sub002/internal/machine"
	"github.com/cartesi/rollups-sub002/internal/merkle"
	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
	"github.com/cartesi/rollups-sub002/internal/snapshot"
	"github.com/cartesi/rollups-sub002/pkg/logger"
)

// log2OutputsRootSize / log2OutputsWordSize size the per-epoch voucher and
// notice metadata trees: up to 2^(32-5) = 2^27 outputs per epoch, each leaf
// one 32-byte hash, matching host-runner's epoch output tree dimensions.
const (
	log2OutputsRootSize = 32
	log2OutputsWordSize = 5
)

// Config configures Runner.
type Config struct {
	BlockTimeout time.Duration // how long ConsumeInput blocks per poll
}

// Runner drains one DApp's rollups-inputs stream, one entry at a time, and
// keeps the Cartesi machine session in lockstep with it.
type Runner struct {
	cfg       Config
	machine   *machine.Client
	broker    *broker.Broker
	meta      broker.DAppMetadata
	snapshots snapshot.Manager
	log       *logger.Logger

	lastInputID string

	epochIndex        uint64
	processedInEpoch   uint64
	processedBefore    uint64 // inputs processed in all earlier epochs
	voucherHashes     []merkle.Hash
	noticeHashes       []merkle.Hash
	pendingOutputs     []pendingOutput // ordered outputs awaiting a finished epoch's proof pass
}

// pendingOutput is one output already written to the broker, kept around
// until its epoch finishes so its validity proof can be produced.
type pendingOutput struct {
	enum        rollupstypes.RollupsOutputEnum
	inputIndex  uint64
	outputIndex uint64
}

// New builds a Runner. It consumes inputs starting from lastInputID
// (broker.InitialID for a cold start).
func New(
	cfg Config,
	m *machine.Client,
	b *broker.Broker,
	meta broker.DAppMetadata,
	snapshots snapshot.Manager,
	lastInputID string,
	log *logger.Logger,
) *Runner {
	return &Runner{
		cfg:         cfg,
		machine:     m,
		broker:      b,
		meta:        meta,
		snapshots:   snapshots,
		log:         log,
		lastInputID: lastInputID,
	}
}

// ReconcileOnStartup checks the machine session's reported progress against
// the most recently committed snapshot, per original_source's "startup
// reconciliation" step: the two must agree on (epoch, processed input
// count), since a snapshot is only ever committed right after the machine
// itself reports that count.
func (r *Runner) ReconcileOnStartup(ctx context.Context) error {
	status, err := r.machine.GetCurrentEpochStatus(ctx)
	if err != nil {
		return fmt.Errorf("advance runner: get current epoch status: %w", err)
	}
	latest, err := r.snapshots.GetLatest(ctx)
	if err != nil {
		return fmt.Errorf("advance runner: get latest snapshot: %w", err)
	}
	if latest.Path != "" {
		if latest.Epoch != status.EpochNumber || latest.ProcessedInputCount != status.ProcessedInputCount {
			return fmt.Errorf(
				"advance runner: out of sync with machine session: snapshot (epoch %d, %d inputs) != machine (epoch %d, %d inputs)",
				latest.Epoch, latest.ProcessedInputCount, status.EpochNumber, status.ProcessedInputCount,
			)
		}
	}
	r.epochIndex = status.EpochNumber
	r.processedInEpoch = status.ProcessedInputCount
	return nil
}

// Run drains rollups-inputs until ctx is cancelled or a fatal error occurs.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		id, input, err := r.broker.ConsumeInput(ctx, r.meta, r.lastInputID, r.cfg.BlockTimeout)
		if err == broker.ErrConsumeTimeout {
			continue
		}
		if err != nil {
			return fmt.Errorf("advance runner: consume input: %w", err)
		}
		r.lastInputID = id

		switch input.Data.Kind {
		case rollupstypes.RollupsDataAdvanceStateInput:
			if err := r.handleAdvanceStateInput(ctx, input); err != nil {
				return err
			}
		case rollupstypes.RollupsDataFinishEpoch:
			if err := r.handleFinishEpoch(ctx, input); err != nil {
				return err
			}
		default:
			return fmt.Errorf("advance runner: unknown rollups-inputs kind %q", input.Data.Kind)
		}
	}
}

func (r *Runner) handleAdvanceStateInput(ctx context.Context, entry rollupstypes.RollupsInput) error {
	adv := entry.Data.AdvanceState
	inputIndex := adv.Metadata.InputIndex

	if err := r.machine.EnqueueInputs(ctx, entry.EpochIndex, inputIndex, []rollupstypes.Input{{
		Index:      inputIndex,
		Sender:     adv.Metadata.MsgSender,
		Timestamp:  adv.Metadata.Timestamp,
		Payload:    adv.Payload,
		BlockAdded: adv.Metadata.BlockNumber,
		TxHash:     adv.TxHash,
	}}); err != nil {
		return fmt.Errorf("advance runner: enqueue input %d: %w", inputIndex, err)
	}

	results, err := r.drainPendingInputs(ctx)
	if err != nil {
		return err
	}

	for _, result := range results {
		if err := r.writeResultOutputs(ctx, result); err != nil {
			return err
		}
	}
	r.processedInEpoch++
	return nil
}

// errInputsStillPending signals drainPendingInputs' retry loop to poll
// again; it never escapes drainPendingInputs itself.
var errInputsStillPending = errors.New("advance runner: machine still has pending inputs")

// drainPendingInputsRetry bounds how long drainPendingInputs polls the
// machine for a still-pending input queue, per spec.md §4.3's
// bounded-retry extraction: a machine session that never finishes
// processing becomes a fatal error instead of hanging the runner forever.
var drainPendingInputsRetry = resilience.RetryConfig{
	MaxAttempts:  1200, // ~2 minutes of polling at the capped 100ms delay
	InitialDelay: 100 * time.Millisecond,
	MaxDelay:     100 * time.Millisecond,
	Multiplier:   1,
	Jitter:       0.1,
}

// drainPendingInputs polls the machine until it has processed every input
// enqueued so far this call, per spec.md §4.3's bounded-retry extraction.
func (r *Runner) drainPendingInputs(ctx context.Context) ([]machine.AdvanceResult, error) {
	var all []machine.AdvanceResult
	err := resilience.Retry(ctx, drainPendingInputsRetry, func() error {
		results, pending, err := r.machine.PollPendingInputs(ctx)
		if err != nil {
			return fmt.Errorf("advance runner: poll pending inputs: %w", err)
		}
		all = append(all, results...)
		if pending == 0 {
			return nil
		}
		return errInputsStillPending
	})
	if err != nil {
		return nil, fmt.Errorf("advance runner: drain pending inputs: %w", err)
	}
	return all, nil
}

func (r *Runner) writeResultOutputs(ctx context.Context, result machine.AdvanceResult) error {
	for i, v := range result.Vouchers {
		dest, err := rollupstypes.ParseAddress20(v.Destination)
		if err != nil {
			return fmt.Errorf("advance runner: voucher destination: %w", err)
		}
		outputIndex := uint64(len(r.voucherHashes))
		if _, err := r.broker.ProduceOutput(ctx, r.meta, rollupstypes.NewVoucher(rollupstypes.RollupsVoucher{
			Index:       outputIndex,
			InputIndex:  result.InputIndex,
			Destination: dest,
			Payload:     v.Payload,
		})); err != nil {
			return fmt.Errorf("advance runner: produce voucher %d: %w", i, err)
		}
		r.voucherHashes = append(r.voucherHashes, merkle.ComputeVoucherHash(dest[:], v.Payload))
		r.pendingOutputs = append(r.pendingOutputs, pendingOutput{
			enum: rollupstypes.OutputEnumVoucher, inputIndex: result.InputIndex, outputIndex: outputIndex,
		})
	}

	for i, n := range result.Notices {
		outputIndex := uint64(len(r.noticeHashes))
		if _, err := r.broker.ProduceOutput(ctx, r.meta, rollupstypes.NewNotice(rollupstypes.RollupsNotice{
			Index:      outputIndex,
			InputIndex: result.InputIndex,
			Payload:    n.Payload,
		})); err != nil {
			return fmt.Errorf("advance runner: produce notice %d: %w", i, err)
		}
		r.noticeHashes = append(r.noticeHashes, merkle.ComputeNoticeHash(n.Payload))
		r.pendingOutputs = append(r.pendingOutputs, pendingOutput{
			enum: rollupstypes.OutputEnumNotice, inputIndex: result.InputIndex, outputIndex: outputIndex,
		})
	}

	for i, rep := range result.Reports {
		if _, err := r.broker.ProduceOutput(ctx, r.meta, rollupstypes.NewReport(rollupstypes.RollupsReport{
			Index:      uint64(i),
			InputIndex: result.InputIndex,
			Payload:    rep.Payload,
		})); err != nil {
			return fmt.Errorf("advance runner: produce report %d: %w", i, err)
		}
	}

	return nil
}

func (r *Runner) handleFinishEpoch(ctx context.Context, entry rollupstypes.RollupsInput) error {
	processedTotal := r.processedBefore + r.processedInEpoch
	if entry.InputsSentCount != processedTotal {
		return fmt.Errorf(
			"advance runner: out of sync: dispatcher sent %d inputs in total, machine processed %d",
			entry.InputsSentCount, processedTotal,
		)
	}

	if err := r.machine.FinishEpoch(ctx, r.epochIndex, r.processedInEpoch); err != nil {
		return fmt.Errorf("advance runner: finish epoch %d: %w", r.epochIndex, err)
	}

	machineStateHash, err := r.machine.GetEpochClaim(ctx, r.epochIndex)
	if err != nil {
		return fmt.Errorf("advance runner: get epoch claim %d: %w", r.epochIndex, err)
	}

	vouchersTree, err := merkle.NewCompleteTree(r.voucherHashes, log2OutputsRootSize, log2OutputsWordSize)
	if err != nil {
		return fmt.Errorf("advance runner: build vouchers tree: %w", err)
	}
	vouchersRoot, err := vouchersTree.Root()
	if err != nil {
		return err
	}

	noticesTree, err := merkle.NewCompleteTree(r.noticeHashes, log2OutputsRootSize, log2OutputsWordSize)
	if err != nil {
		return fmt.Errorf("advance runner: build notices tree: %w", err)
	}
	noticesRoot, err := noticesTree.Root()
	if err != nil {
		return err
	}

	epochHash := merkle.Keccak256Concat(machineStateHash[:], vouchersRoot[:], noticesRoot[:])

	firstIndex, lastIndex := epochOutputRange(r.pendingOutputs)
	claim := rollupstypes.RollupsClaim{
		EpochIndex: r.epochIndex,
		EpochHash:  rollupstypes.Hash32(epochHash),
		FirstIndex: firstIndex,
		LastIndex:  lastIndex,
	}
	if _, err := r.broker.ProduceClaim(ctx, r.meta, claim); err != nil {
		return fmt.Errorf("advance runner: produce claim: %w", err)
	}

	if err := r.writeProofs(ctx, vouchersTree, noticesTree, machineStateHash, vouchersRoot, noticesRoot); err != nil {
		return err
	}

	if err := r.commitSnapshot(ctx); err != nil {
		return err
	}

	r.log.WithField("epoch_index", r.epochIndex).
		WithField("epoch_hash", rollupstypes.Hash32(epochHash).String()).
		Info("epoch finished")

	r.epochIndex++
	r.processedBefore += r.processedInEpoch
	r.processedInEpoch = 0
	r.voucherHashes = nil
	r.noticeHashes = nil
	r.pendingOutputs = nil
	return nil
}

func (r *Runner) writeProofs(
	ctx context.Context,
	vouchersTree, noticesTree *merkle.CompleteTree,
	machineStateHash, vouchersRoot, noticesRoot merkle.Hash,
) error {
	for _, out := range r.pendingOutputs {
		var (
			siblings []merkle.Hash
			err      error
		)
		switch out.enum {
		case rollupstypes.OutputEnumVoucher:
			siblings, err = vouchersTree.ProofFor(out.outputIndex)
		case rollupstypes.OutputEnumNotice:
			siblings, err = noticesTree.ProofFor(out.outputIndex)
		}
		if err != nil {
			return fmt.Errorf("advance runner: build proof for output %d: %w", out.outputIndex, err)
		}

		hashSiblings := make([]rollupstypes.Hash32, len(siblings))
		for i, s := range siblings {
			hashSiblings[i] = rollupstypes.Hash32(s)
		}

		proof := rollupstypes.RollupsProof{
			InputIndex:  out.inputIndex,
			OutputIndex: out.outputIndex,
			OutputEnum:  out.enum,
			Validity: rollupstypes.RollupsOutputValidityProof{
				InputIndex:              out.inputIndex,
				OutputIndex:             out.outputIndex,
				VouchersEpochRootHash:   rollupstypes.Hash32(vouchersRoot),
				NoticesEpochRootHash:    rollupstypes.Hash32(noticesRoot),
				MachineStateHash:        rollupstypes.Hash32(machineStateHash),
				OutputHashesInEpochSibs: hashSiblings,
			},
		}
		if _, err := r.broker.ProduceOutput(ctx, r.meta, rollupstypes.NewProof(proof)); err != nil {
			return fmt.Errorf("advance runner: produce proof for output %d: %w", out.outputIndex, err)
		}
	}
	return nil
}

func (r *Runner) commitSnapshot(ctx context.Context) error {
	dir, err := r.snapshots.GetStorageDirectory(ctx, r.epochIndex+1, r.processedBefore+r.processedInEpoch)
	if err != nil {
		return fmt.Errorf("advance runner: get storage directory: %w", err)
	}
	// The machine's own store-to-disk call happens inside FinishEpoch against
	// dir.Path in a full deployment; this runner's responsibility ends at
	// repointing the snapshot manager's "latest" pointer to it.
	if err := r.snapshots.SetLatest(ctx, dir); err != nil {
		return fmt.Errorf("advance runner: set latest snapshot: %w", err)
	}
	return nil
}

func epochOutputRange(outputs []pendingOutput) (first, last uint64) {
	if len(outputs) == 0 {
		return 0, 0
	}
	first = outputs[0].outputIndex
	last = outputs[0].outputIndex
	for _, o := range outputs[1:] {
		if o.outputIndex < first {
			first = o.outputIndex
		}
		if o.outputIndex > last {
			last = o.outputIndex
		}
	}
	return first, last
}
