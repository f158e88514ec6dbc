// Package indexer consumes the broker's rollups-inputs and rollups-outputs
// streams and persists them to the relational schema applied by
// internal/platform/migrations, grounded on broker/indexer.rs's two-cursor
// consume loop and the data/ repository idiom of writing natural-keyed,
// idempotent rows.
package indexer

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
)

// Store persists inputs and outputs. Every insert is an idempotent
// ON CONFLICT DO NOTHING against the tables' natural keys, so replaying an
// already-indexed event (e.g. after a restart that resumes an older cursor)
// is a no-op rather than an error.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-open, already-migrated database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertInput persists one rollups-inputs entry's AdvanceStateInput variant.
// FinishEpoch entries carry no row of their own; callers should not call
// InsertInput for them.
func (s *Store) InsertInput(ctx context.Context, input rollupstypes.RollupsInput) error {
	if input.Data.Kind != rollupstypes.RollupsDataAdvanceStateInput {
		return fmt.Errorf("indexer: InsertInput called with non-advance-state input (kind %q)", input.Data.Kind)
	}
	meta := input.Data.AdvanceState.Metadata

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inputs (index, msg_sender, tx_hash, block_number, timestamp, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (index) DO NOTHING`,
		meta.InputIndex,
		meta.MsgSender.Hex(),
		input.Data.AdvanceState.TxHash.Hex(),
		meta.BlockNumber,
		meta.Timestamp,
		input.Data.AdvanceState.Payload,
	)
	if err != nil {
		return fmt.Errorf("indexer: insert input %d: %w", meta.InputIndex, err)
	}
	return nil
}

// InsertOutput persists one rollups-outputs entry. Proof outputs are handed
// to InsertProof, since they target a different table.
func (s *Store) InsertOutput(ctx context.Context, output rollupstypes.RollupsOutput) error {
	switch output.Kind {
	case rollupstypes.RollupsOutputVoucher:
		v := output.Voucher
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO vouchers (input_index, index, destination, payload)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (input_index, index) DO NOTHING`,
			v.InputIndex, v.Index, v.Destination.Hex(), v.Payload,
		)
		if err != nil {
			return fmt.Errorf("indexer: insert voucher (input %d, index %d): %w", v.InputIndex, v.Index, err)
		}
		return nil

	case rollupstypes.RollupsOutputNotice:
		n := output.Notice
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO notices (input_index, index, payload)
			VALUES ($1, $2, $3)
			ON CONFLICT (input_index, index) DO NOTHING`,
			n.InputIndex, n.Index, n.Payload,
		)
		if err != nil {
			return fmt.Errorf("indexer: insert notice (input %d, index %d): %w", n.InputIndex, n.Index, err)
		}
		return nil

	case rollupstypes.RollupsOutputReport:
		r := output.Report
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO reports (input_index, index, payload)
			VALUES ($1, $2, $3)
			ON CONFLICT (input_index, index) DO NOTHING`,
			r.InputIndex, r.Index, r.Payload,
		)
		if err != nil {
			return fmt.Errorf("indexer: insert report (input %d, index %d): %w", r.InputIndex, r.Index, err)
		}
		return nil

	case rollupstypes.RollupsOutputProof:
		return s.InsertProof(ctx, output.Proof)

	default:
		return fmt.Errorf("indexer: insert output: unknown kind %q", output.Kind)
	}
}

// InsertProof persists one per-output Merkle validity proof.
func (s *Store) InsertProof(ctx context.Context, p rollupstypes.RollupsProof) error {
	keccakSibs := hashesToHex(p.Validity.KeccakInHashesSiblings)
	epochSibs := hashesToHex(p.Validity.OutputHashesInEpochSibs)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO proofs (
			input_index, output_index, output_enum,
			output_hashes_root_hash, vouchers_epoch_root_hash, notices_epoch_root_hash,
			machine_state_hash, keccak_in_hashes_siblings, output_hashes_in_epoch_sibs, context
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (input_index, output_index, output_enum) DO NOTHING`,
		p.InputIndex, p.OutputIndex, string(p.OutputEnum),
		p.Validity.OutputHashesRootHash.String(),
		p.Validity.VouchersEpochRootHash.String(),
		p.Validity.NoticesEpochRootHash.String(),
		p.Validity.MachineStateHash.String(),
		pq.Array(keccakSibs),
		pq.Array(epochSibs),
		p.Context,
	)
	if err != nil {
		return fmt.Errorf("indexer: insert proof (input %d, output %d): %w", p.InputIndex, p.OutputIndex, err)
	}
	return nil
}

func hashesToHex(hs []rollupstypes.Hash32) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.String()
	}
	return out
}
