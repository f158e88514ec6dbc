package rollupstypes

import "github.com/ethereum/go-ethereum/common"

// InitialParentID is the sentinel parent_id attached to the first entry of
// every broker stream.
const InitialParentID = "INITIAL"

// InputMetadata carries the information sent via the input metadata memory
// range, per spec.md §6's rollups-inputs payload.
type InputMetadata struct {
	MsgSender   Address20 `json:"msg_sender"`
	BlockNumber uint64    `json:"block_number"`
	Timestamp   uint64    `json:"timestamp"`
	EpochIndex  uint64    `json:"epoch_index"`
	InputIndex  uint64    `json:"input_index"`
}

// RollupsAdvanceStateInput is the AdvanceStateInput variant of RollupsData.
type RollupsAdvanceStateInput struct {
	Metadata InputMetadata `json:"metadata"`
	Payload  []byte        `json:"payload"`
	TxHash   common.Hash   `json:"tx_hash"`
}

// RollupsDataKind discriminates the RollupsData tagged union.
type RollupsDataKind string

const (
	RollupsDataAdvanceStateInput RollupsDataKind = "advance_state_input"
	RollupsDataFinishEpoch       RollupsDataKind = "finish_epoch"
)

// RollupsData is the closed tagged union carried by every rollups-inputs
// entry: either an AdvanceStateInput or a FinishEpoch marker. Modeled as a
// concrete struct with a Kind discriminator (per spec.md §9 — "tagged
// variants vs dynamic dispatch" — rather than an interface hierarchy).
type RollupsData struct {
	Kind           RollupsDataKind          `json:"kind"`
	AdvanceState   RollupsAdvanceStateInput `json:"advance_state,omitempty"`
}

// NewAdvanceStateInput builds an AdvanceStateInput RollupsData value.
func NewAdvanceStateInput(v RollupsAdvanceStateInput) RollupsData {
	return RollupsData{Kind: RollupsDataAdvanceStateInput, AdvanceState: v}
}

// NewFinishEpoch builds a FinishEpoch RollupsData value.
func NewFinishEpoch() RollupsData {
	return RollupsData{Kind: RollupsDataFinishEpoch}
}

// RollupsInput is one rollups-inputs stream entry.
type RollupsInput struct {
	ParentID        string      `json:"parent_id"`
	EpochIndex      uint64      `json:"epoch_index"`
	InputsSentCount uint64      `json:"inputs_sent_count"`
	Data            RollupsData `json:"data"`
}

// RollupsOutputKind discriminates the RollupsOutput tagged union.
type RollupsOutputKind string

const (
	RollupsOutputVoucher RollupsOutputKind = "voucher"
	RollupsOutputNotice  RollupsOutputKind = "notice"
	RollupsOutputReport  RollupsOutputKind = "report"
	RollupsOutputProof   RollupsOutputKind = "proof"
)

// RollupsVoucher is one voucher output.
type RollupsVoucher struct {
	Index       uint64    `json:"index"`
	InputIndex  uint64    `json:"input_index"`
	Destination Address20 `json:"destination"`
	Payload     []byte    `json:"payload"`
}

// RollupsNotice is one notice output.
type RollupsNotice struct {
	Index      uint64 `json:"index"`
	InputIndex uint64 `json:"input_index"`
	Payload    []byte `json:"payload"`
}

// RollupsReport is one report output.
type RollupsReport struct {
	Index      uint64 `json:"index"`
	InputIndex uint64 `json:"input_index"`
	Payload    []byte `json:"payload"`
}

// RollupsOutputEnum names which output kind a RollupsProof validates.
type RollupsOutputEnum string

const (
	OutputEnumVoucher RollupsOutputEnum = "voucher"
	OutputEnumNotice  RollupsOutputEnum = "notice"
)

// RollupsOutputValidityProof is the Merkle validity proof for one output.
type RollupsOutputValidityProof struct {
	InputIndex               uint64   `json:"input_index"`
	OutputIndex              uint64   `json:"output_index"`
	OutputHashesRootHash     Hash32   `json:"output_hashes_root_hash"`
	VouchersEpochRootHash    Hash32   `json:"vouchers_epoch_root_hash"`
	NoticesEpochRootHash     Hash32   `json:"notices_epoch_root_hash"`
	MachineStateHash         Hash32   `json:"machine_state_hash"`
	KeccakInHashesSiblings   []Hash32 `json:"keccak_in_hashes_siblings"`
	OutputHashesInEpochSibs  []Hash32 `json:"output_hashes_in_epoch_siblings"`
}

// RollupsProof is one per-output Merkle proof.
type RollupsProof struct {
	InputIndex  uint64                      `json:"input_index"`
	OutputIndex uint64                      `json:"output_index"`
	OutputEnum  RollupsOutputEnum           `json:"output_enum"`
	Validity    RollupsOutputValidityProof  `json:"validity"`
	Context     []byte                      `json:"context"`
}

// RollupsOutput is the closed tagged union of the four output kinds the
// machine emits per input or per epoch.
type RollupsOutput struct {
	Kind    RollupsOutputKind `json:"kind"`
	Voucher RollupsVoucher    `json:"voucher,omitempty"`
	Notice  RollupsNotice     `json:"notice,omitempty"`
	Report  RollupsReport     `json:"report,omitempty"`
	Proof   RollupsProof      `json:"proof,omitempty"`
}

// NewVoucher builds a Voucher RollupsOutput value.
func NewVoucher(v RollupsVoucher) RollupsOutput { return RollupsOutput{Kind: RollupsOutputVoucher, Voucher: v} }

// NewNotice builds a Notice RollupsOutput value.
func NewNotice(n RollupsNotice) RollupsOutput { return RollupsOutput{Kind: RollupsOutputNotice, Notice: n} }

// NewReport builds a Report RollupsOutput value.
func NewReport(r RollupsReport) RollupsOutput { return RollupsOutput{Kind: RollupsOutputReport, Report: r} }

// NewProof builds a Proof RollupsOutput value.
func NewProof(p RollupsProof) RollupsOutput { return RollupsOutput{Kind: RollupsOutputProof, Proof: p} }

// RollupsClaim is one rollups-claims stream entry: the event generated when
// an epoch finishes.
type RollupsClaim struct {
	EpochIndex uint64 `json:"epoch_index"`
	EpochHash  Hash32 `json:"epoch_hash"`
	FirstIndex uint64 `json:"first_index"`
	LastIndex  uint64 `json:"last_index"`
}
