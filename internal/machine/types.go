// Package machine is a thin client for the Cartesi machine server manager
// that the advance runner drives, shaped as a JSON/HTTP request-response
// facade rather than the original's gRPC stack (the example pack carries
// no gRPC client library), grounded on the teacher's
// infrastructure/txproxy/client request/response idiom. Field and method
// names follow original_source/offchain/dispatcher/src/machine/mod.rs's
// MachineInterface trait.
package machine

// EpochStatus reports the active epoch's progress, mirroring
// MachineInterface::get_current_epoch_status.
type EpochStatus struct {
	EpochNumber         uint64 `json:"epoch_number"`
	ProcessedInputCount uint64 `json:"processed_input_count"`
	PendingInputCount   uint64 `json:"pending_input_count"`
	IsActive            bool   `json:"is_active"`
}

// enqueueInputsRequest is the wire shape for EnqueueInputs.
type enqueueInputsRequest struct {
	EpochNumber     uint64            `json:"epoch_number"`
	FirstInputIndex uint64            `json:"first_input_index"`
	Inputs          []enqueueOneInput `json:"inputs"`
}

type enqueueOneInput struct {
	MsgSender string `json:"msg_sender"`
	Payload   []byte `json:"payload"`
	Timestamp uint64 `json:"timestamp"`
}

// finishEpochRequest is the wire shape for FinishEpoch.
type finishEpochRequest struct {
	EpochNumber uint64 `json:"epoch_number"`
	InputCount  uint64 `json:"input_count"`
}

// epochClaimResponse is the wire shape for GetEpochClaim.
type epochClaimResponse struct {
	EpochHash string `json:"epoch_hash"`
}

// AdvanceResult is one processed input's outputs, in the order the machine
// emitted them within that input.
type AdvanceResult struct {
	InputIndex uint64   `json:"input_index"`
	Vouchers   []Output `json:"vouchers"`
	Notices    []Output `json:"notices"`
	Reports    []Output `json:"reports"`
	Accepted   bool     `json:"accepted"`
}

// Output is one voucher/notice/report payload, destination only set for
// vouchers.
type Output struct {
	Destination string `json:"destination,omitempty"`
	Payload     []byte `json:"payload"`
}

// pendingInputsResponse is the wire shape polled after EnqueueInputs to
// drain processed results in input order.
type pendingInputsResponse struct {
	Results []AdvanceResult `json:"results"`
	Pending int             `json:"pending"`
}
