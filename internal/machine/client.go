package machine

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
)

// Deadlines mirrors DeadlineConfig from
// original_source/offchain/advance-runner/src/server_manager/config.rs:
// one context timeout per server-manager call shape.
type Deadlines struct {
	Checkin               time.Duration
	AdvanceState          time.Duration
	AdvanceStateIncrement time.Duration
	InspectState          time.Duration
	InspectStateIncrement time.Duration
	Machine               time.Duration
	Store                 time.Duration
	Fast                  time.Duration
}

// DefaultDeadlines matches the CLI defaults the Rust config documents.
func DefaultDeadlines() Deadlines {
	return Deadlines{
		Checkin:               5 * time.Minute,
		AdvanceState:          10 * time.Minute,
		AdvanceStateIncrement: time.Minute,
		InspectState:          10 * time.Minute,
		InspectStateIncrement: time.Minute,
		Machine:               time.Minute,
		Store:                 3 * time.Minute,
		Fast:                  5 * time.Second,
	}
}

// Config configures Client.
type Config struct {
	BaseURL    string
	Deadlines  Deadlines
	HTTPClient *http.Client
}

// Client talks to the machine server manager over HTTP/JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	deadlines  Deadlines
}

// New builds a Client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: cfg.BaseURL, httpClient: httpClient, deadlines: cfg.Deadlines}
}

func (c *Client) post(ctx context.Context, timeout time.Duration, path string, req, resp interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("machine: marshal request: %w", err)
	}

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("machine: build request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("machine: do request: %w", err)
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 32<<20))
		if err != nil {
			return fmt.Errorf("machine: read response: %w", err)
		}

		if httpResp.StatusCode != http.StatusOK {
			return fmt.Errorf("machine: %s: %s", httpResp.Status, string(respBody))
		}
		if resp != nil {
			if err := json.Unmarshal(respBody, resp); err != nil {
				return backoff.Permanent(fmt.Errorf("machine: unmarshal response: %w", err))
			}
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
}

// GetCurrentEpochStatus fetches the machine's current epoch progress.
func (c *Client) GetCurrentEpochStatus(ctx context.Context) (EpochStatus, error) {
	var status EpochStatus
	if err := c.post(ctx, c.deadlines.Fast, "/epoch-status", struct{}{}, &status); err != nil {
		return EpochStatus{}, fmt.Errorf("machine: get current epoch status: %w", err)
	}
	return status, nil
}

// EnqueueInputs sends a contiguous batch of inputs for the machine to
// process, starting at firstInputIndex within epochNumber.
func (c *Client) EnqueueInputs(ctx context.Context, epochNumber, firstInputIndex uint64, inputs []rollupstypes.Input) error {
	req := enqueueInputsRequest{EpochNumber: epochNumber, FirstInputIndex: firstInputIndex}
	for _, in := range inputs {
		req.Inputs = append(req.Inputs, enqueueOneInput{
			MsgSender: in.Sender.Hex(),
			Payload:   in.Payload,
			Timestamp: in.Timestamp,
		})
	}
	if err := c.post(ctx, c.deadlines.AdvanceState, "/enqueue-inputs", req, nil); err != nil {
		return fmt.Errorf("machine: enqueue inputs: %w", err)
	}
	return nil
}

// PollPendingInputs returns every AdvanceResult the machine has finished
// processing since the last poll, in input order, and how many remain
// pending.
func (c *Client) PollPendingInputs(ctx context.Context) ([]AdvanceResult, int, error) {
	var resp pendingInputsResponse
	if err := c.post(ctx, c.deadlines.Fast, "/pending-inputs", struct{}{}, &resp); err != nil {
		return nil, 0, fmt.Errorf("machine: poll pending inputs: %w", err)
	}
	return resp.Results, resp.Pending, nil
}

// FinishEpoch may only be called once pendingInputCount is zero and
// processedInputCount equals inputCount for epochNumber.
func (c *Client) FinishEpoch(ctx context.Context, epochNumber, inputCount uint64) error {
	req := finishEpochRequest{EpochNumber: epochNumber, InputCount: inputCount}
	if err := c.post(ctx, c.deadlines.Store, "/finish-epoch", req, nil); err != nil {
		return fmt.Errorf("machine: finish epoch %d: %w", epochNumber, err)
	}
	return nil
}

// GetEpochClaim returns the machine state hash for epochNumber. Must only
// be called after FinishEpoch for that epoch.
func (c *Client) GetEpochClaim(ctx context.Context, epochNumber uint64) (rollupstypes.Hash32, error) {
	var resp epochClaimResponse
	if err := c.post(ctx, c.deadlines.Fast, fmt.Sprintf("/epoch-claim/%d", epochNumber), struct{}{}, &resp); err != nil {
		return rollupstypes.Hash32{}, fmt.Errorf("machine: get epoch claim %d: %w", epochNumber, err)
	}
	decoded, err := hex.DecodeString(trimHexPrefix(resp.EpochHash))
	if err != nil || len(decoded) != 32 {
		return rollupstypes.Hash32{}, fmt.Errorf("machine: malformed epoch hash %q", resp.EpochHash)
	}
	return rollupstypes.BytesToHash32(decoded), nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
