package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
)

// QueryLimitErrors lists substrings that identify a provider's "range too
// large" rejection. Providers do not standardize an error code for this, so
// this is a best-effort substring match, same as production RPC clients
// (e.g. the op-stack L1 client's "backend" error classification) typically
// do.
var QueryLimitErrors = []string{
	"query returned more than",
	"limit exceeded",
	"block range is too large",
	"exceeds the range",
}

func isQueryLimitError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, needle := range QueryLimitErrors {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// FetchLogsPartitioned bulk-fetches logs over [from, to], bisecting the
// range and retrying concurrently (bounded by fanout) whenever the provider
// signals the range was too large. Partial failures are joined into one
// composite error naming each failed sub-range.
func FetchLogsPartitioned(ctx context.Context, c Client, q LogQuery, fanout int) ([]types.Log, error) {
	if fanout < 1 {
		fanout = 1
	}
	logs, err := c.FilterLogs(ctx, q)
	if err == nil {
		return logs, nil
	}
	if !isQueryLimitError(err) || q.FromBlock >= q.ToBlock {
		return nil, err
	}

	mid := q.FromBlock + (q.ToBlock-q.FromBlock)/2
	left := q
	left.ToBlock = mid
	right := q
	right.FromBlock = mid + 1

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanout)

	var leftLogs, rightLogs []types.Log
	var leftErr, rightErr error
	g.Go(func() error {
		l, err := FetchLogsPartitioned(gctx, c, left, fanout)
		if err != nil {
			leftErr = fmt.Errorf("range [%d,%d]: %w", left.FromBlock, left.ToBlock, err)
			return nil
		}
		leftLogs = l
		return nil
	})
	g.Go(func() error {
		l, err := FetchLogsPartitioned(gctx, c, right, fanout)
		if err != nil {
			rightErr = fmt.Errorf("range [%d,%d]: %w", right.FromBlock, right.ToBlock, err)
			return nil
		}
		rightLogs = l
		return nil
	})
	_ = g.Wait()
	if err := errors.Join(leftErr, rightErr); err != nil {
		return nil, fmt.Errorf("chain: partitioned log fetch: %w", err)
	}
	return append(leftLogs, rightLogs...), nil
}
