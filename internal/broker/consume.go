package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// rawEntry is one stream's next entry past a cursor.
type rawEntry struct {
	streamKey string
	id        string
	encoded   []byte
}

// xread performs one blocking XREAD across streams, each at its paired
// cursor in lastIDs, returning every entry returned across all streams.
// blockTimeout of 0 blocks indefinitely, matching redis's own convention.
func (b *Broker) xread(ctx context.Context, streamKeys []string, lastIDs []string, blockTimeout time.Duration) ([]rawEntry, error) {
	if len(streamKeys) != len(lastIDs) {
		return nil, fmt.Errorf("broker: xread: mismatched stream/cursor counts")
	}

	args := &redis.XReadArgs{
		Streams: append(append([]string(nil), streamKeys...), lastIDs...),
		Count:   1,
		Block:   blockTimeout,
	}

	result, err := b.client.XRead(ctx, args).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("broker: xread: %w", err)
	}

	var entries []rawEntry
	for _, stream := range result {
		for _, msg := range stream.Messages {
			encoded, decodeErr := decodePayloadField(msg.Values)
			if decodeErr != nil {
				return nil, decodeErr
			}
			entries = append(entries, rawEntry{streamKey: stream.Stream, id: msg.ID, encoded: encoded})
		}
	}
	return entries, nil
}

// ErrConsumeTimeout is returned by Consume/Indexer consume helpers when
// blockTimeout elapses with nothing new on any watched stream.
var ErrConsumeTimeout = fmt.Errorf("broker: consume timed out")

// consumeOne blocks for the next entry on stream strictly after lastID.
func (b *Broker) consumeOne(ctx context.Context, stream Stream, lastID string, blockTimeout time.Duration) (id string, encoded []byte, err error) {
	entries, err := b.xread(ctx, []string{stream.key}, []string{lastID}, blockTimeout)
	if err != nil {
		return "", nil, err
	}
	if len(entries) == 0 {
		return "", nil, ErrConsumeTimeout
	}
	return entries[0].id, entries[0].encoded, nil
}

// pollOne returns the next entry on stream strictly after lastID if one is
// already available, without blocking — used by the dispatcher's
// BlockchainDriver, which drains whatever claims are currently queued once
// per confirmed block rather than waiting for new ones, per
// original_source/offchain/dispatcher/src/drivers/blockchain.rs's
// `while let Some(claim) = broker.next_claim().await?`.
func (b *Broker) pollOne(ctx context.Context, stream Stream, lastID string) (id string, encoded []byte, ok bool, err error) {
	start := "-"
	if lastID != "" {
		start = "(" + lastID
	}
	entries, err := b.client.XRangeN(ctx, stream.key, start, "+", 1).Result()
	if err != nil {
		return "", nil, false, fmt.Errorf("broker: poll %s: %w", stream.key, err)
	}
	if len(entries) == 0 {
		return "", nil, false, nil
	}
	encoded, err = decodePayloadField(entries[0].Values)
	if err != nil {
		return "", nil, false, err
	}
	return entries[0].ID, encoded, true, nil
}
