// Package broker wraps Redis Streams as the append-only event log shared by
// every rollups role, grounded on
// original_source/offchain/rollups-events/src/{rollups_stream.rs,broker/indexer.rs}.
// All Redis interaction is confined to this package; callers only see
// typed stream handles and payloads.
package broker

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
)

// InitialID is the Redis stream ID meaning "nothing consumed yet", matching
// rollups_stream.rs's INITIAL_ID constant (redis calls this "$" for
// new-only reads or "0" for from-genesis; Cartesi's broker always reads
// from genesis on a cold start).
const InitialID = "0"

// DAppMetadata identifies the chain and DApp whose streams a Broker talks
// to, used to derive every stream key.
type DAppMetadata struct {
	ChainID     uint64
	DAppAddress rollupstypes.Address20
}

// streamKey renders "chain-<chain_id>:dapp-<hex_address>:<name>", the
// format decl_broker_stream! generates in rollups_stream.rs.
func streamKey(meta DAppMetadata, name string) string {
	return fmt.Sprintf("chain-%d:dapp-%s:%s", meta.ChainID, hex.EncodeToString(meta.DAppAddress[:]), name)
}

// Stream is a typed handle to one Redis stream: a DApp's inputs, outputs,
// or claims.
type Stream struct {
	key string
}

// Key returns the underlying Redis stream key.
func (s Stream) Key() string { return s.key }

// InputsStream returns the handle for a DApp's RollupsInput stream.
func InputsStream(meta DAppMetadata) Stream { return Stream{key: streamKey(meta, "rollups-inputs")} }

// OutputsStream returns the handle for a DApp's RollupsOutput stream.
func OutputsStream(meta DAppMetadata) Stream { return Stream{key: streamKey(meta, "rollups-outputs")} }

// ClaimsStream returns the handle for a DApp's RollupsClaim stream.
func ClaimsStream(meta DAppMetadata) Stream { return Stream{key: streamKey(meta, "rollups-claims")} }

// Event pairs a stream ID with its decoded payload, mirroring broker.rs's
// Event<T>.
type Event[Payload any] struct {
	ID      string
	Payload Payload
}

// Broker is a typed Redis Streams client for one chain/DApp pair.
type Broker struct {
	client *redis.Client
}

// New dials Redis at addr using the given password and DB index.
func New(ctx context.Context, addr, password string, db int) (*Broker, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("broker: connect to redis: %w", err)
	}
	return &Broker{client: client}, nil
}

// Close releases the underlying Redis connection.
func (b *Broker) Close() error { return b.client.Close() }

// payloadField is the single field name every stream entry stores its
// encoded payload under.
const payloadField = "payload"

// produce appends an encoded payload to stream and returns the new entry's
// ID.
func (b *Broker) produce(ctx context.Context, stream Stream, encoded []byte) (string, error) {
	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream.key,
		Values: map[string]interface{}{payloadField: encoded},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("broker: produce to %s: %w", stream.key, err)
	}
	return id, nil
}

// peekLatest returns the most recently produced entry on stream, or ok=false
// if the stream is empty.
func (b *Broker) peekLatest(ctx context.Context, stream Stream) (id string, encoded []byte, ok bool, err error) {
	entries, err := b.client.XRevRangeN(ctx, stream.key, "+", "-", 1).Result()
	if err != nil {
		return "", nil, false, fmt.Errorf("broker: peek latest on %s: %w", stream.key, err)
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

func decodePayloadField(values map[string]interface{}) ([]byte, error) {
	raw, ok := values[payloadField]
	if !ok {
		return nil, fmt.Errorf("broker: stream entry missing %q field", payloadField)
	}
	switch v := raw.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("broker: stream entry %q field has unexpected type %T", payloadField, raw)
	}
}
