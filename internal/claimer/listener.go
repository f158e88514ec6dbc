package claimer

import (
	"context"
	"time"

	"github.com/cartesi/rollups-sub002/internal/broker"
	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
)

// BrokerListener yields RollupsClaim events off the broker's claims stream,
// one at a time, grounded on
// original_source/offchain/authority-claimer/src/listener.rs.
type BrokerListener struct {
	b        *broker.Broker
	meta     broker.DAppMetadata
	lastID   string
	block    time.Duration
}

// NewBrokerListener starts listening from the claims stream's genesis.
func NewBrokerListener(b *broker.Broker, meta broker.DAppMetadata, blockTimeout time.Duration) *BrokerListener {
	return &BrokerListener{b: b, meta: meta, lastID: broker.InitialID, block: blockTimeout}
}

// Listen blocks until the next RollupsClaim is available, yielding to the
// broker rather than busy-waiting, per listener.rs's doc comment.
func (l *BrokerListener) Listen(ctx context.Context) (rollupstypes.RollupsClaim, error) {
	for {
		id, claim, err := l.b.ConsumeClaim(ctx, l.meta, l.lastID, l.block)
		if err == broker.ErrConsumeTimeout {
			continue
		}
		if err != nil {
			return rollupstypes.RollupsClaim{}, err
		}
		l.lastID = id
		return claim, nil
	}
}
