package claimer

import (
	"context"
	"fmt"

	"github.com/cartesi/rollups-sub002/pkg/logger"
)

// Claimer runs the authority claimer's event loop: wait for a claim,
// submit it, repeat — grounded on
// original_source/offchain/authority-claimer/src/claimer.rs's
// AuthorityClaimer trait default `start` method.
type Claimer struct {
	listener *BrokerListener
	sender   ClaimSender
	log      *logger.Logger
}

// New builds a Claimer over listener and an initial sender.
func New(listener *BrokerListener, sender ClaimSender, log *logger.Logger) *Claimer {
	return &Claimer{listener: listener, sender: sender, log: log}
}

// Run blocks, processing claims until ctx is cancelled or a fatal sender
// error occurs. Listener errors are logged and the loop retries, per
// spec.md §4.4 ("listener errors are logged and the loop retries").
func (c *Claimer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		claim, err := c.listener.Listen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.WithField("error", err).Warn("broker listener error")
			continue
		}

		c.log.WithField("epoch_index", claim.EpochIndex).Info("got a claim from the broker")
		sender, err := c.sender.Send(ctx, claim)
		if err != nil {
			return fmt.Errorf("claimer: fatal sender error: %w", err)
		}
		c.sender = sender
	}
}
