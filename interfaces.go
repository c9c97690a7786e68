// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Adapter is the transport used to physically relay a batch to a remote
// chain. Adapters are untrusted: they may be slow, fail, or attempt to
// re-enter the gateway mid-dispatch.
type Adapter interface {
	// Estimate returns the cost of relaying payload to chain with the
	// given execution gas limit.
	Estimate(ctx context.Context, chain ChainID, payload []byte, gasLimit uint64) (*uint256.Int, error)

	// Send relays payload to chain, forwarding value as payment. Excess
	// or failed-delivery compensation flows to refund on the remote side.
	Send(ctx context.Context, chain ChainID, payload []byte, gasLimit uint64, refund common.Address, value *uint256.Int) error
}

// Processor is the application-level interpreter invoked once per
// individual message during inbound processing. It may fail; the gateway
// records the failure and keeps the message retryable.
type Processor interface {
	Handle(ctx context.Context, chain ChainID, message Message) error
}

// MessageProperties reports the envelope-level attributes of encoded
// messages. The gateway never interprets message bodies itself.
type MessageProperties interface {
	// MessageLength returns the encoded length of the message at the start
	// of buf.
	MessageLength(buf []byte) (int, error)

	// MessagePoolID returns the pool the message is scoped to, or 0 for
	// globally scoped messages.
	MessagePoolID(message Message) (PoolID, error)

	// MessageProcessingGasLimit returns the execution budget for
	// processing the message on chain.
	MessageProcessingGasLimit(chain ChainID, message Message) (uint64, error)

	// MessageOverallGasLimit returns processing plus base dispatch cost.
	MessageOverallGasLimit(chain ChainID, message Message) (uint64, error)

	// MaxBatchGasLimit returns the per-batch gas ceiling for chain.
	MaxBatchGasLimit(chain ChainID) uint64
}

// Pauser is the global circuit breaker checked at the top of every
// state-mutating gateway entry point.
type Pauser interface {
	Paused() bool
}

// Refund receives excess payments. Pay may fail, in which case the
// triggering operation fails with ErrCannotRefund.
type Refund interface {
	Addr() common.Address
	Pay(amount *uint256.Int) error
}

// EventSink receives the gateway's wire-visible events.
type EventSink interface {
	Emit(ev Event)
}
