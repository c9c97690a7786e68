// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
)

// Call is one sub-call of a multicall, executed against the component
// that exposed the multicall entry point.
type Call func(ctx context.Context, tx *Transaction) error

// BatchedMulticall executes a list of sub-calls as one atomic unit inside
// a single batching window, while presenting a stable logical sender and
// payment to the sub-calls. A nested invocation while a multicall frame
// is open is rejected unless it was issued by the gateway itself, which
// blocks an attacker from re-entering mid-batch to impersonate the
// original sender.
type BatchedMulticall struct {
	log log.Logger
	gw  *Gateway
}

// NewBatchedMulticall creates a BatchedMulticall bound to gw.
func NewBatchedMulticall(logger log.Logger, gw *Gateway) *BatchedMulticall {
	return &BatchedMulticall{log: logger, gw: gw}
}

// Multicall runs calls in order under one sender/value frame. Cross-chain
// sends triggered by the sub-calls are flushed as one outbound unit when
// the last call returns. A sub-call failure aborts the whole multicall,
// propagating the original failure (or ErrCallFailedWithEmptyRevert when
// the failure carries no reason).
func (m *BatchedMulticall) Multicall(
	ctx context.Context,
	tx *Transaction,
	caller common.Address,
	value *uint256.Int,
	refund Refund,
	calls []Call,
) error {
	if tx.inMulticall() && caller != m.gw.Addr() {
		return ErrAlreadyBatching
	}
	if tx.dispatching {
		return ErrReentrantBatchCreation
	}

	val := uint256.NewInt(0)
	if value != nil {
		val.Set(value)
	}
	tx.pushFrame(caller, val)
	defer tx.popFrame()

	opened := false
	if !tx.batching {
		if err := m.gw.StartBatching(tx); err != nil {
			return err
		}
		opened = true
	}

	for _, call := range calls {
		if err := call(ctx, tx); err != nil {
			if opened {
				tx.clear()
			}
			if err.Error() == "" {
				return ErrCallFailedWithEmptyRevert
			}
			return err
		}
	}

	if !opened {
		return nil
	}
	if len(tx.locators) == 0 {
		tx.clear()
		return m.gw.refundExcess(val, refund)
	}
	return m.gw.EndBatching(ctx, tx, val, refund)
}

// MsgSender returns the logical sender presented to the sub-calls: the
// original top-level caller, never the component itself.
func (m *BatchedMulticall) MsgSender(tx *Transaction) (common.Address, bool) {
	f, ok := tx.currentFrame()
	if !ok {
		return common.Address{}, false
	}
	return f.sender, true
}

// MsgValue returns the payment attached to the current multicall frame.
func (m *BatchedMulticall) MsgValue(tx *Transaction) (*uint256.Int, bool) {
	f, ok := tx.currentFrame()
	if !ok {
		return nil, false
	}
	return f.value, true
}
