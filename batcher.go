// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
)

// CrosschainBatcher lets any component run its own logic inside a
// batching window without talking to the gateway's window machinery
// directly. WithBatch opens the window, invokes the caller's callback and
// closes the window; the callback proves it is executing synchronously
// within the batch it initiated by consuming the lock via LockCallback.
type CrosschainBatcher struct {
	log log.Logger
	gw  *Gateway
}

// NewBatcher creates a CrosschainBatcher bound to gw.
func NewBatcher(logger log.Logger, gw *Gateway) *CrosschainBatcher {
	return &CrosschainBatcher{log: logger, gw: gw}
}

// WithBatch runs fn inside a batching window on behalf of caller.
// callbackValue is reserved for the callback and handed back by
// LockCallback; the remainder of value funds the batch flush. fn must
// consume the lock exactly once. Nested WithBatch calls join the outer
// window: their sends flush when the outermost batch closes, while their
// value remainder is refunded independently.
func (b *CrosschainBatcher) WithBatch(
	ctx context.Context,
	tx *Transaction,
	caller common.Address,
	value *uint256.Int,
	callbackValue *uint256.Int,
	refund Refund,
	fn func(ctx context.Context, tx *Transaction) error,
) error {
	val := uint256.NewInt(0)
	if value != nil {
		val.Set(value)
	}
	cbv := uint256.NewInt(0)
	if callbackValue != nil {
		cbv.Set(callbackValue)
	}
	if val.Lt(cbv) {
		return ErrNotEnoughValueForCallback
	}

	nested := tx.batching
	if !nested {
		if err := b.gw.StartBatching(tx); err != nil {
			return err
		}
	}

	tx.pushLock(caller, cbv)
	if err := fn(ctx, tx); err != nil {
		if l, ok := tx.peekLock(); ok && l.holder == caller {
			tx.popLock()
		}
		if !nested {
			tx.clear()
		}
		if err.Error() == "" {
			return ErrCallFailedWithEmptyRevert
		}
		return err
	}

	if l, ok := tx.peekLock(); ok && l.holder == caller {
		tx.popLock()
		if !nested {
			tx.clear()
		}
		return ErrCallbackIsLocked
	}

	remainder := val.Sub(val, cbv)
	if nested {
		return b.gw.refundExcess(remainder, refund)
	}
	if len(tx.locators) == 0 {
		tx.clear()
		return b.gw.refundExcess(remainder, refund)
	}
	return b.gw.EndBatching(ctx, tx, remainder, refund)
}

// LockCallback consumes the current callback lock. It must be called by
// the component the lock was taken for, exactly once per WithBatch.
// Returns the lock holder and the value reserved for the callback.
func (b *CrosschainBatcher) LockCallback(tx *Transaction, caller common.Address) (common.Address, *uint256.Int, error) {
	l, ok := tx.peekLock()
	if !ok {
		return common.Address{}, nil, ErrCallbackWasNotLocked
	}
	if l.holder != caller {
		return common.Address{}, nil, ErrCallbackNotFromSender
	}
	tx.popLock()
	return l.holder, l.value, nil
}
